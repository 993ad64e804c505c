package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, message string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message).WithDetails(map[string]any{"field": key})
}

// QueryPositiveInt returns 0 when key is absent. Callers apply their own
// defaults and caps.
func QueryPositiveInt(r *http.Request, key string) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, invalidQuery(key, key+" must be a positive integer", err)
	}
	return n, nil
}

func QueryBool(r *http.Request, key string) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQuery(key, "invalid "+key+" value", err)
	}
	return b, nil
}

func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(queryValue(r, key), maxLen)
}
