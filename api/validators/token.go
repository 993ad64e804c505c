package validators

import "strings"

// BearerToken extracts the credential from an Authorization header value. It
// returns "" when the header is empty or uses another scheme.
func BearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if len(token) < 7 || !strings.EqualFold(token[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(token[7:])
}
