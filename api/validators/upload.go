package validators

import (
	"errors"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

const multipartMemory = 8 << 20

// UploadedFile is a fully buffered multipart file part.
type UploadedFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ReadMultipartFile buffers the named file part of a multipart request. Bodies
// larger than maxBytes are rejected before they are read in full.
func ReadMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*UploadedFile, error) {
	return readMultipartFile(w, r, field, maxBytes, false)
}

// ReadOptionalMultipartFile is ReadMultipartFile for parts the service decides
// on: a request that is not multipart, or lacks the part, yields an empty file.
func ReadOptionalMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*UploadedFile, error) {
	return readMultipartFile(w, r, field, maxBytes, true)
}

func readMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64, optional bool) (*UploadedFile, error) {
	if maxBytes > 0 {
		// multipart framing adds a little on top of the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if optional && errors.Is(err, http.ErrNotMultipart) {
			return &UploadedFile{}, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload too large").WithDetails(map[string]any{"field": field, "max_bytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body").WithDetails(map[string]any{"field": field})
	}

	file, header, err := r.FormFile(field)
	if optional && errors.Is(err, http.ErrMissingFile) {
		return &UploadedFile{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").WithDetails(map[string]any{"field": field})
	}
	defer file.Close()

	if maxBytes > 0 && header.Size > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload too large").WithDetails(map[string]any{"field": field, "max_bytes": maxBytes})
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload").WithDetails(map[string]any{"field": field})
	}

	return &UploadedFile{
		FileName:    strings.TrimSpace(header.Filename),
		ContentType: strings.TrimSpace(header.Header.Get("Content-Type")),
		Data:        data,
	}, nil
}

// FormValue returns a trimmed multipart or url-encoded form value, or nil when
// absent.
func FormValue(r *http.Request, key string, maxLen int) *string {
	raw := r.FormValue(key)
	value := SanitizeString(raw, maxLen)
	if value == "" {
		return nil
	}
	return &value
}
