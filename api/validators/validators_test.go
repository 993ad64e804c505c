package validators

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"Bearer abc":       "abc",
		"bearer   abc  ":   "abc",
		"Basic dXNlcjpw":   "",
		"Bearer":           "",
		"BEARER token.x.y": "token.x.y",
	}
	for raw, want := range cases {
		if got := BearerToken(raw); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", raw, got, want)
		}
	}
}

type sendBody struct {
	SignerIDs []string `json:"signer_ids" validate:"required,min=1,unique,dive,uuid"`
	Mode      string   `json:"mode" validate:"required,oneof=parallel sequential"`
}

func TestDecodeJSONBodyValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"signer_ids":["a","a"],"mode":"random"}`))
	var body sendBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", pkgerrors.As(err).Details())
	}
	if _, ok := details["mode"]; !ok {
		t.Fatalf("expected mode detail, got %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"parallel","extra":1}`))
	var body sendBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func multipartRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.WriteField("change_description", "  second draft  "); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestReadMultipartFile(t *testing.T) {
	req := multipartRequest(t, "file", "deed.pdf", []byte("%PDF-1.7 test"))
	rec := httptest.NewRecorder()

	file, err := ReadMultipartFile(rec, req, "file", 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.FileName != "deed.pdf" {
		t.Fatalf("unexpected file name %q", file.FileName)
	}
	if string(file.Data) != "%PDF-1.7 test" {
		t.Fatalf("unexpected data %q", file.Data)
	}
	desc := FormValue(req, "change_description", 100)
	if desc == nil || *desc != "second draft" {
		t.Fatalf("unexpected description %v", desc)
	}
	if FormValue(req, "missing", 100) != nil {
		t.Fatal("expected nil for absent field")
	}
}

func TestReadMultipartFileRejectsOversize(t *testing.T) {
	req := multipartRequest(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 2048))
	rec := httptest.NewRecorder()

	if _, err := ReadMultipartFile(rec, req, "file", 1024); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReadMultipartFileRequiresField(t *testing.T) {
	req := multipartRequest(t, "", "", nil)
	rec := httptest.NewRecorder()

	if _, err := ReadMultipartFile(rec, req, "file", 1024); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReadOptionalMultipartFile(t *testing.T) {
	rec := httptest.NewRecorder()

	file, err := ReadOptionalMultipartFile(rec, httptest.NewRequest(http.MethodPost, "/", nil), "file", 1024)
	if err != nil || len(file.Data) != 0 {
		t.Fatalf("expected empty file for non-multipart body, got %+v %v", file, err)
	}

	file, err = ReadOptionalMultipartFile(rec, multipartRequest(t, "", "", nil), "file", 1024)
	if err != nil || len(file.Data) != 0 {
		t.Fatalf("expected empty file for missing part, got %+v %v", file, err)
	}

	big := multipartRequest(t, "file", "big.png", bytes.Repeat([]byte("a"), 2048))
	if _, err := ReadOptionalMultipartFile(rec, big, "file", 1024); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected oversize to stay a validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "trims", input: "  Mozilla/5.0  ", maxLen: 0, want: "Mozilla/5.0"},
		{name: "drops control characters", input: "agent\r\n\x00 x", maxLen: 0, want: "agent x"},
		{name: "caps by rune", input: "ééééé", maxLen: 3, want: "ééé"},
		{name: "no cap when short", input: "abc", maxLen: 10, want: "abc"},
		{name: "invalid utf8", input: "ok\xff", maxLen: 0, want: "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}

func TestDecodeJSONBodyRejectsTrailingDocuments(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"parallel"} {"mode":"sequential"}`))
	var body sendBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for concatenated objects, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	huge := `{"mode":"` + strings.Repeat("p", maxJSONBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	var body sendBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for oversized body, got %v", err)
	}
}

func TestFieldMessagesUseTagParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"signer_ids":[],"mode":"parallel"}`))
	var body sendBody
	err := DecodeJSONBody(req, &body)
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["signer_ids"] != "must be at least 1" {
		t.Fatalf("unexpected signer_ids message %q", details["signer_ids"])
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&unread_only=true&cursor=%20abc%20", nil)
	if n, err := QueryPositiveInt(req, "limit"); err != nil || n != 20 {
		t.Fatalf("QueryPositiveInt = %d, %v", n, err)
	}
	if b, err := QueryBool(req, "unread_only"); err != nil || !b {
		t.Fatalf("QueryBool = %v, %v", b, err)
	}
	if got := QueryString(req, "cursor", 10); got != "abc" {
		t.Fatalf("QueryString = %q", got)
	}
	if n, err := QueryPositiveInt(req, "missing"); err != nil || n != 0 {
		t.Fatalf("absent key should yield zero, got %d, %v", n, err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/?limit=-3&unread_only=maybe", nil)
	if _, err := QueryPositiveInt(bad, "limit"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative limit, got %v", err)
	}
	if _, err := QueryBool(bad, "unread_only"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad bool, got %v", err)
	}
}
