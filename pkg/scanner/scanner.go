// Package scanner rejects uploads that carry executable content or the EICAR
// antivirus test signature.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/coownly/esign-backend/pkg/config"
)

// Reasons reported on unclean results.
const (
	ReasonTestSignature = "eicar_test_signature"
	ReasonExecutable    = "executable_content"
)

// eicar is the industry standard antivirus test string.
var eicar = []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)

var blockedTypes = []string{
	"application/vnd.microsoft.portable-executable",
	"application/x-msdownload",
	"application/x-elf",
	"application/x-executable",
	"application/x-mach-binary",
	"application/x-sharedlib",
	"application/java-archive",
	"application/x-java-applet",
	"text/x-shellscript",
	"text/x-php",
	"text/x-python",
	"text/x-perl",
	"application/x-bat",
}

// Result is the verdict for one payload.
type Result struct {
	Clean        bool
	Reason       string
	DetectedType string
}

type Scanner struct {
	mode     string
	maxBytes int64
}

// New builds a scanner for the configured mode.
func New(cfg config.ScannerConfig) (*Scanner, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", config.ScannerModeSignature:
		mode = config.ScannerModeSignature
	case config.ScannerModeOff:
	default:
		return nil, fmt.Errorf("unsupported scanner mode %q", cfg.Mode)
	}
	return &Scanner{mode: mode, maxBytes: cfg.MaxBytes}, nil
}

// Scan inspects data. Only the first maxBytes are searched for signatures
// when a limit is configured.
func (s *Scanner) Scan(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	detected := mimetype.Detect(data)
	result := Result{Clean: true, DetectedType: detected.String()}
	if s == nil || s.mode == config.ScannerModeOff {
		return result, nil
	}

	window := data
	if s.maxBytes > 0 && int64(len(window)) > s.maxBytes {
		window = window[:s.maxBytes]
	}
	if bytes.Contains(window, eicar) {
		result.Clean = false
		result.Reason = ReasonTestSignature
		return result, nil
	}
	if isBlocked(detected) {
		result.Clean = false
		result.Reason = ReasonExecutable
	}
	return result, nil
}

func isBlocked(m *mimetype.MIME) bool {
	for cur := m; cur != nil; cur = cur.Parent() {
		for _, blocked := range blockedTypes {
			if cur.Is(blocked) {
				return true
			}
		}
	}
	return false
}
