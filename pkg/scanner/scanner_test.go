package scanner

import (
	"context"
	"testing"

	"github.com/coownly/esign-backend/pkg/config"
)

func TestScan(t *testing.T) {
	s, err := New(config.ScannerConfig{Mode: config.ScannerModeSignature})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		name   string
		data   []byte
		clean  bool
		reason string
	}{
		{name: "pdf", data: []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"), clean: true},
		{name: "plain text", data: []byte("co-ownership agreement"), clean: true},
		{name: "eicar", data: eicar, clean: false, reason: ReasonTestSignature},
		{name: "elf", data: append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}, make([]byte, 64)...), clean: false, reason: ReasonExecutable},
		{name: "shell script", data: []byte("#!/bin/sh\nrm -rf /\n"), clean: false, reason: ReasonExecutable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.Scan(context.Background(), tc.data)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if res.Clean != tc.clean || res.Reason != tc.reason {
				t.Fatalf("got clean=%v reason=%q (type %s)", res.Clean, res.Reason, res.DetectedType)
			}
		})
	}
}

func TestScanOffPassesEverything(t *testing.T) {
	s, err := New(config.ScannerConfig{Mode: "OFF"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Scan(context.Background(), eicar)
	if err != nil || !res.Clean {
		t.Fatalf("expected clean result, got %+v (%v)", res, err)
	}
}

func TestScanHonorsWindowAndContext(t *testing.T) {
	s, _ := New(config.ScannerConfig{Mode: config.ScannerModeSignature, MaxBytes: 8})
	payload := append([]byte("harmless preamble "), eicar...)
	res, err := s.Scan(context.Background(), payload)
	if err != nil || !res.Clean {
		t.Fatalf("expected signature outside window to be ignored, got %+v (%v)", res, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Scan(ctx, payload); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.ScannerConfig{Mode: "clamav"}); err == nil {
		t.Fatal("expected error")
	}
}
