package certificates

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/db/models"
)

const certificateIDPrefix = "COC-"

// SignerSummary is the frozen per-signer snapshot stored on a certificate.
type SignerSummary struct {
	SignerID uuid.UUID `json:"signer_id"`
	Order    int       `json:"order"`
	SignedAt time.Time `json:"signed_at"`
}

// newCertificateID returns COC- followed by 32 upper-case hex characters.
func newCertificateID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random certificate id: %w", err)
	}
	return certificateIDPrefix + strings.ToUpper(hex.EncodeToString(raw[:])), nil
}

func encodeSummary(sigs []models.Signature) (json.RawMessage, error) {
	summary := make([]SignerSummary, 0, len(sigs))
	for _, sig := range sigs {
		entry := SignerSummary{SignerID: sig.SignerID, Order: sig.SignOrder}
		if sig.SignedAt != nil {
			entry.SignedAt = sig.SignedAt.UTC().Truncate(time.Microsecond)
		}
		summary = append(summary, entry)
	}
	sort.SliceStable(summary, func(i, j int) bool { return summary[i].Order < summary[j].Order })
	return json.Marshal(summary)
}

// DecodeSummary parses the stored snapshot.
func DecodeSummary(raw json.RawMessage) ([]SignerSummary, error) {
	var summary []SignerSummary
	if len(raw) == 0 {
		return summary, nil
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode signer summary: %w", err)
	}
	return summary, nil
}

// sealPayload renders the immutable fields in a fixed layout. The summary is
// re-encoded so JSON normalisation by the database does not break the seal.
func sealPayload(cert *models.Certificate) ([]byte, error) {
	summary, err := DecodeSummary(cert.SignerSummary)
	if err != nil {
		return nil, err
	}
	canonical, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	fields := []string{
		cert.CertificateID,
		cert.DocumentID.String(),
		strings.ToLower(cert.DocumentContentHash),
		cert.FileName,
		strconv.Itoa(cert.TotalSigners),
		string(canonical),
		cert.GeneratedBy.String(),
		cert.GeneratedAt.UTC().Format(time.RFC3339Nano),
		cert.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	return []byte(strings.Join(fields, "\n")), nil
}

func computeSeal(key []byte, cert *models.Certificate) (string, error) {
	payload, err := sealPayload(cert)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func sealIntact(key []byte, cert *models.Certificate) bool {
	expected, err := computeSeal(key, cert)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(cert.Seal)))
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashMatches compares a caller supplied hex digest against the stored one.
// An absent hash matches.
func hashMatches(supplied *string, stored string) bool {
	if supplied == nil {
		return true
	}
	got := strings.ToLower(strings.TrimSpace(*supplied))
	if got == "" {
		return true
	}
	return hmac.Equal([]byte(got), []byte(strings.ToLower(stored)))
}
