package tokens

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

var signingMethod = jwt.SigningMethodHS256

// SignatureFinder loads the Signature bound to a token. Callers pass a
// transaction-scoped implementation so resolution and mutation share one unit.
type SignatureFinder interface {
	FindByDocumentAndSigner(ctx context.Context, documentID, signerID uuid.UUID) (*models.Signature, error)
}

// ServiceParams configures the token service.
type ServiceParams struct {
	Key    []byte
	Issuer string
	Now    func() time.Time
}

// Service mints and validates signing tokens.
type Service struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewService builds a token service around a derived MAC key.
func NewService(params ServiceParams) (*Service, error) {
	if len(params.Key) < 32 {
		return nil, fmt.Errorf("signing token key must be at least 32 bytes")
	}
	issuer := strings.TrimSpace(params.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("signing token issuer is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	key := make([]byte, len(params.Key))
	copy(key, params.Key)
	return &Service{key: key, issuer: issuer, now: now}, nil
}

// Issued is a freshly minted token together with the fingerprint persisted on
// the Signature row.
type Issued struct {
	Token       string
	Fingerprint string
	Nonce       string
	IssuedAt    time.Time
}

// Issue mints a token bound to the (document, signer) pair.
func (s *Service) Issue(documentID, signerID uuid.UUID) (Issued, error) {
	if documentID == uuid.Nil || signerID == uuid.Nil {
		return Issued{}, pkgerrors.New(pkgerrors.CodeValidation, "document and signer are required")
	}
	issuedAt := s.now().UTC()
	nonce := uuid.NewString()

	claims := Claims{
		Purpose:    PurposeSign,
		DocumentID: documentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  signerID.String(),
			IssuedAt: jwt.NewNumericDate(issuedAt),
			ID:       nonce,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.key)
	if err != nil {
		return Issued{}, fmt.Errorf("signing token: %w", err)
	}
	return Issued{
		Token:       signed,
		Fingerprint: Fingerprint(signed),
		Nonce:       nonce,
		IssuedAt:    issuedAt,
	}, nil
}

// Parse checks the token's structure, its document binding and its MAC, in
// that order. A token minted for another document fails DocumentMismatch even
// when the MAC is forged.
func (s *Service) Parse(token string, documentID uuid.UUID) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newFailure(FailureMalformed, errors.New("empty token"))
	}

	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, unverified); err != nil {
		return nil, newFailure(FailureMalformed, err)
	}
	if unverified.Purpose != PurposeSign || unverified.Subject == "" || unverified.DocumentID == uuid.Nil {
		return nil, newFailure(FailureMalformed, errors.New("unexpected token payload"))
	}
	if unverified.DocumentID != documentID {
		return nil, newFailure(FailureDocumentMismatch, nil)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, newFailure(FailureMacMismatch, err)
		}
		return nil, newFailure(FailureMalformed, err)
	}
	if _, err := claims.SignerID(); err != nil {
		return nil, newFailure(FailureMalformed, err)
	}
	return claims, nil
}

// Resolution identifies the Signature a valid token authorizes.
type Resolution struct {
	DocumentID  uuid.UUID
	SignerID    uuid.UUID
	SignatureID uuid.UUID
	Signature   *models.Signature
}

// Resolve validates token against documentID and the stored Signature: the
// presented token must be the one issued, the Signature must still be pending
// and its window open.
func (s *Service) Resolve(ctx context.Context, finder SignatureFinder, token string, documentID uuid.UUID) (*Resolution, error) {
	claims, err := s.Parse(token, documentID)
	if err != nil {
		return nil, err
	}
	signerID, _ := claims.SignerID()

	sig, err := finder.FindByDocumentAndSigner(ctx, documentID, signerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newFailure(FailureMacMismatch, errors.New("no signature bound to token"))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load signature")
	}
	if !FingerprintMatches(token, sig.IssuedTokenFingerprint) {
		return nil, newFailure(FailureMacMismatch, errors.New("token was not issued for this signature"))
	}
	if sig.Status != enums.SignatureStatusPending {
		return nil, newFailure(FailureAlreadyConsumed, nil)
	}
	if s.now().After(sig.TokenExpiresAt) {
		return nil, newFailure(FailureExpired, nil)
	}

	return &Resolution{
		DocumentID:  documentID,
		SignerID:    signerID,
		SignatureID: sig.ID,
		Signature:   sig,
	}, nil
}

// Fingerprint is the hex SHA-256 of the token string. Only fingerprints are
// persisted.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// FingerprintMatches compares the presented token to a stored fingerprint in
// constant time.
func FingerprintMatches(token, stored string) bool {
	got := Fingerprint(token)
	return subtle.ConstantTimeCompare([]byte(got), []byte(stored)) == 1
}
