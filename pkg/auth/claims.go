package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

// AccessTokenPayload is what a caller asks MintAccessToken to encode.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.PlatformRole
	JTI    string
}

// AccessTokenClaims is the wire shape of an access token. The user id travels
// as the standard subject claim.
type AccessTokenClaims struct {
	Role enums.PlatformRole `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller a verified token describes.
type Principal struct {
	UserID    uuid.UUID
	Role      enums.PlatformRole
	SessionID string
}
