package tokens

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PurposeSign is the only purpose a signing token may carry.
const PurposeSign = "SIGN"

// Claims is the payload of a signing token. The signer id travels as the
// subject and the nonce as the JWT id. There is no exp claim: expiry lives on
// the Signature row so due dates can move without reissuing tokens.
type Claims struct {
	Purpose    string    `json:"purpose"`
	DocumentID uuid.UUID `json:"doc"`
	jwt.RegisteredClaims
}

// SignerID parses the subject claim.
func (c *Claims) SignerID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
