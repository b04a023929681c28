// Package certificate issues signed approval certificates. An approved
// authentication gets a compact JWT the host application can hand to other
// services as proof of verification without another database round trip.
package certificate

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"veriflow/internal/verification/models"
	dErrors "veriflow/pkg/domain-errors"
)

// Claims are the approval certificate claims.
type Claims struct {
	AuthenticationID string `json:"authentication_id"`
	Method           string `json:"method"`
	jwt.RegisteredClaims
}

// Issuer signs and validates approval certificates.
type Issuer struct {
	signingKey []byte
	issuer     string
}

// NewIssuer constructs an Issuer with an HMAC signing key.
func NewIssuer(signingKey string, issuer string) *Issuer {
	return &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Issue signs a certificate for an approved request. The certificate expires
// with the approval; an approval with no expiry yields a certificate with no
// expiry claim.
func (i *Issuer) Issue(request *models.AuthenticationRequest, now time.Time) (string, error) {
	if !request.IsApproved(now) {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "certificate requires an unexpired approval")
	}

	claims := Claims{
		AuthenticationID: request.ID.String(),
		Method:           string(request.Method),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  request.SubjectID.String(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   i.issuer,
			ID:       uuid.NewString(),
		},
	}
	if request.ExpireTime != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*request.ExpireTime)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign certificate")
	}
	return signed, nil
}

// Validate parses a certificate and returns its claims.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "certificate has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid certificate")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid certificate")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid certificate claims")
	}
	return claims, nil
}
