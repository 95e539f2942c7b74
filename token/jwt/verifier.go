package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-obo-blueprints/token/keys"
)

// Verifier checks tokens issued by this authorization server, e.g. on-behalf-of assertions
type Verifier struct {
	issuer string
	signer keys.Signer
	now    func() time.Time
}

func NewVerifier(issuer string, signer keys.Signer, nowFunc func() time.Time) *Verifier {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Verifier{issuer: issuer, signer: signer, now: nowFunc}
}

// Verify validates signature, issuer and lifetime. The audience is only checked when non-empty.
func (v *Verifier) Verify(rawToken, audience string) (jwtlib.MapClaims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{keys.RS256}),
		jwtlib.WithIssuer(v.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(v.now),
	}
	if audience != "" {
		opts = append(opts, jwtlib.WithAudience(audience))
	}

	claims := jwtlib.MapClaims{}
	if _, err := jwtlib.ParseWithClaims(rawToken, claims, v.signer.GetVerificationKey, opts...); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// ParseUnverified returns the claims of rawToken without any validation. Only for display.
func ParseUnverified(rawToken string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}
