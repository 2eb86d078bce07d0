// Package jwtissuer builds and signs the RS256 JWTs the broker hands to
// relying parties.
package jwtissuer

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"broker/internal/keyring"
	"broker/pkg/helpers"
	"broker/pkg/model"
)

// ringSigningMethod adapts golang-jwt's SigningMethod interface to
// KeyRing.Sign, so the JWT's signature is always produced by the keyring
// rather than by golang-jwt reaching into the private key itself.
type ringSigningMethod struct {
	rsa *jwt.SigningMethodRSA
}

func (m ringSigningMethod) Alg() string { return m.rsa.Alg() }

func (m ringSigningMethod) Verify(signingString string, sig []byte, key interface{}) error {
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	return m.rsa.Verify(signingString, sig, pub)
}

func (m ringSigningMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	ring, ok := key.(*keyring.KeyRing)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	return ring.Sign(context.Background(), []byte(signingString))
}

// signingMethod is RS256, signed through the keyring instead of golang-jwt's
// own RSA signer.
var signingMethod = ringSigningMethod{rsa: jwt.SigningMethodRS256}

// Issuer builds the broker's outgoing identity assertions.
type Issuer struct {
	ring *keyring.KeyRing
	cfg  *model.Config
	// Clock is injected for testability; defaults to time.Now.
	Clock func() time.Time
}

// New returns an Issuer signing with ring and reading iss/exp from cfg.
func New(ring *keyring.KeyRing, cfg *model.Config) *Issuer {
	return &Issuer{ring: ring, cfg: cfg, Clock: time.Now}
}

// Issue builds and signs a JWT asserting email for aud (the RP origin),
// echoing nonce into the token if the originating request carried one.
func (i *Issuer) Issue(email, aud, nonce string) (string, error) {
	now := i.Clock()
	claims := jwt.MapClaims{
		"iss":            i.cfg.BaseURL,
		"aud":            aud,
		"sub":            email,
		"email":          email,
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(i.cfg.TokenValidityDuration()).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}

	token := jwt.NewWithClaims(signingMethod, claims)
	token.Header["kid"] = i.ring.KeyID()

	signed, err := token.SignedString(i.ring)
	if err != nil {
		return "", helpers.Wrap(helpers.InternalError, fmt.Errorf("signing jwt: %w", err))
	}
	return signed, nil
}
