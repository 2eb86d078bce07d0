// Package keyring holds the broker's single RSA signing key and publishes
// its public half as a JWK Set.
package keyring

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// KeyID is the broker's single, static signing key identifier. The spec
// carries no key rotation, so there is only ever one.
const KeyID = "base"

// KeyRing holds the broker's RSA private key and signs with PKCS#1 v1.5
// over SHA-256 (RS256), mirroring the software path of the teacher's
// signing.SoftwareSigner.
type KeyRing struct {
	privateKey *rsa.PrivateKey
	jwkSet     jwk.Set
}

// Load reads a PKCS#1 or PKCS#8 PEM-encoded RSA private key from path and
// builds the KeyRing around it, pre-computing the published JWK Set.
func Load(path string) (*KeyRing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA private key: %w", err)
	}

	set, err := buildJWKSet(key)
	if err != nil {
		return nil, fmt.Errorf("building JWK set: %w", err)
	}

	return &KeyRing{privateKey: key, jwkSet: set}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PKCS#8 key is not RSA")
	}
	return rsaKey, nil
}

func buildJWKSet(key *rsa.PrivateKey) (jwk.Set, error) {
	pub, err := jwk.Import(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.KeyIDKey, KeyID); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		return nil, err
	}
	if err := pub.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}
	return set, nil
}

// Sign computes the RS256 signature (PKCS#1 v1.5 over SHA-256) of data.
func (k *KeyRing) Sign(ctx context.Context, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, k.privateKey, crypto.SHA256, digest[:])
}

// KeyID returns the static key identifier published in the JWT header and
// the JWK Set.
func (k *KeyRing) KeyID() string {
	return KeyID
}

// JWKSet returns the JWK Set (length 1) describing the broker's public key,
// ready to be marshaled as JSON for the /keys.json endpoint.
func (k *KeyRing) JWKSet() jwk.Set {
	return k.jwkSet
}
