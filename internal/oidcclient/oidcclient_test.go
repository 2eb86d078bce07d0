package oidcclient

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker/internal/jwtissuer"
	"broker/internal/keyring"
	"broker/internal/sessionstore"
	"broker/pkg/helpers"
	"broker/pkg/logger"
	"broker/pkg/model"
)

type upstreamFixture struct {
	server      *httptest.Server
	key         *rsa.PrivateKey
	issuer      string
	clientID    string
	idTokenFunc func(claims map[string]any) string
}

func newUpstream(t *testing.T) *upstreamFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	mux := http.NewServeMux()
	fixture := &upstreamFixture{key: key, issuer: "", clientID: "rp-client-id"}

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 fixture.issuer,
			"authorization_endpoint": fixture.server.URL + "/authorize",
			"token_endpoint":         fixture.server.URL + "/token",
			"jwks_uri":               fixture.server.URL + "/jwks",
		})
	})

	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		pub, err := jwk.Import(&key.PublicKey)
		require.NoError(t, err)
		require.NoError(t, pub.Set(jwk.KeyIDKey, "upstream-key"))
		require.NoError(t, pub.Set(jwk.AlgorithmKey, "RS256"))
		set := jwk.NewSet()
		require.NoError(t, set.AddKey(pub))
		_ = json.NewEncoder(w).Encode(set)
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "upstream-access-token",
			"token_type":   "Bearer",
			"id_token":     fixture.idTokenFunc(nil),
		})
	})

	fixture.server = httptest.NewServer(mux)
	fixture.issuer = fixture.server.URL
	return fixture
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, kid string, claims map[string]any) string {
	t.Helper()

	header := map[string]string{"alg": "RS256", "typ": "JWT", "kid": kid}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	claimsJSON, err := json.Marshal(claims)
	require.NoError(t, err)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(claimsJSON)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, 5 /*crypto.SHA256*/, digest[:])
	require.NoError(t, err)

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func newTestClient(t *testing.T, cfg *model.Config) (*Client, *sessionstore.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.ExpireKeys = 300
	cfg.TokenValidity = 300
	cfg.JWKSCacheTTL = 600
	cfg.RequestTimeout = 5

	store, err := sessionstore.New(context.Background(), cfg, logger.NewSimple("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ring := newTestKeyRing(t)
	issuer := jwtissuer.New(ring, cfg)
	client := New(cfg, store, issuer)
	t.Cleanup(client.Close)

	return client, store
}

func newTestKeyRing(t *testing.T) *keyring.KeyRing {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	path := writeRingKey(t, key)
	ring, err := keyring.Load(path)
	require.NoError(t, err)
	return ring
}

func writeRingKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()

	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestBuildAuthorizationURL_UnknownDomainReturnsNotFound(t *testing.T) {
	cfg := &model.Config{BaseURL: "https://broker.example", Providers: map[string]model.Provider{}}
	client, _ := newTestClient(t, cfg)

	_, err := client.BuildAuthorizationURL(context.Background(), "unknown.example", "a@unknown.example", "https://rp.example", "https://rp.example/cb", "")
	require.Error(t, err)
	assert.Equal(t, helpers.NotFound, err.(*helpers.Error).Title)
}

func TestBuildAuthorizationURL_IssuerMismatch(t *testing.T) {
	upstream := newUpstream(t)
	defer upstream.server.Close()
	upstream.issuer = "https://wrong-issuer.example"

	cfg := &model.Config{
		BaseURL: "https://broker.example",
		Providers: map[string]model.Provider{
			"example.com": {Discovery: upstream.server.URL + "/.well-known/openid-configuration", ClientID: upstream.clientID, Secret: "s3cr3t", Issuer: upstream.server.URL},
		},
	}
	client, _ := newTestClient(t, cfg)

	_, err := client.BuildAuthorizationURL(context.Background(), "example.com", "a@example.com", "https://rp.example", "https://rp.example/cb", "")
	require.Error(t, err)
}

func TestBuildAuthorizationURL_Success(t *testing.T) {
	upstream := newUpstream(t)
	defer upstream.server.Close()

	cfg := &model.Config{
		BaseURL: "https://broker.example",
		Providers: map[string]model.Provider{
			"example.com": {Discovery: upstream.server.URL + "/.well-known/openid-configuration", ClientID: upstream.clientID, Secret: "s3cr3t", Issuer: upstream.server.URL},
		},
	}
	client, store := newTestClient(t, cfg)

	authURL, err := client.BuildAuthorizationURL(context.Background(), "example.com", "a@example.com", "https://rp.example", "https://rp.example/cb", "rp-nonce")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "a@example.com", q.Get("login_hint"))

	sessionID := q.Get("state")
	require.NotEmpty(t, sessionID)
	assert.Equal(t, sessionID, q.Get("nonce"))

	record, err := store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionstore.KindOIDC, record.Kind)
	assert.Equal(t, "a@example.com", record.Email)
	assert.Equal(t, "rp-nonce", record.Nonce)
	assert.Equal(t, "example.com", record.ProviderDomain)
}

func TestHandleCallback_Success(t *testing.T) {
	upstream := newUpstream(t)
	defer upstream.server.Close()

	cfg := &model.Config{
		BaseURL: "https://broker.example",
		Providers: map[string]model.Provider{
			"example.com": {Discovery: upstream.server.URL + "/.well-known/openid-configuration", ClientID: upstream.clientID, Secret: "s3cr3t", Issuer: upstream.server.URL},
		},
	}
	client, store := newTestClient(t, cfg)

	sessionID, err := sessionstore.NewSessionID()
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), sessionID, &sessionstore.Record{
		Kind: sessionstore.KindOIDC, Email: "a@example.com", ClientID: "https://rp.example",
		Nonce: "rp-nonce", RedirectURI: "https://rp.example/cb", ProviderDomain: "example.com",
	}, time.Minute))

	upstream.idTokenFunc = func(_ map[string]any) string {
		return signIDToken(t, upstream.key, "upstream-key", map[string]any{
			"iss": upstream.issuer, "aud": upstream.clientID, "sub": "upstream-sub",
			"exp": time.Now().Add(time.Hour).Unix(), "iat": time.Now().Unix(),
			"nonce": sessionID, "email": "A@Example.com", "email_verified": true,
		})
	}

	result, err := client.HandleCallback(context.Background(), sessionID, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "https://rp.example/cb", result.RedirectURI)
	assert.NotEmpty(t, result.JWT)

	_, err = store.Get(context.Background(), sessionID)
	require.Error(t, err, "session must be deleted after a successful callback")
}

func TestHandleCallback_IssuerMismatchFails(t *testing.T) {
	upstream := newUpstream(t)
	defer upstream.server.Close()

	cfg := &model.Config{
		BaseURL: "https://broker.example",
		Providers: map[string]model.Provider{
			"example.com": {Discovery: upstream.server.URL + "/.well-known/openid-configuration", ClientID: upstream.clientID, Secret: "s3cr3t", Issuer: upstream.server.URL},
		},
	}
	client, store := newTestClient(t, cfg)

	sessionID, err := sessionstore.NewSessionID()
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), sessionID, &sessionstore.Record{
		Kind: sessionstore.KindOIDC, Email: "a@example.com", ClientID: "https://rp.example",
		RedirectURI: "https://rp.example/cb", ProviderDomain: "example.com",
	}, time.Minute))

	upstream.idTokenFunc = func(_ map[string]any) string {
		return signIDToken(t, upstream.key, "upstream-key", map[string]any{
			"iss": "https://impostor.example", "aud": upstream.clientID, "sub": "upstream-sub",
			"exp": time.Now().Add(time.Hour).Unix(), "iat": time.Now().Unix(),
			"nonce": sessionID, "email": "a@example.com", "email_verified": true,
		})
	}

	_, err = client.HandleCallback(context.Background(), sessionID, "auth-code")
	require.Error(t, err)
	assert.Equal(t, helpers.InvalidIdToken, err.(*helpers.Error).Title)
}
