// Package oidcclient delegates authentication to an upstream OIDC provider:
// discovery, authorization-URL construction, and callback/token-exchange
// verification.
package oidcclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/oauth2"

	"broker/internal/jwtissuer"
	"broker/internal/sessionstore"
	"broker/pkg/helpers"
	"broker/pkg/model"
)

// Clock is injected for testability; ID-token freshness checks use it.
type Clock func() time.Time

const clockSkew = 60 * time.Second

// upstreamProvider bundles the discovered provider, its narrowed ID-token
// verifier, and the oauth2 client config needed to exchange a code.
type upstreamProvider struct {
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	issuer   string
}

// Client drives the upstream OIDC authorization-code flow via
// coreos/go-oidc and golang.org/x/oauth2, the same pair the rest of the
// pack uses for relying-party work.
type Client struct {
	cfg      *model.Config
	http     *http.Client
	sessions *sessionstore.Store
	issuer   *jwtissuer.Issuer
	Clock    Clock

	providers *ttlcache.Cache[string, *upstreamProvider]
}

// New returns a Client backed by cfg's provider map, sessions, and issuer.
func New(cfg *model.Config, sessions *sessionstore.Store, issuer *jwtissuer.Issuer) *Client {
	cache := ttlcache.New[string, *upstreamProvider](
		ttlcache.WithTTL[string, *upstreamProvider](cfg.JWKSCacheTTLDuration()),
	)
	go cache.Start()

	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.RequestTimeoutDuration()},
		sessions:  sessions,
		issuer:    issuer,
		Clock:     time.Now,
		providers: cache,
	}
}

// Close stops the provider cache's background eviction goroutine.
func (c *Client) Close() {
	c.providers.Stop()
}

// providerFor resolves providerDomain to a discovered upstream provider,
// caching the result (discovery + JWKS resolution both live behind
// *oidc.Provider) for cfg.JWKSCacheTTL.
func (c *Client) providerFor(ctx context.Context, providerDomain string) (*upstreamProvider, error) {
	if item := c.providers.Get(providerDomain); item != nil {
		return item.Value(), nil
	}

	provider, ok := c.cfg.Providers[providerDomain]
	if !ok {
		return nil, helpers.New(helpers.NotFound)
	}

	fetchCtx := oidc.ClientContext(ctx, c.http)
	fetchCtx = oidc.InsecureIssuerURLContext(fetchCtx, provider.Issuer)

	discovered, err := oidc.NewProvider(fetchCtx, discoveryBase(provider.Discovery))
	if err != nil {
		if strings.Contains(err.Error(), "issuer did not match") {
			return nil, helpers.Wrap(helpers.ProviderMismatch, err)
		}
		return nil, helpers.Wrap(helpers.UpstreamFailure, err)
	}

	// InsecureIssuerURLContext turns off go-oidc's own discovery issuer
	// check, so the discovered issuer is compared to the configured one here.
	var meta struct {
		Issuer string `json:"issuer"`
	}
	if err := discovered.Claims(&meta); err != nil {
		return nil, helpers.Wrap(helpers.UpstreamFailure, err)
	}
	if meta.Issuer != provider.Issuer {
		return nil, helpers.Wrap(helpers.ProviderMismatch, fmt.Errorf("discovered issuer %q does not match configured issuer %q", meta.Issuer, provider.Issuer))
	}

	up := &upstreamProvider{
		oauth2: &oauth2.Config{
			ClientID:     provider.ClientID,
			ClientSecret: provider.Secret,
			Endpoint:     discovered.Endpoint(),
			RedirectURL:  c.cfg.BaseURL + "/callback",
			Scopes:       []string{"openid", "email"},
		},
		verifier: discovered.Verifier(&oidc.Config{
			ClientID:             provider.ClientID,
			SupportedSigningAlgs: []string{oidc.RS256},
			Now:                  func() time.Time { return c.Clock() },
		}),
		issuer: provider.Issuer,
	}

	c.providers.Set(providerDomain, up, ttlcache.DefaultTTL)
	return up, nil
}

// discoveryBase strips the well-known suffix so the result can be handed
// to oidc.NewProvider, which appends it back on itself.
func discoveryBase(discoveryURL string) string {
	return strings.TrimSuffix(discoveryURL, "/.well-known/openid-configuration")
}

// BuildAuthorizationURL implements spec.md §4.4's "authorization request":
// it resolves provider by email domain, discovers it, persists an oidc
// session, and returns the upstream authorization URL the caller should
// redirect to.
func (c *Client) BuildAuthorizationURL(ctx context.Context, providerDomain, email, clientID, redirectURI, nonce string) (string, error) {
	provider, err := c.providerFor(ctx, providerDomain)
	if err != nil {
		return "", err
	}

	sessionID, err := sessionstore.NewSessionID()
	if err != nil {
		return "", helpers.Wrap(helpers.InternalError, err)
	}

	record := &sessionstore.Record{
		Kind:           sessionstore.KindOIDC,
		Email:          email,
		ClientID:       clientID,
		Nonce:          nonce,
		RedirectURI:    redirectURI,
		ProviderDomain: providerDomain,
	}
	if err := c.sessions.Put(ctx, sessionID, record, c.cfg.ExpireKeysDuration()); err != nil {
		return "", err
	}

	authURL := provider.oauth2.AuthCodeURL(
		sessionID,
		oauth2.SetAuthURLParam("login_hint", email),
		oauth2.SetAuthURLParam("nonce", sessionID),
	)
	return authURL, nil
}

// CallbackResult is what a successful callback verification produces: the
// broker JWT and the RP destination to form-POST it to.
type CallbackResult struct {
	JWT         string
	RedirectURI string
}

// HandleCallback implements spec.md §4.4's "callback verification": loads
// the session named by state, exchanges code at the token endpoint,
// verifies the returned ID token, deletes the session, and issues the
// broker's own JWT.
func (c *Client) HandleCallback(ctx context.Context, state, code string) (*CallbackResult, error) {
	record, err := c.sessions.Get(ctx, state)
	if err != nil {
		return nil, err
	}

	provider, err := c.providerFor(ctx, record.ProviderDomain)
	if err != nil {
		return nil, err
	}

	exchangeCtx := oidc.ClientContext(ctx, c.http)
	token, err := provider.oauth2.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, helpers.Wrap(helpers.UpstreamFailure, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, helpers.Wrap(helpers.UpstreamFailure, fmt.Errorf("token response carried no id_token"))
	}

	idToken, err := provider.verifier.Verify(exchangeCtx, rawIDToken)
	if err != nil {
		return nil, helpers.Wrap(helpers.InvalidIdToken, err)
	}

	if err := c.checkExtraClaims(idToken, record, state); err != nil {
		return nil, err
	}

	if err := c.sessions.Delete(ctx, state); err != nil {
		return nil, err
	}

	jwt, err := c.issuer.Issue(record.Email, record.ClientID, record.Nonce)
	if err != nil {
		return nil, err
	}

	return &CallbackResult{JWT: jwt, RedirectURI: record.RedirectURI}, nil
}

// checkExtraClaims applies the narrow claim checks spec.md §4.4 requires
// on top of what oidc.IDTokenVerifier.Verify already confirmed (signature,
// issuer, audience, expiry): the iat skew bound, the nonce binding the
// callback to the session that started it, and that the upstream email is
// present, verified, and matches the session's email case-insensitively.
func (c *Client) checkExtraClaims(idToken *oidc.IDToken, record *sessionstore.Record, sessionNonce string) error {
	var claims struct {
		Nonce         string `json:"nonce"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return helpers.Wrap(helpers.InvalidIdToken, err)
	}

	now := c.Clock()
	switch {
	case idToken.IssuedAt.After(now.Add(clockSkew)):
		return helpers.New(helpers.InvalidIdToken)
	case claims.Nonce != sessionNonce:
		return helpers.New(helpers.InvalidIdToken)
	case claims.Email == "" || !strings.EqualFold(claims.Email, record.Email):
		return helpers.New(helpers.InvalidIdToken)
	case !claims.EmailVerified:
		return helpers.New(helpers.InvalidIdToken)
	}
	return nil
}
