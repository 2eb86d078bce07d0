// Package apiv1 holds the broker's business logic: domain dispatch between
// the OIDC and email authentication paths, the discovery document, and the
// JWK Set projection.
package apiv1

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"broker/internal/emailloop"
	"broker/internal/keyring"
	"broker/internal/oidcclient"
	"broker/pkg/helpers"
	"broker/pkg/logger"
	"broker/pkg/model"
	"broker/pkg/trace"
)

// Version is the broker's reported service version.
const Version = "1.0.0"

// Client is the public API object wiring the two authentication paths
// behind a single set of operations.
type Client struct {
	cfg    *model.Config
	log    *logger.Log
	tracer *trace.Tracer
	ring   *keyring.KeyRing
	oidc   *oidcclient.Client
	email  *emailloop.Loop
}

// New creates the apiv1 client.
func New(ctx context.Context, cfg *model.Config, tracer *trace.Tracer, ring *keyring.KeyRing, oidc *oidcclient.Client, email *emailloop.Loop, log *logger.Log) (*Client, error) {
	return &Client{
		cfg:    cfg,
		log:    log.New("apiv1"),
		tracer: tracer,
		ring:   ring,
		oidc:   oidc,
		email:  email,
	}, nil
}

// Welcome is the GET / response.
type Welcome struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Index returns the welcome body.
func (c *Client) Index(ctx context.Context) (*Welcome, error) {
	return &Welcome{Service: "broker", Version: Version}, nil
}

// Discovery is the GET /.well-known/openid-configuration response.
type Discovery struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ScopesSupported                  []string `json:"scopes_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	ResponseModesSupported           []string `json:"response_modes_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// Discovery returns the broker's own OIDC discovery document, per
// spec.md §4.6.
func (c *Client) Discovery(ctx context.Context) (*Discovery, error) {
	return &Discovery{
		Issuer:                           c.cfg.BaseURL,
		AuthorizationEndpoint:            c.cfg.BaseURL + "/auth",
		JWKSURI:                          c.cfg.BaseURL + "/keys.json",
		ScopesSupported:                  []string{"openid", "email"},
		ClaimsSupported:                  []string{"aud", "email", "email_verified", "exp", "iat", "iss", "sub"},
		ResponseTypesSupported:           []string{"id_token"},
		ResponseModesSupported:           []string{"form_post"},
		GrantTypesSupported:              []string{"implicit"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
	}, nil
}

// JWKSet returns the broker's published JWK Set.
func (c *Client) JWKSet(ctx context.Context) (interface{}, error) {
	return c.ring.JWKSet(), nil
}

// AuthRequest is the POST /auth payload, per spec.md §4.6.
type AuthRequest struct {
	LoginHint   string `form:"login_hint" validate:"required,email"`
	ClientID    string `form:"client_id" validate:"required,url"`
	RedirectURI string `form:"redirect_uri" validate:"required,url"`
	Nonce       string `form:"nonce"`
}

// AuthResult is Auth's outcome: either a redirect (OIDC path) or the email
// loop's JSON acknowledgement.
type AuthResult struct {
	RedirectURL string
	Body        any
}

// Auth implements spec.md §4.6's POST /auth: it routes by the login hint's
// email domain to either the OIDC or email path.
func (c *Client) Auth(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	if err := checkRedirectURI(req.ClientID, req.RedirectURI); err != nil {
		return nil, err
	}

	domain, err := emailDomain(req.LoginHint)
	if err != nil {
		return nil, helpers.Wrap(helpers.BadRequest, err)
	}

	if _, ok := c.cfg.Providers[domain]; ok {
		authURL, err := c.oidc.BuildAuthorizationURL(ctx, domain, req.LoginHint, req.ClientID, req.RedirectURI, req.Nonce)
		if err != nil {
			return nil, err
		}
		return &AuthResult{RedirectURL: authURL}, nil
	}

	if err := c.email.Request(ctx, req.LoginHint, req.ClientID, req.RedirectURI, req.Nonce); err != nil {
		return &AuthResult{Body: helpers.ErrorResponse{Error: helpers.NewErrorFromError(err)}}, nil
	}
	return &AuthResult{Body: struct{}{}}, nil
}

// FormResult is what Confirm and Callback both produce: the broker JWT and
// the RP's redirect_uri for the auto-submit form, per spec.md §3/§4.6.
type FormResult struct {
	JWT         string
	RedirectURI string
}

// Confirm implements spec.md §4.6's GET /confirm: it verifies the email
// one-time code.
func (c *Client) Confirm(ctx context.Context, sessionID, code string) (*FormResult, error) {
	result, err := c.email.Verify(ctx, sessionID, code)
	if err != nil {
		return nil, err
	}
	return &FormResult{JWT: result.JWT, RedirectURI: result.RedirectURI}, nil
}

// Callback implements spec.md §4.6's GET /callback: it verifies the
// upstream OIDC exchange.
func (c *Client) Callback(ctx context.Context, state, code string) (*FormResult, error) {
	result, err := c.oidc.HandleCallback(ctx, state, code)
	if err != nil {
		return nil, err
	}
	return &FormResult{JWT: result.JWT, RedirectURI: result.RedirectURI}, nil
}

func emailDomain(address string) (string, error) {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return "", err
	}
	at := strings.LastIndexByte(parsed.Address, '@')
	if at < 0 {
		return "", helpers.New(helpers.BadRequest)
	}
	return strings.ToLower(parsed.Address[at+1:]), nil
}

// checkRedirectURI is the defense-in-depth check spec.md leaves open: with
// no per-RP redirect_uri registry, redirect_uri must at least share its
// scheme and host with client_id, so a POST /auth can't be used to bounce
// the issued JWT to an arbitrary third-party origin.
func checkRedirectURI(clientID, redirectURI string) error {
	client, err := url.Parse(clientID)
	if err != nil {
		return helpers.Wrap(helpers.BadRequest, err)
	}
	redirect, err := url.Parse(redirectURI)
	if err != nil {
		return helpers.Wrap(helpers.BadRequest, err)
	}
	if client.Scheme != redirect.Scheme || client.Host != redirect.Host {
		return helpers.Wrap(helpers.BadRequest, fmt.Errorf("redirect_uri %q is not same-origin as client_id %q", redirectURI, clientID))
	}
	return nil
}
