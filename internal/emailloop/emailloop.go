// Package emailloop implements the email one-time-code authentication
// path: code generation, delivery, and verification.
package emailloop

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"

	"gopkg.in/mail.v2"

	"broker/internal/jwtissuer"
	"broker/internal/sessionstore"
	"broker/pkg/helpers"
	"broker/pkg/logger"
	"broker/pkg/model"
)

// codeLength is the one-time code's length in Crockford base32 characters.
const codeLength = 12

// crockford is the Crockford base32 alphabet (no padding, no checksum),
// chosen for the one-time code's human-facing characters: it omits the
// visually ambiguous I, L, O, U.
var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// Mailer sends the confirmation email. It is the loop's one external,
// swappable collaborator; SMTPMailer is its production implementation.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a relay via gopkg.in/mail.v2.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Send dials Host:Port and delivers a single plain-text message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.From, m.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := mail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	return dialer.DialAndSend(msg)
}

// Loop generates, sends, and verifies email one-time codes.
type Loop struct {
	cfg      *model.Config
	sessions *sessionstore.Store
	issuer   *jwtissuer.Issuer
	mailer   Mailer
	log      *logger.Log
}

// New returns a Loop sending mail through mailer.
func New(cfg *model.Config, sessions *sessionstore.Store, issuer *jwtissuer.Issuer, mailer Mailer, log *logger.Log) *Loop {
	return &Loop{cfg: cfg, sessions: sessions, issuer: issuer, mailer: mailer, log: log}
}

func generateCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return crockford.EncodeToString(buf)[:codeLength], nil
}

// Request implements spec.md §4.5's "Request": it persists an email
// session and sends the confirmation email carrying the /confirm URL. A
// send failure is reported without revealing whether the address exists,
// per spec.
func (l *Loop) Request(ctx context.Context, email, clientID, redirectURI, nonce string) error {
	sessionID, err := sessionstore.NewSessionID()
	if err != nil {
		return helpers.Wrap(helpers.InternalError, err)
	}

	code, err := generateCode()
	if err != nil {
		return helpers.Wrap(helpers.InternalError, err)
	}

	record := &sessionstore.Record{
		Kind:        sessionstore.KindEmail,
		Email:       email,
		ClientID:    clientID,
		Nonce:       nonce,
		RedirectURI: redirectURI,
		Code:        code,
	}
	if err := l.sessions.Put(ctx, sessionID, record, l.cfg.ExpireKeysDuration()); err != nil {
		return err
	}

	confirmURL := fmt.Sprintf("%s/confirm?session=%s&code=%s", l.cfg.BaseURL, url.QueryEscape(sessionID), url.QueryEscape(code))
	body := fmt.Sprintf("Confirm your address by visiting the following link:\n\n%s\n", confirmURL)

	if err := l.mailer.Send(ctx, email, "Confirm your address", body); err != nil {
		l.log.Error(err, "sending confirmation email", "session_id", sessionID)
		return helpers.Wrap(helpers.EmailSendFailure, err)
	}
	return nil
}

// VerifyResult is what a successful code verification produces.
type VerifyResult struct {
	JWT         string
	RedirectURI string
}

// Verify implements spec.md §4.5's "Verify": it compares the submitted
// code to the stored one in constant time via SessionStore, consuming the
// session on match, and issues the broker's JWT.
func (l *Loop) Verify(ctx context.Context, sessionID, code string) (*VerifyResult, error) {
	record, err := l.sessions.VerifyAndConsume(ctx, sessionID, code)
	if err != nil {
		return nil, err
	}

	jwt, err := l.issuer.Issue(record.Email, record.ClientID, record.Nonce)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{JWT: jwt, RedirectURI: record.RedirectURI}, nil
}
