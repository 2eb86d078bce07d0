// Package sessionstore backs the broker's session records with Redis,
// keyed by an opaque session-id with a per-key TTL.
package sessionstore

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"broker/pkg/helpers"
	"broker/pkg/logger"
	"broker/pkg/model"
)

// Kind enumerates the two authentication paths a session can carry.
type Kind string

const (
	KindOIDC  Kind = "oidc"
	KindEmail Kind = "email"
)

// Record is the session record persisted under a session-id, per spec.md §3.
type Record struct {
	Kind           Kind   `json:"kind"`
	Email          string `json:"email"`
	ClientID       string `json:"client_id"`
	Nonce          string `json:"nonce,omitempty"`
	RedirectURI    string `json:"redirect_uri"`
	Code           string `json:"code,omitempty"`
	ProviderDomain string `json:"provider_domain,omitempty"`
}

// Store is a Redis-backed session-id to Record mapping with TTL semantics.
type Store struct {
	client *redis.Client
	log    *logger.Log
}

// New dials Redis eagerly and returns a Store, mirroring the teacher's
// kvclient.New eager-connect shape.
func New(ctx context.Context, cfg *model.Config, log *logger.Log) (*Store, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("parsing redis_url: %w", err))
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("connecting to redis: %w", err))
	}

	log.Info("Started")
	return &Store{client: client, log: log}, nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// NewSessionID generates a cryptographically random 16-byte identifier
// rendered as lowercase hex, per spec.md §3.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	raw := id[:]
	return hex.EncodeToString(raw), nil
}

// Put inserts record under id with the given TTL. Overwrites are forbidden:
// a colliding id is reported as a fatal error rather than silently
// accepted, per spec.md §4.2.
func (s *Store) Put(ctx context.Context, id string, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("marshaling session record: %w", err))
	}

	ok, err := s.client.SetNX(ctx, id, raw, ttl).Result()
	if err != nil {
		return helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("storing session: %w", err))
	}
	if !ok {
		return helpers.New(helpers.StoreUnavailable)
	}
	return nil
}

// Get returns the record stored under id, or NotFound if absent or expired.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, helpers.New(helpers.NotFound)
		}
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("fetching session: %w", err))
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("unmarshaling session record: %w", err))
	}
	return &record, nil
}

// Delete removes id. It is idempotent: deleting an absent id is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, id).Err(); err != nil {
		return helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("deleting session: %w", err))
	}
	return nil
}

// VerifyAndConsume fetches and deletes id atomically via GETDEL, then
// compares its code to expectedCode in constant time. On match, the
// (already deleted) record is returned. On mismatch, the record is
// reinserted with its remaining TTL so the session survives for another
// attempt, per spec.md §4.2 — "the session is NOT deleted" on mismatch.
//
// The reinsert-after-GETDEL approach means a narrow window exists between
// the delete and the reinsert during which a concurrent verify_and_consume
// or get on the same id observes NotFound; this is an accepted limitation
// since the spec leaves multi-attempt policy open (see DESIGN.md).
func (s *Store) VerifyAndConsume(ctx context.Context, id string, expectedCode string) (*Record, error) {
	ttl, err := s.client.TTL(ctx, id).Result()
	if err != nil {
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("fetching session ttl: %w", err))
	}
	if ttl <= 0 {
		return nil, helpers.New(helpers.NotFound)
	}

	raw, err := s.client.GetDel(ctx, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, helpers.New(helpers.NotFound)
		}
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("consuming session: %w", err))
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, helpers.Wrap(helpers.StoreUnavailable, fmt.Errorf("unmarshaling session record: %w", err))
	}

	match := subtle.ConstantTimeCompare([]byte(record.Code), []byte(expectedCode)) == 1
	if match {
		return &record, nil
	}

	if err := s.client.Set(ctx, id, raw, ttl).Err(); err != nil {
		s.log.Error(err, "reinserting session after code mismatch")
	}
	return nil, helpers.New(helpers.Mismatch)
}
