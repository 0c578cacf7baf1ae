package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"prepdeck/internal/apperrors"
	"prepdeck/internal/model"
)

// sessionTTL keeps abandoned-in-place sessions from lingering forever.
const sessionTTL = 2 * time.Hour

// SessionStore is the live session state store. Update enforces
// single-writer-per-key discipline through optimistic versioning: the write
// is rejected when the stored version no longer matches the version read at
// cycle start.
type SessionStore interface {
	Create(ctx context.Context, session *model.SessionState) error
	Get(ctx context.Context, id string) (*model.SessionState, error)
	Update(ctx context.Context, session *model.SessionState) error
	Delete(ctx context.Context, id string) error
}

type sessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a redis-backed session store.
func NewSessionStore(client *redis.Client) SessionStore {
	return &sessionStore{client: client}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (c *sessionStore) Create(ctx context.Context, session *model.SessionState) error {
	session.Version = 1
	session.UpdatedAt = time.Now()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := c.client.SetNX(ctx, sessionKey(session.ID), data, sessionTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewInvalidState("session " + session.ID + " already exists")
	}
	return nil
}

func (c *sessionStore) Get(ctx context.Context, id string) (*model.SessionState, error) {
	data, err := c.client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewNotFound("session", id)
		}
		return nil, err
	}
	var session model.SessionState
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Update writes the session back if and only if the stored version matches
// the version the caller read. The WATCH aborts the transaction when any
// other writer touches the key mid-cycle.
func (c *sessionStore) Update(ctx context.Context, session *model.SessionState) error {
	key := sessionKey(session.ID)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apperrors.NewNotFound("session", session.ID)
			}
			return err
		}

		var stored model.SessionState
		if err := json.Unmarshal([]byte(data), &stored); err != nil {
			return err
		}
		if stored.Version != session.Version {
			return apperrors.NewConcurrentModification(session.ID)
		}

		session.Version++
		session.UpdatedAt = time.Now()
		payload, err := json.Marshal(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, sessionTTL)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return apperrors.NewConcurrentModification(session.ID)
	}
	return err
}

func (c *sessionStore) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, sessionKey(id)).Err()
}
