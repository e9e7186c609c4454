// Package store persists small string records by key. It backs the
// preference store; every backend keeps one value per key.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for a key that was never set.
var ErrNotFound = errors.New("store: key not found")

// KV is a string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Pinger is implemented by networked backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Memory is a process-local KV, lost on restart.
type Memory struct {
	m *xsync.Map[string, string]
}

func NewMemory() *Memory {
	return &Memory{m: xsync.NewMap[string, string]()}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.m.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.m.Store(key, value)
	return nil
}

const (
	connectAttempts = 5
	connectDelay    = 500 * time.Millisecond
)

// connectWithRetry retries fn with exponential backoff until it succeeds,
// attempts run out or ctx is done.
func connectWithRetry(ctx context.Context, logger *zap.Logger, backend string, fn func(context.Context) error) error {
	return retry.Do(
		func() error { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("store connect failed, retrying",
				zap.String("backend", backend),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", connectAttempts),
				zap.Error(err),
			)
		}),
	)
}
