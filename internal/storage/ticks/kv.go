package ticks

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vadiminshakov/gowal"
)

// KV is the durable substrate the serialized tick log is written to. Save
// and Load are synchronous and potentially slow; callers batch their saves
// rather than writing on every tick.
type KV interface {
	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key, value string) error
	// Load returns the stored value and whether the key was present.
	Load(ctx context.Context, key string) (string, bool, error)
	// Close releases the substrate.
	Close() error
}

const (
	walSegmentThreshold = 100
	walMaxSegments      = 10
)

// WALKV stores snapshots in a write-ahead log on local disk. Load replays
// the log and keeps the newest value per key.
type WALKV struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALKV opens or creates the WAL in dir.
func NewWALKV(dir string) (*WALKV, error) {
	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "ticklog_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init tick log WAL")
	}
	return &WALKV{wal: w}, nil
}

// Save appends the value under key at the next WAL index.
func (w *WALKV) Save(_ context.Context, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.wal.Write(w.wal.CurrentIndex()+1, key, []byte(value)); err != nil {
		return errors.Wrapf(err, "write %s to WAL", key)
	}
	return nil
}

// Load scans the WAL and returns the most recent value written under key.
func (w *WALKV) Load(_ context.Context, key string) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var value []byte
	found := false
	for m := range w.wal.Iterator() {
		if m.Key == key {
			value = m.Value
			found = true
		}
	}
	return string(value), found, nil
}

// Close closes the underlying WAL.
func (w *WALKV) Close() error {
	return w.wal.Close()
}

// RedisKV stores snapshots in Redis.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to the Redis instance at addr and verifies the
// connection.
func NewRedisKV(ctx context.Context, addr string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	return &RedisKV{client: client}, nil
}

// Save stores value under key without expiry.
func (r *RedisKV) Save(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

// Load fetches the value under key; a missing key is not an error.
func (r *RedisKV) Load(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return val, true, nil
}

// Close closes the Redis client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// MemoryKV is an in-process substrate used in tests.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory substrate.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Save stores value under key.
func (m *MemoryKV) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Load returns the value under key.
func (m *MemoryKV) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Close is a no-op.
func (m *MemoryKV) Close() error {
	return nil
}
