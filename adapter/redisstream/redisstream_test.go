package redisstream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xdispatch"
)

var auditType = xdispatch.NewType("audit", nil)

// auditEvent is a sample domain event for testing.
type auditEvent struct {
	xdispatch.Base
	fail bool
}

func (*auditEvent) Type() *xdispatch.Type { return auditType }

func (e *auditEvent) Run(context.Context) error {
	if e.fail {
		return errors.New("audit failed")
	}
	return nil
}

// redisConfig returns a sink config pointing at XDISPATCH_REDIS_ADDR, skipping the test when
// Redis is not reachable.
func redisConfig(t *testing.T) Config {
	addr := os.Getenv("XDISPATCH_REDIS_ADDR")
	if addr == "" {
		t.Skip("XDISPATCH_REDIS_ADDR not set")
	}

	cfg := Defaults()
	cfg.Addr = addr
	cfg.Password = os.Getenv("XDISPATCH_REDIS_PASSWORD")
	cfg.Stream = fmt.Sprintf("xdispatch-test-%d", time.Now().UnixNano())

	client := redisClient(cfg)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return cfg
}

func redisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// cleanupStream removes the test stream.
func cleanupStream(t *testing.T, client *redis.Client, stream string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.Del(ctx, stream).Err()
}

func TestDefaults_AreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"empty stream", func(c *Config) { c.Stream = "" }},
		{"negative max len", func(c *Config) { c.MaxLenApprox = -1 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"unknown codec", func(c *Config) { c.Codec = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{
		"addr":           "redis.internal:6380",
		"db":             3,
		"tls":            true,
		"stream":         "orders:dispatch",
		"max_len_approx": float64(500),
		"codec":          "msgpack",
		"timeout":        "750ms",
		"types":          []any{"handler_failed", "run_failed", 7},
	})

	assert.Equal(t, "redis.internal:6380", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.True(t, cfg.TLS)
	assert.Equal(t, "orders:dispatch", cfg.Stream)
	assert.Equal(t, int64(500), cfg.MaxLenApprox)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []xdispatch.NotificationType{xdispatch.HandlerFailed, xdispatch.RunFailed}, cfg.Types)
	require.NoError(t, cfg.Validate())
}

func TestConfigFromMap_Empty(t *testing.T) {
	cfg := ConfigFromMap(nil)
	assert.Equal(t, Defaults(), cfg)
}

func TestNewSink_InvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Stream = ""
	_, err := NewSink(cfg)
	require.Error(t, err)
}

func TestSink_Filter(t *testing.T) {
	s := &Sink{types: map[xdispatch.NotificationType]struct{}{xdispatch.RunFailed: {}}}
	assert.True(t, s.accepts(xdispatch.RunFailed))
	assert.False(t, s.accepts(xdispatch.Enqueued))

	all := &Sink{}
	assert.True(t, all.accepts(xdispatch.Enqueued))
}

func TestSink_XAddArgs(t *testing.T) {
	cfg := Defaults()
	cfg.Stream = "s"
	cfg.MaxLenApprox = 100
	s := &Sink{cfg: cfg, codec: xdispatch.JSONCodec{}}

	at := time.Unix(0, 42)
	args := s.xaddArgs(xdispatch.Notification{
		Type:        xdispatch.RunFailed,
		Application: "billing",
		EventID:     "id-1",
		EventType:   "audit",
		At:          at,
		Err:         errors.New("boom"),
	}, []byte("{}"))

	assert.Equal(t, "s", args.Stream)
	assert.Equal(t, int64(100), args.MaxLen)
	assert.True(t, args.Approx)

	vals, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run_failed", vals[fieldType])
	assert.Equal(t, "billing", vals[fieldApp])
	assert.Equal(t, "id-1", vals[fieldEventID])
	assert.Equal(t, "boom", vals[fieldErr])
	assert.Equal(t, "json", vals[fieldCodec])
	assert.Equal(t, int64(42), vals[fieldAt])
	assert.NotContains(t, vals, fieldWorker)
}

func TestSink_PublishAndClose(t *testing.T) {
	cfg := redisConfig(t)
	client := redisClient(cfg)
	defer client.Close()
	defer cleanupStream(t, client, cfg.Stream)

	sink, err := NewSink(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = sink.Publish(ctx,
		xdispatch.Notification{Type: xdispatch.Enqueued, Application: "test", EventID: "a", At: time.Now()},
		xdispatch.Notification{Type: xdispatch.RunDone, Application: "test", EventID: "a", At: time.Now()},
	)
	require.NoError(t, err)

	n, err := client.XLen(ctx, cfg.Stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	published, failed := sink.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Zero(t, failed)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Publish(ctx, xdispatch.Notification{Type: xdispatch.RunDone}), ErrSinkClosed)
}

func TestUse_ExportsFailures(t *testing.T) {
	cfg := redisConfig(t)
	cfg.Types = []xdispatch.NotificationType{xdispatch.RunFailed}
	client := redisClient(cfg)
	defer client.Close()
	defer cleanupStream(t, client, cfg.Stream)

	d, sink := Use(cfg, WithApplicationName("audit"), WithWorkerCount(2))
	defer sink.Close()
	defer d.Close(context.Background())
	assert.Same(t, d, xdispatch.Default())

	ok := &auditEvent{}
	bad := &auditEvent{fail: true}
	require.NoError(t, d.Dispatch(ok))
	require.NoError(t, d.Dispatch(bad))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, cfg.Stream).Result()
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)

	entries, err := client.XRange(ctx, cfg.Stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run_failed", entries[0].Values[fieldType])
	assert.Equal(t, bad.ID(), entries[0].Values[fieldEventID])
	assert.Equal(t, "audit failed", entries[0].Values[fieldErr])
	assert.Equal(t, "audit", entries[0].Values[fieldApp])
}
