package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xdispatch"
	"github.com/trickstertwo/xlog"
)

var _ xdispatch.Observer = (*Sink)(nil)

// ErrSinkClosed is returned by Publish after Close.
var ErrSinkClosed = errors.New("redisstream: sink closed")

// Sink is an xdispatch.Observer that appends notifications to a Redis Stream. Write failures
// are logged and counted; they never reach the dispatcher.
type Sink struct {
	cfg    Config
	client *redis.Client
	codec  xdispatch.Codec
	logger *xlog.Logger
	types  map[xdispatch.NotificationType]struct{}

	published atomic.Uint64
	failed    atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewSink connects to Redis and verifies the connection with PING.
func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := xdispatch.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}
	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}

	s := &Sink{
		cfg:    cfg,
		client: client,
		codec:  codec,
		logger: xlog.Default(),
	}
	if len(cfg.Types) > 0 {
		s.types = make(map[xdispatch.NotificationType]struct{}, len(cfg.Types))
		for _, t := range cfg.Types {
			s.types[t] = struct{}{}
		}
	}
	return s, nil
}

// WithLogger replaces the logger used for write failures.
func (s *Sink) WithLogger(l *xlog.Logger) *Sink {
	if l != nil {
		s.logger = l
	}
	return s
}

// OnNotify writes n to the stream, bounded by the configured timeout.
func (s *Sink) OnNotify(n xdispatch.Notification) {
	if !s.accepts(n.Type) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if err := s.Publish(ctx, n); err != nil && !errors.Is(err, ErrSinkClosed) {
		s.logger.Warn().
			Err(err).
			Str("stream", s.cfg.Stream).
			Str("type", string(n.Type)).
			Msg("redisstream: notification write failed")
	}
}

// Publish appends notifications in a single pipeline round trip.
func (s *Sink) Publish(ctx context.Context, ns ...xdispatch.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	if s.closed.Load() {
		return ErrSinkClosed
	}

	pipe := s.client.Pipeline()
	for _, n := range ns {
		payload, err := s.codec.Marshal(n)
		if err != nil {
			s.failed.Add(1)
			return fmt.Errorf("redisstream: encode %s: %w", n.Type, err)
		}
		pipe.XAdd(ctx, s.xaddArgs(n, payload))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.failed.Add(uint64(len(ns)))
		return err
	}
	s.published.Add(uint64(len(ns)))
	return nil
}

func (s *Sink) xaddArgs(n xdispatch.Notification, payload []byte) *redis.XAddArgs {
	vals := make(map[string]any, 9)
	vals[fieldType] = string(n.Type)
	vals[fieldApp] = n.Application
	vals[fieldCodec] = s.codec.Name()
	vals[fieldPayload] = payload
	vals[fieldAt] = n.At.UnixNano()
	if n.EventID != "" {
		vals[fieldEventID] = n.EventID
	}
	if n.EventType != "" {
		vals[fieldEventType] = n.EventType
	}
	if n.Worker != "" {
		vals[fieldWorker] = n.Worker
	}
	if n.Err != nil {
		vals[fieldErr] = n.Err.Error()
	}

	args := &redis.XAddArgs{
		Stream: s.cfg.Stream,
		ID:     "*",
		Values: vals,
	}
	if s.cfg.MaxLenApprox > 0 {
		args.MaxLen = s.cfg.MaxLenApprox
		args.Approx = true
	}
	return args
}

func (s *Sink) accepts(t xdispatch.NotificationType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Stats returns the number of notifications written and failed.
func (s *Sink) Stats() (published, failed uint64) {
	return s.published.Load(), s.failed.Load()
}

// Close releases the Redis connection. Idempotent.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.client.Close()
	})
	return err
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}

	return nil
}
