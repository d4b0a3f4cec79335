// Package sink publishes game views to external subscribers.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"laughgame/internal/game"
	"laughgame/internal/viewmodel"
	"laughgame/pkg/realtime"
)

const publishTimeout = 2 * time.Second

// RedisOptions configures a RedisSink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisSink publishes every view as JSON on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
	log     *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewRedisSink creates a sink. It does not connect until used.
func NewRedisSink(opts RedisOptions, log *slog.Logger) *RedisSink {
	if log == nil {
		log = slog.Default()
	}
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		channel: opts.Channel,
		log:     log,
	}
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Encode returns the wire form of v.
func Encode(v viewmodel.View) ([]byte, error) {
	return json.Marshal(v)
}

// Publish sends one view.
func (s *RedisSink) Publish(ctx context.Context, v viewmodel.View) error {
	payload, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("redis publish: %w", err)
	}
	s.published.Add(1)
	return nil
}

// Run forwards snapshots from hub until ctx is done. Publish errors are
// logged and do not stop the loop.
func (s *RedisSink) Run(ctx context.Context, hub *realtime.Broadcaster[game.Snapshot]) error {
	sub := hub.Subscribe(64)
	defer hub.Unsubscribe(sub)
	s.log.Info("sink: publishing views", "channel", s.channel)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := s.Publish(pctx, viewmodel.FromSnapshot(snap, time.Now()))
			cancel()
			if err != nil {
				s.log.Warn("sink: publish failed", "channel", s.channel, "state", snap.State, "error", err)
			}
		}
	}
}

// Stats returns how many views were published and how many failed.
func (s *RedisSink) Stats() (published, failed uint64) {
	return s.published.Load(), s.failed.Load()
}

// Close releases the connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
