// Package mirror copies messages received over the air to Redis, so other
// processes can read the latest payload of a node or subscribe to all of
// them.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/basilfx/go-e32"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// DefaultChannel is the channel on which received payloads are published.
const DefaultChannel = "e32"

// DefaultPrefix is prepended to every key.
const DefaultPrefix = "e32:"

type client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis stores and publishes payloads.
type Redis struct {
	client  client
	prefix  string
	channel string
	ttl     time.Duration
}

// Option is a functional option for configuring Redis.
type Option func(*Redis)

// WithPrefix sets the prefix of every key.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithChannel sets the publish channel.
func WithChannel(channel string) Option {
	return func(r *Redis) {
		r.channel = channel
	}
}

// WithTTL makes stored payloads expire. By default they never expire.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// New connects to the Redis server at addr, for example "localhost:6379".
func New(addr string, opts ...Option) *Redis {
	return newRedis(redis.NewClient(&redis.Options{
		Addr: addr,
	}), opts...)
}

func newRedis(c client, opts ...Option) *Redis {
	r := &Redis{
		client:  c,
		prefix:  DefaultPrefix,
		channel: DefaultChannel,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Update stores the payload under key, and publishes it.
func (r *Redis) Update(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.prefix+key, err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish on %s: %w", r.channel, err)
	}

	return nil
}

// Forward updates key with every message received by the link, until the
// context is done. Messages that cannot be stored are logged and skipped.
func (r *Redis) Forward(ctx context.Context, l *e32.Link, key string) {
	id, c := l.Register()
	defer l.Unregister(id)

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-c:
			if !ok {
				return
			}

			if err := r.Update(ctx, key, m.Payload); err != nil {
				log.Errorf("Unable to mirror message: %v", err)
				continue
			}

			log.Debugf("Mirrored %d bytes to %s.", len(m.Payload), r.prefix+key)
		}
	}
}

// Close closes the connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
