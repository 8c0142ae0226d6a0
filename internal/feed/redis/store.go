// Package redis implements a notification backend on Redis.
//
// Each notification is a JSON string under <prefix>:notification:<id>.
// A user's pending notifications are indexed in the sorted set
// <prefix>:user:<id>:feed scored by creation time in milliseconds, and every
// change is announced on the <prefix>:user:<id>:events channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/model"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "nudge"

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store is a Redis-backed feed.Backend.
type Store struct {
	rdb    *goredis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

var _ feed.Backend = (*Store)(nil)

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, feed.Wrap(feed.BackendRedis, "connect", fmt.Errorf("ping %s: %w", cfg.Addr, err))
	}

	s := NewWithClient(rdb, cfg.Prefix, logger)
	s.logger.Info("redis connection established", "addr", cfg.Addr, "db", cfg.DB)
	return s, nil
}

// NewWithClient wraps an existing client. Close closes rdb.
func NewWithClient(rdb *goredis.Client, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) notificationKey(id string) string {
	return s.prefix + ":notification:" + id
}

func (s *Store) feedKey(userID string) string {
	return s.prefix + ":user:" + userID + ":feed"
}

func (s *Store) eventsChannel(userID string) string {
	return s.prefix + ":user:" + userID + ":events"
}

func (s *Store) claimsKey() string {
	return s.prefix + ":claims"
}

// List returns userID's pending notifications, oldest first.
func (s *Store) List(ctx context.Context, userID string) ([]model.Notification, error) {
	ids, err := s.rdb.ZRange(ctx, s.feedKey(userID), 0, -1).Result()
	if err != nil {
		return nil, feed.Wrap(feed.BackendRedis, "list", err)
	}
	if len(ids) == 0 {
		return []model.Notification{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.notificationKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, feed.Wrap(feed.BackendRedis, "list", err)
	}

	ns := make([]model.Notification, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Indexed but the record is gone
			continue
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.logger.Debug("skipping malformed record", "key", keys[i], "error", err)
			continue
		}
		ns = append(ns, n)
	}
	return feed.Snapshot(ns, userID), nil
}

// Watch subscribes to userID's change channel and delivers a fresh
// snapshot on subscription and after every message.
func (s *Store) Watch(ctx context.Context, userID string, fn func([]model.Notification)) error {
	sub := s.rdb.Subscribe(ctx, s.eventsChannel(userID))
	defer sub.Close()

	// Wait for the subscription so no change between here and the first
	// snapshot is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return feed.Wrap(feed.BackendRedis, "watch", err)
	}

	snapshot, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	fn(snapshot)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return feed.Wrap(feed.BackendRedis, "watch", errors.New("subscription closed"))
			}
			snapshot, err := s.List(ctx, userID)
			if err != nil {
				return err
			}
			s.logger.Debug("feed changed", "channel", msg.Channel, "id", msg.Payload, "size", len(snapshot))
			fn(snapshot)
		}
	}
}

// Create stores a new notification and announces it.
func (s *Store) Create(ctx context.Context, userID string, p model.Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	now := s.now().UTC()
	id, err := model.NewID(now)
	if err != nil {
		return "", err
	}
	n := p.Materialize(id, userID, now)
	if err := n.Validate(); err != nil {
		return "", err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.notificationKey(id), data, 0)
		pipe.ZAdd(ctx, s.feedKey(userID), goredis.Z{
			Score:  float64(n.CreatedAt.UnixMilli()),
			Member: id,
		})
		return nil
	})
	if err != nil {
		return "", feed.Wrap(feed.BackendRedis, "create", err)
	}

	s.announce(ctx, userID, id)
	s.logger.Debug("created notification", "id", id, "user", userID, "type", n.Type)
	return id, nil
}

// Dismiss marks id dismissed and drops it from its user's feed.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	raw, err := s.rdb.Get(ctx, s.notificationKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return feed.Wrap(feed.BackendRedis, "dismiss", fmt.Errorf("%s: %w", id, feed.ErrNotFound))
	}
	if err != nil {
		return feed.Wrap(feed.BackendRedis, "dismiss", err)
	}

	var n model.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return feed.Wrap(feed.BackendRedis, "dismiss", err)
	}
	n.Dismissed = true

	data, err := json.Marshal(n)
	if err != nil {
		return feed.Wrap(feed.BackendRedis, "dismiss", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.notificationKey(id), data, 0)
		pipe.ZRem(ctx, s.feedKey(n.UserID), id)
		return nil
	})
	if err != nil {
		return feed.Wrap(feed.BackendRedis, "dismiss", err)
	}

	s.announce(ctx, n.UserID, id)
	return nil
}

// Claim pushes a claim record for the gamification consumer.
func (s *Store) Claim(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(feed.NewClaim(n, s.now().Unix()))
	if err != nil {
		return feed.Wrap(feed.BackendRedis, "claim", err)
	}
	return feed.Wrap(feed.BackendRedis, "claim", s.rdb.LPush(ctx, s.claimsKey(), data).Err())
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// announce publishes id on userID's change channel.
func (s *Store) announce(ctx context.Context, userID, id string) {
	if err := s.rdb.Publish(ctx, s.eventsChannel(userID), id).Err(); err != nil {
		s.logger.Warn("failed to publish change", "user", userID, "id", id, "error", err)
	}
}
