package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	redisinfra "github.com/aryan0dhankhar/admindash/internal/infrastructure/redis"
)

// RedisUserStore keeps the JSON document in one key and its version counter
// in a sibling key. Saves run under WATCH on the counter.
type RedisUserStore struct {
	client *redisinfra.Client
	docKey string
	verKey string
	logger *slog.Logger
}

// NewRedisUserStore creates a store under the given key prefix
func NewRedisUserStore(client *redisinfra.Client, key string, logger *slog.Logger) *RedisUserStore {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		key = "admindash:users"
	}
	return &RedisUserStore{
		client: client,
		docKey: key,
		verKey: key + ":version",
		logger: logger,
	}
}

// Load reads the document and its version
func (s *RedisUserStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	vals, err := s.client.MGet(ctx, s.docKey, s.verKey)
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", s.docKey, err)
	}

	doc, _ := vals[0].(string)
	version, err := parseVersion(vals[1])
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", s.verKey, err)
	}

	users, err := decodeUsers([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("decode user document %s: %w", s.docKey, err)
	}
	return &domain.Snapshot{Users: users, Version: version}, nil
}

// Save replaces the document when the version counter still equals expected
func (s *RedisUserStore) Save(ctx context.Context, users []domain.User, expected uint64) (uint64, error) {
	data, err := encodeUsers(users)
	if err != nil {
		return 0, err
	}

	var next uint64
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, s.verKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseVersion(raw)
		if err != nil {
			return err
		}
		if current != expected {
			return fmt.Errorf("%w: redis version %d, expected %d", domain.ErrStaleSnapshot, current, expected)
		}

		var incr *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.docKey, data, 0)
			incr = pipe.Incr(ctx, s.verKey)
			return nil
		})
		if err != nil {
			return err
		}
		next = uint64(incr.Val())
		return nil
	}

	err = s.client.Watch(ctx, txf, s.verKey)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, fmt.Errorf("%w: concurrent redis write", domain.ErrStaleSnapshot)
	}
	if err != nil {
		if errors.Is(err, domain.ErrStaleSnapshot) {
			return 0, err
		}
		return 0, fmt.Errorf("redis save %s: %w", s.docKey, err)
	}
	return next, nil
}

// Ping checks the redis connection
func (s *RedisUserStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func parseVersion(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		if t == "" {
			return 0, nil
		}
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid version %q: %w", t, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected version type %T", v)
	}
}
