package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/config"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

const redisPingTimeout = 3 * time.Second

var (
	_ ports.QuoteRepository = (*RedisRepository)(nil)
	_ ports.HealthChecker   = (*RedisRepository)(nil)
)

// NewRedisClient connects to redis and verifies the connection with a ping.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.Port
	if port == 0 {
		port = config.DefaultRedisPort
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// RedisRepository stores each quote as a JSON string and keeps a sorted set
// of quote ids scored by creation time for listing.
//
// Keys live for the quote's remaining validity plus the retention window, so
// an expired quote is still readable (and reported as gone) until it is purged.
type RedisRepository struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisRepository creates a repository using keys under prefix.
func NewRedisRepository(client *redis.Client, prefix string, retention time.Duration) *RedisRepository {
	return &RedisRepository{client: client, prefix: prefix, retention: retention}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + "quote:" + id
}

func (r *RedisRepository) indexKey() string {
	return r.prefix + "quotes:by_created"
}

func (r *RedisRepository) ttl(expiresAt time.Time) time.Duration {
	if r.retention <= 0 {
		return 0
	}

	return max(time.Until(expiresAt), 0) + r.retention
}

// Get implements ports.QuoteRepository.
func (r *RedisRepository) Get(ctx context.Context, id string) (*domain.Quote, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewNotFoundError(entityQuote, id)
	}

	if err != nil {
		return nil, r.unavailable("get quote", err)
	}

	var rec quoteRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding quote %s: %w", id, err)
	}

	return rec.toDomain()
}

// Save implements ports.QuoteRepository using WATCH on the quote key.
func (r *RedisRepository) Save(ctx context.Context, q *domain.Quote, expectedVersion int64) error {
	key := r.key(q.ID)

	rec := toRecord(q)
	rec.Version = expectedVersion + 1

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding quote %s: %w", q.ID, err)
	}

	txf := func(tx *redis.Tx) error {
		var (
			current int64
			exists  bool
		)

		raw, err := tx.Get(ctx, key).Bytes()

		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var stored quoteRecord
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("decoding quote %s: %w", q.ID, err)
			}

			exists, current = true, stored.Version
		}

		if err := checkVersion(q.ID, exists, current, expectedVersion); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl(q.ExpiresAt))
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(q.CreatedAt.UnixNano()), Member: q.ID})

			return nil
		})

		return err
	}

	err = r.client.Watch(ctx, txf, key)

	switch {
	case err == nil:
		q.Version = rec.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.NewConflictError(entityQuote, "modified concurrently")
	case domain.IsConflict(err), domain.IsNotFound(err):
		return err
	default:
		return r.unavailable("save quote", err)
	}
}

// Delete implements ports.QuoteRepository.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, r.key(id))
		pipe.ZRem(ctx, r.indexKey(), id)

		return nil
	})
	if err != nil {
		return r.unavailable("delete quote", err)
	}

	if deleted.Val() == 0 {
		return domain.NewNotFoundError(entityQuote, id)
	}

	return nil
}

// List implements ports.QuoteRepository. Index entries whose key has been
// purged are removed as they are found.
func (r *RedisRepository) List(ctx context.Context, filter domain.QuoteFilter) ([]domain.QuoteSummary, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, r.unavailable("list quotes", err)
	}

	if len(ids) == 0 {
		return []domain.QuoteSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, r.unavailable("list quotes", err)
	}

	var (
		summaries = make([]domain.QuoteSummary, 0, len(values))
		stale     []any
	)

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}

		var rec quoteRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decoding quote %s: %w", ids[i], err)
		}

		summaries = append(summaries, rec.summary())
	}

	if len(stale) > 0 {
		_ = r.client.ZRem(ctx, r.indexKey(), stale...).Err()
	}

	return selectSummaries(summaries, filter), nil
}

// Name implements ports.HealthChecker.
func (r *RedisRepository) Name() string {
	return "redis"
}

// Check implements ports.HealthChecker.
func (r *RedisRepository) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, domain.NewUnavailableError("redis", err.Error()))
}
