package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/data/pgxutil"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

const (
	languageCachePrefix = "lang:"
	languageCacheTTL    = time.Hour
)

// LanguageRepo resolves language names, caching them in Redis. Names appear
// verbatim in every notification message, so lookups are hot; they change
// essentially never, so a long TTL is safe. A nil Redis client degrades to
// database-only lookups.
type LanguageRepo struct {
	DB    *sql.DB
	cache redis.UniversalClient
}

var _ core.LanguageDirectory = (*LanguageRepo)(nil)

// NewLanguageRepo creates a new LanguageRepo with the given Redis client.
func NewLanguageRepo(db *sql.DB, cache redis.UniversalClient) *LanguageRepo {
	return &LanguageRepo{DB: db, cache: cache}
}

// LanguageName resolves a language id to its display name.
func (r *LanguageRepo) LanguageName(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("language id is required")
	}

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, languageCachePrefix+id).Result()
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redis.Nil) {
			// Cache trouble is not fatal; fall through to the database.
			_ = err
		}
	}

	var name string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT name FROM languages WHERE id = $1`, id).Scan(&name)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFoundf("language %s not found", id)
		}
		return "", fmt.Errorf("get language name: %w", err)
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, languageCachePrefix+id, name, languageCacheTTL).Err()
	}
	return name, nil
}

// RedisConfig holds configuration for the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a new Redis client with the given configuration.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
