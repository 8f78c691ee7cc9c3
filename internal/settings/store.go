// Package settings reads and writes the flat key/value settings table.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"whatsapp-sales-workers/internal/common/database"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Known keys.
const (
	KeyHotLeadThreshold  = "hot_lead_threshold"
	KeyAntiBanMinDelay   = "anti_ban_min_delay"
	KeyAntiBanMaxDelay   = "anti_ban_max_delay"
	KeyAntiBanTyping     = "anti_ban_typing_enabled"
	KeyAutoReplyEnabled  = "auto_reply_enabled"
	KeyCoPilotEnabled    = "co_pilot_enabled"
	KeyTelegramBotToken  = "telegram_bot_token"
	KeyTelegramChatID    = "telegram_chat_id"
	KeyWhatsAppAutoStart = "whatsapp_auto_connect"
)

const (
	cachePrefix = "settings:"
	cacheTTL    = 5 * time.Minute
)

// Defaults are used when a key is missing or unusable.
type Defaults struct {
	HotLeadThreshold int
	AntiBan          AntiBan
}

type AntiBan struct {
	MinDelay      time.Duration `json:"minDelay"`
	MaxDelay      time.Duration `json:"maxDelay"`
	TypingEnabled bool          `json:"typingEnabled"`
}

// Store reads settings from Postgres through an optional Redis cache.
type Store struct {
	db       *sql.DB
	redis    *redis.Client
	defaults Defaults
	log      logger.Logger
}

// NewStore builds a Store. redisClient may be nil to disable caching.
func NewStore(db *sql.DB, redisClient *redis.Client, defaults Defaults, log logger.Logger) *Store {
	return &Store{
		db:       db,
		redis:    redisClient,
		defaults: defaults,
		log:      log.WithFields(map[string]interface{}{"component": "settings"}),
	}
}

// Get returns the value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, cachePrefix+key).Result()
		switch {
		case err == nil:
			return val, true, nil
		case !errors.Is(err, redis.Nil):
			s.log.Warn("settings cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(value, '') FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewQueryExecutionError("get setting", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cachePrefix+key, value, cacheTTL).Err(); err != nil {
			s.log.Warn("settings cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return value, true, nil
}

const upsertSQL = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all values in one transaction and invalidates their cache entries.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, upsertSQL, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewQueryExecutionError("set settings", err)
	}

	if s.redis != nil {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, cachePrefix+k)
		}
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			s.log.Warn("settings cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// All returns every setting, bypassing the cache.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, COALESCE(value, '') FROM settings`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("list settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, apperrors.NewQueryExecutionError("list settings", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("list settings", err)
	}
	return out, nil
}

// Int returns def when the key is missing. An unparseable value yields def and a ConfigurationError.
func (s *Store) Int(ctx context.Context, key string, def int) (int, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return def, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, apperrors.NewConfigurationError(key, "not an integer: "+strconv.Quote(raw))
	}
	return v, nil
}

// Bool is Int for "true"/"false" values.
func (s *Store) Bool(ctx context.Context, key string, def bool) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, apperrors.NewConfigurationError(key, "not a boolean: "+strconv.Quote(raw))
	}
	return v, nil
}

// HotLeadThreshold returns the configured threshold, or the default with a ConfigurationError
// when the stored value is unusable.
func (s *Store) HotLeadThreshold(ctx context.Context) (int, error) {
	v, err := s.Int(ctx, KeyHotLeadThreshold, s.defaults.HotLeadThreshold)
	if err != nil {
		return s.defaults.HotLeadThreshold, err
	}
	if v < 0 || v > 100 {
		return s.defaults.HotLeadThreshold, apperrors.NewConfigurationError(KeyHotLeadThreshold, "must be between 0 and 100")
	}
	return v, nil
}

// AntiBan returns the pacing settings. Unusable values fall back to defaults individually.
func (s *Store) AntiBan(ctx context.Context) (AntiBan, error) {
	out := s.defaults.AntiBan
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	minMs, err := s.Int(ctx, KeyAntiBanMinDelay, int(out.MinDelay/time.Millisecond))
	keep(err)
	maxMs, err := s.Int(ctx, KeyAntiBanMaxDelay, int(out.MaxDelay/time.Millisecond))
	keep(err)
	typing, err := s.Bool(ctx, KeyAntiBanTyping, out.TypingEnabled)
	keep(err)

	if minMs < 0 || maxMs < minMs {
		keep(apperrors.NewConfigurationError(KeyAntiBanMaxDelay, "anti-ban delays must satisfy 0 <= min <= max"))
		return out, firstErr
	}
	out.MinDelay = time.Duration(minMs) * time.Millisecond
	out.MaxDelay = time.Duration(maxMs) * time.Millisecond
	out.TypingEnabled = typing
	return out, firstErr
}
