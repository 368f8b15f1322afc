// Package sessioncache is the Session Cache component (spec §4.B): a
// sub-millisecond per-conversation hot buffer and per-user key/value store,
// backed by Redis exactly as the teacher's conversation repository was.
package sessioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"streamgate-go/internal/core"
	"streamgate-go/pkg/log"
)

const revokedSetKey = "auth:revoked"

// Config controls the hot buffer's cap and TTL (spec §6 HOT_MSG_LIMIT /
// HOT_TTL_MIN).
type Config struct {
	HotMsgLimit int
	HotTTL      time.Duration
}

type Cache struct {
	rdb *redis.Client
	cfg Config
}

func New(rdb *redis.Client, cfg Config) *Cache {
	if cfg.HotMsgLimit <= 0 {
		cfg.HotMsgLimit = 200
	}
	if cfg.HotTTL <= 0 {
		cfg.HotTTL = 60 * time.Minute
	}
	return &Cache{rdb: rdb, cfg: cfg}
}

func hotBufferKey(conversationID string) string {
	return fmt.Sprintf("conv:%s:messages", conversationID)
}

func personaKey(subject string) string {
	return fmt.Sprintf("user:persona:%s", subject)
}

func userKey(key, subject string) string {
	return fmt.Sprintf("user:%s:%s", key, subject)
}

// AppendChunk pushes entry onto the conversation's ordered hot buffer list,
// trims it to the configured cap, and refreshes the TTL. Per spec §4.B,
// failures here are reported to the caller, which treats them as
// non-fatal warnings rather than aborting the dispatch.
func (c *Cache) AppendChunk(ctx context.Context, conversationID string, entry core.HotBufferEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal hot buffer entry: %w", err)
	}
	key := hotBufferKey(conversationID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.LTrim(ctx, key, int64(-c.cfg.HotMsgLimit), -1)
	pipe.Expire(ctx, key, c.cfg.HotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append hot buffer entry: %w", err)
	}
	return nil
}

// ReadRecent returns up to the last n entries in insertion order.
func (c *Cache) ReadRecent(ctx context.Context, conversationID string, n int) ([]core.HotBufferEntry, error) {
	key := hotBufferKey(conversationID)
	raw, err := c.rdb.LRange(ctx, key, int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read hot buffer: %w", err)
	}
	entries := make([]core.HotBufferEntry, 0, len(raw))
	for _, r := range raw {
		var e core.HotBufferEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			log.Warnf("sessioncache: dropping malformed hot buffer entry for %s: %v", conversationID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetUserKey returns a per-user preference value, or ("", false) if unset.
func (c *Cache) GetUserKey(ctx context.Context, subject, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, userKey(key, subject)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get user key %s/%s: %w", subject, key, err)
	}
	return v, true, nil
}

// SetUserKey sets a per-user preference value with no expiry.
func (c *Cache) SetUserKey(ctx context.Context, subject, key, value string) error {
	if err := c.rdb.Set(ctx, userKey(key, subject), value, 0).Err(); err != nil {
		return fmt.Errorf("set user key %s/%s: %w", subject, key, err)
	}
	return nil
}

// GetPersona is sugar over GetUserKey for the "persona" preference, used by
// the Dispatcher at admission time.
func (c *Cache) GetPersona(ctx context.Context, subject string) (string, error) {
	v, err := c.rdb.Get(ctx, personaKey(subject)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get persona for %s: %w", subject, err)
	}
	return v, nil
}

// IsRevoked checks whether jwtID is present in the revocation set
// (spec §6 auth:revoked).
func (c *Cache) IsRevoked(ctx context.Context, jwtID string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, revokedSetKey, jwtID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation for %s: %w", jwtID, err)
	}
	return ok, nil
}

// Revoke adds jwtID to the revocation set. Not exercised by the core
// dispatch path; provided for completeness of the revocation contract the
// Auth Verifier depends on.
func (c *Cache) Revoke(ctx context.Context, jwtID string) error {
	return c.rdb.SAdd(ctx, revokedSetKey, jwtID).Err()
}
