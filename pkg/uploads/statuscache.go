package uploads

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "upload:session:"

// StatusCache keeps completed session statuses hot in Redis, sparing the
// registry a read per poll once a session has finished. Only terminal
// statuses are cached; misses fall through to the store.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) Get(ctx context.Context, sessionID string) (*SessionStatus, bool) {
	raw, err := c.client.Get(ctx, statusKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Warn("status cache read failed")
		}
		return nil, false
	}

	var status SessionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		logger.Log.WithError(err).Warn("status cache entry corrupt")
		return nil, false
	}
	return &status, true
}

func (c *StatusCache) Set(ctx context.Context, sessionID string, status *SessionStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statusKeyPrefix+sessionID, raw, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("status cache write failed")
	}
}
