package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"github.com/redis/go-redis/v9"
)

// StatusCache mirrors the latest heartbeat per agent into redis so external
// dashboards can read fleet state without touching the hub or the database.
// A nil receiver disables the mirror.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

func statusKey(agentID string) string {
	return fmt.Sprintf("laundropi:agent:%s:status", agentID)
}

// PublishHeartbeat stores the self-report with a TTL slightly past the
// staleness threshold, so key expiry doubles as an offline marker.
func (s *StatusCache) PublishHeartbeat(ctx context.Context, agentID string, status protocol.HeartbeatStatus) {
	if s == nil {
		return
	}
	b, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, statusKey(agentID), b, s.ttl).Err(); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("status cache write failed")
	}
}

// Drop removes the mirror entry on fleet removal.
func (s *StatusCache) Drop(ctx context.Context, agentID string) {
	if s == nil {
		return
	}
	if err := s.rdb.Del(ctx, statusKey(agentID)).Err(); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("status cache delete failed")
	}
}
