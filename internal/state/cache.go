package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"presales/internal/models"
	"presales/internal/redis"

	"go.uber.org/zap"
)

const (
	redisInvalidateChannel = "presales:conversation:invalidate"
	redisStateTTL          = 30 * time.Minute
)

type invalidateMessage struct {
	SessionID string `json:"session_id"`
	Origin    string `json:"origin"`
}

// redisCache shares conversation snapshots between instances and
// broadcasts invalidations so peers drop stale in-memory copies.
type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

func newRedisCache(client *redis.Client, log *zap.Logger) *redisCache {
	if client == nil {
		return nil
	}
	return &redisCache{client: client, logger: log}
}

func conversationKey(sessionID string) string {
	return fmt.Sprintf("presales:conversation:%s", sessionID)
}

// startListener delivers invalidations until ctx is cancelled.
func (r *redisCache) startListener(ctx context.Context, handler func(invalidateMessage)) {
	if r == nil || handler == nil {
		return
	}
	pubsub, err := r.client.Subscribe(ctx, redisInvalidateChannel)
	if err != nil {
		r.logger.Warn("conversation invalidation subscribe failed", zap.Error(err))
		return
	}
	// wait for the subscription to be confirmed so publishes are not missed
	if _, err := pubsub.Receive(ctx); err != nil {
		r.logger.Warn("conversation invalidation subscribe failed", zap.Error(err))
		pubsub.Close()
		return
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					r.logger.Warn("conversation invalidation decode failed", zap.Error(err))
					continue
				}
				handler(inv)
			}
		}
	}()
}

func (r *redisCache) publishInvalidation(ctx context.Context, msg invalidateMessage) {
	if r == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Warn("conversation invalidation marshal failed", zap.Error(err))
		return
	}
	if err := r.client.Publish(ctx, redisInvalidateChannel, payload); err != nil {
		r.logger.Warn("conversation invalidation publish failed", zap.Error(err))
	}
}

func (r *redisCache) store(ctx context.Context, conv *models.Conversation) {
	if r == nil || conv == nil || conv.SessionID == "" {
		return
	}
	data, err := json.Marshal(conv)
	if err != nil {
		r.logger.Warn("conversation cache marshal failed", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, conversationKey(conv.SessionID), data, redisStateTTL); err != nil {
		r.logger.Warn("conversation cache write failed", zap.String("session_id", conv.SessionID), zap.Error(err))
	}
}

func (r *redisCache) load(ctx context.Context, sessionID string) (*models.Conversation, bool) {
	if r == nil || sessionID == "" {
		return nil, false
	}
	raw, err := r.client.Get(ctx, conversationKey(sessionID))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			r.logger.Warn("conversation cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, false
	}
	var conv models.Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		r.logger.Warn("conversation cache decode failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	return &conv, true
}

func (r *redisCache) invalidate(ctx context.Context, sessionID string) {
	if r == nil || sessionID == "" {
		return
	}
	if err := r.client.Del(ctx, conversationKey(sessionID)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		r.logger.Warn("conversation cache delete failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
