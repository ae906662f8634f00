// Package state keeps conversation histories in memory, mirrors them to an
// optional shared Redis cache and persists them through a repository.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"presales/internal/models"
	"presales/internal/redis"
	"presales/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionOwnership is returned when a session id belongs to another user.
	ErrSessionOwnership = errors.New("session belongs to another user")
	// ErrVersionConflict is returned when a concurrent writer stored the
	// conversation first.
	ErrVersionConflict = storage.ErrVersionConflict
)

// Repository is the persistent conversation store.
type Repository interface {
	FindBySession(ctx context.Context, sessionID string) (*models.Conversation, error)
	Upsert(ctx context.Context, conv *models.Conversation) error
}

// Store resolves conversations through memory, Redis and the repository in
// that order. Values returned by Load are private copies.
type Store struct {
	repo     Repository
	cache    *redisCache
	logger   *zap.Logger
	instance string

	mu            sync.RWMutex
	conversations map[string]*models.Conversation
}

// NewStore builds a store. rdb may be nil for a single-instance deployment.
func NewStore(repo Repository, rdb *redis.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		repo:          repo,
		cache:         newRedisCache(rdb, log),
		logger:        log,
		instance:      uuid.NewString(),
		conversations: make(map[string]*models.Conversation),
	}
}

// Start subscribes to invalidations published by other instances.
func (s *Store) Start(ctx context.Context) {
	s.cache.startListener(ctx, func(msg invalidateMessage) {
		if msg.Origin == s.instance {
			return
		}
		s.forget(msg.SessionID)
	})
}

// Load returns the conversation for sessionID, or a fresh one owned by
// userID when none exists yet.
func (s *Store) Load(ctx context.Context, userID, sessionID string) (*models.Conversation, error) {
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}
	conv, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return &models.Conversation{UserID: userID, SessionID: sessionID}, nil
	}
	if conv.UserID != userID {
		return nil, ErrSessionOwnership
	}
	return conv, nil
}

func (s *Store) lookup(ctx context.Context, sessionID string) (*models.Conversation, error) {
	s.mu.RLock()
	cached, ok := s.conversations[sessionID]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	if conv, ok := s.cache.load(ctx, sessionID); ok {
		s.remember(conv)
		return conv, nil
	}

	conv, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	s.remember(conv)
	s.cache.store(ctx, conv)
	return conv.Clone(), nil
}

// Save persists conv. On ErrVersionConflict every cached copy is dropped so
// the next Load reads the winner's history.
func (s *Store) Save(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	if err := s.repo.Upsert(ctx, conv); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.forget(conv.SessionID)
			s.cache.invalidate(ctx, conv.SessionID)
			return ErrVersionConflict
		}
		return fmt.Errorf("save conversation: %w", err)
	}
	s.remember(conv)
	s.cache.store(ctx, conv)
	s.cache.publishInvalidation(ctx, invalidateMessage{SessionID: conv.SessionID, Origin: s.instance})
	return nil
}

// Forget drops any cached copy of the session.
func (s *Store) Forget(ctx context.Context, sessionID string) {
	s.forget(sessionID)
	s.cache.invalidate(ctx, sessionID)
}

func (s *Store) remember(conv *models.Conversation) {
	if conv == nil {
		return
	}
	s.mu.Lock()
	s.conversations[conv.SessionID] = conv.Clone()
	s.mu.Unlock()
}

func (s *Store) forget(sessionID string) {
	s.mu.Lock()
	delete(s.conversations, sessionID)
	s.mu.Unlock()
}
