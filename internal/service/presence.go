package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/cache"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/metrics"
)

// DefaultPresenceTTL bounds how stale a cached presence read can be.
const DefaultPresenceTTL = 10 * time.Second

// PresenceService records client-reported presence.
type PresenceService struct {
	clock
	store  store.Store
	cache  cache.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewPresenceService creates a new presence service. c may be nil to read
// straight from the store.
func NewPresenceService(st store.Store, c cache.Cache, ttl time.Duration, log *logger.Logger) *PresenceService {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceService{store: st, cache: c, ttl: ttl, logger: log}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

// SetOnline stores the user's presence flag and stamps LastSeen with now,
// whatever the flag. Last write wins.
func (s *PresenceService) SetOnline(ctx context.Context, userID string, isOnline bool) (_ *model.Profile, err error) {
	ctx, span := startSpan(ctx, "PresenceService.SetOnline",
		attribute.String("user.id", userID),
		attribute.Bool("presence.online", isOnline),
	)
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, ErrUnauthenticated
	}

	now := s.now()
	if err := s.store.SetPresence(ctx, userID, isOnline, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, upstream("set presence", err)
	}
	metrics.RecordPresence(isOnline)

	if s.cache != nil {
		if _, err := s.cache.Del(ctx, presenceKey(userID)); err != nil {
			s.logger.Warn("failed to invalidate presence cache",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, upstream("reload user", err)
	}
	return u.Profile(), nil
}

// GetStatus returns a user's presence. Any caller may ask.
func (s *PresenceService) GetStatus(ctx context.Context, userID string) (_ *model.PresenceStatus, err error) {
	ctx, span := startSpan(ctx, "PresenceService.GetStatus",
		attribute.String("user.id", userID),
	)
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, invalidInput("user id is required")
	}

	if status, ok := s.cached(ctx, userID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return status, nil
	}

	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, upstream("load user", err)
	}

	status := &model.PresenceStatus{IsOnline: u.IsOnline, LastSeen: u.LastSeen}
	s.remember(ctx, userID, status)
	return status, nil
}

func (s *PresenceService) cached(ctx context.Context, userID string) (*model.PresenceStatus, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, presenceKey(userID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("presence cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}
	var status model.PresenceStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, false
	}
	return &status, true
}

func (s *PresenceService) remember(ctx context.Context, userID string, status *model.PresenceStatus) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, presenceKey(userID), string(data), s.ttl); err != nil {
		s.logger.Warn("presence cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}
