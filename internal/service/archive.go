package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adaptive-quiz/internal/cache"
	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/logger"

	"go.uber.org/zap"
)

// ErrArchivedStatsNotFound is returned when no archived stats exist for a session.
var ErrArchivedStatsNotFound = errors.New("archived session stats not found")

// SessionArchive keeps the final stats of ended sessions after they leave memory.
type SessionArchive interface {
	Put(ctx context.Context, stats *domain.StatsSummary) error
	Get(ctx context.Context, sessionID string) (*domain.StatsSummary, error)
}

type cacheSessionArchive struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewSessionArchive stores stats as JSON in cache. A nil cache gives a
// no-op archive.
func NewSessionArchive(c domain.Cache, ttl time.Duration) SessionArchive {
	if c == nil {
		logger.Get().Warn("SessionArchive initialized with nil cache. Archive will be no-op.")
		return noopSessionArchive{}
	}
	return &cacheSessionArchive{cache: c, ttl: ttl}
}

func (a *cacheSessionArchive) Put(ctx context.Context, stats *domain.StatsSummary) error {
	if stats == nil {
		return domain.NewValidationError("cannot archive nil stats")
	}
	key := cache.SessionStatsKey(stats.SessionID)
	data, err := json.Marshal(stats)
	if err != nil {
		return domain.NewInternalError("failed to marshal session stats", err)
	}
	if err := a.cache.Set(ctx, key, string(data), a.ttl); err != nil {
		return domain.NewInternalError(fmt.Sprintf("failed to archive session stats for key %s", key), err)
	}
	logger.Get().Debug("Archived session stats", zap.String("key", key), zap.Duration("ttl", a.ttl))
	return nil
}

func (a *cacheSessionArchive) Get(ctx context.Context, sessionID string) (*domain.StatsSummary, error) {
	key := cache.SessionStatsKey(sessionID)
	data, err := a.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, ErrArchivedStatsNotFound
		}
		return nil, domain.NewInternalError(fmt.Sprintf("failed to read archived stats for key %s", key), err)
	}
	if data == "" {
		return nil, ErrArchivedStatsNotFound
	}

	var stats domain.StatsSummary
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, domain.NewInternalError(fmt.Sprintf("failed to unmarshal archived stats for key %s", key), err)
	}
	return &stats, nil
}

type noopSessionArchive struct{}

func (noopSessionArchive) Put(context.Context, *domain.StatsSummary) error { return nil }

func (noopSessionArchive) Get(context.Context, string) (*domain.StatsSummary, error) {
	return nil, ErrArchivedStatsNotFound
}
