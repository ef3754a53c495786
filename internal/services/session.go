package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

// SessionService stores conversational context blobs keyed by session ID.
// The cache is the only store; an expired session is simply gone, which is
// the intended lifecycle.
type SessionService interface {
	// GetContext returns cache.ErrCacheMiss for unknown or expired sessions.
	GetContext(ctx context.Context, sessionID string) (json.RawMessage, error)
	SetContext(ctx context.Context, sessionID string, blob json.RawMessage) error
}

type sessionService struct {
	log   *logger.Logger
	cache cache.Cache
	ttl   time.Duration
}

func NewSessionService(log *logger.Logger, c cache.Cache) (SessionService, error) {
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	svcLog := log.With("service", "SessionService")
	ttlSeconds := utils.GetEnvAsInt("CACHE_SESSION_TTL", int((30 * time.Minute).Seconds()), svcLog)
	return &sessionService{
		log:   svcLog,
		cache: c,
		ttl:   time.Duration(ttlSeconds) * time.Second,
	}, nil
}

func (s *sessionService) GetContext(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session ID required")
	}
	raw, err := s.cache.Get(ctx, cache.SessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (s *sessionService) SetContext(ctx context.Context, sessionID string, blob json.RawMessage) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session ID required")
	}
	if !json.Valid(blob) {
		return fmt.Errorf("session context must be valid JSON")
	}
	return s.cache.Set(ctx, cache.SessionKey(sessionID), blob, s.ttl)
}
