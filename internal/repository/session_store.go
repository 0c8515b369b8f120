package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

const sessionKeyPrefix = "studio_session:"

// SessionStore keeps session snapshots in Redis so a restarted server can
// restore in-progress studio sessions.
type SessionStore interface {
	Save(ctx context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*models.SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisSessionStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSessionStore creates a Redis-backed SessionStore.
func NewRedisSessionStore(client *redis.Client, logger *zap.Logger) SessionStore {
	return &redisSessionStore{
		client: client,
		logger: logger.Named("RedisSessionStore"),
	}
}

func (s *redisSessionStore) Save(ctx context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("error marshaling session snapshot: %w", err)
	}
	key := sessionKeyPrefix + snapshot.SessionID
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Error("Failed to save session snapshot", zap.String("session_id", snapshot.SessionID), zap.Error(err))
		return fmt.Errorf("error saving session snapshot to redis: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Load(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSessionNotFound
		}
		s.logger.Error("Failed to load session snapshot", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("error loading session snapshot from redis: %w", err)
	}
	var snapshot models.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("error unmarshaling session snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		s.logger.Error("Failed to delete session snapshot", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("error deleting session snapshot from redis: %w", err)
	}
	return nil
}
