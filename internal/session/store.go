package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/metrics"
	"github.com/parallaxlabs/deepresearch/internal/research"
)

const (
	checkpointKeyPrefix = "session:"
	memoryKeyPrefix     = "memory:"

	defaultCheckpointTTL = 24 * time.Hour
	maxMemoryEntries     = 200
)

// Store persists session checkpoints and long-term memory in Redis.
type Store struct {
	redis  *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStore creates a Store. A zero ttl uses the default of 24h.
func NewStore(client *redis.Client, logger *zap.Logger, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultCheckpointTTL
	}
	return &Store{
		redis:  client,
		logger: logger,
		ttl:    ttl,
	}
}

func checkpointKey(sessionID string) string {
	return checkpointKeyPrefix + sessionID
}

func memoryKey(userID string) string {
	return memoryKeyPrefix + userID
}

// SaveCheckpoint stores the state as the session's latest checkpoint,
// overwriting any previous one and refreshing the TTL.
func (s *Store) SaveCheckpoint(ctx context.Context, sessionID, userID string, st *research.State) error {
	now := time.Now().UTC()
	cp := Checkpoint{
		SessionID: sessionID,
		UserID:    userID,
		State:     st,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Preserve the original creation time across overwrites.
	if prev, err := s.GetCheckpoint(ctx, sessionID); err == nil {
		cp.CreatedAt = prev.CreatedAt
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.redis.Set(ctx, checkpointKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	metrics.CheckpointsSaved.Inc()
	s.logger.Debug("Checkpoint saved",
		zap.String("session_id", sessionID),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// GetCheckpoint returns the latest checkpoint for the session, or
// ErrNotFound when none exists (or it expired).
func (s *Store) GetCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error) {
	data, err := s.redis.Get(ctx, checkpointKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// DeleteCheckpoint removes the session's checkpoint. Deleting a missing
// checkpoint is not an error.
func (s *Store) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, checkpointKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// AppendMemory records one long-term memory entry for the user. The list
// is trimmed to the newest maxMemoryEntries records.
func (s *Store) AppendMemory(ctx context.Context, userID string, value map[string]interface{}) error {
	entry := MemoryEntry{
		ID:        uuid.New().String(),
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal memory entry: %w", err)
	}

	key := memoryKey(userID)
	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxMemoryEntries, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append memory: %w", err)
	}

	s.logger.Debug("Memory appended", zap.String("user_id", userID))
	return nil
}

// ListMemories returns the user's memory entries, oldest first. A user
// with no memories gets an empty slice.
func (s *Store) ListMemories(ctx context.Context, userID string) ([]MemoryEntry, error) {
	raw, err := s.redis.LRange(ctx, memoryKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	entries := make([]MemoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry MemoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("Skipping corrupt memory entry", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
