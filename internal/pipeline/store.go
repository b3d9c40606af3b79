package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL はパイプライン状態の保持期間。
const DefaultStateTTL = 24 * time.Hour

// DefaultSendLockTTL は送信ロックの保持期間。
// 送信処理がこの時間を超えて異常終了した場合でもロックは自動的に解放される。
const DefaultSendLockTTL = 30 * time.Second

// StateStore はパイプライン状態の永続化インターフェース。
type StateStore interface {
	// Load はユーザーの状態を取得する。存在しない場合はnilを返す。
	Load(ctx context.Context, userID string) (*State, error)
	// Save はユーザーの状態を保存し、保持期間を延長する。
	Save(ctx context.Context, userID string, state *State) error
	// Delete はユーザーの状態を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID string) error
	// AcquireSendLock は送信ロックを取得する。既に取得されている場合はfalseを返す。
	AcquireSendLock(ctx context.Context, userID string) (bool, error)
	// ReleaseSendLock は送信ロックを解放する。
	ReleaseSendLock(ctx context.Context, userID string) error
}

// RedisStateStore はRedisを使用したStateStoreの実装。
type RedisStateStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisStateStore はRedisStateStoreを生成する。
func NewRedisStateStore(client redis.UniversalClient, ttl, lockTTL time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultSendLockTTL
	}
	return &RedisStateStore{client: client, ttl: ttl, lockTTL: lockTTL}
}

func stateKey(userID string) string {
	return "pipeline:" + userID
}

func sendLockKey(userID string) string {
	return "pipeline:" + userID + ":send"
}

// Load はユーザーの状態を取得する。
func (s *RedisStateStore) Load(ctx context.Context, userID string) (*State, error) {
	raw, err := s.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline state: %w", err)
	}
	return &state, nil
}

// Save はユーザーの状態を保存する。
func (s *RedisStateStore) Save(ctx context.Context, userID string, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pipeline state: %w", err)
	}
	return nil
}

// Delete はユーザーの状態を削除する。
func (s *RedisStateStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete pipeline state: %w", err)
	}
	return nil
}

// AcquireSendLock はSET NXで送信ロックを取得する。
func (s *RedisStateStore) AcquireSendLock(ctx context.Context, userID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, sendLockKey(userID), "1", s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire send lock: %w", err)
	}
	return ok, nil
}

// ReleaseSendLock は送信ロックを解放する。
func (s *RedisStateStore) ReleaseSendLock(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sendLockKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release send lock: %w", err)
	}
	return nil
}

var _ StateStore = (*RedisStateStore)(nil)
