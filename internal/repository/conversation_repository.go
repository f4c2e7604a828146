// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kb-assist-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ConversationRepository 定义了对话历史记录的操作接口。
// 每个用户的历史以结构化问答轮次的 JSON 序列整体存取。
type ConversationRepository interface {
	GetTurns(ctx context.Context, userID uint) ([]model.ConversationTurn, error)
	SaveTurns(ctx context.Context, userID uint, turns []model.ConversationTurn) error
	Clear(ctx context.Context, userID uint) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	maxTurns    int
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
// maxTurns 限制持久化保留的最近轮数，0 表示不限制。
func NewConversationRepository(redisClient *redis.Client, maxTurns int) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, maxTurns: maxTurns}
}

func (r *redisConversationRepository) key(userID uint) string {
	return fmt.Sprintf("conversation:%d", userID)
}

// GetTurns 从 Redis 获取用户的全部对话轮次，按时间顺序排列。
func (r *redisConversationRepository) GetTurns(ctx context.Context, userID uint) ([]model.ConversationTurn, error) {
	jsonData, err := r.redisClient.Get(ctx, r.key(userID)).Result()
	if err == redis.Nil {
		return []model.ConversationTurn{}, nil // 尚无历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var turns []model.ConversationTurn
	if err := json.Unmarshal([]byte(jsonData), &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return turns, nil
}

// SaveTurns 在 Redis 中整体覆盖用户的对话历史。
func (r *redisConversationRepository) SaveTurns(ctx context.Context, userID uint, turns []model.ConversationTurn) error {
	// 仅保留最近 maxTurns 轮
	if r.maxTurns > 0 && len(turns) > r.maxTurns {
		turns = turns[len(turns)-r.maxTurns:]
	}
	jsonData, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, r.key(userID), jsonData, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

// Clear 清空用户的对话历史。
func (r *redisConversationRepository) Clear(ctx context.Context, userID uint) error {
	if err := r.redisClient.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation history: %w", err)
	}
	return nil
}
