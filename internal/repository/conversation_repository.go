// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"annolab-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ConversationRepository 定义了问答对话历史记录的操作接口。
// 对话按 用户+项目 维度隔离，同一用户在不同项目里各有一条当前会话。
type ConversationRepository interface {
	GetOrCreateConversationID(ctx context.Context, userID, projectID uint) (string, error)
	ResetConversation(ctx context.Context, userID, projectID uint) error
	GetConversationHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
	UpdateConversationHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func (r *redisConversationRepository) currentKey(userID, projectID uint) string {
	return fmt.Sprintf("user:%d:project:%d:current_conversation", userID, projectID)
}

// GetOrCreateConversationID 获取或创建一个新的对话 ID。
func (r *redisConversationRepository) GetOrCreateConversationID(ctx context.Context, userID, projectID uint) (string, error) {
	userKey := r.currentKey(userID, projectID)
	convID, err := r.redisClient.Get(ctx, userKey).Result()
	if err == redis.Nil {
		// 以时间戳+用户 ID 拼出唯一 ID，避免引入 uuid 依赖
		convID = fmt.Sprintf("%d-%d", time.Now().UnixNano(), userID)
		if err := r.redisClient.Set(ctx, userKey, convID, 7*24*time.Hour).Err(); err != nil {
			return "", fmt.Errorf("failed to set conversation id: %w", err)
		}
		return convID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get conversation id: %w", err)
	}
	return convID, nil
}

// ResetConversation 丢弃当前会话映射，下一次提问会开启新对话。
func (r *redisConversationRepository) ResetConversation(ctx context.Context, userID, projectID uint) error {
	return r.redisClient.Del(ctx, r.currentKey(userID, projectID)).Err()
}

// GetConversationHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetConversationHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	key := fmt.Sprintf("conversation:%s", conversationID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil // 尚无历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// UpdateConversationHistory 在 Redis 中更新对话历史记录。
func (r *redisConversationRepository) UpdateConversationHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error {
	key := fmt.Sprintf("conversation:%s", conversationID)
	// 保留最近 20 条
	if len(messages) > 20 {
		messages = messages[len(messages)-20:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
