// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"

	"annolab-go/internal/model"
	"annolab-go/internal/repository"
)

// ConversationService 定义了对话历史查询的接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, userID, projectID uint) ([]model.ChatMessage, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// GetConversationHistory 获取用户在某项目下当前会话的完整消息历史。
func (s *conversationService) GetConversationHistory(ctx context.Context, userID, projectID uint) ([]model.ChatMessage, error) {
	conversationID, err := s.repo.GetOrCreateConversationID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetConversationHistory(ctx, conversationID)
}
