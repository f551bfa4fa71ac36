package handler

import (
	"net/http"

	"annolab-go/internal/service"
	"annolab-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 负责处理会话历史相关的 API 请求。
type ConversationHandler struct {
	conversationService service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// GetConversationHistory 返回当前用户在某项目下的会话历史。
func (h *ConversationHandler) GetConversationHistory(c *gin.Context) {
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	history, err := h.conversationService.GetConversationHistory(c.Request.Context(), user.ID, projectID)
	if err != nil {
		log.Error("GetConversationHistory: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取会话历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    history,
	})
}
