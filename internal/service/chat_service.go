// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"annolab-go/internal/config"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/llm"
	"annolab-go/pkg/log"

	"github.com/gorilla/websocket"
)

// chatContextResults 是送入问答上下文的检索结果数量上限。
const chatContextResults = 10

// ChatService 定义了项目内问答对话的接口。
type ChatService interface {
	// StreamResponse 以项目内全局搜索结果为依据，流式回答用户问题。
	StreamResponse(ctx context.Context, projectID uint, query string, user *model.User, ws *websocket.Conn, shouldStop func() bool) error
	// ResetConversation 重置用户在某项目下的当前会话。
	ResetConversation(ctx context.Context, userID, projectID uint) error
}

type chatService struct {
	searchService    SearchService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(searchService SearchService, llmClient llm.Client, conversationRepo repository.ConversationRepository) ChatService {
	return &chatService{
		searchService:    searchService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
	}
}

// StreamResponse 协调检索与生成流程并流式传输模型响应。
func (s *chatService) StreamResponse(ctx context.Context, projectID uint, query string, user *model.User, ws *websocket.Conn, shouldStop func() bool) error {
	// 1. 用项目内全局搜索检索依据
	resp, err := s.searchService.GlobalSearch(ctx, projectID, query, model.GlobalSearchFilters{}, chatContextResults)
	if err != nil {
		return fmt.Errorf("failed to retrieve context: %w", err)
	}

	// 2. 构建上下文、system 消息与历史
	contextText := s.buildContextText(resp.Results)
	systemMsg := s.buildSystemMessage(contextText)
	history, err := s.loadHistory(ctx, user.ID, projectID)
	if err != nil {
		log.Errorf("[ChatService] 加载对话历史失败: %v", err)
		history = []model.ChatMessage{}
	}
	messages := s.composeMessages(systemMsg, history, query)

	// 拦截 websocket writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	// 3. 调用 LLM 流式生成
	var llmMsgs []llm.Message
	for _, m := range messages {
		llmMsgs = append(llmMsgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	if err := s.llmClient.StreamChatMessages(ctx, llmMsgs, nil, interceptor); err != nil {
		return err
	}

	// 4. 发送完成通知，并将对话保存到 Redis
	sendCompletion(ws)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		// 使用后台上下文：即使原始请求被取消，也保存已生成的答案
		if err := s.addMessageToConversation(context.Background(), user.ID, projectID, query, fullAnswer); err != nil {
			log.Errorf("[ChatService] 保存对话历史失败: %v", err)
		}
	}
	return nil
}

// ResetConversation 重置用户在某项目下的当前会话。
func (s *chatService) ResetConversation(ctx context.Context, userID, projectID uint) error {
	return s.conversationRepo.ResetConversation(ctx, userID, projectID)
}

// buildContextText 把检索结果拼成带来源标签的上下文文本。
func (s *chatService) buildContextText(results []model.GlobalSearchResult) string {
	if len(results) == 0 {
		return ""
	}
	const maxSnippetLen = 1000
	var contextBuilder strings.Builder
	for i, r := range results {
		snippet := r.MatchedText
		// 按 rune 截断，避免把多字节字符切成无效 UTF-8
		if runes := []rune(snippet); len(runes) > maxSnippetLen {
			snippet = string(runes[:maxSnippetLen]) + "…"
		}
		label := r.FileName
		if label == "" {
			label = r.FolderName
		}
		if label == "" {
			label = r.Type
		}
		contextBuilder.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, label, snippet))
	}
	return contextBuilder.String()
}

// buildSystemMessage 从配置读取规则与包裹符，拼装 system 消息。
func (s *chatService) buildSystemMessage(contextText string) string {
	rules := config.Conf.LLM.Prompt.Rules
	refStart := config.Conf.LLM.Prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := config.Conf.LLM.Prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	if rules != "" {
		sys.WriteString(rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if contextText != "" {
		sys.WriteString(contextText)
	} else {
		noRes := config.Conf.LLM.Prompt.NoResultText
		if noRes == "" {
			noRes = "（本轮无检索结果）"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	return sys.String()
}

func (s *chatService) loadHistory(ctx context.Context, userID, projectID uint) ([]model.ChatMessage, error) {
	convID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.conversationRepo.GetConversationHistory(ctx, convID)
}

func (s *chatService) composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []model.ChatMessage {
	msgs := make([]model.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, model.ChatMessage{Role: "system", Content: systemMsg})
	msgs = append(msgs, history...)
	msgs = append(msgs, model.ChatMessage{Role: "user", Content: userInput})
	return msgs
}

// addMessageToConversation 把一轮问答追加到 Redis 中的对话历史。
func (s *chatService) addMessageToConversation(ctx context.Context, userID, projectID uint, question, answer string) error {
	conversationID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("failed to get or create conversation ID: %w", err)
	}

	history, err := s.conversationRepo.GetConversationHistory(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to get conversation history: %w", err)
	}

	history = append(history, model.ChatMessage{
		Role:      "user",
		Content:   question,
		Timestamp: time.Now(),
	})
	history = append(history, model.ChatMessage{
		Role:      "assistant",
		Content:   answer,
		Timestamp: time.Now(),
	})
	return s.conversationRepo.UpdateConversationHistory(ctx, conversationID, history)
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON。
func sendCompletion(ws *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
