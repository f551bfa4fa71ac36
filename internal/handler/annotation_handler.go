package handler

import (
	"errors"
	"net/http"

	"annolab-go/internal/model"
	"annolab-go/internal/service"
	"annolab-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AnnotationHandler 负责处理标注相关的 API 请求。
type AnnotationHandler struct {
	annotationService service.AnnotationService
}

// NewAnnotationHandler 创建一个新的 AnnotationHandler 实例。
func NewAnnotationHandler(annotationService service.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{annotationService: annotationService}
}

// respondAnnotationError 将标注业务错误翻译为 HTTP 响应。
func respondAnnotationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAnnotationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "标注不存在"})
	case errors.Is(err, service.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
	default:
		log.Error("annotation request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}

// SetIntentRequest 定义了设置标注意图 API 的请求体结构。
type SetIntentRequest struct {
	Intent string `json:"intent" binding:"required"`
	Level  string `json:"level"`
}

// SetIntent 设置文档的标注意图并触发机器标注生成。
func (h *AnnotationHandler) SetIntent(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}

	var req SetIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	annotations, err := h.annotationService.SetIntent(c.Request.Context(), documentID, req.Intent, req.Level)
	if err != nil {
		respondAnnotationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    annotations,
	})
}

// ListAnnotations 列出文档的标注，支持按 category 过滤。
func (h *AnnotationHandler) ListAnnotations(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}

	annotations, err := h.annotationService.ListAnnotations(documentID, c.Query("category"))
	if err != nil {
		respondAnnotationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    annotations,
	})
}

// CreateAnnotationRequest 定义了创建手工标注 API 的请求体结构。
type CreateAnnotationRequest struct {
	StartPos      int    `json:"startPosition"`
	EndPos        int    `json:"endPosition" binding:"required"`
	HighlightText string `json:"highlightText" binding:"required"`
	Category      string `json:"category" binding:"required"`
	Note          string `json:"note"`
}

// CreateAnnotation 创建一条用户手工标注。
func (h *AnnotationHandler) CreateAnnotation(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}

	var req CreateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	annotation := &model.Annotation{
		DocumentID:    documentID,
		StartPos:      req.StartPos,
		EndPos:        req.EndPos,
		HighlightText: req.HighlightText,
		Category:      req.Category,
		Note:          req.Note,
	}
	if err := h.annotationService.CreateAnnotation(annotation); err != nil {
		respondAnnotationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    annotation,
	})
}

// UpdateAnnotationRequest 定义了更新标注 API 的请求体结构。
type UpdateAnnotationRequest struct {
	Category string `json:"category"`
	Note     string `json:"note"`
}

// UpdateAnnotation 更新一条标注的分类与笔记。
func (h *AnnotationHandler) UpdateAnnotation(c *gin.Context) {
	annotationID, ok := pathID(c, "annotationId")
	if !ok {
		return
	}

	var req UpdateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	annotation, err := h.annotationService.UpdateAnnotation(annotationID, req.Category, req.Note)
	if err != nil {
		respondAnnotationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    annotation,
	})
}

// DeleteAnnotation 删除一条标注。
func (h *AnnotationHandler) DeleteAnnotation(c *gin.Context) {
	annotationID, ok := pathID(c, "annotationId")
	if !ok {
		return
	}

	if err := h.annotationService.DeleteAnnotation(annotationID); err != nil {
		respondAnnotationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
	})
}
