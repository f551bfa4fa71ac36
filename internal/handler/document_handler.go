// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"annolab-go/internal/service"
	"annolab-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理文档管理相关的 API 请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// respondDocumentError 把文档业务错误翻译成 HTTP 状态码。
func respondDocumentError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// GetDocument 返回文档元数据。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}
	doc, err := h.documentService.GetDocument(documentID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// GetDocumentText 返回文档的完整提取文本。
func (h *DocumentHandler) GetDocumentText(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}
	text, err := h.documentService.GetDocumentText(documentID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"fullText": text}})
}

// ListByProject 返回项目下的文档列表。
func (h *DocumentHandler) ListByProject(c *gin.Context) {
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	docs, err := h.documentService.ListByProject(projectID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// ListByFolder 返回文件夹下的文档列表。
func (h *DocumentHandler) ListByFolder(c *gin.Context) {
	folderID, ok := pathID(c, "folderId")
	if !ok {
		return
	}
	docs, err := h.documentService.ListByFolder(folderID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// GetDownloadURL 返回原始文件的预签名下载地址。
func (h *DocumentHandler) GetDownloadURL(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}
	url, err := h.documentService.GetDownloadURL(documentID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"downloadUrl": url}})
}

// DeleteDocument 级联删除文档。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}
	if err := h.documentService.DeleteDocument(c.Request.Context(), documentID); err != nil {
		log.Warnf("[DocumentHandler] 删除文档失败, documentID: %d, error: %v", documentID, err)
		respondDocumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Document deleted successfully"})
}
