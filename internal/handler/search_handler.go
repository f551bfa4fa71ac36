package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"annolab-go/internal/model"
	"annolab-go/internal/service"
	"annolab-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理全局搜索与单文档搜索的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// parseIDList 解析逗号分隔的 ID 列表，如 "1,2,3"。
func parseIDList(raw string) ([]uint, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// GlobalSearch 处理项目范围内的全局搜索请求。
// GET /search?projectId=1&query=xxx&category=finding&folderIds=1,2&documentIds=3&limit=20
func (h *SearchHandler) GlobalSearch(c *gin.Context) {
	projectIDStr := c.Query("projectId")
	query := c.Query("query")
	if projectIDStr == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 projectId 或 query 参数"})
		return
	}
	projectID, err := strconv.ParseUint(projectIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的项目 ID"})
		return
	}

	folderIDs, err := parseIDList(c.Query("folderIds"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 folderIds 参数"})
		return
	}
	documentIDs, err := parseIDList(c.Query("documentIds"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 documentIds 参数"})
		return
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 limit 参数"})
			return
		}
	}

	filters := model.GlobalSearchFilters{
		Category:    c.Query("category"),
		FolderIDs:   folderIDs,
		DocumentIDs: documentIDs,
	}

	resp, err := h.searchService.GlobalSearch(c.Request.Context(), uint(projectID), query, filters, limit)
	if err != nil {
		log.Error("GlobalSearch: search failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    resp,
	})
}

// SearchDocument 处理单文档内的搜索请求，mode 可为 semantic 或 text。
// GET /documents/:documentId/search?query=xxx&mode=semantic
func (h *SearchHandler) SearchDocument(c *gin.Context) {
	documentID, ok := pathID(c, "documentId")
	if !ok {
		return
	}
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 query 参数"})
		return
	}

	mode := c.DefaultQuery("mode", "semantic")
	switch mode {
	case "semantic":
		quotes, err := h.searchService.SearchDocumentSemantic(c.Request.Context(), documentID, query)
		if err != nil {
			if errors.Is(err, service.ErrDocumentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
				return
			}
			log.Error("SearchDocument: semantic search failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "success",
			"data":    gin.H{"mode": mode, "quotes": quotes},
		})
	case "text":
		size := 0
		if sizeStr := c.Query("size"); sizeStr != "" {
			var err error
			size, err = strconv.Atoi(sizeStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 size 参数"})
				return
			}
		}
		matches, err := h.searchService.SearchDocumentText(c.Request.Context(), documentID, query, size)
		if err != nil {
			if errors.Is(err, service.ErrDocumentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
				return
			}
			log.Error("SearchDocument: text search failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "success",
			"data":    gin.H{"mode": mode, "matches": matches},
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的搜索模式，仅支持 semantic 或 text"})
	}
}
