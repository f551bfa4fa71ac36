// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"

	"annolab-go/internal/service"
	"annolab-go/pkg/log"
	"annolab-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// calculateProgress 计算分片上传进度。
func calculateProgress(uploadedParts []int, totalParts int) float64 {
	if totalParts == 0 {
		return 0.0
	}
	return (float64(len(uploadedParts)) / float64(totalParts)) * 100
}

// UploadHandler 负责处理所有与分片上传相关的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// claimsUserID 从 Gin 上下文中取出认证中间件放入的用户 ID。
func claimsUserID(c *gin.Context) uint {
	claimsValue, _ := c.Get("claims")
	return claimsValue.(*token.CustomClaims).UserID
}

// CheckFileRequest 定义了上传检查 API 的请求体结构。
type CheckFileRequest struct {
	MD5 string `json:"md5" binding:"required"`
}

// CheckFile 处理断点续传检查的请求。
func (h *UploadHandler) CheckFile(c *gin.Context) {
	var req CheckFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	completed, uploadedParts, err := h.uploadService.CheckFile(c.Request.Context(), req.MD5, claimsUserID(c))
	if err != nil {
		log.Error("CheckFile: failed to check file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"completed":     completed,
		"uploadedParts": uploadedParts,
	})
}

// UploadPart 处理分片上传的请求。
func (h *UploadHandler) UploadPart(c *gin.Context) {
	fileMD5 := c.PostForm("fileMd5")
	fileName := c.PostForm("fileName")
	totalSizeStr := c.PostForm("totalSize")
	partIndexStr := c.PostForm("partIndex")
	projectIDStr := c.PostForm("projectId")
	folderIDStr := c.PostForm("folderId")

	if fileMD5 == "" || fileName == "" || totalSizeStr == "" || partIndexStr == "" || projectIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要的参数"})
		return
	}

	totalSize, err := strconv.ParseInt(totalSizeStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的文件大小"})
		return
	}
	partIndex, err := strconv.Atoi(partIndexStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的分片索引"})
		return
	}
	projectID64, err := strconv.ParseUint(projectIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的项目 ID"})
		return
	}
	var folderID *uint
	if folderIDStr != "" {
		fid, err := strconv.ParseUint(folderIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的文件夹 ID"})
			return
		}
		f := uint(fid)
		folderID = &f
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未能获取上传的分片"})
		return
	}
	defer file.Close()

	uploadedParts, totalParts, err := h.uploadService.UploadPart(c.Request.Context(), fileMD5, fileName, totalSize, partIndex, file, claimsUserID(c), uint(projectID64), folderID)
	if err != nil {
		log.Error("UploadPart: failed to upload part", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "分片上传失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "分片上传成功",
		"data": gin.H{
			"uploaded": uploadedParts,
			"progress": calculateProgress(uploadedParts, totalParts),
		},
	})
}

// MergeRequest 定义了合并分片 API 的请求体结构。
type MergeRequest struct {
	MD5              string `json:"md5" binding:"required"`
	FileName         string `json:"fileName" binding:"required"`
	RetrievalContext string `json:"retrievalContext"`
}

// MergeParts 处理合并分片并触发文档入库的请求。
func (h *UploadHandler) MergeParts(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	doc, err := h.uploadService.MergeParts(c.Request.Context(), req.MD5, req.FileName, req.RetrievalContext, claimsUserID(c))
	if err != nil {
		log.Error("MergeParts: failed to merge parts", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "合并分片失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "合并成功，文档已进入处理队列",
		"data":    doc,
	})
}

// GetUploadStatus 返回文件的上传状态。
func (h *UploadHandler) GetUploadStatus(c *gin.Context) {
	fileMD5 := c.Query("md5")
	if fileMD5 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 md5 参数"})
		return
	}

	fileName, fileType, uploadedParts, totalParts, err := h.uploadService.GetUploadStatus(c.Request.Context(), fileMD5, claimsUserID(c))
	if err != nil {
		log.Error("GetUploadStatus: failed to get status", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"fileName":      fileName,
			"fileType":      fileType,
			"uploadedParts": uploadedParts,
			"totalParts":    totalParts,
			"progress":      calculateProgress(uploadedParts, totalParts),
		},
	})
}

// GetSupportedFileTypes 返回系统支持的文件类型。
func (h *UploadHandler) GetSupportedFileTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.uploadService.GetSupportedFileTypes(),
	})
}

// FastUploadRequest 定义了秒传 API 的请求体结构。
type FastUploadRequest struct {
	MD5              string `json:"md5" binding:"required"`
	FileName         string `json:"fileName" binding:"required"`
	ProjectID        uint   `json:"projectId" binding:"required"`
	FolderID         *uint  `json:"folderId"`
	RetrievalContext string `json:"retrievalContext"`
}

// FastUpload 处理秒传请求。
func (h *UploadHandler) FastUpload(c *gin.Context) {
	var req FastUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	doc, hit, err := h.uploadService.FastUpload(c.Request.Context(), req.MD5, req.FileName, req.RetrievalContext, claimsUserID(c), req.ProjectID, req.FolderID)
	if err != nil {
		log.Error("FastUpload: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"fastUpload": hit,
			"document":   doc,
		},
	})
}
