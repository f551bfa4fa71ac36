// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"annolab-go/internal/model"
	"annolab-go/internal/service"
	"annolab-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ProjectHandler 负责处理项目与文件夹相关的 API 请求。
type ProjectHandler struct {
	projectService service.ProjectService
}

// NewProjectHandler 创建一个新的 ProjectHandler 实例。
func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// currentUser 从 Gin 上下文中取出认证中间件放入的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return nil, false
	}
	return v.(*model.User), true
}

// pathID 解析路径参数中的数字 ID。
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 " + name + " 参数"})
		return 0, false
	}
	return uint(id), true
}

// respondProjectError 把项目业务错误翻译成 HTTP 状态码。
func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound), errors.Is(err, service.ErrFolderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotProjectOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ProjectRequest 定义了创建/更新项目的请求体结构。
type ProjectRequest struct {
	Name   string `json:"name" binding:"required"`
	Thesis string `json:"thesis"`
}

// CreateProject 处理创建项目的请求。
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：name 不能为空"})
		return
	}

	project, err := h.projectService.CreateProject(user.ID, req.Name, req.Thesis)
	if err != nil {
		log.Warnf("[ProjectHandler] 创建项目失败, error: %v", err)
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": project})
}

// ListProjects 返回当前用户的项目列表。
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projects, err := h.projectService.ListProjects(user.ID)
	if err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": projects})
}

// GetProject 返回单个项目详情。
func (h *ProjectHandler) GetProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	project, err := h.projectService.GetProject(user.ID, projectID)
	if err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": project})
}

// UpdateProject 处理更新项目的请求。
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	project, err := h.projectService.UpdateProject(user.ID, projectID, req.Name, req.Thesis)
	if err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": project})
}

// DeleteProject 处理删除项目的请求。
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), user.ID, projectID); err != nil {
		log.Warnf("[ProjectHandler] 删除项目失败, projectID: %d, error: %v", projectID, err)
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Project deleted successfully"})
}

// FolderRequest 定义了创建/更新文件夹的请求体结构。
type FolderRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateFolder 处理在项目下创建文件夹的请求。
func (h *ProjectHandler) CreateFolder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：name 不能为空"})
		return
	}
	folder, err := h.projectService.CreateFolder(user.ID, projectID, req.Name, req.Description)
	if err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": folder})
}

// ListFolders 返回项目下的文件夹列表。
func (h *ProjectHandler) ListFolders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	folders, err := h.projectService.ListFolders(user.ID, projectID)
	if err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": folders})
}

// UpdateFolder 处理更新文件夹的请求。
func (h *ProjectHandler) UpdateFolder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "folderId")
	if !ok {
		return
	}
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	folder, err := h.projectService.UpdateFolder(user.ID, folderID, req.Name, req.Description)
	if err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": folder})
}

// DeleteFolder 处理删除文件夹的请求。
func (h *ProjectHandler) DeleteFolder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	folderID, ok := pathID(c, "folderId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteFolder(user.ID, folderID); err != nil {
		respondProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Folder deleted successfully"})
}
