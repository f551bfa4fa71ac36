// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"

	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/log"

	"gorm.io/gorm"
)

// 项目与文件夹访问的业务错误。
var (
	ErrProjectNotFound = errors.New("项目不存在")
	ErrFolderNotFound  = errors.New("文件夹不存在")
	ErrNotProjectOwner = errors.New("无权访问该项目")
)

// ProjectService 接口定义了项目与文件夹管理的业务逻辑。
type ProjectService interface {
	CreateProject(userID uint, name, thesis string) (*model.Project, error)
	GetProject(userID, projectID uint) (*model.Project, error)
	ListProjects(userID uint) ([]model.Project, error)
	UpdateProject(userID, projectID uint, name, thesis string) (*model.Project, error)
	DeleteProject(ctx context.Context, userID, projectID uint) error

	CreateFolder(userID, projectID uint, name, description string) (*model.Folder, error)
	ListFolders(userID, projectID uint) ([]model.Folder, error)
	UpdateFolder(userID, folderID uint, name, description string) (*model.Folder, error)
	DeleteFolder(userID, folderID uint) error
}

// projectService 是 ProjectService 接口的实现。
type projectService struct {
	projectRepo repository.ProjectRepository
	docRepo     repository.DocumentRepository
	docService  DocumentService
}

// NewProjectService 创建一个新的 ProjectService 实例。
func NewProjectService(projectRepo repository.ProjectRepository, docRepo repository.DocumentRepository, docService DocumentService) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		docRepo:     docRepo,
		docService:  docService,
	}
}

// ownedProject 查找项目并校验归属。
func (s *projectService) ownedProject(userID, projectID uint) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}
	if project.UserID != userID {
		return nil, ErrNotProjectOwner
	}
	return project, nil
}

// CreateProject 创建一个新项目。
func (s *projectService) CreateProject(userID uint, name, thesis string) (*model.Project, error) {
	if name == "" {
		return nil, errors.New("项目名称不能为空")
	}
	project := &model.Project{
		UserID: userID,
		Name:   name,
		Thesis: thesis,
	}
	if err := s.projectRepo.Create(project); err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", err)
	}
	log.Infof("[ProjectService] 创建项目成功, projectID: %d, userID: %d", project.ID, userID)
	return project, nil
}

// GetProject 返回用户拥有的项目。
func (s *projectService) GetProject(userID, projectID uint) (*model.Project, error) {
	return s.ownedProject(userID, projectID)
}

// ListProjects 列出用户的所有项目。
func (s *projectService) ListProjects(userID uint) ([]model.Project, error) {
	projects, err := s.projectRepo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("查询项目列表失败: %w", err)
	}
	return projects, nil
}

// UpdateProject 更新项目名称与研究主旨。
func (s *projectService) UpdateProject(userID, projectID uint, name, thesis string) (*model.Project, error) {
	project, err := s.ownedProject(userID, projectID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		project.Name = name
	}
	project.Thesis = thesis
	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("更新项目失败: %w", err)
	}
	return project, nil
}

// DeleteProject 删除项目及其全部文档、文件夹与标注。
func (s *projectService) DeleteProject(ctx context.Context, userID, projectID uint) error {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return err
	}
	log.Infof("[ProjectService] 开始删除项目, projectID: %d", projectID)

	docs, err := s.docRepo.FindByProjectID(projectID)
	if err != nil {
		return fmt.Errorf("查询项目文档失败: %w", err)
	}
	for _, doc := range docs {
		if err := s.docService.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("删除项目文档 %d 失败: %w", doc.ID, err)
		}
	}

	if err := s.projectRepo.Delete(projectID); err != nil {
		return fmt.Errorf("删除项目失败: %w", err)
	}
	log.Infof("[ProjectService] 项目删除完成, projectID: %d, 级联删除文档 %d 篇", projectID, len(docs))
	return nil
}

// CreateFolder 在项目下创建一个文件夹。
func (s *projectService) CreateFolder(userID, projectID uint, name, description string) (*model.Folder, error) {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("文件夹名称不能为空")
	}
	folder := &model.Folder{
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		CreatedBy:   userID,
	}
	if err := s.projectRepo.CreateFolder(folder); err != nil {
		return nil, fmt.Errorf("创建文件夹失败: %w", err)
	}
	return folder, nil
}

// ListFolders 列出项目下的所有文件夹。
func (s *projectService) ListFolders(userID, projectID uint) ([]model.Folder, error) {
	if _, err := s.ownedProject(userID, projectID); err != nil {
		return nil, err
	}
	folders, err := s.projectRepo.FindFoldersByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("查询文件夹列表失败: %w", err)
	}
	return folders, nil
}

// ownedFolder 查找文件夹并校验其所属项目的归属。
func (s *projectService) ownedFolder(userID, folderID uint) (*model.Folder, error) {
	folder, err := s.projectRepo.FindFolderByID(folderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("查询文件夹失败: %w", err)
	}
	if _, err := s.ownedProject(userID, folder.ProjectID); err != nil {
		return nil, err
	}
	return folder, nil
}

// UpdateFolder 更新文件夹名称与描述。
func (s *projectService) UpdateFolder(userID, folderID uint, name, description string) (*model.Folder, error) {
	folder, err := s.ownedFolder(userID, folderID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		folder.Name = name
	}
	folder.Description = description
	if err := s.projectRepo.UpdateFolder(folder); err != nil {
		return nil, fmt.Errorf("更新文件夹失败: %w", err)
	}
	return folder, nil
}

// DeleteFolder 删除一个空文件夹，仍包含文档的文件夹拒绝删除。
func (s *projectService) DeleteFolder(userID, folderID uint) error {
	folder, err := s.ownedFolder(userID, folderID)
	if err != nil {
		return err
	}
	docs, err := s.docRepo.FindByFolderID(folderID)
	if err != nil {
		return fmt.Errorf("查询文件夹文档失败: %w", err)
	}
	if len(docs) > 0 {
		return fmt.Errorf("文件夹内仍有 %d 篇文档, 请先移动或删除", len(docs))
	}
	if err := s.projectRepo.DeleteFolder(folder.ID); err != nil {
		return fmt.Errorf("删除文件夹失败: %w", err)
	}
	return nil
}
