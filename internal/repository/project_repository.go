// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"annolab-go/internal/model"

	"gorm.io/gorm"
)

// ProjectRepository 接口定义了项目与文件夹数据的持久化操作。
type ProjectRepository interface {
	// 项目操作
	Create(project *model.Project) error
	FindByID(projectID uint) (*model.Project, error)
	FindByUserID(userID uint) ([]model.Project, error)
	Update(project *model.Project) error
	Delete(projectID uint) error

	// 文件夹操作
	CreateFolder(folder *model.Folder) error
	FindFolderByID(folderID uint) (*model.Folder, error)
	FindFoldersByProject(projectID uint) ([]model.Folder, error)
	UpdateFolder(folder *model.Folder) error
	DeleteFolder(folderID uint) error
}

// projectRepository 是 ProjectRepository 接口的 GORM 实现。
type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建一个新的 ProjectRepository 实例。
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create 在数据库中创建一个新的项目记录。
func (r *projectRepository) Create(project *model.Project) error {
	return r.db.Create(project).Error
}

// FindByID 根据项目 ID 查找一个项目。
func (r *projectRepository) FindByID(projectID uint) (*model.Project, error) {
	var project model.Project
	err := r.db.First(&project, projectID).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// FindByUserID 查找指定用户拥有的所有项目。
func (r *projectRepository) FindByUserID(userID uint) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&projects).Error
	return projects, err
}

// Update 更新数据库中一个已存在的项目记录。
func (r *projectRepository) Update(project *model.Project) error {
	return r.db.Save(project).Error
}

// Delete 删除一个项目记录（文档与标注的级联删除由服务层负责）。
func (r *projectRepository) Delete(projectID uint) error {
	if err := r.db.Where("project_id = ?", projectID).Delete(&model.Folder{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&model.Project{}, projectID).Error
}

// CreateFolder 在数据库中创建一个新的文件夹记录。
func (r *projectRepository) CreateFolder(folder *model.Folder) error {
	return r.db.Create(folder).Error
}

// FindFolderByID 根据文件夹 ID 查找一个文件夹。
func (r *projectRepository) FindFolderByID(folderID uint) (*model.Folder, error) {
	var folder model.Folder
	err := r.db.First(&folder, folderID).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// FindFoldersByProject 查找指定项目下的所有文件夹。
func (r *projectRepository) FindFoldersByProject(projectID uint) ([]model.Folder, error) {
	var folders []model.Folder
	err := r.db.Where("project_id = ?", projectID).Order("name asc").Find(&folders).Error
	return folders, err
}

// UpdateFolder 更新数据库中一个已存在的文件夹记录。
func (r *projectRepository) UpdateFolder(folder *model.Folder) error {
	return r.db.Save(folder).Error
}

// DeleteFolder 删除一个文件夹记录。
func (r *projectRepository) DeleteFolder(folderID uint) error {
	return r.db.Delete(&model.Folder{}, folderID).Error
}
