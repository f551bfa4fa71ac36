// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"time"

	"annolab-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档数据的持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(documentID uint) (*model.Document, error)
	FindByProjectID(projectID uint) ([]model.Document, error)
	FindByFolderID(folderID uint) ([]model.Document, error)
	UpdateFullText(documentID uint, fullText string) error
	UpdateIntent(documentID uint, intent string) error
	MarkReady(documentID uint) error
	MarkFailed(documentID uint, reason string) error
	Delete(documentID uint) error
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一个新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据文档 ID 查找一个文档（包含 FullText）。
func (r *documentRepository) FindByID(documentID uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.First(&doc, documentID).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByProjectID 查找指定项目下的所有文档。
// 列表场景不需要全文，省略 full_text 列以免拖大查询。
func (r *documentRepository) FindByProjectID(projectID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Omit("full_text").Where("project_id = ?", projectID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// FindByFolderID 查找指定文件夹下的所有文档。
func (r *documentRepository) FindByFolderID(folderID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Omit("full_text").Where("folder_id = ?", folderID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// UpdateFullText 写入 Tika 提取出的完整文本。
func (r *documentRepository) UpdateFullText(documentID uint, fullText string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Update("full_text", fullText).Error
}

// UpdateIntent 更新文档的标注意图。
func (r *documentRepository) UpdateIntent(documentID uint, intent string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Update("intent", intent).Error
}

// MarkReady 将文档标记为可检索状态，并记录处理完成时间。
func (r *documentRepository) MarkReady(documentID uint) error {
	now := time.Now()
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
		"status":       model.DocStatusReady,
		"fail_reason":  "",
		"processed_at": &now,
	}).Error
}

// MarkFailed 将文档标记为处理失败，并写入失败原因。
func (r *documentRepository) MarkFailed(documentID uint, reason string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
		"status":      model.DocStatusFailed,
		"fail_reason": reason,
	}).Error
}

// Delete 删除一个文档及其所有分块与标注记录。
func (r *documentRepository) Delete(documentID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Annotation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, documentID).Error
	})
}
