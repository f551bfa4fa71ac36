// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"annolab-go/internal/model"

	"gorm.io/gorm"
)

// AnnotationRepository 接口定义了标注数据的持久化操作。
type AnnotationRepository interface {
	Create(annotation *model.Annotation) error
	BatchCreate(annotations []model.Annotation) error
	FindByID(annotationID uint) (*model.Annotation, error)
	FindByDocumentID(documentID uint, category string) ([]model.Annotation, error)
	FindByDocumentIDs(documentIDs []uint) ([]model.Annotation, error)
	FindUserAnnotations(documentID uint) ([]model.Annotation, error)
	Update(annotation *model.Annotation) error
	Delete(annotationID uint) error
	DeleteGeneratedByDocument(documentID uint) error
	DeleteByDocumentID(documentID uint) error
}

// annotationRepository 是 AnnotationRepository 接口的 GORM 实现。
type annotationRepository struct {
	db *gorm.DB
}

// NewAnnotationRepository 创建一个新的 AnnotationRepository 实例。
func NewAnnotationRepository(db *gorm.DB) AnnotationRepository {
	return &annotationRepository{db: db}
}

// Create 在数据库中创建一条新的标注记录。
func (r *annotationRepository) Create(annotation *model.Annotation) error {
	return r.db.Create(annotation).Error
}

// BatchCreate 批量创建标注记录（标注管线一次产出多条）。
func (r *annotationRepository) BatchCreate(annotations []model.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	return r.db.CreateInBatches(annotations, 100).Error
}

// FindByID 根据标注 ID 查找一条标注。
func (r *annotationRepository) FindByID(annotationID uint) (*model.Annotation, error) {
	var annotation model.Annotation
	err := r.db.First(&annotation, annotationID).Error
	if err != nil {
		return nil, err
	}
	return &annotation, nil
}

// FindByDocumentID 查找指定文档的标注，category 非空时按分类过滤。
// 按 start_pos 升序返回，前端可以直接顺序渲染高亮。
func (r *annotationRepository) FindByDocumentID(documentID uint, category string) ([]model.Annotation, error) {
	var annotations []model.Annotation
	db := r.db.Where("document_id = ?", documentID)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	err := db.Order("start_pos asc").Find(&annotations).Error
	return annotations, err
}

// FindByDocumentIDs 查找一批文档的所有标注，供全局搜索聚合候选。
func (r *annotationRepository) FindByDocumentIDs(documentIDs []uint) ([]model.Annotation, error) {
	var annotations []model.Annotation
	if len(documentIDs) == 0 {
		return annotations, nil
	}
	err := r.db.Where("document_id IN ?", documentIDs).Find(&annotations).Error
	return annotations, err
}

// FindUserAnnotations 查找指定文档的用户手工标注。
// 标注管线把它们作为既有上下文传给模型，避免生成重复内容。
func (r *annotationRepository) FindUserAnnotations(documentID uint) ([]model.Annotation, error) {
	var annotations []model.Annotation
	err := r.db.Where("document_id = ? AND source = ?", documentID, model.AnnotationSourceUser).
		Order("start_pos asc").Find(&annotations).Error
	return annotations, err
}

// Update 更新数据库中一条已存在的标注记录。
func (r *annotationRepository) Update(annotation *model.Annotation) error {
	return r.db.Save(annotation).Error
}

// Delete 删除一条标注记录。
func (r *annotationRepository) Delete(annotationID uint) error {
	return r.db.Delete(&model.Annotation{}, annotationID).Error
}

// DeleteGeneratedByDocument 删除指定文档的机器生成标注，保留用户手工标注。
// 重设意图时旧一批生成结果整体作废。
func (r *annotationRepository) DeleteGeneratedByDocument(documentID uint) error {
	return r.db.Where("document_id = ? AND source = ?", documentID, model.AnnotationSourceGenerated).
		Delete(&model.Annotation{}).Error
}

// DeleteByDocumentID 删除指定文档的所有标注记录。
func (r *annotationRepository) DeleteByDocumentID(documentID uint) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.Annotation{}).Error
}
