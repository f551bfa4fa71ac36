// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"annolab-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 接口定义了文档分块数据的持久化操作。
type ChunkRepository interface {
	BatchCreate(chunks []model.Chunk) error
	FindByDocumentID(documentID uint) ([]model.Chunk, error)
	CountByDocumentID(documentID uint) (int64, error)
	UpdateEmbedding(chunkID uint, embedding model.Vector, modelVersion string) error
	DeleteByDocumentID(documentID uint) error
}

// chunkRepository 是 ChunkRepository 接口的 GORM 实现。
type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量创建分块记录。
func (r *chunkRepository) BatchCreate(chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// FindByDocumentID 查找指定文档的所有分块，按 chunk_index 升序返回。
func (r *chunkRepository) FindByDocumentID(documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.Where("document_id = ?", documentID).Order("chunk_index asc").Find(&chunks).Error
	return chunks, err
}

// CountByDocumentID 统计指定文档的分块数量。
func (r *chunkRepository) CountByDocumentID(documentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&count).Error
	return count, err
}

// UpdateEmbedding 写回某个分块的向量与模型版本。
// 分块文本不可变，向量只需计算一次，此后各排序请求复用。
func (r *chunkRepository) UpdateEmbedding(chunkID uint, embedding model.Vector, modelVersion string) error {
	return r.db.Model(&model.Chunk{}).Where("id = ?", chunkID).Updates(map[string]interface{}{
		"embedding":     embedding,
		"model_version": modelVersion,
	}).Error
}

// DeleteByDocumentID 删除指定文档的所有分块记录。
func (r *chunkRepository) DeleteByDocumentID(documentID uint) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}
