// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector 是按 JSON 存储在数据库中的 float32 向量列。
// 空向量以 NULL 落库，表示该分块尚未计算 embedding。
type Vector []float32

// Value 实现 driver.Valuer 接口。
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner 接口。
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 Vector", value)
	}
}

// Chunk 对应于数据库中的 'chunks' 表。
// StartPos/EndPos 是分块文本在所属文档 FullText 中的字符偏移，
// 满足 0 <= StartPos < EndPos <= len(FullText)。
// Embedding 懒加载：首次参与排序时计算并写回，此后复用。
type Chunk struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID   uint   `gorm:"not null;index" json:"documentId"`
	ChunkIndex   int    `gorm:"not null" json:"chunkIndex"`
	TextContent  string `gorm:"type:text;not null" json:"textContent"`
	StartPos     int    `gorm:"not null" json:"startPosition"`
	EndPos       int    `gorm:"not null" json:"endPosition"`
	Embedding    Vector `gorm:"type:json" json:"-"`
	ModelVersion string `gorm:"type:varchar(50)" json:"modelVersion"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "chunks"
}

// EsChunk 定义了写入 Elasticsearch 分块索引的文档结构。
// 只承担关键词检索（BM25），向量排序在进程内完成。
type EsChunk struct {
	ChunkKey    string `json:"chunk_key"` // document_id 与 chunk_index 的组合
	DocumentID  uint   `json:"document_id"`
	ProjectID   uint   `json:"project_id"`
	FolderID    uint   `json:"folder_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TextContent string `json:"text_content"`
	StartPos    int    `json:"start_pos"`
	EndPos      int    `json:"end_pos"`
}
