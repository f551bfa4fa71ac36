// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 标注来源。
const (
	AnnotationSourceUser      = "user"      // 用户手工创建
	AnnotationSourceGenerated = "generated" // 标注管线根据意图生成
)

// Annotation 对应于数据库中的 'annotations' 表。
// StartPos/EndPos 与 Chunk 使用同一坐标系（文档 FullText 的字符偏移），
// 前端据此实现跳转定位与引用摘录。
type Annotation struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID    uint      `gorm:"not null;index" json:"documentId"`
	StartPos      int       `gorm:"not null" json:"startPosition"`
	EndPos        int       `gorm:"not null" json:"endPosition"`
	HighlightText string    `gorm:"type:text;not null" json:"highlightText"`
	Category      string    `gorm:"type:varchar(50);index" json:"category"`
	Note          string    `gorm:"type:text" json:"note"`
	Confidence    float64   `gorm:"type:double" json:"confidence"`
	Source        string    `gorm:"type:varchar(20);not null;default:'user'" json:"source"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Annotation) TableName() string {
	return "annotations"
}

// SearchableText 返回参与全局搜索打分的文本：高亮内容与笔记的拼接。
func (a *Annotation) SearchableText() string {
	if a.Note == "" {
		return a.HighlightText
	}
	return a.HighlightText + " " + a.Note
}
