// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 文档处理状态，与 documents 表的 status 字段对应。
const (
	DocStatusProcessing = 0 // 已入队，等待或正在提取/分块
	DocStatusReady      = 1 // 分块完成，可检索
	DocStatusFailed     = 2 // 提取失败或文本不可用（如乱码），FailReason 给出原因
)

// Document 对应于数据库中的 'documents' 表。
// FullText 保存 Tika 提取出的完整文本；所有分块与标注的偏移量
// 都以该文本的字符（rune）坐标系为准。
type Document struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID        uint       `gorm:"not null;index" json:"projectId"`
	FolderID         *uint      `gorm:"index" json:"folderId"`
	UserID           uint       `gorm:"not null" json:"userId"`
	FileMD5          string     `gorm:"type:varchar(32);not null;index" json:"fileMd5"`
	FileName         string     `gorm:"type:varchar(255);not null" json:"fileName"`
	RetrievalContext string     `gorm:"type:text" json:"retrievalContext"`
	Intent           string     `gorm:"type:text" json:"intent"`
	FullText         string     `gorm:"type:longtext" json:"-"`
	Status           int        `gorm:"type:tinyint;not null;default:0" json:"status"`
	FailReason       string     `gorm:"type:varchar(500)" json:"failReason"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ProcessedAt      *time.Time `gorm:"default:null" json:"processedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DocumentDTO 是返回给前端的文档列表条目。
type DocumentDTO struct {
	ID         uint      `json:"id"`
	FolderID   *uint     `json:"folderId"`
	FileName   string    `json:"fileName"`
	Status     int       `json:"status"`
	FailReason string    `json:"failReason,omitempty"`
	Intent     string    `json:"intent,omitempty"`
	ChunkCount int64     `json:"chunkCount"`
	CreatedAt  LocalTime `json:"createdAt"`
}
