// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// FileUpload 定义了 file_upload 表的 ORM 模型。
// 它记录了每个上传文件的元数据和状态。
type FileUpload struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5   string     `gorm:"type:varchar(32);not null" json:"fileMd5"`
	FileName  string     `gorm:"type:varchar(255);not null" json:"fileName"`
	TotalSize int64      `gorm:"not null" json:"totalSize"`
	Status    int        `gorm:"type:tinyint;not null;default:0" json:"status"` // 0: uploading, 1: completed, 2: failed
	UserID    uint       `gorm:"not null" json:"userId"`
	ProjectID uint       `gorm:"not null;index" json:"projectId"`
	FolderID  *uint      `json:"folderId"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	MergedAt  *time.Time `gorm:"default:null" json:"mergedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (FileUpload) TableName() string {
	return "file_upload"
}

// UploadPart 对应于数据库中的 'upload_parts' 表。
// 它记录了分片上传过程中每个分片的存储位置。
type UploadPart struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5     string `gorm:"type:varchar(32);not null" json:"fileMd5"`
	PartIndex   int    `gorm:"not null" json:"partIndex"`
	PartMD5     string `gorm:"type:varchar(32)" json:"partMd5"`
	StoragePath string `gorm:"type:varchar(255);not null" json:"storagePath"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UploadPart) TableName() string {
	return "upload_parts"
}
