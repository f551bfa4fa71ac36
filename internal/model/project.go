// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Project 对应于数据库中的 'projects' 表。
// 一个项目是文档、文件夹与标注的归属容器，Thesis 记录项目的研究主旨，
// 全局搜索会把它作为 scope 自身的描述文本参与打分。
type Project struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Thesis    string    `gorm:"type:text" json:"thesis"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Project) TableName() string {
	return "projects"
}

// Folder 对应于数据库中的 'folders' 表。
// 文件夹用于在项目内给文档分组，Description 是全局搜索的候选文本之一。
type Folder struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"projectId"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   uint      `gorm:"not null" json:"createdBy"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Folder) TableName() string {
	return "folders"
}
