// Package tasks 定义了投递到 Kafka 的任务结构。
package tasks

// DocumentIngestTask 是文档入库任务的消息体。
// 上传合并完成后投递，由消费端完成提取、分块与索引。
type DocumentIngestTask struct {
	DocumentID uint   `json:"document_id"`
	FileMD5    string `json:"file_md5"`
	ObjectURL  string `json:"object_url"`
	FileName   string `json:"file_name"`
	ProjectID  uint   `json:"project_id"`
	FolderID   uint   `json:"folder_id"`
	UserID     uint   `json:"user_id"`
}
