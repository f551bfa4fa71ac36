// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"strings"
	"time"

	"annolab-go/internal/config"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/kafka"
	"annolab-go/pkg/log"
	"annolab-go/pkg/storage"
	"annolab-go/pkg/tasks"

	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// DefaultPartSize 是用于计算总分片数的分片大小 (5MB)，与前端约定一致。
const DefaultPartSize = 5 * 1024 * 1024

// supportedTypeMapping 列出了可解析的文档扩展名及其类型描述。
var supportedTypeMapping = map[string]string{
	".pdf":  "PDF文档",
	".doc":  "Word文档",
	".docx": "Word文档",
	".xls":  "Excel表格",
	".xlsx": "Excel表格",
	".ppt":  "PowerPoint演示文稿",
	".pptx": "PowerPoint演示文稿",
	".txt":  "文本文件",
	".md":   "Markdown文档",
}

// UploadService 接口定义了分片上传相关的业务操作。
type UploadService interface {
	CheckFile(ctx context.Context, fileMD5 string, userID uint) (bool, []int, error)
	UploadPart(ctx context.Context, fileMD5, fileName string, totalSize int64, partIndex int, file multipart.File, userID, projectID uint, folderID *uint) (uploadedParts []int, totalParts int, err error)
	MergeParts(ctx context.Context, fileMD5, fileName, retrievalContext string, userID uint) (*model.Document, error)
	GetUploadStatus(ctx context.Context, fileMD5 string, userID uint) (fileName string, fileType string, uploadedParts []int, totalParts int, err error)
	GetSupportedFileTypes() map[string]interface{}
	FastUpload(ctx context.Context, fileMD5, fileName, retrievalContext string, userID, projectID uint, folderID *uint) (*model.Document, bool, error)
}

type uploadService struct {
	uploadRepo repository.UploadRepository
	docRepo    repository.DocumentRepository
	minioCfg   config.MinIOConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(uploadRepo repository.UploadRepository, docRepo repository.DocumentRepository, minioCfg config.MinIOConfig) UploadService {
	return &uploadService{
		uploadRepo: uploadRepo,
		docRepo:    docRepo,
		minioCfg:   minioCfg,
	}
}

// CheckFile 检查文件的上传进度（断点续传逻辑）。
func (s *uploadService) CheckFile(ctx context.Context, fileMD5 string, userID uint) (bool, []int, error) {
	log.Infof("[CheckFile] 开始上传检查，文件MD5: %s, 用户ID: %d", fileMD5, userID)

	record, err := s.uploadRepo.GetFileUploadRecord(fileMD5, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[CheckFile] 文件记录不存在，需要进行普通上传。文件MD5: %s", fileMD5)
			return false, nil, nil
		}
		log.Errorf("[CheckFile] 上传检查失败：查询文件记录时出错, error: %v", err)
		return false, nil, err
	}

	if record.Status == 1 {
		log.Infof("[CheckFile] 文件已存在且状态为已完成。文件MD5: %s", fileMD5)
		return true, nil, nil
	}

	totalParts := s.calculateTotalParts(record.TotalSize)
	uploadedIndexes, err := s.uploadRepo.GetUploadedParts(ctx, fileMD5, userID, totalParts)
	if err != nil {
		log.Errorf("[CheckFile] 上传检查失败：从Redis获取已上传分片列表时出错, error: %v", err)
		return false, nil, err
	}
	log.Infof("[CheckFile] 文件记录已存在但未完成，已上传分片数: %d", len(uploadedIndexes))
	return false, uploadedIndexes, nil
}

// UploadPart 处理单个分片的上传。
func (s *uploadService) UploadPart(ctx context.Context, fileMD5, fileName string, totalSize int64, partIndex int, file multipart.File, userID, projectID uint, folderID *uint) ([]int, int, error) {
	log.Infof("[UploadPart] 开始上传分片，文件MD5: %s, 分片序号: %d, 用户ID: %d", fileMD5, partIndex, userID)

	// 首个分片到达时校验文件类型
	if partIndex == 0 && !isSupportedFileName(fileName) {
		return nil, 0, fmt.Errorf("不支持的文件类型: %s", fileName)
	}

	// 1. 检查或创建 FileUpload 记录
	record, err := s.uploadRepo.GetFileUploadRecord(fileMD5, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[UploadPart] 文件上传记录不存在，为文件MD5: %s 创建新记录", fileMD5)
		newRecord := &model.FileUpload{
			FileMD5:   fileMD5,
			FileName:  fileName,
			TotalSize: totalSize,
			Status:    0, // 上传中
			UserID:    userID,
			ProjectID: projectID,
			FolderID:  folderID,
		}
		if err := s.uploadRepo.CreateFileUploadRecord(newRecord); err != nil {
			log.Errorf("[UploadPart] 创建文件上传记录失败, error: %v", err)
			return nil, 0, err
		}
		record = newRecord
	} else if err != nil {
		log.Errorf("[UploadPart] 查询文件上传记录失败, error: %v", err)
		return nil, 0, err
	}

	// 2. 检查分片是否已上传（Redis 位图）
	isUploaded, err := s.uploadRepo.IsPartUploaded(ctx, fileMD5, userID, partIndex)
	if err != nil {
		log.Errorf("[UploadPart] 从Redis检查分片上传状态失败, error: %v", err)
		return nil, 0, fmt.Errorf("failed to check part status from redis: %w", err)
	}
	totalParts := s.calculateTotalParts(record.TotalSize)
	if isUploaded {
		log.Infof("[UploadPart] 分片 %d 已上传过，跳过本次上传。文件MD5: %s", partIndex, fileMD5)
		uploadedIndexes, err := s.uploadRepo.GetUploadedParts(ctx, fileMD5, userID, totalParts)
		if err != nil {
			return nil, 0, err
		}
		return uploadedIndexes, totalParts, nil
	}

	// 3. 将分片上传到 MinIO
	objectName := fmt.Sprintf("parts/%s/%d", fileMD5, partIndex)
	_, err = storage.MinioClient.PutObject(ctx, s.minioCfg.BucketName, objectName, file, -1, minio.PutObjectOptions{})
	if err != nil {
		log.Errorf("[UploadPart] 上传分片到MinIO失败, objectName: %s, error: %v", objectName, err)
		return nil, 0, err
	}

	// 4. 在数据库中记录分片信息
	partRecord := &model.UploadPart{
		FileMD5:     fileMD5,
		PartIndex:   partIndex,
		StoragePath: objectName,
	}
	if err := s.uploadRepo.CreatePartRecord(partRecord); err != nil {
		log.Errorf("[UploadPart] 在数据库中创建分片记录失败, error: %v", err)
		return nil, 0, err
	}

	// 5. 在 Redis 中标记分片为已上传
	if err := s.uploadRepo.MarkPartUploaded(ctx, fileMD5, userID, partIndex); err != nil {
		log.Errorf("[UploadPart] 在Redis中标记分片已上传失败, error: %v", err)
		return nil, 0, err
	}

	// 6. 返回最新进度
	uploadedIndexes, err := s.uploadRepo.GetUploadedParts(ctx, fileMD5, userID, totalParts)
	if err != nil {
		log.Errorf("[UploadPart] 上传成功后从Redis获取最新分片列表失败, error: %v", err)
		return nil, 0, err
	}

	log.Infof("[UploadPart] 分片上传成功。文件MD5: %s, 分片序号: %d, 总进度: %d/%d", fileMD5, partIndex, len(uploadedIndexes), totalParts)
	return uploadedIndexes, totalParts, nil
}

// MergeParts 合并所有分片并创建文档记录，随后投递入库任务。
func (s *uploadService) MergeParts(ctx context.Context, fileMD5, fileName, retrievalContext string, userID uint) (*model.Document, error) {
	log.Infof("[MergeParts] 开始合并文件分片，文件MD5: %s, 用户ID: %d", fileMD5, userID)
	record, err := s.uploadRepo.GetFileUploadRecord(fileMD5, userID)
	if err != nil {
		log.Errorf("[MergeParts] 合并分片失败：获取文件记录时出错, error: %v", err)
		return nil, err
	}

	// 1. 检查分片是否已全部上传（Redis 快速检查）
	totalParts := s.calculateTotalParts(record.TotalSize)
	uploadedIndexes, err := s.uploadRepo.GetUploadedParts(ctx, fileMD5, userID, totalParts)
	if err != nil {
		log.Errorf("[MergeParts] 合并分片失败：从Redis检查分片完整性时出错, error: %v", err)
		return nil, fmt.Errorf("failed to get uploaded parts from redis: %w", err)
	}
	if len(uploadedIndexes) < totalParts {
		log.Warnf("[MergeParts] 拒绝合并请求：分片未完全上传。期望: %d, 实际: %d", totalParts, len(uploadedIndexes))
		return nil, fmt.Errorf("分片未全部上传，无法合并 (期望: %d, 实际: %d)", totalParts, len(uploadedIndexes))
	}

	// 2. 根据分片数量选择合并策略
	destObjectName := fmt.Sprintf("merged/%s", fileName)
	if totalParts == 1 {
		src := minio.CopySrcOptions{
			Bucket: s.minioCfg.BucketName,
			Object: fmt.Sprintf("parts/%s/0", fileMD5),
		}
		dst := minio.CopyDestOptions{
			Bucket: s.minioCfg.BucketName,
			Object: destObjectName,
		}
		if _, err := storage.MinioClient.CopyObject(ctx, dst, src); err != nil {
			log.Errorf("[MergeParts] 单分片文件复制失败, error: %v", err)
			return nil, fmt.Errorf("failed to copy single part object: %w", err)
		}
		log.Info("[MergeParts] 单分片文件复制成功")
	} else {
		var srcs []minio.CopySrcOptions
		for i := 0; i < totalParts; i++ {
			srcs = append(srcs, minio.CopySrcOptions{
				Bucket: s.minioCfg.BucketName,
				Object: fmt.Sprintf("parts/%s/%d", fileMD5, i),
			})
		}
		dst := minio.CopyDestOptions{
			Bucket: s.minioCfg.BucketName,
			Object: destObjectName,
		}
		if _, err := storage.MinioClient.ComposeObject(ctx, dst, srcs...); err != nil {
			log.Errorf("[MergeParts] 多分片文件合并失败, error: %v", err)
			return nil, err
		}
		log.Info("[MergeParts] 多分片文件合并成功")
	}

	// 3. 更新上传记录状态
	now := time.Now()
	record.Status = 1
	record.MergedAt = &now
	if err := s.uploadRepo.UpdateFileUploadRecord(record); err != nil {
		log.Errorf("[MergeParts] 更新上传记录状态失败, error: %v", err)
		return nil, err
	}

	// 4. 创建文档记录并投递入库任务
	doc, err := s.createDocumentAndDispatch(record, fileName, retrievalContext, destObjectName)
	if err != nil {
		return nil, err
	}

	// 5. 清理 Redis 和 MinIO 中的分片
	go func() {
		bgCtx := context.Background()
		log.Infof("[MergeParts] 启动后台清理任务。文件MD5: %s", fileMD5)
		if err := s.uploadRepo.DeleteUploadMark(bgCtx, fileMD5, userID); err != nil {
			log.Warnf("[MergeParts] 后台清理任务：删除Redis上传标记失败, error: %v", err)
		}

		objectsCh := make(chan minio.ObjectInfo)
		go func() {
			defer close(objectsCh)
			for i := 0; i < totalParts; i++ {
				objectsCh <- minio.ObjectInfo{Key: fmt.Sprintf("parts/%s/%d", fileMD5, i)}
			}
		}()
		for range storage.MinioClient.RemoveObjects(bgCtx, s.minioCfg.BucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		}
		log.Infof("[MergeParts] 后台清理任务完成。文件MD5: %s", fileMD5)
	}()

	return doc, nil
}

// createDocumentAndDispatch 创建处理中的文档记录并投递 Kafka 入库任务。
func (s *uploadService) createDocumentAndDispatch(record *model.FileUpload, fileName, retrievalContext, objectName string) (*model.Document, error) {
	doc := &model.Document{
		ProjectID:        record.ProjectID,
		FolderID:         record.FolderID,
		UserID:           record.UserID,
		FileMD5:          record.FileMD5,
		FileName:         fileName,
		RetrievalContext: retrievalContext,
		Status:           model.DocStatusProcessing,
	}
	if err := s.docRepo.Create(doc); err != nil {
		log.Errorf("[MergeParts] 创建文档记录失败, error: %v", err)
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}

	objectURL, _ := storage.GetPresignedURL(s.minioCfg.BucketName, objectName, time.Hour)
	var folderID uint
	if record.FolderID != nil {
		folderID = *record.FolderID
	}
	task := tasks.DocumentIngestTask{
		DocumentID: doc.ID,
		FileMD5:    record.FileMD5,
		ObjectURL:  objectURL,
		FileName:   fileName,
		ProjectID:  record.ProjectID,
		FolderID:   folderID,
		UserID:     record.UserID,
	}
	if err := kafka.ProduceIngestTask(task); err != nil {
		log.Errorf("[MergeParts] 发送文档入库任务到Kafka失败, error: %v", err)
		// 入队失败的文档停在 processing 状态，标记失败让用户重试
		if markErr := s.docRepo.MarkFailed(doc.ID, "入库任务投递失败，请重新上传"); markErr != nil {
			log.Errorf("[MergeParts] 写回失败状态失败, error: %v", markErr)
		}
		return nil, fmt.Errorf("投递入库任务失败: %w", err)
	}
	log.Infof("[MergeParts] 文档入库任务已成功发送到Kafka, DocumentID: %d", doc.ID)
	return doc, nil
}

// GetUploadStatus 获取文件的上传状态。
func (s *uploadService) GetUploadStatus(ctx context.Context, fileMD5 string, userID uint) (string, string, []int, int, error) {
	log.Infof("[GetUploadStatus] 开始获取文件上传状态。文件MD5: %s", fileMD5)
	record, err := s.uploadRepo.GetFileUploadRecord(fileMD5, userID)
	if err != nil {
		log.Errorf("[GetUploadStatus] 查询文件记录时出错, error: %v", err)
		return "", "", nil, 0, err
	}

	totalParts := s.calculateTotalParts(record.TotalSize)
	uploadedIndexes, err := s.uploadRepo.GetUploadedParts(ctx, fileMD5, userID, totalParts)
	if err != nil {
		log.Errorf("[GetUploadStatus] 从Redis获取已上传分片列表时出错, error: %v", err)
		return "", "", nil, 0, err
	}

	return record.FileName, getFileType(record.FileName), uploadedIndexes, totalParts, nil
}

// GetSupportedFileTypes 返回系统支持的文件类型。
func (s *uploadService) GetSupportedFileTypes() map[string]interface{} {
	supportedExtensions := make([]string, 0, len(supportedTypeMapping))
	supportedTypes := make([]string, 0, len(supportedTypeMapping))
	uniqueTypes := make(map[string]struct{})

	for ext, t := range supportedTypeMapping {
		supportedExtensions = append(supportedExtensions, ext)
		if _, exists := uniqueTypes[t]; !exists {
			uniqueTypes[t] = struct{}{}
			supportedTypes = append(supportedTypes, t)
		}
	}

	return map[string]interface{}{
		"supportedExtensions": supportedExtensions,
		"supportedTypes":      supportedTypes,
		"description":         "系统支持的文档类型文件，这些文件可以被解析并进入检索流程",
	}
}

// FastUpload 秒传：同一文件已被合并过时，直接复用合并对象创建新文档。
// 返回的 bool 表示是否命中秒传。
func (s *uploadService) FastUpload(ctx context.Context, fileMD5, fileName, retrievalContext string, userID, projectID uint, folderID *uint) (*model.Document, bool, error) {
	log.Infof("[FastUpload] 开始秒传检查。文件MD5: %s", fileMD5)
	existing, err := s.uploadRepo.FindByMD5(fileMD5)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info("[FastUpload] 秒传检查：文件记录不存在，无法秒传")
			return nil, false, nil
		}
		log.Errorf("[FastUpload] 秒传检查失败：查询数据库时出错, error: %v", err)
		return nil, false, err
	}

	record := &model.FileUpload{
		FileMD5:   fileMD5,
		FileName:  fileName,
		TotalSize: existing.TotalSize,
		Status:    1,
		UserID:    userID,
		ProjectID: projectID,
		FolderID:  folderID,
	}
	now := time.Now()
	record.MergedAt = &now
	if err := s.uploadRepo.CreateFileUploadRecord(record); err != nil {
		return nil, false, fmt.Errorf("创建秒传记录失败: %w", err)
	}

	// 复用已合并对象，按原始文件名入库
	doc, err := s.createDocumentAndDispatch(record, existing.FileName, retrievalContext, fmt.Sprintf("merged/%s", existing.FileName))
	if err != nil {
		return nil, false, err
	}
	log.Infof("[FastUpload] 秒传成功, DocumentID: %d", doc.ID)
	return doc, true, nil
}

// calculateTotalParts 根据文件总大小和分片大小计算总分片数。
func (s *uploadService) calculateTotalParts(totalSize int64) int {
	if totalSize == 0 {
		return 0
	}
	return int(math.Ceil(float64(totalSize) / float64(DefaultPartSize)))
}

// isSupportedFileName 检查文件扩展名是否可解析。
func isSupportedFileName(fileName string) bool {
	lower := strings.ToLower(fileName)
	for ext := range supportedTypeMapping {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// getFileType 根据文件名推断文件类型描述。
func getFileType(fileName string) string {
	parts := strings.Split(fileName, ".")
	if len(parts) < 2 {
		return "未知类型"
	}
	ext := "." + strings.ToLower(parts[len(parts)-1])
	if t, ok := supportedTypeMapping[ext]; ok {
		return t
	}
	return strings.ToUpper(ext[1:]) + "文件"
}
