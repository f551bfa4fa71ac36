// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"annolab-go/internal/config"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/es"
	"annolab-go/pkg/log"
	"annolab-go/pkg/storage"

	"gorm.io/gorm"
)

// ErrDocumentNotFound 在访问不存在的文档时返回。
var ErrDocumentNotFound = errors.New("文档不存在")

// DocumentService 接口定义了文档管理的业务逻辑。
type DocumentService interface {
	// GetDocument 返回文档记录（不含全文）。
	GetDocument(documentID uint) (*model.Document, error)
	// GetDocumentText 返回文档的完整提取文本。
	GetDocumentText(documentID uint) (string, error)
	// ListByProject 列出项目下的文档。
	ListByProject(projectID uint) ([]model.DocumentDTO, error)
	// ListByFolder 列出文件夹下的文档。
	ListByFolder(folderID uint) ([]model.DocumentDTO, error)
	// GetDownloadURL 生成原始文件的预签名下载地址。
	GetDownloadURL(documentID uint) (string, error)
	// DeleteDocument 级联删除文档及其分块、标注、索引与存储对象。
	DeleteDocument(ctx context.Context, documentID uint) error
}

// documentService 是 DocumentService 接口的实现。
type documentService struct {
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	esCfg     config.ElasticsearchConfig
	minioCfg  config.MinIOConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(docRepo repository.DocumentRepository, chunkRepo repository.ChunkRepository, esCfg config.ElasticsearchConfig, minioCfg config.MinIOConfig) DocumentService {
	return &documentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		esCfg:     esCfg,
		minioCfg:  minioCfg,
	}
}

// GetDocument 返回文档记录。
func (s *documentService) GetDocument(documentID uint) (*model.Document, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	doc.FullText = ""
	return doc, nil
}

// GetDocumentText 返回文档的完整提取文本。
func (s *documentService) GetDocumentText(documentID uint) (string, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("查询文档失败: %w", err)
	}
	if doc.Status != model.DocStatusReady {
		return "", fmt.Errorf("文档 %d 尚未完成处理, 当前状态: %d", documentID, doc.Status)
	}
	return doc.FullText, nil
}

// ListByProject 列出项目下的文档。
func (s *documentService) ListByProject(projectID uint) ([]model.DocumentDTO, error) {
	docs, err := s.docRepo.FindByProjectID(projectID)
	if err != nil {
		return nil, fmt.Errorf("查询项目文档失败: %w", err)
	}
	return s.toDTOs(docs)
}

// ListByFolder 列出文件夹下的文档。
func (s *documentService) ListByFolder(folderID uint) ([]model.DocumentDTO, error) {
	docs, err := s.docRepo.FindByFolderID(folderID)
	if err != nil {
		return nil, fmt.Errorf("查询文件夹文档失败: %w", err)
	}
	return s.toDTOs(docs)
}

// toDTOs 把文档记录转成列表 DTO，附带分块数量。
func (s *documentService) toDTOs(docs []model.Document) ([]model.DocumentDTO, error) {
	dtos := make([]model.DocumentDTO, 0, len(docs))
	for _, doc := range docs {
		count, err := s.chunkRepo.CountByDocumentID(doc.ID)
		if err != nil {
			log.Warnf("[DocumentService] 统计文档 %d 分块数失败: %v", doc.ID, err)
		}
		dtos = append(dtos, model.DocumentDTO{
			ID:         doc.ID,
			FolderID:   doc.FolderID,
			FileName:   doc.FileName,
			Status:     doc.Status,
			FailReason: doc.FailReason,
			Intent:     doc.Intent,
			ChunkCount: count,
			CreatedAt:  model.LocalTime(doc.CreatedAt),
		})
	}
	return dtos, nil
}

// GetDownloadURL 生成原始文件的预签名下载地址，有效期一小时。
func (s *documentService) GetDownloadURL(documentID uint) (string, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("查询文档失败: %w", err)
	}
	objectName := fmt.Sprintf("merged/%s", doc.FileName)
	url, err := storage.GetPresignedURL(s.minioCfg.BucketName, objectName, time.Hour)
	if err != nil {
		return "", fmt.Errorf("生成下载地址失败: %w", err)
	}
	return url, nil
}

// DeleteDocument 级联删除文档。
// 顺序：ES 索引 -> MinIO 对象 -> 数据库记录；外部系统清理失败只记日志，
// 数据库删除是唯一会让整个操作失败的环节。
func (s *documentService) DeleteDocument(ctx context.Context, documentID uint) error {
	log.Infof("[DocumentService] 开始删除文档, documentID: %d", documentID)
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("查询文档失败: %w", err)
	}

	if err := es.DeleteByDocument(ctx, s.esCfg.IndexName, documentID); err != nil {
		log.Warnf("[DocumentService] 删除ES索引失败, documentID: %d, error: %v", documentID, err)
	}

	objectName := fmt.Sprintf("merged/%s", doc.FileName)
	if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, objectName); err != nil {
		log.Warnf("[DocumentService] 删除MinIO对象失败, object: %s, error: %v", objectName, err)
	}

	if err := s.docRepo.Delete(documentID); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}
	log.Infof("[DocumentService] 文档删除完成, documentID: %d", documentID)
	return nil
}
