// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"

	"annolab-go/internal/annotate"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/llm"
	"annolab-go/pkg/log"

	"gorm.io/gorm"
)

// ErrAnnotationNotFound 在更新或删除不存在的标注时返回。
var ErrAnnotationNotFound = errors.New("标注不存在")

// AnnotationService 接口定义了标注相关的业务逻辑。
type AnnotationService interface {
	// SetIntent 设置文档的标注意图并重新生成机器标注。
	// level 控制参与生成的分块范围，未知档位按 standard 处理。
	SetIntent(ctx context.Context, documentID uint, intent, level string) ([]model.Annotation, error)
	// ListAnnotations 列出文档的标注，category 非空时按分类过滤。
	ListAnnotations(documentID uint, category string) ([]model.Annotation, error)
	// CreateAnnotation 创建一条用户手工标注。
	CreateAnnotation(annotation *model.Annotation) error
	// UpdateAnnotation 更新一条已有标注的可编辑字段。
	UpdateAnnotation(annotationID uint, category, note string) (*model.Annotation, error)
	// DeleteAnnotation 删除一条标注。
	DeleteAnnotation(annotationID uint) error
}

// annotationService 是 AnnotationService 接口的实现。
type annotationService struct {
	docRepo        repository.DocumentRepository
	chunkRepo      repository.ChunkRepository
	annotationRepo repository.AnnotationRepository
	rankService    RankService
	llmClient      llm.Client
}

// NewAnnotationService 创建一个新的 AnnotationService 实例。
func NewAnnotationService(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	annotationRepo repository.AnnotationRepository,
	rankService RankService,
	llmClient llm.Client,
) AnnotationService {
	return &annotationService{
		docRepo:        docRepo,
		chunkRepo:      chunkRepo,
		annotationRepo: annotationRepo,
		rankService:    rankService,
		llmClient:      llmClient,
	}
}

// SetIntent 设置文档的标注意图并重新生成机器标注。
// 旧一批机器生成的标注整体作废，用户手工标注保留。
func (s *annotationService) SetIntent(ctx context.Context, documentID uint, intent, level string) ([]model.Annotation, error) {
	log.Infof("[AnnotationService] 开始设置标注意图, documentID: %d, level: %s", documentID, level)

	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	if doc.Status != model.DocStatusReady {
		return nil, fmt.Errorf("文档 %d 尚未完成处理, 无法生成标注", documentID)
	}

	// 1. 持久化意图
	log.Info("[AnnotationService] 步骤1: 保存标注意图")
	if err := s.docRepo.UpdateIntent(documentID, intent); err != nil {
		return nil, fmt.Errorf("保存标注意图失败: %w", err)
	}

	// 2. 以意图为查询做向量排序，选出高相关分块
	log.Info("[AnnotationService] 步骤2: 按意图检索高相关分块")
	chunks, err := s.chunkRepo.FindByDocumentID(documentID)
	if err != nil {
		return nil, fmt.Errorf("查询文档分块失败: %w", err)
	}
	if len(chunks) == 0 {
		log.Warnf("[AnnotationService] 文档 %d 没有分块, 不生成标注", documentID)
		return []model.Annotation{}, nil
	}

	intentVector, err := s.rankService.EmbedQuery(ctx, intent)
	if err != nil {
		return nil, err
	}
	chunks, err = s.rankService.EnsureEmbeddings(ctx, chunks)
	if err != nil {
		return nil, err
	}
	ranked := s.rankService.RankChunks(chunks, intentVector, level)
	topChunks := make([]model.Chunk, 0, len(ranked))
	for _, r := range ranked {
		topChunks = append(topChunks, r.Chunk)
	}
	log.Infof("[AnnotationService] 步骤2: 选出 %d 个高相关分块", len(topChunks))

	// 3. 调用标注管线生成新标注
	log.Info("[AnnotationService] 步骤3: 调用模型生成标注")
	priorUser, err := s.annotationRepo.FindUserAnnotations(documentID)
	if err != nil {
		return nil, fmt.Errorf("查询用户标注失败: %w", err)
	}
	generated, err := annotate.RunAnnotationPipeline(ctx, s.llmClient, documentID, intent, topChunks, priorUser)
	if err != nil {
		return nil, err
	}

	// 4. 替换旧一批机器标注
	log.Infof("[AnnotationService] 步骤4: 替换机器标注, 新生成 %d 条", len(generated))
	if err := s.annotationRepo.DeleteGeneratedByDocument(documentID); err != nil {
		return nil, fmt.Errorf("清理旧机器标注失败: %w", err)
	}
	if err := s.annotationRepo.BatchCreate(generated); err != nil {
		return nil, fmt.Errorf("保存机器标注失败: %w", err)
	}

	log.Infof("[AnnotationService] 设置标注意图完成, documentID: %d", documentID)
	return generated, nil
}

// ListAnnotations 列出文档的标注。
func (s *annotationService) ListAnnotations(documentID uint, category string) ([]model.Annotation, error) {
	return s.annotationRepo.FindByDocumentID(documentID, category)
}

// CreateAnnotation 创建一条用户手工标注。
// 偏移区间必须有效且落在文档全文范围内。
func (s *annotationService) CreateAnnotation(annotation *model.Annotation) error {
	if annotation.StartPos < 0 || annotation.EndPos <= annotation.StartPos {
		return fmt.Errorf("标注区间无效: [%d, %d)", annotation.StartPos, annotation.EndPos)
	}
	if annotation.HighlightText == "" {
		return errors.New("标注内容不能为空")
	}
	if _, err := s.docRepo.FindByID(annotation.DocumentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("查询文档失败: %w", err)
	}
	annotation.Source = model.AnnotationSourceUser
	return s.annotationRepo.Create(annotation)
}

// UpdateAnnotation 更新一条已有标注的分类与笔记。
func (s *annotationService) UpdateAnnotation(annotationID uint, category, note string) (*model.Annotation, error) {
	annotation, err := s.annotationRepo.FindByID(annotationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnnotationNotFound
		}
		return nil, fmt.Errorf("查询标注失败: %w", err)
	}
	annotation.Category = category
	annotation.Note = note
	if err := s.annotationRepo.Update(annotation); err != nil {
		return nil, fmt.Errorf("更新标注失败: %w", err)
	}
	return annotation, nil
}

// DeleteAnnotation 删除一条标注。
func (s *annotationService) DeleteAnnotation(annotationID uint) error {
	if _, err := s.annotationRepo.FindByID(annotationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnnotationNotFound
		}
		return fmt.Errorf("查询标注失败: %w", err)
	}
	return s.annotationRepo.Delete(annotationID)
}
