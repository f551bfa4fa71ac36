// Package pipeline 定义了文档入库处理的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"annolab-go/internal/config"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/internal/textproc"
	"annolab-go/pkg/es"
	"annolab-go/pkg/log"
	"annolab-go/pkg/storage"
	"annolab-go/pkg/tasks"
	"annolab-go/pkg/tika"

	"github.com/minio/minio-go/v7"
)

// 乱码文档的失败原因，写入 fail_reason 供前端提示用户。
const garbledFailReason = "文本提取结果疑似乱码（可能是扫描件或编码损坏），请上传可复制文本的版本或先做 OCR"

// Processor 封装了文档入库处理的所有依赖和逻辑。
// 入库只做提取、分块与关键词索引；向量化推迟到首次检索时按需进行。
type Processor struct {
	tikaClient   *tika.Client
	esCfg        config.ElasticsearchConfig
	minioCfg     config.MinIOConfig
	retrievalCfg config.RetrievalConfig
	docRepo      repository.DocumentRepository
	chunkRepo    repository.ChunkRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	esCfg config.ElasticsearchConfig,
	minioCfg config.MinIOConfig,
	retrievalCfg config.RetrievalConfig,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
) *Processor {
	return &Processor{
		tikaClient:   tikaClient,
		esCfg:        esCfg,
		minioCfg:     minioCfg,
		retrievalCfg: retrievalCfg,
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
	}
}

// Process 是文档入库任务的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentIngestTask) error {
	log.Infof("[Processor] 开始处理文档, DocumentID: %d, FileName: %s, UserID: %d", task.DocumentID, task.FileName, task.UserID)

	// 1. 从 MinIO 下载文件
	objectName := fmt.Sprintf("merged/%s", task.FileName)
	log.Infof("[Processor] 步骤1: 从MinIO下载文件, Bucket: %s, Object: %s", p.minioCfg.BucketName, objectName)
	object, err := storage.MinioClient.GetObject(ctx, p.minioCfg.BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		log.Errorf("[Processor] 从MinIO下载文件失败, Object: %s, Error: %v", objectName, err)
		return fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		log.Errorf("[Processor] 从MinIO对象流中读取内容失败, Error: %v", err)
		return fmt.Errorf("读取MinIO对象流失败: %w", err)
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d字节", size)
	if size == 0 {
		log.Warnf("[Processor] 文件 '%s' 内容为空, 处理中止", task.FileName)
		p.markFailed(task.DocumentID, "文件内容为空")
		return errors.New("文件内容为空")
	}

	// 2. 使用 Tika 提取文本
	log.Info("[Processor] 步骤2: 使用Tika提取文本内容")
	textContent, err := p.tikaClient.ExtractText(ctx, bytes.NewReader(buf.Bytes()), task.FileName)
	if err != nil {
		log.Errorf("[Processor] 使用Tika提取文本失败, FileName: %s, Error: %v", task.FileName, err)
		p.markFailed(task.DocumentID, "文本提取失败")
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if textContent == "" {
		log.Warnf("[Processor] Tika提取的文本内容为空, 处理中止, FileName: %s", task.FileName)
		p.markFailed(task.DocumentID, "提取的文本内容为空")
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 乱码检测
	// 乱码是文档本身的问题，重试也不会变好，标记失败后按成功返回，
	// 让消费端提交 offset 而不进入重试。
	log.Info("[Processor] 步骤3: 乱码检测")
	if textproc.IsGarbled(textContent) {
		log.Warnf("[Processor] 文档 %d 的提取文本疑似乱码, 处理中止", task.DocumentID)
		p.markFailed(task.DocumentID, garbledFailReason)
		return nil
	}

	// 4. 文本分块
	log.Infof("[Processor] 步骤4: 进行文本分块, chunkSize: %d, chunkOverlap: %d", p.retrievalCfg.ChunkSize, p.retrievalCfg.ChunkOverlap)
	segments := textproc.Split(textContent, p.retrievalCfg.ChunkSize, p.retrievalCfg.ChunkOverlap)
	log.Infof("[Processor] 步骤4: 文本分块完成, 共生成 %d 个分块", len(segments))
	if len(segments) == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, 处理中止, FileName: %s", task.FileName)
		p.markFailed(task.DocumentID, "未生成任何文本分块")
		return errors.New("未生成任何文本分块")
	}

	// 5. 保存全文与分块到数据库
	log.Info("[Processor] 步骤5: 保存全文与分块到数据库")
	if err := p.docRepo.UpdateFullText(task.DocumentID, textContent); err != nil {
		log.Errorf("[Processor] 保存文档全文失败, DocumentID: %d, Error: %v", task.DocumentID, err)
		return fmt.Errorf("保存文档全文失败: %w", err)
	}
	// 为避免重复消费导致的累计膨胀，写入前先清理既有分块（幂等）
	if err := p.chunkRepo.DeleteByDocumentID(task.DocumentID); err != nil {
		log.Warnf("[Processor] 清理旧分块记录失败 (document_id=%d): %v", task.DocumentID, err)
	}
	chunks := make([]model.Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, model.Chunk{
			DocumentID:  task.DocumentID,
			ChunkIndex:  i,
			TextContent: seg.Text,
			StartPos:    seg.Start,
			EndPos:      seg.End,
		})
	}
	if err := p.chunkRepo.BatchCreate(chunks); err != nil {
		log.Errorf("[Processor] 批量保存文本分块到数据库失败, Error: %v", err)
		return fmt.Errorf("批量保存文本分块失败: %w", err)
	}
	log.Infof("[Processor] 步骤5: 成功将 %d 个分块存入数据库", len(chunks))

	// 6. 索引到 Elasticsearch（仅关键词索引，向量排序在进程内完成）
	log.Info("[Processor] 步骤6: 开始将分块索引到Elasticsearch")
	if err := es.DeleteByDocument(ctx, p.esCfg.IndexName, task.DocumentID); err != nil {
		log.Warnf("[Processor] 清理ES旧索引失败 (document_id=%d): %v", task.DocumentID, err)
	}
	for i, chunk := range chunks {
		esDoc := model.EsChunk{
			ChunkKey:    fmt.Sprintf("%d_%d", task.DocumentID, chunk.ChunkIndex),
			DocumentID:  task.DocumentID,
			ProjectID:   task.ProjectID,
			FolderID:    task.FolderID,
			ChunkIndex:  chunk.ChunkIndex,
			TextContent: chunk.TextContent,
			StartPos:    chunk.StartPos,
			EndPos:      chunk.EndPos,
		}
		if err := es.IndexChunk(ctx, p.esCfg.IndexName, esDoc); err != nil {
			log.Errorf("[Processor] 索引分块 %d 到Elasticsearch失败, Error: %v", chunk.ChunkIndex, err)
			return fmt.Errorf("索引块 %d 到 Elasticsearch 失败: %w", chunk.ChunkIndex, err)
		}
		if (i+1)%50 == 0 {
			log.Infof("[Processor] 已索引 %d/%d 个分块", i+1, len(chunks))
		}
	}
	log.Info("[Processor] 步骤6: 所有分块索引完毕")

	// 7. 标记文档可检索
	if err := p.docRepo.MarkReady(task.DocumentID); err != nil {
		log.Errorf("[Processor] 更新文档状态失败, DocumentID: %d, Error: %v", task.DocumentID, err)
		return fmt.Errorf("更新文档状态失败: %w", err)
	}
	log.Infof("[Processor] 文档处理成功完成, DocumentID: %d", task.DocumentID)
	return nil
}

// markFailed 尽力把失败状态写回数据库，写回失败只记日志。
func (p *Processor) markFailed(documentID uint, reason string) {
	if err := p.docRepo.MarkFailed(documentID, reason); err != nil {
		log.Errorf("[Processor] 写回失败状态失败, DocumentID: %d, Error: %v", documentID, err)
	}
}
