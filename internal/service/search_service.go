// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"annolab-go/internal/annotate"
	"annolab-go/internal/config"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/es"
	"annolab-go/pkg/llm"
	"annolab-go/pkg/log"

	"gorm.io/gorm"
)

// 文本匹配打分的参数。
const (
	substringScore   = 0.9 // 整句子串命中
	wordMatchWeight  = 0.6 // 词级部分命中的权重
	minWordMatch     = 0.5 // 词级命中率低于此值不计分
	minScoredWordLen = 3   // 参与词级匹配的最小词长
	quoteTopChunks   = 5   // 送入引文抽取的分块数
)

// TextMatchScore 计算查询与候选文本的词法匹配得分，范围 [0, 1]。
// 整句作为子串命中得 substringScore；否则按查询词的命中比例打分，
// 比例不足 minWordMatch 时视为不相关。匹配不区分大小写。
func TextMatchScore(query, text string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(text)
	if q == "" || t == "" {
		return 0
	}
	if strings.Contains(t, q) {
		return substringScore
	}

	words := make([]string, 0)
	for _, w := range strings.Fields(q) {
		if len([]rune(w)) >= minScoredWordLen {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return 0
	}

	matched := 0
	for _, w := range words {
		if strings.Contains(t, w) {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(words))
	if ratio < minWordMatch {
		return 0
	}
	return wordMatchWeight * ratio
}

// SearchService 接口定义了搜索相关的业务逻辑。
type SearchService interface {
	// GlobalSearch 在项目范围内跨来源搜索：项目描述、文件夹、文档与标注。
	GlobalSearch(ctx context.Context, projectID uint, query string, filters model.GlobalSearchFilters, limit int) (*model.GlobalSearchResponse, error)
	// SearchDocumentSemantic 在单文档内做语义搜索，返回模型抽取的引文。
	SearchDocumentSemantic(ctx context.Context, documentID uint, query string) ([]model.QuoteResult, error)
	// SearchDocumentText 在单文档内做关键词搜索，返回 ES 命中的分块。
	SearchDocumentText(ctx context.Context, documentID uint, query string, size int) ([]model.ChunkMatch, error)
}

// searchService 是 SearchService 接口的实现。
type searchService struct {
	projectRepo    repository.ProjectRepository
	docRepo        repository.DocumentRepository
	chunkRepo      repository.ChunkRepository
	annotationRepo repository.AnnotationRepository
	rankService    RankService
	llmClient      llm.Client
	esCfg          config.ElasticsearchConfig
	retrievalCfg   config.RetrievalConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(
	projectRepo repository.ProjectRepository,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	annotationRepo repository.AnnotationRepository,
	rankService RankService,
	llmClient llm.Client,
	esCfg config.ElasticsearchConfig,
	retrievalCfg config.RetrievalConfig,
) SearchService {
	return &searchService{
		projectRepo:    projectRepo,
		docRepo:        docRepo,
		chunkRepo:      chunkRepo,
		annotationRepo: annotationRepo,
		rankService:    rankService,
		llmClient:      llmClient,
		esCfg:          esCfg,
		retrievalCfg:   retrievalCfg,
	}
}

// searchCandidate 是全局搜索的一条待打分候选。
type searchCandidate struct {
	text   string
	result model.GlobalSearchResult
}

// GlobalSearch 在项目范围内聚合四类来源做词法匹配搜索。
// 不存在的项目返回空结果而非错误；多个过滤条件同时给出时取交集。
func (s *searchService) GlobalSearch(ctx context.Context, projectID uint, query string, filters model.GlobalSearchFilters, limit int) (*model.GlobalSearchResponse, error) {
	start := time.Now()
	if limit <= 0 {
		limit = s.retrievalCfg.SearchLimit
	}
	log.Infof("[SearchService] 开始全局搜索, projectID: %d, query: '%s', limit: %d", projectID, query, limit)

	empty := &model.GlobalSearchResponse{Results: []model.GlobalSearchResult{}}

	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[SearchService] 项目 %d 不存在, 返回空结果", projectID)
			empty.SearchTimeMs = time.Since(start).Milliseconds()
			return empty, nil
		}
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}

	candidates, err := s.collectCandidates(project, filters)
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 收集到 %d 条候选", len(candidates))

	// 打分并丢弃不相关候选
	results := make([]model.GlobalSearchResult, 0, len(candidates))
	for _, c := range candidates {
		score := TextMatchScore(query, c.text)
		if score == 0 {
			continue
		}
		r := c.result
		r.MatchedText = c.text
		r.SimilarityScore = score
		r.RelevanceLevel = model.RelevanceLevelOf(score)
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	log.Infof("[SearchService] 全局搜索完成, 命中 %d 条, 返回 %d 条", total, len(results))
	return &model.GlobalSearchResponse{
		Results:      results,
		TotalResults: total,
		SearchTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// collectCandidates 按过滤条件收集四类来源的候选文本。
// 分类过滤只有标注能满足；文件夹/文档过滤会排除不属于任何文件夹或文档的来源。
func (s *searchService) collectCandidates(project *model.Project, filters model.GlobalSearchFilters) ([]searchCandidate, error) {
	folderSet := toIDSet(filters.FolderIDs)
	documentSet := toIDSet(filters.DocumentIDs)
	annotationsOnly := filters.Category != ""
	scopedToFolders := len(folderSet) > 0
	scopedToDocuments := len(documentSet) > 0

	var candidates []searchCandidate

	// 1. 项目自身的描述文本
	if !annotationsOnly && !scopedToFolders && !scopedToDocuments {
		candidates = append(candidates, searchCandidate{
			text: joinNonEmpty(project.Name, project.Thesis),
			result: model.GlobalSearchResult{
				Type: model.ResultTypeProjectContext,
			},
		})
	}

	// 2. 文件夹
	folders, err := s.projectRepo.FindFoldersByProject(project.ID)
	if err != nil {
		return nil, fmt.Errorf("查询项目文件夹失败: %w", err)
	}
	if !annotationsOnly && !scopedToDocuments {
		for _, f := range folders {
			if scopedToFolders && !folderSet[f.ID] {
				continue
			}
			folder := f
			candidates = append(candidates, searchCandidate{
				text: joinNonEmpty(folder.Name, folder.Description),
				result: model.GlobalSearchResult{
					Type:       model.ResultTypeFolderContext,
					FolderID:   &folder.ID,
					FolderName: folder.Name,
				},
			})
		}
	}

	// 3. 文档（同时决定第 4 步标注的归属范围）
	docs, err := s.docRepo.FindByProjectID(project.ID)
	if err != nil {
		return nil, fmt.Errorf("查询项目文档失败: %w", err)
	}
	scopedDocs := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if scopedToFolders && (d.FolderID == nil || !folderSet[*d.FolderID]) {
			continue
		}
		if scopedToDocuments && !documentSet[d.ID] {
			continue
		}
		scopedDocs = append(scopedDocs, d)
	}
	if !annotationsOnly {
		for _, d := range scopedDocs {
			doc := d
			candidates = append(candidates, searchCandidate{
				text: joinNonEmpty(doc.FileName, doc.RetrievalContext),
				result: model.GlobalSearchResult{
					Type:       model.ResultTypeDocumentContext,
					DocumentID: &doc.ID,
					FileName:   doc.FileName,
					FolderID:   doc.FolderID,
				},
			})
		}
	}

	// 4. 标注
	docIDs := make([]uint, 0, len(scopedDocs))
	fileNames := make(map[uint]string, len(scopedDocs))
	for _, d := range scopedDocs {
		docIDs = append(docIDs, d.ID)
		fileNames[d.ID] = d.FileName
	}
	annotations, err := s.annotationRepo.FindByDocumentIDs(docIDs)
	if err != nil {
		return nil, fmt.Errorf("查询标注失败: %w", err)
	}
	for _, a := range annotations {
		if filters.Category != "" && a.Category != filters.Category {
			continue
		}
		annotation := a
		startPos, endPos := annotation.StartPos, annotation.EndPos
		candidates = append(candidates, searchCandidate{
			text: annotation.SearchableText(),
			result: model.GlobalSearchResult{
				Type:         model.ResultTypeAnnotation,
				AnnotationID: &annotation.ID,
				DocumentID:   &annotation.DocumentID,
				FileName:     fileNames[annotation.DocumentID],
				Category:     annotation.Category,
				StartPos:     &startPos,
				EndPos:       &endPos,
			},
		})
	}

	return candidates, nil
}

// SearchDocumentSemantic 对单文档做语义搜索。
// 先用向量排序选出最相关的分块，再交给模型抽取引文。
func (s *searchService) SearchDocumentSemantic(ctx context.Context, documentID uint, query string) ([]model.QuoteResult, error) {
	log.Infof("[SearchService] 开始单文档语义搜索, documentID: %d, query: '%s'", documentID, query)

	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	if doc.Status != model.DocStatusReady {
		return nil, fmt.Errorf("文档 %d 尚未完成处理, 当前状态: %d", documentID, doc.Status)
	}

	chunks, err := s.chunkRepo.FindByDocumentID(documentID)
	if err != nil {
		return nil, fmt.Errorf("查询文档分块失败: %w", err)
	}
	if len(chunks) == 0 {
		return []model.QuoteResult{}, nil
	}

	queryVector, err := s.rankService.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	chunks, err = s.rankService.EnsureEmbeddings(ctx, chunks)
	if err != nil {
		return nil, err
	}

	ranked := s.rankService.RankChunks(chunks, queryVector, ThoroughnessStandard)
	if len(ranked) > quoteTopChunks {
		ranked = ranked[:quoteTopChunks]
	}
	topChunks := make([]model.Chunk, 0, len(ranked))
	for _, r := range ranked {
		topChunks = append(topChunks, r.Chunk)
	}
	log.Infof("[SearchService] 向量排序完成, 送入引文抽取的分块数: %d", len(topChunks))

	quotes, err := annotate.ExtractQuotes(ctx, s.llmClient, query, doc.RetrievalContext, topChunks)
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 单文档语义搜索完成, 抽取到 %d 条引文", len(quotes))
	return quotes, nil
}

// SearchDocumentText 对单文档做关键词搜索，由 Elasticsearch 的 BM25 打分。
func (s *searchService) SearchDocumentText(ctx context.Context, documentID uint, query string, size int) ([]model.ChunkMatch, error) {
	if size <= 0 {
		size = 10
	}
	log.Infof("[SearchService] 开始单文档关键词搜索, documentID: %d, query: '%s', size: %d", documentID, query, size)

	if _, err := s.docRepo.FindByID(documentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"text_content": query,
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{
						"document_id": documentID,
					},
				},
			},
		},
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := es.ESClient.Search(
		es.ESClient.Search.WithContext(ctx),
		es.ESClient.Search.WithIndex(s.esCfg.IndexName),
		es.ESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	matches := make([]model.ChunkMatch, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		matches = append(matches, model.ChunkMatch{
			ChunkIndex:  hit.Source.ChunkIndex,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
			StartPos:    hit.Source.StartPos,
			EndPos:      hit.Source.EndPos,
		})
	}
	log.Infof("[SearchService] 单文档关键词搜索完成, 命中 %d 条", len(matches))
	return matches, nil
}

// toIDSet 把 ID 切片转成集合，空切片返回空集合。
func toIDSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// joinNonEmpty 用空格拼接非空片段。
func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
