// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"annolab-go/internal/config"
	"annolab-go/internal/model"
	"annolab-go/internal/repository"
	"annolab-go/pkg/embedding"
	"annolab-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// 检索彻底程度档位。
const (
	ThoroughnessQuick      = "quick"
	ThoroughnessStandard   = "standard"
	ThoroughnessThorough   = "thorough"
	ThoroughnessExhaustive = "exhaustive"
)

// thoroughnessPolicy 定义了一个档位的排序截断参数。
// MaxChunks 为 0 表示不限数量。
type thoroughnessPolicy struct {
	MaxChunks     int
	MinSimilarity float64
}

// 各档位的截断参数。exhaustive 放宽相似度阈值以换取召回。
var thoroughnessPolicies = map[string]thoroughnessPolicy{
	ThoroughnessQuick:      {MaxChunks: 10, MinSimilarity: 0.3},
	ThoroughnessStandard:   {MaxChunks: 30, MinSimilarity: 0.3},
	ThoroughnessThorough:   {MaxChunks: 100, MinSimilarity: 0.3},
	ThoroughnessExhaustive: {MaxChunks: 0, MinSimilarity: 0.1},
}

// policyFor 返回指定档位的截断参数，未知档位回落到 standard。
func policyFor(level string) thoroughnessPolicy {
	if p, ok := thoroughnessPolicies[level]; ok {
		return p
	}
	return thoroughnessPolicies[ThoroughnessStandard]
}

// RankedChunk 是一条带相似度得分的排序结果。
type RankedChunk struct {
	Chunk model.Chunk
	Score float64
}

// Cosine 计算两个向量的余弦相似度。
// 维度不一致或任一向量范数为零时返回 0，不视为错误。
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankService 接口定义了分块向量排序的业务逻辑。
type RankService interface {
	// EmbedQuery 计算查询文本的向量，带 Redis 缓存。
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EnsureEmbeddings 为缺少向量的分块计算并写回向量，返回补齐后的切片。
	EnsureEmbeddings(ctx context.Context, chunks []model.Chunk) ([]model.Chunk, error)
	// RankChunks 按与查询向量的余弦相似度对分块降序排序，并按档位截断。
	RankChunks(chunks []model.Chunk, queryVector []float32, level string) []RankedChunk
}

// rankService 是 RankService 接口的实现。
type rankService struct {
	embeddingClient embedding.Client
	embeddingCfg    config.EmbeddingConfig
	chunkRepo       repository.ChunkRepository
	redisClient     *redis.Client
}

// NewRankService 创建一个新的 RankService 实例。
func NewRankService(embeddingClient embedding.Client, embeddingCfg config.EmbeddingConfig, chunkRepo repository.ChunkRepository, redisClient *redis.Client) RankService {
	return &rankService{
		embeddingClient: embeddingClient,
		embeddingCfg:    embeddingCfg,
		chunkRepo:       chunkRepo,
		redisClient:     redisClient,
	}
}

// EmbedQuery 计算查询文本的向量。
// 同一查询在短时间内会被反复发起（翻页、调档位），用 Redis 缓存向量结果。
func (s *rankService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	cacheKey := fmt.Sprintf("query_embedding:%s:%s", s.embeddingCfg.Model, hex.EncodeToString(sum[:16]))

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var vector []float32
			if jsonErr := json.Unmarshal([]byte(cached), &vector); jsonErr == nil {
				return vector, nil
			}
		} else if err != redis.Nil {
			log.Warnf("[Rank] 读取查询向量缓存失败: %v", err)
		}
	}

	vector, err := s.embeddingClient.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("计算查询向量失败: %w", err)
	}

	if s.redisClient != nil {
		if data, jsonErr := json.Marshal(vector); jsonErr == nil {
			if err := s.redisClient.Set(ctx, cacheKey, data, time.Hour).Err(); err != nil {
				log.Warnf("[Rank] 写入查询向量缓存失败: %v", err)
			}
		}
	}
	return vector, nil
}

// EnsureEmbeddings 为缺少向量的分块计算向量并写回数据库。
// 分块文本不可变，每个分块最多只会计算一次；写回失败不中断本次排序，
// 只损失缓存效果，下次请求会重新计算。
func (s *rankService) EnsureEmbeddings(ctx context.Context, chunks []model.Chunk) ([]model.Chunk, error) {
	missing := 0
	for i := range chunks {
		if len(chunks[i].Embedding) > 0 {
			continue
		}
		vector, err := s.embeddingClient.CreateEmbedding(ctx, chunks[i].TextContent)
		if err != nil {
			return nil, fmt.Errorf("分块 %d 向量化失败: %w", chunks[i].ChunkIndex, err)
		}
		chunks[i].Embedding = vector
		chunks[i].ModelVersion = s.embeddingCfg.Model
		if err := s.chunkRepo.UpdateEmbedding(chunks[i].ID, vector, s.embeddingCfg.Model); err != nil {
			log.Warnf("[Rank] 写回分块 %d 的向量失败: %v", chunks[i].ID, err)
		}
		missing++
	}
	if missing > 0 {
		log.Infof("[Rank] 补齐了 %d 个分块的向量", missing)
	}
	return chunks, nil
}

// RankChunks 计算每个分块与查询向量的余弦相似度，过滤低于阈值的分块，
// 按得分降序稳定排序后截断到档位上限。得分相同的分块保持原有顺序。
func (s *rankService) RankChunks(chunks []model.Chunk, queryVector []float32, level string) []RankedChunk {
	policy := policyFor(level)

	ranked := make([]RankedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		score := Cosine(queryVector, chunk.Embedding)
		if score < policy.MinSimilarity {
			continue
		}
		ranked = append(ranked, RankedChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if policy.MaxChunks > 0 && len(ranked) > policy.MaxChunks {
		ranked = ranked[:policy.MaxChunks]
	}
	return ranked
}
