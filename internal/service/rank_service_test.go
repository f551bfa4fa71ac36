package service

import (
	"context"
	"testing"

	"annolab-go/internal/config"
	"annolab-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingClient 返回固定向量并统计调用次数。
type fakeEmbeddingClient struct {
	vector []float32
	calls  int
}

func (f *fakeEmbeddingClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

// fakeChunkRepo 记录向量写回调用。
type fakeChunkRepo struct {
	updated map[uint]model.Vector
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{updated: make(map[uint]model.Vector)}
}

func (f *fakeChunkRepo) BatchCreate(chunks []model.Chunk) error                { return nil }
func (f *fakeChunkRepo) FindByDocumentID(documentID uint) ([]model.Chunk, error) { return nil, nil }
func (f *fakeChunkRepo) CountByDocumentID(documentID uint) (int64, error)      { return 0, nil }
func (f *fakeChunkRepo) DeleteByDocumentID(documentID uint) error              { return nil }
func (f *fakeChunkRepo) UpdateEmbedding(chunkID uint, embedding model.Vector, modelVersion string) error {
	f.updated[chunkID] = embedding
	return nil
}

func TestCosine(t *testing.T) {
	t.Run("同向向量相似度为1", func(t *testing.T) {
		v := []float32{0.3, 0.4, 0.5}
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
	})

	t.Run("正交向量相似度为0", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("零向量相似度为0", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
		assert.Equal(t, 0.0, Cosine(nil, []float32{1, 2}))
	})

	t.Run("维度不一致相似度为0", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	})
}

func TestRankChunks(t *testing.T) {
	s := &rankService{}
	query := []float32{1, 0}
	chunks := []model.Chunk{
		{ID: 1, ChunkIndex: 0, Embedding: model.Vector{1, 1}}, // ≈0.707
		{ID: 2, ChunkIndex: 1, Embedding: model.Vector{1, 0}}, // 1.0
		{ID: 3, ChunkIndex: 2, Embedding: model.Vector{0, 1}}, // 0.0，低于阈值
	}

	t.Run("按相似度降序并过滤低于阈值的分块", func(t *testing.T) {
		ranked := s.RankChunks(chunks, query, ThoroughnessStandard)
		require.Len(t, ranked, 2)
		assert.Equal(t, uint(2), ranked[0].Chunk.ID)
		assert.Equal(t, uint(1), ranked[1].Chunk.ID)
		assert.Greater(t, ranked[0].Score, ranked[1].Score)
	})

	t.Run("未知档位按standard处理", func(t *testing.T) {
		ranked := s.RankChunks(chunks, query, "no-such-level")
		assert.Len(t, ranked, 2)
	})

	t.Run("quick档位截断到10条", func(t *testing.T) {
		many := make([]model.Chunk, 15)
		for i := range many {
			many[i] = model.Chunk{ID: uint(i + 1), ChunkIndex: i, Embedding: model.Vector{1, 0}}
		}
		ranked := s.RankChunks(many, query, ThoroughnessQuick)
		assert.Len(t, ranked, 10)
	})

	t.Run("exhaustive档位不限数量且放宽阈值", func(t *testing.T) {
		many := make([]model.Chunk, 120)
		for i := range many {
			// 相似度 ≈0.196，只有 exhaustive 的阈值放得进
			many[i] = model.Chunk{ID: uint(i + 1), ChunkIndex: i, Embedding: model.Vector{1, 5}}
		}
		assert.Len(t, s.RankChunks(many, query, ThoroughnessExhaustive), 120)
		assert.Empty(t, s.RankChunks(many, query, ThoroughnessStandard))
	})

	t.Run("同分分块保持原有顺序", func(t *testing.T) {
		equal := []model.Chunk{
			{ID: 7, ChunkIndex: 0, Embedding: model.Vector{1, 0}},
			{ID: 8, ChunkIndex: 1, Embedding: model.Vector{2, 0}},
			{ID: 9, ChunkIndex: 2, Embedding: model.Vector{3, 0}},
		}
		ranked := s.RankChunks(equal, query, ThoroughnessStandard)
		require.Len(t, ranked, 3)
		assert.Equal(t, uint(7), ranked[0].Chunk.ID)
		assert.Equal(t, uint(8), ranked[1].Chunk.ID)
		assert.Equal(t, uint(9), ranked[2].Chunk.ID)
	})
}

func TestEnsureEmbeddings(t *testing.T) {
	embedder := &fakeEmbeddingClient{vector: []float32{0.5, 0.5}}
	repo := newFakeChunkRepo()
	s := NewRankService(embedder, config.EmbeddingConfig{Model: "test-model"}, repo, nil)

	chunks := []model.Chunk{
		{ID: 1, TextContent: "已有向量", Embedding: model.Vector{1, 0}},
		{ID: 2, TextContent: "缺向量"},
	}

	filled, err := s.EnsureEmbeddings(context.Background(), chunks)
	require.NoError(t, err)

	// 只补缺失的分块，已有向量不重算
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, model.Vector{1, 0}, filled[0].Embedding)
	assert.Equal(t, model.Vector{0.5, 0.5}, filled[1].Embedding)
	assert.Equal(t, "test-model", filled[1].ModelVersion)

	// 补出的向量写回了存储
	assert.NotContains(t, repo.updated, uint(1))
	assert.Contains(t, repo.updated, uint(2))
}

func TestEmbedQueryWithoutCache(t *testing.T) {
	embedder := &fakeEmbeddingClient{vector: []float32{0.1, 0.9}}
	s := NewRankService(embedder, config.EmbeddingConfig{Model: "test-model"}, newFakeChunkRepo(), nil)

	vector, err := s.EmbedQuery(context.Background(), "查询文本")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.9}, vector)
	assert.Equal(t, 1, embedder.calls)
}
