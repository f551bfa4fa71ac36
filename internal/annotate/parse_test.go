package annotate

import (
	"testing"

	"annolab-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArray(t *testing.T) {
	t.Run("裸数组", func(t *testing.T) {
		assert.Equal(t, `[{"a":1}]`, extractJSONArray(`[{"a":1}]`))
	})

	t.Run("markdown 代码块包裹", func(t *testing.T) {
		reply := "```json\n[{\"quote\":\"x\"}]\n```"
		assert.Equal(t, `[{"quote":"x"}]`, extractJSONArray(reply))
	})

	t.Run("数组前后有说明文字", func(t *testing.T) {
		reply := "好的，以下是结果：\n[1, 2]\n希望有帮助。"
		assert.Equal(t, "[1, 2]", extractJSONArray(reply))
	})

	t.Run("没有数组", func(t *testing.T) {
		assert.Equal(t, "", extractJSONArray("抱歉，没有找到相关内容。"))
	})
}

func TestLocateRuneSpan(t *testing.T) {
	t.Run("ASCII 文本", func(t *testing.T) {
		start, end, ok := locateRuneSpan("hello world", "world")
		require.True(t, ok)
		assert.Equal(t, 6, start)
		assert.Equal(t, 11, end)
	})

	t.Run("多字节字符前缀", func(t *testing.T) {
		// 偏移按字符计，不按字节计
		start, end, ok := locateRuneSpan("研究方法包括实验", "包括")
		require.True(t, ok)
		assert.Equal(t, 4, start)
		assert.Equal(t, 6, end)
	})

	t.Run("找不到", func(t *testing.T) {
		_, _, ok := locateRuneSpan("hello", "bye")
		assert.False(t, ok)
	})

	t.Run("空文本", func(t *testing.T) {
		_, _, ok := locateRuneSpan("hello", "")
		assert.False(t, ok)
	})
}

func TestLocateAcrossChunks(t *testing.T) {
	chunks := []model.Chunk{
		{ChunkIndex: 0, TextContent: "first chunk text", StartPos: 0, EndPos: 16},
		{ChunkIndex: 1, TextContent: "second chunk body", StartPos: 100, EndPos: 117},
	}

	t.Run("命中第二个分块时叠加其起始偏移", func(t *testing.T) {
		start, end, ok := locateAcrossChunks(chunks, "chunk body")
		require.True(t, ok)
		assert.Equal(t, 107, start)
		assert.Equal(t, 117, end)
	})

	t.Run("任何分块都找不到", func(t *testing.T) {
		_, _, ok := locateAcrossChunks(chunks, "missing")
		assert.False(t, ok)
	})
}

func TestNormalizeRelevance(t *testing.T) {
	assert.Equal(t, model.RelevanceHigh, normalizeRelevance(" High "))
	assert.Equal(t, model.RelevanceMedium, normalizeRelevance("medium"))
	assert.Equal(t, model.RelevanceLow, normalizeRelevance("不相关"))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(-0.5))
	assert.Equal(t, 1.0, clampConfidence(1.7))
	assert.Equal(t, 0.42, clampConfidence(0.42))
}
