package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("empty text yields nothing", func(t *testing.T) {
		assert.Nil(t, Split("", 500, 50))
	})

	t.Run("blank text yields nothing", func(t *testing.T) {
		assert.Empty(t, Split(strings.Repeat(" ", 300), 500, 50))
	})

	t.Run("short text yields one full-span segment", func(t *testing.T) {
		text := "短文档，一段就够了。This is well under the chunk size."
		segments := Split(text, 500, 50)
		require.Len(t, segments, 1)
		assert.Equal(t, 0, segments[0].Start)
		assert.Equal(t, len([]rune(text)), segments[0].End)
		assert.Equal(t, text, segments[0].Text)
	})

	t.Run("offsets are valid and strictly increasing", func(t *testing.T) {
		text := strings.Repeat("x", 3000)
		segments := Split(text, 500, 50)
		require.NotEmpty(t, segments)
		n := len([]rune(text))
		prevStart := -1
		for _, seg := range segments {
			assert.GreaterOrEqual(t, seg.Start, 0)
			assert.Less(t, seg.Start, seg.End)
			assert.LessOrEqual(t, seg.End, n)
			assert.Greater(t, seg.Start, prevStart)
			prevStart = seg.Start
		}
	})

	t.Run("1200 chars with overlap 50 produce three covering chunks", func(t *testing.T) {
		text := strings.Repeat("a", 1200)
		segments := Split(text, 500, 50)
		require.Len(t, segments, 3)
		assert.Equal(t, 0, segments[0].Start)
		assert.Equal(t, 500, segments[0].End)
		assert.Equal(t, 450, segments[1].Start)
		assert.Equal(t, 950, segments[1].End)
		assert.Equal(t, 900, segments[2].Start)
		assert.Equal(t, 1200, segments[2].End)
		// 相邻分块共享 50 个字符的尾部
		for i := 1; i < len(segments); i++ {
			assert.Equal(t, 50, segments[i-1].End-segments[i].Start)
		}
	})

	t.Run("snaps to a sentence boundary near the target length", func(t *testing.T) {
		text := strings.Repeat("a", 480) + ". " + strings.Repeat("b", 200)
		segments := Split(text, 500, 50)
		require.GreaterOrEqual(t, len(segments), 2)
		assert.Equal(t, 482, segments[0].End)
		assert.True(t, strings.HasSuffix(segments[0].Text, ". "))
		assert.Equal(t, 432, segments[1].Start)
	})

	t.Run("segment text matches its offsets", func(t *testing.T) {
		text := "First sentence here. Second sentence follows! Third one asks? " + strings.Repeat("tail ", 200)
		runes := []rune(text)
		for _, seg := range Split(text, 500, 50) {
			assert.Equal(t, string(runes[seg.Start:seg.End]), seg.Text)
		}
	})

	t.Run("overlap no smaller than chunk size is clamped", func(t *testing.T) {
		text := strings.Repeat("y", 1000)
		segments := Split(text, 100, 100)
		require.NotEmpty(t, segments)
		// 钳制后游标仍然前进，不会死循环
		prev := -1
		for _, seg := range segments {
			assert.Greater(t, seg.Start, prev)
			prev = seg.Start
		}
	})
}
