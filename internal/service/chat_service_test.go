package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"annolab-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextText(t *testing.T) {
	s := &chatService{}

	t.Run("无结果返回空串", func(t *testing.T) {
		assert.Equal(t, "", s.buildContextText(nil))
	})

	t.Run("长中文片段按rune截断且保持合法UTF-8", func(t *testing.T) {
		// 1200 个三字节字符，超出 1000 的截断上限
		long := strings.Repeat("研究方法与实验结论", 150)
		require.Greater(t, utf8.RuneCountInString(long), 1000)

		out := s.buildContextText([]model.GlobalSearchResult{
			{Type: "document", FileName: "论文A.pdf", MatchedText: long},
		})

		assert.True(t, utf8.ValidString(out))
		assert.Contains(t, out, "…")
		assert.NotContains(t, out, string(utf8.RuneError))
		// 截断后的片段为 1000 个 rune 加省略号
		start := strings.Index(out, ") ") + 2
		snippet := strings.TrimSuffix(out[start:], "\n")
		assert.Equal(t, 1001, utf8.RuneCountInString(snippet))
	})

	t.Run("来源标签按文件名-文件夹名-类型回落", func(t *testing.T) {
		out := s.buildContextText([]model.GlobalSearchResult{
			{Type: "document", FileName: "论文A.pdf", MatchedText: "a"},
			{Type: "folder", FolderName: "实验记录", MatchedText: "b"},
			{Type: "project_context", MatchedText: "c"},
		})
		assert.Contains(t, out, "[1] (论文A.pdf)")
		assert.Contains(t, out, "[2] (实验记录)")
		assert.Contains(t, out, "[3] (project_context)")
	})
}
