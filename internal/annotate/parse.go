// Package annotate 封装了调用大语言模型生成标注与抽取引文的管线。
package annotate

import (
	"strings"
	"unicode/utf8"
)

// extractJSONArray 从模型回复中截取 JSON 数组文本。
// 模型偶尔会在 JSON 外包裹 markdown 代码块或附加说明，这里只保留
// 第一个 '[' 到最后一个 ']' 之间的内容。
func extractJSONArray(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// locateRuneSpan 在 haystack 中定位 needle，返回字符（rune）坐标的 [start, end)。
// 模型返回的引文必须能在原文中找到才算有效，偏移量不信任模型自己给出的数字。
func locateRuneSpan(haystack, needle string) (int, int, bool) {
	if needle == "" {
		return 0, 0, false
	}
	byteIdx := strings.Index(haystack, needle)
	if byteIdx < 0 {
		return 0, 0, false
	}
	start := utf8.RuneCountInString(haystack[:byteIdx])
	end := start + utf8.RuneCountInString(needle)
	return start, end, true
}

// clampConfidence 把置信度压回 [0, 1] 区间。
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
