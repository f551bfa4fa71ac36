package textproc

import (
	"strings"
	"unicode"
)

// 乱码检测参数：样本长度、各比例阈值。
const (
	garbledMinLength  = 100
	garbledSampleSize = 2000
	minWordRatio      = 0.4
	maxSymbolRatio    = 0.1
)

// 扫描件或自定义编码的 PDF 提取失败时，文本往往充满这类符号。
const symbolSet = "[]{}\\|^~`@#$%&*+=<>"

// IsGarbled 判断提取出的文本是否为乱码（提取失败的信号）。
//
// 文本为空或短于 100 字符时信息量不足，直接视为可用。
// 否则取前 2000 字符采样：统计长度 >= 3 的连续字母串（词）占非空白字符的
// 比例、特殊符号占比与平均词长，任一指标越界即判为乱码。
// 纯函数，无副作用；返回 true 时调用方应拒绝入库而不是对乱码分块。
func IsGarbled(text string) bool {
	runes := []rune(text)
	if len(runes) < garbledMinLength {
		return false
	}
	sample := runes
	if len(sample) > garbledSampleSize {
		sample = sample[:garbledSampleSize]
	}

	// 词统计：长度 >= 3 的最大连续字母串
	words := 0
	wordChars := 0
	run := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			run++
			continue
		}
		if run >= 3 {
			words++
			wordChars += run
		}
		run = 0
	}
	if run >= 3 {
		words++
		wordChars += run
	}

	// 非空白字符总数与特殊符号数
	totalChars := 0
	symbols := 0
	for _, r := range sample {
		if unicode.IsSpace(r) {
			continue
		}
		totalChars++
		if strings.ContainsRune(symbolSet, r) {
			symbols++
		}
	}

	var wordRatio, symbolRatio float64
	if totalChars > 0 {
		wordRatio = float64(wordChars) / float64(totalChars)
		symbolRatio = float64(symbols) / float64(totalChars)
	}
	var avgWordLen float64
	if words > 0 {
		avgWordLen = float64(wordChars) / float64(words)
	}

	if wordRatio < minWordRatio {
		return true
	}
	if symbolRatio > maxSymbolRatio {
		return true
	}
	if words > 10 && avgWordLen < 3 {
		return true
	}
	return false
}
