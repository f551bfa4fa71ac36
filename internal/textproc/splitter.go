// Package textproc 提供文本分块与抽取质量检测的纯函数。
package textproc

import "strings"

// Segment 是文档全文中的一个连续切片。
// Start/End 是相对全文的字符（rune）偏移，满足 0 <= Start < End <= 全文长度。
type Segment struct {
	Text  string
	Start int
	End   int
}

// 句子终止符窗口参数。在目标长度 ±boundarySlack 范围内寻找句子边界，
// 向前最多多看 lookahead 个字符。
const (
	boundarySlack = 50
	lookahead     = 100
)

// Split 将长文本切分为带重叠、按句对齐、可定位的分块序列。
//
// 算法：游标从 0 开始，每次取 chunkSize 个字符；若后面还有文本，
// 则在目标长度附近（±50）寻找句子终止符（". " ".\n" "! " "!\n" "? " "?\n"），
// 找到则把切点吸附到句子边界，避免从句子中间截断；
// 再以 end-overlap 作为下一块的起点。空白分块被丢弃但不影响游标推进。
// 短于 chunkSize 的文本恰好产出一个覆盖全文的分块。
// overlap >= chunkSize 会导致游标无法前进，此时钳制为 chunkSize/4。
func Split(text string, chunkSize, overlap int) []Segment {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}

	var segments []Segment
	start := 0
	for start < n {
		end := start + chunkSize
		if end < n {
			// 在前瞻窗口内寻找离目标长度最近的句子边界
			limit := end + lookahead
			if limit > n {
				limit = n
			}
			if pos, termLen := nearestBoundary(runes[start:limit], chunkSize); pos >= 0 {
				end = start + pos + termLen
			}
		} else {
			end = n
		}

		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			segments = append(segments, Segment{Text: piece, Start: start, End: end})
		}

		if end >= n {
			break
		}
		start = end - overlap
		// 尾部不足一个重叠窗口时停止，避免在短尾上反复回退
		if start >= n-overlap {
			break
		}
	}
	return segments
}

// nearestBoundary 在 window 中寻找位置落在 [chunkSize-50, chunkSize+50] 的
// 句子终止符，返回离 chunkSize 最近者的位置与终止符长度；找不到返回 (-1, 0)。
func nearestBoundary(window []rune, chunkSize int) (int, int) {
	lo := chunkSize - boundarySlack
	hi := chunkSize + boundarySlack
	if lo < 0 {
		lo = 0
	}
	if hi > len(window)-2 {
		hi = len(window) - 2
	}

	best := -1
	for i := lo; i <= hi; i++ {
		if !isTerminator(window[i], window[i+1]) {
			continue
		}
		if best < 0 || abs(i-chunkSize) < abs(best-chunkSize) {
			best = i
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, 2
}

// isTerminator 判断两个相邻字符是否构成句子终止符。
func isTerminator(a, b rune) bool {
	if a != '.' && a != '!' && a != '?' {
		return false
	}
	return b == ' ' || b == '\n'
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
