package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGarbled(t *testing.T) {
	t.Run("empty text assumed usable", func(t *testing.T) {
		assert.False(t, IsGarbled(""))
	})

	t.Run("text shorter than 100 chars assumed usable", func(t *testing.T) {
		// 即使内容全是符号，样本太短也不做判定
		assert.False(t, IsGarbled(strings.Repeat("@#$%", 20)))
	})

	t.Run("symbol soup is garbled", func(t *testing.T) {
		assert.True(t, IsGarbled(strings.Repeat("@#$%", 500)))
	})

	t.Run("normal prose is not garbled", func(t *testing.T) {
		prose := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
		assert.False(t, IsGarbled(prose))
	})

	t.Run("digit heavy extraction is garbled", func(t *testing.T) {
		// 没有任何词，wordRatio 为 0
		assert.True(t, IsGarbled(strings.Repeat("0123456789 ", 30)))
	})

	t.Run("sampling only inspects the head", func(t *testing.T) {
		// 前 2000 字符是正常文本，其后的乱码不影响判定
		head := strings.Repeat("Readable sentences fill the sample window entirely. ", 50)
		tail := strings.Repeat("@#$%", 1000)
		assert.False(t, IsGarbled(head+tail))
	})
}
