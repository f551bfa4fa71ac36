package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 未调用 Init 时，所有日志函数都应退化为 no-op 而不是崩溃，
// 否则任何引用了日志的包都无法单独测试。
func TestLogBeforeInitDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Debugf("debug %s", "msg")
		Info("info")
		Infof("info %d", 1)
		Infow("infow", "key", "value")
		Warnf("warn %v", "msg")
		Error("error", errors.New("boom"))
		Errorf("error %v", "msg")
		Sync()
	})
}

func TestInitReplacesLogger(t *testing.T) {
	Init("info", "json", "")
	assert.NotPanics(t, func() {
		Infof("after init %d", 1)
	})
}
