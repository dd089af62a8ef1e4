package model

import (
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiscardLoggerWorksAsIntended(t *testing.T) {
	logger := DiscardLogger
	logger.Debug("foo")
	logger.Debugf("%s", "foo")
	logger.Info("foo")
	logger.Infof("%s", "foo")
	logger.Warn("foo")
	logger.Warnf("%s", "foo")
}

func TestErrorToStringOrOK(t *testing.T) {
	t.Run("on success", func(t *testing.T) {
		expectedResult := ErrorToStringOrOK(nil)
		if expectedResult != "ok" {
			t.Fatal("expected ok")
		}
	})

	t.Run("on failure", func(t *testing.T) {
		err := io.EOF
		expectedResult := ErrorToStringOrOK(err)
		if expectedResult != err.Error() {
			t.Fatal("not the result we expected", expectedResult)
		}
	})
}

func TestValidLoggerOrDefault(t *testing.T) {
	if ValidLoggerOrDefault(nil) != DiscardLogger {
		t.Fatal("expected DiscardLogger")
	}
	logger := NewPrefixLogger("x", nil)
	if ValidLoggerOrDefault(logger) != logger {
		t.Fatal("expected the same logger")
	}
}

// recordingLogger records the messages it receives.
type recordingLogger struct {
	lines []string
}

func (rl *recordingLogger) Debug(msg string) { rl.lines = append(rl.lines, msg) }
func (rl *recordingLogger) Debugf(format string, v ...interface{}) {
	rl.Debug(fmt.Sprintf(format, v...))
}
func (rl *recordingLogger) Info(msg string)                       { rl.lines = append(rl.lines, msg) }
func (rl *recordingLogger) Infof(format string, v ...interface{}) { rl.Info(fmt.Sprintf(format, v...)) }
func (rl *recordingLogger) Warn(msg string)                       { rl.lines = append(rl.lines, msg) }
func (rl *recordingLogger) Warnf(format string, v ...interface{}) { rl.Warn(fmt.Sprintf(format, v...)) }

func TestPrefixLogger(t *testing.T) {
	rl := &recordingLogger{}
	logger := NewPrefixLogger("[round] ", rl)
	logger.Debug("a")
	logger.Debugf("%s", "b")
	logger.Info("c")
	logger.Infof("%s", "d")
	logger.Warn("e")
	logger.Warnf("%s", "f")
	expect := []string{"[round] a", "[round] b", "[round] c", "[round] d", "[round] e", "[round] f"}
	if diff := cmp.Diff(expect, rl.lines); diff != "" {
		t.Fatal(diff)
	}
}
