// Package logx contains the github.com/apex/log handler used by
// the command line tools.
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

// Colors mapping.
var Colors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

// Handler prints each entry as "[elapsed] <level> message" followed
// by its fields, where elapsed is the number of seconds since Start.
type Handler struct {
	// Start is the time from which we measure the elapsed time.
	Start time.Time

	// Writer is the writer where we print entries.
	Writer io.Writer

	mu sync.Mutex
}

var _ log.Handler = &Handler{}

// NewHandler creates a new [*Handler] writing to w. When w is a
// file we wrap it such that colors also work on Windows.
func NewHandler(w io.Writer) *Handler {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &Handler{Start: time.Now(), Writer: w}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) (err error) {
	level := e.Level.String()
	if e.Level >= log.DebugLevel && int(e.Level) < len(Colors) {
		level = Colors[e.Level].Sprint(level)
	}
	s := fmt.Sprintf("[%14.6f] <%s> %s", time.Since(h.Start).Seconds(), level, e.Message)
	for _, name := range e.Fields.Names() {
		s += fmt.Sprintf(" %s=%v", name, e.Fields.Get(name))
	}
	s += "\n"
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.Writer.Write([]byte(s))
	return
}

// NewLogger creates a new [*log.Logger] using a [*Handler] writing
// to w. When debug is true we also emit debug messages.
func NewLogger(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return &log.Logger{Handler: NewHandler(w), Level: level}
}
