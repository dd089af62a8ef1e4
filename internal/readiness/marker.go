package readiness

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/ouinet-go/ouinet/internal/model"
)

// DefaultOverlayMarker is the line an overlay router prints once its
// client tunnel has been established.
const DefaultOverlayMarker = `[\s\S]*I2P Tunnel has been established`

// ErrMarkerNotFound indicates that the output ended before we saw the marker.
var ErrMarkerNotFound = errors.New("output ended without readiness marker")

// maxLineSize is the maximum length of a line we keep in memory.
const maxLineSize = 64 << 10

// MarkerScanner is a [Prober] that becomes ready when a line of output
// matches a regular expression anchored at the beginning of the line. Any
// other termination of the output is a failure. The zero value is invalid;
// construct using [NewMarkerScanner]. It is safe to use concurrently.
type MarkerScanner struct {
	latch   *Latch
	logger  model.Logger
	pattern *regexp.Regexp
	stream  *lineSplitter
}

var (
	_ Prober    = &MarkerScanner{}
	_ Notifier  = &MarkerScanner{}
	_ io.Writer = &MarkerScanner{}
)

// NewMarkerScanner creates a new [MarkerScanner]. The pattern must match
// from the beginning of a line. Each scanned line is logged at debug level.
func NewMarkerScanner(pattern string, logger model.Logger) (*MarkerScanner, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	ms := &MarkerScanner{
		latch:   NewLatch(),
		logger:  model.ValidLoggerOrDefault(logger),
		pattern: re,
	}
	ms.stream = &lineSplitter{ms: ms}
	return ms, nil
}

// PollReady implements [Prober].
func (ms *MarkerScanner) PollReady() Status {
	return ms.latch.PollReady()
}

// Changed implements [Notifier].
func (ms *MarkerScanner) Changed() <-chan struct{} {
	return ms.latch.Changed()
}

// Write implements io.Writer. Data may contain partial lines, which we
// buffer until we see the newline. Use [MarkerScanner.NewStream] when
// more than one stream writes into the scanner.
func (ms *MarkerScanner) Write(data []byte) (int, error) {
	return ms.stream.Write(data)
}

// NewStream returns a new io.Writer feeding the scanner, with its own
// buffer for partial lines. Use a distinct stream for each output of
// a process, so that lines written by the process are not mixed up.
func (ms *MarkerScanner) NewStream() io.Writer {
	return &lineSplitter{ms: ms}
}

// lineSplitter splits written data into lines.
type lineSplitter struct {
	ms      *MarkerScanner
	mu      sync.Mutex
	partial []byte
}

func (ls *lineSplitter) Write(data []byte) (int, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.partial = append(ls.partial, data...)
	for {
		idx := bytes.IndexByte(ls.partial, '\n')
		if idx < 0 {
			break
		}
		ls.ms.Line(string(ls.partial[:idx]))
		ls.partial = ls.partial[idx+1:]
	}
	if len(ls.partial) > maxLineSize {
		ls.ms.Line(string(ls.partial))
		ls.partial = nil
	}
	return len(data), nil
}

// Consume reads lines from r until EOF or error and returns the read
// error, if any. It does not fail the scanner at EOF because a process
// may write the marker on another stream: the owner of the process
// calls [MarkerScanner.Fail] once all streams are done and the process
// has exited. Call Consume in a background goroutine.
func (ms *MarkerScanner) Consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		ms.Line(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading output: %w", err)
	}
	return nil
}

// Line processes a single line of output.
func (ms *MarkerScanner) Line(line string) {
	ms.logger.Debugf("readiness: %s", line)
	if ms.pattern.MatchString(line) {
		ms.latch.Set(StatusReady)
	}
}

// Fail marks the scanner as failed unless it has already reached
// a terminal state. A nil reason means [ErrMarkerNotFound].
func (ms *MarkerScanner) Fail(reason error) {
	if reason == nil {
		reason = ErrMarkerNotFound
	}
	ms.latch.Set(StatusFailed(reason))
}
