package model

//
// Logger
//

// DebugLogger is a logger emitting only debug messages.
type DebugLogger interface {
	// Debug emits a debug message.
	Debug(msg string)

	// Debugf formats and emits a debug message.
	Debugf(format string, v ...interface{})
}

// InfoLogger is a logger emitting debug and infor messages.
type InfoLogger interface {
	// An InfoLogger is also a DebugLogger.
	DebugLogger

	// Info emits an informational message.
	Info(msg string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...interface{})
}

// Logger defines the common interface that a logger should have. It is
// out of the box compatible with `log.Log` in `apex/log`.
type Logger interface {
	// A Logger is also an InfoLogger.
	InfoLogger

	// Warn emits a warning message.
	Warn(msg string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...interface{})
}

// DiscardLogger is the default logger that discards its input
var DiscardLogger Logger = logDiscarder{}

// logDiscarder is a logger that discards its input
type logDiscarder struct{}

// Debug implements DebugLogger.Debug
func (logDiscarder) Debug(msg string) {}

// Debugf implements DebugLogger.Debugf
func (logDiscarder) Debugf(format string, v ...interface{}) {}

// Info implements InfoLogger.Info
func (logDiscarder) Info(msg string) {}

// Infof implements InfoLogger.Infof
func (logDiscarder) Infof(format string, v ...interface{}) {}

// Warn implements Logger.Warn
func (logDiscarder) Warn(msg string) {}

// Warnf implements Logger.Warnf
func (logDiscarder) Warnf(format string, v ...interface{}) {}

// ErrorToStringOrOK emits "ok" on "<nil>"" values for success.
func ErrorToStringOrOK(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// ValidLoggerOrDefault is a factory that either returns the logger
// provided as argument, if not nil, or DiscardLogger.
func ValidLoggerOrDefault(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	return DiscardLogger
}

// NewPrefixLogger returns a Logger that prepends prefix to every
// message. We use it to tag messages with the round ID and with the
// name of the transport that emitted them.
func NewPrefixLogger(prefix string, logger Logger) Logger {
	return &prefixLogger{prefix: prefix, logger: ValidLoggerOrDefault(logger)}
}

// prefixLogger is a logger with a prefix.
type prefixLogger struct {
	prefix string
	logger Logger
}

var _ Logger = &prefixLogger{}

// Debug implements DebugLogger.Debug
func (p *prefixLogger) Debug(msg string) {
	p.logger.Debug(p.prefix + msg)
}

// Debugf implements DebugLogger.Debugf
func (p *prefixLogger) Debugf(format string, v ...interface{}) {
	p.logger.Debugf(p.prefix+format, v...)
}

// Info implements InfoLogger.Info
func (p *prefixLogger) Info(msg string) {
	p.logger.Info(p.prefix + msg)
}

// Infof implements InfoLogger.Infof
func (p *prefixLogger) Infof(format string, v ...interface{}) {
	p.logger.Infof(p.prefix+format, v...)
}

// Warn implements Logger.Warn
func (p *prefixLogger) Warn(msg string) {
	p.logger.Warn(p.prefix + msg)
}

// Warnf implements Logger.Warnf
func (p *prefixLogger) Warnf(format string, v ...interface{}) {
	p.logger.Warnf(p.prefix+format, v...)
}
