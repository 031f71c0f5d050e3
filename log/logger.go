package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/op/go-logging"
)

type Level logging.Level

// The levels that can be passed to the SetLevel function.
const (
	Debug Level = iota
	Info
	Warning
	Error
)

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var (
	backendMu      sync.Mutex
	leveledBackend logging.LeveledBackend
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger is a named module logger. Debug output is gated per logger in
// addition to the global backend level.
type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	module string
	out    *logging.Logger
}

// New creates a named logger.
func New(module string) *DefaultLogger {
	return &DefaultLogger{
		module: module,
		out:    logging.MustGetLogger(module),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()

	if enabled {
		backendMu.Lock()
		leveledBackend.SetLevel(logging.DEBUG, l.module)
		backendMu.Unlock()
	}
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Debug(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Info(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.out.Warning(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.out.Error(fmt.Sprintf(format, args...))
}

type nopLogger struct{}

func NewNop() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// SetSink overrides the backend output sink.
func SetSink(sink io.Writer) {
	backend := logging.NewLogBackend(sink, "", 0)
	withFormatter := logging.NewBackendFormatter(backend, format)

	backendMu.Lock()
	defer backendMu.Unlock()
	leveledBackend = logging.AddModuleLevel(withFormatter)
	leveledBackend.SetLevel(logging.INFO, "")
	logging.SetBackend(leveledBackend)
}

// SetLevel sets the verbosity of every module logger.
func SetLevel(level Level) {
	var l logging.Level
	switch level {
	case Debug:
		l = logging.DEBUG
	case Info:
		l = logging.INFO
	case Warning:
		l = logging.WARNING
	case Error:
		l = logging.ERROR
	default:
		l = logging.INFO
	}

	backendMu.Lock()
	leveledBackend.SetLevel(l, "")
	backendMu.Unlock()
}

func init() {
	SetSink(os.Stderr)
}
