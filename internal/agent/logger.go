package agent

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Severity is one of the five log levels from spec section 6.4.
type Severity int

const (
	SevDebug Severity = iota
	SevInfo
	SevWarning
	SevErr
	SevCrit
)

func (s Severity) String() string {
	switch s {
	case SevDebug:
		return "DEBUG"
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevErr:
		return "ERR"
	case SevCrit:
		return "CRIT"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity resolves a -l flag value to a Severity, grounded in the
// spec's exact level names (case-insensitive).
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return SevDebug, true
	case "info":
		return SevInfo, true
	case "warning", "warn":
		return SevWarning, true
	case "err", "error":
		return SevErr, true
	case "crit", "critical":
		return SevCrit, true
	}
	return 0, false
}

// Logger is the agent-wide logging interface: a bounded event queue
// drained by one background goroutine to stderr, grounded in the
// teacher's commbus.BusLogger interface (Debug/Info/Warn/Error), widened
// to five severities and the spec's fixed wire format rather than the
// teacher's key/value pairs.
type Logger interface {
	Log(sev Severity, file string, line int, fn string, format string, args ...any)
	Close()
}

type logRecord struct {
	sev   Severity
	at    time.Time
	goid  uint64
	file  string
	line  int
	fn    string
	msg   string
}

// StderrLogger implements Logger per spec section 6.4: a single
// background goroutine drains a bounded event queue to an io.Writer
// (stderr in production, a buffer in tests) in the format
// "YYYY-MM-DDTHH:MM:SS.ffffff T:<thread-id-hex> <file>:<line>:<func> <SEVERITY> <message>".
type StderrLogger struct {
	out       io.Writer
	threshold Severity

	queue chan logRecord
	done  chan struct{}
	once  sync.Once
}

// NewStderrLogger starts the background drain goroutine. Close must be
// called exactly once, at teardown, to stop it and flush the queue.
func NewStderrLogger(out io.Writer, threshold Severity) *StderrLogger {
	l := &StderrLogger{
		out:       out,
		threshold: threshold,
		queue:     make(chan logRecord, 256),
		done:      make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *StderrLogger) drain() {
	defer close(l.done)
	for rec := range l.queue {
		fmt.Fprintf(l.out, "%s T:%x %s:%d:%s %s %s\n",
			rec.at.Format("2006-01-02T15:04:05.000000"),
			rec.goid, rec.file, rec.line, rec.fn, rec.sev, rec.msg)
	}
}

// Log enqueues a record if sev meets the configured threshold;
// below-threshold records are dropped before ever reaching the queue.
func (l *StderrLogger) Log(sev Severity, file string, line int, fn string, format string, args ...any) {
	if sev < l.threshold {
		return
	}
	l.queue <- logRecord{
		sev:  sev,
		at:   time.Now(),
		goid: goroutineID(),
		file: file,
		line: line,
		fn:   fn,
		msg:  fmt.Sprintf(format, args...),
	}
}

// Close stops the drain goroutine and waits for the queue to empty.
func (l *StderrLogger) Close() {
	l.once.Do(func() {
		close(l.queue)
		<-l.done
	})
}

// goroutineID is a best-effort numeric goroutine identifier used as the
// spec's "thread-id-hex" field; Go has no public goroutine-id API, so
// this parses it out of runtime.Stack the same way the standard
// library's own internal debug tooling does.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for _, b := range buf[len("goroutine "):n] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + uint64(b-'0')
	}
	return id
}

// logAt is a small helper so call sites can log with their own file/line
// via runtime.Caller rather than repeating that boilerplate.
func logAt(l Logger, sev Severity, format string, args ...any) {
	if l == nil {
		return
	}
	pc, file, line, ok := runtime.Caller(1)
	fn := "?"
	if !ok {
		file = "?"
	} else if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	l.Log(sev, file, line, fn, format, args...)
}
