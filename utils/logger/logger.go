package logger

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

type logPair struct {
	level logrus.Level
	obj   string
	msg   string
}

const (
	logSize   = 1000
	objLength = 20
)

func objToString(obj any) (objStr string) {
	if obj == nil {
		objStr = "NIL"
	} else if stringerObj, ok := obj.(stringer); ok {
		objStr = stringerObj.String()
	} else if objStr, ok = obj.(string); ok {
	} else {
		t := reflect.TypeOf(obj)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		objStr = t.Name()
	}
	if len(objStr) > objLength {
		objStr = objStr[:objLength]
	}
	return
}

// Logger writes `|object|message` lines through its own logrus instance.
// Lines are formatted and written from a background goroutine; when the queue
// is full the line is dropped instead of blocking the caller.
// A nil *Logger discards everything.
type Logger struct {
	lg      *logrus.Logger
	logCh   chan logPair
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	once    sync.Once
}

// New creates a Logger writing to stderr at the given level.
func New(lvl logrus.Level) *Logger {
	lg := logrus.New()
	lg.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/02/01 15:04:05",
	})
	return newLogger(lg, lvl)
}

// NewWithOutput creates a Logger with a plain text formatter writing to out.
func NewWithOutput(lvl logrus.Level, out io.Writer) *Logger {
	lg := logrus.New()
	lg.SetOutput(out)
	lg.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
	return newLogger(lg, lvl)
}

func newLogger(lg *logrus.Logger, lvl logrus.Level) *Logger {
	lg.SetLevel(lvl)
	l := &Logger{
		lg:    lg,
		logCh: make(chan logPair, logSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	defer close(l.done)
	sb := new(bytes.Buffer)
	write := func(p logPair) {
		fmt.Fprintf(sb, "|%20s|%-100s", p.obj, p.msg)
		l.lg.Log(p.level, sb.String())
		sb.Reset()
	}
	for {
		select {
		case p := <-l.logCh:
			write(p)
		case <-l.quit:
			for {
				select {
				case p := <-l.logCh:
					write(p)
				default:
					return
				}
			}
		}
	}
}

// Close flushes queued lines and stops the writer goroutine.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.quit)
		<-l.done
	})
}

// Level returns the current level. A nil logger reports PanicLevel.
func (l *Logger) Level() logrus.Level {
	if l == nil {
		return logrus.PanicLevel
	}
	return l.lg.GetLevel()
}

// Dropped returns the number of lines lost to a full queue.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

func (l *Logger) enabled(lvl logrus.Level) bool {
	return l != nil && !l.closed.Load() && l.lg.IsLevelEnabled(lvl)
}

func (l *Logger) send(lvl logrus.Level, object any, msg string) {
	select {
	case l.logCh <- logPair{level: lvl, obj: objToString(object), msg: msg}:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) Trace(object any, message string) {
	if !l.enabled(logrus.TraceLevel) {
		return
	}
	l.send(logrus.TraceLevel, object, message)
}

func (l *Logger) Tracef(object any, message string, args ...any) {
	if !l.enabled(logrus.TraceLevel) {
		return
	}
	l.send(logrus.TraceLevel, object, fmt.Sprintf(message, args...))
}

func (l *Logger) Debug(object any, message string) {
	if !l.enabled(logrus.DebugLevel) {
		return
	}
	l.send(logrus.DebugLevel, object, message)
}

func (l *Logger) Debugf(object any, message string, args ...any) {
	if !l.enabled(logrus.DebugLevel) {
		return
	}
	l.send(logrus.DebugLevel, object, fmt.Sprintf(message, args...))
}

func (l *Logger) Info(object any, message string) {
	if !l.enabled(logrus.InfoLevel) {
		return
	}
	l.send(logrus.InfoLevel, object, message)
}

func (l *Logger) Infof(object any, message string, args ...any) {
	if !l.enabled(logrus.InfoLevel) {
		return
	}
	l.send(logrus.InfoLevel, object, fmt.Sprintf(message, args...))
}

func (l *Logger) Warning(object any, message string) {
	if !l.enabled(logrus.WarnLevel) {
		return
	}
	l.send(logrus.WarnLevel, object, message)
}

func (l *Logger) Warningf(object any, message string, args ...any) {
	if !l.enabled(logrus.WarnLevel) {
		return
	}
	l.send(logrus.WarnLevel, object, fmt.Sprintf(message, args...))
}

func (l *Logger) Error(object any, message string) {
	if !l.enabled(logrus.ErrorLevel) {
		return
	}
	l.send(logrus.ErrorLevel, object, message)
}

func (l *Logger) Errorf(object any, message string, args ...any) {
	if !l.enabled(logrus.ErrorLevel) {
		return
	}
	l.send(logrus.ErrorLevel, object, fmt.Sprintf(message, args...))
}
