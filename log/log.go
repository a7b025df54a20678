package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

var (
	mux    sync.RWMutex
	logger = newLog(zapcore.AddSync(os.Stderr), zapcore.InfoLevel)
)

// Options selects where and how much is logged.
type Options struct {
	File      string
	Level     string
	MaxSizeMB int
}

// Log printf style logger shared by every package.
type Log struct {
	zl *zap.Logger
	s  *zap.SugaredLogger
}

func Logger() *Log {
	mux.RLock()
	defer mux.RUnlock()
	return logger
}

// Init replaces the process logger. An empty File keeps logging on stderr.
func Init(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return fmt.Errorf("log.Init level=%s failed cause=%s", opts.Level, err.Error())
		}
	}
	ws := zapcore.AddSync(os.Stderr)
	if opts.File != "" {
		size := opts.MaxSizeMB
		if size <= 0 {
			size = defaultMaxSizeMB
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    size,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			LocalTime:  true,
			Compress:   true,
		})
	}
	l := newLog(ws, level)
	mux.Lock()
	old := logger
	logger = l
	mux.Unlock()
	_ = old.zl.Sync()
	return nil
}

func newLog(ws zapcore.WriteSyncer, level zapcore.Level) *Log {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, zap.NewAtomicLevelAt(level))
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Log{zl: zl, s: zl.Sugar()}
}

func (l *Log) Debug(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (l *Log) Info(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

func (l *Log) Warn(format string, args ...interface{}) {
	l.s.Warnf(format, args...)
}

func (l *Log) Error(format string, args ...interface{}) {
	l.s.Errorf(format, args...)
}

// Close flushes buffered entries.
func (l *Log) Close() {
	_ = l.zl.Sync()
}
