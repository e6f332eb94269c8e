package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/hatlonely/surrealx/log/writer"
	"github.com/hatlonely/surrealx/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[SLog](NewSLogWithOptions)
}

// SLogOptions slog 日志配置
type SLogOptions struct {
	Level  string `cfg:"level" def:"info" validate:"omitempty,oneof=debug info warn error"`
	Format string `cfg:"format" def:"text" validate:"omitempty,oneof=text json"`
	// 输出器，为空时输出到 stderr
	Output    *ref.TypeOptions `cfg:"output"`
	AddSource bool             `cfg:"addSource"`
	// 每条日志都携带的字段
	Fields map[string]any `cfg:"fields"`
}

// SLog 基于 log/slog 的 Logger 实现
type SLog struct {
	slogger *slog.Logger
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		options = &SLogOptions{}
	}

	level, err := parseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	if options.Output != nil && options.Output.Type != "" {
		w, err = ref.NewWithOptions[writer.Writer](options.Output)
		if err != nil {
			return nil, errors.WithMessage(err, "create log writer")
		}
	} else {
		w, _ = writer.NewConsoleWriterWithOptions(nil)
	}

	handlerOptions := &slog.HandlerOptions{Level: level, AddSource: options.AddSource}
	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOptions)
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOptions)
	default:
		return nil, errors.Errorf("unsupported log format %q", options.Format)
	}

	slogger := slog.New(handler)
	for k, v := range options.Fields {
		slogger = slogger.With(k, v)
	}
	return &SLog{slogger: slogger}, nil
}

// NewSLog 包装一个已有的 slog.Logger
func NewSLog(slogger *slog.Logger) *SLog {
	return &SLog{slogger: slogger}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown log level %q", level)
}

func (l *SLog) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *SLog) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *SLog) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *SLog) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...)}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name)}
}
