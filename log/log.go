// Package log 提供库内统一使用的结构化日志，默认输出 text 格式到 stderr。
package log

import (
	"io"
	"log/slog"

	"github.com/hatlonely/surrealx/log/logger"
	"github.com/hatlonely/surrealx/ref"
	"github.com/pkg/errors"
)

type Logger = logger.Logger

var defaultLogger Logger

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "info", Format: "text"})
	if err != nil {
		panic("init default logger: " + err.Error())
	}
	defaultLogger = l
}

// Default 默认日志
func Default() Logger {
	return defaultLogger
}

// Discard 丢弃所有输出的日志
func Discard() Logger {
	return logger.NewSLog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// NewLoggerWithOptions 通过注册表构造日志，options 为空时返回默认日志
func NewLoggerWithOptions(options *ref.TypeOptions) (Logger, error) {
	if options == nil || options.Type == "" {
		return defaultLogger, nil
	}
	// 不修改调用方的配置
	opts := *options
	if opts.Namespace == "" {
		opts.Namespace = "github.com/hatlonely/surrealx/log/logger"
	}
	l, err := ref.NewWithOptions[Logger](&opts)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger")
	}
	return l, nil
}
