package writer

import (
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileWriterOptions 文件输出配置，按大小轮转
type FileWriterOptions struct {
	Path string `cfg:"path" validate:"required"`
	// 单个文件最大 MB
	MaxSize    int  `cfg:"maxSize" def:"100"`
	MaxBackups int  `cfg:"maxBackups"`
	MaxAge     int  `cfg:"maxAge"`
	Compress   bool `cfg:"compress"`
}

// FileWriter 基于 lumberjack 的滚动文件输出器
type FileWriter struct {
	*lumberjack.Logger
}

func NewFileWriterWithOptions(options *FileWriterOptions) (*FileWriter, error) {
	if options == nil || options.Path == "" {
		return nil, errors.New("file writer requires a path")
	}
	return &FileWriter{Logger: &lumberjack.Logger{
		Filename:   options.Path,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	}}, nil
}
