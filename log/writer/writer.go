package writer

import (
	"io"
	"os"

	"github.com/hatlonely/surrealx/ref"
)

func init() {
	ref.MustRegisterT[ConsoleWriter](NewConsoleWriterWithOptions)
	ref.MustRegisterT[FileWriter](NewFileWriterWithOptions)
}

// Writer 日志输出器
type Writer interface {
	io.Writer
	io.Closer
}

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// stdout 或 stderr
	Target string `cfg:"target" def:"stderr" validate:"omitempty,oneof=stdout stderr"`
}

// ConsoleWriter 控制台输出器，Close 不会关闭标准输出
type ConsoleWriter struct {
	io.Writer
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) (*ConsoleWriter, error) {
	if options != nil && options.Target == "stdout" {
		return &ConsoleWriter{Writer: os.Stdout}, nil
	}
	return &ConsoleWriter{Writer: os.Stderr}, nil
}

func (w *ConsoleWriter) Close() error {
	return nil
}
