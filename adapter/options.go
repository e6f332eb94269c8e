package adapter

import (
	"github.com/hatlonely/surrealx/conn"
	"github.com/hatlonely/surrealx/ddl"
	"github.com/hatlonely/surrealx/ref"
	"github.com/hatlonely/surrealx/surreal"
)

type Options struct {
	// 地址、账号、命名空间和数据库
	surreal.Options

	// 自定义 Dialer，为空时使用 surreal.Dialer
	Dialer *ref.TypeOptions `cfg:"dialer"`

	Connection conn.ManagerOptions `cfg:"connection"`

	// emitSchema 的默认选项
	DDL ddl.Options `cfg:"ddl"`

	// 每个关联查询最多返回的行数
	JoinLimit int `cfg:"joinLimit" def:"100"`

	// 打印每条语句和参数，Logger 为空时使用 debug 级别的默认日志
	Debug  bool             `cfg:"debug"`
	Logger *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableLogging bool `cfg:"enableLogging"`
	EnableTracing bool `cfg:"enableTracing"`
	// 指标名前缀，也是 tracer 名和日志里的 component
	Name string `cfg:"name" def:"surrealx"`
}
