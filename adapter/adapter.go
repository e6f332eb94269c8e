// Package adapter 在 SurrealDB 上执行 schema 描述的实体的增删改查。
//
// 每个操作编译出一条参数化语句，通过 conn.Manager 获取连接执行，并把结果解码为逻辑字段名的记录。
package adapter

import (
	"context"
	"sync/atomic"

	"github.com/hatlonely/surrealx/codec"
	"github.com/hatlonely/surrealx/conn"
	"github.com/hatlonely/surrealx/ddl"
	"github.com/hatlonely/surrealx/log"
	"github.com/hatlonely/surrealx/log/logger"
	"github.com/hatlonely/surrealx/query"
	"github.com/hatlonely/surrealx/ref"
	"github.com/hatlonely/surrealx/schema"
	"github.com/hatlonely/surrealx/surreal"
	"github.com/pkg/errors"
)

// Acquirer 提供可用连接，*conn.Manager 实现了这个接口
type Acquirer interface {
	Acquire(ctx context.Context) (conn.Conn, error)
}

// Adapter 并发安全，所有操作共享一个连接
type Adapter struct {
	*executor

	acquirer Acquirer
	manager  *conn.Manager
	ddl      ddl.Options
}

// NewWithOptions 根据选项构造 Dialer 和连接管理器，连接在第一次操作时建立
func NewWithOptions(s *schema.Schema, options *Options) (*Adapter, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	var dialer conn.Dialer
	if options.Dialer != nil {
		d, err := ref.NewWithOptions[conn.Dialer](options.Dialer)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create dialer")
		}
		dialer = d
	} else {
		d, err := surreal.NewDialerWithOptions(&options.Options)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create dialer")
		}
		dialer = d
	}

	manager, err := conn.NewManager(dialer, &options.Connection)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create connection manager")
	}

	a, err := New(s, manager, options)
	if err != nil {
		return nil, err
	}
	if options.Connection.Logger == nil {
		manager.SetLogger(a.logger)
	}
	a.manager = manager
	return a, nil
}

// New 使用已有的连接来源构造，options 可以为空
func New(s *schema.Schema, acquirer Acquirer, options *Options) (*Adapter, error) {
	if s == nil {
		return nil, errors.Wrap(schema.ErrConfiguration, "schema is nil")
	}
	if acquirer == nil {
		return nil, errors.New("acquirer is nil")
	}
	if options == nil {
		options = &Options{}
	}
	name := options.Name
	if name == "" {
		name = "surrealx"
	}
	joinLimit := options.JoinLimit
	if joinLimit <= 0 {
		joinLimit = 100
	}

	l, err := newLogger(options)
	if err != nil {
		return nil, err
	}
	obs, err := newObserver(name, l, options.EnableMetrics, options.EnableLogging, options.EnableTracing)
	if err != nil {
		return nil, err
	}

	c := codec.New(s)
	return &Adapter{
		executor: &executor{
			schema:    s,
			codec:     c,
			compiler:  query.NewCompiler(c),
			acquire:   acquirer.Acquire,
			logger:    l,
			debug:     options.Debug,
			joinLimit: joinLimit,
			observer:  obs,
		},
		acquirer: acquirer,
		ddl:      options.DDL,
	}, nil
}

func newLogger(options *Options) (log.Logger, error) {
	if options.Logger != nil {
		l, err := log.NewLoggerWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		return l.WithGroup("adapter"), nil
	}
	if options.Debug {
		l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "debug", Format: "text"})
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		return l.WithGroup("adapter"), nil
	}
	return log.Default().WithGroup("adapter"), nil
}

func (a *Adapter) Schema() *schema.Schema {
	return a.schema
}

// TxResult 事务执行结果，Atomic 总是 false: 中途失败时之前的语句已经生效
type TxResult struct {
	Atomic bool
	// 已经成功执行的语句数
	Statements int64
}

// Transaction 在同一个连接上依次执行 fn 中的操作，不保证原子性
func (a *Adapter) Transaction(ctx context.Context, fn func(ctx context.Context, tx Operations) error) (result *TxResult, err error) {
	result = &TxResult{Atomic: false}
	err = a.observer.observe(ctx, "transaction", "", func(ctx context.Context) error {
		handle, err := a.acquirer.Acquire(ctx)
		if err != nil {
			return err
		}
		pinned := conn.Serialize(handle)

		tx := *a.executor
		tx.acquire = func(ctx context.Context) (conn.Conn, error) {
			return pinned, nil
		}
		tx.statements = &atomic.Int64{}
		defer func() {
			result.Statements = tx.statements.Load()
		}()

		return fn(ctx, &tx)
	})
	return result, err
}

// EmitSchema 生成建表脚本，options 为空时使用构造时的选项
func (a *Adapter) EmitSchema(options *ddl.Options) (*ddl.Script, error) {
	if options == nil {
		options = &a.ddl
	}
	return ddl.Emit(a.schema, options)
}

// Close 关闭由 NewWithOptions 创建的连接管理器
func (a *Adapter) Close() error {
	if a.manager == nil {
		return nil
	}
	return a.manager.Close()
}
