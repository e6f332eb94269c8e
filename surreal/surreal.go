// Package surreal 基于 surrealdb.go 实现 conn.Dialer。
package surreal

import (
	"context"
	"fmt"

	"github.com/hatlonely/surrealx/conn"
	"github.com/hatlonely/surrealx/ref"
	"github.com/pkg/errors"
	"github.com/surrealdb/surrealdb.go"
)

func init() {
	ref.MustRegisterT[Dialer](NewDialerWithOptions)
}

type Options struct {
	// 例如 ws://localhost:8000/rpc
	Address   string `cfg:"address" def:"ws://localhost:8000/rpc" validate:"required"`
	Username  string `cfg:"username"`
	Password  string `cfg:"password"`
	Namespace string `cfg:"namespace" validate:"required"`
	Database  string `cfg:"database" validate:"required"`
}

// Dialer 每次 Dial 建立一条新的 websocket 连接，登录后选择命名空间和数据库
type Dialer struct {
	options Options
}

func NewDialerWithOptions(options *Options) (*Dialer, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.Address == "" {
		return nil, errors.New("address is required")
	}
	if options.Namespace == "" || options.Database == "" {
		return nil, errors.New("namespace and database are required")
	}
	return &Dialer{options: *options}, nil
}

func (d *Dialer) Dial(ctx context.Context) (conn.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithMessage(err, "dial")
	}

	db, err := surrealdb.New(d.options.Address)
	if err != nil {
		return nil, errors.Wrapf(conn.ErrConnection, "connect %s: %v", d.options.Address, err)
	}

	if d.options.Username != "" {
		token, err := db.SignIn(&surrealdb.Auth{
			Username: d.options.Username,
			Password: d.options.Password,
		})
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(conn.ErrConnection, "sign in as %s: %v", d.options.Username, err)
		}
		if err := db.Authenticate(token); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(conn.ErrConnection, "authenticate: %v", err)
		}
	}

	if err := db.Use(d.options.Namespace, d.options.Database); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(conn.ErrConnection, "use %s/%s: %v", d.options.Namespace, d.options.Database, err)
	}

	return &Conn{db: db}, nil
}

// Conn 包装 *surrealdb.DB，一次只提交一条语句
type Conn struct {
	db *surrealdb.DB
}

type queryResult struct {
	rows []map[string]any
	err  error
}

// Query 客户端不接收 context，这里等待结果或者 ctx 结束，以先到者为准
func (c *Conn) Query(ctx context.Context, statement string, vars map[string]any) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan queryResult, 1)
	go func() {
		rows, err := c.query(statement, vars)
		done <- queryResult{rows: rows, err: err}
	}()
	select {
	case res := <-done:
		return res.rows, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) query(statement string, vars map[string]any) ([]map[string]any, error) {
	results, err := surrealdb.Query[any](c.db, statement, vars)
	if err != nil {
		return nil, errors.Wrapf(err, "query [%s]", statement)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	// 只取最后一条语句的结果
	last := (*results)[len(*results)-1]
	if last.Status != "" && last.Status != "OK" {
		return nil, errors.Errorf("query [%s] status %s: %v", statement, last.Status, last.Result)
	}
	return Rows(last.Result), nil
}

func (c *Conn) Close() error {
	return c.db.Close()
}

// Rows 把一条语句的结果整理成行，单个对象是一行，标量放在 result 列
func Rows(result any) []map[string]any {
	switch v := result.(type) {
	case nil:
		return nil
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if r, ok := asRow(item); ok {
				rows = append(rows, r)
			} else {
				rows = append(rows, map[string]any{"result": item})
			}
		}
		return rows
	case []map[string]any:
		return v
	}
	if r, ok := asRow(result); ok {
		return []map[string]any{r}
	}
	return []map[string]any{{"result": result}}
}

func asRow(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
