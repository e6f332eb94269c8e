// Package conn 管理到存储的唯一逻辑连接: 按需建立，使用前探活，失效后重连。
package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrConnection 存储不可达或者认证失败，是否重试由调用方决定
var ErrConnection = errors.New("connection error")

// Conn 一个已经建立的连接，Query 返回语句的结果行
type Conn interface {
	Query(ctx context.Context, statement string, vars map[string]any) ([]map[string]any, error)
	Close() error
}

// Dialer 建立一个新连接，包括认证和选择命名空间
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc 函数形式的 Dialer
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// State 连接状态
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDead
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDead:
		return "dead"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// lockedConn 串行提交语句，编码和编译不在锁内
type lockedConn struct {
	mu   *sync.Mutex
	conn Conn
}

// Serialize 返回一个串行提交语句的连接，用于客户端不支持并发提交的场景
func Serialize(c Conn) Conn {
	if lc, ok := c.(*lockedConn); ok {
		return lc
	}
	return &lockedConn{mu: &sync.Mutex{}, conn: c}
}

func (c *lockedConn) Query(ctx context.Context, statement string, vars map[string]any) ([]map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Query(ctx, statement, vars)
}

func (c *lockedConn) Close() error {
	return c.conn.Close()
}
