package conn

import (
	"context"
	"sync"
	"time"

	"github.com/hatlonely/surrealx/log"
	"github.com/hatlonely/surrealx/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

type ManagerOptions struct {
	// 探活语句的超时时间，只有探活有自己的超时
	ProbeTimeout time.Duration `cfg:"probeTimeout" def:"5s"`
	// 探活语句，需要是一个很轻的只读查询
	ProbeStatement string `cfg:"probeStatement" def:"RETURN true"`
	// 客户端不支持在一个连接上并发提交语句时打开
	SerializeQueries bool `cfg:"serializeQueries"`

	EnableMetrics bool `cfg:"enableMetrics"`
	// 指标名前缀
	Name string `cfg:"name" def:"surrealx"`

	Logger *ref.TypeOptions `cfg:"logger"`
}

// Manager 持有唯一的连接，所有操作每次通过 Acquire 获取，不要跨调用保存
//
// 状态变化:
//
//	disconnected -> connecting -> connected
//	connecting 失败 -> disconnected，所有等待者收到同一个错误
//	connected 探活失败 -> dead -> disconnected，随后重新连接
type Manager struct {
	dialer  Dialer
	options ManagerOptions
	logger  log.Logger
	metrics *Metrics

	group singleflight.Group

	mu         sync.Mutex
	state      State
	conn       Conn
	handle     Conn
	generation uint64
	closed     bool
}

func NewManager(dialer Dialer, options *ManagerOptions) (*Manager, error) {
	if dialer == nil {
		return nil, errors.New("dialer is nil")
	}
	if options == nil {
		options = &ManagerOptions{}
	}
	m := &Manager{
		dialer:  dialer,
		options: *options,
	}
	if m.options.ProbeTimeout <= 0 {
		m.options.ProbeTimeout = 5 * time.Second
	}
	if m.options.ProbeStatement == "" {
		m.options.ProbeStatement = "RETURN true"
	}
	if m.options.Name == "" {
		m.options.Name = "surrealx"
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	m.logger = l.WithGroup("conn")

	if m.options.EnableMetrics {
		metrics, err := NewMetrics(m.options.Name, prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		m.metrics = metrics
	}
	m.metrics.setState(StateDisconnected)

	return m, nil
}

// SetLogger 替换日志，需要在使用前调用
func (m *Manager) SetLogger(logger log.Logger) {
	m.logger = logger.WithGroup("conn")
}

func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Acquire 返回一个可用的连接，已连接时先探活，探活失败自动重连一次
func (m *Manager) Acquire(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Wrap(ErrConnection, "connection manager closed")
	}
	if m.state != StateConnected {
		m.mu.Unlock()
		return m.connect(ctx)
	}
	handle, generation := m.handle, m.generation
	m.mu.Unlock()

	err := m.probe(ctx, handle)
	if err == nil {
		return handle, nil
	}
	if ctx.Err() != nil {
		return nil, errors.WithMessage(ctx.Err(), "probe connection")
	}
	m.logger.WarnContext(ctx, "connection probe failed, reconnecting", "error", err.Error())
	m.markDead(generation)
	return m.connect(ctx)
}

func (m *Manager) probe(ctx context.Context, c Conn) error {
	ctx, cancel := context.WithTimeout(ctx, m.options.ProbeTimeout)
	defer cancel()
	_, err := c.Query(ctx, m.options.ProbeStatement, nil)
	return err
}

// markDead 只处理探活时的那一代连接，避免把别人刚建好的连接标记失效
func (m *Manager) markDead(generation uint64) {
	m.mu.Lock()
	if m.generation != generation || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.state = StateDead
	m.metrics.setState(StateDead)
	dead := m.conn
	m.conn, m.handle = nil, nil
	m.state = StateDisconnected
	m.metrics.setState(StateDisconnected)
	m.mu.Unlock()

	if err := dead.Close(); err != nil {
		m.logger.Debug("close dead connection failed", "error", err.Error())
	}
}

// connect 同一时刻只有一个连接请求，所有等待者共享结果，失败不缓存
func (m *Manager) connect(ctx context.Context) (Conn, error) {
	ch := m.group.DoChan("connect", func() (any, error) {
		// 发起者取消不能影响其他等待者
		return m.dial(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Conn), nil
	case <-ctx.Done():
		return nil, errors.WithMessage(ctx.Err(), "wait for connection")
	}
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Wrap(ErrConnection, "connection manager closed")
	}
	if m.state == StateConnected {
		handle := m.handle
		m.mu.Unlock()
		return handle, nil
	}
	m.state = StateConnecting
	m.metrics.setState(StateConnecting)
	m.mu.Unlock()

	start := time.Now()
	c, err := m.dialer.Dial(ctx)
	m.metrics.observeAttempt(err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.state = StateDisconnected
		m.metrics.setState(StateDisconnected)
		m.logger.ErrorContext(ctx, "connect failed", "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		if errors.Is(err, ErrConnection) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrConnection, "dial: %v", err)
	}
	if m.closed {
		m.state = StateDisconnected
		_ = c.Close()
		return nil, errors.Wrap(ErrConnection, "connection manager closed")
	}

	m.generation++
	m.conn = c
	m.handle = c
	if m.options.SerializeQueries {
		m.handle = Serialize(c)
	}
	m.state = StateConnected
	m.metrics.setState(StateConnected)
	m.logger.InfoContext(ctx, "connected", "duration_ms", time.Since(start).Milliseconds(), "generation", m.generation)

	return m.handle, nil
}

// Close 关闭当前连接，之后的 Acquire 都会失败
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	c := m.conn
	m.conn, m.handle = nil, nil
	m.state = StateDisconnected
	m.metrics.setState(StateDisconnected)
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	return errors.Wrap(c.Close(), "close connection")
}
