package conn

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

type stubConn struct {
	id       int64
	probeErr atomic.Value
	closed   atomic.Bool
	active   atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (c *stubConn) Query(ctx context.Context, statement string, vars map[string]any) ([]map[string]any, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		old := c.maxSeen.Load()
		if n <= old || c.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if statement == "RETURN true" {
		if err, ok := c.probeErr.Load().(error); ok && err != nil {
			return nil, err
		}
		return []map[string]any{{"result": true}}, nil
	}
	return []map[string]any{{"id": c.id}}, nil
}

func (c *stubConn) Close() error {
	c.closed.Store(true)
	return nil
}

type stubDialer struct {
	mu     sync.Mutex
	dials  atomic.Int64
	delay  time.Duration
	err    error
	conns  []*stubConn
	qdelay time.Duration
}

func (d *stubDialer) Dial(ctx context.Context) (Conn, error) {
	n := d.dials.Add(1)
	time.Sleep(d.delay)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &stubConn{id: n, delay: d.qdelay}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *stubDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func TestManagerAcquire(t *testing.T) {
	Convey("Manager.Acquire", t, func() {
		dialer := &stubDialer{delay: 50 * time.Millisecond}
		m, err := NewManager(dialer, &ManagerOptions{
			ProbeTimeout:  time.Second,
			EnableMetrics: true,
			Name:          fmt.Sprintf("test_acquire_%d", time.Now().UnixNano()),
		})
		So(err, ShouldBeNil)
		m.SetLogger(discardLogger())
		ctx := context.Background()

		Convey("并发获取只建立一次连接", func() {
			var wg sync.WaitGroup
			conns := make([]Conn, 10)
			errs := make([]error, 10)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					conns[i], errs[i] = m.Acquire(ctx)
				}(i)
			}
			wg.Wait()

			So(dialer.dials.Load(), ShouldEqual, 1)
			for i := 0; i < 10; i++ {
				So(errs[i], ShouldBeNil)
				So(conns[i], ShouldEqual, conns[0])
			}
			So(m.State(), ShouldEqual, StateConnected)
			So(testutil.ToFloat64(m.Metrics().Attempts("success")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.Metrics().State()), ShouldEqual, float64(StateConnected))

			// 已连接时复用
			c, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			So(c, ShouldEqual, conns[0])
			So(dialer.dials.Load(), ShouldEqual, 1)
		})

		Convey("连接失败所有等待者收到错误，且不缓存失败", func() {
			dialer.setErr(errors.New("authentication failed"))

			var wg sync.WaitGroup
			errs := make([]error, 5)
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = m.Acquire(ctx)
				}(i)
			}
			wg.Wait()
			So(dialer.dials.Load(), ShouldEqual, 1)
			for _, err := range errs {
				So(errors.Is(err, ErrConnection), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "authentication failed")
			}
			So(m.State(), ShouldEqual, StateDisconnected)
			So(testutil.ToFloat64(m.Metrics().Attempts("failure")), ShouldEqual, 1)

			dialer.setErr(nil)
			_, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			So(dialer.dials.Load(), ShouldEqual, 2)
		})

		Convey("探活失败后重连", func() {
			first, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			dialer.conns[0].probeErr.Store(errors.New("broken pipe"))

			second, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			So(second, ShouldNotEqual, first)
			So(dialer.dials.Load(), ShouldEqual, 2)
			So(dialer.conns[0].closed.Load(), ShouldBeTrue)
			So(m.State(), ShouldEqual, StateConnected)
		})

		Convey("探活失败且重连失败时返回错误", func() {
			_, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			dialer.conns[0].probeErr.Store(errors.New("broken pipe"))
			dialer.setErr(errors.New("connection refused"))

			_, err = m.Acquire(ctx)
			So(errors.Is(err, ErrConnection), ShouldBeTrue)
			So(m.State(), ShouldEqual, StateDisconnected)
		})

		Convey("等待时调用方取消", func() {
			dialer.delay = 200 * time.Millisecond
			cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err := m.Acquire(cctx)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)

			// 连接仍然会建立完成，供后续调用使用
			c, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			So(c, ShouldNotBeNil)
			So(dialer.dials.Load(), ShouldEqual, 1)
		})

		Convey("关闭之后不能再获取", func() {
			_, err := m.Acquire(ctx)
			So(err, ShouldBeNil)
			So(m.Close(), ShouldBeNil)
			So(dialer.conns[0].closed.Load(), ShouldBeTrue)
			_, err = m.Acquire(ctx)
			So(errors.Is(err, ErrConnection), ShouldBeTrue)
		})
	})
}

func TestSerializeQueries(t *testing.T) {
	Convey("SerializeQueries", t, func() {
		dialer := &stubDialer{qdelay: 5 * time.Millisecond}
		m, err := NewManager(dialer, &ManagerOptions{SerializeQueries: true})
		So(err, ShouldBeNil)
		m.SetLogger(discardLogger())

		c, err := m.Acquire(context.Background())
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = c.Query(context.Background(), "SELECT * FROM user", nil)
			}()
		}
		wg.Wait()
		So(dialer.conns[0].maxSeen.Load(), ShouldEqual, 1)
	})
}

func TestNewManager(t *testing.T) {
	Convey("NewManager", t, func() {
		_, err := NewManager(nil, nil)
		So(err, ShouldNotBeNil)

		m, err := NewManager(DialerFunc(func(ctx context.Context) (Conn, error) {
			return nil, errors.Wrap(ErrConnection, "unreachable")
		}), nil)
		So(err, ShouldBeNil)
		So(m.State(), ShouldEqual, StateDisconnected)
		So(m.State().String(), ShouldEqual, "disconnected")
		m.SetLogger(discardLogger())

		_, err = m.Acquire(context.Background())
		So(errors.Is(err, ErrConnection), ShouldBeTrue)
		So(m.Close(), ShouldBeNil)
	})
}
