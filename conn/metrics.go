package conn

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 连接相关指标
type Metrics struct {
	attempts *prometheus.CounterVec
	state    prometheus.Gauge
}

// NewMetrics 创建并注册指标，同名指标已经注册时复用已有的
func NewMetrics(name string, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_connection_attempts_total",
			Help: "Total number of connection attempts",
		},
		[]string{"result"},
	)
	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_connection_state",
		Help: "Connection state, 0 disconnected, 1 connecting, 2 connected, 3 dead",
	})

	if err := registerer.Register(attempts); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, errors.Wrap(err, "register connection attempts counter")
		}
		attempts = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := registerer.Register(state); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, errors.Wrap(err, "register connection state gauge")
		}
		state = are.ExistingCollector.(prometheus.Gauge)
	}

	return &Metrics{attempts: attempts, state: state}, nil
}

func (m *Metrics) observeAttempt(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

// Attempts 指定结果的连接次数计数器
func (m *Metrics) Attempts(result string) prometheus.Counter {
	return m.attempts.WithLabelValues(result)
}

func (m *Metrics) State() prometheus.Gauge {
	return m.state
}
