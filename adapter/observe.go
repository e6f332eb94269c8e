package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/hatlonely/surrealx/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics 操作相关指标
type Metrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
}

// NewMetrics 创建并注册指标，同名指标已经注册时复用已有的
func NewMetrics(name string, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	metrics := &Metrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of adapter operations",
			},
			[]string{"operation", "entity", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of adapter operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation", "entity"},
		),
		activeOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_operations",
				Help: "Number of active adapter operations",
			},
			[]string{"operation"},
		),
	}

	var err error
	if metrics.operationCounter, err = register(registerer, metrics.operationCounter); err != nil {
		return nil, err
	}
	if metrics.operationDuration, err = register(registerer, metrics.operationDuration); err != nil {
		return nil, err
	}
	if metrics.activeOperations, err = register(registerer, metrics.activeOperations); err != nil {
		return nil, err
	}
	return metrics, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register metrics")
	}
	return c, nil
}

// Operations 指定操作和状态的计数器
func (m *Metrics) Operations(operation, entity, status string) prometheus.Counter {
	return m.operationCounter.WithLabelValues(operation, entity, status)
}

// observer 为每个操作记录指标、span 和日志，各项都可以单独关闭
type observer struct {
	name    string
	logger  log.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func newObserver(name string, logger log.Logger, enableMetrics, enableLogging, enableTracing bool) (*observer, error) {
	obs := &observer{name: name}
	if enableLogging {
		obs.logger = logger
	}
	if enableMetrics {
		metrics, err := NewMetrics(name, prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		obs.metrics = metrics
	}
	if enableTracing {
		obs.tracer = otel.Tracer(name)
	}
	return obs, nil
}

// observe 统一的操作观测逻辑
func (obs *observer) observe(ctx context.Context, operation string, entity string, fn func(context.Context) error) error {
	if obs == nil {
		return fn(ctx)
	}
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("%s.%s", obs.name, operation),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("operation", operation),
				attribute.String("entity", entity),
				attribute.String("db.system", "surrealdb"),
			),
		)
		defer span.End()
	}

	if obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, entity, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
	}

	if obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(ctx, "operation failed",
				"component", obs.name,
				"operation", operation,
				"entity", entity,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.InfoContext(ctx, "operation completed",
				"component", obs.name,
				"operation", operation,
				"entity", entity,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}
