package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-streams-testing"

// Telemetry holds all OpenTelemetry instruments for the harness
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	// Lifecycle metrics
	NodesStarted    metric.Int64Counter
	NodesStopped    metric.Int64Counter
	NodesActive     metric.Int64UpDownCounter
	StartupFailures metric.Int64Counter
	StartupDuration metric.Float64Histogram

	// Offset metrics
	OffsetLookups metric.Int64Counter

	// Task metrics
	TaskRecords metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (
	*Telemetry, error,
) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	tracer := tp.Tracer(scopeName)
	meter := mp.Meter(scopeName)

	nodesStarted, err := meter.Int64Counter(
		"harness.nodes.started",
		metric.WithDescription("Service nodes that reached ready state"),
	)
	if err != nil {
		return nil, err
	}

	nodesStopped, err := meter.Int64Counter(
		"harness.nodes.stopped",
		metric.WithDescription("Service nodes closed"),
	)
	if err != nil {
		return nil, err
	}

	nodesActive, err := meter.Int64UpDownCounter(
		"harness.nodes.active",
		metric.WithDescription("Service nodes currently running"),
	)
	if err != nil {
		return nil, err
	}

	startupFailures, err := meter.Int64Counter(
		"harness.startup.failures",
		metric.WithDescription("Service nodes that failed to reach ready state"),
	)
	if err != nil {
		return nil, err
	}

	startupDuration, err := meter.Float64Histogram(
		"harness.startup.duration",
		metric.WithDescription("Time from port lease to ready state per node"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	offsetLookups, err := meter.Int64Counter(
		"offsets.lookups",
		metric.WithDescription("Partition offset lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	taskRecords, err := meter.Int64Counter(
		"task.records",
		metric.WithDescription("Rows produced by source tasks"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Tracer:          tracer,
		Propagator:      prop,
		NodesStarted:    nodesStarted,
		NodesStopped:    nodesStopped,
		NodesActive:     nodesActive,
		StartupFailures: startupFailures,
		StartupDuration: startupDuration,
		OffsetLookups:   offsetLookups,
		TaskRecords:     taskRecords,
	}, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil, nil)
	return t
}
