package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
)

// Metrics holds the instruments recorded by the lifecycle core.
type Metrics struct {
	TasksAdded         metric.Int64Counter
	PaymentFailures    metric.Int64Counter
	RemindersScheduled metric.Int64Counter
	RemindersCancelled metric.Int64Counter
	RemoteSyncFailures metric.Int64Counter
	ReconcileDuration  metric.Float64Histogram
}

// InitMeterProvider initializes the OpenTelemetry meter provider.
// It configures an OTLP gRPC exporter and sets up the global meter provider.
func InitMeterProvider(ctx context.Context, conn *grpc.ClientConn, serviceName, environment string) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMetrics creates and registers the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.TasksAdded, "finey_tasks_added_total", "Tasks created with an authorized deposit"},
		{&m.PaymentFailures, "finey_payment_failures_total", "Backend payment calls that failed"},
		{&m.RemindersScheduled, "finey_reminders_scheduled_total", "Reminders scheduled"},
		{&m.RemindersCancelled, "finey_reminders_cancelled_total", "Reminders cancelled"},
		{&m.RemoteSyncFailures, "finey_remote_sync_failures_total", "Remote record writes that failed"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	m.ReconcileDuration, err = meter.Float64Histogram(
		"finey_reconcile_duration_seconds",
		metric.WithDescription("Duration of local/remote reconciliation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile duration histogram: %w", err)
	}

	return m, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("finey"))
	return m
}

// ObserveDuration records the seconds elapsed since start on h.
func ObserveDuration(ctx context.Context, h metric.Float64Histogram, start time.Time) {
	h.Record(ctx, time.Since(start).Seconds())
}
