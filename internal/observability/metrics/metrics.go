package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes fee domain instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ledgerRecords   metric.Int64Counter
	payments        metric.Int64Counter
	advanceApplied  metric.Int64Counter
	remindersSent   metric.Int64Counter
	remindersFailed metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the fee domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "seatfee"
	}
	meter := provider.Meter(name)

	ledgerRecords, err := meter.Int64Counter("seatfee_ledger_records_created_total")
	if err != nil {
		return nil, err
	}
	payments, err := meter.Int64Counter("seatfee_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	advanceApplied, err := meter.Int64Counter("seatfee_advance_applications_total")
	if err != nil {
		return nil, err
	}
	remindersSent, err := meter.Int64Counter("seatfee_due_reminders_sent_total")
	if err != nil {
		return nil, err
	}
	remindersFailed, err := meter.Int64Counter("seatfee_due_reminders_failed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerRecords:   ledgerRecords,
		payments:        payments,
		advanceApplied:  advanceApplied,
		remindersSent:   remindersSent,
		remindersFailed: remindersFailed,
	}, nil
}

// RecordLedgerRecordCreated counts new ledger records by source
// (billing_cycle, payment, due_marking, advance) and initial status.
func (m *Metrics) RecordLedgerRecordCreated(ctx context.Context, source, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.ledgerRecords.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayment counts payments by method and outcome (settled, partial).
func (m *Metrics) RecordPayment(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("method", strings.TrimSpace(method)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.payments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAdvanceApplied(ctx context.Context, trigger string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("trigger", strings.TrimSpace(trigger)))
	m.advanceApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReminder(ctx context.Context, tier int, err error) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Int("tier", tier))
	if err != nil {
		m.remindersFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	m.remindersSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"source":      {},
	"status":      {},
	"method":      {},
	"outcome":     {},
	"trigger":     {},
	"tier":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
