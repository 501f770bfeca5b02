package metrics

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("subscriber_id", "123"),
		attribute.String("method", "cash"),
		attribute.Int("tier", 3),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "subscriber_id" {
			t.Fatalf("subscriber_id must not be used as a metric label")
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordPayment(context.Background(), "cash", "settled")
	m.RecordReminder(context.Background(), 2, errors.New("boom"))
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordLedgerRecordCreated(context.Background(), "billing_cycle", "PENDING")
	m.RecordAdvanceApplied(context.Background(), "auto")
}
