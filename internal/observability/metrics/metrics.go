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

// Metrics exposes the finance engine's instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	snapshotWrites      metric.Int64Counter
	balanceCorrections  metric.Int64Counter
	bestEffortFailures  metric.Int64Counter
	settingsResolutions metric.Int64Counter
	ledgerTransactions  metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "plannivo-finance"
	}
	meter := provider.Meter(name)

	snapshotWrites, err := meter.Int64Counter("finance_revenue_snapshot_writes_total")
	if err != nil {
		return nil, err
	}
	balanceCorrections, err := meter.Int64Counter("finance_balance_corrections_total")
	if err != nil {
		return nil, err
	}
	bestEffortFailures, err := meter.Int64Counter("finance_best_effort_failures_total")
	if err != nil {
		return nil, err
	}
	settingsResolutions, err := meter.Int64Counter("finance_settings_resolutions_total")
	if err != nil {
		return nil, err
	}
	ledgerTransactions, err := meter.Int64Counter("finance_ledger_transactions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		snapshotWrites:      snapshotWrites,
		balanceCorrections:  balanceCorrections,
		bestEffortFailures:  bestEffortFailures,
		settingsResolutions: settingsResolutions,
		ledgerTransactions:  ledgerTransactions,
	}, nil
}

// RecordSnapshotWrite counts a revenue snapshot attempt by outcome
// (written, skipped, failed) and reason.
func (m *Metrics) RecordSnapshotWrite(ctx context.Context, entityType, outcome, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity_type", strings.TrimSpace(entityType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.snapshotWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBalanceCorrection counts a self-healed stored balance.
func (m *Metrics) RecordBalanceCorrection(ctx context.Context) {
	if m == nil {
		return
	}
	m.balanceCorrections.Add(ctx, 1)
}

// RecordBestEffortFailure counts a dropped or failed side-channel task.
func (m *Metrics) RecordBestEffortFailure(ctx context.Context, task, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("task", strings.TrimSpace(task)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.bestEffortFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettingsResolution counts resolver outcomes (base, overridden, missing, error).
func (m *Metrics) RecordSettingsResolution(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.settingsResolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerTransaction counts ledger writes by transaction type and operation.
func (m *Metrics) RecordLedgerTransaction(ctx context.Context, txType, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("transaction_type", strings.TrimSpace(txType)),
		attribute.String("operation", strings.TrimSpace(operation)),
	)
	m.ledgerTransactions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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
	"entity_type":      {},
	"outcome":          {},
	"reason":           {},
	"task":             {},
	"transaction_type": {},
	"operation":        {},
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
