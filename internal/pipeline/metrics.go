package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/dispatch"
)

const pipelineInstrumentationName = "github.com/fyrsmithlabs/enrichd/internal/pipeline"

// Metrics holds all pipeline-related metrics.
type Metrics struct {
	meter         metric.Meter
	logger        *zap.Logger
	dispatches    metric.Int64Counter
	records       metric.Int64Counter
	stageDuration metric.Float64Histogram
	spend         metric.Float64Counter
}

// NewMetrics creates a new Metrics instance for the pipeline.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(pipelineInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.dispatches, err = m.meter.Int64Counter(
		"enrichd.dispatch.outcomes_total",
		metric.WithDescription("Dispatch outcomes by status (routed, throttled, killed, cost_exceeded, completed, no_action) and agent type"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		m.logger.Warn("failed to create dispatch counter", zap.Error(err))
	}

	m.records, err = m.meter.Int64Counter(
		"enrichd.pipeline.records_total",
		metric.WithDescription("Records handled per stage, labeled by outcome (processed, failed, skipped)"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		m.logger.Warn("failed to create records counter", zap.Error(err))
	}

	m.stageDuration, err = m.meter.Float64Histogram(
		"enrichd.pipeline.stage_duration_seconds",
		metric.WithDescription("Duration of one stage run for one company, labeled by stage and terminal state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		m.logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}

	m.spend, err = m.meter.Float64Counter(
		"enrichd.pipeline.spend_usd_total",
		metric.WithDescription("Vendor spend incurred by executed agent calls, labeled by vendor"),
		metric.WithUnit("{usd}"),
	)
	if err != nil {
		m.logger.Warn("failed to create spend counter", zap.Error(err))
	}
}

// RecordDispatch records one dispatch outcome.
func (m *Metrics) RecordDispatch(ctx context.Context, status dispatch.Status, agent agents.AgentType) {
	if m == nil || m.dispatches == nil {
		return
	}
	m.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("agent", string(agent)),
	))
}

// RecordStage records a stage run's terminal state and telemetry.
func (m *Metrics) RecordStage(ctx context.Context, result *StageResult, duration time.Duration) {
	if m == nil {
		return
	}
	stageAttr := attribute.String("stage", string(result.Stage))
	if m.stageDuration != nil {
		m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			stageAttr,
			attribute.String("state", string(result.State)),
		))
	}
	if m.records != nil {
		for outcome, n := range map[string]int{
			"processed": result.RecordsProcessed,
			"failed":    result.RecordsFailed,
			"skipped":   result.RecordsSkipped,
		} {
			if n > 0 {
				m.records.Add(ctx, int64(n), metric.WithAttributes(
					stageAttr,
					attribute.String("outcome", outcome),
				))
			}
		}
	}
}

// RecordSpend records vendor spend for an executed call.
func (m *Metrics) RecordSpend(ctx context.Context, vendor string, amount float64) {
	if m == nil || m.spend == nil || amount <= 0 {
		return
	}
	m.spend.Add(ctx, amount, metric.WithAttributes(attribute.String("vendor", vendor)))
}
