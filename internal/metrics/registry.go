package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application
type Registry struct {
	meter metric.Meter

	// Plan lifecycle
	PlanTransitionCounter   metric.Int64Counter
	BaselineDuration        metric.Float64Histogram
	BaselineItemCount       metric.Int64Histogram
	GenerationDuration      metric.Float64Histogram
	EngagementsCreated      metric.Int64Counter
	PBCRequestsCreated      metric.Int64Counter
	BaselineVerifyFailures  metric.Int64Counter
	OperationFailureCounter metric.Int64Counter

	// Sampling
	SamplesCreated      metric.Int64Counter
	SampleSizeHistogram metric.Int64Histogram

	// Risk
	RiskAssessments metric.Int64Counter
	RiskScore       metric.Float64Histogram

	// System
	DatabaseConnectionPool metric.Int64ObservableGauge
	APIRequestDuration     metric.Float64Histogram
	APIRequestCounter      metric.Int64Counter

	mu         sync.RWMutex
	dbPoolSize int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	if err := r.initPlanMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSamplingMetrics(); err != nil {
		return nil, err
	}
	if err := r.initRiskMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initPlanMetrics() error {
	var err error

	r.PlanTransitionCounter, err = r.meter.Int64Counter(
		"qaudit.plan.transitions_total",
		metric.WithDescription("Plan status transitions"),
	)
	if err != nil {
		return err
	}

	r.BaselineDuration, err = r.meter.Float64Histogram(
		"qaudit.plan.baseline_duration",
		metric.WithDescription("Duration of plan baselining in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.BaselineItemCount, err = r.meter.Int64Histogram(
		"qaudit.plan.baseline_items",
		metric.WithDescription("Number of items frozen per baseline"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250),
	)
	if err != nil {
		return err
	}

	r.GenerationDuration, err = r.meter.Float64Histogram(
		"qaudit.plan.generation_duration",
		metric.WithDescription("Duration of engagement generation in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000, 10000),
	)
	if err != nil {
		return err
	}

	r.EngagementsCreated, err = r.meter.Int64Counter(
		"qaudit.plan.engagements_created_total",
		metric.WithDescription("Engagements generated from baselined plans"),
	)
	if err != nil {
		return err
	}

	r.PBCRequestsCreated, err = r.meter.Int64Counter(
		"qaudit.plan.pbc_requests_created_total",
		metric.WithDescription("PBC requests generated from templates"),
	)
	if err != nil {
		return err
	}

	r.BaselineVerifyFailures, err = r.meter.Int64Counter(
		"qaudit.plan.baseline_verify_failures_total",
		metric.WithDescription("Baseline verifications that did not match"),
	)
	if err != nil {
		return err
	}

	r.OperationFailureCounter, err = r.meter.Int64Counter(
		"qaudit.operation.failures_total",
		metric.WithDescription("Failed core operations by error type"),
	)
	return err
}

func (r *Registry) initSamplingMetrics() error {
	var err error

	r.SamplesCreated, err = r.meter.Int64Counter(
		"qaudit.sampling.samples_total",
		metric.WithDescription("Samples created"),
	)
	if err != nil {
		return err
	}

	r.SampleSizeHistogram, err = r.meter.Int64Histogram(
		"qaudit.sampling.sample_size",
		metric.WithDescription("Selected sample sizes"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 100, 250, 500, 1000),
	)
	return err
}

func (r *Registry) initRiskMetrics() error {
	var err error

	r.RiskAssessments, err = r.meter.Int64Counter(
		"qaudit.risk.assessments_total",
		metric.WithDescription("Risk assessments recorded"),
	)
	if err != nil {
		return err
	}

	r.RiskScore, err = r.meter.Float64Histogram(
		"qaudit.risk.score",
		metric.WithDescription("Computed risk scores"),
		metric.WithExplicitBucketBoundaries(1, 4, 8, 12, 16, 20, 25),
	)
	return err
}

func (r *Registry) initSystemMetrics() error {
	var err error

	r.DatabaseConnectionPool, err = r.meter.Int64ObservableGauge(
		"qaudit.system.db_connection_pool_size",
		metric.WithDescription("Current database connection pool size"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.dbPoolSize)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"qaudit.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"qaudit.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)
	return err
}

// SetDBPoolSize sets the database connection pool size
func (r *Registry) SetDBPoolSize(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbPoolSize = size
}

// RecordTransition counts a plan status change
func (r *Registry) RecordTransition(ctx context.Context, from, to string) {
	r.PlanTransitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordBaseline records a successful baseline
func (r *Registry) RecordBaseline(ctx context.Context, durationMS float64, items int) {
	r.BaselineDuration.Record(ctx, durationMS)
	r.BaselineItemCount.Record(ctx, int64(items))
}

// RecordGeneration records a successful engagement fan-out
func (r *Registry) RecordGeneration(ctx context.Context, durationMS float64, engagements, pbcs int) {
	r.GenerationDuration.Record(ctx, durationMS)
	r.EngagementsCreated.Add(ctx, int64(engagements))
	r.PBCRequestsCreated.Add(ctx, int64(pbcs))
}

// RecordFailure counts a failed operation by error type
func (r *Registry) RecordFailure(ctx context.Context, operation, errorType string) {
	r.OperationFailureCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("error_type", errorType),
	))
}

// RecordVerification counts baseline verifications that failed
func (r *Registry) RecordVerification(ctx context.Context, valid bool) {
	if !valid {
		r.BaselineVerifyFailures.Add(ctx, 1)
	}
}

// RecordSample records a created sample
func (r *Registry) RecordSample(ctx context.Context, method string, size int) {
	attrs := metric.WithAttributes(attribute.String("method", method))
	r.SamplesCreated.Add(ctx, 1, attrs)
	r.SampleSizeHistogram.Record(ctx, int64(size), attrs)
}

// RecordRiskAssessment records a computed risk score
func (r *Registry) RecordRiskAssessment(ctx context.Context, score float64) {
	r.RiskAssessments.Add(ctx, 1)
	r.RiskScore.Record(ctx, score)
}

// RecordAPIRequest records API request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, duration float64, method, path string, statusCode int) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.APIRequestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
