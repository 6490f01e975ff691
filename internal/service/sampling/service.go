package sampling

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
	"github.com/davidleathers/qaudit-backend/internal/metrics"
)

// Config holds the sampling defaults applied when a request omits them
type Config struct {
	DefaultConfidenceLevel   float64
	DefaultPrecisionRate     float64
	DefaultExpectedErrorRate float64
}

// Service creates and verifies audit samples
type Service struct {
	repo    Repository
	tx      TxManager
	audit   AuditSink
	metrics *metrics.Registry
	logger  *zap.Logger
	tracer  trace.Tracer
	config  Config
	now     func() time.Time
	newRand func() *rand.Rand
}

type Option func(*Service)

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand overrides the per-sample random source
func WithRand(newRand func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = newRand }
}

// NewService creates the sampling service
func NewService(repo Repository, tx TxManager, sink AuditSink, logger *zap.Logger, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.NewInternalError("sample repository cannot be nil")
	}
	if tx == nil {
		return nil, errors.NewInternalError("transaction manager cannot be nil")
	}
	if sink == nil {
		return nil, errors.NewInternalError("audit sink cannot be nil")
	}
	if logger == nil {
		return nil, errors.NewInternalError("logger cannot be nil")
	}
	if cfg.DefaultConfidenceLevel == 0 {
		cfg.DefaultConfidenceLevel = sampling.DefaultConfidenceLevel
	}
	if cfg.DefaultPrecisionRate == 0 {
		cfg.DefaultPrecisionRate = sampling.DefaultPrecisionRate
	}
	if cfg.DefaultExpectedErrorRate == 0 {
		cfg.DefaultExpectedErrorRate = sampling.DefaultExpectedErrorRate
	}

	s := &Service{
		repo:   repo,
		tx:     tx,
		audit:  sink,
		logger: logger,
		tracer: otel.Tracer("qaudit.sampling"),
		config: cfg,
		now:    time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateSampleRequest carries the caller's selection parameters
type CreateSampleRequest struct {
	TestID          uuid.UUID
	Method          string
	PopulationSize  int
	SampleSize      int
	ConfidenceLevel float64
	PrecisionRate   float64
	Criteria        map[string]any
	Notes           *string
}

// Verification is the result of re-hashing a stored sample
type Verification struct {
	SampleID     uuid.UUID        `json:"sample_id"`
	StoredHash   values.HashValue `json:"stored_hash"`
	ComputedHash values.HashValue `json:"computed_hash"`
	Valid        bool             `json:"valid"`
}

// CreateSample hashes the selection parameters, draws the items and stores
// the sample with its audit entry.
func (s *Service) CreateSample(ctx context.Context, req CreateSampleRequest, actor uuid.UUID) (*sampling.Sample, error) {
	ctx, span := s.tracer.Start(ctx, "sampling.CreateSample", trace.WithAttributes(
		attribute.String("sample.method", req.Method),
		attribute.Int("sample.size", req.SampleSize),
	))
	defer span.End()

	method, err := sampling.ParseMethod(req.Method)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}
	params := sampling.Params{
		Method:          method,
		PopulationSize:  req.PopulationSize,
		SampleSize:      req.SampleSize,
		ConfidenceLevel: req.ConfidenceLevel,
		PrecisionRate:   req.PrecisionRate,
		Criteria:        req.Criteria,
	}
	if params.ConfidenceLevel == 0 {
		params.ConfidenceLevel = s.config.DefaultConfidenceLevel
	}
	if params.PrecisionRate == 0 {
		params.PrecisionRate = s.config.DefaultPrecisionRate
	}

	sample, err := sampling.NewSample(req.TestID, params, req.Notes, actor, s.now(), s.newRand())
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateSample(ctx, sample); err != nil {
			return err
		}
		entry, err := audit.NewEntry(audit.ActionSampleCreated, audit.EntitySample, sample.ID, actor, map[string]any{
			"test_id":     sample.TestID.String(),
			"method":      string(sample.Method),
			"sample_size": sample.SampleSize,
			"hash_prefix": sample.SelectionHash.Prefix(),
		}, sample.CreatedAt)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, entry)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}
	span.SetStatus(codes.Ok, "")

	if s.metrics != nil {
		s.metrics.RecordSample(ctx, string(sample.Method), sample.SampleSize)
	}
	s.logger.Info("sample created",
		zap.String("sample_id", sample.ID.String()),
		zap.String("method", string(sample.Method)),
		zap.Int("population_size", sample.PopulationSize),
		zap.Int("sample_size", sample.SampleSize),
		zap.String("hash", sample.SelectionHash.Format()))
	return sample, nil
}

func (s *Service) GetSample(ctx context.Context, id uuid.UUID) (*sampling.Sample, error) {
	return s.repo.GetSample(ctx, id)
}

// VerifySample recomputes the selection hash from the stored parameters
func (s *Service) VerifySample(ctx context.Context, id uuid.UUID) (*Verification, error) {
	sample, err := s.repo.GetSample(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, computed, err := sample.VerifySelectionHash()
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Error("sample selection hash mismatch",
			zap.String("sample_id", id.String()),
			zap.String("stored_hash", sample.SelectionHash.String()),
			zap.String("computed_hash", computed.String()))
	}
	return &Verification{
		SampleID:     id,
		StoredHash:   sample.SelectionHash,
		ComputedHash: computed,
		Valid:        ok,
	}, nil
}

// Recommend returns the attribute-sampling size for a population. Zero
// rates fall back to the configured defaults.
func (s *Service) Recommend(populationSize int, confidenceLevel, precisionRate, expectedErrorRate float64) (int, error) {
	if confidenceLevel == 0 {
		confidenceLevel = s.config.DefaultConfidenceLevel
	}
	if precisionRate == 0 {
		precisionRate = s.config.DefaultPrecisionRate
	}
	if expectedErrorRate == 0 {
		expectedErrorRate = s.config.DefaultExpectedErrorRate
	}
	return sampling.RecommendSampleSize(populationSize, confidenceLevel, precisionRate, expectedErrorRate)
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if s.metrics != nil {
		s.metrics.RecordFailure(ctx, "create_sample", string(errors.TypeOf(err)))
	}
	return err
}
