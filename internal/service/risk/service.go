package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
	"github.com/davidleathers/qaudit-backend/internal/metrics"
)

// Service records risk assessments
type Service struct {
	repo    Repository
	tx      TxManager
	audit   AuditSink
	metrics *metrics.Registry
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, tx TxManager, sink AuditSink, logger *zap.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.NewInternalError("risk repository cannot be nil")
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
	s := &Service{
		repo:   repo,
		tx:     tx,
		audit:  sink,
		logger: logger,
		tracer: otel.Tracer("qaudit.risk"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AssessRisk validates the ratings, computes the score and stores the
// assessment. The audit-universe entity must exist.
func (s *Service) AssessRisk(ctx context.Context, in risk.Input, actor uuid.UUID) (*risk.Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "risk.AssessRisk", trace.WithAttributes(
		attribute.String("audit_universe.id", in.AuditUniverseID.String()),
	))
	defer span.End()

	a, err := risk.NewAssessment(in, actor, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetAuditUniverse(ctx, a.AuditUniverseID); err != nil {
			return err
		}
		if err := s.repo.CreateAssessment(ctx, a); err != nil {
			return err
		}
		entry, err := audit.NewEntry(audit.ActionRiskAssessed, audit.EntityRisk, a.ID, actor, map[string]any{
			"au_id":      a.AuditUniverseID.String(),
			"likelihood": a.Likelihood,
			"impact":     a.Impact,
			"weight":     a.Weight.String(),
			"score":      a.Score.String(),
		}, a.CreatedAt)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, entry)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}
	span.SetStatus(codes.Ok, "")

	score, _ := a.Score.Float64()
	if s.metrics != nil {
		s.metrics.RecordRiskAssessment(ctx, score)
	}
	s.logger.Info("risk assessed",
		zap.String("assessment_id", a.ID.String()),
		zap.String("au_id", a.AuditUniverseID.String()),
		zap.String("score", a.Score.String()),
		zap.String("level", risk.Level(a.Score)))
	return a, nil
}

// History returns an entity's assessments, newest first
func (s *Service) History(ctx context.Context, auditUniverseID uuid.UUID) ([]*risk.Assessment, error) {
	if _, err := s.repo.GetAuditUniverse(ctx, auditUniverseID); err != nil {
		return nil, err
	}
	return s.repo.ListAssessments(ctx, auditUniverseID)
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if s.metrics != nil {
		s.metrics.RecordFailure(ctx, "assess_risk", string(errors.TypeOf(err)))
	}
	return err
}
