package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/metrics"
)

const DefaultGenerationLockTTL = 2 * time.Minute

// Config tunes the lifecycle service
type Config struct {
	GenerationLockTTL time.Duration
}

// Service implements the annual plan lifecycle
type Service struct {
	repo     Repository
	tx       TxManager
	audit    AuditSink
	locker   Locker
	exporter BaselineExporter
	metrics  *metrics.Registry
	logger   *zap.Logger
	tracer   trace.Tracer
	config   Config
	now      func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithLocker adds a cross-replica lock around engagement generation
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithExporter(e BaselineExporter) Option {
	return func(s *Service) { s.exporter = e }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the lifecycle service
func NewService(repo Repository, tx TxManager, sink AuditSink, logger *zap.Logger, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.NewInternalError("plan repository cannot be nil")
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
	if cfg.GenerationLockTTL <= 0 {
		cfg.GenerationLockTTL = DefaultGenerationLockTTL
	}

	s := &Service{
		repo:   repo,
		tx:     tx,
		audit:  sink,
		logger: logger,
		tracer: otel.Tracer("qaudit.planning"),
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BaselineResult is returned to the caller for independent verification
type BaselineResult struct {
	Status       plan.Status `json:"status"`
	Hash         string      `json:"hash"`
	ItemCount    int         `json:"item_count"`
	BaselineDate time.Time   `json:"baseline_date"`
}

// GenerationResult summarizes an engagement fan-out
type GenerationResult struct {
	CreatedCount  int         `json:"created_count"`
	PBCCount      int         `json:"pbc_count"`
	EngagementIDs []uuid.UUID `json:"engagement_ids"`
}

// CreatePlanRequest carries the fields of a new draft plan
type CreatePlanRequest struct {
	FiscalYear int
	Version    string
	Title      string
}

// CreateAuditUniverseRequest carries a new catalog entry
type CreateAuditUniverseRequest struct {
	Code     string
	Name     string
	Category string
	Owner    *uuid.UUID
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) startSpan(ctx context.Context, name string, planID uuid.UUID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "planning."+name, trace.WithAttributes(
		attribute.String("plan.id", planID.String()),
	))
}

// finish records err on the span and in metrics. It returns err unchanged.
func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) error {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if s.metrics != nil {
		s.metrics.RecordFailure(ctx, op, string(errors.TypeOf(err)))
	}
	return err
}

func (s *Service) record(ctx context.Context, action audit.Action, entityType string, entityID, actor uuid.UUID, details map[string]any) error {
	entry, err := audit.NewEntry(action, entityType, entityID, actor, details, s.timestamp())
	if err != nil {
		return err
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry %s: %w", action, err)
	}
	return nil
}

// CreatePlan creates a draft plan
func (s *Service) CreatePlan(ctx context.Context, req CreatePlanRequest, actor uuid.UUID) (*plan.Plan, error) {
	p, err := plan.NewPlan(req.FiscalYear, req.Version, req.Title, actor, s.timestamp())
	if err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "CreatePlan", p.ID)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePlan(ctx, p); err != nil {
			return err
		}
		return s.record(ctx, audit.ActionPlanCreated, audit.EntityPlan, p.ID, actor, map[string]any{
			"fiscal_year": p.FiscalYear,
			"version":     p.Version,
		})
	})
	if err := s.finish(ctx, span, "create_plan", err); err != nil {
		return nil, err
	}

	s.logger.Info("plan created",
		zap.String("plan_id", p.ID.String()),
		zap.Int("fiscal_year", p.FiscalYear),
		zap.String("actor", actor.String()))
	return p, nil
}

// GetPlan loads a plan
func (s *Service) GetPlan(ctx context.Context, planID uuid.UUID) (*plan.Plan, error) {
	return s.repo.GetPlan(ctx, planID)
}

// Approve moves a draft plan to approved
func (s *Service) Approve(ctx context.Context, planID, actor uuid.UUID) (*plan.Plan, error) {
	return s.transition(ctx, "approve", planID, actor, plan.StatusApproved, audit.ActionPlanApproved)
}

// Complete closes a baselined plan
func (s *Service) Complete(ctx context.Context, planID, actor uuid.UUID) (*plan.Plan, error) {
	return s.transition(ctx, "complete", planID, actor, plan.StatusCompleted, audit.ActionPlanCompleted)
}

func (s *Service) transition(ctx context.Context, op string, planID, actor uuid.UUID, to plan.Status, action audit.Action) (*plan.Plan, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	ctx, span := s.startSpan(ctx, op, planID)

	var result *plan.Plan
	var from plan.Status
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		from = p.Status
		now := s.timestamp()

		switch to {
		case plan.StatusApproved:
			err = p.Approve(now)
		case plan.StatusCompleted:
			err = p.Complete(now)
		default:
			_, err = plan.Transition(p.Status, to)
		}
		if err != nil {
			return err
		}
		if err := s.repo.UpdatePlan(ctx, p); err != nil {
			return err
		}
		result = p
		return s.record(ctx, action, audit.EntityPlan, p.ID, actor, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	})
	if err := s.finish(ctx, span, op, err); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, string(from), string(to))
	}
	s.logger.Info("plan status changed",
		zap.String("plan_id", planID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor.String()))
	return result, nil
}

// Baseline freezes an approved plan. Within one transaction holding the
// plan row lock it snapshots the items, hashes the snapshot, stores the
// baseline and marks the plan baselined. Errors are checked in order:
// NotFound, AlreadyBaselined, PreconditionFailed, Conflict (another plan
// of the same year is baselined), BadRequest (no items).
func (s *Service) Baseline(ctx context.Context, planID, actor uuid.UUID) (*BaselineResult, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	ctx, span := s.startSpan(ctx, "Baseline", planID)
	started := time.Now()

	var result *BaselineResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if p.Status == plan.StatusBaselined {
			return errors.ErrPlanAlreadyBaselined
		}
		if p.Status != plan.StatusApproved {
			return errors.ErrPlanNotApproved.WithDetails(map[string]any{"status": string(p.Status)})
		}

		otherID, found, err := s.repo.BaselinedPlanForYear(ctx, p.FiscalYear)
		if err != nil {
			return err
		}
		if found && otherID != p.ID {
			return errors.ErrYearAlreadyBaselined.WithDetails(map[string]any{
				"fiscal_year": p.FiscalYear,
				"plan_id":     otherID.String(),
			})
		}

		items, err := s.repo.ListItemDetails(ctx, planID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return errors.ErrNoPlanItems
		}
		plan.SortForSnapshot(items)

		now := s.timestamp()
		snapshot := plan.BuildSnapshot(p.ID, p.FiscalYear, items, now)
		baseline, err := plan.NewBaseline(snapshot, actor, now)
		if err != nil {
			return err
		}
		if err := s.repo.InsertBaseline(ctx, baseline); err != nil {
			return err
		}
		if err := p.MarkBaselined(baseline.Hash, actor, now); err != nil {
			return err
		}
		if err := s.repo.UpdatePlan(ctx, p); err != nil {
			return err
		}

		if err := s.record(ctx, audit.ActionPlanBaselined, audit.EntityPlan, p.ID, actor, map[string]any{
			"baseline_id": baseline.ID.String(),
			"hash_prefix": baseline.Hash.Prefix(),
			"item_count":  snapshot.ItemCount,
		}); err != nil {
			return err
		}

		result = &BaselineResult{
			Status:       p.Status,
			Hash:         baseline.Hash.String(),
			ItemCount:    snapshot.ItemCount,
			BaselineDate: now,
		}
		return nil
	})
	if err := s.finish(ctx, span, "baseline", err); err != nil {
		s.logger.Warn("plan baseline rejected",
			zap.String("plan_id", planID.String()),
			zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, string(plan.StatusApproved), string(plan.StatusBaselined))
		s.metrics.RecordBaseline(ctx, float64(time.Since(started).Milliseconds()), result.ItemCount)
	}
	s.logger.Info("plan baselined",
		zap.String("plan_id", planID.String()),
		zap.String("hash", result.Hash),
		zap.Int("item_count", result.ItemCount),
		zap.String("actor", actor.String()))
	return result, nil
}

// GenerateEngagements fans a baselined plan out into one engagement per
// frozen item plus its templated PBC requests. The whole fan-out is one
// transaction serialized per plan; a plan that already has linked
// engagements is rejected with Conflict.
func (s *Service) GenerateEngagements(ctx context.Context, planID, actor uuid.UUID) (*GenerationResult, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	ctx, span := s.startSpan(ctx, "GenerateEngagements", planID)
	started := time.Now()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "plan:generate:"+planID.String(), s.config.GenerationLockTTL)
		if err != nil {
			return nil, s.finish(ctx, span, "generate_engagements", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release generation lock",
					zap.String("plan_id", planID.String()),
					zap.Error(err))
			}
		}()
	}

	var result *GenerationResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPlanGeneration(ctx, planID); err != nil {
			return err
		}
		p, err := s.repo.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if p.Status != plan.StatusBaselined {
			return errors.ErrPlanNotBaselined.WithDetails(map[string]any{"status": string(p.Status)})
		}

		baseline, err := s.repo.LatestBaseline(ctx, planID)
		if err != nil {
			return err
		}
		if p.BaselineHash == nil || *p.BaselineHash != baseline.Hash.String() {
			return errors.ErrBaselineTamper.WithDetails(map[string]any{"plan_id": planID.String()})
		}
		items, err := baseline.Items()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return errors.ErrNoPlanItems
		}

		existing, err := s.repo.CountPlanEngagements(ctx, planID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return errors.ErrEngagementsGenerated.WithDetails(map[string]any{"existing": existing})
		}

		gc := plan.GenerationContext{
			PlanID:     p.ID,
			Year:       p.FiscalYear,
			BaselineID: baseline.ID,
			Actor:      actor,
			Now:        s.timestamp(),
		}
		res := &GenerationResult{EngagementIDs: make([]uuid.UUID, 0, len(items))}
		for i, item := range items {
			eng, pbcs, err := plan.DeriveEngagement(gc, item, i+1)
			if err != nil {
				return err
			}
			if err := s.repo.InsertEngagement(ctx, eng); err != nil {
				return fmt.Errorf("insert engagement %s: %w", eng.Code, err)
			}
			if err := s.repo.InsertPBCRequests(ctx, pbcs); err != nil {
				return fmt.Errorf("insert pbc requests for %s: %w", eng.Code, err)
			}
			res.EngagementIDs = append(res.EngagementIDs, eng.ID)
			res.CreatedCount++
			res.PBCCount += len(pbcs)
		}

		if err := s.record(ctx, audit.ActionEngagementsGenerated, audit.EntityPlan, p.ID, actor, map[string]any{
			"baseline_id":   baseline.ID.String(),
			"created_count": res.CreatedCount,
			"pbc_count":     res.PBCCount,
		}); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err := s.finish(ctx, span, "generate_engagements", err); err != nil {
		s.logger.Warn("engagement generation rejected",
			zap.String("plan_id", planID.String()),
			zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordGeneration(ctx, float64(time.Since(started).Milliseconds()), result.CreatedCount, result.PBCCount)
	}
	s.logger.Info("engagements generated",
		zap.String("plan_id", planID.String()),
		zap.Int("created_count", result.CreatedCount),
		zap.Int("pbc_count", result.PBCCount),
		zap.String("actor", actor.String()))
	return result, nil
}
