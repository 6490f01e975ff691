package rest

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
	"github.com/davidleathers/qaudit-backend/internal/service/planning"
	samplingsvc "github.com/davidleathers/qaudit-backend/internal/service/sampling"
)

// PlanService is the plan lifecycle as seen by the HTTP layer
type PlanService interface {
	CreatePlan(ctx context.Context, req planning.CreatePlanRequest, actor uuid.UUID) (*plan.Plan, error)
	GetPlan(ctx context.Context, planID uuid.UUID) (*plan.Plan, error)
	Approve(ctx context.Context, planID, actor uuid.UUID) (*plan.Plan, error)
	Complete(ctx context.Context, planID, actor uuid.UUID) (*plan.Plan, error)
	Baseline(ctx context.Context, planID, actor uuid.UUID) (*planning.BaselineResult, error)
	GenerateEngagements(ctx context.Context, planID, actor uuid.UUID) (*planning.GenerationResult, error)
	CreateAuditUniverse(ctx context.Context, req planning.CreateAuditUniverseRequest, actor uuid.UUID) (*plan.AuditUniverse, error)
	ListItems(ctx context.Context, planID uuid.UUID) ([]plan.ItemDetail, error)
	AddItem(ctx context.Context, planID uuid.UUID, in plan.ItemInput, actor uuid.UUID) (*plan.Item, error)
	UpdateItem(ctx context.Context, planID, itemID uuid.UUID, in plan.ItemInput, actor uuid.UUID) (*plan.Item, error)
	DeleteItem(ctx context.Context, planID, itemID, actor uuid.UUID) error
	VerifyBaseline(ctx context.Context, planID uuid.UUID) (*plan.Verification, error)
	ExportBaseline(ctx context.Context, planID uuid.UUID) ([]byte, *plan.Plan, error)
}

// SampleService creates and verifies audit samples
type SampleService interface {
	CreateSample(ctx context.Context, req samplingsvc.CreateSampleRequest, actor uuid.UUID) (*sampling.Sample, error)
	GetSample(ctx context.Context, id uuid.UUID) (*sampling.Sample, error)
	VerifySample(ctx context.Context, id uuid.UUID) (*samplingsvc.Verification, error)
	Recommend(populationSize int, confidenceLevel, precisionRate, expectedErrorRate float64) (int, error)
}

// RiskService rates audit-universe entities
type RiskService interface {
	AssessRisk(ctx context.Context, in risk.Input, actor uuid.UUID) (*risk.Assessment, error)
	History(ctx context.Context, auditUniverseID uuid.UUID) ([]*risk.Assessment, error)
}

// Services groups the domain services behind the API
type Services struct {
	Plans   PlanService
	Samples SampleService
	Risk    RiskService
}

// Handler serves the JSON API
type Handler struct {
	svc      Services
	logger   *zap.Logger
	validate *validator.Validate
	actors   actorResolver
	checks   []HealthCheck
	version  string
}
