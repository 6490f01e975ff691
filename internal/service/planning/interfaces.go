package planning

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
)

// Repository persists plans, items, baselines and generated engagements.
// Inside TxManager.WithinTx every method runs on the transaction carried
// by the context.
type Repository interface {
	CreatePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*plan.Plan, error)
	// GetPlanForUpdate loads the plan and locks its row until the transaction ends
	GetPlanForUpdate(ctx context.Context, id uuid.UUID) (*plan.Plan, error)
	UpdatePlan(ctx context.Context, p *plan.Plan) error
	// BaselinedPlanForYear returns the id of the baselined plan for year, if any
	BaselinedPlanForYear(ctx context.Context, year int) (uuid.UUID, bool, error)

	GetAuditUniverse(ctx context.Context, id uuid.UUID) (*plan.AuditUniverse, error)
	CreateAuditUniverse(ctx context.Context, au *plan.AuditUniverse) error

	// ListItemDetails returns the plan's items joined with their audit-universe
	// code and name, risk score descending with unscored items last
	ListItemDetails(ctx context.Context, planID uuid.UUID) ([]plan.ItemDetail, error)
	GetItem(ctx context.Context, planID, itemID uuid.UUID) (*plan.Item, error)
	InsertItem(ctx context.Context, item *plan.Item) error
	UpdateItem(ctx context.Context, item *plan.Item) error
	DeleteItem(ctx context.Context, planID, itemID uuid.UUID) error

	InsertBaseline(ctx context.Context, b *plan.Baseline) error
	LatestBaseline(ctx context.Context, planID uuid.UUID) (*plan.Baseline, error)

	// LockPlanGeneration serializes engagement generation per plan for the
	// rest of the transaction
	LockPlanGeneration(ctx context.Context, planID uuid.UUID) error
	CountPlanEngagements(ctx context.Context, planID uuid.UUID) (int, error)
	InsertEngagement(ctx context.Context, e *plan.Engagement) error
	InsertPBCRequests(ctx context.Context, reqs []plan.PBCRequest) error
}

// TxManager runs fn as one unit of work. Any error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditSink appends entries to the audit trail within the caller's unit of work
type AuditSink interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Locker is a cross-process mutex. Acquire fails with a Conflict error when
// the key is already held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// BaselineExporter renders a baseline for download
type BaselineExporter interface {
	ExportBaseline(p *plan.Plan, b *plan.Baseline, snap plan.Snapshot) ([]byte, error)
}
