package risk

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
)

// Repository persists risk assessments against audit-universe entities
type Repository interface {
	GetAuditUniverse(ctx context.Context, id uuid.UUID) (*plan.AuditUniverse, error)
	CreateAssessment(ctx context.Context, a *risk.Assessment) error
	// ListAssessments returns an entity's assessments, newest first
	ListAssessments(ctx context.Context, auditUniverseID uuid.UUID) ([]*risk.Assessment, error)
}

type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditSink interface {
	Record(ctx context.Context, entry *audit.Entry) error
}
