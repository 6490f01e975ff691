package sampling

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
)

// Repository persists immutable samples
type Repository interface {
	CreateSample(ctx context.Context, s *sampling.Sample) error
	GetSample(ctx context.Context, id uuid.UUID) (*sampling.Sample, error)
}

// TxManager runs fn as one unit of work
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditSink appends entries to the audit trail within the caller's unit of work
type AuditSink interface {
	Record(ctx context.Context, entry *audit.Entry) error
}
