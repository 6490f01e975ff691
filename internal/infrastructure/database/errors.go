package database

import (
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

// SQLSTATE codes mapped to the domain taxonomy
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgRaiseException      = "P0001"
)

// Unique indexes with a dedicated domain error
var uniqueConstraintErrors = map[string]*errors.AppError{
	"idx_annual_plans_one_baseline_per_year": errors.ErrYearAlreadyBaselined,
	"engagements_plan_item_id_key":           errors.ErrEngagementsGenerated,
}

// mapError translates pgx errors into AppErrors. notFound is returned for
// pgx.ErrNoRows; pass nil when no rows is not expected.
func mapError(err error, notFound *errors.AppError, op string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if appErr, ok := uniqueConstraintErrors[pgErr.ConstraintName]; ok {
				return appErr.WithCause(err)
			}
			return errors.ErrDuplicateRecord.WithDetails(map[string]any{
				"constraint": pgErr.ConstraintName,
			}).WithCause(err)
		case pgForeignKeyViolation:
			return errors.NewNotFoundError("REFERENCED_RECORD_NOT_FOUND", "السجل المرتبط غير موجود").WithCause(err)
		case pgCheckViolation:
			return errors.NewInvalidInputError("CONSTRAINT_VIOLATION", "قيمة خارج النطاق المسموح").WithCause(err)
		case pgRaiseException:
			return errors.ErrPlanFrozen.WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNoRows(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}
