package database

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
)

// PlanRepository stores plans, items, baselines and generated engagements
type PlanRepository struct {
	db *Pool
}

func NewPlanRepository(db *Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, fiscal_year, version, title, status, baseline_hash,
	baseline_date, baseline_by, created_by, created_at, updated_at`

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	var status string
	var hash *string
	err := row.Scan(&p.ID, &p.FiscalYear, &p.Version, &p.Title, &status, &hash,
		&p.BaselineDate, &p.BaselineBy, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = plan.Status(status)
	if hash != nil {
		h := strings.TrimSpace(*hash)
		p.BaselineHash = &h
	}
	return &p, nil
}

func (r *PlanRepository) CreatePlan(ctx context.Context, p *plan.Plan) error {
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO annual_plans (id, fiscal_year, version, title, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.FiscalYear, p.Version, p.Title, string(p.Status), p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return mapError(err, nil, "insert plan")
}

func (r *PlanRepository) GetPlan(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	p, err := scanPlan(r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+planColumns+` FROM annual_plans WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, errors.ErrPlanNotFound, "get plan")
	}
	return p, nil
}

// GetPlanForUpdate locks the plan row until the surrounding transaction ends
func (r *PlanRepository) GetPlanForUpdate(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	if !inTx(ctx) {
		return nil, errors.NewInternalError("GetPlanForUpdate requires a transaction")
	}
	p, err := scanPlan(r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+planColumns+` FROM annual_plans WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapError(err, errors.ErrPlanNotFound, "lock plan")
	}
	return p, nil
}

func (r *PlanRepository) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `
		UPDATE annual_plans
		SET status = $2, baseline_hash = $3, baseline_date = $4, baseline_by = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, string(p.Status), p.BaselineHash, p.BaselineDate, p.BaselineBy, p.UpdatedAt)
	if err != nil {
		return mapError(err, nil, "update plan")
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPlanNotFound
	}
	return nil
}

func (r *PlanRepository) BaselinedPlanForYear(ctx context.Context, year int) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.db.conn(ctx).QueryRow(ctx,
		`SELECT id FROM annual_plans WHERE fiscal_year = $1 AND status = 'baselined'`, year).Scan(&id)
	if isNoRows(err) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, mapError(err, nil, "find baselined plan")
	}
	return id, true, nil
}

func (r *PlanRepository) GetAuditUniverse(ctx context.Context, id uuid.UUID) (*plan.AuditUniverse, error) {
	var au plan.AuditUniverse
	err := r.db.conn(ctx).QueryRow(ctx, `
		SELECT id, code, name, category, owner_id, created_at
		FROM audit_universe WHERE id = $1`, id).
		Scan(&au.ID, &au.Code, &au.Name, &au.Category, &au.Owner, &au.CreatedAt)
	if err != nil {
		return nil, mapError(err, errors.ErrAuditUniverseNotFound, "get audit universe")
	}
	return &au, nil
}

func (r *PlanRepository) CreateAuditUniverse(ctx context.Context, au *plan.AuditUniverse) error {
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO audit_universe (id, code, name, category, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		au.ID, au.Code, au.Name, au.Category, au.Owner, au.CreatedAt)
	return mapError(err, nil, "insert audit universe")
}

const itemColumns = `i.id, i.plan_id, i.audit_universe_id, i.audit_type, i.priority, i.scope_brief,
	i.effort_days, i.period_start, i.period_end, i.deliverable_type, i.risk_score,
	i.created_at, i.updated_at`

func itemDest(it *plan.Item) []any {
	return []any{&it.ID, &it.PlanID, &it.AuditUniverseID, &it.Type, &it.Priority, &it.ScopeBrief,
		&it.EffortDays, &it.PeriodStart, &it.PeriodEnd, &it.DeliverableType, &it.RiskScore,
		&it.CreatedAt, &it.UpdatedAt}
}

// ListItemDetails joins items with their audit-universe code and name,
// highest risk first, unscored last, ties by id
func (r *PlanRepository) ListItemDetails(ctx context.Context, planID uuid.UUID) ([]plan.ItemDetail, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT `+itemColumns+`, COALESCE(au.code, ''), COALESCE(au.name, '')
		FROM annual_plan_items i
		LEFT JOIN audit_universe au ON au.id = i.audit_universe_id
		WHERE i.plan_id = $1
		ORDER BY i.risk_score DESC NULLS LAST, i.id::text`, planID)
	if err != nil {
		return nil, mapError(err, nil, "list plan items")
	}
	defer rows.Close()

	var out []plan.ItemDetail
	for rows.Next() {
		var d plan.ItemDetail
		dest := append(itemDest(&d.Item), &d.AuditUniverseCode, &d.AuditUniverseName)
		if err := rows.Scan(dest...); err != nil {
			return nil, mapError(err, nil, "scan plan item")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, nil, "list plan items")
	}
	// the database collation may order text ids differently
	plan.SortForSnapshot(out)
	return out, nil
}

func (r *PlanRepository) GetItem(ctx context.Context, planID, itemID uuid.UUID) (*plan.Item, error) {
	var it plan.Item
	err := r.db.conn(ctx).QueryRow(ctx, `
		SELECT `+itemColumns+` FROM annual_plan_items i
		WHERE i.id = $1 AND i.plan_id = $2`, itemID, planID).Scan(itemDest(&it)...)
	if err != nil {
		return nil, mapError(err, errors.ErrPlanItemNotFound, "get plan item")
	}
	return &it, nil
}

func (r *PlanRepository) InsertItem(ctx context.Context, it *plan.Item) error {
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO annual_plan_items (id, plan_id, audit_universe_id, audit_type, priority, scope_brief,
			effort_days, period_start, period_end, deliverable_type, risk_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		it.ID, it.PlanID, it.AuditUniverseID, it.Type, it.Priority, it.ScopeBrief,
		it.EffortDays, it.PeriodStart, it.PeriodEnd, it.DeliverableType, it.RiskScore, it.CreatedAt, it.UpdatedAt)
	return mapError(err, nil, "insert plan item")
}

func (r *PlanRepository) UpdateItem(ctx context.Context, it *plan.Item) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `
		UPDATE annual_plan_items
		SET audit_universe_id = $3, audit_type = $4, priority = $5, scope_brief = $6, effort_days = $7,
			period_start = $8, period_end = $9, deliverable_type = $10, risk_score = $11, updated_at = $12
		WHERE id = $1 AND plan_id = $2`,
		it.ID, it.PlanID, it.AuditUniverseID, it.Type, it.Priority, it.ScopeBrief, it.EffortDays,
		it.PeriodStart, it.PeriodEnd, it.DeliverableType, it.RiskScore, it.UpdatedAt)
	if err != nil {
		return mapError(err, nil, "update plan item")
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPlanItemNotFound
	}
	return nil
}

func (r *PlanRepository) DeleteItem(ctx context.Context, planID, itemID uuid.UUID) error {
	tag, err := r.db.conn(ctx).Exec(ctx,
		`DELETE FROM annual_plan_items WHERE id = $1 AND plan_id = $2`, itemID, planID)
	if err != nil {
		return mapError(err, nil, "delete plan item")
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPlanItemNotFound
	}
	return nil
}

func (r *PlanRepository) InsertBaseline(ctx context.Context, b *plan.Baseline) error {
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO annual_plan_baselines (id, plan_id, snapshot, hash, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.PlanID, string(b.Snapshot), b.Hash, b.CreatedBy, b.CreatedAt)
	return mapError(err, nil, "insert baseline")
}

func (r *PlanRepository) LatestBaseline(ctx context.Context, planID uuid.UUID) (*plan.Baseline, error) {
	var b plan.Baseline
	var snapshot string
	err := r.db.conn(ctx).QueryRow(ctx, `
		SELECT id, plan_id, snapshot, hash, created_by, created_at
		FROM annual_plan_baselines
		WHERE plan_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, planID).
		Scan(&b.ID, &b.PlanID, &snapshot, &b.Hash, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, mapError(err, errors.ErrBaselineNotFound, "get latest baseline")
	}
	b.Snapshot = []byte(snapshot)
	return &b, nil
}

// LockPlanGeneration takes a transaction-scoped advisory lock on the plan
func (r *PlanRepository) LockPlanGeneration(ctx context.Context, planID uuid.UUID) error {
	if !inTx(ctx) {
		return errors.NewInternalError("LockPlanGeneration requires a transaction")
	}
	_, err := r.db.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, planID.String())
	return mapError(err, nil, "lock plan generation")
}

func (r *PlanRepository) CountPlanEngagements(ctx context.Context, planID uuid.UUID) (int, error) {
	var n int
	err := r.db.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM engagements WHERE plan_id = $1`, planID).Scan(&n)
	return n, mapError(err, nil, "count engagements")
}

func (r *PlanRepository) InsertEngagement(ctx context.Context, e *plan.Engagement) error {
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO engagements (id, code, title, objective, scope, criteria, constraints,
			start_date, end_date, budget_hours, status, plan_id, plan_item_id, baseline_id,
			audit_universe_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.ID, e.Code, e.Title, e.Objective, e.Scope, e.Criteria, e.Constraints,
		e.StartDate, e.EndDate, e.BudgetHours, e.Status, e.PlanID, e.PlanItemID, e.BaselineID,
		e.AuditUniverseID, e.CreatedBy, e.CreatedAt)
	return mapError(err, nil, "insert engagement")
}

// InsertPBCRequests writes a batch in one round trip
func (r *PlanRepository) InsertPBCRequests(ctx context.Context, reqs []plan.PBCRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, req := range reqs {
		batch.Queue(`
			INSERT INTO pbc_requests (id, engagement_id, code, description, owner_id, due_date, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			req.ID, req.EngagementID, req.Code, req.Description, req.OwnerID, req.DueDate, req.Status, req.CreatedAt)
	}
	results := r.db.conn(ctx).SendBatch(ctx, batch)
	defer results.Close()
	for range reqs {
		if _, err := results.Exec(); err != nil {
			return mapError(err, nil, "insert pbc request")
		}
	}
	return nil
}

// ListPlanEngagements returns the engagements generated from a plan
func (r *PlanRepository) ListPlanEngagements(ctx context.Context, planID uuid.UUID) ([]plan.Engagement, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT id, code, title, objective, scope, criteria, constraints, start_date, end_date,
			budget_hours, status, plan_id, plan_item_id, baseline_id, audit_universe_id, created_by, created_at
		FROM engagements WHERE plan_id = $1 ORDER BY code`, planID)
	if err != nil {
		return nil, mapError(err, nil, "list engagements")
	}
	defer rows.Close()

	var out []plan.Engagement
	for rows.Next() {
		var e plan.Engagement
		if err := rows.Scan(&e.ID, &e.Code, &e.Title, &e.Objective, &e.Scope, &e.Criteria, &e.Constraints,
			&e.StartDate, &e.EndDate, &e.BudgetHours, &e.Status, &e.PlanID, &e.PlanItemID, &e.BaselineID,
			&e.AuditUniverseID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, mapError(err, nil, "scan engagement")
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err(), nil, "list engagements")
}
