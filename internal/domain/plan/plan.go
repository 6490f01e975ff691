package plan

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

const (
	MinFiscalYear = 2000
	MaxFiscalYear = 2100
)

// Plan is an annual audit plan
type Plan struct {
	ID           uuid.UUID  `json:"id"`
	FiscalYear   int        `json:"fiscal_year"`
	Version      string     `json:"version"`
	Title        string     `json:"title"`
	Status       Status     `json:"status"`
	BaselineHash *string    `json:"baseline_hash,omitempty"`
	BaselineDate *time.Time `json:"baseline_date,omitempty"`
	BaselineBy   *uuid.UUID `json:"baseline_by,omitempty"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewPlan creates a draft plan
func NewPlan(fiscalYear int, version, title string, actor uuid.UUID, now time.Time) (*Plan, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	if fiscalYear < MinFiscalYear || fiscalYear > MaxFiscalYear {
		return nil, errors.NewInvalidInputError("INVALID_FISCAL_YEAR", "السنة المالية غير صالحة")
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "1.0"
	}

	return &Plan{
		ID:         uuid.New(),
		FiscalYear: fiscalYear,
		Version:    version,
		Title:      values.NormalizeText(strings.TrimSpace(title)),
		Status:     StatusDraft,
		CreatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Approve moves a draft plan to approved
func (p *Plan) Approve(now time.Time) error {
	next, err := Transition(p.Status, StatusApproved)
	if err != nil {
		return err
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// MarkBaselined records the frozen state. Callers check the year
// constraint before calling this.
func (p *Plan) MarkBaselined(hash values.HashValue, actor uuid.UUID, at time.Time) error {
	if p.Status == StatusBaselined {
		return errors.ErrPlanAlreadyBaselined
	}
	if p.Status != StatusApproved {
		return errors.ErrPlanNotApproved.WithDetails(map[string]any{"status": string(p.Status)})
	}
	next, err := Transition(p.Status, StatusBaselined)
	if err != nil {
		return err
	}

	h := hash.String()
	by := actor
	date := at
	p.Status = next
	p.BaselineHash = &h
	p.BaselineDate = &date
	p.BaselineBy = &by
	p.UpdatedAt = at
	return nil
}

// Complete closes a baselined plan
func (p *Plan) Complete(now time.Time) error {
	next, err := Transition(p.Status, StatusCompleted)
	if err != nil {
		return err
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

func (p *Plan) IsFrozen() bool {
	return p.Status.IsFrozen()
}

// EnsureEditable returns PlanFrozen when items may no longer change
func (p *Plan) EnsureEditable() error {
	if p.IsFrozen() {
		return errors.ErrPlanFrozen.WithDetails(map[string]any{"status": string(p.Status)})
	}
	return nil
}

// AuditUniverse is an auditable entity (department, system or process)
type AuditUniverse struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Owner     *uuid.UUID `json:"owner,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewAuditUniverse validates and normalizes a catalog entry
func NewAuditUniverse(code, name, category string, owner *uuid.UUID, now time.Time) (*AuditUniverse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = values.NormalizeText(strings.TrimSpace(name))
	if code == "" || len(code) > 16 || strings.ContainsAny(code, " -") {
		return nil, errors.NewInvalidInputError("INVALID_AU_CODE", "رمز عنصر عالم التدقيق غير صالح")
	}
	if name == "" {
		return nil, errors.NewInvalidInputError("AU_NAME_REQUIRED", "اسم عنصر عالم التدقيق مطلوب")
	}
	return &AuditUniverse{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		Category:  values.NormalizeText(strings.TrimSpace(category)),
		Owner:     owner,
		CreatedAt: now,
	}, nil
}
