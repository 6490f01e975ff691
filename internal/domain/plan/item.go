package plan

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

// DateLayout is used for item periods in snapshots and API payloads
const DateLayout = "2006-01-02"

// Item is one planned audit under an annual plan
type Item struct {
	ID              uuid.UUID  `json:"id"`
	PlanID          uuid.UUID  `json:"plan_id"`
	AuditUniverseID uuid.UUID  `json:"audit_universe_id"`
	Type            string     `json:"type"`
	Priority        string     `json:"priority"`
	ScopeBrief      string     `json:"scope_brief"`
	EffortDays      *int       `json:"effort_days,omitempty"`
	PeriodStart     *time.Time `json:"period_start,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	DeliverableType string     `json:"deliverable_type"`
	RiskScore       *float64   `json:"risk_score,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ItemInput carries the mutable fields of an item
type ItemInput struct {
	AuditUniverseID uuid.UUID
	Type            string
	Priority        string
	ScopeBrief      string
	EffortDays      *int
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	DeliverableType string
	RiskScore       *float64
}

func (in ItemInput) validate() error {
	if in.AuditUniverseID == uuid.Nil {
		return errors.NewInvalidInputError("AU_REQUIRED", "يجب تحديد عنصر عالم التدقيق")
	}
	if strings.TrimSpace(in.Type) == "" {
		return errors.NewInvalidInputError("ITEM_TYPE_REQUIRED", "نوع التدقيق مطلوب")
	}
	if in.EffortDays != nil && *in.EffortDays < 0 {
		return errors.NewInvalidInputError("INVALID_EFFORT_DAYS", "عدد أيام العمل يجب ألا يكون سالباً")
	}
	if in.RiskScore != nil && *in.RiskScore < 0 {
		return errors.NewInvalidInputError("INVALID_RISK_SCORE", "درجة المخاطر يجب ألا تكون سالبة")
	}
	if in.PeriodStart != nil && in.PeriodEnd != nil && in.PeriodEnd.Before(*in.PeriodStart) {
		return errors.NewInvalidInputError("INVALID_PERIOD", "تاريخ نهاية الفترة قبل تاريخ بدايتها")
	}
	return nil
}

// NewItem builds an item for planID
func NewItem(planID uuid.UUID, in ItemInput, now time.Time) (*Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := &Item{
		ID:        uuid.New(),
		PlanID:    planID,
		CreatedAt: now,
	}
	item.apply(in, now)
	return item, nil
}

// Update replaces the mutable fields
func (i *Item) Update(in ItemInput, now time.Time) error {
	if err := in.validate(); err != nil {
		return err
	}
	i.apply(in, now)
	return nil
}

func (i *Item) apply(in ItemInput, now time.Time) {
	i.AuditUniverseID = in.AuditUniverseID
	i.Type = values.NormalizeText(strings.TrimSpace(in.Type))
	i.Priority = values.NormalizeText(strings.TrimSpace(in.Priority))
	i.ScopeBrief = values.NormalizeText(strings.TrimSpace(in.ScopeBrief))
	i.EffortDays = in.EffortDays
	i.PeriodStart = truncateDate(in.PeriodStart)
	i.PeriodEnd = truncateDate(in.PeriodEnd)
	i.DeliverableType = values.NormalizeText(strings.TrimSpace(in.DeliverableType))
	i.RiskScore = in.RiskScore
	i.UpdatedAt = now
}

// ItemDetail is an item joined with its audit-universe display fields
type ItemDetail struct {
	Item
	AuditUniverseCode string `json:"au_code"`
	AuditUniverseName string `json:"au_name"`
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
