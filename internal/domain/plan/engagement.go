package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

const (
	EngagementStatusDraft = "DRAFT"
	PBCStatusOpen         = "open"

	DefaultBudgetHours   = 40
	HoursPerEffortDay    = 8
	DefaultDurationDays  = 30
	DefaultPBCDueDays    = 30
	defaultAuditUnitCode = "AU"
)

// Engagement is a concrete audit generated from a baselined plan item
type Engagement struct {
	ID              uuid.UUID       `json:"id"`
	Code            string          `json:"code"`
	Title           string          `json:"title"`
	Objective       string          `json:"objective"`
	Scope           json.RawMessage `json:"scope"`
	Criteria        json.RawMessage `json:"criteria"`
	Constraints     json.RawMessage `json:"constraints"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	BudgetHours     int             `json:"budget_hours"`
	Status          string          `json:"status"`
	PlanID          uuid.UUID       `json:"plan_id"`
	PlanItemID      uuid.UUID       `json:"plan_item_id"`
	BaselineID      uuid.UUID       `json:"baseline_id"`
	AuditUniverseID uuid.UUID       `json:"audit_universe_id"`
	CreatedBy       uuid.UUID       `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PBCRequest is a document request issued to the auditee
type PBCRequest struct {
	ID           uuid.UUID `json:"id"`
	EngagementID uuid.UUID `json:"engagement_id"`
	Code         string    `json:"code"`
	Description  string    `json:"description"`
	OwnerID      uuid.UUID `json:"owner_id"`
	DueDate      time.Time `json:"due_date"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerationContext carries the plan-level inputs of a fan-out
type GenerationContext struct {
	PlanID     uuid.UUID
	Year       int
	BaselineID uuid.UUID
	Actor      uuid.UUID
	Now        time.Time
}

// EngagementTitleMarker is embedded in every generated title
func EngagementTitleMarker(year int) string {
	return fmt.Sprintf("السنة %d", year)
}

// EngagementCode builds {year}-{AUCODE}-{base36 millis}{seq}. seq keeps
// codes distinct within one generation run; the unique index on code
// catches anything else.
func EngagementCode(year int, auCode string, at time.Time, seq int) string {
	code := strings.ToUpper(strings.TrimSpace(auCode))
	if code == "" {
		code = defaultAuditUnitCode
	}
	suffix := strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36))
	return fmt.Sprintf("%d-%s-%s%02d", year, code, suffix, seq)
}

// PBCCode builds PBC-{engagementCode}-{NNN}
func PBCCode(engagementCode string, n int) string {
	return fmt.Sprintf("PBC-%s-%03d", engagementCode, n)
}

type engagementScope struct {
	Brief         string  `json:"brief"`
	AuditUniverse string  `json:"audit_universe"`
	PeriodStart   *string `json:"period_start"`
	PeriodEnd     *string `json:"period_end"`
}

type engagementCriteria struct {
	AuditType string   `json:"audit_type"`
	Priority  string   `json:"priority"`
	RiskScore *float64 `json:"risk_score"`
}

type engagementConstraints struct {
	BudgetHours     int    `json:"budget_hours"`
	DeliverableType string `json:"deliverable_type"`
}

// DeriveEngagement builds the engagement and its PBC requests for one
// snapshot item. seq is the 1-based position of the item in the run.
func DeriveEngagement(gc GenerationContext, item SnapshotItem, seq int) (*Engagement, []PBCRequest, error) {
	start, end, err := engagementWindow(gc.Year, item)
	if err != nil {
		return nil, nil, err
	}
	budget := DefaultBudgetHours
	if item.EffortDays != nil && *item.EffortDays > 0 {
		budget = *item.EffortDays * HoursPerEffortDay
	}

	scope, err := values.MarshalCompact(engagementScope{
		Brief:         item.ScopeBrief,
		AuditUniverse: item.AuditUniverseCode,
		PeriodStart:   item.PeriodStart,
		PeriodEnd:     item.PeriodEnd,
	})
	if err != nil {
		return nil, nil, err
	}
	criteria, err := values.MarshalCompact(engagementCriteria{
		AuditType: item.Type,
		Priority:  item.Priority,
		RiskScore: item.RiskScore,
	})
	if err != nil {
		return nil, nil, err
	}
	constraints, err := values.MarshalCompact(engagementConstraints{
		BudgetHours:     budget,
		DeliverableType: item.DeliverableType,
	})
	if err != nil {
		return nil, nil, err
	}

	eng := &Engagement{
		ID:              uuid.New(),
		Code:            EngagementCode(gc.Year, item.AuditUniverseCode, gc.Now, seq),
		Title:           fmt.Sprintf("تدقيق %s - %s", item.AuditUniverseName, EngagementTitleMarker(gc.Year)),
		Objective:       objectiveFor(item),
		Scope:           scope,
		Criteria:        criteria,
		Constraints:     constraints,
		StartDate:       start,
		EndDate:         end,
		BudgetHours:     budget,
		Status:          EngagementStatusDraft,
		PlanID:          gc.PlanID,
		PlanItemID:      item.ID,
		BaselineID:      gc.BaselineID,
		AuditUniverseID: item.AuditUniverseID,
		CreatedBy:       gc.Actor,
		CreatedAt:       gc.Now,
	}

	due := gc.Now.AddDate(0, 0, DefaultPBCDueDays)
	if item.PeriodEnd != nil {
		pe, err := ParseDate(item.PeriodEnd)
		if err != nil {
			return nil, nil, err
		}
		due = *pe
	}

	template := PBCTemplateFor(item.Type)
	pbcs := make([]PBCRequest, len(template))
	for i, desc := range template {
		pbcs[i] = PBCRequest{
			ID:           uuid.New(),
			EngagementID: eng.ID,
			Code:         PBCCode(eng.Code, i+1),
			Description:  desc,
			OwnerID:      gc.Actor,
			DueDate:      due,
			Status:       PBCStatusOpen,
			CreatedAt:    gc.Now,
		}
	}
	return eng, pbcs, nil
}

// engagementWindow defaults the start to Jan 1 of the fiscal year and
// the end to start plus effort days (or DefaultDurationDays).
func engagementWindow(year int, item SnapshotItem) (time.Time, time.Time, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if ps, err := ParseDate(item.PeriodStart); err != nil {
		return time.Time{}, time.Time{}, err
	} else if ps != nil {
		start = *ps
	}

	days := DefaultDurationDays
	if item.EffortDays != nil && *item.EffortDays > 0 {
		days = *item.EffortDays
	}
	end := start.AddDate(0, 0, days)
	if pe, err := ParseDate(item.PeriodEnd); err != nil {
		return time.Time{}, time.Time{}, err
	} else if pe != nil {
		end = *pe
	}
	return start, end, nil
}

func objectiveFor(item SnapshotItem) string {
	objective := fmt.Sprintf("تقييم فعالية الضوابط الداخلية في %s", item.AuditUniverseName)
	if item.ScopeBrief != "" {
		objective += ": " + item.ScopeBrief
	}
	return objective
}
