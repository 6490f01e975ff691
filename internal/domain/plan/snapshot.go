package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

const (
	// SnapshotSchemaVersion is hashed with every snapshot. Bump it whenever
	// SnapshotItem or Snapshot gain, lose or reorder a field.
	SnapshotSchemaVersion = 1

	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// SnapshotItem is the frozen copy of a plan item. Field order is part of
// the hashed format.
type SnapshotItem struct {
	ID                uuid.UUID `json:"id"`
	AuditUniverseID   uuid.UUID `json:"audit_universe_id"`
	AuditUniverseCode string    `json:"au_code"`
	AuditUniverseName string    `json:"au_name"`
	Type              string    `json:"type"`
	Priority          string    `json:"priority"`
	ScopeBrief        string    `json:"scope_brief"`
	EffortDays        *int      `json:"effort_days"`
	PeriodStart       *string   `json:"period_start"`
	PeriodEnd         *string   `json:"period_end"`
	DeliverableType   string    `json:"deliverable_type"`
	RiskScore         *float64  `json:"risk_score"`
}

// Snapshot is the hashed baseline document
type Snapshot struct {
	SchemaVersion int            `json:"schemaVersion"`
	PlanID        uuid.UUID      `json:"planId"`
	Year          int            `json:"year"`
	Items         []SnapshotItem `json:"items"`
	CreatedAt     string         `json:"createdAt"`
	ItemCount     int            `json:"itemCount"`
}

// SortForSnapshot orders items by risk score descending with unscored
// items last. Equal scores fall back to item id so the order is total.
func SortForSnapshot(items []ItemDetail) {
	slices.SortStableFunc(items, func(a, b ItemDetail) int {
		switch {
		case a.RiskScore == nil && b.RiskScore == nil:
		case a.RiskScore == nil:
			return 1
		case b.RiskScore == nil:
			return -1
		case *a.RiskScore > *b.RiskScore:
			return -1
		case *a.RiskScore < *b.RiskScore:
			return 1
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// BuildSnapshot freezes items (already ordered) for planID at time at.
func BuildSnapshot(planID uuid.UUID, year int, items []ItemDetail, at time.Time) Snapshot {
	frozen := make([]SnapshotItem, len(items))
	for i, it := range items {
		frozen[i] = SnapshotItem{
			ID:                it.ID,
			AuditUniverseID:   it.AuditUniverseID,
			AuditUniverseCode: values.NormalizeText(it.AuditUniverseCode),
			AuditUniverseName: values.NormalizeText(it.AuditUniverseName),
			Type:              values.NormalizeText(it.Type),
			Priority:          values.NormalizeText(it.Priority),
			ScopeBrief:        values.NormalizeText(it.ScopeBrief),
			EffortDays:        it.EffortDays,
			PeriodStart:       formatDate(it.PeriodStart),
			PeriodEnd:         formatDate(it.PeriodEnd),
			DeliverableType:   values.NormalizeText(it.DeliverableType),
			RiskScore:         it.RiskScore,
		}
	}
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		PlanID:        planID,
		Year:          year,
		Items:         frozen,
		CreatedAt:     at.UTC().Format(TimestampLayout),
		ItemCount:     len(frozen),
	}
}

// Encode returns the compact bytes and their SHA-256.
func (s Snapshot) Encode() ([]byte, values.HashValue, error) {
	if s.Items == nil {
		s.Items = []SnapshotItem{}
	}
	hash, data, err := values.HashCompact(s)
	if err != nil {
		return nil, values.HashValue{}, err
	}
	return data, hash, nil
}

// DecodeSnapshot parses stored snapshot bytes
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode baseline snapshot: %w", err)
	}
	if s.SchemaVersion != SnapshotSchemaVersion {
		return Snapshot{}, errors.NewInternalError("إصدار مخطط خط الأساس غير مدعوم").
			WithDetails(map[string]any{"schema_version": s.SchemaVersion})
	}
	return s, nil
}

// Baseline is the append-only record of one baselining event
type Baseline struct {
	ID        uuid.UUID        `json:"id"`
	PlanID    uuid.UUID        `json:"plan_id"`
	Snapshot  []byte           `json:"-"`
	Hash      values.HashValue `json:"hash"`
	CreatedBy uuid.UUID        `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewBaseline encodes and hashes a snapshot
func NewBaseline(s Snapshot, actor uuid.UUID, at time.Time) (*Baseline, error) {
	data, hash, err := s.Encode()
	if err != nil {
		return nil, err
	}
	return &Baseline{
		ID:        uuid.New(),
		PlanID:    s.PlanID,
		Snapshot:  data,
		Hash:      hash,
		CreatedBy: actor,
		CreatedAt: at,
	}, nil
}

// Verification is the result of re-checking a stored baseline
type Verification struct {
	PlanID           uuid.UUID        `json:"plan_id"`
	BaselineID       uuid.UUID        `json:"baseline_id"`
	StoredHash       values.HashValue `json:"stored_hash"`
	ComputedHash     values.HashValue `json:"computed_hash"`
	HashMatches      bool             `json:"hash_matches"`
	PlanHashMatches  bool             `json:"plan_hash_matches"`
	CanonicalEncoded bool             `json:"canonical_encoding"`
	ItemCount        int              `json:"item_count"`
	Valid            bool             `json:"valid"`
}

// Verify recomputes the hash over the stored bytes and compares it with
// the baseline row and the plan's recorded hash. It also checks that
// re-encoding the decoded snapshot reproduces the stored bytes exactly.
func (b *Baseline) Verify(planHash *string) Verification {
	computed := values.ComputeHashValue(b.Snapshot)
	v := Verification{
		PlanID:       b.PlanID,
		BaselineID:   b.ID,
		StoredHash:   b.Hash,
		ComputedHash: computed,
		HashMatches:  computed.Equal(b.Hash),
	}
	v.PlanHashMatches = planHash != nil && *planHash == computed.String()

	if snap, err := DecodeSnapshot(b.Snapshot); err == nil {
		v.ItemCount = snap.ItemCount
		if data, _, err := snap.Encode(); err == nil {
			v.CanonicalEncoded = bytes.Equal(data, b.Snapshot)
		}
	}

	v.Valid = v.HashMatches && v.PlanHashMatches && v.CanonicalEncoded
	return v
}

// Items returns the frozen items after confirming the stored hash.
func (b *Baseline) Items() ([]SnapshotItem, error) {
	if !b.Hash.Verify(b.Snapshot) {
		return nil, errors.ErrBaselineTamper.WithDetails(map[string]any{
			"plan_id":     b.PlanID.String(),
			"baseline_id": b.ID.String(),
		})
	}
	snap, err := DecodeSnapshot(b.Snapshot)
	if err != nil {
		return nil, err
	}
	return snap.Items, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(DateLayout)
	return &s
}

// ParseDate parses a YYYY-MM-DD period bound
func ParseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, errors.NewInvalidInputError("INVALID_DATE", "صيغة التاريخ غير صالحة").WithCause(err)
	}
	return &t, nil
}
