package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

// Action names recorded by the core
type Action string

const (
	ActionPlanCreated          Action = "plan.created"
	ActionPlanApproved         Action = "plan.approved"
	ActionPlanBaselined        Action = "plan.baselined"
	ActionPlanCompleted        Action = "plan.completed"
	ActionItemAdded            Action = "plan_item.added"
	ActionItemUpdated          Action = "plan_item.updated"
	ActionItemDeleted          Action = "plan_item.deleted"
	ActionEngagementsGenerated Action = "plan.engagements_generated"
	ActionAuditUniverseCreated Action = "audit_universe.created"
	ActionRiskAssessed         Action = "risk.assessed"
	ActionSampleCreated        Action = "sample.created"
)

// Entity types
const (
	EntityPlan          = "annual_plan"
	EntityPlanItem      = "annual_plan_item"
	EntityAuditUniverse = "audit_universe"
	EntityRisk          = "risk_assessment"
	EntitySample        = "sample"
)

// Entry is one audit trail record. Entries are chained: each hash covers
// the previous entry's hash, so removing or editing a row breaks the chain.
type Entry struct {
	ID           uuid.UUID      `json:"id"`
	Sequence     int64          `json:"sequence"`
	Action       Action         `json:"action"`
	EntityType   string         `json:"entity_type"`
	EntityID     uuid.UUID      `json:"entity_id"`
	ActorID      uuid.UUID      `json:"actor_id"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// NewEntry builds an unchained entry. Sinks assign Sequence, PreviousHash
// and Hash with Seal when appending.
func NewEntry(action Action, entityType string, entityID, actor uuid.UUID, details map[string]any, at time.Time) (*Entry, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	if details == nil {
		details = map[string]any{}
	}
	return &Entry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor,
		Details:    details,
		CreatedAt:  at.UTC().Truncate(time.Millisecond),
	}, nil
}

type entryPayload struct {
	Sequence     int64          `json:"sequence"`
	Action       Action         `json:"action"`
	EntityType   string         `json:"entity_type"`
	EntityID     uuid.UUID      `json:"entity_id"`
	ActorID      uuid.UUID      `json:"actor_id"`
	Details      map[string]any `json:"details"`
	CreatedAt    string         `json:"created_at"`
	PreviousHash string         `json:"previous_hash"`
}

// ComputeHash hashes the entry content together with its predecessor's hash
func (e *Entry) ComputeHash() (string, error) {
	h, _, err := values.HashCompact(entryPayload{
		Sequence:     e.Sequence,
		Action:       e.Action,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		ActorID:      e.ActorID,
		Details:      e.Details,
		CreatedAt:    e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		PreviousHash: e.PreviousHash,
	})
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// Seal links e after prev (nil for the first entry) and computes its hash
func (e *Entry) Seal(prev *Entry) error {
	if prev == nil {
		e.Sequence = 1
		e.PreviousHash = ""
	} else {
		e.Sequence = prev.Sequence + 1
		e.PreviousHash = prev.Hash
	}
	h, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.Hash = h
	return nil
}

// ChainBreak describes an entry whose hash or link does not verify
type ChainBreak struct {
	EntryID  uuid.UUID `json:"entry_id"`
	Sequence int64     `json:"sequence"`
	Reason   string    `json:"reason"`
}

// VerifyChain checks entries ordered by sequence
func VerifyChain(entries []*Entry) []ChainBreak {
	var breaks []ChainBreak
	var prev *Entry
	for _, e := range entries {
		switch {
		case prev == nil && e.PreviousHash != "" && e.Sequence == 1:
			breaks = append(breaks, ChainBreak{EntryID: e.ID, Sequence: e.Sequence, Reason: "first entry has a previous hash"})
		case prev != nil && e.Sequence != prev.Sequence+1:
			breaks = append(breaks, ChainBreak{EntryID: e.ID, Sequence: e.Sequence, Reason: "sequence gap"})
		case prev != nil && e.PreviousHash != prev.Hash:
			breaks = append(breaks, ChainBreak{EntryID: e.ID, Sequence: e.Sequence, Reason: "previous hash mismatch"})
		}
		if h, err := e.ComputeHash(); err != nil || h != e.Hash {
			breaks = append(breaks, ChainBreak{EntryID: e.ID, Sequence: e.Sequence, Reason: "hash mismatch"})
		}
		prev = e
	}
	return breaks
}
