package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
)

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.plans[p.ID]; ok {
			return errors.ErrDuplicateRecord
		}
		st.plans[p.ID] = *p
		return nil
	})
}

func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	var out *plan.Plan
	err := s.do(ctx, func(st *state) error {
		p, ok := st.plans[id]
		if !ok {
			return errors.ErrPlanNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

// GetPlanForUpdate is GetPlan; transactions already hold the store lock.
func (s *Store) GetPlanForUpdate(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	return s.GetPlan(ctx, id)
}

// UpdatePlan enforces one baselined plan per fiscal year.
func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	return s.do(ctx, func(st *state) error {
		if _, ok := st.plans[p.ID]; !ok {
			return errors.ErrPlanNotFound
		}
		if p.Status == plan.StatusBaselined {
			for id, other := range st.plans {
				if id != p.ID && other.FiscalYear == p.FiscalYear && other.Status == plan.StatusBaselined {
					return errors.ErrYearAlreadyBaselined
				}
			}
		}
		st.plans[p.ID] = *p
		return nil
	})
}

func (s *Store) BaselinedPlanForYear(ctx context.Context, year int) (uuid.UUID, bool, error) {
	var found uuid.UUID
	var ok bool
	err := s.do(ctx, func(st *state) error {
		for id, p := range st.plans {
			if p.FiscalYear == year && p.Status == plan.StatusBaselined {
				found, ok = id, true
				return nil
			}
		}
		return nil
	})
	return found, ok, err
}

func (s *Store) GetAuditUniverse(ctx context.Context, id uuid.UUID) (*plan.AuditUniverse, error) {
	var out *plan.AuditUniverse
	err := s.do(ctx, func(st *state) error {
		au, ok := st.universes[id]
		if !ok {
			return errors.ErrAuditUniverseNotFound
		}
		out = &au
		return nil
	})
	return out, err
}

func (s *Store) CreateAuditUniverse(ctx context.Context, au *plan.AuditUniverse) error {
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.universes {
			if strings.EqualFold(existing.Code, au.Code) {
				return errors.ErrDuplicateRecord.WithDetails(map[string]any{"code": au.Code})
			}
		}
		st.universes[au.ID] = *au
		return nil
	})
}

func (s *Store) ListItemDetails(ctx context.Context, planID uuid.UUID) ([]plan.ItemDetail, error) {
	var out []plan.ItemDetail
	err := s.do(ctx, func(st *state) error {
		for _, it := range st.items {
			if it.PlanID != planID {
				continue
			}
			d := plan.ItemDetail{Item: it}
			if au, ok := st.universes[it.AuditUniverseID]; ok {
				d.AuditUniverseCode = au.Code
				d.AuditUniverseName = au.Name
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	plan.SortForSnapshot(out)
	return out, nil
}

func (s *Store) GetItem(ctx context.Context, planID, itemID uuid.UUID) (*plan.Item, error) {
	var out *plan.Item
	err := s.do(ctx, func(st *state) error {
		it, ok := st.items[itemID]
		if !ok || it.PlanID != planID {
			return errors.ErrPlanItemNotFound
		}
		out = &it
		return nil
	})
	return out, err
}

// frozen mirrors the Postgres trigger on annual_plan_items
func frozen(st *state, planID uuid.UUID) error {
	p, ok := st.plans[planID]
	if !ok {
		return errors.ErrPlanNotFound
	}
	if p.Status.IsFrozen() {
		return errors.ErrPlanFrozen
	}
	return nil
}

func (s *Store) InsertItem(ctx context.Context, item *plan.Item) error {
	return s.do(ctx, func(st *state) error {
		if err := frozen(st, item.PlanID); err != nil {
			return err
		}
		if _, ok := st.universes[item.AuditUniverseID]; !ok {
			return errors.ErrAuditUniverseNotFound
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (s *Store) UpdateItem(ctx context.Context, item *plan.Item) error {
	return s.do(ctx, func(st *state) error {
		if err := frozen(st, item.PlanID); err != nil {
			return err
		}
		if existing, ok := st.items[item.ID]; !ok || existing.PlanID != item.PlanID {
			return errors.ErrPlanItemNotFound
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (s *Store) DeleteItem(ctx context.Context, planID, itemID uuid.UUID) error {
	return s.do(ctx, func(st *state) error {
		if err := frozen(st, planID); err != nil {
			return err
		}
		if existing, ok := st.items[itemID]; !ok || existing.PlanID != planID {
			return errors.ErrPlanItemNotFound
		}
		delete(st.items, itemID)
		return nil
	})
}

func (s *Store) InsertBaseline(ctx context.Context, b *plan.Baseline) error {
	return s.do(ctx, func(st *state) error {
		cp := *b
		cp.Snapshot = append([]byte(nil), b.Snapshot...)
		st.baselines = append(st.baselines, cp)
		return nil
	})
}

func (s *Store) LatestBaseline(ctx context.Context, planID uuid.UUID) (*plan.Baseline, error) {
	var out *plan.Baseline
	err := s.do(ctx, func(st *state) error {
		for i := len(st.baselines) - 1; i >= 0; i-- {
			if st.baselines[i].PlanID == planID {
				b := st.baselines[i]
				b.Snapshot = append([]byte(nil), b.Snapshot...)
				out = &b
				return nil
			}
		}
		return errors.ErrBaselineNotFound
	})
	return out, err
}

// LockPlanGeneration is a no-op: transactions hold the store lock.
func (s *Store) LockPlanGeneration(ctx context.Context, planID uuid.UUID) error {
	return nil
}

func (s *Store) CountPlanEngagements(ctx context.Context, planID uuid.UUID) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		for _, e := range st.engagements {
			if e.PlanID == planID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// InsertEngagement enforces unique code and plan item link
func (s *Store) InsertEngagement(ctx context.Context, e *plan.Engagement) error {
	return s.do(ctx, func(st *state) error {
		for _, existing := range st.engagements {
			if existing.Code == e.Code || existing.PlanItemID == e.PlanItemID {
				return errors.ErrDuplicateRecord.WithDetails(map[string]any{"code": e.Code})
			}
		}
		st.engagements[e.ID] = *e
		return nil
	})
}

func (s *Store) InsertPBCRequests(ctx context.Context, reqs []plan.PBCRequest) error {
	return s.do(ctx, func(st *state) error {
		for _, r := range reqs {
			if _, ok := st.engagements[r.EngagementID]; !ok {
				return errors.NewNotFoundError("ENGAGEMENT_NOT_FOUND", "المهمة غير موجودة")
			}
			for _, existing := range st.pbcs {
				if existing.Code == r.Code {
					return errors.ErrDuplicateRecord.WithDetails(map[string]any{"code": r.Code})
				}
			}
			st.pbcs[r.ID] = r
		}
		return nil
	})
}

// ListPlanEngagements returns the engagements linked to a plan
func (s *Store) ListPlanEngagements(ctx context.Context, planID uuid.UUID) ([]plan.Engagement, error) {
	var out []plan.Engagement
	err := s.do(ctx, func(st *state) error {
		for _, e := range st.engagements {
			if e.PlanID == planID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// CountPBCRequests returns the number of stored PBC requests
func (s *Store) CountPBCRequests(ctx context.Context) (int, error) {
	n := 0
	err := s.do(ctx, func(st *state) error {
		n = len(st.pbcs)
		return nil
	})
	return n, err
}
