package planning

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
)

// CreateAuditUniverse adds an auditable entity to the catalog
func (s *Service) CreateAuditUniverse(ctx context.Context, req CreateAuditUniverseRequest, actor uuid.UUID) (*plan.AuditUniverse, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	au, err := plan.NewAuditUniverse(req.Code, req.Name, req.Category, req.Owner, s.timestamp())
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateAuditUniverse(ctx, au); err != nil {
			return err
		}
		return s.record(ctx, audit.ActionAuditUniverseCreated, audit.EntityAuditUniverse, au.ID, actor, map[string]any{
			"code": au.Code,
		})
	})
	if err != nil {
		return nil, err
	}
	return au, nil
}

// ListItems returns the plan's items in snapshot order
func (s *Service) ListItems(ctx context.Context, planID uuid.UUID) ([]plan.ItemDetail, error) {
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItemDetails(ctx, planID)
	if err != nil {
		return nil, err
	}
	plan.SortForSnapshot(items)
	return items, nil
}

// AddItem attaches an item to a plan that is not yet frozen
func (s *Service) AddItem(ctx context.Context, planID uuid.UUID, in plan.ItemInput, actor uuid.UUID) (*plan.Item, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	var item *plan.Item
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if err := p.EnsureEditable(); err != nil {
			return err
		}
		if _, err := s.repo.GetAuditUniverse(ctx, in.AuditUniverseID); err != nil {
			return err
		}
		item, err = plan.NewItem(planID, in, s.timestamp())
		if err != nil {
			return err
		}
		if err := s.repo.InsertItem(ctx, item); err != nil {
			return err
		}
		return s.record(ctx, audit.ActionItemAdded, audit.EntityPlanItem, item.ID, actor, map[string]any{
			"plan_id": planID.String(),
			"type":    item.Type,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("plan item added",
		zap.String("plan_id", planID.String()),
		zap.String("item_id", item.ID.String()))
	return item, nil
}

// UpdateItem replaces an item's fields while the plan is editable
func (s *Service) UpdateItem(ctx context.Context, planID, itemID uuid.UUID, in plan.ItemInput, actor uuid.UUID) (*plan.Item, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	var item *plan.Item
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if err := p.EnsureEditable(); err != nil {
			return err
		}
		item, err = s.repo.GetItem(ctx, planID, itemID)
		if err != nil {
			return err
		}
		if _, err := s.repo.GetAuditUniverse(ctx, in.AuditUniverseID); err != nil {
			return err
		}
		if err := item.Update(in, s.timestamp()); err != nil {
			return err
		}
		if err := s.repo.UpdateItem(ctx, item); err != nil {
			return err
		}
		return s.record(ctx, audit.ActionItemUpdated, audit.EntityPlanItem, item.ID, actor, map[string]any{
			"plan_id": planID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item while the plan is editable
func (s *Service) DeleteItem(ctx context.Context, planID, itemID, actor uuid.UUID) error {
	if actor == uuid.Nil {
		return errors.ErrActorRequired
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPlanForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if err := p.EnsureEditable(); err != nil {
			return err
		}
		if err := s.repo.DeleteItem(ctx, planID, itemID); err != nil {
			return err
		}
		return s.record(ctx, audit.ActionItemDeleted, audit.EntityPlanItem, itemID, actor, map[string]any{
			"plan_id": planID.String(),
		})
	})
}

// VerifyBaseline recomputes the latest baseline hash from the stored bytes
func (s *Service) VerifyBaseline(ctx context.Context, planID uuid.UUID) (*plan.Verification, error) {
	ctx, span := s.startSpan(ctx, "VerifyBaseline", planID)

	p, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, s.finish(ctx, span, "verify_baseline", err)
	}
	b, err := s.repo.LatestBaseline(ctx, planID)
	if err != nil {
		return nil, s.finish(ctx, span, "verify_baseline", err)
	}
	v := b.Verify(p.BaselineHash)
	_ = s.finish(ctx, span, "verify_baseline", nil)

	if s.metrics != nil {
		s.metrics.RecordVerification(ctx, v.Valid)
	}
	if !v.Valid {
		s.logger.Error("baseline verification failed",
			zap.String("plan_id", planID.String()),
			zap.String("stored_hash", v.StoredHash.String()),
			zap.String("computed_hash", v.ComputedHash.String()),
			zap.Bool("plan_hash_matches", v.PlanHashMatches),
			zap.Bool("canonical_encoding", v.CanonicalEncoded))
	}
	return &v, nil
}

// ExportBaseline renders the latest verified baseline
func (s *Service) ExportBaseline(ctx context.Context, planID uuid.UUID) ([]byte, *plan.Plan, error) {
	if s.exporter == nil {
		return nil, nil, errors.NewInternalError("baseline export is not configured")
	}
	p, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.repo.LatestBaseline(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	if !b.Hash.Verify(b.Snapshot) {
		return nil, nil, errors.ErrBaselineTamper
	}
	snap, err := plan.DecodeSnapshot(b.Snapshot)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.exporter.ExportBaseline(p, b, snap)
	if err != nil {
		return nil, nil, err
	}
	return data, p, nil
}
