package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/export"
	"github.com/davidleathers/qaudit-backend/internal/service/planning"
)

type baselineResponse struct {
	OK           bool        `json:"ok"`
	Status       plan.Status `json:"status"`
	Hash         string      `json:"hash"`
	ItemCount    int         `json:"item_count"`
	BaselineDate time.Time   `json:"baseline_date"`
}

type generationResponse struct {
	OK            bool        `json:"ok"`
	CreatedCount  int         `json:"created_count"`
	PBCCount      int         `json:"pbc_count"`
	EngagementIDs []uuid.UUID `json:"engagement_ids"`
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Plans.CreatePlan(r.Context(), planning.CreatePlanRequest{
		FiscalYear: req.FiscalYear,
		Version:    req.Version,
		Title:      req.Title,
	}, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Plans.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// transition serves approve and complete, which share a body and response
func (h *Handler) transition(apply func(ctx context.Context, planID, actor uuid.UUID) (*plan.Plan, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		var req actorRequest
		if err := h.decode(w, r, &req, true); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		actor, err := h.actors.resolve(r, req.CreatedBy)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		p, err := apply(r.Context(), id, actor)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeData(w, http.StatusOK, p)
	}
}

func (h *Handler) baseline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req actorRequest
	if err := h.decode(w, r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Plans.Baseline(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, baselineResponse{
		OK:           true,
		Status:       res.Status,
		Hash:         res.Hash,
		ItemCount:    res.ItemCount,
		BaselineDate: res.BaselineDate,
	})
}

func (h *Handler) generateEngagements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req actorRequest
	if err := h.decode(w, r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Plans.GenerateEngagements(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, generationResponse{
		OK:            true,
		CreatedCount:  res.CreatedCount,
		PBCCount:      res.PBCCount,
		EngagementIDs: res.EngagementIDs,
	})
}

func (h *Handler) createAuditUniverse(w http.ResponseWriter, r *http.Request) {
	var req auditUniverseRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	au, err := h.svc.Plans.CreateAuditUniverse(r.Context(), planning.CreateAuditUniverseRequest{
		Code:     req.Code,
		Name:     req.Name,
		Category: req.Category,
		Owner:    req.Owner,
	}, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, au)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items, err := h.svc.Plans.ListItems(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []plan.ItemDetail{}
	}
	writeData(w, http.StatusOK, items)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req itemRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.svc.Plans.AddItem(r.Context(), id, in, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req itemRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.svc.Plans.UpdateItem(r.Context(), id, itemID, in, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req actorRequest
	if err := h.decode(w, r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Plans.DeleteItem(r.Context(), id, itemID, actor); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) verifyBaseline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Plans.VerifyBaseline(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

func (h *Handler) exportBaseline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	data, p, err := h.svc.Plans.ExportBaseline(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="baseline-%d.xlsx"`, p.FiscalYear))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
