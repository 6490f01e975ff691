package rest

import (
	"encoding/json"
	"net/http"

	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
)

type riskResponse struct {
	OK    bool             `json:"ok"`
	Data  *risk.Assessment `json:"data"`
	Score json.Number      `json:"score"`
}

func (h *Handler) assessRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.svc.Risk.AssessRisk(r.Context(), risk.Input{
		AuditUniverseID: req.AuditUniverseID,
		Likelihood:      req.Likelihood,
		Impact:          req.Impact,
		Weight:          req.Weight,
		ResidualScore:   req.ResidualScore,
		Evidence:        req.Evidence,
	}, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, riskResponse{OK: true, Data: a, Score: json.Number(a.Score.String())})
}

func (h *Handler) riskHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	history, err := h.svc.Risk.History(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if history == nil {
		history = []*risk.Assessment{}
	}
	writeData(w, http.StatusOK, history)
}
