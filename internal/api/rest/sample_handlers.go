package rest

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
	samplingsvc "github.com/davidleathers/qaudit-backend/internal/service/sampling"
)

type sampleResponse struct {
	OK         bool            `json:"ok"`
	ID         uuid.UUID       `json:"id"`
	Hash       string          `json:"hash"`
	SampleSize int             `json:"sampleSize"`
	Method     sampling.Method `json:"method"`
}

func (h *Handler) createSample(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := explicitRate(req.ConfidenceLevel, sampling.ErrInvalidConfidenceLevel); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := explicitRate(req.PrecisionRate, sampling.ErrInvalidPrecisionRate); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor, err := h.actors.resolve(r, req.CreatedBy)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	s, err := h.svc.Samples.CreateSample(r.Context(), samplingsvc.CreateSampleRequest{
		TestID:          req.TestID,
		Method:          req.Method,
		PopulationSize:  req.PopulationSize,
		SampleSize:      req.SampleSize,
		ConfidenceLevel: deref(req.ConfidenceLevel),
		PrecisionRate:   deref(req.PrecisionRate),
		Criteria:        req.Criteria,
		Notes:           req.Notes,
	}, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sampleResponse{
		OK:         true,
		ID:         s.ID,
		Hash:       s.SelectionHash.String(),
		SampleSize: s.SampleSize,
		Method:     s.Method,
	})
}

func (h *Handler) getSample(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	s, err := h.svc.Samples.GetSample(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, s)
}

func (h *Handler) verifySample(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Samples.VerifySample(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

// recommendSample reads population and optional confidence, precision and
// expected_error query parameters
func (h *Handler) recommendSample(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	population, err := strconv.Atoi(q.Get("population"))
	if err != nil {
		writeError(w, r, h.logger, errInvalidQuery)
		return
	}
	rates := make([]float64, 3)
	for i, name := range []string{"confidence", "precision", "expected_error"} {
		if raw := q.Get(name); raw != "" {
			if rates[i], err = strconv.ParseFloat(raw, 64); err != nil {
				writeError(w, r, h.logger, errInvalidQuery)
				return
			}
			if i == 0 && rates[i] == 0 {
				writeError(w, r, h.logger, sampling.ErrInvalidConfidenceLevel)
				return
			}
			if i == 1 && rates[i] == 0 {
				writeError(w, r, h.logger, sampling.ErrInvalidPrecisionRate)
				return
			}
		}
	}
	n, err := h.svc.Samples.Recommend(population, rates[0], rates[1], rates[2])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"population_size": population, "recommended_size": n})
}

// explicitRate rejects a rate sent as 0. Only an absent rate falls back to
// the configured default.
func explicitRate(v *float64, invalid error) error {
	if v != nil && *v == 0 {
		return invalid
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
