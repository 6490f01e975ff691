package sampling

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

// Sample is an immutable sampling record for one audit test
type Sample struct {
	ID              uuid.UUID        `json:"id"`
	TestID          uuid.UUID        `json:"test_id"`
	Method          Method           `json:"method"`
	PopulationSize  int              `json:"population_size"`
	SampleSize      int              `json:"sample_size"`
	ConfidenceLevel float64          `json:"confidence_level"`
	PrecisionRate   float64          `json:"precision_rate"`
	SelectionHash   values.HashValue `json:"selection_hash"`
	Criteria        map[string]any   `json:"criteria"`
	Items           []Item           `json:"items"`
	SelectedAt      time.Time        `json:"selected_at"`
	Notes           *string          `json:"notes,omitempty"`
	CreatedBy       uuid.UUID        `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewSample validates params, hashes them at time at, then generates items.
func NewSample(testID uuid.UUID, params Params, notes *string, actor uuid.UUID, at time.Time, rng *rand.Rand) (*Sample, error) {
	if testID == uuid.Nil {
		return nil, errors.NewInvalidInputError("TEST_ID_REQUIRED", "يجب تحديد الاختبار")
	}
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}

	params.ApplyDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Stored timestamps must round-trip exactly through the hash format
	at = at.UTC().Truncate(time.Millisecond)

	hash, err := ComputeSelectionHash(params, at)
	if err != nil {
		return nil, err
	}

	items, err := GenerateItems(params.Method, params.PopulationSize, params.SampleSize, rng)
	if err != nil {
		return nil, err
	}

	return &Sample{
		ID:              uuid.New(),
		TestID:          testID,
		Method:          params.Method,
		PopulationSize:  params.PopulationSize,
		SampleSize:      params.SampleSize,
		ConfidenceLevel: params.ConfidenceLevel,
		PrecisionRate:   params.PrecisionRate,
		SelectionHash:   hash,
		Criteria:        params.Criteria,
		Items:           items,
		SelectedAt:      at,
		Notes:           notes,
		CreatedBy:       actor,
		CreatedAt:       at,
	}, nil
}

// Params returns the hashed selection parameters of a stored sample
func (s *Sample) Params() Params {
	return Params{
		Method:          s.Method,
		PopulationSize:  s.PopulationSize,
		SampleSize:      s.SampleSize,
		ConfidenceLevel: s.ConfidenceLevel,
		PrecisionRate:   s.PrecisionRate,
		Criteria:        s.Criteria,
	}
}

// VerifySelectionHash recomputes the hash from the stored parameters and timestamp.
func (s *Sample) VerifySelectionHash() (bool, values.HashValue, error) {
	recomputed, err := ComputeSelectionHash(s.Params(), s.SelectedAt)
	if err != nil {
		return false, values.HashValue{}, err
	}
	return recomputed.Equal(s.SelectionHash), recomputed, nil
}
