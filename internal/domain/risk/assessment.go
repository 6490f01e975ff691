package risk

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

const (
	MinRating = 1
	MaxRating = 5
	MinWeight = 0
	MaxWeight = 100
)

var hundred = decimal.NewFromInt(100)

// Assessment is one risk rating of an audit-universe entity. Score is
// always computed here and never taken from the caller.
type Assessment struct {
	ID              uuid.UUID        `json:"id"`
	AuditUniverseID uuid.UUID        `json:"au_id"`
	Likelihood      int              `json:"likelihood"`
	Impact          int              `json:"impact"`
	Weight          decimal.Decimal  `json:"weight"`
	Score           decimal.Decimal  `json:"score"`
	ResidualScore   *decimal.Decimal `json:"residual_score,omitempty"`
	Evidence        *string          `json:"evidence,omitempty"`
	AssessedBy      uuid.UUID        `json:"assessed_by"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Input is a caller-supplied rating
type Input struct {
	AuditUniverseID uuid.UUID
	Likelihood      int
	Impact          int
	Weight          decimal.Decimal
	ResidualScore   *decimal.Decimal
	Evidence        *string
}

// Validate checks rating and weight ranges
func (in Input) Validate() error {
	if in.AuditUniverseID == uuid.Nil {
		return errors.NewInvalidInputError("AU_REQUIRED", "يجب تحديد عنصر عالم التدقيق")
	}
	if in.Likelihood < MinRating || in.Likelihood > MaxRating {
		return errors.NewInvalidInputError("INVALID_LIKELIHOOD", "الاحتمالية يجب أن تكون بين 1 و 5")
	}
	if in.Impact < MinRating || in.Impact > MaxRating {
		return errors.NewInvalidInputError("INVALID_IMPACT", "الأثر يجب أن يكون بين 1 و 5")
	}
	if in.Weight.LessThan(decimal.NewFromInt(MinWeight)) || in.Weight.GreaterThan(decimal.NewFromInt(MaxWeight)) {
		return errors.NewInvalidInputError("INVALID_WEIGHT", "الوزن يجب أن يكون بين 0 و 100")
	}
	if in.ResidualScore != nil && in.ResidualScore.IsNegative() {
		return errors.NewInvalidInputError("INVALID_RESIDUAL_SCORE", "درجة المخاطر المتبقية يجب ألا تكون سالبة")
	}
	return nil
}

// ComputeScore returns likelihood × impact × weight/100, exactly.
func ComputeScore(likelihood, impact int, weight decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(likelihood * impact)).Mul(weight).Div(hundred)
}

// NewAssessment validates the input and computes the score
func NewAssessment(in Input, actor uuid.UUID, now time.Time) (*Assessment, error) {
	if actor == uuid.Nil {
		return nil, errors.ErrActorRequired
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var evidence *string
	if in.Evidence != nil {
		if e := values.NormalizeText(strings.TrimSpace(*in.Evidence)); e != "" {
			evidence = &e
		}
	}

	return &Assessment{
		ID:              uuid.New(),
		AuditUniverseID: in.AuditUniverseID,
		Likelihood:      in.Likelihood,
		Impact:          in.Impact,
		Weight:          in.Weight,
		Score:           ComputeScore(in.Likelihood, in.Impact, in.Weight),
		ResidualScore:   in.ResidualScore,
		Evidence:        evidence,
		AssessedBy:      actor,
		CreatedAt:       now,
	}, nil
}

// Level buckets a score on the 0-25 scale
func Level(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(15)):
		return "high"
	case score.GreaterThanOrEqual(decimal.NewFromInt(8)):
		return "medium"
	default:
		return "low"
	}
}
