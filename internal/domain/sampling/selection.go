package sampling

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/values"
)

// Method is the sample selection protocol
type Method string

const (
	MethodRandom   Method = "random"
	MethodJudgment Method = "judgment"
	MethodMonetary Method = "monetary"
)

const (
	DefaultConfidenceLevel = 95.0
	DefaultPrecisionRate   = 5.0

	// TimestampLayout is the hashed timestamp format (UTC, millisecond precision)
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// ParseMethod validates a method string
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodRandom, MethodJudgment, MethodMonetary:
		return m, nil
	default:
		return "", errors.NewInvalidInputError("INVALID_SAMPLING_METHOD",
			fmt.Sprintf("طريقة العينة غير مدعومة: %s", s))
	}
}

func (m Method) String() string {
	return string(m)
}

// Range errors shared with RecommendSampleSize and the HTTP boundary
var (
	ErrInvalidConfidenceLevel = errors.NewInvalidInputError("INVALID_CONFIDENCE_LEVEL", "مستوى الثقة يجب أن يكون بين 0 و 100")
	ErrInvalidPrecisionRate   = errors.NewInvalidInputError("INVALID_PRECISION_RATE", "نسبة الدقة يجب أن تكون بين 0 و 100")
)

// Params are the selection parameters certified by the selection hash
type Params struct {
	Method          Method
	PopulationSize  int
	SampleSize      int
	ConfidenceLevel float64
	PrecisionRate   float64
	Criteria        map[string]any
}

// ApplyDefaults fills optional parameters. Defaults are applied before
// hashing so the stored values are exactly the hashed ones.
func (p *Params) ApplyDefaults() {
	if p.ConfidenceLevel == 0 {
		p.ConfidenceLevel = DefaultConfidenceLevel
	}
	if p.PrecisionRate == 0 {
		p.PrecisionRate = DefaultPrecisionRate
	}
	if p.Criteria == nil {
		p.Criteria = map[string]any{}
	}
}

// Validate checks ranges. A sample larger than its population is rejected.
func (p Params) Validate() error {
	if _, err := ParseMethod(string(p.Method)); err != nil {
		return err
	}
	if p.PopulationSize < 0 {
		return errors.NewInvalidInputError("INVALID_POPULATION_SIZE", "حجم المجتمع يجب ألا يكون سالباً")
	}
	if p.SampleSize < 0 {
		return errors.NewInvalidInputError("INVALID_SAMPLE_SIZE", "حجم العينة يجب ألا يكون سالباً")
	}
	if p.PopulationSize == 0 && p.SampleSize > 0 {
		return errors.NewInvalidInputError("EMPTY_POPULATION", "لا يمكن سحب عينة من مجتمع فارغ")
	}
	if p.SampleSize > p.PopulationSize {
		return errors.NewInvalidInputError("SAMPLE_EXCEEDS_POPULATION", "حجم العينة أكبر من حجم المجتمع")
	}
	if p.ConfidenceLevel <= 0 || p.ConfidenceLevel >= 100 {
		return ErrInvalidConfidenceLevel
	}
	if p.PrecisionRate <= 0 || p.PrecisionRate >= 100 {
		return ErrInvalidPrecisionRate
	}
	return nil
}

// selectionPayload fixes the hashed key order
type selectionPayload struct {
	Method          Method         `json:"method"`
	PopulationSize  int            `json:"populationSize"`
	SampleSize      int            `json:"sampleSize"`
	ConfidenceLevel float64        `json:"confidenceLevel"`
	PrecisionRate   float64        `json:"precisionRate"`
	Criteria        map[string]any `json:"criteria"`
	Timestamp       string         `json:"timestamp"`
}

// FormatTimestamp renders the hashed timestamp
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SelectionBytes returns the exact bytes hashed for the given parameters.
func SelectionBytes(p Params, at time.Time) ([]byte, error) {
	criteria := p.Criteria
	if criteria == nil {
		criteria = map[string]any{}
	}
	return values.MarshalCompact(selectionPayload{
		Method:          p.Method,
		PopulationSize:  p.PopulationSize,
		SampleSize:      p.SampleSize,
		ConfidenceLevel: p.ConfidenceLevel,
		PrecisionRate:   p.PrecisionRate,
		Criteria:        criteria,
		Timestamp:       FormatTimestamp(at),
	})
}

// ComputeSelectionHash certifies the selection parameters at time at.
// The generated items are not part of the hash.
func ComputeSelectionHash(p Params, at time.Time) (values.HashValue, error) {
	data, err := SelectionBytes(p, at)
	if err != nil {
		return values.HashValue{}, err
	}
	return values.ComputeHashValue(data), nil
}
