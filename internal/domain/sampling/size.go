package sampling

import (
	"math"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

// DefaultExpectedErrorRate is the most conservative attribute error rate (percent)
const DefaultExpectedErrorRate = 50.0

// ZScore returns the two-sided standard normal critical value for a
// confidence level given in percent.
func ZScore(confidenceLevel float64) float64 {
	target := 1 - (1-confidenceLevel/100)/2
	lo, hi := 0.0, 10.0
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if normalCDF(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// RecommendSampleSize computes an attribute-sampling size using the normal
// approximation n0 = z²·p(1-p)/e² with finite population correction.
// All rates are percentages.
func RecommendSampleSize(populationSize int, confidenceLevel, precisionRate, expectedErrorRate float64) (int, error) {
	if populationSize < 0 {
		return 0, errors.NewInvalidInputError("INVALID_POPULATION_SIZE", "حجم المجتمع يجب ألا يكون سالباً")
	}
	if confidenceLevel == 0 {
		confidenceLevel = DefaultConfidenceLevel
	}
	if precisionRate == 0 {
		precisionRate = DefaultPrecisionRate
	}
	if expectedErrorRate == 0 {
		expectedErrorRate = DefaultExpectedErrorRate
	}
	if confidenceLevel <= 0 || confidenceLevel >= 100 {
		return 0, ErrInvalidConfidenceLevel
	}
	if precisionRate <= 0 || precisionRate >= 100 {
		return 0, ErrInvalidPrecisionRate
	}
	if expectedErrorRate < 0 || expectedErrorRate > 100 {
		return 0, errors.NewInvalidInputError("INVALID_ERROR_RATE", "نسبة الخطأ المتوقعة يجب أن تكون بين 0 و 100")
	}
	if populationSize == 0 {
		return 0, nil
	}

	z := ZScore(confidenceLevel)
	p := expectedErrorRate / 100
	e := precisionRate / 100

	n0 := z * z * p * (1 - p) / (e * e)
	n := n0 / (1 + (n0-1)/float64(populationSize))

	size := int(math.Ceil(n))
	if size > populationSize {
		size = populationSize
	}
	if size < 1 {
		size = 1
	}
	return size, nil
}
