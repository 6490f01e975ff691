package sampling

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

// Item is one selected population member
type Item struct {
	Position         int              `json:"position"`
	Reference        string           `json:"ref"`
	Amount           decimal.Decimal  `json:"amount"`
	CumulativeAmount *decimal.Decimal `json:"cumulative_amount,omitempty"`
	Weight           *decimal.Decimal `json:"weight,omitempty"`
	HighRisk         bool             `json:"high_risk,omitempty"`
	Selected         bool             `json:"selected"`
}

// monetaryUnitValue is the synthetic average book value per population item
var monetaryUnitValue = decimal.NewFromInt(1000)

// GenerateItems produces the operational item list for a sample.
func GenerateItems(method Method, populationSize, sampleSize int, rng *rand.Rand) ([]Item, error) {
	if sampleSize < 0 || populationSize < 0 {
		return nil, errors.NewInvalidInputError("INVALID_SAMPLE_SIZE", "الأحجام يجب ألا تكون سالبة")
	}
	if sampleSize == 0 {
		return []Item{}, nil
	}
	if populationSize == 0 {
		return nil, errors.NewInvalidInputError("EMPTY_POPULATION", "لا يمكن سحب عينة من مجتمع فارغ")
	}
	if sampleSize > populationSize {
		return nil, errors.NewInvalidInputError("SAMPLE_EXCEEDS_POPULATION", "حجم العينة أكبر من حجم المجتمع")
	}

	switch method {
	case MethodRandom:
		return randomItems(populationSize, sampleSize, rng), nil
	case MethodJudgment:
		return judgmentItems(populationSize, sampleSize, rng), nil
	case MethodMonetary:
		return monetaryItems(populationSize, sampleSize, rng), nil
	default:
		_, err := ParseMethod(string(method))
		return nil, err
	}
}

func randomItems(populationSize, sampleSize int, rng *rand.Rand) []Item {
	positions := distinctPositions(populationSize, sampleSize, rng)
	items := make([]Item, len(positions))
	for i, pos := range positions {
		items[i] = Item{
			Position:  pos,
			Reference: fmt.Sprintf("RND-%06d", pos),
			Amount:    decimal.New(int64(rng.IntN(990000)+10000), -2), // 100.00 .. 9,999.99
			Selected:  true,
		}
	}
	return items
}

// judgmentItems models auditor-selected high-value items, largest first.
func judgmentItems(populationSize, sampleSize int, rng *rand.Rand) []Item {
	positions := distinctPositions(populationSize, sampleSize, rng)
	items := make([]Item, len(positions))
	for i, pos := range positions {
		items[i] = Item{
			Position:  pos,
			Reference: fmt.Sprintf("JDG-%06d", pos),
			Amount:    decimal.New(int64(rng.IntN(45000000)+5000000), -2), // 50,000.00 .. 499,999.99
			HighRisk:  true,
			Selected:  true,
		}
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		return b.Amount.Cmp(a.Amount)
	})
	return items
}

// monetaryItems performs systematic monetary-unit selection over a synthetic
// book value: a random start inside the first interval, then one hit per
// interval, so cumulative amounts strictly increase.
func monetaryItems(populationSize, sampleSize int, rng *rand.Rand) []Item {
	bookValue := monetaryUnitValue.Mul(decimal.NewFromInt(int64(populationSize)))
	interval := bookValue.Div(decimal.NewFromInt(int64(sampleSize))).Round(2)
	start := interval.Mul(decimal.NewFromFloat(rng.Float64())).Round(2)
	weight := interval.Div(bookValue).Round(6)

	items := make([]Item, sampleSize)
	for k := 0; k < sampleSize; k++ {
		point := start.Add(interval.Mul(decimal.NewFromInt(int64(k))))
		pos := int(point.Div(monetaryUnitValue).IntPart()) + 1
		if pos > populationSize {
			pos = populationSize
		}
		cumulative := point
		w := weight
		items[k] = Item{
			Position:         pos,
			Reference:        fmt.Sprintf("MUS-%06d", pos),
			Amount:           decimal.New(int64(rng.IntN(99900)+100), 0),
			CumulativeAmount: &cumulative,
			Weight:           &w,
			Selected:         true,
		}
	}
	return items
}

// distinctPositions draws k distinct 1-based positions from [1, n] using
// Floyd's algorithm and returns them ascending.
func distinctPositions(n, k int, rng *rand.Rand) []int {
	chosen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k + 1; j <= n; j++ {
		t := rng.IntN(j) + 1
		if _, dup := chosen[t]; dup {
			t = j
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
