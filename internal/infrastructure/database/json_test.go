package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
)

func TestJSONText_SelectionHashSurvivesStorage(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 123_000_000, time.UTC)

	tests := []struct {
		name     string
		criteria map[string]any
		stored   string
	}{
		{"small exponent", map[string]any{"threshold": 1e-7}, `{"threshold":1e-7}`},
		{"large exponent", map[string]any{"threshold": 1e21}, `{"threshold":1e+21}`},
		{"plain decimal", map[string]any{"account": "5100", "threshold": 2500.75}, `{"account":"5100","threshold":2500.75}`},
		{"nested", map[string]any{"range": map[string]any{"min": 0.000001, "max": 1e22}}, `{"range":{"max":1e+22,"min":0.000001}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := sampling.Params{
				Method:          sampling.MethodRandom,
				PopulationSize:  100,
				SampleSize:      10,
				ConfidenceLevel: 95,
				PrecisionRate:   5,
				Criteria:        tt.criteria,
			}
			want, err := sampling.ComputeSelectionHash(params, at)
			require.NoError(t, err)

			text, err := encodeJSONText(tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, text)

			var decoded map[string]any
			require.NoError(t, decodeJSONNumbers([]byte(text), &decoded))
			params.Criteria = decoded
			got, err := sampling.ComputeSelectionHash(params, at)
			require.NoError(t, err)
			assert.Equal(t, want.String(), got.String())
		})
	}
}

func TestJSONText_AuditChainSurvivesStorage(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	actor := uuid.New()

	first, err := audit.NewEntry(audit.ActionRiskAssessed, audit.EntityRisk, uuid.New(), actor,
		map[string]any{"score": 1e-7, "weight": 1e21}, at)
	require.NoError(t, err)
	require.NoError(t, first.Seal(nil))
	second, err := audit.NewEntry(audit.ActionPlanApproved, audit.EntityPlan, uuid.New(), actor, nil, at)
	require.NoError(t, err)
	require.NoError(t, second.Seal(first))

	for _, e := range []*audit.Entry{first, second} {
		text, err := encodeJSONText(e.Details)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, decodeJSONNumbers([]byte(text), &decoded))
		e.Details = decoded
	}
	assert.Empty(t, audit.VerifyChain([]*audit.Entry{first, second}))
}
