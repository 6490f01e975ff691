package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/domain/risk"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/memory"
	"github.com/davidleathers/qaudit-backend/internal/testutil"
)

var fixedNow = time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store, *plan.AuditUniverse) {
	t.Helper()
	store := memory.New()
	svc, err := NewService(store, store, store, zaptest.NewLogger(t), WithClock(testutil.FixedClock(fixedNow)))
	require.NoError(t, err)

	au, err := plan.NewAuditUniverse("PRC", "المشتريات", "Department", nil, fixedNow)
	require.NoError(t, err)
	require.NoError(t, store.CreateAuditUniverse(context.Background(), au))
	return svc, store, au
}

func TestService_AssessRisk(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, store, au := setup(t)
	actor := uuid.New()

	a, err := svc.AssessRisk(ctx, risk.Input{
		AuditUniverseID: au.ID,
		Likelihood:      3,
		Impact:          4,
		Weight:          decimal.NewFromInt(50),
		Evidence:        testutil.Ptr("  تقرير المراجعة الداخلية  "),
	}, actor)
	require.NoError(t, err)

	assert.True(t, a.Score.Equal(decimal.NewFromInt(6)), "score %s", a.Score)
	assert.Equal(t, "6", a.Score.String())
	assert.Equal(t, "تقرير المراجعة الداخلية", *a.Evidence)
	assert.Equal(t, actor, a.AssessedBy)
	assert.True(t, fixedNow.Equal(a.CreatedAt))

	history, err := svc.History(ctx, au.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].ID)

	entries, err := store.AuditEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRiskAssessed, entries[0].Action)
	assert.Equal(t, "6", entries[0].Details["score"])
}

func TestService_AssessRiskErrors(t *testing.T) {
	ctx := context.Background()
	svc, store, au := setup(t)
	actor := uuid.New()

	tests := []struct {
		name   string
		in     risk.Input
		actor  uuid.UUID
		target error
		status int
	}{
		{
			name:   "unknown entity",
			in:     risk.Input{AuditUniverseID: uuid.New(), Likelihood: 1, Impact: 1, Weight: decimal.NewFromInt(10)},
			actor:  actor,
			target: errors.ErrAuditUniverseNotFound,
			status: 404,
		},
		{
			name:   "likelihood out of range",
			in:     risk.Input{AuditUniverseID: au.ID, Likelihood: 6, Impact: 1, Weight: decimal.NewFromInt(10)},
			actor:  actor,
			status: 400,
		},
		{
			name:   "weight out of range",
			in:     risk.Input{AuditUniverseID: au.ID, Likelihood: 2, Impact: 2, Weight: decimal.NewFromInt(101)},
			actor:  actor,
			status: 400,
		},
		{
			name:   "missing actor",
			in:     risk.Input{AuditUniverseID: au.ID, Likelihood: 2, Impact: 2, Weight: decimal.NewFromInt(10)},
			actor:  uuid.Nil,
			target: errors.ErrActorRequired,
			status: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AssessRisk(ctx, tt.in, tt.actor)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, tt.status, errors.GetStatusCode(err))
		})
	}

	history, err := store.ListAssessments(ctx, au.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.History(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrAuditUniverseNotFound)
}
