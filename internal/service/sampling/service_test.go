package sampling

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/sampling"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/memory"
	"github.com/davidleathers/qaudit-backend/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 15, 123456789, time.UTC)

func newTestService(t *testing.T, cfg Config) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := NewService(store, store, store, zaptest.NewLogger(t), cfg,
		WithClock(testutil.FixedClock(fixedNow)),
		WithRand(func() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }),
	)
	require.NoError(t, err)
	return svc, store
}

func TestNewService_NilDependencies(t *testing.T) {
	store := memory.New()
	logger := zaptest.NewLogger(t)

	_, err := NewService(nil, store, store, logger, Config{})
	assert.Error(t, err)
	_, err = NewService(store, nil, store, logger, Config{})
	assert.Error(t, err)
	_, err = NewService(store, store, nil, logger, Config{})
	assert.Error(t, err)
	_, err = NewService(store, store, store, nil, Config{})
	assert.Error(t, err)
}

func TestService_CreateSample(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, store := newTestService(t, Config{})
	actor, testID := uuid.New(), uuid.New()

	s, err := svc.CreateSample(ctx, CreateSampleRequest{
		TestID:         testID,
		Method:         "random",
		PopulationSize: 100,
		SampleSize:     30,
		Criteria:       map[string]any{"account": "5100"},
	}, actor)
	require.NoError(t, err)

	assert.Equal(t, sampling.MethodRandom, s.Method)
	assert.Len(t, s.Items, 30)
	assert.Equal(t, 95.0, s.ConfidenceLevel)
	assert.Equal(t, 5.0, s.PrecisionRate)
	assert.True(t, fixedNow.Truncate(time.Millisecond).Equal(s.SelectedAt))

	expected, err := sampling.ComputeSelectionHash(s.Params(), s.SelectedAt)
	require.NoError(t, err)
	assert.Equal(t, expected, s.SelectionHash)

	stored, err := svc.GetSample(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.SelectionHash, stored.SelectionHash)

	entries, err := store.AuditEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionSampleCreated, entries[0].Action)
	assert.Equal(t, s.ID, entries[0].EntityID)
}

func TestService_CreateSampleUsesConfiguredDefaults(t *testing.T) {
	svc, _ := newTestService(t, Config{DefaultConfidenceLevel: 90, DefaultPrecisionRate: 10})

	s, err := svc.CreateSample(context.Background(), CreateSampleRequest{
		TestID:          uuid.New(),
		Method:          "judgment",
		PopulationSize:  50,
		SampleSize:      5,
		ConfidenceLevel: 99,
	}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 99.0, s.ConfidenceLevel)
	assert.Equal(t, 10.0, s.PrecisionRate)
}

func TestService_CreateSampleValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateSampleRequest
		code string
	}{
		{
			name: "unknown method",
			req:  CreateSampleRequest{TestID: uuid.New(), Method: "stratified", PopulationSize: 10, SampleSize: 1},
			code: "INVALID_SAMPLING_METHOD",
		},
		{
			name: "sample larger than population",
			req:  CreateSampleRequest{TestID: uuid.New(), Method: "random", PopulationSize: 10, SampleSize: 11},
			code: "SAMPLE_EXCEEDS_POPULATION",
		},
		{
			name: "missing test",
			req:  CreateSampleRequest{Method: "random", PopulationSize: 10, SampleSize: 1},
			code: "TEST_ID_REQUIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, Config{})
			_, err := svc.CreateSample(context.Background(), tt.req, uuid.New())
			require.Error(t, err)

			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, 400, appErr.StatusCode)

			entries, err := store.AuditEntries(context.Background())
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestService_VerifySample(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, Config{})

	s, err := svc.CreateSample(ctx, CreateSampleRequest{
		TestID:         uuid.New(),
		Method:         "monetary",
		PopulationSize: 500,
		SampleSize:     20,
	}, uuid.New())
	require.NoError(t, err)

	v, err := svc.VerifySample(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, s.SelectionHash, v.ComputedHash)

	// a stored sample whose parameters were edited no longer verifies
	tampered := *s
	tampered.ID = uuid.New()
	tampered.SampleSize = 25
	require.NoError(t, store.CreateSample(ctx, &tampered))

	v, err = svc.VerifySample(ctx, tampered.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.NotEqual(t, v.StoredHash, v.ComputedHash)

	_, err = svc.VerifySample(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrSampleNotFound)
}

func TestService_Recommend(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	n, err := svc.Recommend(1000, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 278, n)

	_, err = svc.Recommend(-1, 0, 0, 0)
	assert.Error(t, err)
}
