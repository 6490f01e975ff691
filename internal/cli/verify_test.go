package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/memory"
	"github.com/davidleathers/qaudit-backend/internal/service/planning"
	"github.com/davidleathers/qaudit-backend/internal/service/sampling"
	"github.com/davidleathers/qaudit-backend/internal/testutil"
)

type seeded struct {
	backend  *Backend
	planID   uuid.UUID
	sampleID uuid.UUID
}

func seedBackend(t *testing.T) *seeded {
	t.Helper()
	ctx := testutil.TestContext(t)
	store := memory.New()
	logger := zaptest.NewLogger(t)
	actor := uuid.New()

	plans, err := planning.NewService(store, store, store, logger, planning.Config{})
	require.NoError(t, err)
	samples, err := sampling.NewService(store, store, store, logger, sampling.Config{})
	require.NoError(t, err)

	au, err := plans.CreateAuditUniverse(ctx, planning.CreateAuditUniverseRequest{Code: "FIN01", Name: "المالية", Category: "Department"}, actor)
	require.NoError(t, err)
	p, err := plans.CreatePlan(ctx, planning.CreatePlanRequest{FiscalYear: 2025, Title: "الخطة السنوية"}, actor)
	require.NoError(t, err)
	_, err = plans.AddItem(ctx, p.ID, plan.ItemInput{
		AuditUniverseID: au.ID,
		Type:            "financial",
		Priority:        "عالية",
		DeliverableType: "تقرير",
		RiskScore:       testutil.Ptr(8.5),
	}, actor)
	require.NoError(t, err)
	_, err = plans.Approve(ctx, p.ID, actor)
	require.NoError(t, err)
	_, err = plans.Baseline(ctx, p.ID, actor)
	require.NoError(t, err)

	s, err := samples.CreateSample(ctx, sampling.CreateSampleRequest{
		TestID:         uuid.New(),
		Method:         "random",
		PopulationSize: 100,
		SampleSize:     10,
	}, actor)
	require.NoError(t, err)

	return &seeded{
		backend:  &Backend{Plans: plans, Samples: samples, Audit: store},
		planID:   p.ID,
		sampleID: s.ID,
	}
}

func run(t *testing.T, b *Backend, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(func(context.Context, *RootOptions) (*Backend, error) { return b, nil })
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testutil.TestContext(t))
	return out.String(), err
}

func TestVerify_Passes(t *testing.T) {
	s := seedBackend(t)

	out, err := run(t, s.backend, "verify", "baseline", s.planID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "of plan "+s.planID.String()+": valid")
	assert.Contains(t, out, "items: 1")

	out, err = run(t, s.backend, "verify", "sample", s.sampleID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "sample "+s.sampleID.String()+": valid")

	out, err = run(t, s.backend, "verify", "audit-chain")
	require.NoError(t, err)
	assert.Contains(t, out, "audit chain: 6 entries, valid")
}

func TestVerify_JSONOutput(t *testing.T) {
	s := seedBackend(t)

	out, err := run(t, s.backend, "--format", "json", "verify", "audit-chain")
	require.NoError(t, err)

	var got struct {
		Status string      `json:"status"`
		Data   chainReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 6, got.Data.Entries)
	assert.True(t, got.Data.Valid)
	assert.Empty(t, got.Data.Breaks)
}

type tamperedLog struct {
	AuditLog
	mutate func([]*audit.Entry)
}

func (l tamperedLog) AuditEntries(ctx context.Context) ([]*audit.Entry, error) {
	entries, err := l.AuditLog.AuditEntries(ctx)
	if err == nil {
		l.mutate(entries)
	}
	return entries, err
}

func TestVerifyAuditChain_ReportsBreaks(t *testing.T) {
	s := seedBackend(t)
	s.backend.Audit = tamperedLog{AuditLog: s.backend.Audit, mutate: func(entries []*audit.Entry) {
		entries[2].Details = map[string]any{"title": "edited"}
	}}

	out, err := run(t, s.backend, "verify", "audit-chain")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INVALID")
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "hash mismatch")
}

type brokenBaseline struct{}

func (brokenBaseline) VerifyBaseline(_ context.Context, planID uuid.UUID) (*plan.Verification, error) {
	return &plan.Verification{PlanID: planID, BaselineID: uuid.New(), HashMatches: false, Valid: false}, nil
}

func TestVerifyBaseline_MismatchFails(t *testing.T) {
	s := seedBackend(t)
	s.backend.Plans = brokenBaseline{}

	out, err := run(t, s.backend, "--format", "json", "verify", "baseline", s.planID.String())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"status": "failed"`)
}

func TestVerify_CommandErrors(t *testing.T) {
	s := seedBackend(t)

	tests := []struct {
		name string
		args []string
	}{
		{"malformed plan id", []string{"verify", "baseline", "not-a-uuid"}},
		{"unknown sample", []string{"verify", "sample", uuid.NewString()}},
		{"unknown plan", []string{"verify", "baseline", uuid.NewString()}},
		{"bad format", []string{"--format", "yaml", "verify", "audit-chain"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, s.backend, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestVerify_OpenFailure(t *testing.T) {
	boom := stderrors.New("connection refused")
	cmd := NewRootCommand(func(context.Context, *RootOptions) (*Backend, error) { return nil, boom })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"verify", "audit-chain"})

	err := cmd.Execute()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_PassesFlagsToOpener(t *testing.T) {
	var got RootOptions
	cmd := NewRootCommand(func(_ context.Context, opts *RootOptions) (*Backend, error) {
		got = *opts
		return &Backend{Audit: memory.New()}, nil
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", "/etc/qaudit.yaml", "--database-url", "postgres://x/qaudit", "verify", "audit-chain"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/etc/qaudit.yaml", got.ConfigPath)
	assert.Equal(t, "postgres://x/qaudit", got.DatabaseURL)
	assert.Equal(t, "text", got.Format)
}
