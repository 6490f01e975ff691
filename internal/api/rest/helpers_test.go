package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/qaudit-backend/internal/infrastructure/export"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/memory"
	"github.com/davidleathers/qaudit-backend/internal/service/planning"
	risksvc "github.com/davidleathers/qaudit-backend/internal/service/risk"
	samplingsvc "github.com/davidleathers/qaudit-backend/internal/service/sampling"
)

type testAPI struct {
	handler http.Handler
	store   *memory.Store
	actor   uuid.UUID
}

func newServices(t *testing.T, store *memory.Store, logger *zap.Logger) Services {
	t.Helper()
	plans, err := planning.NewService(store, store, store, logger, planning.Config{},
		planning.WithExporter(export.NewExcelExporter()))
	require.NoError(t, err)
	samples, err := samplingsvc.NewService(store, store, store, logger, samplingsvc.Config{})
	require.NoError(t, err)
	assessor, err := risksvc.NewService(store, store, store, logger)
	require.NoError(t, err)
	return Services{Plans: plans, Samples: samples, Risk: assessor}
}

func newTestAPI(t *testing.T, cfg Config, opts ...Option) *testAPI {
	t.Helper()
	return newTestAPIWithLogger(t, zaptest.NewLogger(t), cfg, opts...)
}

func newTestAPIWithLogger(t *testing.T, logger *zap.Logger, cfg Config, opts ...Option) *testAPI {
	t.Helper()
	store := memory.New()
	h, err := NewRouter(newServices(t, store, logger), cfg, logger, opts...)
	require.NoError(t, err)
	return &testAPI{handler: h, store: store, actor: uuid.New()}
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (a *testAPI) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return a.serve(newRequest(t, method, path, body))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return data
}

// seedBaselinedPlan creates an audit-universe entity and a plan with one
// item per audit type, then approves and baselines it
func (a *testAPI) seedBaselinedPlan(t *testing.T, year int, types ...string) string {
	t.Helper()
	planID := a.seedApprovedPlan(t, year, types...)
	rec := a.do(t, http.MethodPost, "/plan/"+planID+"/baseline", map[string]any{"created_by": a.actor})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return planID
}

func (a *testAPI) seedApprovedPlan(t *testing.T, year int, types ...string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/audit-universe", map[string]any{
		"code":       uuid.NewString()[:8],
		"name":       "الإدارة المالية",
		"category":   "Department",
		"created_by": a.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	auID := dataOf(t, rec)["id"].(string)

	rec = a.do(t, http.MethodPost, "/plans", map[string]any{
		"fiscal_year": year,
		"title":       "الخطة السنوية",
		"created_by":  a.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	planID := dataOf(t, rec)["id"].(string)

	for i, typ := range types {
		rec = a.do(t, http.MethodPost, "/plan/"+planID+"/items", map[string]any{
			"audit_universe_id": auID,
			"type":              typ,
			"priority":          "عالية",
			"risk_score":        float64(10 - i),
			"period_start":      "2025-01-01",
			"period_end":        "2025-03-31",
			"created_by":        a.actor,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodPost, "/plan/"+planID+"/approve", map[string]any{"created_by": a.actor})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return planID
}
