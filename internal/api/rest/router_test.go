package rest

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/cache"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/export"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/memory"
)

func TestRouter_PlanLifecycle(t *testing.T) {
	api := newTestAPI(t, Config{})
	planID := api.seedApprovedPlan(t, 2025, "Financial", "IT")

	rec := api.do(t, http.MethodGet, "/plan/"+planID+"/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["data"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Financial", items[0].(map[string]any)["type"])

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/baseline", map[string]any{"created_by": api.actor})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, string(plan.StatusBaselined), body["status"])
	assert.Len(t, body["hash"], 64)
	assert.Equal(t, float64(2), body["item_count"])

	rec = api.do(t, http.MethodGet, "/plan/"+planID+"/baseline/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, dataOf(t, rec)["valid"])

	rec = api.do(t, http.MethodGet, "/plan/"+planID+"/baseline/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="baseline-2025.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/generate-engagements", map[string]any{"created_by": api.actor})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, float64(2), body["created_count"])
	assert.Equal(t, float64(10), body["pbc_count"])
	assert.Len(t, body["engagement_ids"], 2)

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/generate-engagements", map[string]any{"created_by": api.actor})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ENGAGEMENTS_ALREADY_GENERATED", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/baseline", map[string]any{"created_by": api.actor})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ALREADY_BASELINED", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/complete", map[string]any{"created_by": api.actor})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(plan.StatusCompleted), dataOf(t, rec)["status"])
}

func TestRouter_FrozenPlanRejectsItemChanges(t *testing.T) {
	api := newTestAPI(t, Config{})
	planID := api.seedBaselinedPlan(t, 2025, "Financial")

	rec := api.do(t, http.MethodGet, "/plan/"+planID+"/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decodeBody(t, rec)["data"].([]any)[0].(map[string]any)
	itemID := item["id"].(string)

	rec = api.do(t, http.MethodPut, "/plan/"+planID+"/items/"+itemID, map[string]any{
		"audit_universe_id": item["audit_universe_id"],
		"type":              "IT",
		"created_by":        api.actor,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PLAN_FROZEN", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodDelete, "/plan/"+planID+"/items/"+itemID, map[string]any{"created_by": api.actor})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ItemEditing(t *testing.T) {
	api := newTestAPI(t, Config{})
	rec := api.do(t, http.MethodPost, "/audit-universe", map[string]any{
		"code": "HR", "name": "الموارد البشرية", "created_by": api.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	auID := dataOf(t, rec)["id"]

	rec = api.do(t, http.MethodPost, "/plans", map[string]any{
		"fiscal_year": 2026, "title": "خطة", "created_by": api.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	planID := dataOf(t, rec)["id"].(string)

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/items", map[string]any{
		"audit_universe_id": auID, "type": "Payroll", "created_by": api.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	itemID := dataOf(t, rec)["id"].(string)

	rec = api.do(t, http.MethodPut, "/plan/"+planID+"/items/"+itemID, map[string]any{
		"audit_universe_id": auID, "type": "Privacy", "effort_days": 12, "created_by": api.actor,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Privacy", dataOf(t, rec)["type"])
	assert.Equal(t, float64(12), dataOf(t, rec)["effort_days"])

	rec = api.do(t, http.MethodDelete, "/plan/"+planID+"/items/"+itemID, map[string]any{"created_by": api.actor})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/plan/"+planID+"/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"data":[]}`, rec.Body.String())

	rec = api.do(t, http.MethodPut, "/plan/"+planID+"/items/"+itemID, map[string]any{
		"audit_universe_id": auID, "type": "IT", "created_by": api.actor,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RequestErrors(t *testing.T) {
	api := newTestAPI(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed id", http.MethodGet, "/plan/not-a-uuid", nil, http.StatusBadRequest, "INVALID_ID"},
		{"unknown plan", http.MethodGet, "/plan/" + uuid.NewString(), nil, http.StatusNotFound, "PLAN_NOT_FOUND"},
		{"fiscal year out of range", http.MethodPost, "/plans",
			map[string]any{"fiscal_year": 1999, "title": "خطة", "created_by": uuid.New()},
			http.StatusBadRequest, "VALIDATION_FAILED"},
		{"body is not json", http.MethodPost, "/plans", "nope", http.StatusBadRequest, "MALFORMED_BODY"},
		{"missing actor", http.MethodPost, "/plans",
			map[string]any{"fiscal_year": 2025, "title": "خطة"},
			http.StatusBadRequest, "ACTOR_REQUIRED"},
		{"missing body", http.MethodPost, "/plans", nil, http.StatusBadRequest, "MALFORMED_BODY"},
		{"baseline unknown plan", http.MethodPost, "/plan/" + uuid.NewString() + "/baseline",
			map[string]any{"created_by": uuid.New()}, http.StatusNotFound, "PLAN_NOT_FOUND"},
		{"bad item date", http.MethodPost, "/plan/" + uuid.NewString() + "/items",
			map[string]any{"audit_universe_id": uuid.New(), "type": "IT", "period_start": "01/02/2025", "created_by": uuid.New()},
			http.StatusBadRequest, "INVALID_DATE"},
		{"unknown route", http.MethodGet, "/nowhere", nil, http.StatusNotFound, "ROUTE_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_BaselineRequiresApproval(t *testing.T) {
	api := newTestAPI(t, Config{})
	rec := api.do(t, http.MethodPost, "/plans", map[string]any{
		"fiscal_year": 2025, "title": "خطة", "created_by": api.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	planID := dataOf(t, rec)["id"].(string)

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/baseline", map[string]any{"created_by": api.actor})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PLAN_NOT_APPROVED", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodPost, "/plan/"+planID+"/generate-engagements", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ACTOR_REQUIRED", decodeBody(t, rec)["code"])
}

func TestRouter_Samples(t *testing.T) {
	api := newTestAPI(t, Config{})

	rec := api.do(t, http.MethodPost, "/samples", map[string]any{
		"testId":         uuid.New(),
		"method":         "random",
		"populationSize": 100,
		"sampleSize":     10,
		"criteria":       map[string]any{"account": "5100"},
		"created_by":     api.actor,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(10), body["sampleSize"])
	assert.Equal(t, "random", body["method"])
	assert.Len(t, body["hash"], 64)
	id := body["id"].(string)

	rec = api.do(t, http.MethodGet, "/samples/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sample := dataOf(t, rec)
	assert.Equal(t, body["hash"], sample["selection_hash"])
	assert.Len(t, sample["items"], 10)

	rec = api.do(t, http.MethodGet, "/samples/"+id+"/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, dataOf(t, rec)["valid"])

	rec = api.do(t, http.MethodGet, "/samples/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SAMPLE_NOT_FOUND", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodPost, "/samples", map[string]any{
		"testId": uuid.New(), "method": "random", "populationSize": 5, "sampleSize": 6, "created_by": api.actor,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/samples", map[string]any{
		"testId": uuid.New(), "method": "cluster", "populationSize": 5, "sampleSize": 2, "created_by": api.actor,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SAMPLING_METHOD", decodeBody(t, rec)["code"])
}

func TestRouter_SamplesRejectExplicitZeroRates(t *testing.T) {
	api := newTestAPI(t, Config{})

	tests := []struct {
		name  string
		field string
		code  string
	}{
		{"zero confidence", "confidenceLevel", "INVALID_CONFIDENCE_LEVEL"},
		{"zero precision", "precisionRate", "INVALID_PRECISION_RATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/samples", map[string]any{
				"testId": uuid.New(), "method": "random", "populationSize": 100, "sampleSize": 10,
				tt.field: 0, "created_by": api.actor,
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody(t, rec)["code"])
		})
	}

	rec := api.do(t, http.MethodPost, "/samples", map[string]any{
		"testId": uuid.New(), "method": "random", "populationSize": 100, "sampleSize": 10,
		"confidenceLevel": 90, "created_by": api.actor,
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/samples/recommend?population=100&confidence=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CONFIDENCE_LEVEL", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodGet, "/samples/recommend?population=100&precision=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PRECISION_RATE", decodeBody(t, rec)["code"])
}

func TestRouter_RecommendSampleSize(t *testing.T) {
	api := newTestAPI(t, Config{})

	rec := api.do(t, http.MethodGet, "/samples/recommend?population=1000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataOf(t, rec)
	assert.Equal(t, float64(1000), data["population_size"])
	assert.Greater(t, data["recommended_size"], float64(0))
	assert.LessOrEqual(t, data["recommended_size"], float64(1000))

	rec = api.do(t, http.MethodGet, "/samples/recommend", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUERY", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodGet, "/samples/recommend?population=100&confidence=150", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CONFIDENCE_LEVEL", decodeBody(t, rec)["code"])
}

func TestRouter_Risk(t *testing.T) {
	api := newTestAPI(t, Config{})
	rec := api.do(t, http.MethodPost, "/audit-universe", map[string]any{
		"code": "PROC", "name": "المشتريات", "created_by": api.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	auID := dataOf(t, rec)["id"].(string)

	rec = api.do(t, http.MethodPost, "/risk/assess", map[string]any{
		"au_id": auID, "likelihood": 3, "impact": 4, "weight": 50, "created_by": api.actor,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(6), body["score"])
	assert.Equal(t, "6", body["data"].(map[string]any)["score"])

	rec = api.do(t, http.MethodGet, "/audit-universe/"+auID+"/risk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["data"], 1)

	rec = api.do(t, http.MethodPost, "/risk/assess", map[string]any{
		"au_id": uuid.New(), "likelihood": 3, "impact": 4, "weight": 50, "created_by": api.actor,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "AUDIT_UNIVERSE_NOT_FOUND", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodPost, "/risk/assess", map[string]any{
		"likelihood": 3, "impact": 4, "weight": 50, "created_by": api.actor,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AU_REQUIRED", decodeBody(t, rec)["code"])

	rec = api.do(t, http.MethodPost, "/risk/assess", map[string]any{
		"au_id": auID, "likelihood": 6, "impact": 4, "weight": 50, "created_by": api.actor,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func signToken(t *testing.T, secret string, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRouter_BearerActor(t *testing.T) {
	const secret = "test-signing-secret"
	api := newTestAPI(t, Config{JWTSecret: secret})
	actor := uuid.New()
	body := map[string]any{"fiscal_year": 2025, "title": "خطة", "created_by": uuid.New()}

	t.Run("token subject is the actor", func(t *testing.T) {
		req := newRequest(t, http.MethodPost, "/plans", body)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, actor.String(), time.Now().Add(time.Hour)))
		rec := api.serve(req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, actor.String(), dataOf(t, rec)["created_by"])
	})

	t.Run("body actor is ignored without a token", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/plans", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other", actor.String(), time.Now().Add(time.Hour))},
		{"expired", signToken(t, secret, actor.String(), time.Now().Add(-time.Hour))},
		{"subject is not a uuid", signToken(t, secret, "auditor", time.Now().Add(time.Hour))},
		{"garbage", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, http.MethodPost, "/plans", body)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := api.serve(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeBody(t, rec)["code"])
		})
	}

	t.Run("reads stay open", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/samples/recommend?population=50", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter_RateLimit(t *testing.T) {
	t.Run("local token bucket", func(t *testing.T) {
		api := newTestAPI(t, Config{RequestsPerSecond: 1, BurstSize: 1})

		rec := api.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = api.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeBody(t, rec)["code"])
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))

		req := newRequest(t, http.MethodGet, "/health", nil)
		req.Header.Set("X-Real-IP", "203.0.113.9")
		assert.Equal(t, http.StatusOK, api.serve(req).Code)
	})

	t.Run("shared redis window", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		limiter := cache.NewRedisRateLimiter(client, zaptest.NewLogger(t))

		api := newTestAPI(t, Config{RequestsPerSecond: 2, BurstSize: 2}, WithRateLimiter(limiter))
		for i := 0; i < 2; i++ {
			require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", nil).Code)
		}
		assert.Equal(t, http.StatusTooManyRequests, api.do(t, http.MethodGet, "/health", nil).Code)
	})

	t.Run("shared limiter failure fails open", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		limiter := cache.NewRedisRateLimiter(client, zaptest.NewLogger(t))
		mr.Close()

		api := newTestAPI(t, Config{RequestsPerSecond: 1, BurstSize: 1}, WithRateLimiter(limiter))
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", nil).Code)
		}
	})
}

func TestRouter_Health(t *testing.T) {
	t.Run("pass", func(t *testing.T) {
		api := newTestAPI(t, Config{Version: "1.2.3"},
			WithHealthCheck(HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}))
		rec := api.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "pass", body["status"])
		assert.Equal(t, "1.2.3", body["version"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		api := newTestAPI(t, Config{},
			WithHealthCheck(HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}),
			WithHealthCheck(HealthCheck{Name: "redis", Check: func(context.Context) error {
				return fmt.Errorf("dial tcp: connection refused")
			}}))
		rec := api.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "pass", checks["database"].(map[string]any)["status"])
		assert.Equal(t, "fail", checks["redis"].(map[string]any)["status"])
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestRouter_ServesMetricsAndContract(t *testing.T) {
	api := newTestAPI(t, Config{})
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", nil).Code)

	rec := api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "qaudit_api_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="GET /health"`)

	rec = api.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

func TestRouter_CORS(t *testing.T) {
	api := newTestAPI(t, Config{CORSOrigins: []string{"https://audit.example.gov"}})

	req := newRequest(t, http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://audit.example.gov")
	rec := api.serve(req)
	assert.Equal(t, "https://audit.example.gov", rec.Header().Get("Access-Control-Allow-Origin"))

	req = newRequest(t, http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = api.serve(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RequestLogCarriesRoutePattern(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	api := newTestAPIWithLogger(t, zap.New(core), Config{})

	req := newRequest(t, http.MethodGet, "/plan/"+uuid.NewString(), nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := api.serve(req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET /plan/{id}", fields["route"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "req-42", fields["request_id"])
}

type failingPlans struct {
	PlanService
	err   error
	panic bool
}

func (f failingPlans) GetPlan(context.Context, uuid.UUID) (*plan.Plan, error) {
	if f.panic {
		panic("repository exploded")
	}
	return nil, f.err
}

func TestRouter_InternalErrorsAreMasked(t *testing.T) {
	logger := zaptest.NewLogger(t)
	svc := newServices(t, memory.New(), logger)

	t.Run("error", func(t *testing.T) {
		svc.Plans = failingPlans{err: fmt.Errorf("pq: connection reset by peer")}
		h, err := NewRouter(svc, Config{}, logger)
		require.NoError(t, err)
		api := &testAPI{handler: h}

		rec := api.do(t, http.MethodGet, "/plan/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, rec)["code"])
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})

	t.Run("panic", func(t *testing.T) {
		svc.Plans = failingPlans{panic: true}
		h, err := NewRouter(svc, Config{}, logger)
		require.NoError(t, err)
		api := &testAPI{handler: h}

		rec := api.do(t, http.MethodGet, "/plan/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, rec)["code"])
		assert.NotContains(t, rec.Body.String(), "exploded")
	})
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	logger := zaptest.NewLogger(t)
	_, err := NewRouter(Services{}, Config{}, logger)
	assert.Error(t, err)

	_, err = NewRouter(newServices(t, memory.New(), logger), Config{}, nil)
	assert.Error(t, err)
}
