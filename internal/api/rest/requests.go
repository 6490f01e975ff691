package rest

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedBody = errors.NewBadRequestError("MALFORMED_BODY", "صيغة الطلب غير صحيحة")
	errInvalidID     = errors.NewBadRequestError("INVALID_ID", "المعرف غير صالح")
	errInvalidDate   = errors.NewInvalidInputError("INVALID_DATE", "صيغة التاريخ يجب أن تكون YYYY-MM-DD")
	errInvalidQuery  = errors.NewInvalidInputError("INVALID_QUERY", "معاملات الاستعلام غير صالحة")
	errRouteNotFound = errors.NewNotFoundError("ROUTE_NOT_FOUND", "المسار المطلوب غير موجود")
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst. An empty body is accepted only when
// optional is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if optional && stderrors.Is(err, io.EOF) {
			return nil
		}
		return errMalformedBody.WithCause(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			fields := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return errors.NewInvalidInputError("VALIDATION_FAILED", "بيانات الطلب غير صالحة").WithDetails(fields)
		}
		return errMalformedBody.WithCause(err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

// actorRequest carries the optional created_by of mutating requests
type actorRequest struct {
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
}

type createPlanRequest struct {
	FiscalYear int    `json:"fiscal_year" validate:"required,min=2000,max=2100"`
	Version    string `json:"version" validate:"max=32"`
	Title      string `json:"title" validate:"required,max=255"`
	actorRequest
}

type auditUniverseRequest struct {
	Code     string     `json:"code" validate:"required,max=32"`
	Name     string     `json:"name" validate:"required,max=255"`
	Category string     `json:"category" validate:"max=64"`
	Owner    *uuid.UUID `json:"owner,omitempty"`
	actorRequest
}

type itemRequest struct {
	AuditUniverseID uuid.UUID `json:"audit_universe_id"`
	Type            string    `json:"type" validate:"required,max=64"`
	Priority        string    `json:"priority" validate:"max=32"`
	ScopeBrief      string    `json:"scope_brief" validate:"max=4000"`
	EffortDays      *int      `json:"effort_days,omitempty" validate:"omitempty,min=0"`
	PeriodStart     *string   `json:"period_start,omitempty"`
	PeriodEnd       *string   `json:"period_end,omitempty"`
	DeliverableType string    `json:"deliverable_type" validate:"max=64"`
	RiskScore       *float64  `json:"risk_score,omitempty"`
	actorRequest
}

func (req itemRequest) input() (plan.ItemInput, error) {
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		return plan.ItemInput{}, err
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		return plan.ItemInput{}, err
	}
	return plan.ItemInput{
		AuditUniverseID: req.AuditUniverseID,
		Type:            req.Type,
		Priority:        req.Priority,
		ScopeBrief:      req.ScopeBrief,
		EffortDays:      req.EffortDays,
		PeriodStart:     start,
		PeriodEnd:       end,
		DeliverableType: req.DeliverableType,
		RiskScore:       req.RiskScore,
	}, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(plan.DateLayout, *s)
	if err != nil {
		return nil, errInvalidDate
	}
	return &t, nil
}

type riskRequest struct {
	AuditUniverseID uuid.UUID        `json:"au_id"`
	Likelihood      int              `json:"likelihood"`
	Impact          int              `json:"impact"`
	Weight          decimal.Decimal  `json:"weight"`
	ResidualScore   *decimal.Decimal `json:"residual_score,omitempty"`
	Evidence        *string          `json:"evidence,omitempty"`
	actorRequest
}

type sampleRequest struct {
	TestID          uuid.UUID      `json:"testId"`
	Method          string         `json:"method"`
	PopulationSize  int            `json:"populationSize"`
	SampleSize      int            `json:"sampleSize"`
	ConfidenceLevel *float64       `json:"confidenceLevel,omitempty"`
	PrecisionRate   *float64       `json:"precisionRate,omitempty"`
	Criteria        map[string]any `json:"criteria,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
	actorRequest
}
