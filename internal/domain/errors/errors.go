package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an error for the HTTP boundary
type ErrorType string

const (
	ErrorTypeInvalidInput       ErrorType = "invalid_input"
	ErrorTypeBadRequest         ErrorType = "bad_request"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypePreconditionFailed ErrorType = "precondition_failed"
	ErrorTypeAlreadyBaselined   ErrorType = "already_baselined"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeInternal           ErrorType = "internal"
)

// AppError represents a structured application error. Message is the
// Arabic text shown to the user as-is.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel AppErrors work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// NewInvalidInputError reports an out-of-range or malformed field.
func NewInvalidInputError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidInput,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewBadRequestError reports a structurally valid but semantically empty request.
func NewBadRequestError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBadRequest,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewPreconditionFailedError reports a violated state-machine guard.
func NewPreconditionFailedError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypePreconditionFailed,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewAlreadyBaselinedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAlreadyBaselined,
		Code:       "ALREADY_BASELINED",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: http.StatusInternalServerError,
	}
}

// Predefined errors used across the core
var (
	ErrPlanNotFound          = NewNotFoundError("PLAN_NOT_FOUND", "الخطة غير موجودة")
	ErrPlanItemNotFound      = NewNotFoundError("PLAN_ITEM_NOT_FOUND", "بند الخطة غير موجود")
	ErrAuditUniverseNotFound = NewNotFoundError("AUDIT_UNIVERSE_NOT_FOUND", "عنصر عالم التدقيق غير موجود")
	ErrBaselineNotFound      = NewNotFoundError("BASELINE_NOT_FOUND", "لا يوجد خط أساس لهذه الخطة")
	ErrSampleNotFound        = NewNotFoundError("SAMPLE_NOT_FOUND", "العينة غير موجودة")

	ErrPlanAlreadyBaselined = NewAlreadyBaselinedError("تم اعتماد خط الأساس لهذه الخطة مسبقاً")
	ErrPlanNotApproved      = NewPreconditionFailedError("PLAN_NOT_APPROVED", "يجب اعتماد الخطة قبل تجميدها")
	ErrPlanNotBaselined     = NewPreconditionFailedError("PLAN_NOT_BASELINED", "يجب تجميد الخطة قبل توليد المهام")
	ErrPlanFrozen           = NewPreconditionFailedError("PLAN_FROZEN", "لا يمكن تعديل بنود خطة مجمدة")
	ErrInvalidTransition    = NewPreconditionFailedError("INVALID_TRANSITION", "انتقال غير مسموح لحالة الخطة")

	ErrYearAlreadyBaselined  = NewConflictError("YEAR_ALREADY_BASELINED", "توجد خطة مجمدة أخرى لنفس السنة المالية")
	ErrEngagementsGenerated  = NewConflictError("ENGAGEMENTS_ALREADY_GENERATED", "تم توليد المهام لهذه الخطة مسبقاً")
	ErrGenerationInProgress  = NewConflictError("GENERATION_IN_PROGRESS", "عملية توليد المهام قيد التنفيذ لهذه الخطة")
	ErrDuplicateRecord       = NewConflictError("DUPLICATE_RECORD", "السجل موجود مسبقاً")

	ErrNoPlanItems    = NewBadRequestError("NO_PLAN_ITEMS", "لا توجد بنود في الخطة")
	ErrActorRequired  = NewInvalidInputError("ACTOR_REQUIRED", "يجب تحديد المستخدم المنفذ")
	ErrBaselineTamper = &AppError{
		Type:       ErrorTypeInternal,
		Code:       "BASELINE_TAMPERED",
		Message:    "فشل التحقق من سلامة خط الأساس",
		StatusCode: http.StatusInternalServerError,
	}
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsNotFound reports whether err is a NotFound AppError
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// TypeOf returns the AppError type of err, or internal for foreign errors
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
