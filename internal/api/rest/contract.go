package rest

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPISpec returns the embedded API contract
func OpenAPISpec() []byte {
	return openAPISpec
}

// ContractValidator checks requests and responses against the OpenAPI contract
type ContractValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewContractValidator loads and validates the embedded contract
func NewContractValidator() (*ContractValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	return &ContractValidator{doc: doc, router: router}, nil
}

func (cv *ContractValidator) find(req *http.Request) (*routers.Route, map[string]string, error) {
	route, params, err := cv.router.FindRoute(req)
	if err != nil {
		return nil, nil, fmt.Errorf("no matching route found: %w", err)
	}
	return route, params, nil
}

func validationOptions() *openapi3filter.Options {
	return &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		MultiError:         true,
	}
}

// ValidateRequest validates req. The body is restored for the next reader.
func (cv *ContractValidator) ValidateRequest(ctx context.Context, req *http.Request) error {
	route, params, err := cv.find(req)
	if err != nil {
		return err
	}
	return openapi3filter.ValidateRequest(ctx, &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options:    validationOptions(),
	})
}

// ValidateResponse validates a recorded response to req
func (cv *ContractValidator) ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error {
	route, params, err := cv.find(req)
	if err != nil {
		return err
	}
	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
			Options:    validationOptions(),
		},
		Status:  status,
		Header:  header,
		Options: validationOptions(),
	}
	input.SetBodyBytes(body)
	return openapi3filter.ValidateResponse(ctx, input)
}

var errContractViolation = errors.NewInvalidInputError("CONTRACT_VIOLATION", "الطلب لا يطابق عقد الواجهة")

// ContractMiddleware rejects requests that do not match the contract.
// Paths the contract does not describe pass through to the router.
func ContractMiddleware(cv *ContractValidator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := cv.ValidateRequest(r.Context(), r)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if stderrors.Is(err, routers.ErrPathNotFound) || stderrors.Is(err, routers.ErrMethodNotAllowed) {
				next.ServeHTTP(w, r)
				return
			}
			requestLogger(r.Context(), logger).Info("contract violation",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeError(w, r, logger, errContractViolation)
		})
	}
}
