package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

const internalErrorMessage = "حدث خطأ داخلي، يرجى المحاولة لاحقاً"

// errorResponse is the body of every failed request
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// dataResponse wraps read and create results
type dataResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataResponse{OK: true, Data: data})
}

// writeError maps err onto the error taxonomy. Internal errors are logged
// and replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) || appErr.StatusCode >= http.StatusInternalServerError {
		requestLogger(r.Context(), logger).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: internalErrorMessage,
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	writeJSON(w, appErr.StatusCode, errorResponse{Error: appErr.Message, Code: appErr.Code})
}
