// Package errors defines the JSON error envelope returned by every HTTP endpoint.
package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeInternal    ErrorCode = "INTERNAL_ERROR"
	CodeValidation  ErrorCode = "VALIDATION_ERROR"
	CodeNotFound    ErrorCode = "NOT_FOUND"
	CodeBadRequest  ErrorCode = "BAD_REQUEST"
	CodeRateLimit   ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeConflict    ErrorCode = "CONFLICT"
	CodeTooLarge    ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeUnsupported ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
)

var statusByCode = map[ErrorCode]int{
	CodeValidation:  http.StatusBadRequest,
	CodeBadRequest:  http.StatusBadRequest,
	CodeNotFound:    http.StatusNotFound,
	CodeRateLimit:   http.StatusTooManyRequests,
	CodeConflict:    http.StatusConflict,
	CodeTooLarge:    http.StatusRequestEntityTooLarge,
	CodeUnsupported: http.StatusUnsupportedMediaType,
}

func statusFor(code ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError carries a client-safe message. Cause is logged but never serialized.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return Wrap(nil, code, message)
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusFor(code),
		Cause:      err,
		Timestamp:  time.Now().UTC(),
	}
}

func Internal(message string) *AppError { return New(CodeInternal, message) }
func InternalWrap(err error, message string) *AppError { return Wrap(err, CodeInternal, message) }

func Validation(message string) *AppError { return New(CodeValidation, message) }
func ValidationWrap(err error, message string) *AppError { return Wrap(err, CodeValidation, message) }

func BadRequest(message string) *AppError { return New(CodeBadRequest, message) }
func BadRequestWrap(err error, message string) *AppError { return Wrap(err, CodeBadRequest, message) }

func NotFound(message string) *AppError { return New(CodeNotFound, message) }
func RateLimit(message string) *AppError { return New(CodeRateLimit, message) }
func Conflict(message string) *AppError { return New(CodeConflict, message) }
func TooLarge(message string) *AppError { return New(CodeTooLarge, message) }
func Unsupported(message string) *AppError { return New(CodeUnsupported, message) }

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

// WriteError writes err as a JSON envelope. Errors with no AppError in their chain are
// reported as internal errors without exposing their text. 4xx responses log at warn.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, requestID string) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = InternalWrap(err, "An unexpected error occurred")
	}
	appErr.RequestID = requestID

	level := slog.LevelError
	if appErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)

	if encodeErr := writeJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr}); encodeErr != nil {
		logger.Error("failed to encode error response",
			"encode_error", encodeErr,
			"request_id", requestID,
		)
	}
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessWithHeaders(w, data, nil)
}

func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	if err := writeJSON(w, http.StatusOK, SuccessResponse{Data: data, Success: true}); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// writeJSON encodes before touching the response so an encoding failure can still
// become a clean 500.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
