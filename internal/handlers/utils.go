package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/internal/services"
)

const (
	maxBodyBytes = 1 << 20

	genericErrorMessage = "Internal server error"
)

// SuccessResponse is the envelope of every successful response.
type SuccessResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the envelope of every failed response.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, SuccessResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// writeError converts err into the error envelope. Internal detail is logged
// and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := classify(err)

	body := ErrorBody{
		Message:   appErr.Message,
		Code:      appErr.Code,
		Details:   appErr.Details,
		Timestamp: time.Now().UTC(),
	}
	if !appErr.Exposed() {
		body.Message = genericErrorMessage
		body.Details = nil
	}

	if logger != nil {
		fields := []zap.Field{
			zap.String("code", appErr.Code),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		}
		switch {
		case !appErr.Exposed():
			logger.Error("request failed", fields...)
		case appErr.Kind == apperr.KindTimeout:
			logger.Warn("request timed out", fields...)
		}
	}

	writeJSON(w, appErr.Status(), ErrorResponse{Error: body})
}

func classify(err error) *apperr.Error {
	if appErr, ok := apperr.As(err); ok {
		return appErr
	}
	var timeout *db.TimeoutError
	if errors.As(err, &timeout) {
		return apperr.Timeout(map[string]any{
			"operation":  timeout.Operation,
			"timeout_ms": timeout.Timeout.Milliseconds(),
		}, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Timeout(map[string]any{"operation": "request"}, err)
	}
	return apperr.Internal(genericErrorMessage, err)
}

// decodeJSON decodes exactly one JSON object into dst, rejecting unknown
// fields. Type mismatches are validation errors on the offending field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.ValidationCode(apperr.CodeValidation,
				fmt.Sprintf("Field %s must be %s", typeErr.Field, jsonTypeName(typeErr.Type)),
				[]services.FieldError{{Field: typeErr.Field, Message: "wrong type"}})
		}
		return invalidJSON(err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidJSON(errors.New("request body must contain a single JSON object"))
	}
	return nil
}

func jsonTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	default:
		return "a " + t.Kind().String()
	}
}

func invalidJSON(cause error) error {
	message := "Request body is not valid JSON"
	if cause != nil && strings.HasPrefix(cause.Error(), "json: unknown field") {
		message = "Request body contains an unknown field"
	}
	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Code:    apperr.CodeInvalidJSON,
		Message: message,
		Err:     cause,
	}
}

// missingFields reports which named fields were absent from the request.
type missingFields []string

func (m *missingFields) require(present bool, field string) {
	if !present {
		*m = append(*m, field)
	}
}

func (m missingFields) err() error {
	if len(m) == 0 {
		return nil
	}
	return apperr.ValidationCode(apperr.CodeMissingFields,
		"Missing required fields: "+strings.Join(m, ", "),
		map[string]any{"missing": []string(m)})
}

func valueOr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// NotFound answers unknown routes with the error envelope.
func NotFound(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, logger, apperr.NotFound("Route not found"))
	}
}
