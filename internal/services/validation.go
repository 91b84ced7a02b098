package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/db"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validator collects field errors in the order they are checked.
type validator struct {
	errs []FieldError
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.errs = append(v.errs, FieldError{Field: field, Message: message})
	}
}

func (v *validator) failed(field string) bool {
	for _, e := range v.errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

// err returns a ValidationError whose message is the first failure and whose
// details list every failure, or nil.
func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationCode(apperr.CodeValidation, v.errs[0].Message, v.errs)
}

// validID reports whether id can name a stored record.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// wrapStoreErr classifies an unexpected repository error. Application errors,
// timeouts and cancellations pass through unchanged.
func wrapStoreErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if db.IsTimeout(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Internal(message, err)
}
