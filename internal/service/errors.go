package service

import (
	"errors"
	"fmt"
	"strings"

	"kasirledger/backend/internal/validate"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInsufficientPayment    = errors.New("paid amount is less than total")
	ErrNumberAllocationFailed = errors.New("failed to allocate transaction number")
	ErrHeaderWriteFailed      = errors.New("failed to write document header")
	ErrItemsWriteFailed       = errors.New("failed to write document items")
	ErrCompensationFailed     = errors.New("compensating write failed, manual reconciliation required")
	ErrReturnQuotaExceeded    = errors.New("return quantity exceeds remaining quota")
	ErrInvalidState           = errors.New("document is not editable in its current status")
	ErrDuplicateProduct       = errors.New("product already counted in this session")
	ErrEmptyDocument          = errors.New("document has no items")
	ErrTotalsWriteFailed      = errors.New("failed to update document total")
)

// FinalizeError reports a failed header/items write. When the items write
// fails the header is deleted once; CompensationErr holds the delete failure.
type FinalizeError struct {
	Stage           error
	Number          string
	HeaderID        string
	Err             error
	CompensationErr error
}

func (e *FinalizeError) Error() string {
	msg := fmt.Sprintf("%v (number %s): %v", e.Stage, e.Number, e.Err)
	if e.CompensationErr != nil {
		msg += fmt.Sprintf("; header %s left behind: %v", e.HeaderID, e.CompensationErr)
	}
	return msg
}

func (e *FinalizeError) Unwrap() []error {
	errs := []error{e.Stage, e.Err}
	if e.CompensationErr != nil {
		errs = append(errs, ErrCompensationFailed, e.CompensationErr)
	}
	return errs
}

// Compensated reports whether no orphan header remains.
func (e *FinalizeError) Compensated() bool {
	return e.CompensationErr == nil
}

type QuotaError struct {
	ProductID   string
	ProductName string
	Requested   int
	Remaining   int
}

func (e *QuotaError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("return quantity for %s exceeds remaining quota: requested %d, remaining %d", name, e.Requested, e.Remaining)
}

func (e *QuotaError) Unwrap() error { return ErrReturnQuotaExceeded }

type StateError struct {
	Entity string
	ID     string
	Status string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s is %s and can no longer be changed", e.Entity, e.ID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

type DuplicateProductError struct {
	SessionID string
	ProductID string
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product %s already counted in session %s", e.ProductID, e.SessionID)
}

func (e *DuplicateProductError) Unwrap() error { return ErrDuplicateProduct }

type ValidationError struct {
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		part := f.Field + " " + f.Tag
		if f.Param != "" {
			part += "=" + f.Param
		}
		parts = append(parts, strings.TrimSpace(part))
	}
	return fmt.Sprintf("%v: %s", ErrInvalidInput, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalidField(field string, tag string) error {
	return &ValidationError{Fields: []validate.FieldError{{Field: field, Tag: tag}}}
}

func validateRequest(req interface{}) error {
	if fields := validate.Struct(req); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
