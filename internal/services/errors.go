package services

import (
	"errors"
	"fmt"

	"rentdesk/internal/domain"
	"rentdesk/internal/validate"
)

// StoreError wraps a failed read or write against the document store. The
// caller may retry with the same input.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// storeErr leaves domain outcomes alone and wraps everything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var verrs *validate.Errors
	var serr *StoreError
	switch {
	case errors.As(err, &verrs), errors.As(err, &serr):
		return err
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNegativeQuantity):
		return err
	}
	return &StoreError{Op: op, Err: err}
}
