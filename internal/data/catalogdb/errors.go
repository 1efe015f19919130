package catalogdb

import (
	"errors"
	"fmt"
)

// StoreError is a relational read or write failure. Writes that return it
// have already been rolled back.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("catalog store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*StoreError); ok {
		return se
	}
	return &StoreError{Op: op, Err: err}
}

var errEmptyISBN = errors.New("empty isbn")
