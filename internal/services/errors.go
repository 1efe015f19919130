package services

import (
	"errors"
	"fmt"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreError is a relational or vector I/O failure.
type StoreError = catalogdb.StoreError

// ExternalServiceError is a failure of the classifier, crawler, metadata
// provider or embedding provider.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// DriftError marks a vector record whose isbn has no relational book.
type DriftError struct {
	ISBN string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("catalog drift: vector record %q has no relational book", e.ISBN)
}

func external(service, op string, err error) error {
	if err == nil {
		return nil
	}
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return err
	}
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

func vectorStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: "vector_" + op, Err: err}
}
