package engine

import "fmt"

// ValidationError marks a malformed input field on a single row or request.
// It is reported to the caller and never aborts a batch.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError marks a failed save of a decided transaction. Like
// validation errors it is per-row: the caller reports it and moves on.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting transaction: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StoreQueryError marks a failed store lookup or aggregate during rule
// evaluation. It aborts that transaction's evaluation; the engine never
// substitutes a default decision for a failed query.
type StoreQueryError struct {
	Op  string
	Err error
}

func (e *StoreQueryError) Error() string {
	return fmt.Sprintf("store query %s: %v", e.Op, e.Err)
}

func (e *StoreQueryError) Unwrap() error { return e.Err }
