package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists every rule a submission violated. No store access happens when it is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + strings.Join(e.Problems, "; ")
}

// StoreErrorKind classifies backing store failures.
type StoreErrorKind int

const (
	// KindConnection covers unreachable stores and bad credentials. Fatal at startup.
	KindConnection StoreErrorKind = iota + 1
	// KindWrite covers failed appends after validation passed.
	KindWrite
	// KindRead covers failed listings.
	KindRead
)

func (k StoreErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	default:
		return "unknown"
	}
}

var (
	// ErrStoreConnection matches StoreErrors of KindConnection.
	ErrStoreConnection = errors.New("backing store unavailable")
	// ErrStoreWrite matches StoreErrors of KindWrite.
	ErrStoreWrite = errors.New("backing store write failed")
	// ErrStoreRead matches StoreErrors of KindRead.
	ErrStoreRead = errors.New("backing store read failed")
)

// StoreError wraps a backend failure with the operation and an optional remediation hint.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Hint string
	Err  error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Op, e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (hint: %s)", e.Hint)
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStoreConnection:
		return e.Kind == KindConnection
	case ErrStoreWrite:
		return e.Kind == KindWrite
	case ErrStoreRead:
		return e.Kind == KindRead
	}
	return false
}

func connectionError(op string, err error, hint string) error {
	return &StoreError{Kind: KindConnection, Op: op, Err: err, Hint: hint}
}

func writeError(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: KindWrite, Op: op, Err: err}
}

func readError(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: KindRead, Op: op, Err: err}
}

// Hint extracts the remediation hint carried by err, if any.
func Hint(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Hint
	}
	return ""
}
