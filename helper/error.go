package helper

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// Error kinds shared by all stages. Callers check them with errors.Is.
var (
	ErrDatastoreUnavailable = errors.New("datastore unavailable")
	ErrInvalidInput         = errors.New("invalid input")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrMalformedQuery       = errors.New("malformed query")
)

// Error wraps an error with the operation that failed.
type Error struct {
	Operation string
	Err       error
}

// NewError wraps err with the failing operation. A nil err stays nil.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Operation: operation, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReferentialIntegrityError lists the entity ids a relationship batch
// referenced that are not present in the store.
type ReferentialIntegrityError struct {
	MissingIDs []string
}

// NewReferentialIntegrityError returns the error with sorted, distinct ids.
func NewReferentialIntegrityError(missing []string) *ReferentialIntegrityError {
	seen := make(map[string]struct{}, len(missing))
	ids := make([]string, 0, len(missing))
	for _, id := range missing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &ReferentialIntegrityError{MissingIDs: ids}
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%v: %d missing entities [%s]", ErrReferentialIntegrity, len(e.MissingIDs), strings.Join(e.MissingIDs, ", "))
}

func (e *ReferentialIntegrityError) Unwrap() error {
	return ErrReferentialIntegrity
}

// IsUnavailable reports whether err means the datastore cannot be reached,
// as opposed to a statement failing for a single item.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatastoreUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return pqErr.Code.Class() == "08" || strings.HasPrefix(code, "57P")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// database/sql does not export its closed pool error.
	return strings.Contains(err.Error(), "sql: database is closed")
}

// ClassifyError wraps err with the operation and, if the datastore is
// unreachable, marks it with ErrDatastoreUnavailable.
func ClassifyError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(operation, err)
	}
	if IsUnavailable(err) && !errors.Is(err, ErrDatastoreUnavailable) {
		return NewError(operation, fmt.Errorf("%w: %w", ErrDatastoreUnavailable, err))
	}
	return NewError(operation, err)
}
