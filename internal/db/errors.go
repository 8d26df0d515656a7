package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransactionConflict indicates concurrent writers touched the same records.
	// The watcher treats it as transient and writes again on the next change.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates no snapshot matched the query.
	ErrNotFound = errors.New("snapshot not found")

	// ErrSchema indicates a write was rejected by the table schema.
	ErrSchema = errors.New("schema violation")
)

// wrapQueryError maps a SurrealDB QueryError onto the sentinels above. Other errors
// are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if !errors.As(err, &queryErr) {
		return err
	}

	msg := queryErr.Message
	switch {
	case strings.Contains(msg, "Transaction conflict"):
		return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
	case strings.Contains(msg, "Found") && strings.Contains(msg, "but expected"):
		return fmt.Errorf("%w: %s", ErrSchema, msg)
	}
	return err
}
