package orm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a query expects exactly one row but finds none.
	ErrNotFound = errors.New("orm: not found")

	// ErrUnknownEntity is returned when no entity is registered under a name.
	ErrUnknownEntity = errors.New("orm: unknown entity")

	// ErrUnknownConnection is returned when a connection key has no configuration.
	ErrUnknownConnection = errors.New("orm: missing database information key")

	// ErrNotConnected is returned when the handler holds no open connection.
	ErrNotConnected = errors.New("orm: database connection not established")

	// ErrNoPrimaryKey is returned by Update and Delete when the entity's
	// primary key is the zero value.
	ErrNoPrimaryKey = errors.New("orm: primary key value is required")

	// ErrUnsafeDelete is returned by DeleteWhere when no condition is given.
	// Use Truncate to empty a table.
	ErrUnsafeDelete = errors.New("orm: DeleteWhere without a condition is not allowed")
)

// ConnectionError reports a failure to select or open a named connection.
type ConnectionError struct {
	Key string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("orm: connection %q: %v", e.Key, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ModelError reports a failed Model operation.
// Query is the SQL text that was being prepared or executed, if any.
type ModelError struct {
	Op     string
	Entity string
	Query  string
	Err    error
}

func (e *ModelError) Error() string {
	msg := "orm: " + e.Op
	if e.Entity != "" {
		msg += " " + e.Entity
	}
	if e.Query != "" {
		msg += fmt.Sprintf(" [%s]", e.Query)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ModelError) Unwrap() error { return e.Err }
