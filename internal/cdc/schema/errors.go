package schema

import (
	"errors"
	"fmt"
)

var (
	ErrNoColumns           = errors.New("schema: table has no columns")
	ErrEmptyColumnName     = errors.New("schema: column name cannot be empty")
	ErrEmptyColumnType     = errors.New("schema: column type cannot be empty")
	ErrDuplicateColumn     = errors.New("schema: duplicate column name")
	ErrMultiplePrimaryKeys = errors.New("schema: table can only have one primary key")
	ErrUnknownSQLType      = errors.New("schema: unknown sql type")
)

// DefinitionError reports an invalid table definition.
type DefinitionError struct {
	Table  string
	Column string
	Err    error
}

func (e *DefinitionError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("invalid definition for table %s, column %s: %v", e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("invalid definition for table %s: %v", e.Table, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }
