// Package schema builds the simplified table definitions cdcsync uses to
// create observed source tables and their replicated targets.
package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Column is a descriptive, simplified version of a column definition.
type Column struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	ShardKey   bool
}

// CreateSQL returns the column clause for a CREATE TABLE statement.
func (c Column) CreateSQL() string {
	null := "NOT NULL"
	if c.Nullable {
		null = "NULL"
	}
	if c.PrimaryKey {
		return fmt.Sprintf("%s %s %s PRIMARY KEY", c.Name, c.SQLType, null)
	}
	return fmt.Sprintf("%s %s %s", c.Name, c.SQLType, null)
}

// TableType selects the storage engine for a table.
type TableType uint8

const (
	Rowstore TableType = iota
	Columnstore
)

func (t TableType) String() string {
	switch t {
	case Rowstore:
		return "rowstore"
	case Columnstore:
		return "columnstore"
	default:
		return "unknown"
	}
}

// sqlKeyword returns the CREATE TABLE keyword for the storage engine.
// Columnstore is the server default and needs no keyword.
func (t TableType) sqlKeyword() string {
	if t == Rowstore {
		return "ROWSTORE"
	}
	return ""
}

// Table is a descriptive, simplified table definition.
type Table struct {
	DB      string
	Name    string
	Type    TableType
	Columns []Column
}

// NewTable creates a table definition. An empty name gets a randomized
// one so test tables never collide.
func NewTable(name string) *Table {
	if name == "" {
		name = "table_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return &Table{Name: name, Type: Rowstore}
}

// Rowstore marks the table as a rowstore table.
func (t *Table) Rowstore() *Table {
	t.Type = Rowstore
	return t
}

// Columnstore marks the table as a columnstore table.
func (t *Table) Columnstore() *Table {
	t.Type = Columnstore
	return t
}

// Column appends a column definition.
func (t *Table) Column(col Column) *Table {
	t.Columns = append(t.Columns, col)
	return t
}

// CopyColumns appends all columns from another definition.
func (t *Table) CopyColumns(cols []Column) *Table {
	t.Columns = append(t.Columns, cols...)
	return t
}

// QualifiedName returns the table name, prefixed with its database when
// one is set.
func (t *Table) QualifiedName() string {
	if t.DB == "" {
		return t.Name
	}
	return t.DB + "." + t.Name
}

// Validate checks the definition is usable: at least one column, at most
// one primary key, no duplicate column names.
func (t *Table) Validate() error {
	if len(t.Columns) == 0 {
		return &DefinitionError{Table: t.Name, Err: ErrNoColumns}
	}

	primaries := 0
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return &DefinitionError{Table: t.Name, Err: ErrEmptyColumnName}
		}
		if c.SQLType == "" {
			return &DefinitionError{Table: t.Name, Column: c.Name, Err: ErrEmptyColumnType}
		}
		if seen[c.Name] {
			return &DefinitionError{Table: t.Name, Column: c.Name, Err: ErrDuplicateColumn}
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			primaries++
		}
	}
	if primaries > 1 {
		return &DefinitionError{Table: t.Name, Err: ErrMultiplePrimaryKeys}
	}
	return nil
}

// CreateSQL returns the CREATE TABLE statement for this definition.
func (t *Table) CreateSQL() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	clauses := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		clauses = append(clauses, c.CreateSQL())
	}

	var shardKeys []string
	for _, c := range t.Columns {
		if c.ShardKey {
			shardKeys = append(shardKeys, c.Name)
		}
	}
	if len(shardKeys) > 0 {
		clauses = append(clauses, fmt.Sprintf("SHARD KEY (%s)", strings.Join(shardKeys, ", ")))
	}

	keyword := t.Type.sqlKeyword()
	if keyword != "" {
		keyword += " "
	}
	return fmt.Sprintf("CREATE %sTABLE %s (%s)", keyword, t.QualifiedName(), strings.Join(clauses, ", ")), nil
}

// DropSQL returns the DROP TABLE statement for this definition.
func (t *Table) DropSQL() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", t.QualifiedName()), nil
}
