package schema

import (
	"fmt"
	"strings"
)

// SQLType is one fixture entry in the type catalog: a SQL column type
// together with the literal values correctness tests write and expect
// back from the change stream.
type SQLType struct {
	// Type is the full SQL type, including any parameters.
	Type string

	// Initial and Updated are the values written before and after the
	// update step of a fixture run.
	Initial any
	Updated any

	// Deleted is the value projected for a non-nullable column of this
	// type in a Delete record's old image.
	Deleted any

	// Quoted indicates the literal must be single-quoted in SQL.
	Quoted bool
}

// Name returns the bare type name without parameters.
func (s SQLType) Name() string {
	return strings.SplitN(s.Type, "(", 2)[0]
}

// Literal renders v as a SQL literal for this type.
func (s SQLType) Literal(v any) string {
	if s.Quoted {
		return fmt.Sprintf("'%v'", v)
	}
	return fmt.Sprintf("%v", v)
}

// InitialLiteral renders the initial value as a SQL literal.
func (s SQLType) InitialLiteral() string { return s.Literal(s.Initial) }

// UpdatedLiteral renders the updated value as a SQL literal.
func (s SQLType) UpdatedLiteral() string { return s.Literal(s.Updated) }

// BasicSQLTypes is the fixture catalog for common column types.
var BasicSQLTypes = []SQLType{
	{Type: "tinyint", Initial: 42, Updated: 12, Deleted: 0},
	{Type: "smallint", Initial: 43, Updated: 13, Deleted: 0},
	{Type: "mediumint", Initial: 44, Updated: 14, Deleted: 0},
	{Type: "int", Initial: 45, Updated: 15, Deleted: 0},
	{Type: "integer", Initial: 46, Updated: 16, Deleted: 0},
	{Type: "bigint", Initial: 47, Updated: 17, Deleted: 0},
	{Type: "double", Initial: 48.0, Updated: 18.0, Deleted: 0.0},
	{Type: "real", Initial: 49.0, Updated: 19.0, Deleted: 0.0},
	{Type: "float", Initial: 50.0, Updated: 20.0, Deleted: 0.0},
	{Type: "decimal(10, 5)", Initial: 51.0, Updated: 21.0, Deleted: 0.0},
	{Type: "char(4)", Initial: "a", Updated: "b", Deleted: "", Quoted: true},
	{Type: "varchar(50)", Initial: "Hello world", Updated: "Hello world BIS", Deleted: "", Quoted: true},
	{Type: "tinytext", Initial: "Hello ttworld", Updated: "Hello ttworld BIS", Deleted: "", Quoted: true},
	{Type: "mediumtext", Initial: "Hello mtworld", Updated: "Hello mtworld BIS", Deleted: "", Quoted: true},
	{Type: "text", Initial: "Hello tworld", Updated: "Hello tworld BIS", Deleted: "", Quoted: true},
	{Type: "longtext", Initial: "Hello ltworld", Updated: "Hello ltworld BIS", Deleted: "", Quoted: true},
	{Type: "date", Initial: "2019-01-01", Updated: "2020-01-01", Quoted: true},
	{Type: "datetime", Initial: "2019-01-01 05:09", Updated: "2020-01-01 05:08", Quoted: true},
	{Type: "timestamp", Initial: "2019-01-01 05:10", Updated: "2020-01-01 05:11", Quoted: true},
	{Type: "json", Initial: `{"a":1}`, Updated: `{"b":2}`, Quoted: true},
}

// FindSQLType looks a type up in the catalog by bare name.
func FindSQLType(name string) (SQLType, error) {
	for _, t := range BasicSQLTypes {
		if t.Name() == name {
			return t, nil
		}
	}
	return SQLType{}, fmt.Errorf("%w: %s", ErrUnknownSQLType, name)
}
