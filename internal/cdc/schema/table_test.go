package schema_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/julianstephens/cdcsync/internal/cdc/schema"
)

func TestNewTable_RandomizesEmptyName(t *testing.T) {
	a := schema.NewTable("")
	b := schema.NewTable("")
	if a.Name == "" || b.Name == "" {
		t.Fatal("expected generated names")
	}
	if a.Name == b.Name {
		t.Errorf("expected distinct generated names, both %q", a.Name)
	}
	if !strings.HasPrefix(a.Name, "table_") {
		t.Errorf("unexpected generated name %q", a.Name)
	}
}

func TestValidate_TableDriven(t *testing.T) {
	testCases := []struct {
		name     string
		build    func() *schema.Table
		sentinel error
	}{
		{
			name: "Valid",
			build: func() *schema.Table {
				return schema.NewTable("t").
					Column(schema.Column{Name: "id", SQLType: "bigint", PrimaryKey: true}).
					Column(schema.Column{Name: "v", SQLType: "text", Nullable: true})
			},
		},
		{
			name:     "NoColumns",
			build:    func() *schema.Table { return schema.NewTable("t") },
			sentinel: schema.ErrNoColumns,
		},
		{
			name: "EmptyColumnName",
			build: func() *schema.Table {
				return schema.NewTable("t").Column(schema.Column{SQLType: "int"})
			},
			sentinel: schema.ErrEmptyColumnName,
		},
		{
			name: "EmptyColumnType",
			build: func() *schema.Table {
				return schema.NewTable("t").Column(schema.Column{Name: "v"})
			},
			sentinel: schema.ErrEmptyColumnType,
		},
		{
			name: "DuplicateColumn",
			build: func() *schema.Table {
				return schema.NewTable("t").
					Column(schema.Column{Name: "v", SQLType: "int"}).
					Column(schema.Column{Name: "v", SQLType: "text"})
			},
			sentinel: schema.ErrDuplicateColumn,
		},
		{
			name: "TwoPrimaryKeys",
			build: func() *schema.Table {
				return schema.NewTable("t").
					Column(schema.Column{Name: "a", SQLType: "int", PrimaryKey: true}).
					Column(schema.Column{Name: "b", SQLType: "int", PrimaryKey: true})
			},
			sentinel: schema.ErrMultiplePrimaryKeys,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.build().Validate()
			if tc.sentinel == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected %v, got %v", tc.sentinel, err)
			}
			var de *schema.DefinitionError
			if !errors.As(err, &de) {
				t.Errorf("expected *DefinitionError, got %T", err)
			}
		})
	}
}

func TestCreateSQL_TableDriven(t *testing.T) {
	testCases := []struct {
		name  string
		build func() *schema.Table
		want  string
	}{
		{
			name: "RowstoreWithShardKey",
			build: func() *schema.Table {
				return schema.NewTable("orders").
					Column(schema.Column{Name: "id", SQLType: "bigint", ShardKey: true}).
					Column(schema.Column{Name: "note", SQLType: "text", Nullable: true})
			},
			want: "CREATE ROWSTORE TABLE orders (id bigint NOT NULL, note text NULL, SHARD KEY (id))",
		},
		{
			name: "ColumnstoreNoKeyword",
			build: func() *schema.Table {
				return schema.NewTable("orders").Columnstore().
					Column(schema.Column{Name: "id", SQLType: "bigint"})
			},
			want: "CREATE TABLE orders (id bigint NOT NULL)",
		},
		{
			name: "PrimaryKeyAndQualifiedName",
			build: func() *schema.Table {
				tbl := schema.NewTable("orders").
					Column(schema.Column{Name: "id", SQLType: "bigint", PrimaryKey: true})
				tbl.DB = "shop"
				return tbl
			},
			want: "CREATE ROWSTORE TABLE shop.orders (id bigint NOT NULL PRIMARY KEY)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.build().CreateSQL()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("CreateSQL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDropSQL(t *testing.T) {
	tbl := schema.NewTable("orders").Column(schema.Column{Name: "id", SQLType: "bigint"})
	got, err := tbl.DropSQL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "DROP TABLE IF EXISTS orders" {
		t.Errorf("DropSQL() = %q", got)
	}

	if _, err := schema.NewTable("empty").DropSQL(); !errors.Is(err, schema.ErrNoColumns) {
		t.Errorf("expected validation to run, got %v", err)
	}
}

func TestCopyColumns(t *testing.T) {
	src := []schema.Column{
		{Name: "a", SQLType: "int"},
		{Name: "b", SQLType: "text"},
	}
	tbl := schema.NewTable("t").
		Column(schema.Column{Name: "internal_id", SQLType: "bigint"}).
		CopyColumns(src)

	if len(tbl.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(tbl.Columns))
	}
	if tbl.Columns[0].Name != "internal_id" || tbl.Columns[2].Name != "b" {
		t.Error("column order not preserved")
	}
}

func TestSQLTypeCatalog(t *testing.T) {
	typ, err := schema.FindSQLType("varchar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ.Type != "varchar(50)" {
		t.Errorf("unexpected catalog entry %q", typ.Type)
	}
	if typ.InitialLiteral() != "'Hello world'" {
		t.Errorf("quoted literal rendering broken: %q", typ.InitialLiteral())
	}

	intType, err := schema.FindSQLType("decimal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intType.Name() != "decimal" {
		t.Errorf("Name() = %q", intType.Name())
	}
	if intType.UpdatedLiteral() != "21" {
		t.Errorf("unquoted literal rendering broken: %q", intType.UpdatedLiteral())
	}

	if _, err := schema.FindSQLType("geography"); !errors.Is(err, schema.ErrUnknownSQLType) {
		t.Errorf("expected ErrUnknownSQLType, got %v", err)
	}
}
