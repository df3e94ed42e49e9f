package schema

import (
	"context"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/postgres"
	atlasschema "ariga.io/atlas/sql/schema"

	"github.com/go-jsonapi/server/pkg/common"
)

// formatColumnType renders an atlas generic type as PostgreSQL DDL syntax.
func formatColumnType(t atlasschema.Type) (string, error) {
	return postgres.FormatType(t)
}

// atlasType maps a compiled field to the generic atlas column type closest to
// it. idKind distinguishes an auto-incrementing integer id (FieldID,
// IDIntegerLike) from an opaque string id (uuid/ulid); unmapped kinds (blob,
// array, file) fall back to a text column rather than failing installation,
// since those are application-level concerns with no single canonical SQL
// representation.
func atlasType(f *FieldDescriptor, idKind IDKind) atlasschema.Type {
	switch f.Type {
	case FieldNumber:
		return &atlasschema.DecimalType{T: "numeric", Precision: 20, Scale: 6}
	case FieldBoolean:
		return &atlasschema.BoolType{T: "boolean"}
	case FieldDate:
		return &atlasschema.TimeType{T: "date"}
	case FieldTime:
		return &atlasschema.TimeType{T: "time"}
	case FieldDateTime, FieldTimestamp:
		return &atlasschema.TimeType{T: "timestamptz"}
	case FieldJSON:
		return &atlasschema.JSONType{T: "jsonb"}
	case FieldID:
		if idKind == IDIntegerLike {
			return &atlasschema.IntegerType{T: "bigint"}
		}
		if f.MaxLength > 0 {
			return &atlasschema.StringType{T: "varchar", Size: f.MaxLength}
		}
		return &atlasschema.StringType{T: "uuid"}
	default:
		if f.MaxLength > 0 {
			return &atlasschema.StringType{T: "varchar", Size: f.MaxLength}
		}
		return &atlasschema.StringType{T: "text"}
	}
}

// BuildTable projects a compiled resource descriptor into the generic atlas
// schema model (§4.1 "the compiler may request table creation/alteration
// from the storage adapter"). The result is dialect-neutral; CreateTableSQL
// renders it against a concrete driver.
func BuildTable(desc *ResourceDescriptor) *atlasschema.Table {
	t := atlasschema.NewTable(desc.Table)
	for _, name := range desc.FieldOrder {
		f := desc.Fields[name]
		if f.Virtual {
			continue
		}
		col := f.Column
		if col == "" {
			col = f.Name
		}
		c := atlasschema.NewColumn(col).
			SetType(atlasType(f, desc.IDKind)).
			SetNull(f.Nullable && !f.Required && name != desc.IDField)
		t.AddColumns(c)
	}
	for _, rel := range desc.Relationships {
		if rel.Kind != BelongsTo || rel.ForeignKey == "" {
			continue
		}
		if hasColumn(t, rel.ForeignKey) {
			continue
		}
		t.AddColumns(atlasschema.NewColumn(rel.ForeignKey).
			SetType(atlasType(&FieldDescriptor{Type: FieldID}, IDOpaqueString)).
			SetNull(true))
	}
	return t
}

func hasColumn(t *atlasschema.Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement for desc
// against the PostgreSQL dialect, using atlas's type formatter so the
// generic atlasType mapping above turns into driver-correct column syntax
// instead of a hand-rolled dialect switch.
func CreateTableSQL(desc *ResourceDescriptor) (string, error) {
	t := BuildTable(desc)

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		rendered, err := formatColumnType(c.Type.Type)
		if err != nil {
			return "", fmt.Errorf("format column %q: %w", c.Name, err)
		}
		def := fmt.Sprintf("%s %s", common.QuoteIdent(c.Name), rendered)
		if !c.Type.Null {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	if desc.IDField != "" {
		idCol := desc.IDField
		if f, ok := desc.Fields[desc.IDField]; ok && f.Column != "" {
			idCol = f.Column
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", common.QuoteIdent(idCol)))
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", common.QuoteIdent(t.Name), strings.Join(cols, ",\n\t"))
	return stmt, nil
}

// EnsureTable issues CreateTableSQL's statement through db.Exec, letting the
// storage adapter provision a resource's table at install time instead of
// requiring every deployment to hand-author migrations for the canonical
// storage mode (§4.1).
func EnsureTable(ctx context.Context, db common.Database, desc *ResourceDescriptor) error {
	if db.DriverName() != "postgres" {
		return nil
	}
	stmt, err := CreateTableSQL(desc)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, stmt)
	return err
}
