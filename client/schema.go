package client

import (
	"context"
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/sqlite"

	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
)

// PushSchema inspects the connected database, diffs it against the shape
// described by the client's model.Schema, and applies whatever DDL changes
// are needed to converge ($pushSchema) — a direct bootstrap path, not a
// versioned migration history (see DESIGN.md for why dialect/sql/schema's
// migration-diff machinery isn't used here).
func (c *Client) PushSchema(ctx context.Context) error {
	drv, ok := c.driver.(*sql.Driver)
	if !ok {
		return fmt.Errorf("client: PushSchema requires a direct database connection, not %T", c.driver)
	}
	desired, err := desiredSchema(c.cap.Name(), c.schema)
	if err != nil {
		return err
	}

	migrateDrv, schemaName, err := atlasDriver(c.cap.Name(), atlasschema.ExecQuerier(drv.DB()))
	if err != nil {
		return err
	}
	current, err := migrateDrv.InspectSchema(ctx, schemaName, nil)
	if err != nil {
		return fmt.Errorf("client: inspecting current schema: %w", err)
	}
	changes, err := migrateDrv.SchemaDiff(current, desired)
	if err != nil {
		return fmt.Errorf("client: diffing schema: %w", err)
	}
	if len(changes) == 0 {
		return nil
	}
	if err := migrateDrv.ApplyChanges(ctx, changes); err != nil {
		return fmt.Errorf("client: applying schema changes: %w", err)
	}
	return nil
}

// atlasDriver opens the atlas migrate.Driver for capName against db, and
// reports the schema name PushSchema should inspect/diff against.
func atlasDriver(capName string, db atlasschema.ExecQuerier) (migrateDriver, string, error) {
	switch capName {
	case dialect.SQLite:
		drv, err := sqlite.Open(db)
		if err != nil {
			return nil, "", fmt.Errorf("client: opening sqlite migrate driver: %w", err)
		}
		return drv, "main", nil
	case dialect.Postgres:
		drv, err := postgres.Open(db)
		if err != nil {
			return nil, "", fmt.Errorf("client: opening postgres migrate driver: %w", err)
		}
		return drv, "public", nil
	default:
		return nil, "", fmt.Errorf("client: PushSchema has no migration driver for dialect %q", capName)
	}
}

// migrateDriver is the slice of ariga.io/atlas/sql/migrate.Driver this
// package exercises: inspect the live schema, diff it against the desired
// one, and apply the resulting changes.
type migrateDriver interface {
	InspectSchema(ctx context.Context, name string, opts *atlasschema.InspectOptions) (*atlasschema.Schema, error)
	SchemaDiff(current, desired *atlasschema.Schema) ([]atlasschema.Change, error)
	ApplyChanges(ctx context.Context, changes []atlasschema.Change) error
}

// desiredSchema builds the atlas schema.Schema describing every model's
// table, column, and primary key the way the model/* descriptors require.
func desiredSchema(capName string, s *model.Schema) (*atlasschema.Schema, error) {
	name := "main"
	if capName == dialect.Postgres {
		name = "public"
	}
	desired := atlasschema.New(name)
	for _, m := range s.Models {
		t, err := desiredTable(capName, m)
		if err != nil {
			return nil, err
		}
		desired.AddTables(t)
	}
	return desired, nil
}

func desiredTable(capName string, m *model.ModelDef) (*atlasschema.Table, error) {
	t := atlasschema.NewTable(m.Table())
	var pkCols []*atlasschema.Column
	for _, f := range m.ScalarFields() {
		col, err := desiredColumn(capName, f)
		if err != nil {
			return nil, err
		}
		t.AddColumns(col)
		if f.ID {
			pkCols = append(pkCols, col)
		}
	}
	if len(pkCols) > 0 {
		t.SetPrimaryKey(atlasschema.NewPrimaryKey(pkCols...))
	}
	return t, nil
}

func desiredColumn(capName string, f *model.FieldDef) (*atlasschema.Column, error) {
	col := atlasschema.NewColumn(f.Name).SetType(columnType(capName, f))
	col.Null = f.Optional
	return col, nil
}

// columnType maps a scalar field's logical type to the atlas column type
// atlas's diff engine compares against the live database's introspected
// type. Array fields (Postgres arrays, SQLite JSON-encoded lists) and JSON
// fields both render as a JSON column; SQLite stores everything else by
// type affinity the same way the sqlite capability layer does for reads.
func columnType(capName string, f *model.FieldDef) atlasschema.Type {
	if f.Array {
		return &atlasschema.JSONType{T: "json"}
	}
	switch f.Type {
	case model.TypeString:
		return &atlasschema.StringType{T: "text"}
	case model.TypeBoolean:
		return &atlasschema.BoolType{T: "boolean"}
	case model.TypeInt:
		return &atlasschema.IntegerType{T: "int"}
	case model.TypeBigInt:
		return &atlasschema.IntegerType{T: "bigint"}
	case model.TypeFloat:
		return &atlasschema.FloatType{T: "double"}
	case model.TypeDecimal:
		if capName == dialect.Postgres {
			return &atlasschema.DecimalType{T: "numeric"}
		}
		return &atlasschema.StringType{T: "text"}
	case model.TypeDateTime:
		return &atlasschema.TimeType{T: "timestamp"}
	case model.TypeBytes:
		return &atlasschema.BinaryType{T: "blob"}
	case model.TypeJSON:
		return &atlasschema.JSONType{T: "json"}
	default:
		return &atlasschema.StringType{T: "text"}
	}
}
