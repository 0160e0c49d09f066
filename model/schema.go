// Package model is the in-memory representation of a compiled data-access
// schema: models, fields, relations, enums, typed-JSON shapes and
// access-control policies. It is the contract every other package in this
// module consumes — the schema-definition language that produces a
// *Schema value, and how it was produced, are both out of scope here.
package model

// Provider names a supported SQL backend.
type Provider string

const (
	SQLite     Provider = "sqlite"
	PostgreSQL Provider = "postgresql"
)

// Schema is a process-wide immutable value describing the entire data model.
type Schema struct {
	Provider   Provider
	Datasource DatasourceConfig
	Models     map[string]*ModelDef
	Enums      map[string]*EnumDef
	TypeDefs   map[string]*TypeDef
	// AuthType optionally names the model used as the ambient "caller
	// identity" shape evaluated by auth() expressions.
	AuthType string
	// Plugins holds opaque per-plugin configuration, keyed by plugin id.
	Plugins map[string]any
}

// DatasourceConfig holds backend connection settings, normally decoded from
// the schema's provider block (see config.go).
type DatasourceConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds, 0 = unlimited
	// SQLitePragmas are applied verbatim after opening a SQLite connection
	// (e.g. "journal_mode=WAL", "foreign_keys=ON").
	SQLitePragmas []string
	// SearchPath is applied as a Postgres session variable on connect.
	SearchPath string
}

// Model looks up a model definition, returning nil if absent.
func (s *Schema) Model(name string) *ModelDef {
	if s == nil {
		return nil
	}
	return s.Models[name]
}

// Enum looks up an enum definition, returning nil if absent.
func (s *Schema) Enum(name string) *EnumDef {
	if s == nil {
		return nil
	}
	return s.Enums[name]
}

// EnumDef is an ordered set of string members.
type EnumDef struct {
	Name    string
	Members []string
}

// Has reports whether value is a declared member of the enum.
func (e *EnumDef) Has(value string) bool {
	for _, m := range e.Members {
		if m == value {
			return true
		}
	}
	return false
}

// TypeDef describes the field shape of a struct-like type used by typed JSON
// columns (field.Type referencing a TypeDef name instead of a builtin).
type TypeDef struct {
	Name   string
	Fields map[string]*FieldDef
}
