// Package sql provides SQL query-building primitives and a thin driver
// wrapper over database/sql, adapted to the two backends this engine
// targets (SQLite, PostgreSQL). It is the AST/query-builder layer the rest
// of the engine is built on: planners and the mutation orchestrator emit
// *Selector / *InsertBuilder / *UpdateBuilder / *DeleteBuilder values, and
// plugins may rewrite them before they reach the driver.
package sql

import (
	"strconv"
	"strings"

	"github.com/polyquery/accessgraph/dialect"
)

// Querier is implemented by every statement builder: it renders to a SQL
// string and its positional arguments.
type Querier interface {
	Query() (string, []any)
}

// Builder is the low-level string builder shared by every statement type.
// It knows how to quote identifiers and render placeholders for the active
// dialect (`?` for SQLite, `$N` for PostgreSQL).
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	total   *int
}

// NewBuilder returns an empty Builder bound to dialectName.
func NewBuilder(dialectName string) *Builder {
	return &Builder{dialect: dialectName, total: new(int)}
}

// Dialect reports the bound dialect name.
func (b *Builder) Dialect() string { return b.dialect }

// Quote quotes a single SQL identifier for the active dialect.
func (b *Builder) Quote(ident string) string {
	switch b.dialect {
	case dialect.Postgres:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	default: // SQLite and fallback
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
}

// Ident writes a quoted identifier, splitting on "." so "t.col" quotes each
// part separately.
func (b *Builder) Ident(name string) *Builder {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		b.sb.WriteString(b.Quote(p))
	}
	return b
}

// WriteString appends raw SQL text verbatim.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends a single raw byte.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Arg appends a positional argument and writes its placeholder.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	*b.total++
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(*b.total))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args appends a comma-joined list of placeholders for each value.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Join appends another builder's rendered SQL and merges its args, keeping
// the shared placeholder counter in sync for PostgreSQL.
func (b *Builder) Join(other *Builder) *Builder {
	b.sb.WriteString(other.sb.String())
	b.args = append(b.args, other.args...)
	return b
}

// String renders the accumulated SQL text.
func (b *Builder) String() string { return b.sb.String() }

// Query implements Querier.
func (b *Builder) Query() (string, []any) { return b.sb.String(), b.args }

// Raw is an escape hatch for a caller-constructed SQL fragment (used by
// $expr thunks in where-filters, and by computed-field expressions).
type Raw struct {
	SQL  string
	Args []any
}

func (r Raw) Query() (string, []any) { return r.SQL, r.Args }
