package sql

import "strings"

// InsertBuilder builds an INSERT statement, optionally returning columns via
// a RETURNING clause (rendered the same way for PostgreSQL and SQLite).
type InsertBuilder struct {
	dialect    string
	table      string
	columns    []string
	values     [][]any
	returning  []string
	onConflict *conflictClause
}

type conflictClause struct {
	columns []string
	nothing bool
	update  map[string]any
}

// Columns sets the column list shared by every row in Values.
func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = columns
	return b
}

// Values appends one row of values, positional to Columns.
func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.values = append(b.values, values)
	return b
}

// Returning requests the given columns back via RETURNING. The clause is
// rendered for every dialect; there is no last-insert-rowid fallback.
func (b *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	b.returning = columns
	return b
}

// OnConflictDoNothing sets an upsert-guard ignoring conflicts on columns.
func (b *InsertBuilder) OnConflictDoNothing(columns ...string) *InsertBuilder {
	b.onConflict = &conflictClause{columns: columns, nothing: true}
	return b
}

// OnConflictDoUpdate sets an upsert updating the given column/value map when
// a row conflicts on columns.
func (b *InsertBuilder) OnConflictDoUpdate(columns []string, update map[string]any) *InsertBuilder {
	b.onConflict = &conflictClause{columns: columns, update: update}
	return b
}

// Query renders the INSERT statement.
func (b *InsertBuilder) Query() (string, []any) {
	bu := NewBuilder(b.dialect)
	bu.WriteString("INSERT INTO ").Ident(b.table).WriteString(" (")
	for i, c := range b.columns {
		if i > 0 {
			bu.WriteString(", ")
		}
		bu.Ident(c)
	}
	bu.WriteString(") VALUES ")
	for ri, row := range b.values {
		if ri > 0 {
			bu.WriteString(", ")
		}
		bu.WriteByte('(')
		bu.Args(row...)
		bu.WriteByte(')')
	}
	if b.onConflict != nil {
		bu.WriteString(" ON CONFLICT")
		if len(b.onConflict.columns) > 0 {
			bu.WriteString(" (")
			bu.WriteString(strings.Join(b.onConflict.columns, ", "))
			bu.WriteByte(')')
		}
		switch {
		case b.onConflict.nothing:
			bu.WriteString(" DO NOTHING")
		default:
			bu.WriteString(" DO UPDATE SET ")
			i := 0
			for col, v := range b.onConflict.update {
				if i > 0 {
					bu.WriteString(", ")
				}
				bu.Ident(col).WriteString(" = ")
				bu.Arg(v)
				i++
			}
		}
	}
	if len(b.returning) > 0 {
		bu.WriteString(" RETURNING ")
		bu.WriteString(strings.Join(b.returning, ", "))
	}
	return bu.Query()
}
