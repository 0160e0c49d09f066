package sql

import "strings"

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	dialect   string
	table     string
	sets      []setClause
	where     *Predicate
	limit     *int
	returning []string
}

type setClause struct {
	column string
	value  any
	raw    *Builder // when set, overrides value as a raw expression (e.g. "col + 1")
}

// Set assigns column = value.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, setClause{column: column, value: value})
	return b
}

// SetExpr assigns column to a raw SQL expression, used for relative updates
// (increment/decrement/multiply/divide).
func (b *UpdateBuilder) SetExpr(column string, expr *Builder) *UpdateBuilder {
	b.sets = append(b.sets, setClause{column: column, raw: expr})
	return b
}

// Where ANDs a predicate onto the UPDATE's WHERE clause.
func (b *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	b.where = And(b.where, p)
	return b
}

// Limit bounds the number of rows updated; only meaningful on dialects that
// support UPDATE ... LIMIT (Capability.SupportsUpdateWithLimit).
func (b *UpdateBuilder) Limit(n int) *UpdateBuilder {
	b.limit = &n
	return b
}

// Returning requests updated columns back via RETURNING.
func (b *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	b.returning = columns
	return b
}

// Query renders the UPDATE statement.
func (b *UpdateBuilder) Query() (string, []any) {
	bu := NewBuilder(b.dialect)
	bu.WriteString("UPDATE ").Ident(b.table).WriteString(" SET ")
	for i, s := range b.sets {
		if i > 0 {
			bu.WriteString(", ")
		}
		bu.Ident(s.column).WriteString(" = ")
		if s.raw != nil {
			bu.Join(s.raw)
		} else {
			bu.Arg(s.value)
		}
	}
	if b.where != nil {
		bu.WriteString(" WHERE ")
		b.where.render(bu)
	}
	if b.limit != nil {
		bu.WriteString(" LIMIT ")
		bu.WriteString(itoa(*b.limit))
	}
	if len(b.returning) > 0 {
		bu.WriteString(" RETURNING ")
		bu.WriteString(strings.Join(b.returning, ", "))
	}
	return bu.Query()
}
