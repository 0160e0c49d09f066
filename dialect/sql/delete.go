package sql

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
	limit   *int
}

// Where ANDs a predicate onto the DELETE's WHERE clause.
func (b *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	b.where = And(b.where, p)
	return b
}

// Limit bounds the number of rows deleted; only meaningful on dialects that
// support DELETE ... LIMIT (Capability.SupportsDeleteWithLimit).
func (b *DeleteBuilder) Limit(n int) *DeleteBuilder {
	b.limit = &n
	return b
}

// Query renders the DELETE statement.
func (b *DeleteBuilder) Query() (string, []any) {
	bu := NewBuilder(b.dialect)
	bu.WriteString("DELETE FROM ").Ident(b.table)
	if b.where != nil {
		bu.WriteString(" WHERE ")
		b.where.render(bu)
	}
	if b.limit != nil {
		bu.WriteString(" LIMIT ")
		bu.WriteString(itoa(*b.limit))
	}
	return bu.Query()
}
