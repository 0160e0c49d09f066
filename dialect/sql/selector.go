package sql

import "strings"

// Predicate renders a boolectorean condition fragment into a Builder. It is
// the low-level building block EQ/NEQ/In/... return and Selector.Where
// combines.
type Predicate struct {
	write func(*Builder)
}

func newPredicate(fn func(*Builder)) *Predicate { return &Predicate{write: fn} }

func (p *Predicate) render(b *Builder) {
	if p == nil {
		return
	}
	p.write(b)
}

// Render writes the predicate into b. It lets callers compose a compiled
// predicate into a larger raw SQL fragment, e.g. embedding a correlated
// filter inside a hand-built EXISTS subquery.
func (p *Predicate) Render(b *Builder) { p.render(b) }

// And combines predicates with AND, parenthesizing each operand.
func And(ps ...*Predicate) *Predicate {
	return combine(ps, " AND ")
}

// Or combines predicates with OR, parenthesizing each operand.
func Or(ps ...*Predicate) *Predicate {
	return combine(ps, " OR ")
}

func combine(ps []*Predicate, sep string) *Predicate {
	ps = nonNil(ps)
	if len(ps) == 0 {
		return nil
	}
	if len(ps) == 1 {
		return ps[0]
	}
	return newPredicate(func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteByte('(')
			p.render(b)
			b.WriteByte(')')
		}
	})
}

func nonNil(ps []*Predicate) []*Predicate {
	out := ps[:0:0]
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// RawPredicate builds a predicate from a caller-provided render function,
// using the Builder's own Arg/WriteString/Ident methods so placeholders stay
// correct across dialects. This is the escape hatch raw-SQL where-thunks and
// array/JSON operators not covered by EQ/In/Contains/... compile through.
func RawPredicate(fn func(*Builder)) *Predicate {
	return newPredicate(fn)
}

// Not negates a predicate.
func Not(p *Predicate) *Predicate {
	return newPredicate(func(b *Builder) {
		b.WriteString("NOT (")
		p.render(b)
		b.WriteByte(')')
	})
}

// EQ builds "col = arg".
func EQ(col string, arg any) *Predicate { return binaryOp(col, "=", arg) }

// NEQ builds "col <> arg".
func NEQ(col string, arg any) *Predicate { return binaryOp(col, "<>", arg) }

// GT builds "col > arg".
func GT(col string, arg any) *Predicate { return binaryOp(col, ">", arg) }

// GTE builds "col >= arg".
func GTE(col string, arg any) *Predicate { return binaryOp(col, ">=", arg) }

// LT builds "col < arg".
func LT(col string, arg any) *Predicate { return binaryOp(col, "<", arg) }

// LTE builds "col <= arg".
func LTE(col string, arg any) *Predicate { return binaryOp(col, "<=", arg) }

func binaryOp(col, op string, arg any) *Predicate {
	return newPredicate(func(b *Builder) {
		b.WriteString(col).WriteString(" " + op + " ")
		b.Arg(arg)
	})
}

// In builds "col IN (args...)"; an empty list renders the always-false "1 = 0".
func In(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return newPredicate(func(b *Builder) { b.WriteString("1 = 0") })
	}
	return newPredicate(func(b *Builder) {
		b.WriteString(col).WriteString(" IN (")
		b.Args(args...)
		b.WriteByte(')')
	})
}

// NotIn builds "col NOT IN (args...)"; an empty list renders the
// always-true "1 = 1".
func NotIn(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return newPredicate(func(b *Builder) { b.WriteString("1 = 1") })
	}
	return newPredicate(func(b *Builder) {
		b.WriteString(col).WriteString(" NOT IN (")
		b.Args(args...)
		b.WriteByte(')')
	})
}

// IsNull builds "col IS NULL".
func IsNull(col string) *Predicate {
	return newPredicate(func(b *Builder) { b.WriteString(col).WriteString(" IS NULL") })
}

// NotNull builds "col IS NOT NULL".
func NotNull(col string) *Predicate {
	return newPredicate(func(b *Builder) { b.WriteString(col).WriteString(" IS NOT NULL") })
}

// Contains builds a LIKE predicate matching substrings of v, escaping LIKE
// metacharacters present in v.
func Contains(col string, v string) *Predicate { return like(col, "%"+escapeLike(v)+"%") }

// HasPrefix builds a LIKE predicate matching values starting with v.
func HasPrefix(col string, v string) *Predicate { return like(col, escapeLike(v)+"%") }

// HasSuffix builds a LIKE predicate matching values ending with v.
func HasSuffix(col string, v string) *Predicate { return like(col, "%"+escapeLike(v)) }

// ContainsFold is the case-insensitive form of Contains. PostgreSQL renders
// ILIKE; SQLite's LIKE is case-insensitive for ASCII by default so it
// renders the same LIKE as Contains.
func ContainsFold(col string, v string) *Predicate { return ilike(col, "%"+escapeLike(v)+"%") }

// HasPrefixFold is the case-insensitive form of HasPrefix.
func HasPrefixFold(col string, v string) *Predicate { return ilike(col, escapeLike(v)+"%") }

// HasSuffixFold is the case-insensitive form of HasSuffix.
func HasSuffixFold(col string, v string) *Predicate { return ilike(col, "%"+escapeLike(v)) }

// EqualFold builds a case-insensitive equality predicate via lower().
func EqualFold(col string, v string) *Predicate {
	return newPredicate(func(b *Builder) {
		b.WriteString("LOWER(").WriteString(col).WriteString(") = LOWER(")
		b.Arg(v)
		b.WriteByte(')')
	})
}

func like(col, pattern string) *Predicate {
	return newPredicate(func(b *Builder) {
		b.WriteString(col).WriteString(" LIKE ")
		b.Arg(pattern)
		b.WriteString(" ESCAPE '\\'")
	})
}

func ilike(col, pattern string) *Predicate {
	return newPredicate(func(b *Builder) {
		if b.dialect == "postgres" {
			b.WriteString(col).WriteString(" ILIKE ")
			b.Arg(pattern)
			b.WriteString(" ESCAPE '\\'")
			return
		}
		b.WriteString(col).WriteString(" LIKE ")
		b.Arg(pattern)
		b.WriteString(" ESCAPE '\\'")
	})
}

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(v)
}

// OrderTerm is one ORDER BY clause term.
type OrderTerm struct {
	Column string
	Desc   bool
	// NullsFirst/NullsLast request explicit NULL ordering; PostgreSQL emits
	// NULLS FIRST/LAST directly, SQLite emulates it via a CASE expression.
	NullsFirst bool
	NullsLast  bool
}

// joinClause is one JOIN in a Selector's FROM list.
type joinClause struct {
	kind string // "JOIN", "LEFT JOIN"
	expr *Builder
	on   *Predicate
}

// SelectTable is a table or subquery reference with an optional alias.
type SelectTable struct {
	name    string
	alias   string
	sub     Querier
	dialect string
}

// Table returns a reference to a physical table, usable as the target of a
// Selector's FROM clause or of a join.
func Table(name string) *SelectTable { return &SelectTable{name: name} }

// As sets the alias this table/subquery is bound to in the query.
func (t *SelectTable) As(alias string) *SelectTable {
	t.alias = alias
	return t
}

// Alias reports the table's current alias, defaulting to its name.
func (t *SelectTable) Alias() string {
	if t.alias != "" {
		return t.alias
	}
	return t.name
}

func (t *SelectTable) render(b *Builder) {
	if t.sub != nil {
		b.WriteByte('(')
		q, args := t.sub.Query()
		b.WriteString(q)
		b.args = append(b.args, args...)
		b.WriteByte(')')
	} else {
		b.Ident(t.name)
	}
	if t.alias != "" {
		b.WriteString(" AS ").Ident(t.alias)
	}
}

// Selector builds a SELECT statement.
type Selector struct {
	dialect    string
	distinct   bool
	distinctOn []string
	columns    []string
	from       *SelectTable
	joins      []joinClause
	where      *Predicate
	having     *Predicate
	groupBy    []string
	orderBy    []OrderTerm
	limit      *int
	offset     *int
	ctx        string // optional trailing comment, e.g. "-- $context:{...}"
}

// Dialect starts a new statement builder bound to the given dialect name.
func Dialect(name string) *DialectBuilder { return &DialectBuilder{dialect: name} }

// DialectBuilder is the entrypoint returned by Dialect(name); it exposes one
// constructor per statement kind.
type DialectBuilder struct{ dialect string }

// Select starts a SELECT statement over the given column expressions.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: columns}
}

// Insert starts an INSERT statement into the named table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// Update starts an UPDATE statement against the named table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete starts a DELETE statement against the named table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// Select appends additional projected column expressions.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// From sets the statement's source table or subquery.
func (s *Selector) From(t *SelectTable) *Selector {
	t.dialect = s.dialect
	s.from = t
	return s
}

// TableName returns the alias the FROM table is bound to, for building
// qualified column references.
func (s *Selector) TableName() string {
	if s.from == nil {
		return ""
	}
	return s.from.Alias()
}

// C qualifies a column name with the current FROM table's alias.
func (s *Selector) C(column string) string {
	if s.from == nil {
		return column
	}
	return s.from.Alias() + "." + column
}

// Join adds an inner join.
func (s *Selector) Join(t *SelectTable) *joinBuilder {
	t.dialect = s.dialect
	jc := joinClause{kind: "JOIN", expr: tableExpr(t)}
	s.joins = append(s.joins, jc)
	return &joinBuilder{s: s, idx: len(s.joins) - 1}
}

// LeftJoin adds a left outer join.
func (s *Selector) LeftJoin(t *SelectTable) *joinBuilder {
	t.dialect = s.dialect
	jc := joinClause{kind: "LEFT JOIN", expr: tableExpr(t)}
	s.joins = append(s.joins, jc)
	return &joinBuilder{s: s, idx: len(s.joins) - 1}
}

func tableExpr(t *SelectTable) *Builder {
	b := NewBuilder(t.dialect)
	t.render(b)
	return b
}

type joinBuilder struct {
	s   *Selector
	idx int
}

// On sets the join condition.
func (j *joinBuilder) On(p *Predicate) *Selector {
	j.s.joins[j.idx].on = p
	return j.s
}

// Where ANDs a predicate onto the statement's WHERE clause.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = And(s.where, p)
	return s
}

// Having ANDs a predicate onto the statement's HAVING clause.
func (s *Selector) Having(p *Predicate) *Selector {
	s.having = And(s.having, p)
	return s
}

// GroupBy sets the GROUP BY column list.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.groupBy = append(s.groupBy, columns...)
	return s
}

// OrderBy appends ORDER BY terms, applied in call order.
func (s *Selector) OrderBy(terms ...OrderTerm) *Selector {
	s.orderBy = append(s.orderBy, terms...)
	return s
}

// Limit sets the LIMIT clause (the engine's "take").
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause (the engine's "skip").
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Distinct marks the statement SELECT DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// DistinctOn marks the statement SELECT DISTINCT ON (columns); the caller
// is responsible for confirming the dialect supports it
// (Capability.SupportsDistinctOn).
func (s *Selector) DistinctOn(columns ...string) *Selector {
	s.distinctOn = columns
	return s
}

// Comment attaches a trailing SQL comment to the rendered statement, used to
// embed a machine-readable context marker for observability.
func (s *Selector) Comment(c string) *Selector {
	s.ctx = c
	return s
}

// Query renders the statement to SQL text and its positional arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	b.WriteString("SELECT ")
	if len(s.distinctOn) > 0 {
		b.WriteString("DISTINCT ON (")
		b.WriteString(strings.Join(s.distinctOn, ", "))
		b.WriteString(") ")
	} else if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	} else {
		b.WriteString(strings.Join(s.columns, ", "))
	}
	if s.from != nil {
		b.WriteString(" FROM ")
		s.from.render(b)
	}
	for _, j := range s.joins {
		b.WriteString(" ").WriteString(j.kind).WriteString(" ")
		b.Join(j.expr)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.render(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.render(b)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ").WriteString(strings.Join(s.groupBy, ", "))
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		s.having.render(b)
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, t := range s.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.Column)
			if t.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
			switch {
			case t.NullsFirst:
				b.WriteString(" NULLS FIRST")
			case t.NullsLast:
				b.WriteString(" NULLS LAST")
			}
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(itoa(*s.offset))
	}
	if s.ctx != "" {
		b.WriteString(" -- ").WriteString(s.ctx)
	}
	return b.Query()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
