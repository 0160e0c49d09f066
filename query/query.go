// Package query is the CRUD translation engine's read side (C5): it
// compiles validated find arguments into a *sql.Selector plus a projection
// plan the result processor (package result) uses to decode rows back into
// nested Go values. Count, aggregate and groupBy statements are assembled
// by package client, which uses BuildFilter for their where clauses.
package query

import (
	"fmt"
	"sort"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
)

// Args is the planner's input, the validated shape of a find operation.
type Args struct {
	Where    M
	Select   M
	Include  M
	Omit     M
	OrderBy  []M
	Cursor   M
	Distinct []string
	Skip     *int
	Take     *int

	// RowPolicy, when set, is ANDed into the root statement's WHERE clause
	// bound to the root alias ("t0") — the policy plugin's (C9) row filter,
	// compiled by the caller before Build runs. It applies only to the root
	// table; it is not recursively rewritten into every joined relation's
	// subquery (see DESIGN.md).
	RowPolicy *sql.Predicate
}

// ColumnKind classifies a projected output column so the result processor
// knows how to decode it.
type ColumnKind int

const (
	// ColScalar is a plain column value.
	ColScalar ColumnKind = iota
	// ColRelationToOne is a JSON object column produced by BuildRelationSelection.
	ColRelationToOne
	// ColRelationToMany is a JSON array column produced by BuildRelationSelection.
	ColRelationToMany
	// ColCount is the synthetic "_count" aggregate column.
	ColCount
	// ColDelegate is a JSON object column holding one delegate descendant's
	// own fields, joined in by id; present only on a delegate base model's
	// default (no explicit select) projection.
	ColDelegate
)

// Column describes one projected output column.
type Column struct {
	Key           string
	Kind          ColumnKind
	Field         *model.FieldDef
	RelationModel string
	// Nested holds the sub-selection's own columns, for recursive decoding
	// of relation payloads.
	Nested []Column
}

// Plan is the compiled output of Build: a ready-to-render Selector plus the
// metadata the result processor needs to turn rows back into nested values.
type Plan struct {
	Model          *model.ModelDef
	Selector       *sql.Selector
	Columns        []Column
	NegateTake     bool
	Take           *int
	Skip           *int
	// InMemoryDistinct is set when the dialect lacks DISTINCT ON and a
	// distinct projection was requested; the result processor dedupes
	// decoded rows on these columns instead of relying on the SQL layer.
	InMemoryDistinct []string
	ContextComment   string
	// OrderFields is the unqualified field name sequence backing Selector's
	// ORDER BY, in the same order as the DB's comparison tuple; client uses
	// it to build opaque cursor tokens off the last/first decoded row.
	OrderFields []string
}

// Build compiles Args against m into a Plan. operation names the root
// operation ("findMany", "findFirst", ...), embedded in the trailing
// context comment every root statement carries.
func Build(schema *model.Schema, m *model.ModelDef, cap sql.Capability, operation string, a *Args) (*Plan, error) {
	alias := "t0"
	sel := sql.Dialect(cap.Name()).Select()
	sel.From(sql.Table(m.Table()).As(alias))

	where, err := BuildFilter(schema, m, cap, alias, a.Where)
	if err != nil {
		return nil, err
	}
	where = sql.And(where, a.RowPolicy)
	if where != nil {
		sel.Where(where)
	}

	cols, err := projection(schema, m, cap, alias, a)
	if err != nil {
		return nil, err
	}
	if len(a.Select) == 0 && m.IsDelegate {
		dcols, err := delegateColumns(schema, m, cap, alias, sel)
		if err != nil {
			return nil, err
		}
		cols = append(cols, dcols...)
	}
	exprs := make([]string, len(cols))
	for i, c := range cols {
		exprs[i] = columnExpr(alias, c)
	}
	sel.Select(exprs...)

	negate, terms, err := orderTerms(m, alias, a.OrderBy, a.Take)
	if err != nil {
		return nil, err
	}
	if a.Cursor != nil {
		cp, err := cursorPredicate(m, alias, terms, a.Cursor)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			sel.Where(cp)
		}
	}
	if len(terms) > 0 {
		sel.OrderBy(terms...)
	}

	orderFields := make([]string, len(terms))
	for i, t := range terms {
		orderFields[i] = t.Column[len(alias)+1:]
	}
	plan := &Plan{Model: m, Selector: sel, Columns: cols, NegateTake: negate, Skip: a.Skip, OrderFields: orderFields}

	if a.Take != nil {
		n := *a.Take
		if n < 0 {
			n = -n
		}
		sel.Limit(n)
		plan.Take = &n
	}
	if a.Skip != nil {
		sel.Offset(*a.Skip)
	}

	if len(a.Distinct) > 0 {
		if cap.SupportsDistinctOn() {
			distinctCols := make([]string, len(a.Distinct))
			for i, d := range a.Distinct {
				distinctCols[i] = alias + "." + d
			}
			sel.DistinctOn(distinctCols...)
		} else {
			sel.Distinct()
			plan.InMemoryDistinct = a.Distinct
		}
	}

	plan.ContextComment = fmt.Sprintf(`$context:{"model":%q,"operation":%q}`, m.Name, operation)
	sel.Comment(plan.ContextComment)
	return plan, nil
}

func columnExpr(alias string, c Column) string {
	if c.Kind == ColScalar || c.Kind == ColCount {
		return c.Key // already fully qualified / subquery text
	}
	return c.Key
}

// projection derives the output column list from select/include/omit,
// defaulting to every scalar field plus relation id fields when neither
// select nor include narrows it.
func projection(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, a *Args) ([]Column, error) {
	var cols []Column
	switch {
	case len(a.Select) > 0:
		keys := sortedKeys(a.Select)
		for _, k := range keys {
			if k == "_count" {
				c, err := countColumn(schema, m, cap, alias, a.Select["_count"])
				if err != nil {
					return nil, err
				}
				cols = append(cols, c)
				continue
			}
			f := m.Field(k)
			if f == nil {
				return nil, fmt.Errorf("query: select: unknown field %q", k)
			}
			if f.IsRelation() {
				c, err := relationColumn(schema, m, f, cap, alias, a.Select[k])
				if err != nil {
					return nil, err
				}
				cols = append(cols, c)
			} else {
				cols = append(cols, Column{Key: alias + "." + f.Name, Kind: ColScalar, Field: f})
			}
		}
	default:
		for _, f := range m.ScalarFields() {
			if _, omitted := a.Omit[f.Name]; omitted {
				continue
			}
			cols = append(cols, Column{Key: alias + "." + f.Name, Kind: ColScalar, Field: f})
		}
		for name, nested := range a.Include {
			f := m.Field(name)
			if f == nil || !f.IsRelation() {
				return nil, fmt.Errorf("query: include: %q is not a relation", name)
			}
			c, err := relationColumn(schema, m, f, cap, alias, nested)
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		if _, ok := a.Include["_count"]; ok {
			c, err := countColumn(schema, m, cap, alias, a.Include["_count"])
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
	}
	return cols, nil
}

func relationColumn(schema *model.Schema, m *model.ModelDef, f *model.FieldDef, cap sql.Capability, alias string, arg any) (Column, error) {
	relModel := schema.Model(f.Relation.Model)
	if relModel == nil {
		return Column{}, fmt.Errorf("query: relation %q references unknown model %q", f.Name, f.Relation.Model)
	}
	relAlias := alias + "$" + f.Name
	nestedArgs := &Args{}
	if obj, ok := arg.(M); ok {
		nestedArgs = argsFromMap(obj)
	}
	nestedCols, err := projection(schema, relModel, cap, relAlias, nestedArgs)
	if err != nil {
		return Column{}, err
	}
	if len(nestedCols) == 0 {
		for _, sf := range relModel.ScalarFields() {
			nestedCols = append(nestedCols, Column{Key: relAlias + "." + sf.Name, Kind: ColScalar, Field: sf})
		}
	}
	localCols := make([]string, len(nestedCols))
	for i, nc := range nestedCols {
		localCols[i] = columnBareName(nc)
	}
	kind := ColRelationToOne
	if f.IsToMany() {
		kind = ColRelationToMany
	}

	// The single-column, unfiltered direct-FK case is the common path;
	// delegate straight to the dialect's own BuildRelationSelection so the
	// capability layer (not a second hand-rolled subquery builder) owns the
	// aggregation SQL. Composite keys, many-to-many joins, and relations
	// carrying a nested where clause fall back to the generic
	// predicate-based subquery, since BuildRelationSelection only expresses
	// a single fkCol = pkCol correlation.
	if fkCol, pkCol, ok := simpleFK(m, relModel, f); ok && len(nestedArgs.Where) == 0 {
		// BuildRelationSelection subqueries carry no bound parameters of
		// their own (column refs only), so the second return is unused.
		expr, _ := cap.BuildRelationSelection(alias, relModel.Table(), relAlias, fkCol, pkCol, f.IsToMany(), localCols)
		return Column{Key: expr, Kind: kind, Field: f, RelationModel: relModel.Name, Nested: nestedCols}, nil
	}

	joinCond, err := relationJoin(m, relModel, f, alias, relAlias)
	if err != nil {
		return Column{}, err
	}
	filterPred, err := BuildFilter(schema, relModel, cap, relAlias, nestedArgs.Where)
	if err != nil {
		return Column{}, err
	}
	full := sql.And(joinCond, filterPred)
	pairs := make([]sql.JSONPair, len(nestedCols))
	for i, nc := range localCols {
		pairs[i] = sql.JSONPair{Key: nc, Expr: relAlias + "." + nc}
	}
	expr := relationSubquery(cap, relModel.Table(), relAlias, full, pairs, f.IsToMany())
	return Column{Key: expr, Kind: kind, Field: f, RelationModel: relModel.Name, Nested: nestedCols}, nil
}

// simpleFK reports whether f is a direct (non-many-to-many) relation whose
// join condition is a single-column foreign key, and if so returns the
// child-side and parent-side column names BuildRelationSelection expects.
func simpleFK(m, relModel *model.ModelDef, f *model.FieldDef) (fkCol, pkCol string, ok bool) {
	opp := relModel.Field(f.Relation.Opposite)
	if opp != nil && model.IsManyToMany(f, opp) {
		return "", "", false
	}
	if f.Relation.IsOwner() {
		if len(f.Relation.Fields) != 1 || len(f.Relation.References) != 1 {
			return "", "", false
		}
		// The FK column lives on m (parentAlias) here, pointing at
		// relModel's (relAlias's) referenced column, the reverse of
		// BuildRelationSelection's relAlias.fkCol = parentAlias.pkCol
		// shape — so the two columns swap roles.
		return f.Relation.References[0], f.Relation.Fields[0], true
	}
	if opp == nil || opp.Relation == nil {
		return "", "", false
	}
	if len(opp.Relation.Fields) != 1 || len(opp.Relation.References) != 1 {
		return "", "", false
	}
	return opp.Relation.Fields[0], opp.Relation.References[0], true
}

func columnBareName(c Column) string {
	idx := len(c.Key)
	for i := idx - 1; i >= 0; i-- {
		if c.Key[i] == '.' {
			return c.Key[i+1:]
		}
	}
	return c.Key
}

// relationSubquery renders a correlated scalar/array subquery projecting
// pairs as a JSON object/array, filtered by full.
func relationSubquery(cap sql.Capability, table, alias string, full *sql.Predicate, pairs []sql.JSONPair, toMany bool) string {
	obj := cap.BuildJSONObject(pairs)
	agg := obj
	if toMany {
		if cap.Name() == "postgres" {
			agg = "COALESCE(json_agg(" + obj + "), '[]'::json)"
		} else {
			agg = "json_group_array(" + obj + ")"
		}
	}
	b := sql.NewBuilder(cap.Name())
	b.WriteString("(SELECT " + agg + " FROM " + table + " AS " + alias + " WHERE ")
	full.Render(b)
	if !toMany {
		b.WriteString(" LIMIT 1")
	}
	b.WriteString(")")
	text, _ := b.Query()
	return text
}

func countColumn(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, arg any) (Column, error) {
	obj, _ := arg.(M)
	pairs := make([]sql.JSONPair, 0, len(obj))
	names := sortedKeys(obj)
	for _, name := range names {
		f := m.Field(name)
		if f == nil || !f.IsRelation() {
			return Column{}, fmt.Errorf("query: _count: %q is not a relation", name)
		}
		relModel := schema.Model(f.Relation.Model)
		if relModel == nil {
			return Column{}, fmt.Errorf("query: _count: relation %q references unknown model %q", name, f.Relation.Model)
		}
		relAlias := alias + "$" + name + "$cnt"
		var text string
		if fkCol, pkCol, ok := simpleFK(m, relModel, f); ok {
			text = cap.BuildCountAggregate(alias, relModel.Table(), relAlias, fkCol, pkCol)
		} else {
			joinCond, err := relationJoin(m, relModel, f, alias, relAlias)
			if err != nil {
				return Column{}, err
			}
			b := sql.NewBuilder(cap.Name())
			b.WriteString("(SELECT COUNT(*) FROM " + relModel.Table() + " AS " + relAlias + " WHERE ")
			joinCond.Render(b)
			b.WriteString(")")
			text, _ = b.Query()
		}
		pairs = append(pairs, sql.JSONPair{Key: name, Expr: text})
	}
	return Column{Key: cap.BuildJSONObject(pairs), Kind: ColCount}, nil
}

func argsFromMap(obj M) *Args {
	a := &Args{}
	if w, ok := obj["where"].(M); ok {
		a.Where = w
	}
	if s, ok := obj["select"].(M); ok {
		a.Select = s
	}
	if i, ok := obj["include"].(M); ok {
		a.Include = i
	}
	if o, ok := obj["omit"].(M); ok {
		a.Omit = o
	}
	if ob, ok := obj["orderBy"].([]M); ok {
		a.OrderBy = ob
	}
	if t, ok := obj["take"].(int); ok {
		a.Take = &t
	}
	if s, ok := obj["skip"].(int); ok {
		a.Skip = &s
	}
	return a
}

// orderTerms builds ORDER BY terms from the orderBy list, synthesizing a
// trailing id-ascending tie-breaker for deterministic cursor pagination
// when none of the requested terms already cover an id field. A negative
// take reverses every term so the SQL layer fetches the tail of the
// logical ordering; the planner records NegateTake so the result processor
// can reverse the decoded rows back to the caller-visible order.
func orderTerms(m *model.ModelDef, alias string, orderBy []M, take *int) (negate bool, terms []sql.OrderTerm, err error) {
	negate = take != nil && *take < 0
	for _, ord := range orderBy {
		for k, v := range ord {
			f := m.Field(k)
			if f == nil || f.IsRelation() {
				continue // relation ordering is resolved by the nested projection, not here
			}
			dir, _ := v.(string)
			desc := dir == "desc"
			if negate {
				desc = !desc
			}
			terms = append(terms, sql.OrderTerm{Column: alias + "." + k, Desc: desc})
		}
	}
	if !coversIDTieBreak(m, terms, alias) {
		for _, id := range m.IdFields {
			terms = append(terms, sql.OrderTerm{Column: alias + "." + id, Desc: negate})
		}
	}
	return negate, terms, nil
}

func coversIDTieBreak(m *model.ModelDef, terms []sql.OrderTerm, alias string) bool {
	for _, id := range m.IdFields {
		found := false
		for _, t := range terms {
			if t.Column == alias+"."+id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(m.IdFields) > 0
}

// cursorPredicate builds the keyset-pagination disjunction: for ORDER BY
// terms (c1, c2, ..., cn) and a cursor row, it returns
//
//	(c1 > v1) OR (c1 = v1 AND c2 > v2) OR ... OR (c1 = v1 AND ... AND cn > vn)
//
// with > flipped to < for DESC terms, so the result set starts immediately
// after the cursor row in the requested order.
func cursorPredicate(m *model.ModelDef, alias string, terms []sql.OrderTerm, cursor M) (*sql.Predicate, error) {
	if len(terms) == 0 || len(cursor) == 0 {
		return nil, nil
	}
	var disjuncts []*sql.Predicate
	for i, t := range terms {
		fieldName := t.Column[len(alias)+1:]
		v, ok := cursor[fieldName]
		if !ok {
			continue
		}
		var conj []*sql.Predicate
		for j := 0; j < i; j++ {
			prevName := terms[j].Column[len(alias)+1:]
			pv, ok := cursor[prevName]
			if !ok {
				continue
			}
			conj = append(conj, sql.EQ(terms[j].Column, pv))
		}
		if t.Desc {
			conj = append(conj, sql.LT(t.Column, v))
		} else {
			conj = append(conj, sql.GT(t.Column, v))
		}
		disjuncts = append(disjuncts, sql.And(conj...))
	}
	return sql.Or(disjuncts...), nil
}

func sortedKeys(m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// delegateColumns LEFT JOINs every descendant of a delegate base model onto
// sel (by id equality) and returns one JSON-object column per descendant
// holding that descendant's own fields, per the base model's default
// projection.
func delegateColumns(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, sel *sql.Selector) ([]Column, error) {
	var out []Column
	for _, name := range sortedModelNames(schema) {
		d := schema.Models[name]
		if d.BaseModel != m.Name {
			continue
		}
		relAlias := alias + "$delegate$" + d.Name
		sel.LeftJoin(sql.Table(d.Table()).As(relAlias)).On(joinOn(m.IdFields, d.IdFields, alias, relAlias))

		var nested []Column
		for _, f := range d.OrderedFields() {
			if f.IsRelation() || f.Computed {
				continue
			}
			if f.OriginModel != "" && f.OriginModel != d.Name {
				continue // inherited from the base, already selected there
			}
			nested = append(nested, Column{Key: relAlias + "." + f.Name, Kind: ColScalar, Field: f})
		}
		id := firstID(d)
		pairs := make([]sql.JSONPair, 0, len(nested)+1)
		pairs = append(pairs, sql.JSONPair{Key: id, Expr: relAlias + "." + id})
		for _, nc := range nested {
			pairs = append(pairs, sql.JSONPair{Key: columnBareName(nc), Expr: nc.Key})
		}
		out = append(out, Column{
			Key:           cap.BuildJSONObject(pairs),
			Kind:          ColDelegate,
			RelationModel: d.Name,
			Nested:        nested,
		})
	}
	return out, nil
}

func sortedModelNames(schema *model.Schema) []string {
	names := make([]string, 0, len(schema.Models))
	for name := range schema.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wrapper adapts a compiled Plan to accessgraph.Query so the plugin
// pipeline's Interceptor chain can inspect/traverse it uniformly with every
// other query.
type Wrapper struct {
	plan *Plan
	op   string
}

// NewWrapper returns a Wrapper exposing plan through the accessgraph.Query
// interface for operation op.
func NewWrapper(plan *Plan, op string) *Wrapper { return &Wrapper{plan: plan, op: op} }

// Type returns the model name the query operates on.
func (w *Wrapper) Type() string { return w.plan.Model.Name }

// Limit returns the configured take, or nil for unbounded.
func (w *Wrapper) Limit() *int { return w.plan.Take }

// Offset returns the configured skip.
func (w *Wrapper) Offset() *int { return w.plan.Skip }

// Plan returns the compiled plan, for operation handlers downstream of the
// plugin pipeline that need the full Selector rather than just the
// accessgraph.Query summary view.
func (w *Wrapper) Plan() *Plan { return w.plan }

var _ accessgraph.Query = (*Wrapper)(nil)
