// Package policy compiles a model's @@allow/@@deny attributes (C9) into SQL
// predicates and accessgraph.Policy values: row filters appended to SELECT/
// UPDATE/DELETE WHERE clauses, admission checks evaluated before INSERT, and
// the post-update filter (RowFilter with OpPostUpdate). No code in this
// package runs the post-update filter against rows after an UPDATE.
//
// The expression compiler here mirrors query/filter.go's predicate-building
// style (RawPredicate closures rendered into a shared Builder) so compiled
// policy fragments compose into the same statements the query planner and
// mutation orchestrator already build.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/privacy"
	"github.com/polyquery/accessgraph/schema/expr"
)

// Operation bucket names an @@allow/@@deny rule's comma-separated op list
// may contain.
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpPostUpdate = "post-update"
	opAll        = "all"
)

func matchesOp(attr model.PolicyAttribute, op string) bool {
	for _, o := range attr.Ops {
		o = strings.TrimSpace(o)
		if o == op {
			return true
		}
		// "all" excludes post-update: spec.md §4.7.
		if o == opAll && op != OpPostUpdate {
			return true
		}
	}
	return false
}

// RowFilter synthesizes the combined allow/deny predicate for (m, op) at
// alias: a disjunction of every matching allow rule, conjuncted with the
// negation of every matching deny rule. When no allow rule matches, the
// allow side defaults to always-false for create/read/update/delete and
// always-true for post-update.
func RowFilter(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias, op string, viewer privacy.Viewer) (*sql.Predicate, error) {
	var allows, denies []*sql.Predicate
	hasAllow := false
	for _, attr := range m.Policies {
		if !matchesOp(attr, op) {
			continue
		}
		pred, err := Compile(schema, m, cap, alias, attr.Expr, viewer)
		if err != nil {
			return nil, fmt.Errorf("policy: %s.%s: %w", m.Name, op, err)
		}
		switch attr.Kind {
		case model.Allow:
			hasAllow = true
			allows = append(allows, pred)
		case model.Deny:
			denies = append(denies, sql.Not(pred))
		}
	}
	a := literalBool(op == OpPostUpdate)
	if hasAllow {
		a = sql.Or(allows...)
	}
	return sql.And(append([]*sql.Predicate{a}, denies...)...), nil
}

// literalBool renders an always-true/always-false predicate, used for the
// allow-side default when no allow rule matches an operation.
func literalBool(v bool) *sql.Predicate {
	text := "1=0"
	if v {
		text = "1=1"
	}
	return sql.RawPredicate(func(b *sql.Builder) { b.WriteString(text) })
}

// Compile translates a policy expression into a boolean SQL predicate bound
// to alias. "this" and bare field references resolve against alias; auth()
// member access resolves against viewer; collection predicates (some/none/
// every over a to-many relation) become correlated EXISTS/NOT EXISTS.
func Compile(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, e expr.Expr, viewer privacy.Viewer) (*sql.Predicate, error) {
	switch e.Kind {
	case expr.KindLiteral:
		b, ok := e.Literal.(bool)
		if !ok {
			return nil, fmt.Errorf("literal %v is not a boolean policy expression", e.Literal)
		}
		return literalBool(b), nil
	case expr.KindField:
		col := alias + "." + e.Field
		return sql.RawPredicate(func(b *sql.Builder) { b.WriteString(col) }), nil
	case expr.KindUnary:
		inner, err := Compile(schema, m, cap, alias, *e.Operand, viewer)
		if err != nil {
			return nil, err
		}
		return sql.Not(inner), nil
	case expr.KindBinary:
		return compileBinary(schema, m, cap, alias, e, viewer)
	case expr.KindCall:
		if expr.IsAuthCall(e) {
			return literalBool(viewer != nil), nil
		}
		return nil, fmt.Errorf("unsupported boolean call %q", e.Name)
	default:
		return nil, fmt.Errorf("expression kind %d cannot stand alone as a boolean policy predicate", e.Kind)
	}
}

func compileBinary(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, e expr.Expr, viewer privacy.Viewer) (*sql.Predicate, error) {
	switch e.Op {
	case expr.OpAnd:
		l, err := Compile(schema, m, cap, alias, *e.Left, viewer)
		if err != nil {
			return nil, err
		}
		r, err := Compile(schema, m, cap, alias, *e.Right, viewer)
		if err != nil {
			return nil, err
		}
		return sql.And(l, r), nil
	case expr.OpOr:
		l, err := Compile(schema, m, cap, alias, *e.Left, viewer)
		if err != nil {
			return nil, err
		}
		r, err := Compile(schema, m, cap, alias, *e.Right, viewer)
		if err != nil {
			return nil, err
		}
		return sql.Or(l, r), nil
	case expr.OpEQ, expr.OpNEQ:
		if e.Right.Kind == expr.KindNull || e.Left.Kind == expr.KindNull {
			col, err := nullComparisonColumn(*e.Left, *e.Right, alias)
			if err != nil {
				return nil, err
			}
			if e.Op == expr.OpEQ {
				return sql.IsNull(col), nil
			}
			return sql.NotNull(col), nil
		}
		return compareValues(alias, viewer, e.Left, e.Right, e.Op)
	case expr.OpLT, expr.OpLTE, expr.OpGT, expr.OpGTE:
		return compareValues(alias, viewer, e.Left, e.Right, e.Op)
	case expr.OpIn:
		return compileIn(alias, viewer, e.Left, e.Right)
	case expr.OpExists, expr.OpNotExists, expr.OpAll:
		return compileCollection(schema, m, cap, alias, e, viewer)
	default:
		return nil, fmt.Errorf("unsupported binary operator %d", e.Op)
	}
}

func nullComparisonColumn(left, right expr.Expr, alias string) (string, error) {
	operand := left
	if left.Kind == expr.KindNull {
		operand = right
	}
	v, err := compileValue(operand, alias, nil)
	if err != nil {
		return "", err
	}
	if !v.isCol {
		return "", fmt.Errorf("null comparison requires a field operand")
	}
	return v.col, nil
}

// value is a compiled scalar operand: either a column reference (rendered
// verbatim) or a literal/auth-derived argument (rendered as a bound param).
type value struct {
	col   string
	isCol bool
	arg   any
}

func compileValue(e expr.Expr, alias string, viewer privacy.Viewer) (value, error) {
	switch e.Kind {
	case expr.KindLiteral:
		return value{arg: e.Literal}, nil
	case expr.KindNull:
		return value{arg: nil}, nil
	case expr.KindField:
		return value{col: alias + "." + e.Field, isCol: true}, nil
	case expr.KindThis:
		return value{}, fmt.Errorf("bare this is not a scalar value")
	case expr.KindMember:
		if e.Base == nil {
			return value{}, fmt.Errorf("member expression missing base")
		}
		if expr.IsAuthCall(*e.Base) {
			v, err := resolveAuthMember(e.Member, viewer)
			if err != nil {
				return value{}, err
			}
			return value{arg: v}, nil
		}
		if expr.IsThis(*e.Base) {
			return value{col: alias + "." + e.Member, isCol: true}, nil
		}
		return value{}, fmt.Errorf("unsupported member access base")
	default:
		return value{}, fmt.Errorf("expression kind %d is not a scalar value", e.Kind)
	}
}

func resolveAuthMember(member string, viewer privacy.Viewer) (any, error) {
	if viewer == nil {
		return nil, fmt.Errorf("policy references auth().%s but no viewer is bound to the context", member)
	}
	switch member {
	case "id":
		return viewer.GetID(), nil
	case "tenantId", "tenantID":
		return viewer.GetTenantID(), nil
	case "roles":
		return viewer.GetRoles(), nil
	default:
		return nil, fmt.Errorf("unsupported auth() member %q", member)
	}
}

var compareOps = map[expr.BinaryOp]string{
	expr.OpEQ:  "=",
	expr.OpNEQ: "<>",
	expr.OpLT:  "<",
	expr.OpLTE: "<=",
	expr.OpGT:  ">",
	expr.OpGTE: ">=",
}

func compareValues(alias string, viewer privacy.Viewer, left, right *expr.Expr, op expr.BinaryOp) (*sql.Predicate, error) {
	lv, err := compileValue(*left, alias, viewer)
	if err != nil {
		return nil, err
	}
	rv, err := compileValue(*right, alias, viewer)
	if err != nil {
		return nil, err
	}
	opStr := compareOps[op]
	return sql.RawPredicate(func(b *sql.Builder) {
		writeValue(b, lv)
		b.WriteString(" " + opStr + " ")
		writeValue(b, rv)
	}), nil
}

func writeValue(b *sql.Builder, v value) {
	if v.isCol {
		b.WriteString(v.col)
		return
	}
	b.Arg(v.arg)
}

func compileIn(alias string, viewer privacy.Viewer, left, right *expr.Expr) (*sql.Predicate, error) {
	lv, err := compileValue(*left, alias, viewer)
	if err != nil {
		return nil, err
	}
	var args []any
	switch {
	case right.Kind == expr.KindArray:
		for _, el := range right.Elements {
			v, err := compileValue(el, alias, viewer)
			if err != nil {
				return nil, err
			}
			if v.isCol {
				return nil, fmt.Errorf("`in` list elements must be literals")
			}
			args = append(args, v.arg)
		}
	default:
		rv, err := compileValue(*right, alias, viewer)
		if err != nil {
			return nil, err
		}
		if rv.isCol {
			return nil, fmt.Errorf("`in` right-hand side must be a literal array or auth()-derived list")
		}
		items, ok := rv.arg.([]string)
		if !ok {
			return nil, fmt.Errorf("`in` right-hand side must be an array")
		}
		for _, s := range items {
			args = append(args, s)
		}
	}
	if !lv.isCol {
		return nil, fmt.Errorf("`in` left-hand side must be a field reference")
	}
	return sql.In(lv.col, args...), nil
}

// compileCollection handles some/none/every (`?`, `!`, `^`) over a to-many
// relation field: a correlated EXISTS/NOT EXISTS subquery against the
// related model, joined back to alias and filtered by the compiled
// sub-predicate (evaluated with the relation's own alias as its "this").
func compileCollection(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, e expr.Expr, viewer privacy.Viewer) (*sql.Predicate, error) {
	if e.Left == nil || e.Left.Kind != expr.KindField {
		return nil, fmt.Errorf("collection predicate requires a relation field on the left")
	}
	f := m.Field(e.Left.Field)
	if f == nil || !f.IsRelation() {
		return nil, fmt.Errorf("field %q is not a relation", e.Left.Field)
	}
	relModel := schema.Model(f.Relation.Model)
	if relModel == nil {
		return nil, fmt.Errorf("relation %q references unknown model %q", f.Name, f.Relation.Model)
	}
	relAlias := alias + "$" + f.Name
	joinCond, err := joinPredicate(m, relModel, f, alias, relAlias)
	if err != nil {
		return nil, err
	}
	var sub *sql.Predicate
	if e.Right != nil {
		sub, err = Compile(schema, relModel, cap, relAlias, *e.Right, viewer)
		if err != nil {
			return nil, err
		}
	}

	switch e.Op {
	case expr.OpExists, expr.OpNotExists:
		where := sql.And(joinCond, sub)
		pred := sql.RawPredicate(func(b *sql.Builder) {
			b.WriteString("EXISTS (SELECT 1 FROM " + relModel.Table() + " AS " + relAlias + " WHERE ")
			where.Render(b)
			b.WriteString(")")
		})
		if e.Op == expr.OpNotExists {
			return sql.Not(pred), nil
		}
		return pred, nil
	case expr.OpAll:
		var negated *sql.Predicate
		if sub != nil {
			negated = sql.Not(sub)
		}
		where := sql.And(joinCond, negated)
		return sql.RawPredicate(func(b *sql.Builder) {
			b.WriteString("NOT EXISTS (SELECT 1 FROM " + relModel.Table() + " AS " + relAlias + " WHERE ")
			where.Render(b)
			b.WriteString(")")
		}), nil
	default:
		return nil, fmt.Errorf("unsupported collection operator %d", e.Op)
	}
}

// joinPredicate builds the column-equality predicate correlating relAlias
// back to alias through f's FK columns, handling owner/non-owner sides and
// implicit many-to-many join tables — the same three cases
// query/filter.go's relationJoin distinguishes.
func joinPredicate(m, relModel *model.ModelDef, f *model.FieldDef, alias, relAlias string) (*sql.Predicate, error) {
	opp := relModel.Field(f.Relation.Opposite)
	if opp != nil && model.IsManyToMany(f, opp) {
		jt := model.ResolveJoinTable(m.Name, f.Name, f.Relation.Model, f.Relation.Opposite)
		jtName := model.JoinTableName(m.Name, f.Relation.Model)
		jtAlias := alias + "$" + f.Name + "$jt"
		localCol, relCol := "B", "A"
		if jt.AModel == m.Name && jt.AField == f.Name {
			localCol, relCol = "A", "B"
		}
		return sql.RawPredicate(func(b *sql.Builder) {
			b.WriteString("EXISTS (SELECT 1 FROM " + jtName + " AS " + jtAlias + " WHERE ")
			b.WriteString(jtAlias + "." + localCol + " = " + alias + "." + firstID(m))
			b.WriteString(" AND ")
			b.WriteString(jtAlias + "." + relCol + " = " + relAlias + "." + firstID(relModel))
			b.WriteString(")")
		}), nil
	}
	if f.Relation.IsOwner() {
		return columnsEqual(f.Relation.Fields, f.Relation.References, alias, relAlias), nil
	}
	if opp == nil || opp.Relation == nil {
		return nil, fmt.Errorf("relation %q has no resolvable opposite side", f.Name)
	}
	return columnsEqual(opp.Relation.References, opp.Relation.Fields, alias, relAlias), nil
}

func columnsEqual(localCols, relCols []string, alias, relAlias string) *sql.Predicate {
	preds := make([]*sql.Predicate, len(localCols))
	for i := range localCols {
		lc, rc := alias+"."+localCols[i], relAlias+"."+relCols[i]
		preds[i] = sql.RawPredicate(func(b *sql.Builder) { b.WriteString(lc + " = " + rc) })
	}
	return sql.And(preds...)
}

func firstID(m *model.ModelDef) string {
	if len(m.IdFields) > 0 {
		return m.IdFields[0]
	}
	return "id"
}

// Row is the in-memory representation of a not-yet-inserted row, keyed by
// field name: the admission check's substitute for a SELECT against a row
// that does not exist yet.
type Row = map[string]any

// CheckAdmission evaluates m's create policy directly against row (the
// about-to-be-inserted field values), per spec.md §4.7's admission check,
// without issuing SQL: field/this references substitute the row's literal
// values, auth() resolves against viewer. A create policy that navigates a
// to-many relation (a collection predicate) cannot be evaluated this way —
// it returns a descriptive error rather than silently admitting the row; see
// DESIGN.md for why this case is out of scope.
func CheckAdmission(m *model.ModelDef, row Row, viewer privacy.Viewer) error {
	hasAllow, allowed := false, false
	for _, attr := range m.Policies {
		if !matchesOp(attr, OpCreate) {
			continue
		}
		v, err := evalLiteral(attr.Expr, row, viewer)
		if err != nil {
			return fmt.Errorf("policy: %s.create: %w", m.Name, err)
		}
		switch attr.Kind {
		case model.Allow:
			hasAllow = true
			allowed = allowed || v
		case model.Deny:
			if v {
				return accessgraph.NewRejectedByPolicyError(m.Name, accessgraph.PolicyOther)
			}
		}
	}
	if hasAllow && !allowed {
		return accessgraph.NewRejectedByPolicyError(m.Name, accessgraph.PolicyOther)
	}
	return nil
}

func evalLiteral(e expr.Expr, row Row, viewer privacy.Viewer) (bool, error) {
	switch e.Kind {
	case expr.KindLiteral:
		b, ok := e.Literal.(bool)
		if !ok {
			return false, fmt.Errorf("literal %v is not a boolean expression", e.Literal)
		}
		return b, nil
	case expr.KindField:
		switch v := row[e.Field].(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		default:
			return false, fmt.Errorf("field %q is not a boolean", e.Field)
		}
	case expr.KindUnary:
		v, err := evalLiteral(*e.Operand, row, viewer)
		return !v, err
	case expr.KindCall:
		if expr.IsAuthCall(e) {
			return viewer != nil, nil
		}
		return false, fmt.Errorf("unsupported boolean call %q", e.Name)
	case expr.KindBinary:
		switch e.Op {
		case expr.OpAnd:
			l, err := evalLiteral(*e.Left, row, viewer)
			if err != nil || !l {
				return false, err
			}
			return evalLiteral(*e.Right, row, viewer)
		case expr.OpOr:
			l, err := evalLiteral(*e.Left, row, viewer)
			if err != nil || l {
				return l, err
			}
			return evalLiteral(*e.Right, row, viewer)
		case expr.OpEQ, expr.OpNEQ, expr.OpLT, expr.OpLTE, expr.OpGT, expr.OpGTE:
			lv, err := evalValue(*e.Left, row, viewer)
			if err != nil {
				return false, err
			}
			rv, err := evalValue(*e.Right, row, viewer)
			if err != nil {
				return false, err
			}
			return compareLiterals(lv, rv, e.Op)
		case expr.OpIn:
			lv, err := evalValue(*e.Left, row, viewer)
			if err != nil {
				return false, err
			}
			items, err := evalArray(*e.Right, row, viewer)
			if err != nil {
				return false, err
			}
			for _, it := range items {
				if fmt.Sprint(it) == fmt.Sprint(lv) {
					return true, nil
				}
			}
			return false, nil
		case expr.OpExists, expr.OpNotExists, expr.OpAll:
			name := ""
			if e.Left != nil {
				name = e.Left.Field
			}
			return false, fmt.Errorf("create policy navigates relation %q; admission checks against an in-memory row cannot evaluate collection predicates", name)
		default:
			return false, fmt.Errorf("unsupported binary operator %d", e.Op)
		}
	default:
		return false, fmt.Errorf("expression kind %d cannot be evaluated as a create-time boolean", e.Kind)
	}
}

func evalValue(e expr.Expr, row Row, viewer privacy.Viewer) (any, error) {
	switch e.Kind {
	case expr.KindLiteral:
		return e.Literal, nil
	case expr.KindNull:
		return nil, nil
	case expr.KindField:
		return row[e.Field], nil
	case expr.KindMember:
		if e.Base == nil {
			return nil, fmt.Errorf("member expression missing base")
		}
		if expr.IsAuthCall(*e.Base) {
			return resolveAuthMember(e.Member, viewer)
		}
		if expr.IsThis(*e.Base) {
			return row[e.Member], nil
		}
		return nil, fmt.Errorf("unsupported member access base")
	default:
		return nil, fmt.Errorf("expression kind %d is not a scalar value", e.Kind)
	}
}

func evalArray(e expr.Expr, row Row, viewer privacy.Viewer) ([]any, error) {
	if e.Kind == expr.KindArray {
		out := make([]any, 0, len(e.Elements))
		for _, el := range e.Elements {
			v, err := evalValue(el, row, viewer)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	v, err := evalValue(e, row, viewer)
	if err != nil {
		return nil, err
	}
	switch items := v.(type) {
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, nil
	case []any:
		return items, nil
	default:
		return nil, fmt.Errorf("`in` right-hand side must be an array")
	}
}

func compareLiterals(l, r any, op expr.BinaryOp) (bool, error) {
	if op == expr.OpEQ {
		return fmt.Sprint(l) == fmt.Sprint(r) && (l == nil) == (r == nil), nil
	}
	if op == expr.OpNEQ {
		eq, err := compareLiterals(l, r, expr.OpEQ)
		return !eq, err
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		ls, rs := fmt.Sprint(l), fmt.Sprint(r)
		switch op {
		case expr.OpLT:
			return ls < rs, nil
		case expr.OpLTE:
			return ls <= rs, nil
		case expr.OpGT:
			return ls > rs, nil
		case expr.OpGTE:
			return ls >= rs, nil
		}
		return false, fmt.Errorf("unsupported comparison operator %d", op)
	}
	switch op {
	case expr.OpLT:
		return lf < rf, nil
	case expr.OpLTE:
		return lf <= rf, nil
	case expr.OpGT:
		return lf > rf, nil
	case expr.OpGTE:
		return lf >= rf, nil
	default:
		return false, fmt.Errorf("unsupported comparison operator %d", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// EvalQueryPolicy adapts RowFilter into a per-alias row-filtering decision,
// returned as an accessgraph.Policy so it can be installed directly on a
// Pipeline via WithPolicy.
type EvalQueryPolicy struct {
	Schema *model.Schema
	Cap    sql.Capability
	Viewer func(ctx context.Context) privacy.Viewer
}

// RowFilterFor is the entry point the query planner calls (wired by the
// client façade) to fetch the current operation's authorized-rows predicate
// for (model, alias).
func (p EvalQueryPolicy) RowFilterFor(ctx context.Context, m *model.ModelDef, alias string) (*sql.Predicate, error) {
	var viewer privacy.Viewer
	if p.Viewer != nil {
		viewer = p.Viewer(ctx)
	}
	return RowFilter(p.Schema, m, p.Cap, alias, OpRead, viewer)
}

// EvalQuery implements accessgraph.Policy. It never rejects a query: read
// access is enforced per row by the predicate RowFilterFor supplies to the
// planner, so a model without a read allow rule yields no rows rather than
// an error.
func (p EvalQueryPolicy) EvalQuery(ctx context.Context, q accessgraph.Query) error {
	m := p.Schema.Model(q.Type())
	if m == nil {
		return nil
	}
	for _, attr := range m.Policies {
		if matchesOp(attr, OpRead) && attr.Kind == model.Allow {
			return nil
		}
	}
	return nil
}

// EvalMutation implements accessgraph.Policy: it rejects mutation operations
// that have no matching allow rule and at least one declared policy (a
// schema with zero @@allow/@@deny attributes is unrestricted).
func (p EvalQueryPolicy) EvalMutation(ctx context.Context, m accessgraph.Mutation) error {
	md := p.Schema.Model(m.Type())
	if md == nil || len(md.Policies) == 0 {
		return nil
	}
	op := mutationOp(m.Op())
	hasAllow := false
	for _, attr := range md.Policies {
		if matchesOp(attr, op) && attr.Kind == model.Allow {
			hasAllow = true
			break
		}
	}
	if !hasAllow {
		return accessgraph.NewRejectedByPolicyError(md.Name, accessgraph.PolicyNoAccess)
	}
	return nil
}

func mutationOp(op accessgraph.Op) string {
	switch {
	case op.Is(accessgraph.OpCreate):
		return OpCreate
	case op.Is(accessgraph.OpUpdate), op.Is(accessgraph.OpUpdateOne):
		return OpUpdate
	case op.Is(accessgraph.OpDelete), op.Is(accessgraph.OpDeleteOne):
		return OpDelete
	default:
		return OpRead
	}
}
