package query

import (
	"fmt"

	"golang.org/x/text/cases"

	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/validate"
)

// foldArg normalizes s for a mode:"insensitive" comparison on a backend
// whose native LIKE/equality isn't Unicode-aware (SQLite's LOWER() only
// folds ASCII). PostgreSQL's ILIKE already case-folds correctly via its
// locale, so folding here would be redundant there.
func foldArg(cap sql.Capability, s string) string {
	if cap.StringCasing().SupportsILike {
		return s
	}
	return cases.Fold().String(s)
}

// M is a loosely-typed JSON-like argument map.
type M = map[string]any

// RawExpr is a caller-supplied thunk rendering a raw WHERE fragment; it is
// the same type as validate.RawExpr, so a "$expr" value that passes
// validation is accepted here. The fragment may use "?" as a positional
// placeholder marker regardless of the active dialect; BuildFilter
// translates it to the dialect's own placeholder syntax while rendering.
type RawExpr = validate.RawExpr

// BuildFilter compiles a where-clause map into a SQL predicate bound to
// alias, recursing into relation filters by resolving related models
// through schema.
func BuildFilter(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, where M) (*sql.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}
	var preds []*sql.Predicate
	for k, v := range where {
		switch k {
		case "$expr":
			fn, ok := v.(RawExpr)
			if !ok {
				return nil, fmt.Errorf("query: $expr must be a validate.RawExpr thunk")
			}
			frag, args := fn(alias)
			preds = append(preds, rawFragment(frag, args))
		case "AND":
			p, err := logicalCombine(schema, m, cap, alias, v, sql.And)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		case "OR":
			p, err := logicalCombine(schema, m, cap, alias, v, sql.Or)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		case "NOT":
			p, err := logicalCombine(schema, m, cap, alias, v, sql.And)
			if err != nil {
				return nil, err
			}
			if p != nil {
				preds = append(preds, sql.Not(p))
			}
		default:
			f := m.Field(k)
			if f == nil {
				return nil, fmt.Errorf("query: %s has no field %q", m.Name, k)
			}
			var (
				p   *sql.Predicate
				err error
			)
			switch {
			case f.IsRelation():
				p, err = relationFilter(schema, m, f, cap, alias, v)
			case f.Array:
				p, err = arrayFilter(cap, alias+"."+k, v)
			default:
				p, err = scalarFilter(cap, alias+"."+k, v)
			}
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
	}
	return sql.And(preds...), nil
}

func logicalCombine(schema *model.Schema, m *model.ModelDef, cap sql.Capability, alias string, v any, combine func(...*sql.Predicate) *sql.Predicate) (*sql.Predicate, error) {
	var clauses []M
	switch vv := v.(type) {
	case M:
		clauses = []M{vv}
	case []M:
		clauses = vv
	default:
		return nil, fmt.Errorf("query: logical operator expects a where clause or list of where clauses")
	}
	preds := make([]*sql.Predicate, 0, len(clauses))
	for _, c := range clauses {
		p, err := BuildFilter(schema, m, cap, alias, c)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}
	return combine(preds...), nil
}

// rawFragment translates a "?"-placeholder SQL fragment into the active
// dialect's own placeholder syntax as it renders, via Builder.Arg.
func rawFragment(frag string, args []any) *sql.Predicate {
	return sql.RawPredicate(func(b *sql.Builder) {
		ai := 0
		for i := 0; i < len(frag); i++ {
			if frag[i] == '?' && ai < len(args) {
				b.Arg(args[ai])
				ai++
				continue
			}
			b.WriteByte(frag[i])
		}
	})
}

func scalarFilter(cap sql.Capability, col string, v any) (*sql.Predicate, error) {
	obj, ok := v.(M)
	if !ok {
		return sql.EQ(col, v), nil
	}
	insensitive := obj["mode"] == "insensitive"
	var preds []*sql.Predicate
	for k, val := range obj {
		switch k {
		case "mode":
			continue
		case "equals":
			if insensitive {
				preds = append(preds, sql.EqualFold(col, foldArg(cap, fmt.Sprint(val))))
			} else {
				preds = append(preds, sql.EQ(col, val))
			}
		case "in":
			preds = append(preds, sql.In(col, toArgs(val)...))
		case "notIn":
			preds = append(preds, sql.NotIn(col, toArgs(val)...))
		case "lt":
			preds = append(preds, sql.LT(col, val))
		case "lte":
			preds = append(preds, sql.LTE(col, val))
		case "gt":
			preds = append(preds, sql.GT(col, val))
		case "gte":
			preds = append(preds, sql.GTE(col, val))
		case "not":
			p, err := scalarFilter(cap, col, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, sql.Not(p))
		case "startsWith":
			s := fmt.Sprint(val)
			if insensitive {
				preds = append(preds, sql.HasPrefixFold(col, foldArg(cap, s)))
			} else {
				preds = append(preds, sql.HasPrefix(col, s))
			}
		case "endsWith":
			s := fmt.Sprint(val)
			if insensitive {
				preds = append(preds, sql.HasSuffixFold(col, foldArg(cap, s)))
			} else {
				preds = append(preds, sql.HasSuffix(col, s))
			}
		case "contains":
			s := fmt.Sprint(val)
			if insensitive {
				preds = append(preds, sql.ContainsFold(col, foldArg(cap, s)))
			} else {
				preds = append(preds, sql.Contains(col, s))
			}
		default:
			return nil, fmt.Errorf("query: unknown scalar filter operator %q", k)
		}
	}
	return sql.And(preds...), nil
}

func toArgs(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case nil:
		return nil
	default:
		return []any{vs}
	}
}

// arrayFilter compiles equals/has/hasEvery/hasSome/isEmpty against an
// array-typed scalar column. SQLite stores arrays as JSON text, so
// membership is tested via json_each; PostgreSQL uses native array
// operators.
func arrayFilter(cap sql.Capability, col string, v any) (*sql.Predicate, error) {
	obj, ok := v.(M)
	if !ok {
		return nil, fmt.Errorf("query: array field filter must be an object")
	}
	for k, val := range obj {
		switch k {
		case "isEmpty":
			empty, _ := val.(bool)
			if cap.Name() == "postgres" {
				if empty {
					return sql.RawPredicate(func(b *sql.Builder) {
						b.WriteString("COALESCE(array_length(").WriteString(col).WriteString(", 1), 0) = 0")
					}), nil
				}
				return sql.RawPredicate(func(b *sql.Builder) {
					b.WriteString("COALESCE(array_length(").WriteString(col).WriteString(", 1), 0) > 0")
				}), nil
			}
			op := "="
			if !empty {
				op = "<>"
			}
			return sql.RawPredicate(func(b *sql.Builder) {
				b.WriteString("json_array_length(").WriteString(col).WriteString(") " + op + " 0")
			}), nil
		case "has":
			return memberPredicate(cap, col, val), nil
		case "hasEvery":
			items := toArgs(val)
			preds := make([]*sql.Predicate, len(items))
			for i, it := range items {
				preds[i] = memberPredicate(cap, col, it)
			}
			return sql.And(preds...), nil
		case "hasSome":
			items := toArgs(val)
			preds := make([]*sql.Predicate, len(items))
			for i, it := range items {
				preds[i] = memberPredicate(cap, col, it)
			}
			return sql.Or(preds...), nil
		case "equals":
			return sql.EQ(col, val), nil
		default:
			return nil, fmt.Errorf("query: unknown array filter operator %q", k)
		}
	}
	return nil, nil
}

func memberPredicate(cap sql.Capability, col string, v any) *sql.Predicate {
	if cap.Name() == "postgres" {
		return sql.RawPredicate(func(b *sql.Builder) {
			b.Arg(v)
			b.WriteString(" = ANY(").WriteString(col).WriteString(")")
		})
	}
	return sql.RawPredicate(func(b *sql.Builder) {
		b.WriteString("EXISTS (SELECT 1 FROM json_each(").WriteString(col).WriteString(") WHERE json_each.value = ")
		b.Arg(v)
		b.WriteString(")")
	})
}

// relationFilter compiles is/isNot (to-one) or some/every/none (to-many)
// into a correlated EXISTS/NOT EXISTS subquery against the related model.
func relationFilter(schema *model.Schema, m *model.ModelDef, f *model.FieldDef, cap sql.Capability, alias string, v any) (*sql.Predicate, error) {
	obj, ok := v.(M)
	if !ok {
		return nil, fmt.Errorf("query: relation filter for %q must be an object", f.Name)
	}
	relModel := schema.Model(f.Relation.Model)
	if relModel == nil {
		return nil, fmt.Errorf("query: relation %q references unknown model %q", f.Name, f.Relation.Model)
	}
	relAlias := alias + "$" + f.Name
	joinCond, err := relationJoin(m, relModel, f, alias, relAlias)
	if err != nil {
		return nil, err
	}
	existsWith := func(nested M) (*sql.Predicate, error) {
		inner, err := BuildFilter(schema, relModel, cap, relAlias, nested)
		if err != nil {
			return nil, err
		}
		where := sql.And(joinCond, inner)
		return sql.RawPredicate(func(b *sql.Builder) {
			b.WriteString("EXISTS (SELECT 1 FROM " + relModel.Table() + " AS " + relAlias + " WHERE ")
			where.Render(b)
			b.WriteString(")")
		}), nil
	}
	if f.IsToMany() {
		var preds []*sql.Predicate
		for k, nested := range obj {
			nm, _ := nested.(M)
			switch k {
			case "some":
				p, err := existsWith(nm)
				if err != nil {
					return nil, err
				}
				preds = append(preds, p)
			case "none":
				p, err := existsWith(nm)
				if err != nil {
					return nil, err
				}
				preds = append(preds, sql.Not(p))
			case "every":
				// every(P) == NOT EXISTS(row matching join AND NOT P)
				notP, err := BuildFilter(schema, relModel, cap, relAlias, nm)
				if err != nil {
					return nil, err
				}
				var negated *sql.Predicate
				if notP != nil {
					negated = sql.Not(notP)
				}
				where := sql.And(joinCond, negated)
				preds = append(preds, sql.RawPredicate(func(b *sql.Builder) {
					b.WriteString("NOT EXISTS (SELECT 1 FROM " + relModel.Table() + " AS " + relAlias + " WHERE ")
					where.Render(b)
					b.WriteString(")")
				}))
			default:
				return nil, fmt.Errorf("query: unknown to-many relation operator %q", k)
			}
		}
		return sql.And(preds...), nil
	}
	var preds []*sql.Predicate
	for k, nested := range obj {
		nm, _ := nested.(M)
		switch k {
		case "is":
			p, err := existsWith(nm)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		case "isNot":
			p, err := existsWith(nm)
			if err != nil {
				return nil, err
			}
			preds = append(preds, sql.Not(p))
		default:
			return nil, fmt.Errorf("query: unknown to-one relation operator %q", k)
		}
	}
	return sql.And(preds...), nil
}

// relationJoin returns the predicate correlating relAlias back to alias
// through a relation field's FK columns, handling both owner and non-owner
// sides and implicit many-to-many join tables.
func relationJoin(m, relModel *model.ModelDef, f *model.FieldDef, alias, relAlias string) (*sql.Predicate, error) {
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
		return joinOn(f.Relation.Fields, f.Relation.References, alias, relAlias), nil
	}
	if opp == nil || opp.Relation == nil {
		return nil, fmt.Errorf("query: relation %q has no resolvable opposite side", f.Name)
	}
	return joinOn(opp.Relation.References, opp.Relation.Fields, alias, relAlias), nil
}

// joinOn builds the "alias.local = relAlias.rel" column-equality predicate
// that correlates a relation's subquery back to its parent row.
func joinOn(localCols, relCols []string, alias, relAlias string) *sql.Predicate {
	preds := make([]*sql.Predicate, len(localCols))
	for i := range localCols {
		lc, rc := alias+"."+localCols[i], relAlias+"."+relCols[i]
		preds[i] = sql.RawPredicate(func(b *sql.Builder) {
			b.WriteString(lc + " = " + rc)
		})
	}
	return sql.And(preds...)
}

func firstID(m *model.ModelDef) string {
	if len(m.IdFields) > 0 {
		return m.IdFields[0]
	}
	return "id"
}
