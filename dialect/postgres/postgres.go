// Package postgres wires the lib/pq driver into the engine and implements
// the sql.Capability contract for the PostgreSQL backend: native DISTINCT
// ON, json_build_object/json_agg aggregation, and ILIKE case-insensitive
// matching. UPDATE/DELETE ... LIMIT are not native to PostgreSQL, so those
// capability flags are reported false and the orchestrator emulates them.
package postgres

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
)

// Capability implements sql.Capability for PostgreSQL.
type Capability struct{}

var _ sql.Capability = Capability{}

// Name returns "postgres".
func (Capability) Name() string { return dialect.Postgres }

// BuildRelationSelection emits a correlated scalar subquery, aggregating
// to-many relations with json_agg.
func (c Capability) BuildRelationSelection(parentAlias, relTable, relAlias, fkCol, pkCol string, toMany bool, cols []string) (string, []any) {
	obj := c.BuildJSONObject(columnsToPairs(cols, relAlias))
	var b strings.Builder
	b.WriteString("(SELECT ")
	if toMany {
		b.WriteString("COALESCE(json_agg(")
		b.WriteString(obj)
		b.WriteString("), '[]'::json)")
	} else {
		b.WriteString(obj)
	}
	b.WriteString(" FROM ")
	b.WriteString(relTable)
	b.WriteString(" AS ")
	b.WriteString(relAlias)
	b.WriteString(" WHERE ")
	b.WriteString(relAlias)
	b.WriteString(".")
	b.WriteString(fkCol)
	b.WriteString(" = ")
	b.WriteString(parentAlias)
	b.WriteString(".")
	b.WriteString(pkCol)
	if !toMany {
		b.WriteString(" LIMIT 1")
	}
	b.WriteString(")")
	return b.String(), nil
}

func columnsToPairs(cols []string, alias string) []sql.JSONPair {
	pairs := make([]sql.JSONPair, len(cols))
	for i, c := range cols {
		pairs[i] = sql.JSONPair{Key: c, Expr: alias + "." + c}
	}
	return pairs
}

// BuildJSONObject renders json_build_object('k1', v1, 'k2', v2, ...).
func (Capability) BuildJSONObject(pairs []sql.JSONPair) string {
	var b strings.Builder
	b.WriteString("json_build_object(")
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteLit(p.Key))
		b.WriteString(", ")
		b.WriteString(p.Expr)
	}
	b.WriteString(")")
	return b.String()
}

// BuildCountAggregate emits a correlated COUNT(*) subquery.
func (Capability) BuildCountAggregate(parentAlias, relTable, relAlias, fkCol, pkCol string) string {
	return "(SELECT COUNT(*) FROM " + relTable + " AS " + relAlias +
		" WHERE " + relAlias + "." + fkCol + " = " + parentAlias + "." + pkCol + ")"
}

// CastText renders expr::text.
func (Capability) CastText(expr string) string { return expr + "::text" }

// TransformPrimitive adapts decoded values for PostgreSQL parameter binding,
// wrapping Go slices in pq.Array so lib/pq emits a native array literal
// instead of a JSON-encoded string.
func (Capability) TransformPrimitive(v any, builtin string, isArray bool) any {
	if isArray {
		switch vs := v.(type) {
		case []string:
			return pq.Array(vs)
		case []int64:
			return pq.Array(vs)
		case []float64:
			return pq.Array(vs)
		default:
			return pq.Array(v)
		}
	}
	switch builtin {
	case "Decimal", "BigInt":
		if n, ok := v.(float64); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return v
}

// SupportsDistinctOn is true: PostgreSQL's native DISTINCT ON.
func (Capability) SupportsDistinctOn() bool { return true }

// SupportsUpdateWithLimit is false: PostgreSQL has no UPDATE ... LIMIT.
func (Capability) SupportsUpdateWithLimit() bool { return false }

// SupportsDeleteWithLimit is false: PostgreSQL has no DELETE ... LIMIT.
func (Capability) SupportsDeleteWithLimit() bool { return false }

// StringCasing reports PostgreSQL's case-sensitive LIKE and native ILIKE.
func (Capability) StringCasing() sql.StringCasingBehavior {
	return sql.StringCasingBehavior{SupportsILike: true, LikeCaseSensitive: true}
}

func quoteLit(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Open opens a PostgreSQL connection at dsn and returns it wrapped as a
// dialect.Driver.
func Open(dsn string) (*sql.Driver, error) {
	return sql.Open(dialect.Postgres, dsn)
}
