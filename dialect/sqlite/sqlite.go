// Package sqlite wires the modernc.org/sqlite driver into the engine and
// implements the sql.Capability contract for the SQLite backend: JSON
// aggregation via json_object/json_group_array, no DISTINCT ON, and
// UPDATE/DELETE ... LIMIT support (modernc.org/sqlite is built with
// SQLITE_ENABLE_UPDATE_DELETE_LIMIT).
package sqlite

import (
	"encoding/json"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
)

// Capability implements sql.Capability for SQLite.
type Capability struct{}

var _ sql.Capability = Capability{}

// Name returns "sqlite".
func (Capability) Name() string { return dialect.SQLite }

// BuildRelationSelection emits a correlated scalar subquery. For a to-many
// relation the row projection is aggregated with json_group_array; for a
// to-one relation the subquery is limited to one row.
func (c Capability) BuildRelationSelection(parentAlias, relTable, relAlias, fkCol, pkCol string, toMany bool, cols []string) (string, []any) {
	obj := rowObject(cols, relAlias)
	var b strings.Builder
	b.WriteString("(SELECT ")
	if toMany {
		b.WriteString("json_group_array(")
		b.WriteString(obj)
		b.WriteString(")")
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

func rowObject(cols []string, alias string) string {
	pairs := make([]sql.JSONPair, len(cols))
	for i, c := range cols {
		pairs[i] = sql.JSONPair{Key: c, Expr: alias + "." + c}
	}
	return Capability{}.BuildJSONObject(pairs)
}

// BuildJSONObject renders json_object('k1', v1, 'k2', v2, ...).
func (Capability) BuildJSONObject(pairs []sql.JSONPair) string {
	var b strings.Builder
	b.WriteString("json_object(")
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

// CastText renders CAST(expr AS TEXT).
func (Capability) CastText(expr string) string { return "CAST(" + expr + " AS TEXT)" }

// TransformPrimitive adapts decoded values for SQLite parameter binding:
// array-typed scalar fields have no native column type, so they are
// marshaled to a JSON text column.
func (Capability) TransformPrimitive(v any, builtin string, isArray bool) any {
	if isArray {
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	}
	switch builtin {
	case "Decimal", "BigInt":
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(n, 10)
		}
	}
	return v
}

// SupportsDistinctOn is false: SQLite has no DISTINCT ON extension.
func (Capability) SupportsDistinctOn() bool { return false }

// SupportsUpdateWithLimit is true for modernc.org/sqlite builds.
func (Capability) SupportsUpdateWithLimit() bool { return true }

// SupportsDeleteWithLimit is true for modernc.org/sqlite builds.
func (Capability) SupportsDeleteWithLimit() bool { return true }

// StringCasing reports SQLite's default ASCII-only case-insensitive LIKE,
// with no native ILIKE operator.
func (Capability) StringCasing() sql.StringCasingBehavior {
	return sql.StringCasingBehavior{SupportsILike: false, LikeCaseSensitive: false}
}

func quoteLit(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Open opens a SQLite database at dsn (a file path or "file::memory:") and
// returns it wrapped as a dialect.Driver.
func Open(dsn string) (*sql.Driver, error) {
	return sql.Open(dialect.SQLite, dsn)
}
