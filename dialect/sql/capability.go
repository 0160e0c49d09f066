package sql

// StringCasingBehavior describes how a dialect handles case-insensitive
// string comparison, so the filter compiler can choose between a native
// operator and an emulated LOWER()-wrapped one.
type StringCasingBehavior struct {
	// SupportsILike reports whether the dialect has a native
	// case-insensitive LIKE operator (PostgreSQL's ILIKE).
	SupportsILike bool
	// LikeCaseSensitive reports whether the dialect's plain LIKE operator
	// is case-sensitive (PostgreSQL) or not (SQLite, by default, for ASCII).
	LikeCaseSensitive bool
}

// Capability is implemented once per backend (SQLite, PostgreSQL) and
// abstracts every point where the query planner, mutation orchestrator, or
// policy compiler would otherwise need to branch on the dialect name. Each
// method either emits dialect-native SQL or falls back to an emulation that
// behaves identically from the caller's perspective.
type Capability interface {
	// Name returns the dialect.SQLite/dialect.Postgres constant.
	Name() string

	// BuildRelationSelection returns a scalar subquery expression projecting
	// a related row (toMany=false) or a JSON array of related rows
	// (toMany=true) as a single column value, correlated to parentAlias via
	// fkCol/pkCol.
	BuildRelationSelection(parentAlias, relTable, relAlias, fkCol, pkCol string, toMany bool, cols []string) (expr string, args []any)

	// BuildJSONObject returns an expression building a single JSON object
	// from column-name -> SQL-expression pairs, used for relation selection
	// and for synthesizing the `_count` aggregate column.
	BuildJSONObject(pairs []JSONPair) string

	// BuildCountAggregate returns a scalar subquery expression counting rows
	// of relTable that reference parentAlias.pkCol via fkCol.
	BuildCountAggregate(parentAlias, relTable, relAlias, fkCol, pkCol string) string

	// CastText wraps expr in a dialect-appropriate cast to text, used when
	// comparing a non-string column with a string pattern.
	CastText(expr string) string

	// TransformPrimitive adapts a decoded Go value to the representation the
	// driver expects for the given builtin type/array-ness, e.g. marshaling
	// array fields to JSON text on SQLite, or handing back a pq.Array on
	// PostgreSQL.
	TransformPrimitive(v any, builtin string, isArray bool) any

	// SupportsDistinctOn reports whether SELECT DISTINCT ON (...) is
	// available (PostgreSQL); when false, the planner deduplicates rows in
	// memory after decoding.
	SupportsDistinctOn() bool
	// SupportsUpdateWithLimit reports whether UPDATE ... LIMIT n is
	// accepted; when false, the orchestrator emulates it with a
	// WHERE id IN (SELECT id FROM ... LIMIT n) subquery.
	SupportsUpdateWithLimit() bool
	// SupportsDeleteWithLimit is the DELETE analogue of
	// SupportsUpdateWithLimit.
	SupportsDeleteWithLimit() bool

	// StringCasing reports the dialect's case-insensitive-match behavior.
	StringCasing() StringCasingBehavior
}

// JSONPair is one key/expression pair passed to BuildJSONObject.
type JSONPair struct {
	Key  string
	Expr string
}
