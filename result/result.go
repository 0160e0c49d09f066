// Package result is the query planner's row decoder (C7): it scans rows
// back from the driver, coerces backend-native values to their declared
// field types, unpacks the JSON aggregates BuildRelationSelection produced,
// and restores caller-visible ordering for negative-take reads.
package result

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/query"
)

// M is a loosely-typed decoded row.
type M = map[string]any

// Decode scans every row in rows, decodes it per plan.Columns, and applies
// in-memory distinct deduplication and negative-take reversal as plan
// requires. cap picks the scan-destination shape for array-typed scalar
// columns (PostgreSQL needs a pq.Array-compatible pointer; other backends
// store arrays as JSON text and decode like any other JSON value).
func Decode(plan *query.Plan, cap sql.Capability, rows *sql.Rows) ([]M, error) {
	defer rows.Close()

	var out []M
	for rows.Next() {
		vals, err := scanRow(cap.Name(), plan.Columns, rows)
		if err != nil {
			return nil, err
		}
		row, err := decodeRow(plan.Columns, vals)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(plan.InMemoryDistinct) > 0 {
		out = dedupe(out, plan.InMemoryDistinct)
	}
	if plan.NegateTake {
		reverseRows(plan.Columns, out)
	}
	return out, nil
}

// scanRow builds one scan destination per projected column (positionally —
// the driver returns columns in exactly plan.Columns' order, since that is
// the order Build rendered the SELECT list in) and scans the row into them.
func scanRow(dialectName string, cols []query.Column, rows *sql.Rows) ([]any, error) {
	ptrs := make([]any, len(cols))
	for i, c := range cols {
		ptrs[i] = scanDest(dialectName, c)
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("result: scan: %w", err)
	}
	vals := make([]any, len(cols))
	for i, p := range ptrs {
		vals[i] = derefScanDest(p)
	}
	return vals, nil
}

// scanDest picks a Scan destination for c. Array-typed scalar columns on
// PostgreSQL need a pq.Array-compatible pointer (the driver parses the
// `{...}` literal only into one of those); everything else scans into a
// generic *any and is coerced afterward.
func scanDest(dialectName string, c query.Column) any {
	if dialectName == "postgres" && c.Kind == query.ColScalar && c.Field != nil && c.Field.Array {
		switch c.Field.Type {
		case model.TypeInt, model.TypeBigInt:
			return &pq.Int64Array{}
		case model.TypeFloat, model.TypeDecimal:
			return &pq.Float64Array{}
		case model.TypeBoolean:
			return &pq.BoolArray{}
		default:
			return &pq.StringArray{}
		}
	}
	return new(any)
}

func derefScanDest(p any) any {
	switch v := p.(type) {
	case *any:
		return *v
	case *pq.Int64Array:
		return []int64(*v)
	case *pq.Float64Array:
		return []float64(*v)
	case *pq.BoolArray:
		return []bool(*v)
	case *pq.StringArray:
		return []string(*v)
	default:
		return p
	}
}

// decodeRow turns one positionally-scanned set of raw driver values into a
// nested map, recursing into relation/delegate JSON payloads.
func decodeRow(cols []query.Column, vals []any) (M, error) {
	row := M{}
	for i, c := range cols {
		switch c.Kind {
		case query.ColScalar:
			v, err := coerceScalar(c.Field, vals[i])
			if err != nil {
				return nil, fmt.Errorf("result: field %s: %w", c.Field.Name, err)
			}
			row[c.Field.Name] = v
		case query.ColRelationToOne:
			v, err := decodeRelationObject(c, vals[i])
			if err != nil {
				return nil, err
			}
			row[c.Field.Name] = v
		case query.ColRelationToMany:
			v, err := decodeRelationArray(c, vals[i])
			if err != nil {
				return nil, err
			}
			row[c.Field.Name] = v
		case query.ColCount:
			v, err := decodeCount(vals[i])
			if err != nil {
				return nil, err
			}
			row["_count"] = v
		case query.ColDelegate:
			if err := mergeDelegate(c, vals[i], row); err != nil {
				return nil, err
			}
		}
	}
	return row, nil
}

// decodeRelationObject unpacks a to-one relation's JSON object payload, nil
// when the correlated subquery found no matching row.
func decodeRelationObject(c query.Column, raw any) (any, error) {
	text, ok := jsonText(raw)
	if !ok || text == "" || text == "null" {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("result: relation %s: %w", c.Field.Name, err)
	}
	return decodeJSONObject(c.Nested, obj)
}

// decodeRelationArray unpacks a to-many relation's JSON array of objects.
func decodeRelationArray(c query.Column, raw any) ([]M, error) {
	text, ok := jsonText(raw)
	if !ok || text == "" || text == "null" {
		return []M{}, nil
	}
	var arr []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return nil, fmt.Errorf("result: relation %s: %w", c.Field.Name, err)
	}
	out := make([]M, 0, len(arr))
	for _, obj := range arr {
		row, err := decodeJSONObject(c.Nested, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func decodeJSONObject(nested []query.Column, obj map[string]json.RawMessage) (M, error) {
	row := M{}
	for _, nc := range nested {
		raw, present := obj[nc.Field.Name]
		if !present {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("result: field %s: %w", nc.Field.Name, err)
		}
		coerced, err := coerceScalar(nc.Field, v)
		if err != nil {
			return nil, err
		}
		row[nc.Field.Name] = coerced
	}
	return row, nil
}

// decodeCount unpacks a `_count` column's JSON object of relation-name ->
// count, parsing the string form some drivers return JSON aggregates as.
func decodeCount(raw any) (M, error) {
	text, ok := jsonText(raw)
	if !ok || text == "" {
		return M{}, nil
	}
	var obj map[string]int64
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("result: _count: %w", err)
	}
	out := make(M, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out, nil
}

// mergeDelegate unpacks a delegate descendant's JSON payload and flattens
// its own fields directly into row, dropping the column silently when the
// joined id came back null (the descendant row does not exist).
func mergeDelegate(c query.Column, raw any, row M) error {
	text, ok := jsonText(raw)
	if !ok || text == "" || text == "null" {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return fmt.Errorf("result: delegate %s: %w", c.RelationModel, err)
	}
	id := firstIDKey(obj)
	if id == "" {
		return nil
	}
	var idVal any
	if err := json.Unmarshal(obj[id], &idVal); err != nil || idVal == nil {
		return nil // joined descendant does not exist for this row
	}
	decoded, err := decodeJSONObject(c.Nested, obj)
	if err != nil {
		return err
	}
	for k, v := range decoded {
		row[k] = v
	}
	return nil
}

// firstIDKey finds the conventional single-field id key delegateColumns
// always includes first in the JSON payload (its own field list never
// contains "id" twice, so a plain lookup suffices for the common case).
func firstIDKey(obj map[string]json.RawMessage) string {
	if _, ok := obj["id"]; ok {
		return "id"
	}
	for k := range obj {
		return k
	}
	return ""
}

func jsonText(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// coerceScalar normalizes a scanned driver value to field's declared type.
func coerceScalar(f *model.FieldDef, raw any) (any, error) {
	if f == nil {
		return raw, nil
	}
	if f.Array {
		if raw == nil {
			return []any{}, nil // null scalar-list canonicalizes to empty list
		}
		// PostgreSQL array columns already arrive pre-decoded as a typed Go
		// slice (scanDest used a pq.*Array destination); SQLite stores
		// arrays as JSON text.
		switch v := raw.(type) {
		case []int64, []float64, []bool, []string:
			return v, nil
		}
		text, ok := jsonText(raw)
		if !ok {
			return raw, nil
		}
		var arr []any
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}
	if raw == nil {
		return nil, nil
	}
	switch f.Type {
	case model.TypeBoolean:
		return coerceBool(raw)
	case model.TypeDateTime:
		return coerceDateTime(raw)
	case model.TypeBytes:
		return coerceBytes(raw)
	case model.TypeDecimal:
		return coerceDecimal(raw)
	case model.TypeBigInt:
		return coerceBigInt(raw)
	case model.TypeJSON:
		return coerceJSON(raw)
	default:
		return raw, nil
	}
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return coerceBool(string(v))
	case string:
		return v == "1" || v == "t" || v == "true" || v == "TRUE", nil
	default:
		return false, fmt.Errorf("cannot coerce %T to bool", raw)
	}
}

func coerceDateTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case []byte:
		return coerceDateTime(string(v))
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", v); err == nil {
			return t.UTC(), nil
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized DateTime value %q", v)
	default:
		return time.Time{}, fmt.Errorf("cannot coerce %T to DateTime", raw)
	}
}

func coerceBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to Bytes", raw)
	}
}

// coerceDecimal keeps the driver's exact textual form rather than a binary
// float, since no arbitrary-precision decimal library appeared in the
// retrieval pack and a float64 would silently lose the fixed-scale
// guarantee the field's declared precision promises.
func coerceDecimal(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("cannot coerce %T to Decimal", raw)
	}
}

// coerceBigInt uses math/big.Int, the standard library's arbitrary-precision
// integer type — the natural fit here since BigInt needs no decimal scale
// tracking, just unbounded magnitude.
func coerceBigInt(raw any) (*big.Int, error) {
	n := new(big.Int)
	switch v := raw.(type) {
	case int64:
		n.SetInt64(v)
		return n, nil
	case []byte:
		if _, ok := n.SetString(string(v), 10); !ok {
			return nil, fmt.Errorf("invalid BigInt literal %q", v)
		}
		return n, nil
	case string:
		if _, ok := n.SetString(v, 10); !ok {
			return nil, fmt.Errorf("invalid BigInt literal %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to BigInt", raw)
	}
}

func coerceJSON(raw any) (any, error) {
	text, ok := jsonText(raw)
	if !ok {
		return raw, nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// dedupe keeps the first row seen for each distinct combination of cols,
// emulating DISTINCT ON in memory for dialects that lack it. Run before
// negate-take reversal, so "first occurrence" tracks SQL ORDER BY order
// (the open question spec.md flags — whether _count should reflect pre- or
// post-distinct rows — is resolved here as "pre": _count is computed
// per fetched row before dedup runs, same as the underlying SELECT would).
func dedupe(rows []M, cols []string) []M {
	seen := make(map[string]bool, len(rows))
	out := make([]M, 0, len(rows))
	for _, row := range rows {
		key := distinctKey(row, cols)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func distinctKey(row M, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%v", row[c])
	}
	return fmt.Sprintf("%v", parts)
}

// reverseRows restores negative-take rows to original order, and applies
// the same reversal recursively to every included to-many relation per
// spec.md §4.5.
func reverseRows(cols []query.Column, rows []M) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	for _, row := range rows {
		for _, c := range cols {
			if c.Kind != query.ColRelationToMany {
				continue
			}
			nested, ok := row[c.Field.Name].([]M)
			if !ok {
				continue
			}
			reverseRows(c.Nested, nested)
		}
	}
}
