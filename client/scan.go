package client

import "github.com/polyquery/accessgraph/dialect/sql"

// scanRows decodes every row in rows into a map keyed by column name, for
// raw statements built outside the query planner (count/aggregate/groupBy,
// and QueryRaw).
func scanRows(rows *sql.Rows) ([]M, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []M
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(M, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// scanScalarInt64 decodes a single-column, single-row result (a bare
// COUNT(*) projection) into an int64.
func scanScalarInt64(rows *sql.Rows) (int64, error) {
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}
