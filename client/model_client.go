package client

import (
	"context"
	"fmt"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/mutate"
	"github.com/polyquery/accessgraph/plugin"
	"github.com/polyquery/accessgraph/query"
	"github.com/polyquery/accessgraph/result"
	"github.com/polyquery/accessgraph/validate"
)

// M is a loosely-typed JSON-like argument/result map, shared across every
// CRUD method on ModelClient.
type M = map[string]any

// FindArgs is the argument shape for findFirst/findMany; FindUnique takes a
// bare Where instead since it has no ordering/pagination surface.
type FindArgs struct {
	Where    M
	Select   M
	Include  M
	Omit     M
	OrderBy  []M
	Cursor   M
	Distinct []string
	Skip     *int
	Take     *int
}

// CountArgs is the argument shape for Count.
type CountArgs struct {
	Where   M
	Skip    *int
	Take    *int
	OrderBy []M
	Select  M
}

// AggregateArgs is the argument shape for Aggregate.
type AggregateArgs struct {
	Where M
	Count M
	Avg   M
	Sum   M
	Min   M
	Max   M
}

// GroupByArgs is the argument shape for GroupBy.
type GroupByArgs struct {
	By      []string
	Where   M
	Having  M
	OrderBy []M
}

// ModelClient exposes the CRUD surface (§6) for one model, dispatched at
// runtime against its *model.ModelDef rather than a generated per-entity
// type — this engine consumes model.Schema directly, with no codegen step.
type ModelClient struct {
	name string
	c    *Client
}

func (mc *ModelClient) def() (*model.ModelDef, error) {
	m := mc.c.schema.Model(mc.name)
	if m == nil {
		return nil, fmt.Errorf("client: unknown model %q", mc.name)
	}
	return m, nil
}

func (mc *ModelClient) orchestrator(m *model.ModelDef) *mutate.Orchestrator {
	return &mutate.Orchestrator{
		Schema: mc.c.schema,
		Model:  m,
		Cap:    mc.c.cap,
		Conn:   mc.c.driver,
		Viewer: mc.c.viewer,
	}
}

// rowPolicyFor fetches the current operation's authorized-rows predicate
// for m's root alias from the client's installed policy, if any.
func (mc *ModelClient) rowPolicyFor(ctx context.Context, m *model.ModelDef, alias string) (*sql.Predicate, error) {
	p, ok := mc.c.pipeline.Policy.(interface {
		RowFilterFor(ctx context.Context, m *model.ModelDef, alias string) (*sql.Predicate, error)
	})
	if !ok {
		return nil, nil
	}
	return p.RowFilterFor(ctx, m, alias)
}

// runFind validates and runs a find-style query end to end: validate ->
// query.Build -> plugin pipeline -> driver -> result.Decode.
func (mc *ModelClient) runFind(ctx context.Context, op string, unique bool, a FindArgs) ([]M, error) {
	rows, _, err := mc.runFindPlan(ctx, op, unique, a)
	return rows, err
}

// runFindPlan is runFind plus the compiled *query.Plan, so FindMany can
// derive NextCursor/PrevCursor tokens from the plan's resolved order tuple
// without re-deriving it from raw OrderBy args.
func (mc *ModelClient) runFindPlan(ctx context.Context, op string, unique bool, a FindArgs) ([]M, *query.Plan, error) {
	m, err := mc.def()
	if err != nil {
		return nil, nil, err
	}
	va := &validate.FindArgs{
		Where: a.Where, Select: a.Select, Include: a.Include, Omit: a.Omit,
		OrderBy: a.OrderBy, Cursor: a.Cursor, Distinct: a.Distinct, Skip: a.Skip, Take: a.Take,
	}
	if err := validate.ValidateFind(m, op, va, unique); err != nil {
		return nil, nil, err
	}
	rowPolicy, err := mc.rowPolicyFor(ctx, m, "t0")
	if err != nil {
		return nil, nil, err
	}
	qa := &query.Args{
		Where: a.Where, Select: a.Select, Include: a.Include, Omit: a.Omit,
		OrderBy: a.OrderBy, Cursor: a.Cursor, Distinct: a.Distinct, Skip: a.Skip, Take: a.Take,
		RowPolicy: rowPolicy,
	}
	plan, err := query.Build(mc.c.schema, m, mc.c.cap, op, qa)
	if err != nil {
		return nil, nil, err
	}

	base := accessgraph.QuerierFunc(func(ctx context.Context, q accessgraph.Query) (accessgraph.Value, error) {
		stmt, args := plan.Selector.Query()
		if plan.ContextComment != "" {
			stmt += plan.ContextComment
		}
		var rows sql.Rows
		if err := mc.c.driver.Query(ctx, stmt, args, &rows); err != nil {
			return nil, accessgraph.NewQueryError(m.Name, op, err)
		}
		out, err := result.Decode(plan, mc.c.cap, &rows)
		if err != nil {
			return nil, accessgraph.NewQueryError(m.Name, op, err)
		}
		return out, nil
	})
	v, err := mc.c.pipeline.QuerierChain(base).Query(ctx, query.NewWrapper(plan, op))
	if err != nil {
		return nil, nil, err
	}
	out, _ := v.([]M)
	return out, plan, nil
}

// FindUnique returns the single row matching a unique where, or nil if none
// matched.
func (mc *ModelClient) FindUnique(ctx context.Context, where M) (M, error) {
	rows, err := mc.runFind(ctx, "findUnique", true, FindArgs{Where: where, Take: intPtr(1)})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindUniqueOrThrow is FindUnique but returns a *accessgraph.NotFoundError
// instead of a nil row.
func (mc *ModelClient) FindUniqueOrThrow(ctx context.Context, where M) (M, error) {
	row, err := mc.FindUnique(ctx, where)
	if err == nil && row == nil {
		return nil, accessgraph.NewNotFoundError(mc.name)
	}
	return row, err
}

// FindFirst returns the first row matching a, ordered per a.OrderBy, or nil
// if none matched.
func (mc *ModelClient) FindFirst(ctx context.Context, a FindArgs) (M, error) {
	a.Take = intPtr(1)
	rows, err := mc.runFind(ctx, "findFirst", false, a)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindFirstOrThrow is FindFirst but returns a *accessgraph.NotFoundError
// instead of a nil row.
func (mc *ModelClient) FindFirstOrThrow(ctx context.Context, a FindArgs) (M, error) {
	row, err := mc.FindFirst(ctx, a)
	if err == nil && row == nil {
		return nil, accessgraph.NewNotFoundError(mc.name)
	}
	return row, err
}

// FindMany returns every row matching a.
func (mc *ModelClient) FindMany(ctx context.Context, a FindArgs) ([]M, error) {
	return mc.runFind(ctx, "findMany", false, a)
}

// Page is FindManyPage's result: the matched rows plus opaque pagination
// tokens for the page that follows/precedes it.
type Page struct {
	Rows []M
	// NextCursor, when non-empty, is passed back as a.Cursor (after
	// decoding with DecodeCursor) to fetch the page starting immediately
	// after the last row here, per the resolved ORDER BY tuple.
	NextCursor string
	// PrevCursor is the equivalent token anchored on the first row.
	PrevCursor string
}

// FindManyPage is FindMany plus opaque NextCursor/PrevCursor tokens
// (msgpack-encoded over the resolved ORDER BY tuple) so callers can
// paginate without hand-building a unique `where` filter for the next call.
func (mc *ModelClient) FindManyPage(ctx context.Context, a FindArgs) (*Page, error) {
	rows, plan, err := mc.runFindPlan(ctx, "findMany", false, a)
	if err != nil {
		return nil, err
	}
	page := &Page{Rows: rows}
	if len(rows) == 0 || len(plan.OrderFields) == 0 {
		return page, nil
	}
	next, err := EncodeCursor(cursorTuple(plan.OrderFields, rows[len(rows)-1]))
	if err != nil {
		return nil, fmt.Errorf("client: encoding next cursor: %w", err)
	}
	prev, err := EncodeCursor(cursorTuple(plan.OrderFields, rows[0]))
	if err != nil {
		return nil, fmt.Errorf("client: encoding prev cursor: %w", err)
	}
	page.NextCursor, page.PrevCursor = next, prev
	return page, nil
}

// cursorTuple projects row down to just the fields the ORDER BY needs, in
// order, so the encoded token stays small and stable across unrelated
// column additions.
func cursorTuple(orderFields []string, row M) M {
	out := make(M, len(orderFields))
	for _, f := range orderFields {
		out[f] = row[f]
	}
	return out
}

// runMutate validates and runs a create/update/delete-style mutation end to
// end: validate -> mutate.Wrapper -> plugin pipeline -> Orchestrator.
func (mc *ModelClient) runMutate(ctx context.Context, op accessgraph.Op, where, data M, base accessgraph.MutateFunc) (any, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	// snapshotLoader fetches the rows `where` currently matches; it only
	// runs when a registered EntityMutationPlugin actually asks for a
	// before/after snapshot (see plugin.MutationFilterResult), which no
	// component in this pass installs by default.
	var snapshotLoader plugin.SnapshotLoader = func(ctx context.Context, modelName string, _ accessgraph.Mutation) ([]map[string]any, error) {
		if where == nil {
			return nil, nil
		}
		return mc.runFind(ctx, "findMany", false, FindArgs{Where: where})
	}
	wrapper := mutate.NewWrapper(m.Name, op, data, nil, mc.c)
	chain := mc.c.pipeline.MutatorChain(base, snapshotLoader, snapshotLoader, mc.c.txStateFor())
	return chain.Mutate(ctx, wrapper)
}

// Create inserts one row.
func (mc *ModelClient) Create(ctx context.Context, data M) (M, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	if err := validate.ValidateCreate(m, "create", &validate.CreateArgs{Data: data}); err != nil {
		return nil, err
	}
	o := mc.orchestrator(m)
	base := accessgraph.MutateFunc(func(ctx context.Context, mu accessgraph.Mutation) (accessgraph.Value, error) {
		res, err := o.Create(ctx, &mutate.CreateArgs{Data: data})
		if err != nil {
			return nil, err
		}
		return res.Row, nil
	})
	v, err := mc.runMutate(ctx, accessgraph.OpCreate, nil, data, base)
	if err != nil {
		return nil, err
	}
	row, _ := v.(M)
	return row, nil
}

// CreateMany inserts len(data) rows and returns the count inserted.
func (mc *ModelClient) CreateMany(ctx context.Context, data []M) (int64, error) {
	rows, err := mc.CreateManyAndReturn(ctx, data)
	return int64(len(rows)), err
}

// CreateManyAndReturn inserts len(data) rows and returns each inserted row.
func (mc *ModelClient) CreateManyAndReturn(ctx context.Context, data []M) ([]M, error) {
	out := make([]M, 0, len(data))
	for _, d := range data {
		row, err := mc.Create(ctx, d)
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Update updates the single row matching where and returns it as it stands
// after the write. where must fully specify a unique identifier.
func (mc *ModelClient) Update(ctx context.Context, where, data M) (M, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	ua := &validate.UpdateArgs{Where: where, Data: data}
	if err := validate.ValidateUpdate(m, "update", ua, true); err != nil {
		return nil, err
	}
	rowPolicy, err := mc.rowPolicyFor(ctx, m, m.Table())
	if err != nil {
		return nil, err
	}
	o := mc.orchestrator(m)
	base := accessgraph.MutateFunc(func(ctx context.Context, mu accessgraph.Mutation) (accessgraph.Value, error) {
		if _, err := o.Update(ctx, &mutate.UpdateArgs{Where: where, Data: data, RowPolicy: rowPolicy}); err != nil {
			return nil, err
		}
		return mc.FindUnique(ctx, where)
	})
	v, err := mc.runMutate(ctx, accessgraph.OpUpdateOne, where, data, base)
	if err != nil {
		return nil, err
	}
	row, _ := v.(M)
	return row, nil
}

// UpdateMany updates every row matching where and returns the count
// updated.
func (mc *ModelClient) UpdateMany(ctx context.Context, where, data M, limit *int) (int64, error) {
	m, err := mc.def()
	if err != nil {
		return 0, err
	}
	ua := &validate.UpdateArgs{Where: where, Data: data, Limit: limit}
	if err := validate.ValidateUpdate(m, "updateMany", ua, false); err != nil {
		return 0, err
	}
	rowPolicy, err := mc.rowPolicyFor(ctx, m, m.Table())
	if err != nil {
		return 0, err
	}
	o := mc.orchestrator(m)
	base := accessgraph.MutateFunc(func(ctx context.Context, mu accessgraph.Mutation) (accessgraph.Value, error) {
		res, err := o.Update(ctx, &mutate.UpdateArgs{Where: where, Data: data, Limit: limit, RowPolicy: rowPolicy})
		if err != nil {
			return nil, err
		}
		return res.Affected, nil
	})
	v, err := mc.runMutate(ctx, accessgraph.OpUpdate, where, data, base)
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

// UpdateManyAndReturn reads the rows matching where, updates them via
// UpdateMany, and returns the rows as read before the write with each plain
// (non-operator) value from data copied over them. Operator updates such as
// increment are not reflected in the returned rows, and the read and the
// write run as separate statements.
func (mc *ModelClient) UpdateManyAndReturn(ctx context.Context, where, data M, limit *int) ([]M, error) {
	before, err := mc.FindMany(ctx, FindArgs{Where: where, Take: limit})
	if err != nil {
		return nil, err
	}
	if _, err := mc.UpdateMany(ctx, where, data, limit); err != nil {
		return nil, err
	}
	out := make([]M, 0, len(before))
	for _, row := range before {
		for k, v := range data {
			if _, isOperator := v.(M); !isOperator {
				row[k] = v
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// Upsert creates a row if none matches where, otherwise updates the
// matching row. See DESIGN.md for the known SELECT-then-branch race this
// implies in the absence of native ON CONFLICT support.
func (mc *ModelClient) Upsert(ctx context.Context, where, create, update M) (M, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	ua := &validate.UpsertArgs{Where: where, Create: create, Update: update}
	if err := validate.ValidateUpsert(m, ua); err != nil {
		return nil, err
	}
	rowPolicy, err := mc.rowPolicyFor(ctx, m, m.Table())
	if err != nil {
		return nil, err
	}
	o := mc.orchestrator(m)
	base := accessgraph.MutateFunc(func(ctx context.Context, mu accessgraph.Mutation) (accessgraph.Value, error) {
		res, err := o.Upsert(ctx, &mutate.UpsertArgs{Where: where, Create: create, Update: update, RowPolicy: rowPolicy})
		if err != nil {
			return nil, err
		}
		return res.Row, nil
	})
	v, err := mc.runMutate(ctx, accessgraph.OpCreate|accessgraph.OpUpdateOne, where, update, base)
	if err != nil {
		return nil, err
	}
	row, _ := v.(M)
	return row, nil
}

// Delete deletes the single row matching where and returns it as it stood
// immediately before deletion.
func (mc *ModelClient) Delete(ctx context.Context, where M) (M, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	da := &validate.DeleteArgs{Where: where}
	if err := validate.ValidateDelete(m, "delete", da, true); err != nil {
		return nil, err
	}
	before, err := mc.FindUnique(ctx, where)
	if err != nil {
		return nil, err
	}
	rowPolicy, err := mc.rowPolicyFor(ctx, m, m.Table())
	if err != nil {
		return nil, err
	}
	o := mc.orchestrator(m)
	base := accessgraph.MutateFunc(func(ctx context.Context, mu accessgraph.Mutation) (accessgraph.Value, error) {
		if _, err := o.Delete(ctx, &mutate.DeleteArgs{Where: where, RowPolicy: rowPolicy}); err != nil {
			return nil, err
		}
		return before, nil
	})
	v, err := mc.runMutate(ctx, accessgraph.OpDeleteOne, where, nil, base)
	if err != nil {
		return nil, err
	}
	row, _ := v.(M)
	return row, nil
}

// DeleteMany deletes every row matching where and returns the count
// deleted.
func (mc *ModelClient) DeleteMany(ctx context.Context, where M, limit *int) (int64, error) {
	m, err := mc.def()
	if err != nil {
		return 0, err
	}
	da := &validate.DeleteArgs{Where: where, Limit: limit}
	if err := validate.ValidateDelete(m, "deleteMany", da, false); err != nil {
		return 0, err
	}
	rowPolicy, err := mc.rowPolicyFor(ctx, m, m.Table())
	if err != nil {
		return 0, err
	}
	o := mc.orchestrator(m)
	base := accessgraph.MutateFunc(func(ctx context.Context, mu accessgraph.Mutation) (accessgraph.Value, error) {
		res, err := o.Delete(ctx, &mutate.DeleteArgs{Where: where, Limit: limit, RowPolicy: rowPolicy})
		if err != nil {
			return nil, err
		}
		return res.Affected, nil
	})
	v, err := mc.runMutate(ctx, accessgraph.OpDelete, where, nil, base)
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

// Count returns the number of rows matching a.Where, or, when a.Select
// names fields, a map of field name (or "_all") to its own count.
func (mc *ModelClient) Count(ctx context.Context, a CountArgs) (any, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	va := &validate.CountArgs{Where: a.Where, Skip: a.Skip, Take: a.Take, OrderBy: a.OrderBy, Select: a.Select}
	if err := validate.ValidateCount(m, va); err != nil {
		return nil, err
	}
	alias := "t0"
	rowPolicy, err := mc.rowPolicyFor(ctx, m, alias)
	if err != nil {
		return nil, err
	}
	where, err := query.BuildFilter(mc.c.schema, m, mc.c.cap, alias, a.Where)
	if err != nil {
		return nil, err
	}
	where = sql.And(where, rowPolicy)

	if len(a.Select) == 0 {
		sel := sql.Dialect(mc.c.cap.Name()).Select("COUNT(*)")
		sel.From(sql.Table(m.Table()).As(alias))
		if where != nil {
			sel.Where(where)
		}
		q, args := sel.Query()
		var rows sql.Rows
		if err := mc.c.driver.Query(ctx, q, args, &rows); err != nil {
			return nil, accessgraph.NewQueryError(m.Name, "count", err)
		}
		return scanScalarInt64(&rows)
	}

	out := M{}
	for field := range a.Select {
		col := field
		if field != "_all" {
			col = alias + "." + field
		} else {
			col = "*"
		}
		sel := sql.Dialect(mc.c.cap.Name()).Select("COUNT(" + col + ")")
		sel.From(sql.Table(m.Table()).As(alias))
		if where != nil {
			sel.Where(where)
		}
		q, args := sel.Query()
		var rows sql.Rows
		if err := mc.c.driver.Query(ctx, q, args, &rows); err != nil {
			return nil, accessgraph.NewQueryError(m.Name, "count", err)
		}
		n, err := scanScalarInt64(&rows)
		if err != nil {
			return nil, err
		}
		out[field] = n
	}
	return out, nil
}

// Aggregate computes count/avg/sum/min/max aggregates over the rows
// matching a.Where.
func (mc *ModelClient) Aggregate(ctx context.Context, a AggregateArgs) (M, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	va := &validate.AggregateArgs{Where: a.Where, Count: a.Count, Avg: a.Avg, Sum: a.Sum, Min: a.Min, Max: a.Max}
	if err := validate.ValidateAggregate(m, va); err != nil {
		return nil, err
	}
	alias := "t0"
	rowPolicy, err := mc.rowPolicyFor(ctx, m, alias)
	if err != nil {
		return nil, err
	}
	where, err := query.BuildFilter(mc.c.schema, m, mc.c.cap, alias, a.Where)
	if err != nil {
		return nil, err
	}
	where = sql.And(where, rowPolicy)

	type proj struct {
		key, fn, field string
	}
	var projs []proj
	add := func(fn string, fields M) {
		for f := range fields {
			projs = append(projs, proj{key: fn + "_" + f, fn: fn, field: f})
		}
	}
	for f := range a.Count {
		projs = append(projs, proj{key: "count_" + f, fn: "COUNT", field: f})
	}
	add("AVG", a.Avg)
	add("SUM", a.Sum)
	add("MIN", a.Min)
	add("MAX", a.Max)
	if len(projs) == 0 {
		return M{}, nil
	}

	cols := make([]string, len(projs))
	for i, p := range projs {
		cols[i] = p.fn + "(" + alias + "." + p.field + ") AS " + p.key
	}
	sel := sql.Dialect(mc.c.cap.Name()).Select(cols...)
	sel.From(sql.Table(m.Table()).As(alias))
	if where != nil {
		sel.Where(where)
	}
	q, args := sel.Query()
	var rows sql.Rows
	if err := mc.c.driver.Query(ctx, q, args, &rows); err != nil {
		return nil, accessgraph.NewQueryError(m.Name, "aggregate", err)
	}
	flat, err := scanRows(&rows)
	if err != nil {
		return nil, err
	}
	out := M{"_count": M{}, "_avg": M{}, "_sum": M{}, "_min": M{}, "_max": M{}}
	if len(flat) == 0 {
		return out, nil
	}
	bucket := map[string]string{"COUNT": "_count", "AVG": "_avg", "SUM": "_sum", "MIN": "_min", "MAX": "_max"}
	for _, p := range projs {
		out[bucket[p.fn]].(M)[p.field] = flat[0][p.key]
	}
	return out, nil
}

// GroupBy groups rows by a.By, applying Where, Having and OrderBy, and
// returns one row per distinct group. Only the By columns are projected:
// no aggregate (_count, _sum, _avg, _min, _max) column is computed.
func (mc *ModelClient) GroupBy(ctx context.Context, a GroupByArgs) ([]M, error) {
	m, err := mc.def()
	if err != nil {
		return nil, err
	}
	va := &validate.GroupByArgs{By: a.By, Where: a.Where, Having: a.Having, OrderBy: a.OrderBy}
	if err := validate.ValidateGroupBy(m, va); err != nil {
		return nil, err
	}
	alias := "t0"
	rowPolicy, err := mc.rowPolicyFor(ctx, m, alias)
	if err != nil {
		return nil, err
	}
	where, err := query.BuildFilter(mc.c.schema, m, mc.c.cap, alias, a.Where)
	if err != nil {
		return nil, err
	}
	where = sql.And(where, rowPolicy)

	cols := make([]string, len(a.By))
	groupCols := make([]string, len(a.By))
	for i, f := range a.By {
		cols[i] = alias + "." + f + " AS " + f
		groupCols[i] = alias + "." + f
	}
	sel := sql.Dialect(mc.c.cap.Name()).Select(cols...)
	sel.From(sql.Table(m.Table()).As(alias))
	if where != nil {
		sel.Where(where)
	}
	sel.GroupBy(groupCols...)
	if len(a.Having) > 0 {
		having, err := query.BuildFilter(mc.c.schema, m, mc.c.cap, alias, a.Having)
		if err != nil {
			return nil, err
		}
		if having != nil {
			sel.Having(having)
		}
	}
	for _, ord := range a.OrderBy {
		for field, dir := range ord {
			d, _ := dir.(string)
			sel.OrderBy(sql.OrderTerm{Column: alias + "." + field, Desc: d == "desc"})
		}
	}
	q, args := sel.Query()
	var rows sql.Rows
	if err := mc.c.driver.Query(ctx, q, args, &rows); err != nil {
		return nil, accessgraph.NewQueryError(m.Name, "groupBy", err)
	}
	return scanRows(&rows)
}

func intPtr(n int) *int { return &n }
