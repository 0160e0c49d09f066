// Package mutate is the mutation orchestrator (C6): it turns validated
// create/update/upsert/delete arguments into INSERT/UPDATE/DELETE
// statements, resolves generated defaults and nested relation writes, and
// emulates UPDATE/DELETE ... LIMIT on dialects that lack it.
package mutate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/privacy"
	"github.com/polyquery/accessgraph/query"
)

// M is a loosely-typed JSON-like argument map.
type M = map[string]any

// CreateArgs is the validated shape of a create operation.
type CreateArgs struct {
	Data M
}

// UpdateArgs is the validated shape of an update operation.
type UpdateArgs struct {
	Where M
	Data  M
	Limit *int

	// RowPolicy, when set, is ANDed into the WHERE clause — the policy
	// plugin's (C9) update-row filter, compiled by the caller before the
	// orchestrator runs.
	RowPolicy *sql.Predicate
}

// UpsertArgs is the validated shape of an upsert operation.
type UpsertArgs struct {
	Where  M
	Create M
	Update M

	// RowPolicy, when set, restricts which existing row the update branch
	// may target — the policy plugin's (C9) update-row filter.
	RowPolicy *sql.Predicate
}

// DeleteArgs is the validated shape of a delete operation.
type DeleteArgs struct {
	Where M
	Limit *int

	// RowPolicy, when set, is ANDed into the WHERE clause — the policy
	// plugin's (C9) delete-row filter.
	RowPolicy *sql.Predicate
}

// Orchestrator executes mutations for one model against one connection.
type Orchestrator struct {
	Schema *model.Schema
	Model  *model.ModelDef
	Cap    sql.Capability
	Conn   dialect.ExecQuerier
	Viewer privacy.Viewer
}

// Result is the row affected/returned by a mutation, keyed by column name.
type Result struct {
	Row      M
	Affected int64
}

// Create inserts one row, resolving defaults and owner-side nested
// relation writes (connect/create), then handles non-owner and
// many-to-many nested writes as a second pass once the parent id is known.
func (o *Orchestrator) Create(ctx context.Context, a *CreateArgs) (*Result, error) {
	row := M{}
	for k, v := range a.Data {
		if f := o.Model.Field(k); f == nil || !f.IsRelation() {
			row[k] = v
		}
	}
	for _, f := range o.Model.ScalarFields() {
		if _, set := row[f.Name]; set {
			continue
		}
		v, ok, err := evaluateDefault(f, o.Viewer)
		if err != nil {
			return nil, err
		}
		if ok {
			row[f.Name] = v
		}
	}

	if err := o.resolveOwnerRelations(ctx, a.Data, row); err != nil {
		return nil, err
	}

	cols := sortedKeys(row)
	values := make([]any, len(cols))
	for i, c := range cols {
		f := o.Model.Field(c)
		values[i] = o.adapt(f, row[c])
	}

	ib := sql.Dialect(o.Cap.Name()).Insert(o.Model.Table()).Columns(cols...).Values(values...)
	returning := append([]string{}, o.Model.IdFields...)
	ib.Returning(returning...)
	q, args := ib.Query()

	var rows sql.Rows
	if err := o.Conn.Query(ctx, q, args, &rows); err != nil {
		return nil, accessgraph.NewMutationError(o.Model.Name, "create", err)
	}
	created, err := scanOne(&rows)
	if err != nil {
		return nil, accessgraph.NewMutationError(o.Model.Name, "create", err)
	}
	for k, v := range created {
		row[k] = v
	}

	if err := o.resolveChildRelations(ctx, a.Data, row); err != nil {
		return nil, err
	}
	return &Result{Row: row}, nil
}

// resolveOwnerRelations resolves to-one owner-side relation fields present
// in data (connect or nested create), writing the resolved FK value(s) into
// row so they ride along with the parent INSERT.
func (o *Orchestrator) resolveOwnerRelations(ctx context.Context, data M, row M) error {
	for name, raw := range data {
		f := o.Model.Field(name)
		if f == nil || !f.IsRelation() || f.IsToMany() || !f.Relation.IsOwner() {
			continue
		}
		obj, _ := raw.(M)
		relModel := o.Schema.Model(f.Relation.Model)
		if relModel == nil {
			return fmt.Errorf("mutate: relation %q references unknown model %q", name, f.Relation.Model)
		}
		id, err := o.resolveToOneTarget(ctx, relModel, obj)
		if err != nil {
			return err
		}
		if len(f.Relation.Fields) == 1 {
			row[f.Relation.Fields[0]] = id
		}
	}
	return nil
}

func (o *Orchestrator) resolveToOneTarget(ctx context.Context, relModel *model.ModelDef, obj M) (any, error) {
	if connect, ok := obj["connect"].(M); ok {
		return o.lookupID(ctx, relModel, connect)
	}
	if create, ok := obj["create"].(M); ok {
		child := &Orchestrator{Schema: o.Schema, Model: relModel, Cap: o.Cap, Conn: o.Conn, Viewer: o.Viewer}
		res, err := child.Create(ctx, &CreateArgs{Data: create})
		if err != nil {
			return nil, err
		}
		return res.Row[firstID(relModel)], nil
	}
	return nil, fmt.Errorf("mutate: to-one relation write on %s must use connect or create", relModel.Name)
}

func (o *Orchestrator) lookupID(ctx context.Context, relModel *model.ModelDef, where M) (any, error) {
	plan, err := query.Build(o.Schema, relModel, o.Cap, "connect", &query.Args{Where: where, Select: M{firstID(relModel): true}, Take: intPtr(1)})
	if err != nil {
		return nil, err
	}
	q, args := plan.Selector.Query()
	var rows sql.Rows
	if err := o.Conn.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	r, err := scanOne(&rows)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, accessgraph.NewNotFoundErrorWithID(relModel.Name, where)
	}
	return r[firstID(relModel)], nil
}

// resolveChildRelations handles non-owner to-many and implicit
// many-to-many nested writes once the parent's id is known, running
// independent relation fields concurrently.
func (o *Orchestrator) resolveChildRelations(ctx context.Context, data M, parentRow M) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, raw := range data {
		f := o.Model.Field(name)
		if f == nil || !f.IsRelation() {
			continue
		}
		if f.Relation.IsOwner() {
			continue // handled pre-insert
		}
		name, raw, f := name, raw, f
		g.Go(func() error {
			return o.writeChildRelation(ctx, name, raw, f, parentRow)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) writeChildRelation(ctx context.Context, name string, raw any, f *model.FieldDef, parentRow M) error {
	obj, ok := raw.(M)
	if !ok {
		return nil
	}
	relModel := o.Schema.Model(f.Relation.Model)
	if relModel == nil {
		return fmt.Errorf("mutate: relation %q references unknown model %q", name, f.Relation.Model)
	}
	opp := relModel.Field(f.Relation.Opposite)
	isM2M := opp != nil && model.IsManyToMany(f, opp)

	if creates, ok := obj["create"]; ok {
		for _, c := range toMapSlice(creates) {
			if !isM2M {
				c[f.Relation.Opposite] = M{"connect": M{firstID(o.Model): parentRow[firstID(o.Model)]}}
			}
			child := &Orchestrator{Schema: o.Schema, Model: relModel, Cap: o.Cap, Conn: o.Conn, Viewer: o.Viewer}
			res, err := child.Create(ctx, &CreateArgs{Data: c})
			if err != nil {
				return err
			}
			if isM2M {
				if err := o.linkJoinTable(ctx, f, relModel, parentRow[firstID(o.Model)], res.Row[firstID(relModel)]); err != nil {
					return err
				}
			}
		}
	}
	if connects, ok := obj["connect"]; ok {
		for _, c := range toMapSlice(connects) {
			id, err := o.lookupID(ctx, relModel, c)
			if err != nil {
				return err
			}
			if isM2M {
				if err := o.linkJoinTable(ctx, f, relModel, parentRow[firstID(o.Model)], id); err != nil {
					return err
				}
			} else if opp != nil {
				sub := &Orchestrator{Schema: o.Schema, Model: relModel, Cap: o.Cap, Conn: o.Conn, Viewer: o.Viewer}
				_, err := sub.Update(ctx, &UpdateArgs{
					Where: M{firstID(relModel): id},
					Data:  M{opp.Relation.Fields[0]: parentRow[firstID(o.Model)]},
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) linkJoinTable(ctx context.Context, f *model.FieldDef, relModel *model.ModelDef, parentID, childID any) error {
	jt := model.ResolveJoinTable(o.Model.Name, f.Name, f.Relation.Model, f.Relation.Opposite)
	jtName := model.JoinTableName(o.Model.Name, f.Relation.Model)
	aVal, bVal := parentID, childID
	if jt.AModel != o.Model.Name || jt.AField != f.Name {
		aVal, bVal = childID, parentID
	}
	ib := sql.Dialect(o.Cap.Name()).Insert(jtName).Columns("A", "B").Values(aVal, bVal).OnConflictDoNothing("A", "B")
	q, args := ib.Query()
	return o.Conn.Exec(ctx, q, args, nil)
}

// Update applies Data to every row matching Where, emulating LIMIT via a
// correlated subquery when the dialect lacks UPDATE ... LIMIT.
func (o *Orchestrator) Update(ctx context.Context, a *UpdateArgs) (*Result, error) {
	alias := o.Model.Table()
	where, err := query.BuildFilter(o.Schema, o.Model, o.Cap, alias, a.Where)
	if err != nil {
		return nil, err
	}
	where = sql.And(where, a.RowPolicy)
	ub := sql.Dialect(o.Cap.Name()).Update(alias)
	if where != nil {
		ub.Where(where)
	}
	if err := o.applySets(ub, a.Data); err != nil {
		return nil, err
	}
	for _, f := range o.Model.ScalarFields() {
		if f.UpdatedAt {
			ub.Set(f.Name, time.Now().UTC())
		}
	}

	if a.Limit != nil {
		if o.Cap.SupportsUpdateWithLimit() {
			ub.Limit(*a.Limit)
		} else {
			capped, err := o.capPredicate(alias, a.Where, a.RowPolicy, *a.Limit)
			if err != nil {
				return nil, err
			}
			ub = sql.Dialect(o.Cap.Name()).Update(alias).Where(capped)
			if err := o.applySets(ub, a.Data); err != nil {
				return nil, err
			}
		}
	}
	ub.Returning(o.Model.IdFields...)
	q, args := ub.Query()

	var rows sql.Rows
	if err := o.Conn.Query(ctx, q, args, &rows); err != nil {
		return nil, accessgraph.NewMutationError(o.Model.Name, "update", err)
	}
	count, err := countRows(&rows)
	if err != nil {
		return nil, accessgraph.NewMutationError(o.Model.Name, "update", err)
	}
	return &Result{Affected: count}, nil
}

func (o *Orchestrator) applySets(ub *sql.UpdateBuilder, data M) error {
	for k, v := range data {
		f := o.Model.Field(k)
		if f == nil || f.IsRelation() {
			continue
		}
		obj, ok := v.(M)
		if !ok {
			ub.Set(k, o.adapt(f, v))
			continue
		}
		for op, val := range obj {
			switch op {
			case "set":
				ub.Set(k, o.adapt(f, val))
			case "increment":
				ub.SetExpr(k, rawExpr(o.Cap.Name(), k+" + ?", val))
			case "decrement":
				ub.SetExpr(k, rawExpr(o.Cap.Name(), k+" - ?", val))
			case "multiply":
				ub.SetExpr(k, rawExpr(o.Cap.Name(), k+" * ?", val))
			case "divide":
				ub.SetExpr(k, rawExpr(o.Cap.Name(), k+" / ?", val))
			case "push":
				ub.SetExpr(k, rawExpr(o.Cap.Name(), pushExpr(o.Cap, k), val))
			default:
				return fmt.Errorf("mutate: unknown scalar update operator %q", op)
			}
		}
	}
	return nil
}

func pushExpr(cap sql.Capability, col string) string {
	if cap.Name() == "postgres" {
		return col + " || ARRAY[?]"
	}
	return "json_insert(" + col + ", '$[#]', ?)"
}

// rawExpr renders fragment into a Builder dialected for dialectName,
// substituting arg for each '?'. Built with the statement's own dialect so
// a later Join carries the right placeholder style ($N on PostgreSQL, ?
// elsewhere) and keeps the shared placeholder counter in sync.
func rawExpr(dialectName, fragment string, arg any) *sql.Builder {
	b := sql.NewBuilder(dialectName)
	for i := 0; i < len(fragment); i++ {
		if fragment[i] == '?' {
			b.Arg(arg)
			continue
		}
		b.WriteByte(fragment[i])
	}
	return b
}

// capPredicate emulates "WHERE ... LIMIT n" by restricting to the id set a
// SELECT id FROM table WHERE ... ORDER BY id LIMIT n would return, for
// dialects without UPDATE/DELETE ... LIMIT. It renders the inner filter
// directly into the shared Builder (rather than splicing in a separately
// rendered subquery's text) so PostgreSQL's $N placeholder numbering stays
// correct across the whole statement.
func (o *Orchestrator) capPredicate(alias string, where M, rowPolicy *sql.Predicate, limit int) (*sql.Predicate, error) {
	pred, err := query.BuildFilter(o.Schema, o.Model, o.Cap, alias, where)
	if err != nil {
		return nil, err
	}
	pred = sql.And(pred, rowPolicy)
	id := firstID(o.Model)
	table := o.Model.Table()
	return sql.RawPredicate(func(b *sql.Builder) {
		b.WriteString(alias + "." + id + " IN (SELECT " + id + " FROM " + table + " AS " + alias)
		if pred != nil {
			b.WriteString(" WHERE ")
			pred.Render(b)
		}
		b.WriteString(" ORDER BY " + id + " LIMIT " + itoaLimit(limit) + ")")
	}), nil
}

func itoaLimit(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}

// Delete removes every row matching Where, emulating LIMIT the same way
// Update does.
func (o *Orchestrator) Delete(ctx context.Context, a *DeleteArgs) (*Result, error) {
	alias := o.Model.Table()
	where, err := query.BuildFilter(o.Schema, o.Model, o.Cap, alias, a.Where)
	if err != nil {
		return nil, err
	}
	where = sql.And(where, a.RowPolicy)
	if a.Limit != nil && !o.Cap.SupportsDeleteWithLimit() {
		capped, err := o.capPredicate(alias, a.Where, a.RowPolicy, *a.Limit)
		if err != nil {
			return nil, err
		}
		where = capped
	}
	db := sql.Dialect(o.Cap.Name()).Delete(alias)
	if where != nil {
		db.Where(where)
	}
	if a.Limit != nil && o.Cap.SupportsDeleteWithLimit() {
		db.Limit(*a.Limit)
	}
	q, args := db.Query()
	var res sql.Result
	if err := o.Conn.Exec(ctx, q, args, &res); err != nil {
		return nil, accessgraph.NewMutationError(o.Model.Name, "delete", err)
	}
	n, _ := res.RowsAffected()
	return &Result{Affected: n}, nil
}

// Upsert updates the row matching Where if one exists, otherwise creates it
// from Create. There is no portable atomic upsert-by-arbitrary-predicate
// across SQLite/PostgreSQL (ON CONFLICT needs a unique constraint, not a
// general WHERE), so this is a best-effort read-then-write; concurrent
// writers can race it, same as the teacher's equivalent seen-once pattern.
func (o *Orchestrator) Upsert(ctx context.Context, a *UpsertArgs) (*Result, error) {
	id, err := o.lookupID(ctx, o.Model, a.Where)
	if err != nil && !accessgraph.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		res, uerr := o.Update(ctx, &UpdateArgs{Where: M{firstID(o.Model): id}, Data: a.Update, RowPolicy: a.RowPolicy})
		if uerr != nil {
			return nil, uerr
		}
		res.Row = M{firstID(o.Model): id}
		return res, nil
	}
	return o.Create(ctx, &CreateArgs{Data: a.Create})
}

func (o *Orchestrator) adapt(f *model.FieldDef, v any) any {
	if f == nil {
		return v
	}
	return o.Cap.TransformPrimitive(v, string(f.Type), f.Array)
}

func sortedKeys(m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toMapSlice(v any) []M {
	switch vv := v.(type) {
	case M:
		return []M{vv}
	case []M:
		return vv
	default:
		return nil
	}
}

func firstID(m *model.ModelDef) string {
	if len(m.IdFields) > 0 {
		return m.IdFields[0]
	}
	return "id"
}

func intPtr(n int) *int { return &n }

func scanOne(rows *sql.Rows) (M, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, nil
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := M{}
	for i, c := range cols {
		out[c] = vals[i]
	}
	return out, rows.Err()
}

func countRows(rows *sql.Rows) (int64, error) {
	defer rows.Close()
	var n int64
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// Wrapper adapts an in-flight mutation to accessgraph.Mutation so the
// plugin pipeline's Hook chain can inspect/modify it before Execute runs.
type Wrapper struct {
	modelName string
	op        accessgraph.Op
	fields    M
	added     M
	cleared   map[string]bool
	where     []func(any)
	client    any
}

// NewWrapper returns a Wrapper carrying data (the create/update payload, or
// nil for a delete) for op against model.
func NewWrapper(modelName string, op accessgraph.Op, data M, where []func(any), client any) *Wrapper {
	return &Wrapper{modelName: modelName, op: op, fields: cloneMap(data), added: M{}, cleared: map[string]bool{}, where: where, client: client}
}

func cloneMap(m M) M {
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Type returns the model name the mutation operates on.
func (w *Wrapper) Type() string { return w.modelName }

// Op returns the mutation's operation kind.
func (w *Wrapper) Op() accessgraph.Op { return w.op }

// Fields returns the names of fields this mutation sets.
func (w *Wrapper) Fields() []string { return sortedKeys(w.fields) }

// Field returns the value set for name, if any.
func (w *Wrapper) Field(name string) (accessgraph.Value, bool) {
	v, ok := w.fields[name]
	return v, ok
}

// SetField updates the value set for name.
func (w *Wrapper) SetField(name string, v accessgraph.Value) error {
	w.fields[name] = v
	delete(w.cleared, name)
	return nil
}

// OldField is unsupported without a pre-mutation row fetch; callers needing
// it should read the row via the query planner before mutating.
func (w *Wrapper) OldField(ctx context.Context, name string) (accessgraph.Value, error) {
	return nil, fmt.Errorf("mutate: OldField(%q) requires a pre-fetch not performed for this mutation", name)
}

// AddedFields returns the names of fields with a relative update applied.
func (w *Wrapper) AddedFields() []string { return sortedKeys(w.added) }

// AddedField returns the delta applied to name via increment/decrement.
func (w *Wrapper) AddedField(name string) (accessgraph.Value, bool) {
	v, ok := w.added[name]
	return v, ok
}

// ClearedFields returns the names of fields explicitly cleared to NULL.
func (w *Wrapper) ClearedFields() []string {
	out := make([]string, 0, len(w.cleared))
	for k := range w.cleared {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FieldCleared reports whether name was explicitly cleared.
func (w *Wrapper) FieldCleared(name string) bool { return w.cleared[name] }

// ResetField clears any pending change recorded for name.
func (w *Wrapper) ResetField(name string) {
	delete(w.fields, name)
	delete(w.added, name)
	delete(w.cleared, name)
}

// Where returns the accumulated predicate functions restricting which rows
// this mutation applies to.
func (w *Wrapper) Where() []func(any) { return w.where }

// Client returns the transaction-scoped client the mutation runs under.
func (w *Wrapper) Client() any { return w.client }

var _ accessgraph.Mutation = (*Wrapper)(nil)
