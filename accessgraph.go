// Package accessgraph is the runtime root of the schema-driven data access
// engine: the types a generated (or directly authored) client embeds and
// wires together — Schema/Mixin for model definitions, the Mutator/Querier
// middleware chain, and the context carriers used to pass per-operation
// state (QueryContext, session variables) through the pipeline.
package accessgraph

import (
	"context"
	"fmt"

	"github.com/polyquery/accessgraph/schema"
)

// Value is the dynamic result type returned from the mutator/querier chain;
// a concrete operation asserts it back to its expected type.
type Value = any

// Op is a bitmask describing the operation a Mutation or Query represents.
type Op uint32

// Mutation operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpUpdateOne
	OpDelete
	OpDeleteOne
)

// Query operations.
const (
	OpQueryFirst Op = 1 << (iota + 16)
	OpQueryFirstID
	OpQueryOnly
	OpQueryOnlyID
	OpQueryAll
	OpQueryIDs
	OpQueryCount
	OpQueryExist
	OpQueryGroupBy
	OpQuerySelect
)

var opNames = map[Op]string{
	OpCreate:       "OpCreate",
	OpUpdate:       "OpUpdate",
	OpUpdateOne:    "OpUpdateOne",
	OpDelete:       "OpDelete",
	OpDeleteOne:    "OpDeleteOne",
	OpQueryFirst:   "OpQueryFirst",
	OpQueryFirstID: "OpQueryFirstID",
	OpQueryOnly:    "OpQueryOnly",
	OpQueryOnlyID:  "OpQueryOnlyID",
	OpQueryAll:     "OpQueryAll",
	OpQueryIDs:     "OpQueryIDs",
	OpQueryCount:   "OpQueryCount",
	OpQueryExist:   "OpQueryExist",
	OpQueryGroupBy: "OpQueryGroupBy",
	OpQuerySelect:  "OpQuerySelect",
}

// Is reports whether o has opt's bit(s) set.
func (o Op) Is(opt Op) bool { return o&opt != 0 }

// String returns the symbolic constant name, or a numeric fallback for a
// combined/unknown value.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint32(o))
}

// Mutation is implemented by every per-model mutation builder (the
// generated create/update/delete builders); it exposes enough of the
// builder's state for hooks to act on without knowing the concrete type.
type Mutation interface {
	// Type returns the model name the mutation operates on.
	Type() string
	// Op returns the mutation's operation kind.
	Op() Op
	// Fields returns the names of fields this mutation sets.
	Fields() []string
	// Field returns the value set for name, if any.
	Field(name string) (Value, bool)
	// SetField updates the value set for name.
	SetField(name string, v Value) error
	// OldField returns the field's pre-mutation value; only valid for
	// update mutations.
	OldField(ctx context.Context, name string) (Value, error)
	// AddedFields returns the names of fields with a relative (Add/Append)
	// update applied.
	AddedFields() []string
	// AddedField returns the delta applied to name via Add/Append.
	AddedField(name string) (Value, bool)
	// ClearedFields returns the names of fields explicitly cleared to NULL.
	ClearedFields() []string
	// FieldCleared reports whether name was explicitly cleared.
	FieldCleared(name string) bool
	// ResetField clears any pending change recorded for name.
	ResetField(name string)
	// Where returns the accumulated predicate functions restricting which
	// rows this mutation applies to.
	Where() []func(any)
	// Client returns the transaction-scoped client the mutation runs
	// under, as an opaque value the concrete builder asserts back.
	Client() any
}

// Mutator is the interface that wraps the Mutate method, forming the
// middleware chain mutation hooks compose.
type Mutator interface {
	Mutate(ctx context.Context, m Mutation) (Value, error)
}

// MutateFunc adapts an ordinary function to a Mutator.
type MutateFunc func(context.Context, Mutation) (Value, error)

// Mutate calls f(ctx, m).
func (f MutateFunc) Mutate(ctx context.Context, m Mutation) (Value, error) { return f(ctx, m) }

// Hook wraps a Mutator, producing a new Mutator that runs before/after/
// around the one it wraps. Hooks are applied innermost-last: the last hook
// passed to a builder's Use call becomes the outermost layer.
type Hook func(Mutator) Mutator

// Query is implemented by every per-model query builder; like Mutation it
// lets interceptors inspect query state without the concrete type.
type Query interface {
	// Type returns the model name the query operates on.
	Type() string
	// Limit returns the configured take, or nil for unbounded.
	Limit() *int
	// Offset returns the configured skip.
	Offset() *int
}

// Querier is the interface that wraps the Query method, forming the
// middleware chain query interceptors compose.
type Querier interface {
	Query(ctx context.Context, q Query) (Value, error)
}

// QuerierFunc adapts an ordinary function to a Querier.
type QuerierFunc func(context.Context, Query) (Value, error)

// Query calls f(ctx, q).
func (f QuerierFunc) Query(ctx context.Context, q Query) (Value, error) { return f(ctx, q) }

// Interceptor wraps a Querier, analogous to Hook for queries.
type Interceptor interface {
	Intercept(Querier) Querier
}

// InterceptFunc adapts an ordinary function to an Interceptor.
type InterceptFunc func(Querier) Querier

// Intercept calls f(next).
func (f InterceptFunc) Intercept(next Querier) Querier { return f(next) }

// Traverser is a Querier adapter that only observes a query (e.g. for
// logging or metrics) without altering its result: TraverseFunc's Intercept
// runs it before the wrapped Querier and passes that Querier's result
// through, or stops with the Traverser's error.
type Traverser interface {
	Traverse(ctx context.Context, q Query) error
}

// TraverseFunc adapts an ordinary function to a Traverser, and implements
// Interceptor by running itself before delegating to the next Querier
// unchanged.
type TraverseFunc func(context.Context, Query) error

// Traverse calls f(ctx, q).
func (f TraverseFunc) Traverse(ctx context.Context, q Query) error { return f(ctx, q) }

// Intercept returns a Querier that runs f against the incoming query,
// returns f's error if it fails, and otherwise returns next's result as is,
// so a Traverser never alters query results.
func (f TraverseFunc) Intercept(next Querier) Querier {
	return QuerierFunc(func(ctx context.Context, q Query) (Value, error) {
		if err := f(ctx, q); err != nil {
			return nil, err
		}
		return next.Query(ctx, q)
	})
}

// Policy evaluates row-level access rules for queries and mutations; it is
// the interface the policy compiler's generated QueryPolicy/MutationPolicy
// chains satisfy.
type Policy interface {
	EvalQuery(ctx context.Context, q Query) error
	EvalMutation(ctx context.Context, m Mutation) error
}

// Config holds storage-layer configuration a Schema can opt into, such as a
// custom table name.
type Config struct {
	// Table overrides the default (model-name-derived) physical table name.
	Table string
}

// Mixin is a reusable bundle of fields, edges, indexes, hooks, interceptors,
// policy, and annotations that a Schema can embed via its Mixin method.
type Mixin interface {
	Fields() []Field
	Edges() []Edge
	Indexes() []Index
	Hooks() []Hook
	Interceptors() []Interceptor
	Policy() Policy
	Annotations() []schema.Annotation
}

// Field is implemented by every schema/field builder value; Descriptor
// exposes the accumulated configuration to the client-building layer.
type Field interface {
	Descriptor() *FieldDescriptor
}

// Edge is implemented by every schema/edge builder value.
type Edge interface {
	Descriptor() *EdgeDescriptor
}

// Index is implemented by every schema/index builder value.
type Index interface {
	Descriptor() *IndexDescriptor
}

// FieldDescriptor is the builder-accumulated configuration for one field.
type FieldDescriptor struct {
	Name          string
	Info          string // the declared scalar/relation type name
	Unique        bool
	Optional      bool
	Nillable      bool
	Immutable     bool
	Sensitive     bool
	Comment       string
	Default       any
	UpdateDefault any
	Tag           string
	Validators    []string
	EnumValues    []string
	SchemaTypes   map[string]string
	Annotations   []schema.Annotation
}

// EdgeDescriptor is the builder-accumulated configuration for one edge.
type EdgeDescriptor struct {
	Name        string
	Type        string
	RefName     string
	Unique      bool
	Required    bool
	Immutable   bool
	Comment     string
	Field       string
	ThroughName string
	ThroughType string
	StorageKeys []string
	Annotations []schema.Annotation
}

// IndexDescriptor is the builder-accumulated configuration for one index.
type IndexDescriptor struct {
	Fields      []string
	Edges       []string
	Unique      bool
	Annotations []schema.Annotation
}

// Schema is the base struct every model schema definition embeds; every
// method has a nil/zero default so a schema only overrides what it needs.
type Schema struct{}

// Fields returns the fields declared directly on the schema.
func (Schema) Fields() []Field { return nil }

// Edges returns the relationships declared directly on the schema.
func (Schema) Edges() []Edge { return nil }

// Indexes returns the indexes declared directly on the schema.
func (Schema) Indexes() []Index { return nil }

// Config returns storage configuration for the schema.
func (Schema) Config() Config { return Config{} }

// Mixin returns the mixins this schema composes.
func (Schema) Mixin() []Mixin { return nil }

// Hooks returns mutation hooks declared directly on the schema.
func (Schema) Hooks() []Hook { return nil }

// Interceptors returns query interceptors declared directly on the schema.
func (Schema) Interceptors() []Interceptor { return nil }

// Policy returns the row-level access policy for the schema, if any.
func (Schema) Policy() Policy { return nil }

// Annotations returns codegen/runtime annotations attached directly to the schema.
func (Schema) Annotations() []schema.Annotation { return nil }

// Viewer is implemented by read-only query views — schemas backed by a
// derived SELECT rather than a physical table.
type Viewer interface {
	Fields() []Field
	Edges() []Edge
	View() string
}

// View is the base struct a read-only view schema embeds; it composes
// Schema and additionally requires the backing query via View().
type View struct {
	Schema
}

// View returns the defining SQL for the view. Override in the embedding type.
func (View) View() string { return "" }

// ctxQueryKey is the context key QueryContext is stored under.
type ctxQueryKey struct{}

// QueryContext carries per-query state (requested fields, pagination,
// current operation) through the querier/interceptor chain via context.
type QueryContext struct {
	Op     string
	Type   string
	Fields []string
	Limit  *int
	Offset *int
}

// NewQueryContext returns a new context carrying qc.
func NewQueryContext(parent context.Context, qc *QueryContext) context.Context {
	return context.WithValue(parent, ctxQueryKey{}, qc)
}

// QueryFromContext returns the QueryContext stored in ctx, or nil.
func QueryFromContext(ctx context.Context) *QueryContext {
	qc, _ := ctx.Value(ctxQueryKey{}).(*QueryContext)
	return qc
}

// Clone returns a deep copy of qc so callers can mutate Fields without
// affecting the original.
func (qc *QueryContext) Clone() *QueryContext {
	if qc == nil {
		return nil
	}
	cp := *qc
	if qc.Fields != nil {
		cp.Fields = make([]string, len(qc.Fields))
		copy(cp.Fields, qc.Fields)
	}
	if qc.Limit != nil {
		l := *qc.Limit
		cp.Limit = &l
	}
	if qc.Offset != nil {
		o := *qc.Offset
		cp.Offset = &o
	}
	return &cp
}

// AppendFieldOnce returns qc with name added to Fields if not already
// present, mutating and returning the same QueryContext.
func (qc *QueryContext) AppendFieldOnce(name string) *QueryContext {
	for _, f := range qc.Fields {
		if f == name {
			return qc
		}
	}
	qc.Fields = append(qc.Fields, name)
	return qc
}
