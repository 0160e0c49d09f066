// Package plugin composes the ordered query/mutation plugin pipeline (C8):
// the stack of accessgraph.Hook/accessgraph.Interceptor values a client
// installs via Use, plus the onEntityMutation lifecycle (snapshot-before,
// run, snapshot-after) layered on top of the mutation hook chain.
//
// Composition mirrors the teacher's generated withHooks/withInterceptors
// helpers: hooks and interceptors are applied in reverse slice order, so the
// chain is built from the base handler outward and the first element of the
// (possibly prepended-to) slice ends up as the outermost layer.
package plugin

import (
	"context"
	"fmt"

	"github.com/polyquery/accessgraph"
)

// ChainMutator builds the composed Mutator base wrapped by hooks, applied
// from the last hook to the first so hooks[0] runs outermost.
func ChainMutator(base accessgraph.Mutator, hooks []accessgraph.Hook) accessgraph.Mutator {
	mut := base
	for i := len(hooks) - 1; i >= 0; i-- {
		if hooks[i] == nil {
			continue
		}
		mut = hooks[i](mut)
	}
	return mut
}

// ChainQuerier builds the composed Querier base wrapped by interceptors,
// applied from the last to the first so inters[0] runs outermost.
func ChainQuerier(base accessgraph.Querier, inters []accessgraph.Interceptor) accessgraph.Querier {
	qr := base
	for i := len(inters) - 1; i >= 0; i-- {
		if inters[i] == nil {
			continue
		}
		qr = inters[i].Intercept(qr)
	}
	return qr
}

// PolicyHook adapts an accessgraph.Policy into a mutation Hook, so a schema's
// row-level policy composes into the same chain ordinary hooks do.
func PolicyHook(p accessgraph.Policy) accessgraph.Hook {
	return func(next accessgraph.Mutator) accessgraph.Mutator {
		return accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
			if err := p.EvalMutation(ctx, m); err != nil {
				return nil, err
			}
			return next.Mutate(ctx, m)
		})
	}
}

// PolicyInterceptor adapts an accessgraph.Policy into a query Interceptor.
func PolicyInterceptor(p accessgraph.Policy) accessgraph.Interceptor {
	return accessgraph.InterceptFunc(func(next accessgraph.Querier) accessgraph.Querier {
		return accessgraph.QuerierFunc(func(ctx context.Context, q accessgraph.Query) (accessgraph.Value, error) {
			if err := p.EvalQuery(ctx, q); err != nil {
				return nil, err
			}
			return next.Query(ctx, q)
		})
	})
}

// MutationFilterResult is what an EntityMutationPlugin's filter returns: its
// verdict on whether to participate in this mutation at all, and whether the
// orchestrator should snapshot rows before and/or after the mutation runs.
type MutationFilterResult struct {
	Intercept                  bool
	LoadBeforeMutationEntities bool
	LoadAfterMutationEntities  bool
}

// EntityMutationPlugin is the onEntityMutation surface: ordered hooks around
// every INSERT/UPDATE/DELETE, distinct from the generic Hook chain in that
// they additionally see row snapshots taken before/after the write.
type EntityMutationPlugin interface {
	ID() string
	MutationInterceptionFilter(ctx context.Context, action accessgraph.Op, model string, m accessgraph.Mutation) (MutationFilterResult, error)
	BeforeEntityMutation(ctx context.Context, model string, m accessgraph.Mutation, before []map[string]any) error
	AfterEntityMutation(ctx context.Context, model string, m accessgraph.Mutation, after []map[string]any) error
}

// SnapshotLoader fetches the rows a mutation's WHERE currently matches (for
// the before-snapshot) or matched (for the after-snapshot, by id). Supplied
// by the caller that has query-planner/driver access; this package stays
// decoupled from query/mutate to avoid an import cycle.
type SnapshotLoader func(ctx context.Context, model string, m accessgraph.Mutation) ([]map[string]any, error)

// TxState reports whether the mutation is running inside a transaction and,
// if so, lets the entity-mutation wrapper defer after-hooks until commit.
type TxState interface {
	// InTransaction reports whether the current call runs under a tx.
	InTransaction() bool
	// OnCommit registers fn to run after the enclosing transaction commits,
	// or runs fn immediately if InTransaction is false.
	OnCommit(fn func(context.Context) error)
}

// immediateTx is the TxState used outside any transaction: OnCommit runs fn
// right away, matching "if no transaction is present, the mutation persists
// even when after-hooks throw" — the hook runs, but its error never unwinds
// the (already-committed) mutation.
type immediateTx struct{}

func (immediateTx) InTransaction() bool { return false }

// OnCommit has no enclosing transaction context to reuse, so it runs fn
// against a background context right away; its error is swallowed since
// the mutation it follows has already taken effect.
func (immediateTx) OnCommit(fn func(context.Context) error) {
	_ = fn(context.Background())
}

// NewImmediateTxState returns the TxState to use when no transaction wraps
// the current mutation.
func NewImmediateTxState() TxState { return immediateTx{} }

// EntityMutationHook adapts plugin into a Hook, using loadBefore/loadAfter to
// fetch row snapshots and tx to gate after-hook execution on commit.
//
// Ordering of effects around next.Mutate: filter runs first and may veto
// participation entirely; if it asks for a before-snapshot, it is loaded
// before next runs; after next returns successfully, an after-snapshot (if
// requested) is loaded and the after-hook is scheduled via tx.OnCommit so a
// rolled-back transaction suppresses it, per the documented propagation
// rule. A failed mutation never reaches the after-hook.
func EntityMutationHook(plugin EntityMutationPlugin, loadBefore, loadAfter SnapshotLoader, tx TxState) accessgraph.Hook {
	return func(next accessgraph.Mutator) accessgraph.Mutator {
		return accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
			model := m.Type()
			verdict, err := plugin.MutationInterceptionFilter(ctx, m.Op(), model, m)
			if err != nil {
				return nil, fmt.Errorf("plugin %s: mutationInterceptionFilter: %w", plugin.ID(), err)
			}
			if !verdict.Intercept {
				return next.Mutate(ctx, m)
			}

			var before []map[string]any
			if verdict.LoadBeforeMutationEntities {
				if before, err = loadBefore(ctx, model, m); err != nil {
					return nil, fmt.Errorf("plugin %s: loading before-mutation snapshot: %w", plugin.ID(), err)
				}
			}
			if err := plugin.BeforeEntityMutation(ctx, model, m, before); err != nil {
				return nil, fmt.Errorf("plugin %s: beforeEntityMutation: %w", plugin.ID(), err)
			}

			v, err := next.Mutate(ctx, m)
			if err != nil {
				return v, err
			}

			tx.OnCommit(func(ctx context.Context) error {
				var after []map[string]any
				if verdict.LoadAfterMutationEntities {
					var err error
					if after, err = loadAfter(ctx, model, m); err != nil {
						return fmt.Errorf("plugin %s: loading after-mutation snapshot: %w", plugin.ID(), err)
					}
				}
				return plugin.AfterEntityMutation(ctx, model, m, after)
			})
			return v, nil
		})
	}
}

// QueryCall is the argument onQuery plugins receive: enough of a high-level
// CRUD invocation to transform args or swap the executing transaction.
type QueryCall struct {
	Model     string
	Operation accessgraph.Op
	Args      any
	Client    any
}

// Proceed descends to the next plugin (or the base handler once the stack is
// exhausted) with call, returning whatever that layer returns.
type Proceed func(ctx context.Context, call *QueryCall) (accessgraph.Value, error)

// QueryPlugin implements onQuery: a CRUD-call-level middleware that can
// transform args before proceeding, transform or replace the result after,
// short-circuit without calling proceed, or wrap proceed in its own
// transaction.
type QueryPlugin interface {
	ID() string
	OnQuery(ctx context.Context, call *QueryCall, proceed Proceed) (accessgraph.Value, error)
}

// QueryPluginFunc adapts a function to QueryPlugin.
type QueryPluginFunc struct {
	PluginID string
	Fn       func(ctx context.Context, call *QueryCall, proceed Proceed) (accessgraph.Value, error)
}

func (f QueryPluginFunc) ID() string { return f.PluginID }

func (f QueryPluginFunc) OnQuery(ctx context.Context, call *QueryCall, proceed Proceed) (accessgraph.Value, error) {
	return f.Fn(ctx, call, proceed)
}

// ChainQueryPlugins composes plugins into a single Proceed wrapping base, the
// last-installed plugin (plugins[len-1]) running outermost — matching the
// mutation/query hook composition above and the documented onQuery stacking
// rule.
func ChainQueryPlugins(base Proceed, plugins []QueryPlugin) Proceed {
	next := base
	for i := 0; i < len(plugins); i++ {
		plugin := plugins[i]
		inner := next
		next = func(ctx context.Context, call *QueryCall) (accessgraph.Value, error) {
			return plugin.OnQuery(ctx, call, inner)
		}
	}
	return next
}

// AstNode is the minimal SQL-AST surface onKyselyQuery plugins act on: the
// root statement about to execute, rendered to its final (builder-complete)
// form. Concrete dialect packages produce values satisfying this via their
// *sql.Builder/*sql.Selector types.
type AstNode interface {
	// Query returns the rendered SQL text and its positional arguments.
	Query() (string, []any)
}

// AstProceed runs the (possibly rewritten) node and returns raw driver rows.
type AstProceed func(ctx context.Context, node AstNode) (accessgraph.Value, error)

// AstPlugin implements onKyselyQuery: inspects or rewrites the SQL AST for
// the root statement immediately before it reaches the driver.
type AstPlugin interface {
	ID() string
	OnKyselyQuery(ctx context.Context, node AstNode, proceed AstProceed) (accessgraph.Value, error)
}

// ChainAstPlugins composes plugins the same way ChainQueryPlugins does.
func ChainAstPlugins(base AstProceed, plugins []AstPlugin) AstProceed {
	next := base
	for i := 0; i < len(plugins); i++ {
		plugin := plugins[i]
		inner := next
		next = func(ctx context.Context, node AstNode) (accessgraph.Value, error) {
			return plugin.OnKyselyQuery(ctx, node, inner)
		}
	}
	return next
}

// Pipeline bundles every plugin surface a client can install. Hooks and
// Interceptors are held newest first (WithHook/WithInterceptor prepend), so
// the most recently installed one runs outermost; the other slices keep
// registration order. A client derives a new Pipeline per $use/$withFeatures
// call rather than mutating this one in place, matching the rest of the
// façade's copy-on-derive convention.
type Pipeline struct {
	Hooks            []accessgraph.Hook
	Interceptors     []accessgraph.Interceptor
	QueryPlugins     []QueryPlugin
	AstPlugins       []AstPlugin
	MutationPlugins  []EntityMutationPlugin
	Policy           accessgraph.Policy
}

// WithHook returns a copy of p with hook prepended, so it runs outermost
// once ChainMutator composes the slice.
func (p Pipeline) WithHook(hook accessgraph.Hook) Pipeline {
	p.Hooks = append([]accessgraph.Hook{hook}, p.Hooks...)
	return p
}

// WithInterceptor returns a copy of p with inter prepended, so it runs
// outermost once ChainQuerier composes the slice.
func (p Pipeline) WithInterceptor(inter accessgraph.Interceptor) Pipeline {
	p.Interceptors = append([]accessgraph.Interceptor{inter}, p.Interceptors...)
	return p
}

// WithQueryPlugin returns a copy of p with qp appended.
func (p Pipeline) WithQueryPlugin(qp QueryPlugin) Pipeline {
	p.QueryPlugins = append(append([]QueryPlugin{}, p.QueryPlugins...), qp)
	return p
}

// WithAstPlugin returns a copy of p with ap appended.
func (p Pipeline) WithAstPlugin(ap AstPlugin) Pipeline {
	p.AstPlugins = append(append([]AstPlugin{}, p.AstPlugins...), ap)
	return p
}

// WithMutationPlugin returns a copy of p with mp appended.
func (p Pipeline) WithMutationPlugin(mp EntityMutationPlugin) Pipeline {
	p.MutationPlugins = append(append([]EntityMutationPlugin{}, p.MutationPlugins...), mp)
	return p
}

// WithPolicy returns a copy of p with its row-level policy replaced, merging
// pol with any policy already present so schema-declared policies and
// client-installed ones both run.
func (p Pipeline) WithPolicy(pol accessgraph.Policy) Pipeline {
	if p.Policy == nil {
		p.Policy = pol
		return p
	}
	p.Policy = policies{p.Policy, pol}
	return p
}

type policies []accessgraph.Policy

func (ps policies) EvalQuery(ctx context.Context, q accessgraph.Query) error {
	for _, p := range ps {
		if err := p.EvalQuery(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (ps policies) EvalMutation(ctx context.Context, m accessgraph.Mutation) error {
	for _, p := range ps {
		if err := p.EvalMutation(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// MutatorChain returns the fully composed Mutator for a mutation call: the
// entity-mutation plugins (innermost, closest to base), then ordinary hooks,
// then the policy, outermost — so a policy rejection never even reaches a
// plugin's before-snapshot load.
func (p Pipeline) MutatorChain(base accessgraph.Mutator, loadBefore, loadAfter SnapshotLoader, tx TxState) accessgraph.Mutator {
	mut := base
	for i := len(p.MutationPlugins) - 1; i >= 0; i-- {
		mut = EntityMutationHook(p.MutationPlugins[i], loadBefore, loadAfter, tx)(mut)
	}
	mut = ChainMutator(mut, p.Hooks)
	if p.Policy != nil {
		mut = PolicyHook(p.Policy)(mut)
	}
	return mut
}

// QuerierChain returns the fully composed Querier for a query call: ordinary
// interceptors wrapped by the policy, outermost.
func (p Pipeline) QuerierChain(base accessgraph.Querier) accessgraph.Querier {
	qr := ChainQuerier(base, p.Interceptors)
	if p.Policy != nil {
		qr = PolicyInterceptor(p.Policy).Intercept(qr)
	}
	return qr
}
