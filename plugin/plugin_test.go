package plugin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/mutate"
	"github.com/polyquery/accessgraph/plugin"
)

func newMutation(op accessgraph.Op) accessgraph.Mutation {
	return mutate.NewWrapper("User", op, mutate.M{"name": "Ada"}, nil, nil)
}

// TestChainMutatorOrdering checks hooks[0] ends up outermost: it should see
// the call before hooks[1], and wrap the value hooks[1] (and base) produced.
func TestChainMutatorOrdering(t *testing.T) {
	var order []string
	mark := func(name string) accessgraph.Hook {
		return func(next accessgraph.Mutator) accessgraph.Mutator {
			return accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
				order = append(order, name)
				return next.Mutate(ctx, m)
			})
		}
	}
	base := accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
		order = append(order, "base")
		return "ok", nil
	})

	mut := plugin.ChainMutator(base, []accessgraph.Hook{mark("outer"), mark("inner")})
	v, err := mut.Mutate(context.Background(), newMutation(accessgraph.OpCreate))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

// TestPolicyHookRejects checks a policy's EvalMutation error short-circuits
// before the base mutator ever runs.
func TestPolicyHookRejects(t *testing.T) {
	wantErr := errors.New("denied")
	pol := fakePolicy{mutationErr: wantErr}
	baseCalled := false
	base := accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
		baseCalled = true
		return nil, nil
	})

	mut := plugin.PolicyHook(pol)(base)
	_, err := mut.Mutate(context.Background(), newMutation(accessgraph.OpCreate))
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, baseCalled, "base mutator must not run once the policy rejects")
}

// TestPipelineMutatorChainOrder checks the documented composition order:
// entity-mutation plugins innermost, then ordinary hooks, then the policy
// outermost.
func TestPipelineMutatorChainOrder(t *testing.T) {
	var order []string
	hook := func(name string) accessgraph.Hook {
		return func(next accessgraph.Mutator) accessgraph.Mutator {
			return accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
				order = append(order, name)
				return next.Mutate(ctx, m)
			})
		}
	}
	base := accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
		order = append(order, "base")
		return nil, nil
	})

	p := plugin.Pipeline{}.
		WithHook(hook("hook")).
		WithMutationPlugin(recordingEntityPlugin{name: "entity", order: &order}).
		WithPolicy(fakePolicy{order: &order})

	mut := p.MutatorChain(base, nilLoader, nilLoader, plugin.NewImmediateTxState())
	_, err := mut.Mutate(context.Background(), newMutation(accessgraph.OpCreate))
	require.NoError(t, err)
	assert.Equal(t, []string{"policy", "hook", "entity", "base"}, order)
}

// TestEntityMutationHookDefersAfterHookToCommit checks the after-mutation
// hook only runs once tx.OnCommit actually fires, not immediately after the
// wrapped mutator returns.
func TestEntityMutationHookDefersAfterHookToCommit(t *testing.T) {
	afterRan := false
	ep := recordingEntityPlugin{
		name:          "audit",
		intercept:     true,
		loadAfter:     true,
		afterCallback: func() { afterRan = true },
	}
	base := accessgraph.MutateFunc(func(ctx context.Context, m accessgraph.Mutation) (accessgraph.Value, error) {
		return nil, nil
	})

	var deferred []func(context.Context) error
	tx := &recordingTxState{inTransaction: true, onCommit: func(fn func(context.Context) error) {
		deferred = append(deferred, fn)
	}}

	mut := plugin.EntityMutationHook(ep, nilLoader, nilLoader, tx)(base)
	_, err := mut.Mutate(context.Background(), newMutation(accessgraph.OpCreate))
	require.NoError(t, err)
	assert.False(t, afterRan, "after-hook must not run before commit")

	for _, fn := range deferred {
		require.NoError(t, fn(context.Background()))
	}
	assert.True(t, afterRan)
}

func nilLoader(ctx context.Context, model string, m accessgraph.Mutation) ([]map[string]any, error) {
	return nil, nil
}

type fakePolicy struct {
	mutationErr error
	order       *[]string
}

func (p fakePolicy) EvalQuery(ctx context.Context, q accessgraph.Query) error { return nil }

func (p fakePolicy) EvalMutation(ctx context.Context, m accessgraph.Mutation) error {
	if p.order != nil {
		*p.order = append(*p.order, "policy")
	}
	return p.mutationErr
}

type recordingEntityPlugin struct {
	name          string
	order         *[]string
	intercept     bool
	loadAfter     bool
	afterCallback func()
}

func (p recordingEntityPlugin) ID() string { return p.name }

func (p recordingEntityPlugin) MutationInterceptionFilter(ctx context.Context, action accessgraph.Op, model string, m accessgraph.Mutation) (plugin.MutationFilterResult, error) {
	return plugin.MutationFilterResult{Intercept: true, LoadAfterMutationEntities: p.loadAfter}, nil
}

func (p recordingEntityPlugin) BeforeEntityMutation(ctx context.Context, model string, m accessgraph.Mutation, before []map[string]any) error {
	if p.order != nil {
		*p.order = append(*p.order, p.name)
	}
	return nil
}

func (p recordingEntityPlugin) AfterEntityMutation(ctx context.Context, model string, m accessgraph.Mutation, after []map[string]any) error {
	if p.afterCallback != nil {
		p.afterCallback()
	}
	return nil
}

type recordingTxState struct {
	inTransaction bool
	onCommit      func(fn func(context.Context) error)
}

func (t *recordingTxState) InTransaction() bool { return t.inTransaction }
func (t *recordingTxState) OnCommit(fn func(context.Context) error) {
	t.onCommit(fn)
}
