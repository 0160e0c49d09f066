package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/dialect/sqlite"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/privacy"
	"github.com/polyquery/accessgraph/schema/expr"
)

func ownedPostModel(policies ...model.PolicyAttribute) *model.ModelDef {
	return &model.ModelDef{
		Name:       "Post",
		FieldOrder: []string{"id", "title", "ownerId", "published"},
		Fields: map[string]*model.FieldDef{
			"id":        {Name: "id", Type: model.TypeString, ID: true},
			"title":     {Name: "title", Type: model.TypeString},
			"ownerId":   {Name: "ownerId", Type: model.TypeString},
			"published": {Name: "published", Type: model.TypeBoolean},
		},
		IdFields: []string{"id"},
		Policies: policies,
	}
}

func ownerIsViewerExpr() expr.Expr {
	return expr.Binary(expr.OpEQ, expr.Field("ownerId"), expr.Member(expr.Call("auth"), "id"))
}

func render(t *testing.T, pred *sql.Predicate) (string, []any) {
	t.Helper()
	b := sql.NewBuilder("sqlite")
	pred.Render(b)
	return b.Query()
}

func TestRowFilterNoPoliciesDefaultsDenyAllForReadAllowAllForPostUpdate(t *testing.T) {
	m := ownedPostModel()
	cap := sqlite.Capability{}

	pred, err := RowFilter(nil, m, cap, "t0", OpRead, nil)
	require.NoError(t, err)
	text, _ := render(t, pred)
	assert.Contains(t, text, "1=0", "no allow rule at all must default to always-false for read")

	pred, err = RowFilter(nil, m, cap, "t0", OpPostUpdate, nil)
	require.NoError(t, err)
	text, _ = render(t, pred)
	assert.Contains(t, text, "1=1", "post-update defaults to always-true absent a matching rule")
}

func TestRowFilterCombinesAllowDisjunctionWithDenyNegation(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"read"}, Expr: expr.Literal(true)},
		model.PolicyAttribute{Kind: model.Deny, Ops: []string{"read"}, Expr: expr.Field("published")},
	)
	cap := sqlite.Capability{}

	pred, err := RowFilter(nil, m, cap, "t0", OpRead, nil)
	require.NoError(t, err)
	text, _ := render(t, pred)
	assert.Contains(t, text, "1=1")
	assert.Contains(t, text, "NOT")
	assert.Contains(t, text, "t0.published")
}

func TestRowFilterOwnerFieldBoundToAuthViewer(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"read"}, Expr: ownerIsViewerExpr()},
	)
	cap := sqlite.Capability{}
	viewer := &privacy.SimpleViewer{UserID: "u1"}

	pred, err := RowFilter(nil, m, cap, "t0", OpRead, viewer)
	require.NoError(t, err)
	text, args := render(t, pred)
	assert.Contains(t, text, "t0.ownerId")
	assert.Contains(t, args, "u1")
}

func TestRowFilterAuthMemberWithoutViewerErrors(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"read"}, Expr: ownerIsViewerExpr()},
	)
	cap := sqlite.Capability{}

	_, err := RowFilter(nil, m, cap, "t0", OpRead, nil)
	require.Error(t, err)
}

func TestMatchesOpAllExcludesPostUpdate(t *testing.T) {
	all := model.PolicyAttribute{Ops: []string{"all"}}
	assert.True(t, matchesOp(all, OpCreate))
	assert.True(t, matchesOp(all, OpRead))
	assert.False(t, matchesOp(all, OpPostUpdate), `"all" must not implicitly cover post-update`)
}

func TestCompileInRejectsColumnElements(t *testing.T) {
	e := expr.Binary(expr.OpIn, expr.Field("title"), expr.Array(expr.Field("ownerId")))
	_, err := Compile(nil, ownedPostModel(), sqlite.Capability{}, "t0", e, nil)
	require.Error(t, err)
}

func TestCompileNullComparison(t *testing.T) {
	e := expr.Binary(expr.OpEQ, expr.Field("title"), expr.Null())
	pred, err := Compile(nil, ownedPostModel(), sqlite.Capability{}, "t0", e, nil)
	require.NoError(t, err)
	text, _ := render(t, pred)
	assert.Contains(t, text, "t0.title")
	assert.Contains(t, text, "IS NULL")
}

func TestCheckAdmissionAllowMatchAdmitsRow(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"create"}, Expr: ownerIsViewerExpr()},
	)
	viewer := &privacy.SimpleViewer{UserID: "u1"}

	err := CheckAdmission(m, Row{"ownerId": "u1"}, viewer)
	require.NoError(t, err)
}

func TestCheckAdmissionAllowMismatchRejectsRow(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"create"}, Expr: ownerIsViewerExpr()},
	)
	viewer := &privacy.SimpleViewer{UserID: "other"}

	err := CheckAdmission(m, Row{"ownerId": "u1"}, viewer)
	require.Error(t, err)
	assert.True(t, accessgraph.IsRejectedByPolicy(err))
}

func TestCheckAdmissionDenyMatchAlwaysRejects(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"create"}, Expr: expr.Literal(true)},
		model.PolicyAttribute{Kind: model.Deny, Ops: []string{"create"}, Expr: expr.Field("published")},
	)

	err := CheckAdmission(m, Row{"published": true}, nil)
	require.Error(t, err)
	assert.True(t, accessgraph.IsRejectedByPolicy(err))

	err = CheckAdmission(m, Row{"published": false}, nil)
	require.NoError(t, err)
}

func TestCheckAdmissionNoPoliciesAdmitsEverything(t *testing.T) {
	m := ownedPostModel()
	err := CheckAdmission(m, Row{"title": "x"}, nil)
	require.NoError(t, err)
}

func TestCheckAdmissionRejectsCollectionPredicate(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"create"}, Expr: expr.Expr{
			Kind: expr.KindBinary,
			Op:   expr.OpExists,
			Left: &expr.Expr{Kind: expr.KindField, Field: "comments"},
		}},
	)
	err := CheckAdmission(m, Row{"title": "x"}, nil)
	require.Error(t, err)
}

func TestEvalQueryPolicyRowFilterForUsesReadOps(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"read"}, Expr: ownerIsViewerExpr()},
	)
	schema := &model.Schema{Provider: model.SQLite, Models: map[string]*model.ModelDef{"Post": m}}
	viewer := &privacy.SimpleViewer{UserID: "u1"}
	p := EvalQueryPolicy{
		Schema: schema,
		Cap:    sqlite.Capability{},
		Viewer: func(ctx context.Context) privacy.Viewer { return viewer },
	}

	pred, err := p.RowFilterFor(context.Background(), m, "t0")
	require.NoError(t, err)
	_, args := render(t, pred)
	assert.Contains(t, args, "u1")
}

func TestEvalMutationRejectsWhenNoMatchingAllowRule(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"read"}, Expr: expr.Literal(true)},
	)
	schema := &model.Schema{Provider: model.SQLite, Models: map[string]*model.ModelDef{"Post": m}}
	p := EvalQueryPolicy{Schema: schema, Cap: sqlite.Capability{}}

	mut := testMutation{modelName: "Post", op: accessgraph.OpCreate}
	err := p.EvalMutation(context.Background(), mut)
	require.Error(t, err)
	assert.True(t, accessgraph.IsRejectedByPolicy(err))
}

func TestEvalMutationPassesWhenModelHasNoPolicies(t *testing.T) {
	m := ownedPostModel()
	schema := &model.Schema{Provider: model.SQLite, Models: map[string]*model.ModelDef{"Post": m}}
	p := EvalQueryPolicy{Schema: schema, Cap: sqlite.Capability{}}

	mut := testMutation{modelName: "Post", op: accessgraph.OpDelete}
	require.NoError(t, p.EvalMutation(context.Background(), mut))
}

func TestEvalMutationAllowsWhenMatchingAllowRuleExists(t *testing.T) {
	m := ownedPostModel(
		model.PolicyAttribute{Kind: model.Allow, Ops: []string{"update"}, Expr: expr.Literal(true)},
	)
	schema := &model.Schema{Provider: model.SQLite, Models: map[string]*model.ModelDef{"Post": m}}
	p := EvalQueryPolicy{Schema: schema, Cap: sqlite.Capability{}}

	mut := testMutation{modelName: "Post", op: accessgraph.OpUpdate}
	require.NoError(t, p.EvalMutation(context.Background(), mut))
}

// testMutation is a minimal accessgraph.Mutation stand-in exposing only
// Type and Op, the two methods EvalMutation reads.
type testMutation struct {
	modelName string
	op        accessgraph.Op
}

func (m testMutation) Type() string             { return m.modelName }
func (m testMutation) Op() accessgraph.Op        { return m.op }
func (m testMutation) Fields() []string          { return nil }
func (m testMutation) Field(string) (any, bool)  { return nil, false }
func (m testMutation) SetField(string, any) error { return nil }
func (m testMutation) OldField(context.Context, string) (any, error) {
	return nil, nil
}
func (m testMutation) AddedFields() []string           { return nil }
func (m testMutation) AddedField(string) (any, bool)   { return nil, false }
func (m testMutation) ClearedFields() []string         { return nil }
func (m testMutation) FieldCleared(string) bool        { return false }
func (m testMutation) ResetField(string)                {}
func (m testMutation) Where() []func(any)               { return nil }
func (m testMutation) Client() any                      { return nil }
