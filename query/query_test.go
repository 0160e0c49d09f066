package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/dialect/sqlite"
	"github.com/polyquery/accessgraph/model"
)

func userAndPostSchema() *model.Schema {
	user := &model.ModelDef{
		Name:       "User",
		FieldOrder: []string{"id", "name", "posts"},
		Fields: map[string]*model.FieldDef{
			"id":   {Name: "id", Type: model.TypeString, ID: true},
			"name": {Name: "name", Type: model.TypeString},
			"posts": {
				Name: "posts", Type: "Post", Array: true, Optional: true,
				Relation: &model.Relation{Model: "Post", Opposite: "author"},
			},
		},
		IdFields: []string{"id"},
	}
	post := &model.ModelDef{
		Name:       "Post",
		FieldOrder: []string{"id", "title", "authorId", "author"},
		Fields: map[string]*model.FieldDef{
			"id":       {Name: "id", Type: model.TypeString, ID: true},
			"title":    {Name: "title", Type: model.TypeString},
			"authorId": {Name: "authorId", Type: model.TypeString},
			"author": {
				Name: "author", Type: "User",
				Relation: &model.Relation{Model: "User", Fields: []string{"authorId"}, References: []string{"id"}, Opposite: "posts"},
			},
		},
		IdFields: []string{"id"},
	}
	return &model.Schema{
		Provider: model.SQLite,
		Models:   map[string]*model.ModelDef{"User": user, "Post": post},
	}
}

func TestBuildDefaultProjectionOrdersByIDWhenUnordered(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}

	plan, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, plan.OrderFields, "id tie-break must be synthesized when absent")

	sqlText, _ := plan.Selector.Query()
	assert.Contains(t, sqlText, "ORDER BY")
	assert.Contains(t, sqlText, "t0.id")
}

func TestBuildRespectsExplicitOrderByAndSkipsDuplicateIDTieBreak(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}

	plan, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{
		OrderBy: []M{{"id": "desc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, plan.OrderFields, "id already covers the tie-break, must not duplicate")
}

func TestBuildNegativeTakeReversesOrderAndRecordsNegateTake(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}
	take := -3

	plan, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{
		OrderBy: []M{{"name": "asc"}},
		Take:    &take,
	})
	require.NoError(t, err)
	assert.True(t, plan.NegateTake)
	require.NotNil(t, plan.Take)
	assert.Equal(t, 3, *plan.Take, "limit must use the absolute value of a negative take")
}

func TestBuildSelectRelationUsesBuildRelationSelectionForSimpleFK(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}

	plan, err := Build(schema, schema.Model("Post"), cap, "findMany", &Args{
		Select: M{"title": true, "author": M{"select": M{"name": true}}},
	})
	require.NoError(t, err)
	require.Len(t, plan.Columns, 2)

	var relCol *Column
	for i := range plan.Columns {
		if plan.Columns[i].Kind == ColRelationToOne {
			relCol = &plan.Columns[i]
		}
	}
	require.NotNil(t, relCol, "author must be projected as a to-one relation column")
	assert.Equal(t, "User", relCol.RelationModel)
	assert.Contains(t, relCol.Key, "json_object")
}

func TestBuildCountRelationRejectsNonRelationField(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}

	_, err := Build(schema, schema.Model("Post"), cap, "findMany", &Args{
		Select: M{"_count": M{"title": true}},
	})
	require.Error(t, err)
}

func TestBuildUnknownSelectFieldErrors(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}

	_, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{
		Select: M{"bogus": true},
	})
	require.Error(t, err)
}

func TestBuildDistinctFallsBackToInMemoryWhenUnsupported(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{} // SupportsDistinctOn() == false

	plan, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{
		Distinct: []string{"name"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, plan.InMemoryDistinct)
}

func TestBuildRowPolicyIsANDedIntoWhere(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}
	policy := sql.EQ("t0.name", "Ada")

	plan, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{RowPolicy: policy})
	require.NoError(t, err)
	sqlText, args := plan.Selector.Query()
	assert.Contains(t, sqlText, "WHERE")
	assert.Contains(t, args, "Ada")
}

func TestBuildContextCommentNamesModelAndOperation(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}

	plan, err := Build(schema, schema.Model("User"), cap, "findFirst", &Args{})
	require.NoError(t, err)
	assert.Contains(t, plan.ContextComment, `"model":"User"`)
	assert.Contains(t, plan.ContextComment, `"operation":"findFirst"`)
}

func TestCursorPredicateBuildsKeysetDisjunction(t *testing.T) {
	terms := []sql.OrderTerm{
		{Column: "t0.name", Desc: false},
		{Column: "t0.id", Desc: false},
	}
	pred, err := cursorPredicate(&model.ModelDef{IdFields: []string{"id"}}, "t0", terms, M{
		"name": "Ada", "id": "u1",
	})
	require.NoError(t, err)
	require.NotNil(t, pred)

	b := sql.NewBuilder("sqlite")
	pred.Render(b)
	text, args := b.Query()
	assert.Contains(t, text, ">")
	assert.Contains(t, args, "Ada")
	assert.Contains(t, args, "u1")
}

func TestCursorPredicateNilWhenNoOrderTermsOrEmptyCursor(t *testing.T) {
	m := &model.ModelDef{IdFields: []string{"id"}}
	pred, err := cursorPredicate(m, "t0", nil, M{"id": "u1"})
	require.NoError(t, err)
	assert.Nil(t, pred)

	pred, err = cursorPredicate(m, "t0", []sql.OrderTerm{{Column: "t0.id"}}, nil)
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestQueryWrapperExposesPlanSummary(t *testing.T) {
	schema := userAndPostSchema()
	cap := sqlite.Capability{}
	take := 5

	plan, err := Build(schema, schema.Model("User"), cap, "findMany", &Args{Take: &take})
	require.NoError(t, err)

	w := NewWrapper(plan, "findMany")
	assert.Equal(t, "User", w.Type())
	require.NotNil(t, w.Limit())
	assert.Equal(t, 5, *w.Limit())
	assert.Same(t, plan, w.Plan())
}
