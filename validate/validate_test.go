package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/model"
)

// postModel builds a Post model with a scalar id/title/published, an
// owned-side "author" to-one relation, and a compound unique group, for
// exercising both scalar and relation validation paths.
func postModel() *model.ModelDef {
	return &model.ModelDef{
		Name:       "Post",
		FieldOrder: []string{"id", "title", "published", "tags", "authorId", "author"},
		Fields: map[string]*model.FieldDef{
			"id":        {Name: "id", Type: model.TypeString, ID: true},
			"title":     {Name: "title", Type: model.TypeString},
			"published": {Name: "published", Type: model.TypeBoolean, Optional: true, Default: &model.DefaultValue{Literal: false}},
			"tags":      {Name: "tags", Type: model.TypeString, Array: true, Optional: true},
			"authorId":  {Name: "authorId", Type: model.TypeString, ForeignKeyFor: []string{"author"}},
			"author": {
				Name: "author", Type: "User", Optional: true,
				Relation: &model.Relation{Model: "User", Fields: []string{"authorId"}, References: []string{"id"}},
			},
		},
		IdFields: []string{"id"},
		UniqueFields: map[string]*model.UniqueGroup{
			"authorId_title": {Name: "authorId_title", Fields: []string{"authorId", "title"}},
		},
	}
}

func TestValidateFindRejectsSelectAndOmitTogether(t *testing.T) {
	m := postModel()
	err := ValidateFind(m, "findMany", &FindArgs{
		Select: M{"title": true},
		Omit:   M{"tags": true},
	}, false)
	require.Error(t, err)
	assert.True(t, accessgraph.IsInputValidationError(err))
}

func TestValidateFindUnknownWhereField(t *testing.T) {
	m := postModel()
	err := ValidateFind(m, "findMany", &FindArgs{Where: M{"bogus": "x"}}, false)
	require.Error(t, err)
}

func TestValidateFindUniqueRequiresFullUniqueKey(t *testing.T) {
	m := postModel()

	err := ValidateFind(m, "findUnique", &FindArgs{Where: M{"authorId": "u1"}}, true)
	require.Error(t, err, "partial compound-unique filter must be rejected")

	err = ValidateFind(m, "findUnique", &FindArgs{Where: M{"id": "p1"}}, true)
	require.NoError(t, err)

	err = ValidateFind(m, "findUnique", &FindArgs{
		Where: M{"authorId": "u1", "title": "hello"},
	}, true)
	require.NoError(t, err)
}

func TestValidateFindOrderByExactlyOneField(t *testing.T) {
	m := postModel()
	err := ValidateFind(m, "findMany", &FindArgs{
		OrderBy: []M{{"title": "asc", "published": "desc"}},
	}, false)
	require.Error(t, err)

	err = ValidateFind(m, "findMany", &FindArgs{OrderBy: []M{{"title": "asc"}}}, false)
	require.NoError(t, err)

	err = ValidateFind(m, "findMany", &FindArgs{OrderBy: []M{{"title": "sideways"}}}, false)
	require.Error(t, err, "orderBy direction must be asc/desc")
}

func TestValidateFindSkipMustNotBeNegative(t *testing.T) {
	m := postModel()
	neg := -1
	err := ValidateFind(m, "findMany", &FindArgs{Skip: &neg}, false)
	require.Error(t, err)
}

func TestValidateCreateRequiredFields(t *testing.T) {
	m := postModel()

	err := ValidateCreate(m, "create", &CreateArgs{Data: M{"title": "hello", "authorId": "u1"}})
	require.NoError(t, err, "id is an ID field so it's not required, published has a default")

	err = ValidateCreate(m, "create", &CreateArgs{Data: M{"title": "hello"}})
	require.Error(t, err, "authorId owns the FK and must be supplied")
}

func TestValidateCreateRelationWriteOperators(t *testing.T) {
	m := postModel()
	err := ValidateCreate(m, "create", &CreateArgs{Data: M{
		"authorId": "u1",
		"title":    "hello",
		"author":   M{"bogusOp": M{"id": "u1"}},
	}})
	require.Error(t, err)

	err = ValidateCreate(m, "create", &CreateArgs{Data: M{
		"title":    "hello",
		"authorId": "u1",
		"author":   M{"connect": M{"id": "u1"}},
	}})
	require.NoError(t, err)
}

func TestValidateUpdateScalarOperatorExclusivity(t *testing.T) {
	m := postModel()

	err := ValidateUpdate(m, "update", &UpdateArgs{
		Where: M{"id": "p1"},
		Data:  M{"title": M{"set": "new", "increment": 1}},
	}, true)
	require.Error(t, err, "exactly one update operator must be present")

	err = ValidateUpdate(m, "update", &UpdateArgs{
		Where: M{"id": "p1"},
		Data:  M{"title": M{"set": "new"}},
	}, true)
	require.NoError(t, err)
}

func TestValidateUpdatePushOnlyOnArrayFields(t *testing.T) {
	m := postModel()

	err := ValidateUpdate(m, "update", &UpdateArgs{
		Where: M{"id": "p1"},
		Data:  M{"title": M{"push": "x"}},
	}, true)
	require.Error(t, err, "push is only valid on array fields")

	err = ValidateUpdate(m, "update", &UpdateArgs{
		Where: M{"id": "p1"},
		Data:  M{"tags": M{"push": "x"}},
	}, true)
	require.NoError(t, err)
}

func TestValidateUpdateManyDoesNotRequireUniqueWhere(t *testing.T) {
	m := postModel()
	err := ValidateUpdate(m, "updateMany", &UpdateArgs{
		Where: M{"published": true},
		Data:  M{"title": M{"set": "bulk"}},
	}, false)
	require.NoError(t, err)
}

func TestValidateUpsertRequiresUniqueWhereAndValidatesBothSides(t *testing.T) {
	m := postModel()
	err := ValidateUpsert(m, &UpsertArgs{
		Where:  M{"title": "only-half-the-key"},
		Create: M{"title": "t", "authorId": "u1"},
		Update: M{"title": M{"set": "t2"}},
	})
	require.Error(t, err)

	err = ValidateUpsert(m, &UpsertArgs{
		Where:  M{"id": "p1"},
		Create: M{"title": "t", "authorId": "u1"},
		Update: M{"title": M{"set": "t2"}},
	})
	require.NoError(t, err)
}

func TestValidateDeleteUniqueRequiresFullKey(t *testing.T) {
	m := postModel()
	err := ValidateDelete(m, "delete", &DeleteArgs{Where: M{"authorId": "u1"}}, true)
	require.Error(t, err)

	err = ValidateDelete(m, "delete", &DeleteArgs{Where: M{"id": "p1"}}, true)
	require.NoError(t, err)
}

func TestValidateCountUnknownSelectField(t *testing.T) {
	m := postModel()
	err := ValidateCount(m, &CountArgs{Select: M{"bogus": true}})
	require.Error(t, err)

	err = ValidateCount(m, &CountArgs{Select: M{"_all": true}})
	require.NoError(t, err)
}

func TestValidateAggregateRejectsNonScalarTargets(t *testing.T) {
	m := postModel()
	err := ValidateAggregate(m, &AggregateArgs{Avg: M{"author": true}})
	require.Error(t, err)

	err = ValidateAggregate(m, &AggregateArgs{Count: M{"id": true}})
	require.NoError(t, err)
}

func TestValidateGroupByOrderByMustAppearInBy(t *testing.T) {
	m := postModel()
	err := ValidateGroupBy(m, &GroupByArgs{
		By:      []string{"published"},
		OrderBy: []M{{"title": "asc"}},
	})
	require.Error(t, err)

	err = ValidateGroupBy(m, &GroupByArgs{
		By:      []string{"published"},
		OrderBy: []M{{"published": "asc"}},
	})
	require.NoError(t, err)
}

func TestValidateGroupByRequiresAtLeastOneByField(t *testing.T) {
	m := postModel()
	err := ValidateGroupBy(m, &GroupByArgs{})
	require.Error(t, err)
}
