package result

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/dialect/sqlite"
	"github.com/polyquery/accessgraph/model"
	"github.com/polyquery/accessgraph/query"
)

// queryRows runs a trivial SELECT against a sqlmock-backed driver and
// returns the driver rows it produces, the cheapest way to get a real
// *sql.Rows to hand to Decode without standing up an actual database.
func queryRows(t *testing.T, cols []string, build func(*sqlmock.Rows)) *sql.Rows {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := sql.OpenDB(dialect.SQLite, db)

	rs := sqlmock.NewRows(cols)
	build(rs)
	mock.ExpectQuery("SELECT").WillReturnRows(rs)

	var rows sql.Rows
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, &rows))
	return &rows
}

func TestDecodeScalarColumns(t *testing.T) {
	idField := &model.FieldDef{Name: "id", Type: model.TypeString}
	viewsField := &model.FieldDef{Name: "views", Type: model.TypeInt}
	publishedField := &model.FieldDef{Name: "published", Type: model.TypeBoolean}

	plan := &query.Plan{Columns: []query.Column{
		{Key: "t0.id", Kind: query.ColScalar, Field: idField},
		{Key: "t0.views", Kind: query.ColScalar, Field: viewsField},
		{Key: "t0.published", Kind: query.ColScalar, Field: publishedField},
	}}

	rows := queryRows(t, []string{"id", "views", "published"}, func(rs *sqlmock.Rows) {
		rs.AddRow("p1", int64(7), true)
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "p1", out[0]["id"])
	require.Equal(t, int64(7), out[0]["views"])
	require.Equal(t, true, out[0]["published"])
}

func TestDecodeRelationToOneObject(t *testing.T) {
	authorField := &model.FieldDef{Name: "author"}
	nameField := &model.FieldDef{Name: "name", Type: model.TypeString}

	plan := &query.Plan{Columns: []query.Column{
		{Key: "author_json", Kind: query.ColRelationToOne, Field: authorField,
			Nested: []query.Column{{Key: "name", Kind: query.ColScalar, Field: nameField}}},
	}}

	rows := queryRows(t, []string{"author_json"}, func(rs *sqlmock.Rows) {
		rs.AddRow(`{"name":"Ada"}`)
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	nested, ok := out[0]["author"].(M)
	require.True(t, ok)
	require.Equal(t, "Ada", nested["name"])
}

func TestDecodeRelationToOneNullWhenNoMatch(t *testing.T) {
	authorField := &model.FieldDef{Name: "author"}
	plan := &query.Plan{Columns: []query.Column{
		{Key: "author_json", Kind: query.ColRelationToOne, Field: authorField},
	}}

	rows := queryRows(t, []string{"author_json"}, func(rs *sqlmock.Rows) {
		rs.AddRow(nil)
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	require.Nil(t, out[0]["author"])
}

func TestDecodeRelationToManyArray(t *testing.T) {
	postsField := &model.FieldDef{Name: "posts"}
	titleField := &model.FieldDef{Name: "title", Type: model.TypeString}

	plan := &query.Plan{Columns: []query.Column{
		{Key: "posts_json", Kind: query.ColRelationToMany, Field: postsField,
			Nested: []query.Column{{Key: "title", Kind: query.ColScalar, Field: titleField}}},
	}}

	rows := queryRows(t, []string{"posts_json"}, func(rs *sqlmock.Rows) {
		rs.AddRow(`[{"title":"a"},{"title":"b"}]`)
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	posts, ok := out[0]["posts"].([]M)
	require.True(t, ok)
	require.Len(t, posts, 2)
	require.Equal(t, "a", posts[0]["title"])
}

func TestDecodeCountColumn(t *testing.T) {
	plan := &query.Plan{Columns: []query.Column{{Key: "count_json", Kind: query.ColCount}}}

	rows := queryRows(t, []string{"count_json"}, func(rs *sqlmock.Rows) {
		rs.AddRow(`{"posts":3}`)
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	counts, ok := out[0]["_count"].(M)
	require.True(t, ok)
	require.EqualValues(t, 3, counts["posts"])
}

func TestDecodeInMemoryDistinctDedupesOnFirstOccurrence(t *testing.T) {
	nameField := &model.FieldDef{Name: "name", Type: model.TypeString}
	plan := &query.Plan{
		Columns:          []query.Column{{Key: "t0.name", Kind: query.ColScalar, Field: nameField}},
		InMemoryDistinct: []string{"name"},
	}

	rows := queryRows(t, []string{"name"}, func(rs *sqlmock.Rows) {
		rs.AddRow("Ada").AddRow("Ada").AddRow("Grace")
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Ada", out[0]["name"])
	require.Equal(t, "Grace", out[1]["name"])
}

func TestDecodeNegateTakeReversesRows(t *testing.T) {
	nameField := &model.FieldDef{Name: "name", Type: model.TypeString}
	plan := &query.Plan{
		Columns:    []query.Column{{Key: "t0.name", Kind: query.ColScalar, Field: nameField}},
		NegateTake: true,
	}

	rows := queryRows(t, []string{"name"}, func(rs *sqlmock.Rows) {
		rs.AddRow("c").AddRow("b").AddRow("a")
	})

	out, err := Decode(plan, sqlite.Capability{}, rows)
	require.NoError(t, err)
	require.Equal(t, []M{{"name": "a"}, {"name": "b"}, {"name": "c"}}, out)
}

func TestCoerceBoolFromSQLiteIntegerEncoding(t *testing.T) {
	v, err := coerceBool(int64(1))
	require.NoError(t, err)
	require.True(t, v)

	v, err = coerceBool(int64(0))
	require.NoError(t, err)
	require.False(t, v)
}

func TestCoerceDateTimeFromRFC3339(t *testing.T) {
	v, err := coerceDateTime("2024-01-02T15:04:05Z")
	require.NoError(t, err)
	require.Equal(t, 2024, v.Year())
}

func TestCoerceDecimalPreservesTextualForm(t *testing.T) {
	v, err := coerceDecimal("19.99")
	require.NoError(t, err)
	require.Equal(t, "19.99", v, "decimal must keep its exact textual form, not round through float64")
}

func TestCoerceBigIntFromString(t *testing.T) {
	v, err := coerceBigInt("123456789012345678901234567890")
	require.NoError(t, err)
	require.Equal(t, "123456789012345678901234567890", v.String())
}

func TestCoerceArrayFieldNullBecomesEmptySlice(t *testing.T) {
	f := &model.FieldDef{Name: "tags", Type: model.TypeString, Array: true}
	v, err := coerceScalar(f, nil)
	require.NoError(t, err)
	require.Equal(t, []any{}, v)
}
