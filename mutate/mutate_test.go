package mutate

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph"
	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/dialect/sqlite"
	"github.com/polyquery/accessgraph/model"
)

func postModel() *model.ModelDef {
	return &model.ModelDef{
		Name:       "Post",
		FieldOrder: []string{"id", "title", "views"},
		Fields: map[string]*model.FieldDef{
			"id":    {Name: "id", Type: model.TypeString, ID: true},
			"title": {Name: "title", Type: model.TypeString},
			"views": {Name: "views", Type: model.TypeInt, Optional: true},
		},
		IdFields: []string{"id"},
	}
}

func newOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := sql.OpenDB(dialect.SQLite, db)
	m := postModel()
	o := &Orchestrator{
		Schema: &model.Schema{Provider: model.SQLite, Models: map[string]*model.ModelDef{"Post": m}},
		Model:  m,
		Cap:    sqlite.Capability{},
		Conn:   drv,
	}
	return o, mock
}

func TestOrchestratorCreateReturnsGeneratedID(t *testing.T) {
	o, mock := newOrchestrator(t)
	mock.ExpectQuery("INSERT INTO").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))

	res, err := o.Create(context.Background(), &CreateArgs{Data: M{"id": "p1", "title": "hello"}})
	require.NoError(t, err)
	require.Equal(t, "p1", res.Row["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestratorCreateWrapsDriverErrorAsMutationError(t *testing.T) {
	o, mock := newOrchestrator(t)
	mock.ExpectQuery("INSERT INTO").WillReturnError(errors.New("constraint failed"))

	_, err := o.Create(context.Background(), &CreateArgs{Data: M{"id": "p1", "title": "hello"}})
	require.Error(t, err)
	require.True(t, accessgraph.IsMutationError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestratorUpdateReturnsAffectedCount(t *testing.T) {
	o, mock := newOrchestrator(t)
	mock.ExpectQuery("UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1").AddRow("p2"))

	res, err := o.Update(context.Background(), &UpdateArgs{
		Where: M{"title": "hello"},
		Data:  M{"views": M{"increment": 1}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestratorUpdateEmulatesLimitWhenUnsupported(t *testing.T) {
	o, mock := newOrchestrator(t)
	// sqlite.Capability.SupportsUpdateWithLimit() is true, so exercise the
	// capped-subquery path against a capability that reports it unsupported.
	o.Cap = noLimitCapability{sqlite.Capability{}}
	limit := 1
	mock.ExpectQuery("IN \\(SELECT id FROM Post").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))

	res, err := o.Update(context.Background(), &UpdateArgs{
		Where: M{"title": "hello"},
		Data:  M{"title": M{"set": "capped"}},
		Limit: &limit,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestratorDeleteReturnsAffectedCount(t *testing.T) {
	o, mock := newOrchestrator(t)
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := o.Delete(context.Background(), &DeleteArgs{Where: M{"title": "hello"}})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestratorUpsertUpdatesWhenFound(t *testing.T) {
	o, mock := newOrchestrator(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectQuery("UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))

	res, err := o.Upsert(context.Background(), &UpsertArgs{
		Where:  M{"id": "p1"},
		Create: M{"id": "p1", "title": "new"},
		Update: M{"title": M{"set": "updated"}},
	})
	require.NoError(t, err)
	require.Equal(t, "p1", res.Row["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestratorUpsertCreatesWhenNotFound(t *testing.T) {
	o, mock := newOrchestrator(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p2"))

	res, err := o.Upsert(context.Background(), &UpsertArgs{
		Where:  M{"id": "p2"},
		Create: M{"id": "p2", "title": "new"},
		Update: M{"title": M{"set": "updated"}},
	})
	require.NoError(t, err)
	require.Equal(t, "p2", res.Row["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapperFieldAccessors(t *testing.T) {
	w := NewWrapper("Post", accessgraph.OpCreate, M{"title": "hello"}, nil, nil)
	require.Equal(t, "Post", w.Type())
	require.Equal(t, []string{"title"}, w.Fields())

	v, ok := w.Field("title")
	require.True(t, ok)
	require.Equal(t, "hello", v)

	require.NoError(t, w.SetField("title", "updated"))
	v, _ = w.Field("title")
	require.Equal(t, "updated", v)

	w.ResetField("title")
	_, ok = w.Field("title")
	require.False(t, ok)
}

// noLimitCapability wraps a sql.Capability to force the emulated-LIMIT path
// in Update/Delete regardless of what the underlying dialect actually
// supports, so the capped-subquery branch can be exercised directly.
type noLimitCapability struct {
	sql.Capability
}

func (noLimitCapability) SupportsUpdateWithLimit() bool { return false }
func (noLimitCapability) SupportsDeleteWithLimit() bool { return false }
