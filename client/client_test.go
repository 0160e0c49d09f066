package client

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph/dialect"
	"github.com/polyquery/accessgraph/dialect/sql"
	"github.com/polyquery/accessgraph/dialect/sqlite"
	"github.com/polyquery/accessgraph/model"
)

// userSchema builds a minimal one-model schema (id, name, email unique) for
// exercising the façade end to end against a mocked connection.
func userSchema() *model.Schema {
	m := &model.ModelDef{
		Name:       "User",
		FieldOrder: []string{"id", "name", "email"},
		Fields: map[string]*model.FieldDef{
			"id":    {Name: "id", Type: model.TypeString, ID: true},
			"name":  {Name: "name", Type: model.TypeString},
			"email": {Name: "email", Type: model.TypeString, Unique: true},
		},
		IdFields: []string{"id"},
		UniqueFields: map[string]*model.UniqueGroup{
			"email": {Name: "email", Fields: []string{"email"}},
		},
	}
	return &model.Schema{
		Provider: model.SQLite,
		Models:   map[string]*model.ModelDef{"User": m},
	}
}

func newTestClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := sql.OpenDB(dialect.SQLite, db)
	c := NewClient(userSchema(), Driver(drv), WithCapability(sqlite.Capability{}))
	return c, mock
}

func TestClientFindUnique(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("u1", "Ada", "ada@example.com"))

	row, err := c.Model("User").FindUnique(context.Background(), M{"id": "u1"})
	require.NoError(t, err)
	require.Equal(t, "Ada", row["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientFindUniqueOrThrowNotFound(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	_, err := c.Model("User").FindUniqueOrThrow(context.Background(), M{"id": "missing"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCreate(t *testing.T) {
	c, mock := newTestClient(t)
	// the orchestrator issues INSERT ... RETURNING id, so this runs through
	// Conn.Query rather than Conn.Exec.
	mock.ExpectQuery("INSERT INTO").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u2"))

	row, err := c.Model("User").Create(context.Background(), M{
		"id": "u2", "name": "Grace", "email": "grace@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "Grace", row["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientUpdate(t *testing.T) {
	c, mock := newTestClient(t)
	// same RETURNING shape as Create: UpdateArgs's affected-row count comes
	// back via the RETURNING id rowset, not a driver result.
	mock.ExpectQuery("UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("u1", "Ada Lovelace", "ada@example.com"))

	row, err := c.Model("User").Update(context.Background(),
		M{"id": "u1"}, M{"name": "Ada Lovelace"})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", row["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientDelete(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("u1", "Ada", "ada@example.com"))
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))

	row, err := c.Model("User").Delete(context.Background(), M{"id": "u1"})
	require.NoError(t, err)
	require.Equal(t, "Ada", row["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCountBare(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := c.Model("User").Count(context.Background(), CountArgs{})
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientTransactionCommit(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u3"))
	mock.ExpectCommit()

	err := c.Transaction(context.Background(), func(ctx context.Context, tx *Client) error {
		_, err := tx.Model("User").Create(ctx, M{"id": "u3", "name": "Hedy", "email": "hedy@example.com"})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientTransactionRollback(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	wantErr := context.Canceled
	err := c.Transaction(context.Background(), func(ctx context.Context, tx *Client) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientTransactionNested(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u4"))
	mock.ExpectCommit()

	err := c.Transaction(context.Background(), func(ctx context.Context, tx *Client) error {
		return c.Transaction(ctx, func(ctx context.Context, inner *Client) error {
			_, err := inner.Model("User").Create(ctx, M{"id": "u4", "name": "Katherine", "email": "katherine@example.com"})
			return err
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(M{"email": "ada@example.com", "id": "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", decoded["email"])
	require.Equal(t, "u1", decoded["id"])
}

func TestClientUseUnavailableInTransaction(t *testing.T) {
	c, mock := newTestClient(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := c.Transaction(context.Background(), func(ctx context.Context, tx *Client) error {
		require.Panics(t, func() { tx.Use() })
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
