package query

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/shibukawa/ctepipe"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenDatabase(t.Context(), "sqlite", ":memory:", 5)
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price NUMERIC(10,2), attrs TEXT);
		INSERT INTO items (id, name, price, attrs) VALUES
			(1, 'apple', 1.25, '{"color":"red"}'),
			(2, 'banana', 2.5, NULL),
			(3, 'cherry', 4, '[1,2]'),
			(4, 'durian', 12.75, NULL);
	`)
	require.NoError(t, err)

	return db
}

func TestExecutor_Execute(t *testing.T) {
	db := setupSQLite(t)
	executor := NewExecutor(db)

	q := ctepipe.New("SELECT id, name, price FROM items ORDER BY id")

	result, err := executor.Execute(t.Context(), q, Options{Timeout: 5})
	require.NoError(t, err)

	require.Equal(t, []string{"id", "name", "price"}, result.Columns)
	require.Equal(t, 4, result.Count)
	require.Equal(t, int64(1), result.Rows[0][0])
	require.Equal(t, "apple", result.Rows[0][1])

	price, ok := result.Rows[0][2].(decimal.Decimal)
	require.True(t, ok, "NUMERIC column should be decimal, got %T", result.Rows[0][2])
	require.True(t, decimal.RequireFromString("1.25").Equal(price))

	price, ok = result.Rows[2][2].(decimal.Decimal)
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(4).Equal(price))
}

func TestExecutor_PipelineQuery(t *testing.T) {
	db := setupSQLite(t)
	executor := NewExecutor(db)

	q, err := ctepipe.New("SELECT id, name FROM items").
		WithSelect("SELECT * FROM :_ WHERE id > 1")
	require.NoError(t, err)

	q, err = q.WithSelect("SELECT count(*) AS n FROM :_")
	require.NoError(t, err)

	result, err := executor.Execute(t.Context(), q, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, result.Columns)
	require.Equal(t, int64(3), result.Rows[0][0])
}

func TestExecutor_LimitOffset(t *testing.T) {
	db := setupSQLite(t)
	executor := NewExecutor(db)

	q := ctepipe.New("WITH cheap AS (SELECT id FROM items WHERE price < 10)\nSELECT id FROM cheap ORDER BY id")

	result, err := executor.Execute(t.Context(), q, Options{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, "WITH cheap AS (SELECT id FROM items WHERE price < 10),\n_ AS (\n  SELECT id FROM cheap ORDER BY id\n)\nSELECT * FROM _ LIMIT 2 OFFSET 1", result.SQL)
	require.Equal(t, [][]any{{int64(2)}, {int64(3)}}, result.Rows)
}

func TestExecutor_Params(t *testing.T) {
	db := setupSQLite(t)
	executor := NewExecutor(db)

	q := ctepipe.New("SELECT name FROM items WHERE id >= ? AND price < :max ORDER BY id")

	result, err := executor.Execute(t.Context(), q, Options{
		Args:   []any{2},
		Params: map[string]any{"max": 10},
	})
	require.NoError(t, err)
	require.Equal(t, [][]any{{"banana"}, {"cherry"}}, result.Rows)
	require.Len(t, result.Args, 2)
}

func TestExecutor_JSONColumns(t *testing.T) {
	db := setupSQLite(t)
	executor := NewExecutor(db)

	result, err := executor.Execute(t.Context(), ctepipe.New("SELECT CAST(attrs AS BLOB) AS attrs FROM items ORDER BY id"), Options{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"color": "red"}, result.Rows[0][0])
	require.Nil(t, result.Rows[1][0])
	require.Equal(t, []any{float64(1), float64(2)}, result.Rows[2][0])
}

func TestExecutor_Errors(t *testing.T) {
	db := setupSQLite(t)
	executor := NewExecutor(db)

	_, err := executor.Execute(t.Context(), ctepipe.New("SELECT * FROM missing_table"), Options{})
	require.True(t, errors.Is(err, ErrQueryExecution))

	_, err = executor.Execute(t.Context(), ctepipe.New("DELETE FROM items"), Options{})
	require.True(t, errors.Is(err, ErrDangerousQuery))

	_, err = executor.Execute(t.Context(), ctepipe.New("SELECT 1"), Options{Offset: 3})
	require.True(t, errors.Is(err, ErrInvalidOptions))

	_, err = executor.Execute(t.Context(), ctepipe.New("WITH a AS (SELECT 1"), Options{})
	require.Error(t, err)
}

func TestPrepare(t *testing.T) {
	text, err := Prepare(ctepipe.New("SELECT 1"), Options{Explain: true})
	require.NoError(t, err)
	require.Equal(t, "EXPLAIN SELECT 1", text)

	text, err = Prepare(ctepipe.New("DELETE FROM items"), Options{ExecuteDangerousQuery: true})
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM items", text)

	_, err = Prepare(ctepipe.New(""), Options{Limit: 10})
	require.True(t, errors.Is(err, ctepipe.ErrNoPipelineStage))
}

func TestNormalizeDriverName(t *testing.T) {
	tests := map[string]string{
		"postgres":   "pgx",
		"PostgreSQL": "pgx",
		"mariadb":    "mysql",
		"sqlite":     "sqlite3",
		" sqlite3 ":  "sqlite3",
		"custom":     "custom",
	}

	for input, expected := range tests {
		require.Equal(t, expected, NormalizeDriverName(input), input)
	}
}

func TestOpenDatabase_UnknownDriver(t *testing.T) {
	_, err := OpenDatabase(t.Context(), "oracle", "whatever", 1)
	require.True(t, errors.Is(err, ErrDatabaseConnection))
}
