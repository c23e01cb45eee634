package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/tashiscool/UsTaxes-sub000/internal/errs"
	"github.com/tashiscool/UsTaxes-sub000/internal/storage"
)

func newStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewStore(mock), mock
}

func TestStore_Get_OK(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT value FROM kv WHERE key=\$1`).
		WithArgs("submission_a").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("one")))

	v, err := s.Get(context.Background(), "submission_a")
	require.NoError(t, err)
	require.Equal(t, []byte("one"), v)
}

func TestStore_Get_NotFound(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT value FROM kv WHERE key=\$1`).
		WithArgs("submission_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "submission_missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_Get_OtherErr(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT value FROM kv WHERE key=\$1`).
		WithArgs("submission_a").
		WillReturnError(errors.New("conn reset"))

	_, err := s.Get(context.Background(), "submission_a")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_Set_Upsert(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO kv \(key, value\) VALUES \(\$1,\$2\)`).
		WithArgs("submission_a", []byte("one")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), "submission_a", []byte("one")))
}

func TestStore_Set_Err(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO kv \(key, value\) VALUES \(\$1,\$2\)`).
		WithArgs("submission_a", []byte("one")).
		WillReturnError(errors.New("write-fail"))

	require.Error(t, s.Set(context.Background(), "submission_a", []byte("one")))
}

func TestStore_Remove(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM kv WHERE key=\$1`).
		WithArgs("submission_a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Remove(context.Background(), "submission_a"))
}

func TestStore_Keys(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"key"}).
		AddRow("submission_a").
		AddRow("submission_b")
	mock.ExpectQuery(`SELECT key FROM kv WHERE key LIKE \$1 \|\| '%' ORDER BY key ASC`).
		WithArgs(storage.RecordKeyPrefix).
		WillReturnRows(rows)

	keys, err := s.Keys(context.Background(), storage.RecordKeyPrefix)
	require.NoError(t, err)
	require.Equal(t, []string{"submission_a", "submission_b"}, keys)
}

func TestStore_Keys_QueryErr(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT key FROM kv WHERE key LIKE \$1 \|\| '%' ORDER BY key ASC`).
		WithArgs(storage.RecordKeyPrefix).
		WillReturnError(errors.New("q-fail"))

	_, err := s.Keys(context.Background(), storage.RecordKeyPrefix)
	require.Error(t, err)
}

func TestStore_Keys_RowErr(t *testing.T) {
	s, mock := newStore(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"key"}).RowError(0, errors.New("row0"))
	mock.ExpectQuery(`SELECT key FROM kv WHERE key LIKE \$1 \|\| '%' ORDER BY key ASC`).
		WithArgs(storage.RecordKeyPrefix).
		WillReturnRows(rows)

	_, err := s.Keys(context.Background(), storage.RecordKeyPrefix)
	require.Error(t, err)
}
