package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "isLoggedIn", "true"))
	v, ok, err := s.Get(ctx, "isLoggedIn")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Set(ctx, "isLoggedIn", "false"))
	v, _, _ = s.Get(ctx, "isLoggedIn")
	assert.Equal(t, "false", v, "last write wins")

	require.NoError(t, s.Remove(ctx, "isLoggedIn"))
	_, ok, err = s.Get(ctx, "isLoggedIn")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, "never-set"), "removing a missing key is not an error")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "kalinga:")
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "unlocked-modules", `["1"]`))
	got, err := mr.Get("kalinga:unlocked-modules")
	require.NoError(t, err)
	assert.Equal(t, `["1"]`, got)
	assert.Zero(t, mr.TTL("kalinga:unlocked-modules"), "entries never expire")
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url", "")
	assert.Error(t, err)
}

// fakeDB is an in-memory stand-in for the kv_entry table.
type fakeDB struct {
	rows map[string]string
	fail error
}

type fakeRow struct {
	v   string
	err error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.v
	return nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...interface{}) pgx.Row {
	if f.fail != nil {
		return fakeRow{err: f.fail}
	}
	v, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{v: v}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if f.fail != nil {
		return pgconn.CommandTag{}, f.fail
	}
	key := args[0].(string)
	if len(args) == 2 {
		f.rows[key] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	delete(f.rows, key)
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func TestPostgresStore(t *testing.T) {
	s := &PostgresStore{db: &fakeDB{rows: map[string]string{}}}
	exerciseStore(t, s)
}

func TestPostgresStore_Error(t *testing.T) {
	boom := errors.New("connection refused")
	s := &PostgresStore{db: &fakeDB{rows: map[string]string{}, fail: boom}}

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Set(context.Background(), "k", "v"), boom)
}
