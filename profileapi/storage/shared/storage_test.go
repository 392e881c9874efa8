package shared

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogo-app/perfil/internal/caching"
	"github.com/catalogo-app/perfil/internal/sqlutil"
)

type fakeTable struct {
	values   map[string]string
	selects  int
	upserted []string
	// afterSelect, if set, runs once between reading a row and returning it.
	afterSelect func()
}

func (f *fakeTable) SelectValue(_ context.Context, _ *sql.Tx, origin, key string) (string, bool, error) {
	f.selects++
	v, ok := f.values[origin+"/"+key]
	if hook := f.afterSelect; hook != nil {
		f.afterSelect = nil
		hook()
	}
	return v, ok, nil
}

func (f *fakeTable) UpsertValue(_ context.Context, txn *sql.Tx, origin, key, value string) error {
	if txn == nil {
		return errors.New("expected a transaction")
	}
	f.upserted = append(f.upserted, value)
	f.values[origin+"/"+key] = value
	return nil
}

func (f *fakeTable) DeleteValue(context.Context, *sql.Tx, string, string) error {
	return nil
}

type mapCache map[caching.LocalStorageKey]string

func (m mapCache) Get(k caching.LocalStorageKey) (string, bool) { v, ok := m[k]; return v, ok }
func (m mapCache) Set(k caching.LocalStorageKey, v string)      { m[k] = v }
func (m mapCache) Unset(k caching.LocalStorageKey)              { delete(m, k) }

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *fakeTable, mapCache) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	table := &fakeTable{values: map[string]string{}}
	cache := mapCache{}
	return &Database{
		DB:           db,
		Writer:       sqlutil.NewDummyWriter(),
		LocalStorage: table,
		Cache:        cache,
		Origin:       "https://perfil.example.com",
	}, mock, table, cache
}

func TestCommitFailureAfterApply(t *testing.T) {
	d, mock, table, cache := newMockDatabase(t)
	key := caching.LocalStorageKey{Origin: d.Origin, Key: UserNameKey}
	cache[key] = "Ana"

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	applied := false
	err := d.StageDisplayName(context.Background(), "Bia", func() error {
		applied = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"Bia"}, table.upserted)
	_, ok := cache[key]
	assert.False(t, ok, "a failed write must not leave the new value cached")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyErrorRollsBack(t *testing.T) {
	d, mock, _, cache := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := d.StageAvatarImage(context.Background(), "data:image/png;base64,AA==", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, cache)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuccessfulStageFillsCache(t *testing.T) {
	d, mock, table, cache := newMockDatabase(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, d.StageDisplayName(context.Background(), "Ana", nil))
	assert.Equal(t, "Ana", cache[caching.LocalStorageKey{Origin: d.Origin, Key: UserNameKey}])

	got, exists, err := d.DisplayName(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "Ana", got)
	assert.Equal(t, 0, table.selects, "reads should be served from the cache")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadThroughFillsCache(t *testing.T) {
	d, _, table, cache := newMockDatabase(t)
	table.values[d.Origin+"/"+UserProfilePictureKey] = "data:image/gif;base64,R0lG"

	got, exists, err := d.AvatarImage(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "data:image/gif;base64,R0lG", got)
	assert.Equal(t, got, cache[caching.LocalStorageKey{Origin: d.Origin, Key: UserProfilePictureKey}])

	_, _, err = d.AvatarImage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, table.selects)

	_, exists, err = d.DisplayName(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 2, table.selects)
}

func TestStaleReadDoesNotOverwriteStagedValue(t *testing.T) {
	d, mock, table, cache := newMockDatabase(t)
	key := caching.LocalStorageKey{Origin: d.Origin, Key: UserNameKey}
	table.values[d.Origin+"/"+UserNameKey] = "Ana"
	mock.ExpectBegin()
	mock.ExpectCommit()

	// The write lands after the read has fetched the old row but before it
	// fills the cache.
	table.afterSelect = func() {
		require.NoError(t, d.StageDisplayName(context.Background(), "Bia", nil))
	}
	got, exists, err := d.DisplayName(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "Ana", got)
	assert.Equal(t, "Bia", cache[key])

	got, _, err = d.DisplayName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bia", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
