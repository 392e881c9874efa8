package tables_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/profileapi/storage/postgres"
	"github.com/catalogo-app/perfil/profileapi/storage/sqlite3"
	"github.com/catalogo-app/perfil/profileapi/storage/tables"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/test"
)

func mustCreateLocalStorageTable(t *testing.T, dbType test.DBType) (tab tables.LocalStorageTable, close func()) {
	var connStr string
	connStr, close = test.PrepareDBConnectionString(t, dbType)
	db, err := sqlutil.Open(&config.DatabaseOptions{
		ConnectionString: config.DataSource(connStr),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	switch dbType {
	case test.DBTypePostgres:
		tab, err = postgres.NewPostgresLocalStorageTable(db)
	case test.DBTypeSQLite:
		tab, err = sqlite3.NewSQLiteLocalStorageTable(db)
	}
	if err != nil {
		t.Fatalf("failed to create local storage table: %v", err)
	}
	return tab, close
}

func TestLocalStorageTable(t *testing.T) {
	ctx := context.Background()
	origin1 := "https://perfil.example.com"
	origin2 := "https://outro.example.com"

	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		tab, close := mustCreateLocalStorageTable(t, dbType)
		defer close()

		_, exists, err := tab.SelectValue(ctx, nil, origin1, "userName")
		require.NoError(t, err)
		assert.False(t, exists, "absence is a valid state")

		require.NoError(t, tab.UpsertValue(ctx, nil, origin1, "userName", "Ana"))
		require.NoError(t, tab.UpsertValue(ctx, nil, origin2, "userName", "Bia"))

		value, exists, err := tab.SelectValue(ctx, nil, origin1, "userName")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "Ana", value)

		// overwritten in place
		require.NoError(t, tab.UpsertValue(ctx, nil, origin1, "userName", "Ana Maria"))
		value, _, err = tab.SelectValue(ctx, nil, origin1, "userName")
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", value)

		value, _, err = tab.SelectValue(ctx, nil, origin2, "userName")
		require.NoError(t, err)
		assert.Equal(t, "Bia", value, "origins must not see each other's values")

		// the empty string is a value, not an absence
		require.NoError(t, tab.UpsertValue(ctx, nil, origin1, "userProfilePicture", ""))
		value, exists, err = tab.SelectValue(ctx, nil, origin1, "userProfilePicture")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "", value)

		require.NoError(t, tab.DeleteValue(ctx, nil, origin1, "userName"))
		_, exists, err = tab.SelectValue(ctx, nil, origin1, "userName")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
