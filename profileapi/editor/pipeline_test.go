package editor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogo-app/perfil/internal/caching"
	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/editor"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/profileapi/storage"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/test"
)

const origin = "http://localhost:3000"

type publisherFunc func(ctx context.Context, update *api.ProfileUpdate) error

func (f publisherFunc) PublishProfileUpdate(ctx context.Context, update *api.ProfileUpdate) error {
	return f(ctx, update)
}

func mustCreateDatabase(t *testing.T, connStr string) storage.Database {
	t.Helper()
	caches, err := caching.NewRistrettoCache(1*caching.MB, caching.CacheNoMaxAge, false)
	require.NoError(t, err)
	conMan := sqlutil.NewConnectionManager(nil, config.DatabaseOptions{})
	db, err := storage.NewDatabase(conMan, &config.DatabaseOptions{
		ConnectionString:   config.DataSource(connStr),
		MaxOpenConnections: 10,
	}, caches.LocalStorage, origin)
	require.NoError(t, err)
	return db
}

func TestPipelineRoundTripsThroughFreshSession(t *testing.T) {
	ctx := context.Background()
	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		connStr, close := test.PrepareDBConnectionString(t, dbType)
		defer close()

		for _, name := range []string{"Ana", "Ana 🐝 Souza", " espaços "} {
			db := mustCreateDatabase(t, connStr)
			sess := session.NewContext(db, api.SessionState{DisplayName: "Usuário"})
			p := editor.NewPipeline(editor.DelayCommitter{}, db, sess, nil)

			var submitted []api.UserProfile
			snapshot := api.UserProfile{Name: name, Email: "a@x.com"}
			require.NoError(t, p.Run(ctx, snapshot, func(p api.UserProfile) {
				submitted = append(submitted, p)
			}))
			assert.Equal(t, []api.UserProfile{snapshot}, submitted)
			assert.Equal(t, name, sess.Read().DisplayName)

			fresh := session.NewContext(mustCreateDatabase(t, connStr), api.SessionState{DisplayName: "Usuário"})
			require.NoError(t, fresh.Bootstrap(ctx))
			assert.Equal(t, name, fresh.Read().DisplayName)
		}
	})
}

func TestPipelinePublishesAfterApply(t *testing.T) {
	ctx := context.Background()
	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		connStr, close := test.PrepareDBConnectionString(t, dbType)
		defer close()
		db := mustCreateDatabase(t, connStr)
		sess := session.NewContext(db, api.SessionState{})

		var mu sync.Mutex
		published := make(chan *api.ProfileUpdate, 1)
		publisher := publisherFunc(func(_ context.Context, update *api.ProfileUpdate) error {
			mu.Lock()
			defer mu.Unlock()
			// The session must already carry the values being announced.
			assert.Equal(t, update.DisplayName, sess.Read().DisplayName)
			published <- update
			return nil
		})
		p := editor.NewPipeline(editor.DelayCommitter{}, db, sess, publisher)
		require.NoError(t, p.Run(ctx, api.UserProfile{Name: "Ana", AvatarImage: "img"}, nil))

		select {
		case update := <-published:
			assert.Equal(t, "Ana", update.DisplayName)
			assert.Equal(t, "img", update.AvatarImage)
			assert.True(t, update.Has(api.FieldName))
			assert.True(t, update.Has(api.FieldAvatarImage))
		case <-time.After(5 * time.Second):
			t.Fatal("profile update was not published")
		}
	})
}

func TestPipelineRunAbandonsCancelledCommit(t *testing.T) {
	test.WithAllDatabases(t, func(t *testing.T, dbType test.DBType) {
		connStr, close := test.PrepareDBConnectionString(t, dbType)
		defer close()
		db := mustCreateDatabase(t, connStr)
		sess := session.NewContext(db, api.SessionState{DisplayName: "Usuário"})
		p := editor.NewPipeline(editor.DelayCommitter{Delay: time.Hour}, db, sess, nil)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		called := false
		err := p.Run(ctx, api.UserProfile{Name: "Ana"}, func(api.UserProfile) { called = true })
		assert.ErrorIs(t, err, api.ErrUnmounted)
		assert.False(t, called)
		assert.Equal(t, "Usuário", sess.Read().DisplayName)
		_, exists, err := db.DisplayName(context.Background())
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
