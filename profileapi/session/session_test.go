package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/catalogo-app/perfil/profileapi/api"
)

type fakeLoader struct {
	name, image       string
	hasName, hasImage bool
	err               error
	calls             atomic.Int32
	gate              chan struct{}
}

func (f *fakeLoader) DisplayName(ctx context.Context) (string, bool, error) {
	f.calls.Inc()
	if f.gate != nil {
		<-f.gate
	}
	return f.name, f.hasName, f.err
}

func (f *fakeLoader) AvatarImage(ctx context.Context) (string, bool, error) {
	return f.image, f.hasImage, f.err
}

func TestBootstrapLoadsPersistedValues(t *testing.T) {
	loader := &fakeLoader{name: "Ana", hasName: true, image: "data:image/png;base64,AA==", hasImage: true}
	c := NewContext(loader, api.SessionState{DisplayName: "Usuário"})
	assert.Equal(t, "Usuário", c.Read().DisplayName)

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, api.SessionState{DisplayName: "Ana", AvatarImage: "data:image/png;base64,AA=="}, c.Read())
	assert.True(t, c.Bootstrapped())

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, int32(1), loader.calls.Load(), "bootstrap happens once")
}

func TestBootstrapKeepsDefaultsWhenCacheEmpty(t *testing.T) {
	c := NewContext(&fakeLoader{}, api.SessionState{DisplayName: "Usuário", AvatarImage: "default"})
	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, api.SessionState{DisplayName: "Usuário", AvatarImage: "default"}, c.Read())
	assert.Equal(t, uint64(0), c.Version())
}

func TestBootstrapDoesNotOverwriteEarlierWrites(t *testing.T) {
	loader := &fakeLoader{name: "Cached", hasName: true, image: "cached-image", hasImage: true, gate: make(chan struct{})}
	c := NewContext(loader, api.SessionState{})

	done := make(chan error)
	go func() { done <- c.Bootstrap(context.Background()) }()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.SetDisplayName("Fresh")
	close(loader.gate)
	require.NoError(t, <-done)

	assert.Equal(t, "Fresh", c.Read().DisplayName)
	assert.Equal(t, "cached-image", c.Read().AvatarImage)
}

func TestConcurrentBootstrapSharesOneLoad(t *testing.T) {
	loader := &fakeLoader{name: "Ana", hasName: true, gate: make(chan struct{})}
	c := NewContext(loader, api.SessionState{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Bootstrap(context.Background()))
		}()
	}
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(loader.gate)
	wg.Wait()
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, "Ana", c.Read().DisplayName)
}

func TestBootstrapRetriesAfterFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("database is locked")}
	c := NewContext(loader, api.SessionState{DisplayName: "Usuário"})
	require.Error(t, c.Bootstrap(context.Background()))
	assert.False(t, c.Bootstrapped())
	assert.Equal(t, "Usuário", c.Read().DisplayName)

	loader.err = nil
	loader.name, loader.hasName = "Ana", true
	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, "Ana", c.Read().DisplayName)
}

func TestSameValueWriteIsNoop(t *testing.T) {
	c := NewContext(&fakeLoader{}, api.SessionState{})
	sub := c.Subscribe()
	defer sub.Close()

	c.SetDisplayName("Ana")
	assert.Equal(t, uint64(1), c.Version())
	<-sub.C()

	c.SetDisplayName("Ana")
	c.SetAvatarImage("")
	assert.Equal(t, uint64(1), c.Version())
	select {
	case s := <-sub.C():
		t.Fatalf("unexpected notification %+v", s)
	default:
	}
}

func TestSubscriptionCoalesces(t *testing.T) {
	c := NewContext(&fakeLoader{}, api.SessionState{})
	sub := c.Subscribe()

	c.SetDisplayName("A")
	c.SetDisplayName("B")
	c.SetAvatarImage("img")

	got := <-sub.C()
	assert.Equal(t, api.SessionState{DisplayName: "B", AvatarImage: "img"}, got)

	sub.Close()
	sub.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	// writers never block on closed or slow subscriptions
	c.SetDisplayName("C")
}

func TestRollbackOnlyRestoresUntouchedFields(t *testing.T) {
	c := NewContext(&fakeLoader{}, api.SessionState{DisplayName: "Old", AvatarImage: "old"})
	prev := c.Read()
	applied := api.SessionState{DisplayName: "New", AvatarImage: "new"}
	c.SetDisplayName(applied.DisplayName)
	c.SetAvatarImage(applied.AvatarImage)

	// another screen changed the avatar in the meantime
	c.SetAvatarImage("other")

	c.Rollback(prev, applied)
	assert.Equal(t, api.SessionState{DisplayName: "Old", AvatarImage: "other"}, c.Read())
}
