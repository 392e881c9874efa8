package editor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/text/language"

	"github.com/catalogo-app/perfil/profileapi/api"
	"github.com/catalogo-app/perfil/profileapi/avatar"
	"github.com/catalogo-app/perfil/profileapi/session"
	"github.com/catalogo-app/perfil/profileapi/storage/shared"
	"github.com/catalogo-app/perfil/setup/process"
)

// memStore is an in-memory storage.Database. failStage fails before the
// callback runs, failCommit after it.
type memStore struct {
	mu         sync.Mutex
	values     map[string]string
	failStage  error
	failCommit error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (m *memStore) get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) stage(key, value string, apply func() error) error {
	m.mu.Lock()
	failStage, failCommit := m.failStage, m.failCommit
	m.mu.Unlock()
	if failStage != nil {
		return failStage
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	if failCommit != nil {
		return failCommit
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memStore) DisplayName(context.Context) (string, bool, error) {
	return m.get(shared.UserNameKey)
}

func (m *memStore) StageDisplayName(_ context.Context, name string, apply func() error) error {
	return m.stage(shared.UserNameKey, name, apply)
}

func (m *memStore) AvatarImage(context.Context) (string, bool, error) {
	return m.get(shared.UserProfilePictureKey)
}

func (m *memStore) StageAvatarImage(_ context.Context, image string, apply func() error) error {
	return m.stage(shared.UserProfilePictureKey, image, apply)
}

// gateCommitter blocks every commit until released.
type gateCommitter struct {
	release chan struct{}
	err     error
	calls   atomic.Int32
}

func newGateCommitter() *gateCommitter {
	return &gateCommitter{release: make(chan struct{})}
}

func (g *gateCommitter) Commit(ctx context.Context, _ api.UserProfile) error {
	g.calls.Inc()
	select {
	case <-g.release:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recorder struct {
	mu  sync.Mutex
	got []api.UserProfile
}

func (r *recorder) OnSubmit(p api.UserProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p)
}

func (r *recorder) All() []api.UserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.UserProfile(nil), r.got...)
}

type fixture struct {
	store   *memStore
	session *session.Context
	process *process.ProcessContext
	editor  *Editor
	calls   *recorder
}

func newFixture(t *testing.T, committer Committer) *fixture {
	t.Helper()
	store := newMemStore()
	sess := session.NewContext(store, api.SessionState{DisplayName: "Usuário"})
	processCtx := process.NewProcessContext()
	t.Cleanup(processCtx.Shutdown)
	return &fixture{
		store:   store,
		session: sess,
		process: processCtx,
		editor:  NewEditor(processCtx, sess, store, avatar.NewDecoder(64*1024), committer, nil, Options{}),
		calls:   &recorder{},
	}
}

func (f *fixture) mount(t *testing.T, editable bool) *Screen {
	t.Helper()
	s, err := f.editor.Mount(context.Background(), Props{
		Initial:  api.UserProfile{Name: "Usuário", Email: "usuario@example.com"},
		OnSubmit: f.calls.OnSubmit,
		Editable: editable,
	}, language.BrazilianPortuguese)
	require.NoError(t, err)
	t.Cleanup(s.Unmount)
	return s
}

func wait(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "task did not finish")
	return err
}

func pngImage(t *testing.T, c color.Color) ([]byte, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes(), "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fill(t *testing.T, s *Screen, values map[api.Field]string) {
	t.Helper()
	for field, value := range values {
		require.NoError(t, s.Update(field, value))
	}
}

func TestMismatchedPasswordNeverReachesConfirmation(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	fill(t, s, map[api.Field]string{
		api.FieldNewPassword:        "segredo1",
		api.FieldConfirmNewPassword: "segredo2",
	})

	err := s.Submit()
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, api.FieldConfirmNewPassword, verr.Field)
	assert.Equal(t, api.ReasonPasswordMismatch, verr.Reason)
	assert.Equal(t, api.Idle, s.State())

	_, err = s.Confirm()
	assert.ErrorIs(t, err, api.ErrInvalidTransition)

	v := s.View()
	assert.False(t, v.Dialog.Visible)
	require.NotNil(t, v.Message)
	assert.True(t, v.Message.Error)
	assert.Equal(t, "As senhas não coincidem.", v.Message.Text)
	assert.Empty(t, f.calls.All())
}

func TestEmptyNewPasswordAlwaysProceeds(t *testing.T) {
	for _, confirm := range []string{"", "anything"} {
		f := newFixture(t, DelayCommitter{})
		s := f.mount(t, true)
		require.NoError(t, s.Update(api.FieldConfirmNewPassword, confirm))
		require.NoError(t, s.Submit())
		assert.Equal(t, api.AwaitingConfirmation, s.State())

		v := s.View()
		assert.True(t, v.Dialog.Visible)
		assert.Equal(t, "Confirmar alterações", v.Dialog.Title)
		assert.Equal(t, "Tem certeza que deseja salvar as alterações?", v.Dialog.Text)
	}
}

func TestConfirmCommitsSnapshotOnce(t *testing.T) {
	f := newFixture(t, DelayCommitter{Delay: 20 * time.Millisecond})
	s := f.mount(t, true)
	fill(t, s, map[api.Field]string{
		api.FieldName:            "Ana",
		api.FieldEmail:           "a@x.com",
		api.FieldCurrentPassword: "atual",
	})
	want := s.Draft()

	require.NoError(t, s.Submit())
	task, err := s.Confirm()
	require.NoError(t, err)
	assert.Equal(t, api.Committing, s.State())
	require.NoError(t, wait(t, task))

	got := f.calls.All()
	require.Len(t, got, 1)
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Fatalf("onSubmit snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Ana", f.session.Read().DisplayName)
	name, exists, _ := f.store.DisplayName(context.Background())
	assert.True(t, exists)
	assert.Equal(t, "Ana", name)

	assert.Equal(t, api.Idle, s.State())
	assert.Equal(t, api.UserProfile{Name: "Ana", Email: "a@x.com"}, s.Draft())
	v := s.View()
	require.NotNil(t, v.Message)
	assert.False(t, v.Message.Error)
	assert.Equal(t, "Alterações salvas.", v.Message.Text)
}

func TestCancelLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	require.NoError(t, s.Update(api.FieldName, "Ana"))
	require.NoError(t, s.Submit())
	require.NoError(t, s.Cancel())

	assert.Equal(t, api.Idle, s.State())
	assert.Equal(t, "Usuário", f.session.Read().DisplayName)
	_, exists, _ := f.store.DisplayName(context.Background())
	assert.False(t, exists)
	assert.Empty(t, f.calls.All())
	assert.Equal(t, "Ana", s.Draft().Name, "the draft survives a cancel")

	assert.ErrorIs(t, s.Cancel(), api.ErrInvalidTransition)
}

func TestEditsRejectedWhileDialogVisible(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	require.NoError(t, s.Submit())

	assert.ErrorIs(t, s.Update(api.FieldName, "Bia"), api.ErrInvalidTransition)
	_, err := s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(nil))
	assert.ErrorIs(t, err, api.ErrInvalidTransition)
	assert.ErrorIs(t, s.Submit(), api.ErrInvalidTransition)
}

func TestAvatarSelectionWritesEagerly(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	payload, uri := pngImage(t, color.White)

	task, err := s.SelectAvatar(api.AvatarSourceCamera, bytes.NewReader(payload))
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.Equal(t, uri, f.session.Read().AvatarImage)
	cached, exists, _ := f.store.AvatarImage(context.Background())
	assert.True(t, exists)
	assert.Equal(t, uri, cached)
	assert.Equal(t, uri, s.Draft().AvatarImage)
	assert.Equal(t, uri, s.View().Avatar.Image)
	assert.Equal(t, api.Idle, s.State())
	assert.Empty(t, f.calls.All())
}

func TestDecodeFailureKeepsPriorAvatar(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	payload, uri := pngImage(t, color.Black)
	task, err := s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(payload))
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	task, err = s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader([]byte("not an image")))
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, task), api.ErrAvatarDecode)

	task, err = s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(make([]byte, 64*1024+1)))
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, task), api.ErrAvatarTooLarge)

	assert.Equal(t, uri, f.session.Read().AvatarImage)
	cached, _, _ := f.store.AvatarImage(context.Background())
	assert.Equal(t, uri, cached)
	assert.Equal(t, uri, s.Draft().AvatarImage)
	v := s.View()
	require.NotNil(t, v.Message)
	assert.True(t, v.Message.Error)
	assert.Equal(t, "A imagem selecionada é maior que 64 KB.", v.Message.Text)
}

func TestNewerAvatarSelectionSupersedesOlder(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	pr, pw := io.Pipe()
	first, err := s.SelectAvatar(api.AvatarSourceLibrary, pr)
	require.NoError(t, err)

	payload, uri := pngImage(t, color.White)
	second, err := s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(payload))
	require.NoError(t, err)
	require.NoError(t, wait(t, second))

	older, _ := pngImage(t, color.Black)
	go func() {
		_, _ = pw.Write(older)
		_ = pw.Close()
	}()
	assert.ErrorIs(t, wait(t, first), context.Canceled)
	assert.Equal(t, uri, f.session.Read().AvatarImage)
}

func assertAvatarConsistent(t *testing.T, f *fixture, s *Screen, want string) {
	t.Helper()
	cached, _, err := f.store.AvatarImage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, cached)
	assert.Equal(t, want, f.session.Read().AvatarImage)
	assert.Equal(t, want, s.Draft().AvatarImage)
}

func TestAvatarSelectionRejectedWhileCommitting(t *testing.T) {
	committer := newGateCommitter()
	f := newFixture(t, committer)
	s := f.mount(t, true)
	red, redURI := pngImage(t, color.RGBA{R: 255, A: 255})
	task, err := s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(red))
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	require.NoError(t, s.Update(api.FieldName, "Ana"))
	require.NoError(t, s.Submit())
	commit, err := s.Confirm()
	require.NoError(t, err)

	blue, _ := pngImage(t, color.RGBA{B: 255, A: 255})
	_, err = s.SelectAvatar(api.AvatarSourceCamera, bytes.NewReader(blue))
	var terr *api.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, api.Committing, terr.State)
	assert.False(t, s.View().Avatar.CanChange)

	close(committer.release)
	require.NoError(t, wait(t, commit))
	assertAvatarConsistent(t, f, s, redURI)
	assert.True(t, s.View().Avatar.CanChange)
}

func TestDecodeFinishingAfterSubmitIsDropped(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	pr, pw := io.Pipe()
	pending, err := s.SelectAvatar(api.AvatarSourceLibrary, pr)
	require.NoError(t, err)

	require.NoError(t, s.Update(api.FieldName, "Ana"))
	require.NoError(t, s.Submit())
	blue, _ := pngImage(t, color.RGBA{B: 255, A: 255})
	go func() {
		_, _ = pw.Write(blue)
		_ = pw.Close()
	}()
	assert.ErrorIs(t, wait(t, pending), api.ErrInvalidTransition)
	assertAvatarConsistent(t, f, s, "")

	commit, err := s.Confirm()
	require.NoError(t, err)
	require.NoError(t, wait(t, commit))
	assert.Equal(t, "Ana", f.session.Read().DisplayName)
	assertAvatarConsistent(t, f, s, "")

	// Once the save is done a new selection goes through as usual.
	task, err := s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(blue))
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	_, blueURI := pngImage(t, color.RGBA{B: 255, A: 255})
	assertAvatarConsistent(t, f, s, blueURI)
}

func TestIdenticalCommitsConverge(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	commit := func() {
		require.NoError(t, s.Update(api.FieldName, "Ana"))
		require.NoError(t, s.Submit())
		task, err := s.Confirm()
		require.NoError(t, err)
		require.NoError(t, wait(t, task))
	}

	commit()
	afterOne := f.session.Read()
	version := f.session.Version()
	cached, _, _ := f.store.DisplayName(context.Background())

	commit()
	assert.Equal(t, afterOne, f.session.Read())
	assert.Equal(t, version, f.session.Version())
	again, _, _ := f.store.DisplayName(context.Background())
	assert.Equal(t, cached, again)
	assert.Len(t, f.calls.All(), 2)
}

func TestEditsDuringCommitDoNotChangeSnapshot(t *testing.T) {
	committer := newGateCommitter()
	f := newFixture(t, committer)
	s := f.mount(t, true)
	require.NoError(t, s.Update(api.FieldName, "Ana"))
	require.NoError(t, s.Submit())
	task, err := s.Confirm()
	require.NoError(t, err)

	require.NoError(t, s.Update(api.FieldName, "Bia"))
	assert.ErrorIs(t, s.Submit(), api.ErrCommitInProgress)
	v := s.View()
	require.NotNil(t, v.Save)
	assert.False(t, v.Save.Enabled)
	assert.True(t, v.Save.Loading)

	close(committer.release)
	require.NoError(t, wait(t, task))
	got := f.calls.All()
	require.Len(t, got, 1)
	assert.Equal(t, "Ana", got[0].Name)
	assert.Equal(t, "Ana", f.session.Read().DisplayName)
	assert.Equal(t, "Ana", s.Draft().Name, "the draft is reset from the session after a save")
}

func TestUnmountCancelsPendingCommit(t *testing.T) {
	committer := newGateCommitter()
	f := newFixture(t, committer)
	s := f.mount(t, true)
	require.NoError(t, s.Update(api.FieldName, "Ana"))
	require.NoError(t, s.Submit())
	task, err := s.Confirm()
	require.NoError(t, err)

	s.Unmount()
	assert.ErrorIs(t, wait(t, task), api.ErrUnmounted)
	assert.Empty(t, f.calls.All())
	assert.Equal(t, "Usuário", f.session.Read().DisplayName)
	_, exists, _ := f.store.DisplayName(context.Background())
	assert.False(t, exists)

	assert.False(t, s.Mounted())
	assert.ErrorIs(t, s.Update(api.FieldName, "Bia"), api.ErrUnmounted)
	s.Unmount()
}

func TestCommitFailureAppliesNothing(t *testing.T) {
	t.Run("committer", func(t *testing.T) {
		committer := newGateCommitter()
		committer.err = errors.New("backend unavailable")
		close(committer.release)
		f := newFixture(t, committer)
		s := f.mount(t, true)
		require.NoError(t, s.Update(api.FieldName, "Ana"))
		require.NoError(t, s.Submit())
		task, err := s.Confirm()
		require.NoError(t, err)

		assert.ErrorIs(t, wait(t, task), api.ErrCommitFailed)
		assert.Equal(t, api.AwaitingConfirmation, s.State())
		assert.Empty(t, f.calls.All())
		assert.Equal(t, "Usuário", f.session.Read().DisplayName)
		degraded, _ := f.process.IsDegraded()
		assert.True(t, degraded)

		v := s.View()
		require.NotNil(t, v.Message)
		assert.Equal(t, "Não foi possível salvar as alterações. Tente novamente.", v.Message.Text)

		require.NoError(t, s.Cancel())
		assert.Equal(t, api.Idle, s.State())
	})

	t.Run("staging", func(t *testing.T) {
		f := newFixture(t, DelayCommitter{})
		f.store.failStage = errors.New("database is locked")
		s := f.mount(t, true)
		require.NoError(t, s.Update(api.FieldName, "Ana"))
		require.NoError(t, s.Submit())
		task, err := s.Confirm()
		require.NoError(t, err)

		assert.ErrorIs(t, wait(t, task), api.ErrCommitFailed)
		assert.Empty(t, f.calls.All())
		assert.Equal(t, "Usuário", f.session.Read().DisplayName)
		_, exists, _ := f.store.DisplayName(context.Background())
		assert.False(t, exists)
	})

	t.Run("storage commit", func(t *testing.T) {
		f := newFixture(t, DelayCommitter{})
		f.store.failCommit = errors.New("disk full")
		s := f.mount(t, true)
		require.NoError(t, s.Update(api.FieldName, "Ana"))
		require.NoError(t, s.Submit())
		task, err := s.Confirm()
		require.NoError(t, err)

		assert.ErrorIs(t, wait(t, task), api.ErrCommitFailed)
		assert.Equal(t, "Usuário", f.session.Read().DisplayName, "session is restored")
		_, exists, _ := f.store.DisplayName(context.Background())
		assert.False(t, exists)
		assert.Equal(t, api.AwaitingConfirmation, s.State())
	})
}

func TestReadOnlyScreen(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, false)

	assert.ErrorIs(t, s.Update(api.FieldName, "Ana"), api.ErrReadOnly)
	assert.ErrorIs(t, s.Submit(), api.ErrReadOnly)
	_, err := s.SelectAvatar(api.AvatarSourceLibrary, bytes.NewReader(nil))
	assert.ErrorIs(t, err, api.ErrReadOnly)

	v := s.View()
	assert.Nil(t, v.Save)
	assert.False(t, v.Avatar.CanChange)
	require.Len(t, v.Fields, 2)
	for _, field := range v.Fields {
		assert.False(t, field.Name.IsPassword())
		assert.True(t, field.Disabled)
	}
}

func TestEditableViewHidesPasswordValues(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	require.NoError(t, s.Update(api.FieldCurrentPassword, "segredo"))

	v := s.View()
	require.Len(t, v.Fields, 5)
	for _, field := range v.Fields {
		if !field.Name.IsPassword() {
			continue
		}
		assert.Empty(t, field.Value)
		assert.Equal(t, field.Name == api.FieldCurrentPassword, field.Required)
		assert.Equal(t, field.Name == api.FieldCurrentPassword, field.Filled)
	}
	assert.Equal(t, "Senha Atual", v.Fields[2].Label)
	require.NotNil(t, v.Save)
	assert.Equal(t, "Salvar Alterações", v.Save.Label)
	assert.True(t, v.Save.Enabled)
}

func TestMountSeedsFromPersistedValues(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	f.store.values[shared.UserNameKey] = "Cached"
	f.store.values[shared.UserProfilePictureKey] = ""

	s, err := f.editor.Mount(context.Background(), Props{
		Initial: api.UserProfile{
			Name:            "Initial",
			Email:           "initial@example.com",
			AvatarImage:     "initial-image",
			CurrentPassword: "leaked",
		},
		Editable: true,
	}, language.Und)
	require.NoError(t, err)
	defer s.Unmount()

	assert.Equal(t, api.UserProfile{
		Name:        "Cached",
		Email:       "initial@example.com",
		AvatarImage: "initial-image",
	}, s.Draft())
	assert.Equal(t, "Cached", f.session.Read().DisplayName)
	assert.Equal(t, language.BrazilianPortuguese, s.Language())
}

func TestUnknownField(t *testing.T) {
	f := newFixture(t, DelayCommitter{})
	s := f.mount(t, true)
	err := s.Update(api.Field("nickname"), "x")
	assert.ErrorIs(t, err, api.ErrUnknownField)
	assert.Equal(t, "Campo desconhecido.", f.editor.Describe(s.printer, err))
}
