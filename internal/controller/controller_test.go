package controller_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/micro-nova/unlockchime/internal/config"
	"github.com/micro-nova/unlockchime/internal/controller"
	"github.com/micro-nova/unlockchime/internal/events"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/micro-nova/unlockchime/internal/notify"
	"github.com/micro-nova/unlockchime/internal/picker"
	"github.com/micro-nova/unlockchime/internal/usage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	state    models.ServiceState
	startErr error
	starts   int
	stops    int
}

func (s *fakeService) Start(context.Context) error {
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.state = models.ServiceRunning
	return nil
}

func (s *fakeService) Stop(context.Context) {
	s.stops++
	s.state = models.ServiceStopped
}

func (s *fakeService) State() models.ServiceState {
	if s.state == "" {
		return models.ServiceStopped
	}
	return s.state
}

func (s *fakeService) Running() bool { return s.State() == models.ServiceRunning }

type fakePicker struct {
	uri      string
	err      error
	grantErr error
}

func (p *fakePicker) OpenAudio(context.Context) (string, error) { return p.uri, p.err }
func (p *fakePicker) Grant(string) error                        { return p.grantErr }

type fixture struct {
	ctrl     *controller.Controller
	store    *config.MemStore
	bus      *events.Bus
	svc      *fakeService
	picker   *fakePicker
	notifier *notify.Recorder
	access   *usage.Access
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    config.NewMemStore(),
		bus:      events.NewBus(),
		svc:      &fakeService{},
		picker:   &fakePicker{},
		notifier: &notify.Recorder{},
		access:   usage.NewAccess(afero.NewMemMapFs(), "/cfg"),
	}
	f.ctrl = controller.New(controller.Deps{
		Store:       f.store,
		Bus:         f.bus,
		Service:     f.svc,
		Picker:      f.picker,
		Notifier:    f.notifier,
		Access:      f.access,
		DisplayName: picker.DisplayName,
	})
	return f
}

func next(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event published")
		return models.Event{}
	}
}

func TestStatus_Defaults(t *testing.T) {
	f := newFixture(t)
	st := f.ctrl.Status(context.Background())

	assert.Equal(t, models.DefaultPreferences(), st.Preferences)
	assert.Equal(t, models.SelectedFileNone, st.SelectedFile)
	assert.Equal(t, models.ServiceStopped, st.Service)
	assert.False(t, st.Running)
	assert.Equal(t, models.StatusLabelStopped, st.StatusLabel)
	assert.True(t, st.Notifications)
	assert.False(t, st.UsageAccess)
	assert.False(t, st.NeedsUsageGrant)
}

func TestStatus_StoreErrorShowsDefaults(t *testing.T) {
	f := newFixture(t)
	f.store.LoadErr = errors.New("corrupt")
	st := f.ctrl.Status(context.Background())
	assert.Equal(t, models.DefaultPreferences(), st.Preferences)
}

func TestSetPreference_PersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ch := f.bus.Subscribe("t")
	defer f.bus.Unsubscribe("t")

	res, err := f.ctrl.SetPreference(context.Background(), models.KeyHeadphoneOnly, true)
	require.NoError(t, err)
	assert.True(t, res.Status.Preferences.HeadphoneOnly)
	assert.Nil(t, res.Notice)

	stored, err := f.store.Load()
	require.NoError(t, err)
	assert.True(t, stored.HeadphoneOnly)
	assert.Equal(t, 1, f.store.Saves())

	ev := next(t, ch)
	assert.True(t, ev.Status.Preferences.HeadphoneOnly)
}

func TestSetPreference_UnknownKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.SetPreference(context.Background(), "vibrate", true)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "vibrate", appErr.Field)
	assert.Zero(t, f.store.Saves())
}

func TestDesktopOnlyWithoutUsageAccessAsksForGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ctrl.SetPreference(ctx, models.KeyDesktopOnly, true)
	require.NoError(t, err)
	require.NotNil(t, res.Notice)
	assert.Equal(t, controller.MsgUsageAccessNeeded, res.Notice.Message)
	assert.True(t, res.Status.NeedsUsageGrant)
	assert.Len(t, f.notifier.Notices(), 1)

	res, err = f.ctrl.GrantUsageAccess(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.Status.UsageAccess)
	assert.False(t, res.Status.NeedsUsageGrant)

	res, err = f.ctrl.SetPreference(ctx, models.KeyDesktopOnly, true)
	require.NoError(t, err)
	assert.Nil(t, res.Notice)
}

func TestUpdatePreferences(t *testing.T) {
	f := newFixture(t)
	on, off := true, false

	_, err := f.ctrl.UpdatePreferences(context.Background(), models.PreferencesUpdate{})
	assert.Error(t, err)

	res, err := f.ctrl.UpdatePreferences(context.Background(), models.PreferencesUpdate{NoOtherAudio: &on, HeadphoneOnly: &off})
	require.NoError(t, err)
	assert.True(t, res.Status.Preferences.NoOtherAudio)
	assert.False(t, res.Status.Preferences.HeadphoneOnly)
	assert.Equal(t, 1, f.store.Saves(), "one write for the whole update")
}

func TestSelectSound(t *testing.T) {
	ctx := context.Background()

	t.Run("picked", func(t *testing.T) {
		f := newFixture(t)
		f.picker.uri = "file:///home/me/Music/chime%20one.ogg"
		res, err := f.ctrl.SelectSound(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Selected file: chime one.ogg", res.Status.SelectedFile)
		require.NotNil(t, res.Notice)
		assert.Equal(t, controller.MsgFileSelected, res.Notice.Message)
		stored, _ := f.store.Load()
		assert.Equal(t, f.picker.uri, stored.SoundURI)
	})
	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t)
		f.picker.err = picker.ErrCancelled
		res, err := f.ctrl.SelectSound(ctx)
		require.NoError(t, err)
		assert.Nil(t, res.Notice)
		assert.Equal(t, models.SelectedFileNone, res.Status.SelectedFile)
		assert.Zero(t, f.store.Saves())
	})
	t.Run("grant refused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Save(&models.Preferences{SoundURI: "/old/chime.wav"}))
		f.picker.uri = "file:///locked/chime.wav"
		f.picker.grantErr = picker.ErrNoAccess
		res, err := f.ctrl.SelectSound(ctx)
		require.NoError(t, err)
		require.NotNil(t, res.Notice)
		assert.Equal(t, controller.MsgNoFileAccess, res.Notice.Message)
		stored, _ := f.store.Load()
		assert.Equal(t, "/old/chime.wav", stored.SoundURI, "previous selection kept")
	})
	t.Run("portal missing", func(t *testing.T) {
		f := newFixture(t)
		f.picker.err = errors.New("no portal")
		_, err := f.ctrl.SelectSound(ctx)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 503, appErr.Status)
	})
}

func TestFileLabelFallsBackToPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.ctrl.DisplayName = func(string) (string, error) { return "", errors.New("gone") }
	require.NoError(t, f.store.Save(&models.Preferences{SoundURI: "content://x"}))
	st := f.ctrl.Status(context.Background())
	assert.Equal(t, models.SelectedFilePrefix+models.UnknownFileName, st.SelectedFile)
}

func TestSetSoundURI_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.SetSoundURI(context.Background(), "")
	assert.Error(t, err)
}

func TestStartStopService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ctrl.StartService(ctx)
	require.NoError(t, err)
	assert.True(t, res.Status.Running)
	assert.Equal(t, models.StatusLabelRunning, res.Status.StatusLabel)
	assert.Equal(t, controller.MsgServiceStarted, res.Notice.Message)

	res, err = f.ctrl.StopService(ctx)
	require.NoError(t, err)
	assert.False(t, res.Status.Running)
	assert.Equal(t, 1, f.svc.stops)
}

func TestStartServiceWithoutNotificationPermissionStillStarts(t *testing.T) {
	f := newFixture(t)
	f.notifier.Denied = true

	res, err := f.ctrl.StartService(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Status.Running)
	require.NotNil(t, res.Notice)
	assert.Equal(t, models.NoticeWarning, res.Notice.Level)
	assert.Equal(t, controller.MsgNotifyDenied, res.Notice.Message)
}

func TestStartServiceFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.startErr = errors.New("no unlock source")
	_, err := f.ctrl.StartService(context.Background())
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 503, appErr.Status)
}

func TestPreferencesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := config.OpenStore(config.BackendBolt, dir)
	require.NoError(t, err)

	f := newFixture(t)
	ctrl := controller.New(controller.Deps{Store: store, Service: f.svc})
	_, err = ctrl.SetPreference(context.Background(), models.KeyNoOtherAudio, true)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = config.OpenStore(config.BackendBolt, dir)
	require.NoError(t, err)
	defer store.Close()
	ctrl = controller.New(controller.Deps{Store: store, Service: f.svc})
	assert.True(t, ctrl.Status(context.Background()).Preferences.NoOtherAudio)
	assert.FileExists(t, filepath.Join(dir, "prefs.db"))
}
