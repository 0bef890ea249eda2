package unlock_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/micro-nova/unlockchime/internal/unlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_EmitWithoutSubscriber(t *testing.T) {
	f := &unlock.Fake{}
	assert.False(t, f.Emit())
	assert.Equal(t, "fake", f.Name())
}

func TestFake_UnsubscribeStopsDelivery(t *testing.T) {
	f := &unlock.Fake{}
	var got atomic.Int32
	unsub, err := f.Subscribe(context.Background(), func(unlock.Event) { got.Add(1) })
	require.NoError(t, err)

	assert.True(t, f.Emit())
	unsub()
	unsub()
	assert.False(t, f.Emit())
	assert.Equal(t, int32(1), got.Load())
}

func TestFake_ContextCancelUnsubscribes(t *testing.T) {
	f := &unlock.Fake{}
	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.Subscribe(ctx, func(unlock.Event) {})
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return !f.Subscribed() }, time.Second, 5*time.Millisecond)
}

func TestMulti_CollapsesCrossSourceDuplicates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := &unlock.Fake{SourceName: "logind"}
	b := &unlock.Fake{SourceName: "screensaver"}
	m := unlock.NewMulti(clock, a, b)

	var got []string
	unsub, err := m.Subscribe(context.Background(), func(ev unlock.Event) { got = append(got, ev.Source) })
	require.NoError(t, err)
	defer unsub()

	a.Emit()
	b.Emit() // same unlock reported twice
	clock.Advance(2 * time.Second)
	b.Emit()
	a.Emit()
	clock.Advance(1500 * time.Millisecond)
	a.Emit()

	assert.Equal(t, []string{"logind", "screensaver", "logind"}, got)
}

func TestMulti_SameSourceRepeatsAreDelivered(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := &unlock.Fake{SourceName: "logind"}
	m := unlock.NewMulti(clock, a)

	var n int
	_, err := m.Subscribe(context.Background(), func(unlock.Event) { n++ })
	require.NoError(t, err)

	a.Emit()
	a.Emit()
	a.Emit()
	assert.Equal(t, 3, n)
}

func TestMulti_PartialFailureStillSubscribes(t *testing.T) {
	bad := &unlock.Fake{SourceName: "bad", Err: errors.New("no bus")}
	good := &unlock.Fake{SourceName: "good"}
	m := unlock.NewMulti(nil, bad, good)

	unsub, err := m.Subscribe(context.Background(), func(unlock.Event) {})
	require.NoError(t, err)
	assert.True(t, good.Subscribed())
	unsub()
	assert.False(t, good.Subscribed())
}

func TestMulti_AllFail(t *testing.T) {
	m := unlock.NewMulti(nil,
		&unlock.Fake{SourceName: "a", Err: errors.New("x")},
		&unlock.Fake{SourceName: "b", Err: errors.New("y")},
	)
	_, err := m.Subscribe(context.Background(), func(unlock.Event) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, unlock.ErrNoSource)
}
