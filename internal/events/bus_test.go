package events_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/micro-nova/unlockchime/internal/events"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test1")

	bus.Publish(models.Event{
		Status: models.Status{Running: true, Service: models.ServiceRunning},
		Notice: &models.Notice{Level: models.NoticeInfo, Message: "Service started"},
	})

	select {
	case got := <-ch:
		assert.True(t, got.Status.Running)
		require.NotNil(t, got.Notice)
		assert.Equal(t, "Service started", got.Notice.Message)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test-unsub")

	bus.Unsubscribe("test-unsub")

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected channel to be closed after unsubscribe")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}

	// second unsubscribe is harmless
	bus.Unsubscribe("test-unsub")
}

func TestBusDropsEventsWhenFull(t *testing.T) {
	bus := events.NewBus()
	bus.Subscribe("slow-reader")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			bus.Publish(models.Event{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked for too long (should drop events)")
	}
	bus.Unsubscribe("slow-reader")
}

func TestBusSlowReaderGetsLatestStatus(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("slow")
	defer bus.Unsubscribe("slow")

	bus.Publish(models.Event{
		Status: models.Status{StatusLabel: "first"},
		Notice: &models.Notice{Level: models.NoticeWarning, Message: "Select a sound first"},
	})
	for i := 0; i < 20; i++ {
		bus.Publish(models.Event{Status: models.Status{StatusLabel: fmt.Sprintf("status %d", i)}})
	}

	var got []models.Event
	for len(ch) > 0 {
		got = append(got, <-ch)
	}
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, "status 19", last.Status.StatusLabel)

	var notices []string
	for _, ev := range got {
		if ev.Notice != nil {
			notices = append(notices, ev.Notice.Message)
		}
	}
	assert.Equal(t, []string{"Select a sound first"}, notices, "notice survives coalescing")
}

func TestBusSubscriberCount(t *testing.T) {
	bus := events.NewBus()
	assert.Equal(t, 0, bus.SubscriberCount())
	bus.Subscribe("s1")
	bus.Subscribe("s2")
	assert.Equal(t, 2, bus.SubscriberCount())
	bus.Unsubscribe("s1")
	assert.Equal(t, 1, bus.SubscriberCount())
}
