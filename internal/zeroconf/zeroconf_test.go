package zeroconf_test

import (
	"context"
	"testing"
	"time"

	"github.com/micro-nova/unlockchime/internal/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestTXT(t *testing.T) {
	svc := zeroconf.New("unlockchime-test", 8080, "1.0.0")
	assert.Contains(t, svc.TXT(), "version=1.0.0")
	assert.Contains(t, svc.TXT(), "app=unlockchime")
}

func TestStart_InvalidPort(t *testing.T) {
	svc := zeroconf.New("unlockchime-test", 0, "1.0.0")
	assert.Error(t, svc.Start(context.Background()))
}

func TestStart_Cancel(t *testing.T) {
	svc := zeroconf.New("unlockchime-test", 18080, "1.0.0")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	select {
	case err := <-done:
		// mDNS may be unavailable in sandboxes; returning at all is what counts
		if err != nil {
			t.Logf("Start returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
