package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"
)

// MalgoOutput renders through miniaudio, which picks PipeWire, PulseAudio
// or ALSA at runtime.
type MalgoOutput struct{}

// Play opens a playback device for the duration of s.
func (MalgoOutput) Play(ctx context.Context, rate beep.SampleRate, s beep.Streamer) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo: init context: %w", err)
	}
	if mctx == nil {
		return errors.New("malgo: context is nil after initialization")
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	// F32 avoids miniaudio's S16->S32 conversion path on PulseAudio
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 2
	cfg.SampleRate = uint32(rate)
	cfg.Alsa.NoMMap = 1

	done := make(chan struct{})
	var (
		mu       sync.Mutex
		finished bool
		buf      [][2]float64
	)

	onSamples := func(out, _ []byte, frames uint32) {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			clear(out)
			return
		}
		if ctx.Err() != nil {
			finished = true
			close(done)
			clear(out)
			return
		}
		if len(buf) < int(frames) {
			buf = make([][2]float64, frames)
		}
		n, ok := s.Stream(buf[:frames])
		off := 0
		for i := range n {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(float32(buf[i][0])))
			binary.LittleEndian.PutUint32(out[off+4:], math.Float32bits(float32(buf[i][1])))
			off += 8
		}
		clear(out[off:])
		if !ok || n == 0 {
			finished = true
			close(done)
		}
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("malgo: init device: %w", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("malgo: start device: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		finished = true
		mu.Unlock()
	}

	if err := dev.Stop(); err != nil {
		log.Warn().Err(err).Msg("malgo: stop device")
	}
	return ctx.Err()
}
