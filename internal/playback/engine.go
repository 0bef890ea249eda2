package playback

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog/log"
)

// Output renders a stream. Play blocks until s is drained or ctx is
// cancelled.
type Output interface {
	Play(ctx context.Context, rate beep.SampleRate, s beep.Streamer) error
}

// Engine plays one clip at a time. Starting a clip releases the previous
// one; a clip releases itself when it finishes.
type Engine struct {
	resolver *Resolver
	out      Output
	rate     beep.SampleRate

	// OnFinish, if set, is called after a clip has been released. err is
	// nil on natural completion.
	OnFinish func(ref string, err error)

	mu  sync.Mutex
	cur *instance
}

type instance struct {
	ref    string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine returns an engine that renders at rate through out.
func NewEngine(resolver *Resolver, out Output, rate int) *Engine {
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Engine{resolver: resolver, out: out, rate: beep.SampleRate(rate)}
}

// Play starts ref asynchronously. It returns false, after logging, when
// there is nothing to play or the clip cannot be opened or decoded.
func (e *Engine) Play(ref string) (started bool) {
	e.Release()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("ref", ref).Msg("playback: player creation failed")
			started = false
		}
	}()

	f, ext, err := e.resolver.Open(ref)
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Msg("playback: sound unavailable")
		return false
	}
	// wav and flac close the reader on a decode error, mp3 and vorbis do not
	rc := closeOnce{ReadSeeker: f, close: sync.OnceValue(f.Close)}

	streamer, format, err := decode(rc, ext)
	if err != nil {
		if cerr := rc.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("playback: close after decode error")
		}
		log.Error().Err(err).Str("ref", ref).Msg("playback: cannot decode sound")
		return false
	}

	var src beep.Streamer = streamer
	if format.SampleRate != e.rate {
		src = beep.Resample(4, format.SampleRate, e.rate, streamer)
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst := &instance{ref: ref, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.cur = inst
	e.mu.Unlock()

	completed := new(atomic.Bool)
	seq := beep.Seq(src, beep.Callback(func() { completed.Store(true) }))

	go e.run(ctx, inst, seq, streamer, completed)
	return true
}

func (e *Engine) run(ctx context.Context, inst *instance, s beep.Streamer, streamer beep.StreamCloser, completed *atomic.Bool) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playback panic: %v", r)
			log.Error().Interface("panic", r).Msg("playback: output failed")
		}
		if cerr := streamer.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("playback: close streamer")
		}
		inst.cancel()

		e.mu.Lock()
		if e.cur == inst {
			e.cur = nil
		}
		e.mu.Unlock()

		if e.OnFinish != nil {
			e.OnFinish(inst.ref, err)
		}
		close(inst.done)
	}()

	err = e.out.Play(ctx, e.rate, s)
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
		log.Debug().Str("ref", inst.ref).Msg("playback: released")
	case err != nil:
		log.Warn().Err(err).Str("ref", inst.ref).Msg("playback: output failed")
	case completed.Load():
		log.Debug().Str("ref", inst.ref).Msg("playback: completed")
	}
}

// Release stops and frees the current clip, if any, and waits for it.
func (e *Engine) Release() {
	e.mu.Lock()
	inst := e.cur
	e.cur = nil
	e.mu.Unlock()
	if inst == nil {
		return
	}
	inst.cancel()
	<-inst.done
}

// Active reports whether a clip is held.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil
}

type closeOnce struct {
	io.ReadSeeker
	close func() error
}

func (c closeOnce) Close() error { return c.close() }

func decode(rc io.ReadSeekCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch ext {
	case ".wav":
		s, f, err = wav.Decode(rc)
	case ".mp3":
		s, f, err = mp3.Decode(rc)
	case ".ogg", ".oga":
		s, f, err = vorbis.Decode(rc)
	case ".flac":
		s, f, err = flac.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q (supported: .wav, .mp3, .ogg, .flac)", ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", ext, err)
	}
	return s, f, nil
}
