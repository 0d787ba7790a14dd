package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"ambimix/internal/mixer"

	"github.com/ebitengine/oto/v3"
)

// oto permits one context per process, so it is shared across devices.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if otoRate != sampleRate {
			return nil, fmt.Errorf("oto context already running at %d Hz", otoRate)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("resume oto context: %w", err)
		}
		return otoCtx, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: outputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	<-ready
	otoCtx, otoRate = ctx, sampleRate
	return ctx, nil
}

// Oto renders through an oto player that pulls interleaved float32 samples.
type Oto struct {
	mu         sync.Mutex
	ctx        *oto.Context
	player     *oto.Player
	sampleRate int
	render     atomic.Pointer[mixer.RenderFunc]
	suspended  atomic.Bool
	closed     bool

	block [][]float32
}

// OpenOto prepares an oto device. Playback begins on Start.
func OpenOto(sampleRate int) (*Oto, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	o := &Oto{ctx: ctx, sampleRate: sampleRate}
	o.player = ctx.NewPlayer(o)
	slog.Info("oto player opened", "sample_rate", sampleRate)
	return o, nil
}

// Read implements io.Reader for the oto player.
func (o *Oto) Read(p []byte) (int, error) {
	return fillInterleaved(p, &o.block, o.render.Load()), nil
}

// fillInterleaved renders whole stereo frames into p as float32LE and returns
// the number of bytes written. A nil render writes silence.
func fillInterleaved(p []byte, block *[][]float32, render *mixer.RenderFunc) int {
	const frameBytes = 4 * outputChannels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0
	}
	if len(*block) != outputChannels || len((*block)[0]) < frames {
		*block = make([][]float32, outputChannels)
		for ch := range *block {
			(*block)[ch] = make([]float32, frames)
		}
	}
	out := make([][]float32, outputChannels)
	for ch := range out {
		out[ch] = (*block)[ch][:frames]
	}
	if render != nil {
		(*render)(out)
	} else {
		for _, ch := range out {
			clear(ch)
		}
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < outputChannels; ch++ {
			off := (i*outputChannels + ch) * 4
			binary.LittleEndian.PutUint32(p[off:], math.Float32bits(out[ch][i]))
		}
	}
	return frames * frameBytes
}

func (o *Oto) SampleRate() int { return o.sampleRate }

// Start installs render and starts the player.
func (o *Oto) Start(render mixer.RenderFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("oto device closed")
	}
	o.render.Store(&render)
	o.player.Play()
	return nil
}

func (o *Oto) Suspended() bool {
	return o.suspended.Load()
}

// Suspend pauses the shared context.
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	if err := o.ctx.Suspend(); err != nil {
		return fmt.Errorf("suspend oto context: %w", err)
	}
	o.suspended.Store(true)
	return nil
}

// Resume resumes the shared context.
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("oto device closed")
	}
	if err := o.ctx.Resume(); err != nil {
		return fmt.Errorf("resume oto context: %w", err)
	}
	o.suspended.Store(false)
	return nil
}

// Close stops the player. The shared context stays alive but suspended.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.render.Store(nil)
	err := o.player.Close()
	if serr := o.ctx.Suspend(); serr != nil && err == nil {
		err = serr
	}
	return err
}
