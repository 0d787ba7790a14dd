package output

import (
	"errors"
	"sync"
	"time"

	"ambimix/internal/mixer"
)

// Null renders on a wall-clock ticker and discards the samples. It keeps
// fades and the analyser running on hosts with no sound card.
type Null struct {
	sampleRate int
	frames     int

	mu        sync.Mutex
	render    mixer.RenderFunc
	stop      chan struct{}
	done      chan struct{}
	suspended bool
	closed    bool
}

// NewNull returns a device that pulls frames blocks at sampleRate.
func NewNull(sampleRate, frames int) *Null {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frames <= 0 {
		frames = DefaultFramesPerBuffer
	}
	return &Null{sampleRate: sampleRate, frames: frames}
}

func (n *Null) SampleRate() int { return n.sampleRate }

// Start begins pulling from render.
func (n *Null) Start(render mixer.RenderFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("null device closed")
	}
	n.render = render
	if n.stop == nil {
		n.startLocked()
	}
	return nil
}

func (n *Null) startLocked() {
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.loop(n.render, n.stop, n.done)
}

func (n *Null) loop(render mixer.RenderFunc, stop, done chan struct{}) {
	defer close(done)
	block := make([][]float32, outputChannels)
	for ch := range block {
		block[ch] = make([]float32, n.frames)
	}
	period := time.Duration(float64(time.Second) * float64(n.frames) / float64(n.sampleRate))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			render(block)
		}
	}
}

func (n *Null) Suspended() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.suspended
}

// Suspend halts the render loop until Resume.
func (n *Null) Suspend() error {
	n.mu.Lock()
	if n.closed || n.stop == nil {
		n.mu.Unlock()
		return nil
	}
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.suspended = true
	n.mu.Unlock()

	close(stop)
	<-done
	return nil
}

func (n *Null) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("null device closed")
	}
	n.suspended = false
	if n.stop == nil && n.render != nil {
		n.startLocked()
	}
	return nil
}

// Close stops the loop and waits for it to exit.
func (n *Null) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
