package mixer

import (
	"context"
	"log/slog"
	"time"
)

// FadeOut ramps the master stage exponentially towards FadeFloor over d,
// then stops every channel and puts the master level back where it was.
// d <= 0 uses DefaultFadeDuration.
//
// FadeOut blocks until the fade is done. A newer FadeOut takes over an
// in-flight one: the older call returns nil without stopping anything and the
// newer one restores the level captured by the first. Cancelling ctx aborts
// the fade and restores the level without stopping channels. Other engine
// operations remain usable while a fade runs.
func (e *Engine) FadeOut(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = DefaultFadeDuration
	}

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.fade == nil {
		e.fade = &fadeState{restore: e.master.value}
	}
	e.fadeSeq++
	seq := e.fadeSeq
	samples := int(d.Seconds() * float64(e.sampleRate))
	e.master.rampTo(FadeFloor, samples)
	restore := e.fade.restore
	e.mu.Unlock()

	slog.Info("fade out started", "duration", d, "restore_gain", restore)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		e.mu.Lock()
		if e.fadeSeq == seq && e.fade != nil {
			e.master.set(e.fade.restore)
			e.fade = nil
		}
		e.mu.Unlock()
		slog.Info("fade out cancelled")
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.fadeSeq != seq || e.fade == nil {
		return nil
	}
	e.stopAllLocked()
	e.master.set(e.fade.restore)
	e.fade = nil
	slog.Info("fade out finished", "restored_gain", e.master.value)
	return nil
}

// Fading reports whether a FadeOut is in flight.
func (e *Engine) Fading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fade != nil
}
