// Package timer implements the focus countdown and its pomodoro cycle.
//
// All durations are whole seconds. Tick advances the countdown by one second;
// Run drives Tick from a wall-clock ticker.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Mode is the pomodoro phase.
type Mode string

const (
	Work  Mode = "work"
	Break Mode = "break"
)

// Defaults, in seconds.
const (
	DefaultDuration      = 1500
	DefaultWorkDuration  = 1500
	DefaultBreakDuration = 300
	// MaxDuration caps any configured duration at 24h.
	MaxDuration = 24 * 60 * 60
)

// ErrInvalidDuration is returned for durations outside 1..MaxDuration.
var ErrInvalidDuration = errors.New("invalid timer duration")

// State is a point-in-time copy of the timer.
type State struct {
	Duration           int  `json:"duration"`
	Remaining          int  `json:"remaining"`
	Active             bool `json:"active"`
	PomodoroEnabled    bool `json:"pomodoroEnabled"`
	Mode               Mode `json:"pomodoroMode"`
	WorkDuration       int  `json:"workDuration"`
	BreakDuration      int  `json:"breakDuration"`
	CompletedPomodoros int  `json:"completedPomodoros"`
}

// Completion describes a session that ran out or was reset part way.
type Completion struct {
	Pomodoro  bool
	Mode      Mode
	StartedAt time.Time
	EndedAt   time.Time
	Elapsed   int // seconds actually counted down
	Completed bool
}

// Kind names the session for storage: "focus" for a plain countdown,
// otherwise the pomodoro mode.
func (c Completion) Kind() string {
	if !c.Pomodoro {
		return "focus"
	}
	return string(c.Mode)
}

// Options configures a Timer.
type Options struct {
	// OnComplete is called outside the timer lock when a session ends.
	OnComplete func(Completion)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Timer is safe for concurrent use.
type Timer struct {
	mu         sync.Mutex
	st         State
	startedAt  time.Time
	now        func() time.Time
	onComplete func(Completion)
}

// New returns a stopped timer with the default durations.
func New(opts Options) *Timer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Timer{
		st: State{
			Duration:      DefaultDuration,
			Remaining:     DefaultDuration,
			Mode:          Work,
			WorkDuration:  DefaultWorkDuration,
			BreakDuration: DefaultBreakDuration,
		},
		now:        now,
		onComplete: opts.OnComplete,
	}
}

func validDuration(sec int) error {
	if sec <= 0 || sec > MaxDuration {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, sec)
	}
	return nil
}

// State returns a copy of the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// Restore replaces the pomodoro settings and counters from a saved state. The
// countdown itself restarts stopped at its full duration.
func (t *Timer) Restore(st State) error {
	for _, d := range []int{st.Duration, st.WorkDuration, st.BreakDuration} {
		if err := validDuration(d); err != nil {
			return err
		}
	}
	if st.Mode != Work && st.Mode != Break {
		return fmt.Errorf("unknown pomodoro mode %q", st.Mode)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st.Active = false
	st.Remaining = st.Duration
	if st.CompletedPomodoros < 0 {
		st.CompletedPomodoros = 0
	}
	t.st = st
	t.startedAt = time.Time{}
	return nil
}

// SetDuration sets the countdown length and refills the remaining time.
func (t *Timer) SetDuration(sec int) error {
	if err := validDuration(sec); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.Duration = sec
	t.st.Remaining = sec
	return nil
}

// SetWorkDuration sets the pomodoro work length. A stopped timer sitting at
// the start of a work block picks it up immediately.
func (t *Timer) SetWorkDuration(sec int) error {
	return t.setPhase(Work, sec)
}

// SetBreakDuration is SetWorkDuration for breaks.
func (t *Timer) SetBreakDuration(sec int) error {
	return t.setPhase(Break, sec)
}

func (t *Timer) setPhase(m Mode, sec int) error {
	if err := validDuration(sec); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if m == Work {
		t.st.WorkDuration = sec
	} else {
		t.st.BreakDuration = sec
	}
	if t.st.PomodoroEnabled && t.st.Mode == m && !t.st.Active && t.st.Remaining == t.st.Duration {
		t.st.Duration = sec
		t.st.Remaining = sec
	}
	return nil
}

// Start resumes the countdown, refilling it first if it had run out.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Active {
		return
	}
	if t.st.Remaining <= 0 {
		t.st.Remaining = t.st.Duration
	}
	if t.startedAt.IsZero() {
		t.startedAt = t.now()
	}
	t.st.Active = true
}

// Pause stops the countdown without losing progress.
func (t *Timer) Pause() {
	t.mu.Lock()
	t.st.Active = false
	t.mu.Unlock()
}

// Reset stops and refills the countdown. A session with progress is reported
// to OnComplete as not completed.
func (t *Timer) Reset() {
	t.mu.Lock()
	var c *Completion
	if elapsed := t.st.Duration - t.st.Remaining; elapsed > 0 && !t.startedAt.IsZero() {
		c = &Completion{
			Pomodoro:  t.st.PomodoroEnabled,
			Mode:      t.st.Mode,
			StartedAt: t.startedAt,
			EndedAt:   t.now(),
			Elapsed:   elapsed,
		}
	}
	t.st.Active = false
	t.st.Remaining = t.st.Duration
	t.startedAt = time.Time{}
	t.mu.Unlock()

	if c != nil {
		t.fire(*c)
	}
}

// TogglePomodoro flips pomodoro mode, returning to a stopped work block (or
// the default countdown when disabling).
func (t *Timer) TogglePomodoro() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.PomodoroEnabled = !t.st.PomodoroEnabled
	d := DefaultDuration
	if t.st.PomodoroEnabled {
		d = t.st.WorkDuration
	}
	t.st.Duration = d
	t.st.Remaining = d
	t.st.Mode = Work
	t.st.Active = false
	t.startedAt = time.Time{}
}

// Tick advances an active countdown by one second and reports whether a
// session completed. On completion a pomodoro timer switches phase and
// stops; a plain timer stops at zero.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if !t.st.Active {
		t.mu.Unlock()
		return false
	}
	if t.st.Remaining > 0 {
		t.st.Remaining--
	}
	if t.st.Remaining > 0 {
		t.mu.Unlock()
		return false
	}

	c := Completion{
		Pomodoro:  t.st.PomodoroEnabled,
		Mode:      t.st.Mode,
		StartedAt: t.startedAt,
		EndedAt:   t.now(),
		Elapsed:   t.st.Duration,
		Completed: true,
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = c.EndedAt.Add(-time.Duration(c.Elapsed) * time.Second)
	}
	t.st.Active = false
	t.startedAt = time.Time{}
	if t.st.PomodoroEnabled {
		next, d := Break, t.st.BreakDuration
		if t.st.Mode == Break {
			next, d = Work, t.st.WorkDuration
		}
		if next == Break {
			t.st.CompletedPomodoros++
		}
		t.st.Mode = next
		t.st.Duration = d
		t.st.Remaining = d
	}
	t.mu.Unlock()

	slog.Info("[timer] session complete", "kind", c.Kind(), "seconds", c.Elapsed)
	t.fire(c)
	return true
}

func (t *Timer) fire(c Completion) {
	if t.onComplete != nil {
		t.onComplete(c)
	}
}

// Run calls Tick once per second until ctx is done.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}
