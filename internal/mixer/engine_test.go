package mixer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ambimix/internal/noise"
	"ambimix/internal/preset"
)

const testRate = 8000

type fakeDevice struct {
	mu           sync.Mutex
	render       RenderFunc
	suspended    bool
	failResumes  int
	resumes      int
	startErr     error
	closed       bool
	startedCount int
}

func (d *fakeDevice) SampleRate() int { return testRate }

func (d *fakeDevice) Start(render RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.render = render
	d.startedCount++
	return nil
}

func (d *fakeDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

func (d *fakeDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	if d.failResumes > 0 {
		d.failResumes--
		return errors.New("device busy")
	}
	d.suspended = false
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// pull renders frames stereo samples through the device callback.
func (d *fakeDevice) pull(frames int) [][]float32 {
	d.mu.Lock()
	render := d.render
	d.mu.Unlock()
	out := [][]float32{make([]float32, frames), make([]float32, frames)}
	render(out)
	return out
}

func newTestEngine(t *testing.T, dev *fakeDevice) (*Engine, *atomic.Int32) {
	t.Helper()
	var sources atomic.Int32
	e := New(Options{
		Open:          func(context.Context) (Device, error) { return dev, nil },
		BufferSeconds: 0.25,
		NewSource: func(st noise.SoundType) noise.Source {
			sources.Add(1)
			return noise.NewSource(uint64(st))
		},
	})
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = e.Dispose() })
	return e, &sources
}

func TestInitializeIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	opens := 0
	var sources atomic.Int32
	e := New(Options{
		Open: func(context.Context) (Device, error) {
			opens++
			return dev, nil
		},
		BufferSeconds: 0.25,
		NewSource: func(st noise.SoundType) noise.Source {
			sources.Add(1)
			return noise.NewSource(1)
		},
	})
	for i := 0; i < 2; i++ {
		if err := e.Initialize(context.Background()); err != nil {
			t.Fatalf("initialize #%d: %v", i+1, err)
		}
	}
	if got := e.CacheSize(); got != 9 {
		t.Fatalf("cache size = %d, want 9", got)
	}
	if got := sources.Load(); got != 9 {
		t.Fatalf("generators ran %d times, want 9", got)
	}
	if opens != 1 || dev.startedCount != 1 {
		t.Fatalf("opens=%d starts=%d, want 1/1", opens, dev.startedCount)
	}
	if e.MasterGain() != DefaultMasterGain {
		t.Fatalf("master = %v, want %v", e.MasterGain(), DefaultMasterGain)
	}
	for id := 1; id <= NumChannels; id++ {
		g, err := e.ChannelGain(id)
		if err != nil || g != DefaultChannelGain {
			t.Fatalf("channel %d gain = %v, %v", id, g, err)
		}
	}
	if e.Analyser() == nil {
		t.Fatal("expected analyser after initialize")
	}
	_ = e.Dispose()
}

func TestInitializeOpenFailure(t *testing.T) {
	openErr := errors.New("no output device")
	e := New(Options{Open: func(context.Context) (Device, error) { return nil, openErr }})

	err := e.Initialize(context.Background())
	if !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	if e.Initialized() {
		t.Fatal("engine must not be initialized after failure")
	}
	if err := e.LoadSound(1, noise.Rain); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("LoadSound after failed init: %v", err)
	}
}

func TestInitializeStartFailureClosesDevice(t *testing.T) {
	dev := &fakeDevice{startErr: errors.New("stream rejected")}
	e := New(Options{
		Open:          func(context.Context) (Device, error) { return dev, nil },
		BufferSeconds: 0.1,
	})
	if err := e.Initialize(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if !dev.isClosed() {
		t.Fatal("device should be closed after start failure")
	}
	if e.Initialized() || e.CacheSize() != 0 {
		t.Fatal("engine state must be reset after start failure")
	}
}

func TestInitializeCancelled(t *testing.T) {
	dev := &fakeDevice{}
	e := New(Options{
		Open:          func(context.Context) (Device, error) { return dev, nil },
		BufferSeconds: 0.1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Initialize(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !dev.isClosed() || e.Initialized() {
		t.Fatal("cancelled initialize must close the device and stay uninitialized")
	}
}

func TestChannelVolumeCurve(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	for _, v := range []float64{0, 25, 50, 75, 100} {
		if err := e.SetChannelVolume(2, v); err != nil {
			t.Fatalf("set volume %v: %v", v, err)
		}
		got, _ := e.ChannelGain(2)
		want := (v / 100) * (v / 100)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("volume %v: gain %v, want %v", v, got, want)
		}
	}
	_ = e.SetChannelVolume(1, 150)
	if g, _ := e.ChannelGain(1); g != 1 {
		t.Errorf("volume 150 clamps to gain 1, got %v", g)
	}
	_ = e.SetChannelVolume(1, -5)
	if g, _ := e.ChannelGain(1); g != 0 {
		t.Errorf("volume -5 clamps to gain 0, got %v", g)
	}

	if err := e.SetMasterVolume(50); err != nil {
		t.Fatal(err)
	}
	if e.MasterGain() != 0.25 {
		t.Errorf("master gain %v, want 0.25", e.MasterGain())
	}
}

func TestMuteRestoresFixedDefault(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	_ = e.SetChannelVolume(1, 30)
	_ = e.SetChannelMute(1, true)
	if g, _ := e.ChannelGain(1); g != 0 {
		t.Fatalf("muted gain = %v", g)
	}
	_ = e.SetChannelMute(1, false)
	if g, _ := e.ChannelGain(1); g != DefaultChannelGain {
		t.Fatalf("unmuted gain = %v, want %v", g, DefaultChannelGain)
	}
}

func TestUnknownChannel(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	for _, id := range []int{0, 4, -1} {
		if err := e.LoadSound(id, noise.Rain); !errors.Is(err, ErrUnknownChannel) {
			t.Errorf("LoadSound(%d): %v", id, err)
		}
		if err := e.PlayChannel(id); !errors.Is(err, ErrUnknownChannel) {
			t.Errorf("PlayChannel(%d): %v", id, err)
		}
		if err := e.SetChannelVolume(id, 10); !errors.Is(err, ErrUnknownChannel) {
			t.Errorf("SetChannelVolume(%d): %v", id, err)
		}
	}
	if err := e.LoadSound(1, noise.SoundType(77)); !errors.Is(err, noise.ErrUnknownSound) {
		t.Errorf("unknown sound: %v", err)
	}
}

func TestLoadThenNoneIsIdle(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	if err := e.LoadSound(1, noise.Rain); err != nil {
		t.Fatal(err)
	}
	if st, _ := e.ChannelState(1); st != Bound {
		t.Fatalf("state after Rain = %v, want bound", st)
	}
	if err := e.LoadSound(1, noise.None); err != nil {
		t.Fatal(err)
	}
	if st, _ := e.ChannelState(1); st != Idle {
		t.Fatalf("state after None = %v, want idle", st)
	}
	e.mu.Lock()
	bound := e.channels[0].voice
	e.mu.Unlock()
	if bound != nil {
		t.Fatal("voice still bound after None")
	}
}

func TestPlayStopPlay(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	for id, st := range []noise.SoundType{noise.Rain, noise.OceanWaves, noise.Campfire} {
		if err := e.LoadSound(id+1, st); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.PlayAll(); err != nil {
		t.Fatalf("first play: %v", err)
	}
	if err := e.StopAll(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	for id := 1; id <= NumChannels; id++ {
		if st, _ := e.ChannelState(id); st != Bound {
			t.Fatalf("channel %d after stop = %v, want bound", id, st)
		}
	}
	if err := e.PlayAll(); err != nil {
		t.Fatalf("second play: %v", err)
	}
	for id := 1; id <= NumChannels; id++ {
		if st, _ := e.ChannelState(id); st != Playing {
			t.Fatalf("channel %d after replay = %v, want playing", id, st)
		}
	}
}

func TestPlayIdleChannelIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	if err := e.PlayChannel(2); err != nil {
		t.Fatalf("play idle: %v", err)
	}
	if st, _ := e.ChannelState(2); st != Idle {
		t.Fatalf("idle channel became %v", st)
	}
	if err := e.StopChannel(2); err != nil {
		t.Fatalf("stop idle: %v", err)
	}
}

func TestLoadWhilePlayingSwapsSeamlessly(t *testing.T) {
	dev := &fakeDevice{}
	e, _ := newTestEngine(t, dev)
	_ = e.LoadSound(1, noise.Rain)
	_ = e.PlayChannel(1)
	if err := e.LoadSound(1, noise.Campfire); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()
	if snap.Channels[0].State != Playing || snap.Channels[0].Sound != noise.Campfire {
		t.Fatalf("after swap: %+v", snap.Channels[0])
	}
	out := dev.pull(256)
	if peak(out) == 0 {
		t.Fatal("swapped channel produced silence")
	}
}

func TestResumeFailureLeavesChannelStopped(t *testing.T) {
	dev := &fakeDevice{suspended: true, failResumes: 1}
	e, _ := newTestEngine(t, dev)
	_ = e.LoadSound(1, noise.PinkNoise)
	_ = e.LoadSound(3, noise.BrownNoise)

	err := e.PlayAll()
	if err == nil {
		t.Fatal("expected resume failure")
	}
	if st, _ := e.ChannelState(1); st != Bound {
		t.Fatalf("channel 1 = %v, want bound", st)
	}
	if st, _ := e.ChannelState(3); st != Playing {
		t.Fatalf("channel 3 = %v, want playing despite channel 1 failure", st)
	}
	if err := e.PlayChannel(1); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if st, _ := e.ChannelState(1); st != Playing {
		t.Fatalf("channel 1 after retry = %v", st)
	}
}

func constSource(v float64) func(noise.SoundType) noise.Source {
	return func(noise.SoundType) noise.Source {
		return noise.SourceFunc(func() float64 { return v })
	}
}

func TestRenderMixesThroughGainStages(t *testing.T) {
	dev := &fakeDevice{}
	e := New(Options{
		Open:          func(context.Context) (Device, error) { return dev, nil },
		BufferSeconds: 0.1,
		NewSource:     constSource(0.5),
	})
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e.Dispose()

	_ = e.SetMasterVolume(100)
	_ = e.LoadSound(1, noise.WhiteNoise)
	_ = e.SetChannelVolume(1, 100)
	_ = e.PlayChannel(1)

	out := dev.pull(64)
	for ch := range out {
		for i, s := range out[ch] {
			if s != 0.5 {
				t.Fatalf("ch %d sample %d = %v, want 0.5", ch, i, s)
			}
		}
	}

	_ = e.SetMasterVolume(50)
	out = dev.pull(8)
	if out[0][0] != 0.125 {
		t.Fatalf("with master 0.25: %v, want 0.125", out[0][0])
	}

	_ = e.SetMasterVolume(100)
	for id := 2; id <= 3; id++ {
		_ = e.LoadSound(id, noise.WhiteNoise)
		_ = e.SetChannelVolume(id, 100)
		_ = e.PlayChannel(id)
	}
	out = dev.pull(8)
	if out[1][3] != 1 {
		t.Fatalf("sum of three channels should clamp to 1, got %v", out[1][3])
	}
	if e.Analyser().Level() == 0 {
		t.Fatal("analyser did not see rendered output")
	}

	_ = e.SetChannelMute(1, true)
	_ = e.StopChannel(2)
	_ = e.StopChannel(3)
	out = dev.pull(8)
	if out[0][0] != 0 {
		t.Fatalf("muted and stopped channels should be silent, got %v", out[0][0])
	}
}

func TestFadeOutRestoresMasterAndStops(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	_ = e.SetMasterVolume(80)
	_ = e.LoadSound(1, noise.Rain)
	_ = e.LoadSound(2, noise.BinauralAlpha)
	_ = e.PlayAll()

	if err := e.FadeOut(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("fade: %v", err)
	}
	if got := e.MasterGain(); math.Abs(got-0.64) > 1e-12 {
		t.Fatalf("master after fade = %v, want 0.64", got)
	}
	for id := 1; id <= 2; id++ {
		if st, _ := e.ChannelState(id); st != Bound {
			t.Fatalf("channel %d after fade = %v, want bound", id, st)
		}
	}
	if e.Fading() {
		t.Fatal("fade flag still set")
	}
	if err := e.PlayAll(); err != nil {
		t.Fatalf("play after fade: %v", err)
	}
}

func waitFading(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !e.Fading() {
		if time.Now().After(deadline) {
			t.Fatal("fade never started")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFadeRampFollowsRenderedSamples(t *testing.T) {
	dev := &fakeDevice{}
	e, _ := newTestEngine(t, dev)
	_ = e.SetMasterVolume(80)
	_ = e.LoadSound(1, noise.Rain)
	_ = e.PlayChannel(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.FadeOut(ctx, time.Second) }()
	waitFading(t, e)

	// Half of a one-second fade at the device rate.
	dev.pull(testRate / 2)
	want := math.Sqrt(0.64 * FadeFloor)
	if got := e.MasterGain(); math.Abs(got-want) > 1e-3 {
		t.Fatalf("master halfway = %v, want %v", got, want)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled fade returned %v", err)
	}
	if got := e.MasterGain(); math.Abs(got-0.64) > 1e-12 {
		t.Fatalf("master after cancel = %v, want 0.64", got)
	}
	if st, _ := e.ChannelState(1); st != Playing {
		t.Fatalf("cancel must not stop channels, state %v", st)
	}
}

func TestFadeSupersede(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	_ = e.SetMasterVolume(80)
	_ = e.LoadSound(1, noise.Rain)
	_ = e.PlayChannel(1)

	first := make(chan error, 1)
	go func() { first <- e.FadeOut(context.Background(), 300*time.Millisecond) }()
	waitFading(t, e)

	if err := e.FadeOut(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("second fade: %v", err)
	}
	if st, _ := e.ChannelState(1); st != Bound {
		t.Fatalf("second fade should stop channel, got %v", st)
	}
	if got := e.MasterGain(); math.Abs(got-0.64) > 1e-12 {
		t.Fatalf("master after second fade = %v, want 0.64", got)
	}

	_ = e.PlayChannel(1)
	if err := <-first; err != nil {
		t.Fatalf("superseded fade: %v", err)
	}
	if st, _ := e.ChannelState(1); st != Playing {
		t.Fatalf("superseded fade must not stop channels, got %v", st)
	}
}

func TestMasterVolumeDuringFadeAppliesOnRestore(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	_ = e.SetMasterVolume(80)

	done := make(chan error, 1)
	go func() { done <- e.FadeOut(context.Background(), 50*time.Millisecond) }()
	waitFading(t, e)

	_ = e.SetMasterVolume(50)
	if err := e.LoadSound(2, noise.Thunderstorm); err != nil {
		t.Fatalf("load during fade: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := e.MasterGain(); got != 0.25 {
		t.Fatalf("master = %v, want 0.25", got)
	}
	if snap := e.Snapshot(); snap.Channels[1].Sound != noise.Thunderstorm {
		t.Fatalf("load during fade lost: %+v", snap.Channels[1])
	}
}

func TestDisposeThenOperations(t *testing.T) {
	dev := &fakeDevice{}
	e, _ := newTestEngine(t, dev)
	_ = e.LoadSound(1, noise.Rain)
	_ = e.PlayChannel(1)

	if err := e.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if !dev.isClosed() {
		t.Fatal("device not closed")
	}
	checks := map[string]error{
		"LoadSound":        e.LoadSound(1, noise.Rain),
		"PlayChannel":      e.PlayChannel(1),
		"StopChannel":      e.StopChannel(1),
		"StopAll":          e.StopAll(),
		"SetChannelVolume": e.SetChannelVolume(1, 50),
		"SetChannelMute":   e.SetChannelMute(1, true),
		"SetMasterVolume":  e.SetMasterVolume(50),
		"FadeOut":          e.FadeOut(context.Background(), time.Millisecond),
		"ApplyPreset":      e.ApplyPreset(preset.Defaults()[0]),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotInitialized) {
			t.Errorf("%s after dispose: %v", name, err)
		}
	}
	if e.PlayAll() == nil {
		t.Error("PlayAll after dispose should report not initialized")
	}
	if e.Analyser() != nil || e.CacheSize() != 0 {
		t.Error("dispose must drop analyser and cache")
	}
	if err := e.Dispose(); err != nil {
		t.Errorf("second dispose: %v", err)
	}

	out := [][]float32{{1, 1}, {1, 1}}
	e.Render(out)
	if out[0][0] != 0 || out[1][1] != 0 {
		t.Error("render after dispose must write silence")
	}
}

func TestDisposeDuringFade(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	done := make(chan error, 1)
	go func() { done <- e.FadeOut(context.Background(), 50*time.Millisecond) }()
	waitFading(t, e)
	if err := e.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("fade after dispose: %v", err)
	}
}

func TestReinitializeAfterDispose(t *testing.T) {
	dev := &fakeDevice{}
	e, sources := newTestEngine(t, dev)
	_ = e.SetChannelVolume(1, 10)
	_ = e.Dispose()

	if err := e.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := sources.Load(); got != 18 {
		t.Fatalf("sources = %d, want 18 after re-initialize", got)
	}
	if g, _ := e.ChannelGain(1); g != DefaultChannelGain {
		t.Fatalf("channel gain after re-initialize = %v", g)
	}
}

func TestApplyPreset(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})
	if err := e.ApplyPreset(preset.Defaults()[0]); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap := e.Snapshot()
	c1, c2, c3 := snap.Channels[0], snap.Channels[1], snap.Channels[2]
	if c1.Sound != noise.BrownNoise || math.Abs(c1.Gain-0.64) > 1e-12 || c1.State != Bound {
		t.Errorf("channel 1: %+v", c1)
	}
	if c2.State != Idle || math.Abs(c2.Gain-0.04) > 1e-12 {
		t.Errorf("channel 2: %+v", c2)
	}
	if !c3.Muted || c3.Gain != 0 {
		t.Errorf("channel 3: %+v", c3)
	}
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestApplyPresetLogsOutcome(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{})

	logs := captureLogs(t)
	bad := preset.Defaults()[0]
	bad.Channel2.Sound = noise.SoundType(99)
	err := e.ApplyPreset(bad)
	if !errors.Is(err, noise.ErrUnknownSound) {
		t.Fatalf("apply bad preset: got %v, want ErrUnknownSound", err)
	}
	out := logs.String()
	if !strings.Contains(out, "preset applied with errors") || !strings.Contains(out, "channel 2") {
		t.Fatalf("failed apply should warn with the error, got:\n%s", out)
	}
	if strings.Contains(out, "level=INFO msg=\"preset applied\"") {
		t.Fatalf("failed apply logged success:\n%s", out)
	}

	logs.Reset()
	if err := e.ApplyPreset(preset.Defaults()[0]); err != nil {
		t.Fatalf("apply: %v", err)
	}
	out = logs.String()
	if !strings.Contains(out, "level=INFO msg=\"preset applied\"") || strings.Contains(out, "with errors") {
		t.Fatalf("successful apply log:\n%s", out)
	}
}

func TestAvailableSounds(t *testing.T) {
	e := New(Options{})
	got := e.AvailableSounds()
	want := []noise.SoundType{
		noise.None, noise.BrownNoise, noise.PinkNoise, noise.WhiteNoise,
		noise.BinauralAlpha, noise.BinauralTheta, noise.OceanWaves,
		noise.Rain, noise.Thunderstorm, noise.Campfire,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConcurrentSettersWhileRendering(t *testing.T) {
	dev := &fakeDevice{}
	e, _ := newTestEngine(t, dev)
	_ = e.LoadSound(1, noise.PinkNoise)
	_ = e.PlayChannel(1)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				dev.pull(128)
			}
		}
	}()

	sounds := noise.All()
	for i := 0; i < 200; i++ {
		_ = e.SetChannelVolume(1+i%3, float64(i%101))
		_ = e.LoadSound(1+i%3, sounds[i%len(sounds)])
		_ = e.SetChannelMute(2, i%2 == 0)
	}
	close(stop)
	wg.Wait()

	_ = e.SetChannelVolume(1, 60)
	if g, _ := e.ChannelGain(1); math.Abs(g-0.36) > 1e-12 {
		t.Fatalf("final gain %v, want 0.36", g)
	}
}

func peak(block [][]float32) float32 {
	var p float32
	for _, ch := range block {
		for _, s := range ch {
			if s < 0 {
				s = -s
			}
			if s > p {
				p = s
			}
		}
	}
	return p
}
