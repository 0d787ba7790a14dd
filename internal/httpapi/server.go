package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ambimix/internal/core"
	"ambimix/internal/mixer"
	"ambimix/internal/noise"
	"ambimix/internal/preset"
	"ambimix/internal/store"
	"ambimix/internal/timer"
	"ambimix/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Options tunes the server.
type Options struct {
	// SpectrumFPS is the websocket frame rate.
	SpectrumFPS int
	// SpectrumBars is the bar count for listeners that do not pick one.
	SpectrumBars int
	// FadeDuration is used by POST /api/fade when no duration is given.
	FadeDuration time.Duration
}

// Server is the Echo application.
type Server struct {
	echo  *echo.Echo
	ctrl  *core.Controller
	store *store.Store
	ws    *ws.Handler
	hub   *ws.Hub
	opts  Options

	mu         sync.Mutex
	baseCtx    context.Context
	fadeCancel context.CancelFunc
}

// New constructs an Echo app with websocket + REST routes.
func New(ctrl *core.Controller, st *store.Store, opts Options) *Server {
	if opts.SpectrumFPS <= 0 {
		opts.SpectrumFPS = 30
	}
	if opts.FadeDuration <= 0 {
		opts.FadeDuration = mixer.DefaultFadeDuration
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	hub := ws.NewHub()
	s := &Server{
		echo:    e,
		ctrl:    ctrl,
		store:   st,
		hub:     hub,
		opts:    opts,
		baseCtx: context.Background(),
	}
	s.ws = ws.NewHandler(hub, ctrl, func() any { return ctrl.State() })
	s.ws.SetDefaultBars(opts.SpectrumBars)
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.GET("/api/sounds", s.handleSounds)

	s.echo.POST("/api/engine/init", s.handleEngineInit)
	s.echo.POST("/api/engine/dispose", s.handleEngineDispose)

	s.echo.PUT("/api/channels/:id/sound", s.handleChannelSound)
	s.echo.PUT("/api/channels/:id/volume", s.handleChannelVolume)
	s.echo.PUT("/api/channels/:id/mute", s.handleChannelMute)
	s.echo.POST("/api/channels/:id/play", s.handleChannelPlay)
	s.echo.POST("/api/channels/:id/stop", s.handleChannelStop)
	s.echo.POST("/api/play", s.handlePlayAll)
	s.echo.POST("/api/stop", s.handleStopAll)
	s.echo.PUT("/api/master", s.handleMaster)
	s.echo.PUT("/api/visualizer", s.handleVisualizer)
	s.echo.POST("/api/fade", s.handleFade)
	s.echo.DELETE("/api/fade", s.handleFadeCancel)

	s.echo.GET("/api/presets", s.handleListPresets)
	s.echo.POST("/api/presets", s.handleCreatePreset)
	s.echo.GET("/api/presets/export", s.handleExportPresets)
	s.echo.POST("/api/presets/import", s.handleImportPresets)
	s.echo.POST("/api/presets/decode", s.handleDecodeShare)
	s.echo.GET("/api/presets/:id", s.handleGetPreset)
	s.echo.PUT("/api/presets/:id", s.handleUpdatePreset)
	s.echo.DELETE("/api/presets/:id", s.handleDeletePreset)
	s.echo.POST("/api/presets/:id/apply", s.handleApplyPreset)
	s.echo.GET("/api/presets/:id/share", s.handleSharePreset)

	s.echo.GET("/api/timer", s.handleTimer)
	s.echo.PUT("/api/timer", s.handleTimerSettings)
	s.echo.POST("/api/timer/:action", s.handleTimerAction)
	s.echo.GET("/api/sessions", s.handleSessions)

	s.ws.Register(s.echo)
}

// Run starts Echo and the spectrum stream and blocks until ctx cancellation
// or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	go s.ws.Stream(ctx, s.opts.SpectrumFPS)

	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

// httpError maps domain errors to HTTP statuses.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mixer.ErrUnknownChannel),
		errors.Is(err, noise.ErrUnknownSound),
		errors.Is(err, core.ErrInvalid),
		errors.Is(err, preset.ErrInvalid),
		errors.Is(err, timer.ErrInvalidDuration):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrPresetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDefaultPreset):
		status = http.StatusForbidden
	case errors.Is(err, mixer.ErrNotInitialized):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
	}
	return echo.NewHTTPError(status, err.Error())
}

func channelID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "channel id must be a number")
	}
	return id, nil
}

type healthResponse struct {
	Status      string `json:"status"`
	Listeners   int    `json:"listeners"`
	Initialized bool   `json:"initialized"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Listeners:   s.hub.ClientCount(),
		Initialized: s.ctrl.Engine().Initialized(),
	})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.State())
}

// stateChanged pushes the new state to listeners and answers with it.
func (s *Server) stateChanged(c echo.Context) error {
	s.ws.PushState()
	return c.JSON(http.StatusOK, s.ctrl.State())
}

type soundInfo struct {
	ID   int             `json:"id"`
	Name noise.SoundType `json:"name"`
}

func (s *Server) handleSounds(c echo.Context) error {
	all := s.ctrl.Engine().AvailableSounds()
	out := make([]soundInfo, 0, len(all))
	for _, st := range all {
		out = append(out, soundInfo{ID: int(st), Name: st})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleEngineInit(c echo.Context) error {
	if err := s.ctrl.Initialize(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

func (s *Server) handleEngineDispose(c echo.Context) error {
	if err := s.ctrl.Dispose(); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}
