package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ambimix/internal/mixer"
	"ambimix/internal/noise"

	"github.com/labstack/echo/v4"
)

type soundRequest struct {
	Sound *noise.SoundType `json:"sound"`
}

func (s *Server) handleChannelSound(c echo.Context) error {
	id, err := channelID(c)
	if err != nil {
		return err
	}
	var req soundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sound request")
	}
	if req.Sound == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "sound is required")
	}
	if err := s.ctrl.SetSound(id, *req.Sound); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (r volumeRequest) value() (float64, error) {
	if r.Volume == nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "volume is required")
	}
	return *r.Volume, nil
}

func (s *Server) handleChannelVolume(c echo.Context) error {
	id, err := channelID(c)
	if err != nil {
		return err
	}
	var req volumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid volume request")
	}
	v, err := req.value()
	if err != nil {
		return err
	}
	if err := s.ctrl.SetVolume(id, v); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

func (s *Server) handleChannelMute(c echo.Context) error {
	id, err := channelID(c)
	if err != nil {
		return err
	}
	var req muteRequest
	if err := c.Bind(&req); err != nil || req.Muted == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "muted is required")
	}
	if err := s.ctrl.SetMute(id, *req.Muted); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

func (s *Server) handleChannelPlay(c echo.Context) error {
	id, err := channelID(c)
	if err != nil {
		return err
	}
	if err := s.ctrl.Engine().PlayChannel(id); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

func (s *Server) handleChannelStop(c echo.Context) error {
	id, err := channelID(c)
	if err != nil {
		return err
	}
	if err := s.ctrl.Engine().StopChannel(id); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

func (s *Server) handlePlayAll(c echo.Context) error {
	if err := s.ctrl.Engine().PlayAll(); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

func (s *Server) handleStopAll(c echo.Context) error {
	if err := s.ctrl.Engine().StopAll(); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

func (s *Server) handleMaster(c echo.Context) error {
	var req volumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid volume request")
	}
	v, err := req.value()
	if err != nil {
		return err
	}
	if err := s.ctrl.SetMasterVolume(v); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

type visualizerRequest struct {
	Enabled bool    `json:"enabled"`
	Opacity float64 `json:"opacity"`
}

func (s *Server) handleVisualizer(c echo.Context) error {
	var req visualizerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visualizer request")
	}
	if err := s.ctrl.SetVisualizer(req.Enabled, req.Opacity); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

type fadeRequest struct {
	Seconds float64 `json:"seconds"`
}

type fadeResponse struct {
	Status  string  `json:"status"`
	Seconds float64 `json:"seconds"`
}

// handleFade starts a fade in the background and returns at once. The fade
// outlives the request and is cancelled by DELETE /api/fade or shutdown.
func (s *Server) handleFade(c echo.Context) error {
	var req fadeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fade request")
	}
	if req.Seconds < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "seconds must not be negative")
	}
	d := s.opts.FadeDuration
	if req.Seconds > 0 {
		d = time.Duration(req.Seconds * float64(time.Second))
	}
	engine := s.ctrl.Engine()
	if !engine.Initialized() {
		return httpError(mixer.ErrNotInitialized)
	}

	// An earlier fade is superseded by the engine, not cancelled here.
	s.mu.Lock()
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.fadeCancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := engine.FadeOut(ctx, d)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("fade out", "err", err)
		}
		s.ws.PushState()
	}()
	return c.JSON(http.StatusAccepted, fadeResponse{Status: "fading", Seconds: d.Seconds()})
}

func (s *Server) handleFadeCancel(c echo.Context) error {
	s.mu.Lock()
	cancel := s.fadeCancel
	s.fadeCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.NoContent(http.StatusNoContent)
}
