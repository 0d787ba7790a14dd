package httpapi

import (
	"net/http"
	"strconv"

	"ambimix/internal/store"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleTimer(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.Timer().State())
}

// timerChanged persists the timer and answers with its state.
func (s *Server) timerChanged(c echo.Context) error {
	s.ctrl.SaveTimer()
	s.ws.PushState()
	return c.JSON(http.StatusOK, s.ctrl.Timer().State())
}

func (s *Server) handleTimerAction(c echo.Context) error {
	t := s.ctrl.Timer()
	switch c.Param("action") {
	case "start":
		t.Start()
	case "pause":
		t.Pause()
	case "reset":
		t.Reset()
	case "pomodoro":
		t.TogglePomodoro()
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown timer action")
	}
	return s.timerChanged(c)
}

type timerSettingsRequest struct {
	Duration      *int `json:"duration"`
	WorkDuration  *int `json:"workDuration"`
	BreakDuration *int `json:"breakDuration"`
}

func (s *Server) handleTimerSettings(c echo.Context) error {
	var req timerSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid timer settings")
	}
	t := s.ctrl.Timer()
	if req.WorkDuration != nil {
		if err := t.SetWorkDuration(*req.WorkDuration); err != nil {
			return httpError(err)
		}
	}
	if req.BreakDuration != nil {
		if err := t.SetBreakDuration(*req.BreakDuration); err != nil {
			return httpError(err)
		}
	}
	if req.Duration != nil {
		if err := t.SetDuration(*req.Duration); err != nil {
			return httpError(err)
		}
	}
	return s.timerChanged(c)
}

type sessionsResponse struct {
	Sessions []store.Session `json:"sessions"`
	Stats    store.Stats     `json:"stats"`
}

func (s *Server) handleSessions(c echo.Context) error {
	limit := 50
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative number")
		}
		limit = n
	}
	sessions, err := s.store.ListSessions(limit)
	if err != nil {
		return httpError(err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	stats, err := s.store.SessionStats()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sessionsResponse{Sessions: sessions, Stats: stats})
}
