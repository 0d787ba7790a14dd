package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ambimix/internal/preset"

	"github.com/labstack/echo/v4"
)

// maxImportBytes bounds an import upload.
const maxImportBytes = 1 << 20

func (s *Server) handleListPresets(c echo.Context) error {
	ps, err := s.store.ListPresets()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ps)
}

type createPresetRequest struct {
	Name string `json:"name"`
	// Preset is saved as given; when absent the current mixer settings are
	// captured.
	Preset *preset.Preset `json:"preset,omitempty"`
}

func (s *Server) handleCreatePreset(c echo.Context) error {
	var req createPresetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preset request")
	}
	var p preset.Preset
	if req.Preset != nil {
		p = *req.Preset
		if strings.TrimSpace(req.Name) != "" {
			p.Name = req.Name
		}
	} else {
		p = s.ctrl.CurrentPreset(req.Name)
	}
	created, err := s.store.CreatePreset(p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetPreset(c echo.Context) error {
	p, err := s.store.GetPreset(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdatePreset(c echo.Context) error {
	var p preset.Preset
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preset")
	}
	p.ID = c.Param("id")
	updated, err := s.store.UpdatePreset(p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeletePreset(c echo.Context) error {
	if err := s.store.DeletePreset(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleApplyPreset(c echo.Context) error {
	p, err := s.store.GetPreset(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.ctrl.ApplyPreset(p); err != nil {
		return httpError(err)
	}
	return s.stateChanged(c)
}

type shareResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleSharePreset(c echo.Context) error {
	p, err := s.store.GetPreset(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	code, err := preset.EncodeShare(p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, shareResponse{Code: code})
}

type decodeRequest struct {
	Code string `json:"code"`
	// Save stores the decoded preset as a user preset.
	Save bool `json:"save"`
}

func (s *Server) handleDecodeShare(c echo.Context) error {
	var req decodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid decode request")
	}
	p, err := preset.DecodeShare(req.Code, time.Now())
	if err != nil {
		return httpError(err)
	}
	if !req.Save {
		return c.JSON(http.StatusOK, p)
	}
	created, err := s.store.CreatePreset(p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleExportPresets(c echo.Context) error {
	ps, err := s.store.ExportPresets()
	if err != nil {
		return httpError(err)
	}
	data, err := preset.Export(ps)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="ambimix-presets.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

type importResponse struct {
	Imported int `json:"imported"`
}

func (s *Server) handleImportPresets(c echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read import: %v", err))
	}
	if len(data) > maxImportBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "import too large")
	}
	ps, err := preset.ParseImport(data)
	if err != nil {
		return httpError(err)
	}
	n, err := s.store.ImportPresets(ps)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, importResponse{Imported: n})
}
