package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/selectionsync/internal/domain"
	apperrors "github.com/pscheid92/selectionsync/internal/platform/errors"
)

type selectionRequest struct {
	Index    *int  `json:"index"`
	Selected *bool `json:"selected"`
}

type highlightRequest struct {
	Index *int `json:"index"`
}

type resetRequest struct {
	Group       *int   `json:"group"`
	ContextType string `json:"contextType"`
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api")
	if s.rateLimit > 0 {
		api.Use(newRateLimiter(s.rateLimit, s.rateBurst))
	}
	api.POST("/selection", s.handleSelection)
	api.POST("/highlight", s.handleHighlight)
	api.POST("/reset", s.handleReset)
	api.POST("/reset-all", s.handleResetAll)
	api.GET("/state", s.handleState)
}

func (s *Server) handleSelection(c echo.Context) error {
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid JSON body")
	}
	if err := validateIndex(req.Index); err != nil {
		return err
	}
	if req.Selected == nil {
		return apperrors.ValidationError("selected is required")
	}

	if err := s.engine.SetSelected(c.Request().Context(), *req.Index, *req.Selected); err != nil {
		return err
	}
	return accepted(c)
}

func (s *Server) handleHighlight(c echo.Context) error {
	var req highlightRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid JSON body")
	}
	if err := validateIndex(req.Index); err != nil {
		return err
	}

	if err := s.engine.Highlight(c.Request().Context(), *req.Index); err != nil {
		return err
	}
	return accepted(c)
}

func (s *Server) handleReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid JSON body")
	}
	if req.Group == nil {
		return apperrors.ValidationError("group is required")
	}
	if req.ContextType == "" {
		req.ContextType = string(domain.ContextTimeline)
	}
	contextType, ok := domain.ParseApplicationType(req.ContextType)
	if !ok {
		return apperrors.ValidationError("unknown contextType").WithField("contextType", req.ContextType)
	}

	if err := s.engine.ResetGroup(c.Request().Context(), *req.Group, contextType); err != nil {
		return err
	}
	return accepted(c)
}

func (s *Server) handleResetAll(c echo.Context) error {
	if err := s.engine.ResetAll(c.Request().Context()); err != nil {
		return err
	}
	return accepted(c)
}

func (s *Server) handleState(c echo.Context) error {
	snap, err := s.engine.Snapshot(c.Request().Context(), s.engine.LocalApp())
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, snap); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func validateIndex(index *int) error {
	if index == nil {
		return apperrors.ValidationError("index is required")
	}
	if *index < 0 {
		return apperrors.ValidationError("index must not be negative").WithField("index", *index)
	}
	return nil
}

// accepted answers 202: the intent is on the bus and takes effect when it
// comes back.
func accepted(c echo.Context) error {
	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "published"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
