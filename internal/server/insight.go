package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/aide/internal/insight"
)

// insightAPI is the slice of the insight service the handlers need.
type insightAPI interface {
	HandleUserInput(uid string, conv insight.Conversation)
	CurrentProjection(ctx context.Context, uid string) (insight.Projection, error)
}

// InsightHandler exposes the insight subsystem over HTTP.
type InsightHandler struct {
	Service insightAPI
}

// Register mounts the insight routes behind auth.
func (h *InsightHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/input", h.input)
	g.GET("/profile", h.profile)
}

// input accepts one conversation turn and schedules extraction in the
// background; the reply never waits for the pipeline.
func (h *InsightHandler) input(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req struct {
		Messages []insight.Message `json:"messages"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages required")
	}
	h.Service.HandleUserInput(userID, insight.Conversation(req.Messages))
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// profile returns the caller's current insight projection.
func (h *InsightHandler) profile(c echo.Context) error {
	userID := c.Get("user_id").(string)
	proj, err := h.Service.CurrentProjection(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, proj)
}
