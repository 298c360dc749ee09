package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/middleware"
	"github.com/RodenPaul86/docmatic/internal/models"
	"github.com/RodenPaul86/docmatic/pkg/response"
)

type sessionService interface {
	Start(ctx context.Context) (*models.SessionToken, error)
	End(sessionID string)
	Background(sessionID string)
	Foreground(ctx context.Context, sessionID string) error
}

// SessionHandler manages viewing sessions.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler builds a new handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Start godoc
// @Summary Start a session
// @Tags Sessions
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Start(c *gin.Context) {
	token, err := h.service.Start(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, token)
}

// End godoc
// @Summary End the session
// @Tags Sessions
// @Security BearerAuth
// @Success 204
// @Router /sessions [delete]
func (h *SessionHandler) End(c *gin.Context) {
	h.service.End(middleware.SessionID(c))
	response.NoContent(c)
}

// Background godoc
// @Summary Mark the session backgrounded
// @Description Revokes every document authentication and closes viewers of locked documents.
// @Tags Sessions
// @Security BearerAuth
// @Success 204
// @Router /sessions/background [post]
func (h *SessionHandler) Background(c *gin.Context) {
	h.service.Background(middleware.SessionID(c))
	response.NoContent(c)
}

// Foreground godoc
// @Summary Mark the session foregrounded
// @Tags Sessions
// @Security BearerAuth
// @Success 204
// @Router /sessions/foreground [post]
func (h *SessionHandler) Foreground(c *gin.Context) {
	if err := h.service.Foreground(c.Request.Context(), middleware.SessionID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
