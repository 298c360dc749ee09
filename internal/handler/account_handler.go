package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/dto"
	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/response"
)

type quotaReader interface {
	State(ctx context.Context) models.QuotaState
}

type widgetReader interface {
	Latest(ctx context.Context) (*models.WidgetSnapshot, error)
}

type entitlementToggle interface {
	IsPremiumActive(ctx context.Context) bool
	SetPremium(active bool)
}

// AccountHandler exposes quota, widget and entitlement state.
type AccountHandler struct {
	quota       quotaReader
	widgets     widgetReader
	entitlement entitlementToggle
}

// NewAccountHandler builds a new handler.
func NewAccountHandler(quota quotaReader, widgets widgetReader, entitlement entitlementToggle) *AccountHandler {
	return &AccountHandler{quota: quota, widgets: widgets, entitlement: entitlement}
}

// Quota godoc
// @Summary Get free-tier usage and streak
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /quota [get]
func (h *AccountHandler) Quota(c *gin.Context) {
	response.OK(c, h.quota.State(c.Request.Context()))
}

// Widget godoc
// @Summary Get the widget snapshot
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /widget/snapshot [get]
func (h *AccountHandler) Widget(c *gin.Context) {
	snapshot, err := h.widgets.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// SetEntitlement godoc
// @Summary Toggle the premium entitlement (non-production only)
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.EntitlementRequest true "Entitlement"
// @Success 200 {object} response.Envelope
// @Router /entitlement [put]
func (h *AccountHandler) SetEntitlement(c *gin.Context) {
	var req dto.EntitlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "premium flag is required"))
		return
	}
	h.entitlement.SetPremium(*req.Premium)
	response.OK(c, dto.EntitlementResponse{Premium: h.entitlement.IsPremiumActive(c.Request.Context())})
}
