package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcusgoll/cfipros-web-sub000/internal/middleware"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
)

type SubscriptionHandler struct {
	*BaseHandler
	subscriptionService services.SubscriptionService
}

func NewSubscriptionHandler(base *BaseHandler, subscriptionService services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	subs := rg.Group("/subscriptions")
	subs.Use(h.RequireAuth())
	{
		subs.GET("/me", h.GetMySubscription)
	}
}

// GetMySubscription godoc
// @Summary Get the caller's live subscription
// @Description School admins see their school's subscription, everyone else their own.
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} apperrors.ErrorResponse "No active subscription"
// @Router /subscriptions/me [get]
func (h *SubscriptionHandler) GetMySubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	role, _ := middleware.GetRole(c)

	resp, err := h.subscriptionService.GetMySubscription(c.Request.Context(), h.GetDB(c), userID, role)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
