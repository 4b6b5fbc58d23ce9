package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodyBytes   = int64(65536)
)

// WebhookHandler receives billing provider callbacks. Responses use a flat
// {"error": "..."} shape because the provider, not a user, reads them.
type WebhookHandler struct {
	*BaseHandler
	subscriptionService services.SubscriptionService
	secret              string
}

func NewWebhookHandler(base *BaseHandler, subscriptionService services.SubscriptionService, secret string) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
		secret:              secret,
	}
}

func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	hooks := rg.Group("/webhooks")
	{
		hooks.POST("/stripe", h.HandleStripe)
	}
}

// HandleStripe godoc
// @Summary Receive Stripe subscription events
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	ctx := c.Request.Context()

	if h.secret == "" {
		logger.CtxError(ctx, "stripe webhook secret is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	}

	signature := c.GetHeader(stripeSignatureHeader)
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing stripe-signature header"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		logger.CtxWithError(ctx, "failed to read webhook body", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, h.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		logger.CtxWarn(ctx, "webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	if err := h.subscriptionService.HandleStripeEvent(ctx, h.GetDB(c), evt, payload); err != nil {
		logger.CtxWithError(ctx, "webhook handler failed", err, "event_id", evt.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook handler failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
