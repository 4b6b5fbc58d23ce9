package handlers

// AppHandlers holds every HTTP handler.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	ProfileHandler      *ProfileHandler
	SubscriptionHandler *SubscriptionHandler
	UploadHandler       *UploadHandler
	WebhookHandler      *WebhookHandler
}
