package services

// ServiceContainer holds every application service.
type ServiceContainer struct {
	AuthService         AuthService
	ProfileService      ProfileService
	SubscriptionService SubscriptionService
	UploadService       UploadService
	OcrResultService    OcrResultService
	EmailService        EmailService
}
