package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription is one billing subscription, owned by a user or a school.
type Subscription struct {
	BaseModelWithDeleted
	StripeSubscriptionID string             `gorm:"uniqueIndex;not null" json:"stripeSubscriptionId"`
	StripeCustomerID     string             `gorm:"index" json:"stripeCustomerId"`
	UserID               *string            `gorm:"type:uuid;index" json:"userId,omitempty"`
	SchoolID             *string            `gorm:"type:uuid;index" json:"schoolId,omitempty"`
	Status               SubscriptionStatus `gorm:"type:varchar(32);not null" json:"status"`
	CurrentPeriodStart   *time.Time         `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool               `gorm:"default:false" json:"cancelAtPeriodEnd"`
}

func (s *Subscription) Owner() (Owner, error) {
	return OwnerFromColumns(s.UserID, s.SchoolID)
}

func (s *Subscription) SetOwner(o Owner) error {
	if o.IsZero() {
		return ErrInvalidOwner
	}
	s.UserID, s.SchoolID = o.Columns()
	return nil
}

// BillingWebhookEvent keeps every verified provider event so failed local
// processing can be replayed.
type BillingWebhookEvent struct {
	BaseModel
	Provider        string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_billing_event_provider_id" json:"provider"`
	ProviderEventID string         `gorm:"not null;uniqueIndex:idx_billing_event_provider_id" json:"providerEventId"`
	EventType       string         `gorm:"not null;index" json:"eventType"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"-"`
	Attempts        int            `gorm:"default:0" json:"attempts"`
	ProcessedAt     *time.Time     `gorm:"index" json:"processedAt,omitempty"`
	ProcessingError string         `json:"processingError,omitempty"`
	LastAttemptAt   *time.Time     `json:"lastAttemptAt,omitempty"`
}
