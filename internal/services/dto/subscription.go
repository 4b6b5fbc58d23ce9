package dto

import (
	"time"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

type SubscriptionResponse struct {
	ID                   string                    `json:"id"`
	StripeSubscriptionID string                    `json:"stripeSubscriptionId"`
	Status               models.SubscriptionStatus `json:"status"`
	OwnerType            string                    `json:"ownerType"`
	OwnerID              string                    `json:"ownerId"`
	CurrentPeriodStart   *time.Time                `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time                `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool                      `json:"cancelAtPeriodEnd"`
}

func NewSubscriptionResponse(s *models.Subscription) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		ID:                   s.ID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		Status:               s.Status,
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
	}
	if owner, err := s.Owner(); err == nil {
		resp.OwnerType = owner.Kind().String()
		resp.OwnerID = owner.ID()
	}
	return resp
}
