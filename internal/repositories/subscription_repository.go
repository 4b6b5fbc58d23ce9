package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
)

// SubscriptionRepository stores provider subscriptions. Reads other than
// FindByStripeIDUnscoped never return soft deleted rows.
type SubscriptionRepository interface {
	Create(db *gorm.DB, sub *models.Subscription) error
	FindByStripeID(db *gorm.DB, stripeSubscriptionID string) (*models.Subscription, error)
	FindByStripeIDUnscoped(db *gorm.DB, stripeSubscriptionID string) (*models.Subscription, error)
	FindActiveByOwner(db *gorm.DB, owner models.Owner) (*models.Subscription, error)
	UpdateFromSnapshot(db *gorm.DB, stripeSubscriptionID string, upd SubscriptionUpdate) (*models.Subscription, error)
	SoftDelete(db *gorm.DB, stripeSubscriptionID string) error
}

// SubscriptionUpdate carries the provider-owned columns. The owner never changes after create.
type SubscriptionUpdate struct {
	StripeCustomerID   string
	Status             models.SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

type SubscriptionRepositoryImpl struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &SubscriptionRepositoryImpl{}
}

func (r *SubscriptionRepositoryImpl) Create(db *gorm.DB, sub *models.Subscription) error {
	if _, err := sub.Owner(); err != nil {
		return err
	}
	if err := db.Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) FindByStripeID(db *gorm.DB, stripeSubscriptionID string) (*models.Subscription, error) {
	return r.findByStripeID(db, stripeSubscriptionID)
}

// FindByStripeIDUnscoped also returns a soft deleted row; check DeletedAt.Valid.
func (r *SubscriptionRepositoryImpl) FindByStripeIDUnscoped(db *gorm.DB, stripeSubscriptionID string) (*models.Subscription, error) {
	return r.findByStripeID(db.Unscoped(), stripeSubscriptionID)
}

func (r *SubscriptionRepositoryImpl) findByStripeID(db *gorm.DB, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindActiveByOwner returns the newest active or trialing subscription.
func (r *SubscriptionRepositoryImpl) FindActiveByOwner(db *gorm.DB, owner models.Owner) (*models.Subscription, error) {
	query := db.Where("status IN ?", []models.SubscriptionStatus{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusTrialing,
	})
	switch owner.Kind() {
	case models.OwnerUser:
		query = query.Where("user_id = ?", owner.ID())
	case models.OwnerSchool:
		query = query.Where("school_id = ?", owner.ID())
	default:
		return nil, models.ErrInvalidOwner
	}

	var sub models.Subscription
	if err := query.Order("created_at DESC").First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) UpdateFromSnapshot(db *gorm.DB, stripeSubscriptionID string, upd SubscriptionUpdate) (*models.Subscription, error) {
	sub, err := r.FindByStripeID(db, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":               upd.Status,
		"current_period_start": upd.CurrentPeriodStart,
		"current_period_end":   upd.CurrentPeriodEnd,
		"cancel_at_period_end": upd.CancelAtPeriodEnd,
	}
	if upd.StripeCustomerID != "" {
		updates["stripe_customer_id"] = upd.StripeCustomerID
	}
	if err := db.Model(sub).Updates(updates).Error; err != nil {
		return nil, err
	}

	sub.Status = upd.Status
	sub.CurrentPeriodStart = upd.CurrentPeriodStart
	sub.CurrentPeriodEnd = upd.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = upd.CancelAtPeriodEnd
	if upd.StripeCustomerID != "" {
		sub.StripeCustomerID = upd.StripeCustomerID
	}
	return sub, nil
}

// SoftDelete sets deleted_at; the row stays for audit.
func (r *SubscriptionRepositoryImpl) SoftDelete(db *gorm.DB, stripeSubscriptionID string) error {
	result := db.Where("stripe_subscription_id = ?", stripeSubscriptionID).Delete(&models.Subscription{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
