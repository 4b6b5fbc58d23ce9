package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

var ErrBillingEventNotFound = errors.New("billing webhook event not found")

// BillingEventRepository is the inbox of verified provider events.
type BillingEventRepository interface {
	// Record inserts the event unless (provider, provider_event_id) exists and
	// returns the stored row; created reports whether it was new.
	Record(db *gorm.DB, event *models.BillingWebhookEvent) (stored *models.BillingWebhookEvent, created bool, err error)
	MarkProcessed(db *gorm.DB, id string, at time.Time) error
	MarkFailed(db *gorm.DB, id string, processingErr string, at time.Time) error
	FindReplayable(db *gorm.DB, maxAttempts, limit int) ([]models.BillingWebhookEvent, error)
}

type BillingEventRepositoryImpl struct{}

func NewBillingEventRepository() BillingEventRepository {
	return &BillingEventRepositoryImpl{}
}

func (r *BillingEventRepositoryImpl) Record(db *gorm.DB, event *models.BillingWebhookEvent) (*models.BillingWebhookEvent, bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return event, true, nil
	}

	var existing models.BillingWebhookEvent
	err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrBillingEventNotFound
		}
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *BillingEventRepositoryImpl) MarkProcessed(db *gorm.DB, id string, at time.Time) error {
	return r.finishAttempt(db, id, map[string]interface{}{
		"processed_at":     at,
		"processing_error": "",
		"last_attempt_at":  at,
	})
}

func (r *BillingEventRepositoryImpl) MarkFailed(db *gorm.DB, id string, processingErr string, at time.Time) error {
	return r.finishAttempt(db, id, map[string]interface{}{
		"processing_error": processingErr,
		"last_attempt_at":  at,
	})
}

func (r *BillingEventRepositoryImpl) finishAttempt(db *gorm.DB, id string, updates map[string]interface{}) error {
	updates["attempts"] = gorm.Expr("attempts + 1")
	result := db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBillingEventNotFound
	}
	return nil
}

// FindReplayable returns unprocessed events that failed at least once and have
// attempts left, oldest first.
func (r *BillingEventRepositoryImpl) FindReplayable(db *gorm.DB, maxAttempts, limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	err := db.Where("processed_at IS NULL AND attempts > 0 AND attempts < ?", maxAttempts).
		Order("created_at").
		Limit(limit).
		Find(&events).Error
	return events, err
}
