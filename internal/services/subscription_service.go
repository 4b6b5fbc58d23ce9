package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
)

const billingProviderStripe = "stripe"

// ErrWebhookPayload means a verified event could not be decoded.
var ErrWebhookPayload = errors.New("webhook payload could not be decoded")

type SubscriptionService interface {
	// HandleStripeEvent records and applies a verified event. Only decoding
	// failures are returned; store failures are kept in the inbox for replay.
	HandleStripeEvent(ctx context.Context, db *gorm.DB, evt stripe.Event, payload []byte) error
	ApplyEvent(ctx context.Context, db *gorm.DB, ev SubscriptionEvent) error
	ReplayFailedEvents(ctx context.Context, db *gorm.DB, maxAttempts, limit int) (replayed int, err error)

	GetMySubscription(ctx context.Context, db *gorm.DB, userID string, role models.UserRole) (*dto.SubscriptionResponse, error)
	FindLiveSubscription(db *gorm.DB, userID string, role models.UserRole) (*models.Subscription, error)
}

type subscriptionService struct {
	subRepo     repositories.SubscriptionRepository
	eventRepo   repositories.BillingEventRepository
	schoolRepo  repositories.SchoolRepository
	transact    txRunner
	now         func() time.Time
	replayDelay time.Duration
}

func NewSubscriptionService(
	subRepo repositories.SubscriptionRepository,
	eventRepo repositories.BillingEventRepository,
	schoolRepo repositories.SchoolRepository,
	replayDelay time.Duration,
) SubscriptionService {
	return &subscriptionService{
		subRepo:     subRepo,
		eventRepo:   eventRepo,
		schoolRepo:  schoolRepo,
		transact:    runInTransaction,
		now:         time.Now,
		replayDelay: replayDelay,
	}
}

// =========================================================================
// Webhook intake
// =========================================================================

func (s *subscriptionService) HandleStripeEvent(ctx context.Context, db *gorm.DB, evt stripe.Event, payload []byte) error {
	log := logger.FromContext(ctx).With("event_id", evt.ID, "event_type", string(evt.Type))

	if !IsSubscriptionEventType(string(evt.Type)) {
		log.Debug("ignoring webhook event")
		return nil
	}

	ev, err := SubscriptionEventFromStripe(evt)
	if err != nil {
		log.Warn("failed to decode webhook event", "error", err)
		return fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}

	stored, created, err := s.eventRepo.Record(db, &models.BillingWebhookEvent{
		Provider:        billingProviderStripe,
		ProviderEventID: evt.ID,
		EventType:       ev.Type,
		Payload:         datatypes.JSON(payload),
	})
	if err != nil {
		log.Error("failed to record webhook event", "error", err)
	} else if !created {
		log.Info("redelivered webhook event", "attempts", stored.Attempts, "processed", stored.ProcessedAt != nil)
	}

	applyErr := s.ApplyEvent(ctx, db, ev)
	if applyErr != nil {
		log.Error("failed to apply webhook event", "error", applyErr, "subscription_id", ev.Data.StripeSubscriptionID)
	}
	if stored != nil {
		s.finishAttempt(ctx, db, stored.ID, applyErr)
	}
	return nil
}

// ApplyEvent runs the subscription state machine for one event. Deletion is
// terminal: any event for an already deleted subscription is a no-op.
func (s *subscriptionService) ApplyEvent(ctx context.Context, db *gorm.DB, ev SubscriptionEvent) error {
	snap := ev.Data
	existing, err := s.subRepo.FindByStripeIDUnscoped(db, snap.StripeSubscriptionID)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrSubscriptionNotFound):
		existing = nil
	default:
		return err
	}
	if existing != nil && existing.DeletedAt.Valid {
		logger.CtxInfo(ctx, "ignoring event for deleted subscription",
			"subscription_id", snap.StripeSubscriptionID,
			"event_type", ev.Type,
		)
		return nil
	}

	switch ev.Type {
	case EventSubscriptionCreated:
		if existing != nil {
			return s.update(db, snap)
		}
		return s.create(ctx, db, snap)

	case EventSubscriptionUpdated:
		return s.update(db, snap)

	case EventSubscriptionDeleted:
		snap.Status = models.SubscriptionStatusCanceled
		return s.transact(db, func(tx *gorm.DB) error {
			if err := s.update(tx, snap); err != nil {
				return err
			}
			return s.subRepo.SoftDelete(tx, snap.StripeSubscriptionID)
		})
	}
	return nil
}

func (s *subscriptionService) create(ctx context.Context, db *gorm.DB, snap SubscriptionSnapshot) error {
	sub := &models.Subscription{
		StripeSubscriptionID: snap.StripeSubscriptionID,
		StripeCustomerID:     snap.StripeCustomerID,
		Status:               snap.Status,
		CurrentPeriodStart:   snap.CurrentPeriodStart,
		CurrentPeriodEnd:     snap.CurrentPeriodEnd,
		CancelAtPeriodEnd:    snap.CancelAtPeriodEnd,
	}
	if err := sub.SetOwner(snap.Owner); err != nil {
		return apperrors.ErrInvalidSubscriptionOwner.WithError(err)
	}
	if err := s.subRepo.Create(db, sub); err != nil {
		return err
	}
	logger.CtxInfo(ctx, "subscription created",
		"subscription_id", snap.StripeSubscriptionID,
		"owner", snap.Owner.String(),
		"status", snap.Status,
	)
	return nil
}

func (s *subscriptionService) update(db *gorm.DB, snap SubscriptionSnapshot) error {
	_, err := s.subRepo.UpdateFromSnapshot(db, snap.StripeSubscriptionID, repositories.SubscriptionUpdate{
		StripeCustomerID:   snap.StripeCustomerID,
		Status:             snap.Status,
		CurrentPeriodStart: snap.CurrentPeriodStart,
		CurrentPeriodEnd:   snap.CurrentPeriodEnd,
		CancelAtPeriodEnd:  snap.CancelAtPeriodEnd,
	})
	if errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return apperrors.ErrSubscriptionNotFound.WithError(err)
	}
	return err
}

func (s *subscriptionService) finishAttempt(ctx context.Context, db *gorm.DB, eventID string, applyErr error) {
	var err error
	if applyErr != nil {
		err = s.eventRepo.MarkFailed(db, eventID, applyErr.Error(), s.now())
	} else {
		err = s.eventRepo.MarkProcessed(db, eventID, s.now())
	}
	if err != nil {
		logger.CtxError(ctx, "failed to update webhook event status", "event_row_id", eventID, "error", err)
	}
}

// =========================================================================
// Replay
// =========================================================================

// ReplayFailedEvents re-applies inbox events whose last attempt failed. An
// event waits replayDelay * 2^(attempts-1) after its last attempt.
func (s *subscriptionService) ReplayFailedEvents(ctx context.Context, db *gorm.DB, maxAttempts, limit int) (int, error) {
	events, err := s.eventRepo.FindReplayable(db, maxAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("load replayable events: %w", err)
	}

	now := s.now()
	replayed := 0
	for i := range events {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		stored := &events[i]
		if !s.replayDue(stored, now) {
			continue
		}

		log := logger.FromContext(ctx).With("event_id", stored.ProviderEventID, "attempt", stored.Attempts+1)
		ev, err := DecodeStoredEvent(stored.Payload)
		if err != nil {
			log.Error("stored webhook event is not decodable", "error", err)
			s.finishAttempt(ctx, db, stored.ID, err)
			continue
		}

		applyErr := s.ApplyEvent(ctx, db, ev)
		s.finishAttempt(ctx, db, stored.ID, applyErr)
		if applyErr != nil {
			log.Warn("webhook replay failed", "error", applyErr)
			continue
		}
		log.Info("webhook event replayed")
		replayed++
	}
	return replayed, nil
}

func (s *subscriptionService) replayDue(ev *models.BillingWebhookEvent, now time.Time) bool {
	if ev.LastAttemptAt == nil || ev.Attempts < 1 {
		return true
	}
	wait := s.replayDelay << (ev.Attempts - 1)
	return !now.Before(ev.LastAttemptAt.Add(wait))
}

// =========================================================================
// Read API
// =========================================================================

func (s *subscriptionService) GetMySubscription(ctx context.Context, db *gorm.DB, userID string, role models.UserRole) (*dto.SubscriptionResponse, error) {
	sub, err := s.FindLiveSubscription(db, userID, role)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return nil, apperrors.ErrSubscriptionNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return dto.NewSubscriptionResponse(sub), nil
}

// FindLiveSubscription checks the user's own subscription, then the school's for school admins.
func (s *subscriptionService) FindLiveSubscription(db *gorm.DB, userID string, role models.UserRole) (*models.Subscription, error) {
	sub, err := s.subRepo.FindActiveByOwner(db, models.UserOwner(userID))
	if err == nil || !errors.Is(err, repositories.ErrSubscriptionNotFound) {
		return sub, err
	}
	if role != models.UserRoleSchoolAdmin {
		return nil, err
	}

	school, schoolErr := s.schoolRepo.FindByOwner(db, userID)
	if schoolErr != nil {
		if errors.Is(schoolErr, repositories.ErrSchoolNotFound) {
			return nil, err
		}
		return nil, schoolErr
	}
	return s.subRepo.FindActiveByOwner(db, models.SchoolOwner(school.ID))
}
