package models

type UserRole string
type UserStatus string
type SubscriptionStatus string
type UploadStatus string

const (
	UserRoleStudent     UserRole = "student"
	UserRoleCFI         UserRole = "cfi"
	UserRoleSchoolAdmin UserRole = "school_admin"

	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// Subscription statuses mirror the billing provider's lifecycle.
const (
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

const (
	UploadStatusQueued     UploadStatus = "queued"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleStudent, UserRoleCFI, UserRoleSchoolAdmin:
		return true
	}
	return false
}

// ParseSubscriptionStatus maps a provider status onto the local enum.
// Unknown values fall back to incomplete.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch st := SubscriptionStatus(s); st {
	case SubscriptionStatusIncomplete, SubscriptionStatusIncompleteExpired, SubscriptionStatusTrialing,
		SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled,
		SubscriptionStatusUnpaid, SubscriptionStatusPaused:
		return st
	}
	return SubscriptionStatusIncomplete
}

// IsLive reports whether the subscription grants access.
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}
