package models

type User struct {
	BaseModel
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	FullName          string     `gorm:"not null" json:"fullName"`
	Role              UserRole   `gorm:"type:varchar(20);not null" json:"role"`
	Status            UserStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	Phone             string     `json:"phone,omitempty"`
	CertificateNumber string     `json:"certificateNumber,omitempty"` // CFI certificate
	SchoolID          *string    `gorm:"type:uuid;index" json:"schoolId,omitempty"`

	School *School `gorm:"foreignKey:SchoolID" json:"school,omitempty"`
}

// School is a flight school managed by a school_admin user.
type School struct {
	BaseModel
	Name    string `gorm:"not null" json:"name"`
	OwnerID string `gorm:"type:uuid;not null;index" json:"ownerId"`
}
