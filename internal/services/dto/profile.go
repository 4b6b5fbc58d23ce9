package dto

type UpdateProfileRequest struct {
	FullName          *string `json:"fullName" validate:"omitempty,min=2,max=100"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	CertificateNumber *string `json:"certificateNumber" validate:"omitempty,max=32"`
}

type SchoolResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProfileResponse struct {
	User         *UserResponse         `json:"user"`
	School       *SchoolResponse       `json:"school,omitempty"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}
