package identity

import "time"

// Identity represents one registered person. Identities are only persisted
// after their phone number completed an OTP challenge, so Verified is always
// true for stored records.
type Identity struct {
	ID           string
	DisplayName  string
	Phone        string
	Username     string
	Email        string
	PasswordHash []byte
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public is the projection of an Identity that may leave the service.
type Public struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Username    string    `json:"username,omitempty"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Public strips credentials from the identity.
func (i Identity) Public() Public {
	return Public{
		ID:          i.ID,
		Name:        i.DisplayName,
		Username:    i.Username,
		PhoneNumber: i.Phone,
		Email:       i.Email,
		Verified:    i.Verified,
		CreatedAt:   i.CreatedAt,
	}
}

// RegisterInput carries the fields collected by the signup form.
type RegisterInput struct {
	DisplayName       string
	Phone             string
	Password          string
	VerificationToken string
	Username          string
	Email             string
}
