package market

import "time"

// Account is the credential record owned by the auth service.
type Account struct {
	ID           string    `json:"id" gorm:"primary_key"`
	Email        string    `json:"email" gorm:"unique_index;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
