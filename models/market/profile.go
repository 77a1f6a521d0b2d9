package market

import (
	"fmt"
	"time"
)

type UserType string

const (
	UserTypeVendor   UserType = "vendor"
	UserTypeSupplier UserType = "supplier"
)

func (t UserType) Valid() bool {
	return t == UserTypeVendor || t == UserTypeSupplier
}

// Profile is the user document stored next to an account. Supplier-only
// fields are optional and nil for vendors.
type Profile struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	UserType     UserType  `json:"userType" db:"user_type"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Address      string    `json:"address,omitempty" db:"address"`
	City         string    `json:"city,omitempty" db:"city"`
	BusinessName *string   `json:"businessName,omitempty" db:"business_name"`
	Category     *Category `json:"category,omitempty" db:"category"`
	Description  *string   `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	if !p.UserType.Valid() {
		return fmt.Errorf("profile %s: unknown user type %q", p.ID, p.UserType)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("profile %s: unknown category %q", p.ID, *p.Category)
	}
	return nil
}
