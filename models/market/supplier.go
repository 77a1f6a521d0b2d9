package market

import (
	"fmt"
	"time"
)

// Supplier is a business offering goods to vendors.
type Supplier struct {
	ID                  string    `json:"id" yaml:"id"`
	BusinessName        string    `json:"businessName" yaml:"businessName"`
	ContactName         string    `json:"contactName" yaml:"contactName"`
	Category            Category  `json:"category" yaml:"category"`
	Description         string    `json:"description,omitempty" yaml:"description"`
	Phone               string    `json:"phone,omitempty" yaml:"phone"`
	Email               string    `json:"email,omitempty" yaml:"email"`
	City                string    `json:"city" yaml:"city"`
	Address             string    `json:"address,omitempty" yaml:"address"`
	Rating              float64   `json:"rating" yaml:"rating"`
	ReviewCount         int       `json:"reviewCount" yaml:"reviewCount"`
	IsVerified          bool      `json:"isVerified" yaml:"isVerified"`
	Products            []string  `json:"products,omitempty" yaml:"products"`
	MinOrder            float64   `json:"minOrder,omitempty" yaml:"minOrder"`
	MaxDeliveryDistance float64   `json:"maxDeliveryDistance,omitempty" yaml:"maxDeliveryDistance"`
	DeliveryTime        string    `json:"deliveryTime,omitempty" yaml:"deliveryTime"`
	PaymentTerms        string    `json:"paymentTerms,omitempty" yaml:"paymentTerms"`
	Location            *GeoPoint `json:"location,omitempty" yaml:"location"`
	CreatedAt           time.Time `json:"createdAt" yaml:"createdAt"`

	// Distance is attached by the discovery pipeline and never persisted.
	Distance *float64 `json:"distance,omitempty" yaml:"-"`
}

// Validate checks the fields every stored supplier must satisfy.
func (s *Supplier) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("supplier id is required")
	}
	if s.BusinessName == "" {
		return fmt.Errorf("supplier %s: business name is required", s.ID)
	}
	if !s.Category.Valid() {
		return fmt.Errorf("supplier %s: unknown category %q", s.ID, s.Category)
	}
	if s.Rating < 0 || s.Rating > 5 {
		return fmt.Errorf("supplier %s: rating %.2f outside 0-5", s.ID, s.Rating)
	}
	if s.ReviewCount < 0 {
		return fmt.Errorf("supplier %s: negative review count", s.ID)
	}
	return nil
}

// Position returns the supplier's own location, falling back to the center
// of its city.
func (s *Supplier) Position() (GeoPoint, bool) {
	if s.Location != nil {
		return *s.Location, true
	}
	return CityCenter(s.City)
}
