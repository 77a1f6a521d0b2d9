package auth

import (
	"net/mail"
	"strings"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
)

const MinPasswordLength = 6

// Registration is the sign-up form. Supplier-only fields are ignored for
// vendors.
type Registration struct {
	Email           string          `json:"email"`
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirmPassword"`
	Name            string          `json:"name"`
	UserType        market.UserType `json:"userType"`
	Phone           string          `json:"phone,omitempty"`
	Address         string          `json:"address,omitempty"`
	City            string          `json:"city,omitempty"`

	BusinessName string          `json:"businessName,omitempty"`
	Category     market.Category `json:"category,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// Validate reports the first problem with the form as a validation error
// naming the offending field.
func (r *Registration) Validate() error {
	email := normalizeEmail(r.Email)
	if email == "" {
		return errs.Validation("email", "email is required")
	}
	if !validEmail(email) {
		return errs.Validation("email", "email address is not valid")
	}
	if r.Password == "" {
		return errs.Validation("password", "password is required")
	}
	if len(r.Password) < MinPasswordLength {
		return errs.Validation("password", "password must be at least 6 characters")
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return errs.Validation("confirmPassword", "passwords do not match")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errs.Validation("name", "name is required")
	}
	if r.UserType == "" {
		return errs.Validation("userType", "user type is required")
	}
	if !r.UserType.Valid() {
		return errs.Validation("userType", "user type must be vendor or supplier")
	}

	if r.UserType == market.UserTypeSupplier {
		if strings.TrimSpace(r.BusinessName) == "" {
			return errs.Validation("businessName", "business name is required for suppliers")
		}
		if !r.Category.Valid() {
			return errs.Validation("category", "category is not one of the supported categories")
		}
	}
	return nil
}

// profile builds the user document stored next to the account.
func (r *Registration) profile(id string) *market.Profile {
	p := &market.Profile{
		ID:       id,
		Name:     strings.TrimSpace(r.Name),
		Email:    normalizeEmail(r.Email),
		UserType: r.UserType,
		Phone:    r.Phone,
		Address:  r.Address,
		City:     r.City,
	}
	if r.UserType == market.UserTypeSupplier {
		name := strings.TrimSpace(r.BusinessName)
		category := r.Category
		p.BusinessName = &name
		p.Category = &category
		if r.Description != "" {
			description := r.Description
			p.Description = &description
		}
	}
	return p
}

// supplier builds the listing a new supplier account starts with: no rating,
// no reviews, unverified.
func (r *Registration) supplier(id string) *market.Supplier {
	return &market.Supplier{
		ID:           id,
		BusinessName: strings.TrimSpace(r.BusinessName),
		ContactName:  strings.TrimSpace(r.Name),
		Category:     r.Category,
		Description:  r.Description,
		Phone:        r.Phone,
		Email:        normalizeEmail(r.Email),
		City:         r.City,
		Address:      r.Address,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts a bare address only, without a display name.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}
