package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/cmd/marketplace/loyalty"
	"github.com/vendorlink/marketplace/models/market"
)

// profileUpdate holds the profile fields a user may change. Absent fields
// keep their stored value.
type profileUpdate struct {
	Name         *string          `json:"name"`
	Phone        *string          `json:"phone"`
	Address      *string          `json:"address"`
	City         *string          `json:"city"`
	BusinessName *string          `json:"businessName"`
	Category     *market.Category `json:"category"`
	Description  *string          `json:"description"`
}

type orderRequest struct {
	Amount float64 `json:"amount"`
}

// publicProfile is what a signed-in user sees of someone else's profile.
// Contact details stay private to the owner.
type publicProfile struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	UserType     market.UserType  `json:"userType"`
	City         string           `json:"city,omitempty"`
	BusinessName *string          `json:"businessName,omitempty"`
	Category     *market.Category `json:"category,omitempty"`
	Description  *string          `json:"description,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func (mr *MarketplaceRouter) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	acct, err := mr.account(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	p, err := mr.store.GetUserProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	if p.ID == acct.ID {
		respondWithJSON(w, http.StatusOK, p)
		return
	}
	respondWithJSON(w, http.StatusOK, publicProfile{
		ID:           p.ID,
		Name:         p.Name,
		UserType:     p.UserType,
		City:         p.City,
		BusinessName: p.BusinessName,
		Category:     p.Category,
		Description:  p.Description,
		CreatedAt:    p.CreatedAt,
	})
}

func (mr *MarketplaceRouter) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	acct, err := s.RequireAccount()
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	var update profileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	p, err := mr.store.GetUserProfile(r.Context(), acct.ID)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	if err := update.apply(p); err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	if err := mr.store.UpdateUserProfile(r.Context(), p); err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (u *profileUpdate) apply(p *market.Profile) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return errs.Validation("name", "name must not be empty")
		}
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.City != nil {
		p.City = *u.City
	}

	supplierOnly := u.BusinessName != nil || u.Category != nil || u.Description != nil
	if supplierOnly && p.UserType != market.UserTypeSupplier {
		return errs.Validation("userType", "business details can only be set on supplier profiles")
	}
	if u.BusinessName != nil {
		p.BusinessName = u.BusinessName
	}
	if u.Category != nil {
		if !u.Category.Valid() {
			return errs.Validation("category", "category is not one of the supported categories")
		}
		p.Category = u.Category
	}
	if u.Description != nil {
		p.Description = u.Description
	}
	return nil
}

func (mr *MarketplaceRouter) handleListLoyalty(w http.ResponseWriter, r *http.Request) {
	acct, err := mr.account(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	statuses, err := mr.loyalty.ForVendor(r.Context(), acct.ID)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]loyalty.Status{"relationships": statuses})
}

func (mr *MarketplaceRouter) handleGetLoyalty(w http.ResponseWriter, r *http.Request) {
	acct, err := mr.account(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	status, err := mr.loyalty.Status(r.Context(), acct.ID, mux.Vars(r)["supplierID"])
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (mr *MarketplaceRouter) handleStartLoyalty(w http.ResponseWriter, r *http.Request) {
	acct, err := mr.account(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	status, err := mr.startRelationship(r, acct.ID, mux.Vars(r)["supplierID"])
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// handleRecordOrder records an order, opening the relationship first when
// this is the vendor's first order with the supplier.
func (mr *MarketplaceRouter) handleRecordOrder(w http.ResponseWriter, r *http.Request) {
	acct, err := mr.account(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	supplierID := mux.Vars(r)["supplierID"]

	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	if _, err := mr.startRelationship(r, acct.ID, supplierID); err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	status, err := mr.loyalty.RecordOrder(r.Context(), acct.ID, supplierID, req.Amount)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (mr *MarketplaceRouter) startRelationship(r *http.Request, vendorID, supplierID string) (*loyalty.Status, error) {
	if _, err := mr.store.GetSupplier(r.Context(), supplierID); err != nil {
		return nil, err
	}
	return mr.loyalty.Start(r.Context(), vendorID, supplierID)
}

// account resolves the signed-in account of the request's session.
func (mr *MarketplaceRouter) account(r *http.Request) (*market.Account, error) {
	s, err := mr.session(r)
	if err != nil {
		return nil, err
	}
	return s.RequireAccount()
}

func (mr *MarketplaceRouter) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]market.Category{"categories": market.Categories})
}

func (mr *MarketplaceRouter) handleCities(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]market.City{"cities": market.Cities})
}

func (mr *MarketplaceRouter) handleTiers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]loyalty.Tier{"tiers": loyalty.Tiers})
}
