package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vendorlink/marketplace/cmd/marketplace/compare"
	"github.com/vendorlink/marketplace/cmd/marketplace/discovery"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
	"github.com/vendorlink/marketplace/models/market"
)

// supplierList is the response of every listing endpoint. Ignored lists
// query parameters that did not take effect.
type supplierList struct {
	Suppliers     []market.Supplier        `json:"suppliers"`
	Total         int                      `json:"total"`
	Sort          discovery.SortKey        `json:"sort"`
	ActiveFilters int                      `json:"activeFilters"`
	Ignored       []discovery.IgnoredParam `json:"ignored,omitempty"`
}

type toggleResponse struct {
	SupplierID string `json:"supplierId"`
	Favorite   bool   `json:"favorite"`
}

type compareResponse struct {
	Suppliers []market.Supplier `json:"suppliers"`
	Metrics   []compare.Metric  `json:"metrics"`
	Max       int               `json:"max"`
}

func (mr *MarketplaceRouter) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	filters, sortKey, ignored := discovery.ParseFilters(r.URL.Query())

	// Exact-match filters narrow the read; the pipeline applies them again.
	suppliers, err := mr.store.ListSuppliers(r.Context(), &store.SupplierQuery{
		Category: filters.Category,
		City:     filters.City,
	})
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	visible := mr.pipeline.Run(suppliers, filters, sortKey)
	respondWithJSON(w, http.StatusOK, supplierList{
		Suppliers:     visible,
		Total:         len(visible),
		Sort:          sortKey,
		ActiveFilters: filters.ActiveCount(),
		Ignored:       ignored,
	})
}

func (mr *MarketplaceRouter) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	s, err := mr.store.GetSupplier(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, s)
}

func (mr *MarketplaceRouter) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	ids, err := mr.favorites.List(r.Context(), s)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{"favorites": ids})
}

func (mr *MarketplaceRouter) handleFavoriteSuppliers(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	filters, sortKey, ignored := discovery.ParseFilters(r.URL.Query())
	visible, err := mr.favorites.Suppliers(r.Context(), s, filters, sortKey)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, supplierList{
		Suppliers:     visible,
		Total:         len(visible),
		Sort:          sortKey,
		ActiveFilters: filters.ActiveCount(),
		Ignored:       ignored,
	})
}

func (mr *MarketplaceRouter) handleIsFavorite(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	supplierID := mux.Vars(r)["supplierID"]

	favorite, err := mr.favorites.IsFavorite(r.Context(), s, supplierID)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toggleResponse{SupplierID: supplierID, Favorite: favorite})
}

func (mr *MarketplaceRouter) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	supplierID := mux.Vars(r)["supplierID"]

	favorite, err := mr.favorites.Toggle(r.Context(), s, supplierID)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toggleResponse{SupplierID: supplierID, Favorite: favorite})
}

func (mr *MarketplaceRouter) respondWithSelection(w http.ResponseWriter, status int, sel *compare.Selection) {
	items := sel.Items()
	respondWithJSON(w, status, compareResponse{
		Suppliers: items,
		Metrics:   compare.Metrics(items),
		Max:       compare.MaxSuppliers,
	})
}

func (mr *MarketplaceRouter) handleGetCompare(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	mr.respondWithSelection(w, http.StatusOK, s.Selection())
}

func (mr *MarketplaceRouter) handleClearCompare(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	s.Selection().Clear()
	mr.respondWithSelection(w, http.StatusOK, s.Selection())
}

func (mr *MarketplaceRouter) handleAddCompare(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	supplier, err := mr.store.GetSupplier(r.Context(), mux.Vars(r)["supplierID"])
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	if err := s.Selection().Add(*supplier); err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	mr.respondWithSelection(w, http.StatusOK, s.Selection())
}

func (mr *MarketplaceRouter) handleRemoveCompare(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	s.Selection().Remove(mux.Vars(r)["supplierID"])
	mr.respondWithSelection(w, http.StatusOK, s.Selection())
}
