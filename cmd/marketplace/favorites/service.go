package favorites

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/cmd/marketplace/discovery"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
	"github.com/vendorlink/marketplace/models/market"
)

// Principal is the signed-in user a favorites call acts for.
type Principal interface {
	RequireAccount() (*market.Account, error)
}

type FavoritesService struct {
	favorites store.FavoriteStore
	suppliers store.SupplierStore
	pipeline  *discovery.Pipeline
	log       zerolog.Logger
}

func NewFavoritesService(favorites store.FavoriteStore, suppliers store.SupplierStore, pipeline *discovery.Pipeline, log zerolog.Logger) *FavoritesService {
	return &FavoritesService{
		favorites: favorites,
		suppliers: suppliers,
		pipeline:  pipeline,
		log:       log.With().Str("component", "favorites").Logger(),
	}
}

func (svc *FavoritesService) load(ctx context.Context, who Principal) (string, *Set, error) {
	acct, err := who.RequireAccount()
	if err != nil {
		return "", nil, err
	}
	ids, err := svc.favorites.ListFavorites(ctx, acct.ID)
	if err != nil {
		return "", nil, err
	}
	return acct.ID, NewSet(ids), nil
}

// Toggle flips supplierID in the caller's favorites and returns the new
// membership. Adding a supplier that does not exist fails with not found.
func (svc *FavoritesService) Toggle(ctx context.Context, who Principal, supplierID string) (bool, error) {
	userID, set, err := svc.load(ctx, who)
	if err != nil {
		return false, err
	}

	op := store.FavoriteRemove
	if !set.Contains(supplierID) {
		if _, err := svc.suppliers.GetSupplier(ctx, supplierID); err != nil {
			return false, err
		}
		op = store.FavoriteAdd
	}

	if err := svc.favorites.UpdateFavorites(ctx, userID, op, supplierID); err != nil {
		return set.Contains(supplierID), fmt.Errorf("failed to update favorites: %w", err)
	}
	now := set.Toggle(supplierID)

	svc.log.Debug().
		Str("user_id", userID).
		Str("supplier_id", supplierID).
		Bool("favorite", now).
		Msg("Toggled favorite")
	return now, nil
}

func (svc *FavoritesService) IsFavorite(ctx context.Context, who Principal, supplierID string) (bool, error) {
	_, set, err := svc.load(ctx, who)
	if err != nil {
		return false, err
	}
	return set.Contains(supplierID), nil
}

// List returns the caller's favorite supplier ids.
func (svc *FavoritesService) List(ctx context.Context, who Principal) ([]string, error) {
	_, set, err := svc.load(ctx, who)
	if err != nil {
		return nil, err
	}
	return set.IDs(), nil
}

// Suppliers returns the caller's favorite suppliers run through the discovery
// pipeline. Favorites pointing at suppliers that no longer exist are skipped.
func (svc *FavoritesService) Suppliers(ctx context.Context, who Principal, filters discovery.Filters, sortKey discovery.SortKey) ([]market.Supplier, error) {
	_, set, err := svc.load(ctx, who)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return []market.Supplier{}, nil
	}

	all, err := svc.suppliers.ListSuppliers(ctx, nil)
	if err != nil {
		return nil, err
	}

	favorites := make([]market.Supplier, 0, set.Len())
	for _, s := range all {
		if set.Contains(s.ID) {
			favorites = append(favorites, s)
		}
	}
	if missing := set.Len() - len(favorites); missing > 0 {
		svc.log.Debug().Int("missing", missing).Msg("Skipping favorites of removed suppliers")
	}

	return svc.pipeline.Run(favorites, filters, sortKey), nil
}
