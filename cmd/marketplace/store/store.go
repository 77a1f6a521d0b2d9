package store

import (
	"context"
	"time"

	"github.com/vendorlink/marketplace/models/market"
)

// FavoriteOp is the mutation applied by UpdateFavorites.
type FavoriteOp string

const (
	FavoriteAdd    FavoriteOp = "add"
	FavoriteRemove FavoriteOp = "remove"
)

func (op FavoriteOp) Valid() bool {
	return op == FavoriteAdd || op == FavoriteRemove
}

// SupplierQuery narrows ListSuppliers on the store side. Zero fields do not
// constrain the result.
type SupplierQuery struct {
	Category  string
	City      string
	MinRating float64
}

type SupplierStore interface {
	ListSuppliers(ctx context.Context, q *SupplierQuery) ([]market.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*market.Supplier, error)
	PutSupplier(ctx context.Context, s *market.Supplier) error
}

type ProfileStore interface {
	GetUserProfile(ctx context.Context, id string) (*market.Profile, error)
	CreateUserProfile(ctx context.Context, p *market.Profile) error
	UpdateUserProfile(ctx context.Context, p *market.Profile) error
}

// FavoriteStore persists favorites as a relation between users and suppliers.
type FavoriteStore interface {
	ListFavorites(ctx context.Context, userID string) ([]string, error)
	UpdateFavorites(ctx context.Context, userID string, op FavoriteOp, supplierID string) error
}

// Order is one purchase added to a relationship's totals.
type Order struct {
	Amount float64   `json:"amount"`
	At     time.Time `json:"at"`
	// LoyaltyBadge is stored together with the new totals.
	LoyaltyBadge string `json:"loyaltyBadge"`
}

type RelationshipStore interface {
	GetRelationship(ctx context.Context, vendorID, supplierID string) (*market.Relationship, error)
	// CreateRelationship inserts r unless the pair already exists and reports
	// whether a row was written.
	CreateRelationship(ctx context.Context, r *market.Relationship) (bool, error)
	// AddOrder increments the totals of an existing relationship in one
	// atomic step and returns the updated relationship.
	AddOrder(ctx context.Context, vendorID, supplierID string, o Order) (*market.Relationship, error)
	SetLoyaltyBadge(ctx context.Context, vendorID, supplierID, badge string) error
	ListRelationships(ctx context.Context, vendorID string) ([]market.Relationship, error)
}

// DocumentStore is everything the marketplace reads from and writes to its
// backing database.
type DocumentStore interface {
	SupplierStore
	ProfileStore
	FavoriteStore
	RelationshipStore
}
