package loyalty

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
	"github.com/vendorlink/marketplace/models/market"
)

// Status is a relationship together with its current tier.
type Status struct {
	market.Relationship
	Tier Tier `json:"tier"`
}

type LoyaltyService struct {
	store store.RelationshipStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewLoyaltyService(relationships store.RelationshipStore, log zerolog.Logger) *LoyaltyService {
	return &LoyaltyService{
		store: relationships,
		log:   log.With().Str("component", "loyalty").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a relationship between vendor and supplier as a newcomer. An
// existing relationship is left as it is.
func (svc *LoyaltyService) Start(ctx context.Context, vendorID, supplierID string) (*Status, error) {
	if vendorID == "" || supplierID == "" {
		return nil, errs.Validation("supplierId", "vendor and supplier are required")
	}

	created, err := svc.store.CreateRelationship(ctx, &market.Relationship{
		VendorID:     vendorID,
		SupplierID:   supplierID,
		StartDate:    svc.now(),
		LoyaltyBadge: string(Newcomer),
	})
	if err != nil {
		return nil, err
	}
	if created {
		svc.log.Info().
			Str("vendor_id", vendorID).
			Str("supplier_id", supplierID).
			Msg("Started relationship")
	}
	return svc.Status(ctx, vendorID, supplierID)
}

// RecordOrder adds one order of amount to the relationship totals and
// refreshes the badge.
func (svc *LoyaltyService) RecordOrder(ctx context.Context, vendorID, supplierID string, amount float64) (*Status, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, errs.Validation("amount", "order amount must be a non-negative number")
	}

	// The store increments the totals; the start date only decides the badge.
	rel, err := svc.store.GetRelationship(ctx, vendorID, supplierID)
	if err != nil {
		return nil, err
	}

	now := svc.now()
	rel, err = svc.store.AddOrder(ctx, vendorID, supplierID, store.Order{
		Amount:       amount,
		At:           now,
		LoyaltyBadge: string(BadgeFor(rel.StartDate, now)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	svc.log.Debug().
		Str("vendor_id", vendorID).
		Str("supplier_id", supplierID).
		Float64("amount", amount).
		Int("total_orders", rel.TotalOrders).
		Msg("Recorded order")
	return statusOf(rel), nil
}

// Status returns the relationship with its badge brought up to date.
func (svc *LoyaltyService) Status(ctx context.Context, vendorID, supplierID string) (*Status, error) {
	rel, err := svc.store.GetRelationship(ctx, vendorID, supplierID)
	if err != nil {
		return nil, err
	}
	if err := svc.refresh(ctx, rel); err != nil {
		return nil, err
	}
	return statusOf(rel), nil
}

// ForVendor lists every relationship of a vendor with refreshed badges.
func (svc *LoyaltyService) ForVendor(ctx context.Context, vendorID string) ([]Status, error) {
	rels, err := svc.store.ListRelationships(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(rels))
	for i := range rels {
		if err := svc.refresh(ctx, &rels[i]); err != nil {
			return nil, err
		}
		out = append(out, *statusOf(&rels[i]))
	}
	return out, nil
}

// refresh persists a new badge when the relationship has aged into one.
func (svc *LoyaltyService) refresh(ctx context.Context, rel *market.Relationship) error {
	badge := BadgeFor(rel.StartDate, svc.now())
	if string(badge) == rel.LoyaltyBadge {
		return nil
	}

	previous := rel.LoyaltyBadge
	if err := svc.store.SetLoyaltyBadge(ctx, rel.VendorID, rel.SupplierID, string(badge)); err != nil {
		return fmt.Errorf("failed to update loyalty badge: %w", err)
	}
	rel.LoyaltyBadge = string(badge)

	svc.log.Info().
		Str("vendor_id", rel.VendorID).
		Str("supplier_id", rel.SupplierID).
		Str("from", previous).
		Str("to", string(badge)).
		Msg("Loyalty badge changed")
	return nil
}

func statusOf(rel *market.Relationship) *Status {
	return &Status{Relationship: *rel, Tier: TierOf(Badge(rel.LoyaltyBadge))}
}
