package market

import "time"

// Relationship tracks the trading history between one vendor and one supplier.
type Relationship struct {
	VendorID      string     `json:"vendorId" db:"vendor_id"`
	SupplierID    string     `json:"supplierId" db:"supplier_id"`
	StartDate     time.Time  `json:"startDate" db:"start_date"`
	LoyaltyBadge  string     `json:"loyaltyBadge" db:"loyalty_badge"`
	TotalOrders   int        `json:"totalOrders" db:"total_orders"`
	TotalSpent    float64    `json:"totalSpent" db:"total_spent"`
	LastOrderDate *time.Time `json:"lastOrderDate,omitempty" db:"last_order_date"`
}
