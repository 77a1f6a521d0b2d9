package loyalty

import "time"

// Badge is the loyalty tier of a vendor-supplier relationship.
type Badge string

const (
	Newcomer  Badge = "NEWCOMER"
	Regular   Badge = "REGULAR"
	Loyal     Badge = "LOYAL"
	Elite     Badge = "ELITE"
	Legendary Badge = "LEGENDARY"
)

const year = 365 * 24 * time.Hour

// Tier describes a badge for display.
type Tier struct {
	Badge       Badge  `json:"badge"`
	Name        string `json:"name"`
	Requirement string `json:"requirement"`
	Discount    int    `json:"discountPercent"`
}

// Tiers lists every badge from lowest to highest.
var Tiers = []Tier{
	{Badge: Newcomer, Name: "Newcomer", Requirement: "< 1 year", Discount: 0},
	{Badge: Regular, Name: "Regular Customer", Requirement: "1-2 years", Discount: 5},
	{Badge: Loyal, Name: "Loyal Partner", Requirement: "2-5 years", Discount: 10},
	{Badge: Elite, Name: "Elite Partner", Requirement: "5-10 years", Discount: 15},
	{Badge: Legendary, Name: "Legendary Partner", Requirement: "10+ years", Discount: 20},
}

// BadgeFor returns the badge earned by a relationship started at start.
// Years are counted as 365 days.
func BadgeFor(start, now time.Time) Badge {
	years := float64(now.Sub(start)) / float64(year)
	switch {
	case years >= 10:
		return Legendary
	case years >= 5:
		return Elite
	case years >= 2:
		return Loyal
	case years >= 1:
		return Regular
	default:
		return Newcomer
	}
}

// TierOf returns the display information for b. Unknown badges map to the
// newcomer tier.
func TierOf(b Badge) Tier {
	for _, t := range Tiers {
		if t.Badge == b {
			return t
		}
	}
	return Tiers[0]
}

func (b Badge) Discount() int {
	return TierOf(b).Discount
}
