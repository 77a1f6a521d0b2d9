package compare

import (
	"fmt"
	"strconv"

	"github.com/vendorlink/marketplace/models/market"
)

const notSpecified = "Not specified"

// Metric is one row of the side-by-side comparison table. Values line up
// with the suppliers passed to Metrics.
type Metric struct {
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// Metrics renders the comparison rows for the given suppliers.
func Metrics(suppliers []market.Supplier) []Metric {
	row := func(label string, value func(s market.Supplier) string) Metric {
		m := Metric{Label: label, Values: make([]string, 0, len(suppliers))}
		for _, s := range suppliers {
			m.Values = append(m.Values, value(s))
		}
		return m
	}

	return []Metric{
		row("Rating", func(s market.Supplier) string {
			return fmt.Sprintf("%.1f (%d reviews)", s.Rating, s.ReviewCount)
		}),
		row("Location", func(s market.Supplier) string {
			return orNotSpecified(s.City)
		}),
		row("Contact", func(s market.Supplier) string {
			return orNotSpecified(s.Phone)
		}),
		row("Delivery Time", func(s market.Supplier) string {
			return orNotSpecified(s.DeliveryTime)
		}),
		row("Minimum Order", func(s market.Supplier) string {
			if s.MinOrder <= 0 {
				return notSpecified
			}
			return strconv.FormatFloat(s.MinOrder, 'f', -1, 64)
		}),
		row("Payment Terms", func(s market.Supplier) string {
			return orNotSpecified(s.PaymentTerms)
		}),
		row("Verification", func(s market.Supplier) string {
			if s.IsVerified {
				return "Verified"
			}
			return "Not verified"
		}),
	}
}

func orNotSpecified(v string) string {
	if v == "" {
		return notSpecified
	}
	return v
}
