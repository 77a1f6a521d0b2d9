package discovery

import (
	"cmp"
	"strings"

	"github.com/vendorlink/marketplace/models/market"
	"github.com/vendorlink/marketplace/util"
	"golang.org/x/exp/slices"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Pipeline derives the visible, ordered supplier list from a source list, a
// filter state and a sort key. It holds no per-call state and is safe for
// concurrent use.
type Pipeline struct {
	estimator DistanceEstimator
	locale    language.Tag
}

type Option func(*Pipeline)

// WithEstimator replaces the default GeoEstimator.
func WithEstimator(e DistanceEstimator) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.estimator = e
		}
	}
}

// WithLocale sets the collation locale used for name sorting.
func WithLocale(tag language.Tag) Option {
	return func(p *Pipeline) {
		p.locale = tag
	}
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		estimator: GeoEstimator{},
		locale:    language.English,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run filters and sorts suppliers. The input slice and its elements are left
// untouched; the result is a new slice of copies.
func (p *Pipeline) Run(suppliers []market.Supplier, filters Filters, sortKey SortKey) []market.Supplier {
	visible := make([]market.Supplier, 0, len(suppliers))

	fold := cases.Fold()
	term := ""
	if filters.searchActive() {
		term = fold.String(strings.TrimSpace(filters.Search))
	}

	for i := range suppliers {
		s := &suppliers[i]
		if term != "" && !matchesSearch(fold, s, term) {
			continue
		}
		if filters.categoryActive() && string(s.Category) != filters.Category {
			continue
		}
		if filters.cityActive() && s.City != filters.City {
			continue
		}
		if filters.ratingActive() && s.Rating < filters.Rating {
			continue
		}
		if filters.VerifiedOnly && !s.IsVerified {
			continue
		}

		out := *s
		out.Products = slices.Clone(s.Products)
		out.Distance = nil

		if filters.distanceActive() {
			// Unknown distances cannot be shown to exceed the threshold, so the
			// supplier stays and sorts as distance 0.
			if km, ok := p.estimator.Estimate(filters.Origin, s); ok {
				if km > filters.Distance {
					continue
				}
				out.Distance = util.Float64Ptr(km)
			}
		}

		visible = append(visible, out)
	}

	p.sort(visible, sortKey)
	return visible
}

func matchesSearch(fold cases.Caser, s *market.Supplier, term string) bool {
	contains := func(field string) bool {
		return field != "" && strings.Contains(fold.String(field), term)
	}
	if contains(s.BusinessName) || contains(s.ContactName) || contains(s.Description) {
		return true
	}
	return slices.ContainsFunc(s.Products, contains)
}

func (p *Pipeline) sort(visible []market.Supplier, sortKey SortKey) {
	switch sortKey {
	case SortByDistance:
		slices.SortStableFunc(visible, func(a, b market.Supplier) int {
			return cmp.Compare(distanceOf(a), distanceOf(b))
		})
	case SortByName:
		collator := collate.New(p.locale)
		slices.SortStableFunc(visible, func(a, b market.Supplier) int {
			return collator.CompareString(a.BusinessName, b.BusinessName)
		})
	default:
		slices.SortStableFunc(visible, func(a, b market.Supplier) int {
			return cmp.Compare(b.Rating, a.Rating)
		})
	}
}

// distanceOf treats a missing distance as 0.
func distanceOf(s market.Supplier) float64 {
	if s.Distance == nil {
		return 0
	}
	return *s.Distance
}
