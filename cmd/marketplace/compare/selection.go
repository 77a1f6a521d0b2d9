package compare

import (
	"fmt"
	"sync"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
	"golang.org/x/exp/slices"
)

// MaxSuppliers is the most suppliers that can be compared side by side.
const MaxSuppliers = 4

// ErrCapacityExceeded is returned by Add when the selection is full.
var ErrCapacityExceeded = errs.New(errs.KindCapacityExceeded,
	fmt.Sprintf("cannot compare more than %d suppliers", MaxSuppliers))

// Selection is an ordered set of suppliers picked for comparison.
// It is only emptied by Clear.
type Selection struct {
	mu    sync.RWMutex
	items []market.Supplier
}

func NewSelection() *Selection {
	return &Selection{}
}

// Add appends s unless a supplier with the same id is already selected.
// A full selection rejects every add, including one already present.
func (sel *Selection) Add(s market.Supplier) error {
	sel.mu.Lock()
	defer sel.mu.Unlock()

	if len(sel.items) >= MaxSuppliers {
		return ErrCapacityExceeded
	}
	if sel.indexOf(s.ID) >= 0 {
		return nil
	}
	s.Distance = nil
	sel.items = append(sel.items, s)
	return nil
}

// Remove drops the supplier with the given id; absent ids are ignored.
func (sel *Selection) Remove(id string) {
	sel.mu.Lock()
	defer sel.mu.Unlock()

	sel.items = slices.DeleteFunc(sel.items, func(s market.Supplier) bool {
		return s.ID == id
	})
}

func (sel *Selection) Clear() {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	sel.items = nil
}

func (sel *Selection) Contains(id string) bool {
	sel.mu.RLock()
	defer sel.mu.RUnlock()
	return sel.indexOf(id) >= 0
}

func (sel *Selection) Len() int {
	sel.mu.RLock()
	defer sel.mu.RUnlock()
	return len(sel.items)
}

// Items returns a copy of the selection in insertion order.
func (sel *Selection) Items() []market.Supplier {
	sel.mu.RLock()
	defer sel.mu.RUnlock()
	out := make([]market.Supplier, len(sel.items))
	copy(out, sel.items)
	return out
}

func (sel *Selection) indexOf(id string) int {
	return slices.IndexFunc(sel.items, func(s market.Supplier) bool {
		return s.ID == id
	})
}
