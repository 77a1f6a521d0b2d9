package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
	"github.com/vendorlink/marketplace/util"
)

var testTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	db, err := Connect(ctx, "sqlite3", filepath.Join(t.TempDir(), "marketplace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	// Migrations must be repeatable.
	require.NoError(t, Migrate(ctx, db))

	s := NewSQLStore(db, zerolog.Nop())
	s.now = func() time.Time { return testTime }
	return s
}

func testSupplier(id string, category market.Category, city string, rating float64) *market.Supplier {
	return &market.Supplier{
		ID:           id,
		BusinessName: "Supplier " + id,
		ContactName:  "Contact " + id,
		Category:     category,
		City:         city,
		Rating:       rating,
		ReviewCount:  10,
		IsVerified:   true,
		Products:     []string{"Tomatoes", "Onions"},
		CreatedAt:    testTime,
	}
}

func TestSQLStore_SupplierRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	in := testSupplier("sup001", market.CategoryVegetables, "Mumbai", 4.8)
	in.Location = &market.GeoPoint{Lat: 19.1, Lng: 72.9}
	in.PaymentTerms = "Net 15"
	require.NoError(t, s.PutSupplier(ctx, in))

	got, err := s.GetSupplier(ctx, "sup001")
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("supplier mismatch (-want +got):\n%s", diff)
	}

	in.Rating = 4.9
	in.Products = nil
	require.NoError(t, s.PutSupplier(ctx, in))

	got, err = s.GetSupplier(ctx, "sup001")
	require.NoError(t, err)
	assert.Equal(t, 4.9, got.Rating)
	assert.Empty(t, got.Products)
}

func TestSQLStore_PutSupplierValidates(t *testing.T) {
	s := newTestSQLStore(t)

	err := s.PutSupplier(context.Background(), testSupplier("bad", "Furniture", "Mumbai", 4))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestSQLStore_GetSupplierNotFound(t *testing.T) {
	s := newTestSQLStore(t)

	_, err := s.GetSupplier(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSQLStore_ListSuppliersQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	require.NoError(t, s.PutSupplier(ctx, testSupplier("sup003", market.CategoryDairy, "Mumbai", 3.9)))
	require.NoError(t, s.PutSupplier(ctx, testSupplier("sup001", market.CategoryVegetables, "Mumbai", 4.8)))
	require.NoError(t, s.PutSupplier(ctx, testSupplier("sup002", market.CategoryVegetables, "Delhi", 4.1)))

	idsOf := func(list []market.Supplier) []string {
		out := []string{}
		for _, s := range list {
			out = append(out, s.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query *SupplierQuery
		want  []string
	}{
		{name: "nil query", query: nil, want: []string{"sup001", "sup002", "sup003"}},
		{name: "category", query: &SupplierQuery{Category: "Vegetables"}, want: []string{"sup001", "sup002"}},
		{name: "city", query: &SupplierQuery{City: "Mumbai"}, want: []string{"sup001", "sup003"}},
		{name: "min rating", query: &SupplierQuery{MinRating: 4}, want: []string{"sup001", "sup002"}},
		{name: "combined", query: &SupplierQuery{Category: "Vegetables", City: "Delhi", MinRating: 4}, want: []string{"sup002"}},
		{name: "unknown category", query: &SupplierQuery{Category: "Furniture"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListSuppliers(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, idsOf(got))
		})
	}
}

func TestSQLStore_Profiles(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	category := market.CategorySpices
	p := &market.Profile{
		ID:           "user-1",
		Name:         "Priya",
		Email:        "priya@example.com",
		UserType:     market.UserTypeSupplier,
		City:         "Delhi",
		BusinessName: util.StringPtr("Spice Haven"),
		Category:     &category,
	}
	require.NoError(t, s.CreateUserProfile(ctx, p))
	assert.Equal(t, testTime, p.CreatedAt)

	got, err := s.GetUserProfile(ctx, "user-1")
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}

	got.Description = util.StringPtr("Whole and ground spices")
	got.Phone = "+91 98765 43210"
	require.NoError(t, s.UpdateUserProfile(ctx, got))

	again, err := s.GetUserProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, again.Description)
	assert.Equal(t, "Whole and ground spices", *again.Description)
	assert.Equal(t, "+91 98765 43210", again.Phone)

	t.Run("vendor without supplier fields", func(t *testing.T) {
		v := &market.Profile{ID: "user-2", Name: "Ravi", Email: "ravi@example.com", UserType: market.UserTypeVendor}
		require.NoError(t, s.CreateUserProfile(ctx, v))

		got, err := s.GetUserProfile(ctx, "user-2")
		require.NoError(t, err)
		assert.Nil(t, got.BusinessName)
		assert.Nil(t, got.Category)
	})

	t.Run("update missing profile", func(t *testing.T) {
		err := s.UpdateUserProfile(ctx, &market.Profile{ID: "nobody", UserType: market.UserTypeVendor})
		assert.True(t, errs.IsKind(err, errs.KindNotFound))
	})

	t.Run("get missing profile", func(t *testing.T) {
		_, err := s.GetUserProfile(ctx, "nobody")
		assert.True(t, errs.IsKind(err, errs.KindNotFound))
	})
}

func TestSQLStore_Favorites(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	ids, err := s.ListFavorites(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	require.NoError(t, s.UpdateFavorites(ctx, "user-1", FavoriteAdd, "sup001"))
	require.NoError(t, s.UpdateFavorites(ctx, "user-1", FavoriteAdd, "sup001"))
	require.NoError(t, s.UpdateFavorites(ctx, "user-1", FavoriteAdd, "sup002"))
	require.NoError(t, s.UpdateFavorites(ctx, "user-2", FavoriteAdd, "sup003"))

	ids, err = s.ListFavorites(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sup001", "sup002"}, ids)

	require.NoError(t, s.UpdateFavorites(ctx, "user-1", FavoriteRemove, "sup001"))
	require.NoError(t, s.UpdateFavorites(ctx, "user-1", FavoriteRemove, "sup001"))

	ids, err = s.ListFavorites(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sup002"}, ids)

	err = s.UpdateFavorites(ctx, "user-1", FavoriteOp("merge"), "sup001")
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestSQLStore_Relationships(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	rel := &market.Relationship{
		VendorID:     "vendor-1",
		SupplierID:   "sup001",
		StartDate:    testTime,
		LoyaltyBadge: "NEWCOMER",
	}

	created, err := s.CreateRelationship(ctx, rel)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateRelationship(ctx, rel)
	require.NoError(t, err)
	assert.False(t, created, "second create must not overwrite")

	first := testTime.Add(24 * time.Hour)
	_, err = s.AddOrder(ctx, "vendor-1", "sup001", Order{Amount: 1000, At: first, LoyaltyBadge: "NEWCOMER"})
	require.NoError(t, err)

	last := testTime.Add(48 * time.Hour)
	updated, err := s.AddOrder(ctx, "vendor-1", "sup001", Order{Amount: 500.5, At: last, LoyaltyBadge: "NEWCOMER"})
	require.NoError(t, err)

	rel.TotalOrders = 2
	rel.TotalSpent = 1500.5
	rel.LastOrderDate = &last
	if diff := cmp.Diff(rel, updated); diff != "" {
		t.Errorf("updated relationship mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.SetLoyaltyBadge(ctx, "vendor-1", "sup001", "REGULAR"))
	rel.LoyaltyBadge = "REGULAR"

	got, err := s.GetRelationship(ctx, "vendor-1", "sup001")
	require.NoError(t, err)
	if diff := cmp.Diff(rel, got); diff != "" {
		t.Errorf("relationship mismatch (-want +got):\n%s", diff)
	}

	list, err := s.ListRelationships(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListRelationships(ctx, "vendor-2")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = s.GetRelationship(ctx, "vendor-2", "sup001")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = s.AddOrder(ctx, "vendor-2", "sup001", Order{Amount: 1, At: last})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	err = s.SetLoyaltyBadge(ctx, "vendor-2", "sup001", "REGULAR")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSQLStore_AddOrderConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	_, err := s.CreateRelationship(ctx, &market.Relationship{VendorID: "vendor-1", SupplierID: "sup001", StartDate: testTime})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddOrder(ctx, "vendor-1", "sup001", Order{Amount: 10, At: testTime, LoyaltyBadge: "NEWCOMER"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetRelationship(ctx, "vendor-1", "sup001")
	require.NoError(t, err)
	assert.Equal(t, 20, got.TotalOrders)
	assert.InDelta(t, 200.0, got.TotalSpent, 0.001)
}
