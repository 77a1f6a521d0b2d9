package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendorlink/marketplace/cmd/marketplace/auth"
	"github.com/vendorlink/marketplace/cmd/marketplace/discovery"
	"github.com/vendorlink/marketplace/cmd/marketplace/favorites"
	"github.com/vendorlink/marketplace/cmd/marketplace/loyalty"
	"github.com/vendorlink/marketplace/cmd/marketplace/session"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
	"github.com/vendorlink/marketplace/models/market"
)

type testServer struct {
	*httptest.Server
	sessions *session.Registry
	store    *store.SQLStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := store.Connect(ctx, "sqlite3", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(ctx, db))

	accounts, err := auth.NewAccountRepository("sqlite3", db.DB)
	require.NoError(t, err)
	require.NoError(t, accounts.Migrate())

	docs := store.NewSQLStore(db, zerolog.Nop())
	for i, s := range []market.Supplier{
		{BusinessName: "Fresh Farms Direct", Category: market.CategoryVegetables, City: "Mumbai", Rating: 4.8, IsVerified: true},
		{BusinessName: "Spice Haven", Category: market.CategorySpices, City: "Delhi", Rating: 4.5, IsVerified: true},
		{BusinessName: "Dairy Delight", Category: market.CategoryDairy, City: "Mumbai", Rating: 3.9},
		{BusinessName: "Grain Masters", Category: market.CategoryGrains, City: "Pune", Rating: 4.2},
		{BusinessName: "Fruit Basket", Category: market.CategoryFruits, City: "Mumbai", Rating: 4.6, IsVerified: true},
	} {
		s := s
		s.ID = fmt.Sprintf("sup%03d", i+1)
		require.NoError(t, docs.PutSupplier(ctx, &s))
	}

	pipeline := discovery.NewPipeline()
	registry := session.NewRegistry(auth.NewAuthService(accounts, docs, bcrypt.MinCost, zerolog.Nop()), session.RegistryConfig{}, zerolog.Nop())
	router := NewMarketplaceRouter(
		docs,
		registry,
		favorites.NewFavoritesService(docs, docs, pipeline, zerolog.Nop()),
		loyalty.NewLoyaltyService(docs, zerolog.Nop()),
		pipeline,
		zerolog.Nop(),
	)

	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(func() {
		registry.CloseAll()
		srv.Close()
	})
	return &testServer{Server: srv, sessions: registry, store: docs}
}

// call sends a JSON request and decodes the JSON response into out when
// out is non-nil.
func (ts *testServer) call(t *testing.T, method, path, sessionID string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) newSession(t *testing.T) string {
	t.Helper()
	var created sessionResponse
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/api/v1/sessions", "", nil, &created))
	require.Equal(t, session.StateAnonymous, created.State)
	return created.ID
}

func (ts *testServer) signedIn(t *testing.T, reg auth.Registration) string {
	t.Helper()
	id := ts.newSession(t)
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/api/v1/auth/register", id, reg, nil))
	return id
}

func vendor(email string) auth.Registration {
	return auth.Registration{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            "Ravi Kumar",
		UserType:        market.UserTypeVendor,
		City:            "Mumbai",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])

	var notFound errorBody
	assert.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/v1/nope", "", nil, &notFound))
	assert.Equal(t, "not_found", notFound.Kind)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.call(t, http.MethodPatch, "/api/v1/suppliers", "", nil, nil))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPatch, "/api/v1/suppliers"},
		{http.MethodDelete, "/api/v1/suppliers/sup001"},
		{http.MethodGet, "/api/v1/sessions"},
		{http.MethodPut, "/api/v1/compare"},
		{http.MethodGet, "/api/v1/compare/sup001"},
		{http.MethodDelete, "/api/v1/favorites/suppliers"},
		{http.MethodGet, "/api/v1/auth/login"},
		{http.MethodPost, "/api/v1/loyalty-tiers"},
		{http.MethodPost, "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var e errorBody
			assert.Equal(t, http.StatusMethodNotAllowed, ts.call(t, tt.method, tt.path, "", nil, &e))
			assert.Equal(t, "method_not_allowed", e.Kind)
		})
	}
}

func TestListSuppliers(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
		active  int
		ignored []string
	}{
		{name: "defaults sort by rating", query: "", wantIDs: []string{"sup001", "sup005", "sup002", "sup004", "sup003"}},
		{name: "city", query: "?city=Mumbai", wantIDs: []string{"sup001", "sup005", "sup003"}, active: 1},
		{name: "verified by name", query: "?verifiedOnly=true&sort=name", wantIDs: []string{"sup001", "sup005", "sup002"}, active: 1},
		{name: "search", query: "?search=spice", wantIDs: []string{"sup002"}, active: 1},
		{name: "rating threshold", query: "?rating=4.5", wantIDs: []string{"sup001", "sup005", "sup002"}, active: 1},
		{
			name:    "malformed params are ignored",
			query:   "?rating=high&color=red",
			wantIDs: []string{"sup001", "sup005", "sup002", "sup004", "sup003"},
			ignored: []string{"color", "rating"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list supplierList
			require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/suppliers"+tt.query, "", nil, &list))

			ids := make([]string, 0, len(list.Suppliers))
			for _, s := range list.Suppliers {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), list.Total)
			assert.Equal(t, tt.active, list.ActiveFilters)

			codes := []string{}
			for _, p := range list.Ignored {
				codes = append(codes, p.Code)
			}
			assert.ElementsMatch(t, append([]string{}, tt.ignored...), codes)
		})
	}
}

func TestGetSupplier(t *testing.T) {
	ts := newTestServer(t)

	var s market.Supplier
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/suppliers/sup002", "", nil, &s))
	assert.Equal(t, "Spice Haven", s.BusinessName)

	var e errorBody
	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/v1/suppliers/sup999", "", nil, &e))
	assert.Contains(t, e.Error, "sup999")
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	var e errorBody
	bad := vendor("ravi@example.com")
	bad.ConfirmPassword = "other1"
	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPost, "/api/v1/auth/register", id, bad, &e))
	assert.Equal(t, "confirmPassword", e.Field)

	var registered sessionResponse
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/api/v1/auth/register", id, vendor("ravi@example.com"), &registered))
	assert.Equal(t, session.StateAuthenticated, registered.State)
	require.NotNil(t, registered.Account)

	var me meResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/auth/me", id, nil, &me))
	require.NotNil(t, me.Profile)
	assert.Equal(t, market.UserTypeVendor, me.Profile.UserType)
	assert.Equal(t, registered.Account.ID, me.Profile.ID)

	require.Equal(t, http.StatusNoContent, ts.call(t, http.MethodPost, "/api/v1/auth/logout", id, nil, nil))
	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/api/v1/auth/me", id, nil, nil))

	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPost, "/api/v1/auth/login", id,
		loginRequest{Email: "ravi@example.com", Password: "wrong12"}, nil))

	var loggedIn sessionResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/v1/auth/login", id,
		loginRequest{Email: "ravi@example.com", Password: "secret1"}, &loggedIn))
	assert.Equal(t, registered.Account.ID, loggedIn.Account.ID)

	other := ts.newSession(t)
	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPost, "/api/v1/auth/register", other, vendor("ravi@example.com"), &e))
	assert.Equal(t, "email", e.Field)
}

func TestSessionHeader(t *testing.T) {
	ts := newTestServer(t)

	var e errorBody
	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/api/v1/compare", "", nil, &e))
	assert.Equal(t, "unauthenticated", e.Kind)

	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/v1/compare", "no-such-session", nil, nil))

	id := ts.newSession(t)
	require.Equal(t, http.StatusNoContent, ts.call(t, http.MethodDelete, "/api/v1/sessions/"+id, "", nil, nil))
	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/v1/compare", id, nil, nil))
	assert.Equal(t, 0, ts.sessions.Len())
}

func TestCompare(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	var cmp compareResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/compare", id, nil, &cmp))
	assert.Empty(t, cmp.Suppliers)
	assert.Equal(t, 4, cmp.Max)

	for _, sid := range []string{"sup001", "sup002", "sup002", "sup003", "sup004"} {
		require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/v1/compare/"+sid, id, nil, &cmp))
	}
	assert.Len(t, cmp.Suppliers, 4)
	assert.NotEmpty(t, cmp.Metrics)

	var e errorBody
	require.Equal(t, http.StatusConflict, ts.call(t, http.MethodPost, "/api/v1/compare/sup005", id, nil, &e))
	assert.Equal(t, "capacity_exceeded", e.Kind)

	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodPost, "/api/v1/compare/sup999", id, nil, nil))

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodDelete, "/api/v1/compare/sup002", id, nil, &cmp))
	require.Len(t, cmp.Suppliers, 3)
	assert.Equal(t, []string{"sup001", "sup003", "sup004"},
		[]string{cmp.Suppliers[0].ID, cmp.Suppliers[1].ID, cmp.Suppliers[2].ID})

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodDelete, "/api/v1/compare", id, nil, &cmp))
	assert.Empty(t, cmp.Suppliers)
}

func TestFavorites(t *testing.T) {
	ts := newTestServer(t)

	anonymous := ts.newSession(t)
	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodPost, "/api/v1/favorites/sup001/toggle", anonymous, nil, nil))

	id := ts.signedIn(t, vendor("ravi@example.com"))

	var toggled toggleResponse
	for _, sid := range []string{"sup003", "sup001", "sup002"} {
		require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/v1/favorites/"+sid+"/toggle", id, nil, &toggled))
		assert.True(t, toggled.Favorite)
	}
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/v1/favorites/sup002/toggle", id, nil, &toggled))
	assert.False(t, toggled.Favorite)

	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodPost, "/api/v1/favorites/sup999/toggle", id, nil, nil))

	var check toggleResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/favorites/sup003", id, nil, &check))
	assert.Equal(t, toggleResponse{SupplierID: "sup003", Favorite: true}, check)
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/favorites/sup002", id, nil, &check))
	assert.False(t, check.Favorite)
	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/api/v1/favorites/sup003", anonymous, nil, nil))

	var ids map[string][]string
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/favorites", id, nil, &ids))
	assert.ElementsMatch(t, []string{"sup003", "sup001"}, ids["favorites"])

	var list supplierList
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/favorites/suppliers?sort=name", id, nil, &list))
	require.Len(t, list.Suppliers, 2)
	assert.Equal(t, "Dairy Delight", list.Suppliers[0].BusinessName)
	assert.Equal(t, "Fresh Farms Direct", list.Suppliers[1].BusinessName)
}

func TestProfiles(t *testing.T) {
	ts := newTestServer(t)
	id := ts.signedIn(t, vendor("ravi@example.com"))

	var me meResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/auth/me", id, nil, &me))

	var p market.Profile
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPut, "/api/v1/profile", id,
		map[string]string{"phone": "+91 98765 43210", "city": "Pune"}, &p))
	assert.Equal(t, "Pune", p.City)
	assert.Equal(t, "Ravi Kumar", p.Name)

	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/api/v1/profiles/"+me.Account.ID, "", nil, nil))
	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/api/v1/profiles/"+me.Account.ID, ts.newSession(t), nil, nil))

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/profiles/"+me.Account.ID, id, nil, &p))
	assert.Equal(t, "+91 98765 43210", p.Phone)
	assert.Equal(t, "ravi@example.com", p.Email)

	// Someone else only sees the public fields.
	other := ts.signedIn(t, vendor("asha@example.com"))
	var public map[string]any
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/profiles/"+me.Account.ID, other, nil, &public))
	assert.Equal(t, "Ravi Kumar", public["name"])
	assert.Equal(t, "Pune", public["city"])
	assert.NotContains(t, public, "email")
	assert.NotContains(t, public, "phone")
	assert.NotContains(t, public, "address")

	var e errorBody
	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPut, "/api/v1/profile", id,
		map[string]string{"businessName": "Ravi Traders"}, &e))
	assert.Equal(t, "userType", e.Field)

	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPut, "/api/v1/profile", id,
		map[string]string{"email": "other@example.com"}, nil), "unknown fields are rejected")

	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/v1/profiles/nobody", id, nil, nil))
}

func TestSupplierProfileUpdate(t *testing.T) {
	ts := newTestServer(t)
	reg := vendor("meena@example.com")
	reg.UserType = market.UserTypeSupplier
	reg.BusinessName = "Meena Masala"
	reg.Category = market.CategorySpices
	id := ts.signedIn(t, reg)

	var e errorBody
	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPut, "/api/v1/profile", id,
		map[string]string{"category": "Furniture"}, &e))
	assert.Equal(t, "category", e.Field)

	var p market.Profile
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPut, "/api/v1/profile", id,
		map[string]string{"description": "Stone-ground spices"}, &p))
	require.NotNil(t, p.Description)
	assert.Equal(t, "Stone-ground spices", *p.Description)
	require.NotNil(t, p.BusinessName)
	assert.Equal(t, "Meena Masala", *p.BusinessName)
}

func TestLoyalty(t *testing.T) {
	ts := newTestServer(t)
	id := ts.signedIn(t, vendor("ravi@example.com"))

	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodGet, "/api/v1/loyalty/sup001", id, nil, nil))
	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodPost, "/api/v1/loyalty/sup999", id, nil, nil))

	var status loyalty.Status
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/v1/loyalty/sup001/orders", id,
		orderRequest{Amount: 2500}, &status))
	assert.Equal(t, 1, status.TotalOrders)
	assert.Equal(t, 2500.0, status.TotalSpent)
	assert.Equal(t, string(loyalty.Newcomer), status.LoyaltyBadge)

	require.Equal(t, http.StatusBadRequest, ts.call(t, http.MethodPost, "/api/v1/loyalty/sup001/orders", id,
		orderRequest{Amount: -5}, nil))

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/api/v1/loyalty/sup002", id, nil, &status))
	assert.Equal(t, 0, status.TotalOrders)

	var list map[string][]loyalty.Status
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/loyalty", id, nil, &list))
	assert.Len(t, list["relationships"], 2)

	anonymous := ts.newSession(t)
	require.Equal(t, http.StatusUnauthorized, ts.call(t, http.MethodGet, "/api/v1/loyalty", anonymous, nil, nil))
}

func TestReferenceData(t *testing.T) {
	ts := newTestServer(t)

	var categories map[string][]market.Category
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/categories", "", nil, &categories))
	assert.Equal(t, market.Categories, categories["categories"])

	var cities map[string][]market.City
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/cities", "", nil, &cities))
	assert.Len(t, cities["cities"], len(market.Cities))

	var tiers map[string][]loyalty.Tier
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/api/v1/loyalty-tiers", "", nil, &tiers))
	assert.Equal(t, loyalty.Tiers, tiers["tiers"])
}

func TestSessionEvents(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/api/v1/auth/register", id, vendor("ravi@example.com"), nil))

	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok && strings.Contains(data, `"authenticated"`) {
			var ev session.Event
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			require.NotNil(t, ev.Account)
			break
		}
	}
	assert.Equal(t, []string{"authenticating", "authenticated"}, names)
}
