package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
)

// SQLStore is the DocumentStore backed by postgres or sqlite through sqlx.
// Queries are written with '?' placeholders and rebound for the driver.
type SQLStore struct {
	db  *sqlx.DB
	log zerolog.Logger
	now func() time.Time
}

// NewSQLStore creates a new SQLStore on an open database.
func NewSQLStore(db *sqlx.DB, log zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:  db,
		log: log.With().Str("component", "sql_store").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// productList stores supplier products as a JSON array in a text column.
type productList []string

func (p *productList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported products column type %T", src)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode products: %w", err)
	}
	*p = out
	return nil
}

func (p productList) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type supplierRow struct {
	ID                  string          `db:"id"`
	BusinessName        string          `db:"business_name"`
	ContactName         string          `db:"contact_name"`
	Category            string          `db:"category"`
	Description         string          `db:"description"`
	Phone               string          `db:"phone"`
	Email               string          `db:"email"`
	City                string          `db:"city"`
	Address             string          `db:"address"`
	Rating              float64         `db:"rating"`
	ReviewCount         int             `db:"review_count"`
	IsVerified          bool            `db:"is_verified"`
	Products            productList     `db:"products"`
	MinOrder            float64         `db:"min_order"`
	MaxDeliveryDistance float64         `db:"max_delivery_distance"`
	DeliveryTime        string          `db:"delivery_time"`
	PaymentTerms        string          `db:"payment_terms"`
	Latitude            sql.NullFloat64 `db:"latitude"`
	Longitude           sql.NullFloat64 `db:"longitude"`
	CreatedAt           time.Time       `db:"created_at"`
}

const supplierColumns = `id, business_name, contact_name, category, description, phone, email,
	city, address, rating, review_count, is_verified, products, min_order,
	max_delivery_distance, delivery_time, payment_terms, latitude, longitude, created_at`

func (r *supplierRow) toSupplier() (market.Supplier, error) {
	s := market.Supplier{
		ID:                  r.ID,
		BusinessName:        r.BusinessName,
		ContactName:         r.ContactName,
		Category:            market.Category(r.Category),
		Description:         r.Description,
		Phone:               r.Phone,
		Email:               r.Email,
		City:                r.City,
		Address:             r.Address,
		Rating:              r.Rating,
		ReviewCount:         r.ReviewCount,
		IsVerified:          r.IsVerified,
		Products:            []string(r.Products),
		MinOrder:            r.MinOrder,
		MaxDeliveryDistance: r.MaxDeliveryDistance,
		DeliveryTime:        r.DeliveryTime,
		PaymentTerms:        r.PaymentTerms,
		CreatedAt:           r.CreatedAt,
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		s.Location = &market.GeoPoint{Lat: r.Latitude.Float64, Lng: r.Longitude.Float64}
	}
	if err := s.Validate(); err != nil {
		return market.Supplier{}, errs.Wrap(errs.KindValidation, "invalid supplier record", err)
	}
	return s, nil
}

func newSupplierRow(s *market.Supplier) supplierRow {
	r := supplierRow{
		ID:                  s.ID,
		BusinessName:        s.BusinessName,
		ContactName:         s.ContactName,
		Category:            string(s.Category),
		Description:         s.Description,
		Phone:               s.Phone,
		Email:               s.Email,
		City:                s.City,
		Address:             s.Address,
		Rating:              s.Rating,
		ReviewCount:         s.ReviewCount,
		IsVerified:          s.IsVerified,
		Products:            productList(s.Products),
		MinOrder:            s.MinOrder,
		MaxDeliveryDistance: s.MaxDeliveryDistance,
		DeliveryTime:        s.DeliveryTime,
		PaymentTerms:        s.PaymentTerms,
		CreatedAt:           s.CreatedAt,
	}
	if s.Location != nil {
		r.Latitude = sql.NullFloat64{Float64: s.Location.Lat, Valid: true}
		r.Longitude = sql.NullFloat64{Float64: s.Location.Lng, Valid: true}
	}
	return r
}

// ListSuppliers returns suppliers ordered by id, narrowed by q.
func (svc *SQLStore) ListSuppliers(ctx context.Context, q *SupplierQuery) ([]market.Supplier, error) {
	var (
		where []string
		args  []any
	)
	if q != nil {
		if q.Category != "" {
			where = append(where, "category = ?")
			args = append(args, q.Category)
		}
		if q.City != "" {
			where = append(where, "city = ?")
			args = append(args, q.City)
		}
		if q.MinRating > 0 {
			where = append(where, "rating >= ?")
			args = append(args, q.MinRating)
		}
	}

	query := "SELECT " + supplierColumns + " FROM suppliers"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	var rows []supplierRow
	if err := svc.db.SelectContext(ctx, &rows, svc.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}

	suppliers := make([]market.Supplier, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toSupplier()
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}

	svc.log.Debug().
		Int("count", len(suppliers)).
		Int("conditions", len(where)).
		Msg("Listed suppliers")

	return suppliers, nil
}

func (svc *SQLStore) GetSupplier(ctx context.Context, id string) (*market.Supplier, error) {
	var row supplierRow
	query := svc.db.Rebind("SELECT " + supplierColumns + " FROM suppliers WHERE id = ?")
	if err := svc.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("supplier", id)
		}
		return nil, fmt.Errorf("failed to get supplier %s: %w", id, err)
	}

	s, err := row.toSupplier()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PutSupplier inserts or replaces a supplier.
func (svc *SQLStore) PutSupplier(ctx context.Context, s *market.Supplier) error {
	if err := s.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid supplier", err)
	}
	row := newSupplierRow(s)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = svc.now()
	}

	query := `INSERT INTO suppliers (` + supplierColumns + `) VALUES (
		:id, :business_name, :contact_name, :category, :description, :phone, :email,
		:city, :address, :rating, :review_count, :is_verified, :products, :min_order,
		:max_delivery_distance, :delivery_time, :payment_terms, :latitude, :longitude, :created_at)
	ON CONFLICT (id) DO UPDATE SET
		business_name = excluded.business_name,
		contact_name = excluded.contact_name,
		category = excluded.category,
		description = excluded.description,
		phone = excluded.phone,
		email = excluded.email,
		city = excluded.city,
		address = excluded.address,
		rating = excluded.rating,
		review_count = excluded.review_count,
		is_verified = excluded.is_verified,
		products = excluded.products,
		min_order = excluded.min_order,
		max_delivery_distance = excluded.max_delivery_distance,
		delivery_time = excluded.delivery_time,
		payment_terms = excluded.payment_terms,
		latitude = excluded.latitude,
		longitude = excluded.longitude`

	if _, err := svc.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to store supplier %s: %w", s.ID, err)
	}

	svc.log.Debug().Str("supplier_id", s.ID).Msg("Stored supplier")
	return nil
}

const profileColumns = `id, name, email, user_type, phone, address, city, business_name, category, description, created_at`

func (svc *SQLStore) GetUserProfile(ctx context.Context, id string) (*market.Profile, error) {
	var p market.Profile
	query := svc.db.Rebind("SELECT " + profileColumns + " FROM profiles WHERE id = ?")
	if err := svc.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("profile", id)
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	if err := p.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid profile record", err)
	}
	return &p, nil
}

func (svc *SQLStore) CreateUserProfile(ctx context.Context, p *market.Profile) error {
	if err := p.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid profile", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = svc.now()
	}

	query := `INSERT INTO profiles (` + profileColumns + `) VALUES (
		:id, :name, :email, :user_type, :phone, :address, :city, :business_name, :category, :description, :created_at)`
	if _, err := svc.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create profile %s: %w", p.ID, err)
	}
	return nil
}

func (svc *SQLStore) UpdateUserProfile(ctx context.Context, p *market.Profile) error {
	if err := p.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid profile", err)
	}

	query := `UPDATE profiles SET name = :name, phone = :phone, address = :address, city = :city,
		business_name = :business_name, category = :category, description = :description
		WHERE id = :id`
	res, err := svc.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", p.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("profile", p.ID)
	}
	return nil
}

func (svc *SQLStore) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	query := svc.db.Rebind("SELECT supplier_id FROM favorites WHERE user_id = ? ORDER BY created_at, supplier_id")
	if err := svc.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list favorites for %s: %w", userID, err)
	}
	return ids, nil
}

// UpdateFavorites adds or removes one favorite. Both operations are idempotent.
func (svc *SQLStore) UpdateFavorites(ctx context.Context, userID string, op FavoriteOp, supplierID string) error {
	var (
		query string
		args  []any
	)
	switch op {
	case FavoriteAdd:
		query = "INSERT INTO favorites (user_id, supplier_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, supplier_id) DO NOTHING"
		args = []any{userID, supplierID, svc.now()}
	case FavoriteRemove:
		query = "DELETE FROM favorites WHERE user_id = ? AND supplier_id = ?"
		args = []any{userID, supplierID}
	default:
		return errs.Validation("op", fmt.Sprintf("unknown favorite operation %q", op))
	}

	if _, err := svc.db.ExecContext(ctx, svc.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to %s favorite %s for %s: %w", op, supplierID, userID, err)
	}

	svc.log.Debug().
		Str("user_id", userID).
		Str("supplier_id", supplierID).
		Str("op", string(op)).
		Msg("Updated favorites")
	return nil
}

const relationshipColumns = `vendor_id, supplier_id, start_date, loyalty_badge, total_orders, total_spent, last_order_date`

func (svc *SQLStore) GetRelationship(ctx context.Context, vendorID, supplierID string) (*market.Relationship, error) {
	var r market.Relationship
	query := svc.db.Rebind("SELECT " + relationshipColumns + " FROM relationships WHERE vendor_id = ? AND supplier_id = ?")
	if err := svc.db.GetContext(ctx, &r, query, vendorID, supplierID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("relationship", vendorID+"_"+supplierID)
		}
		return nil, fmt.Errorf("failed to get relationship %s_%s: %w", vendorID, supplierID, err)
	}
	return &r, nil
}

func (svc *SQLStore) CreateRelationship(ctx context.Context, r *market.Relationship) (bool, error) {
	query := `INSERT INTO relationships (` + relationshipColumns + `) VALUES (
		:vendor_id, :supplier_id, :start_date, :loyalty_badge, :total_orders, :total_spent, :last_order_date)
	ON CONFLICT (vendor_id, supplier_id) DO NOTHING`
	res, err := svc.db.NamedExecContext(ctx, query, r)
	if err != nil {
		return false, fmt.Errorf("failed to create relationship %s_%s: %w", r.VendorID, r.SupplierID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create relationship %s_%s: %w", r.VendorID, r.SupplierID, err)
	}
	return n > 0, nil
}

func (svc *SQLStore) AddOrder(ctx context.Context, vendorID, supplierID string, o Order) (*market.Relationship, error) {
	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin order for %s_%s: %w", vendorID, supplierID, err)
	}
	defer tx.Rollback()

	update := tx.Rebind(`UPDATE relationships SET total_orders = total_orders + 1, total_spent = total_spent + ?,
		last_order_date = ?, loyalty_badge = ?
		WHERE vendor_id = ? AND supplier_id = ?`)
	res, err := tx.ExecContext(ctx, update, o.Amount, o.At, o.LoyaltyBadge, vendorID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to add order to %s_%s: %w", vendorID, supplierID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errs.NotFound("relationship", vendorID+"_"+supplierID)
	}

	var r market.Relationship
	query := tx.Rebind("SELECT " + relationshipColumns + " FROM relationships WHERE vendor_id = ? AND supplier_id = ?")
	if err := tx.GetContext(ctx, &r, query, vendorID, supplierID); err != nil {
		return nil, fmt.Errorf("failed to read relationship %s_%s: %w", vendorID, supplierID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order for %s_%s: %w", vendorID, supplierID, err)
	}
	return &r, nil
}

func (svc *SQLStore) SetLoyaltyBadge(ctx context.Context, vendorID, supplierID, badge string) error {
	query := svc.db.Rebind("UPDATE relationships SET loyalty_badge = ? WHERE vendor_id = ? AND supplier_id = ?")
	res, err := svc.db.ExecContext(ctx, query, badge, vendorID, supplierID)
	if err != nil {
		return fmt.Errorf("failed to set badge of %s_%s: %w", vendorID, supplierID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("relationship", vendorID+"_"+supplierID)
	}
	return nil
}

func (svc *SQLStore) ListRelationships(ctx context.Context, vendorID string) ([]market.Relationship, error) {
	rels := []market.Relationship{}
	query := svc.db.Rebind("SELECT " + relationshipColumns + " FROM relationships WHERE vendor_id = ? ORDER BY start_date, supplier_id")
	if err := svc.db.SelectContext(ctx, &rels, query, vendorID); err != nil {
		return nil, fmt.Errorf("failed to list relationships for %s: %w", vendorID, err)
	}
	return rels, nil
}
