package auth

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	// Dialects register the gorm flavours of the supported drivers.
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
)

// ErrEmailTaken is returned when an account with the same email exists.
var ErrEmailTaken = errs.Validation("email", "an account with this email already exists")

// pqUniqueViolation is the postgres SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// AccountRepository stores credential records with gorm on the database
// shared with the document store.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository wraps an open connection. driver is "postgres" or
// "sqlite3".
func NewAccountRepository(driver string, conn *sql.DB) (*AccountRepository, error) {
	db, err := gorm.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open account repository: %w", err)
	}
	db.LogMode(false)
	return &AccountRepository{db: db}, nil
}

// Migrate creates or updates the accounts table.
func (r *AccountRepository) Migrate() error {
	if err := r.db.AutoMigrate(&market.Account{}).Error; err != nil {
		return fmt.Errorf("failed to migrate accounts: %w", err)
	}
	return nil
}

// FindByEmail returns the account for email, or nil when there is none.
func (r *AccountRepository) FindByEmail(email string) (*market.Account, error) {
	var acct market.Account
	err := r.db.Where("email = ?", email).First(&acct).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	return &acct, nil
}

func (r *AccountRepository) FindByID(id string) (*market.Account, error) {
	var acct market.Account
	err := r.db.Where("id = ?", id).First(&acct).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", id, err)
	}
	return &acct, nil
}

// Create inserts acct. The unique email index settles concurrent
// registrations: the loser gets ErrEmailTaken.
func (r *AccountRepository) Create(acct *market.Account) error {
	if err := r.db.Create(acct).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == pqUniqueViolation
	}
	return false
}

func (r *AccountRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&market.Account{}).Error; err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	return nil
}
