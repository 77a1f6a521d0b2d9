package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
	"github.com/vendorlink/marketplace/models/market"
)

// ErrInvalidCredentials is returned by Login for an unknown email and for a
// wrong password alike.
var ErrInvalidCredentials = errs.Validation("credentials", "invalid email or password")

type AuthService struct {
	accounts *AccountRepository
	store    store.DocumentStore
	cost     int
	log      zerolog.Logger
}

func NewAuthService(accounts *AccountRepository, documents store.DocumentStore, cost int, log zerolog.Logger) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		accounts: accounts,
		store:    documents,
		cost:     cost,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

// Register creates the account, then the user profile and, for suppliers,
// an initial listing. Validation happens before anything is written.
func (svc *AuthService) Register(ctx context.Context, reg Registration) (*market.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	email := normalizeEmail(reg.Email)

	existing, err := svc.accounts.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), svc.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct := &market.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  reg.Name,
	}
	if err := svc.accounts.Create(acct); err != nil {
		return nil, err
	}

	if err := svc.createDocuments(ctx, &reg, acct.ID); err != nil {
		if delErr := svc.accounts.Delete(acct.ID); delErr != nil {
			svc.log.Error().Err(delErr).Str("account_id", acct.ID).Msg("Failed to roll back account")
		}
		return nil, err
	}

	svc.log.Info().
		Str("account_id", acct.ID).
		Str("user_type", string(reg.UserType)).
		Msg("Registered account")
	return acct, nil
}

func (svc *AuthService) createDocuments(ctx context.Context, reg *Registration, id string) error {
	if err := svc.store.CreateUserProfile(ctx, reg.profile(id)); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	if reg.UserType == market.UserTypeSupplier {
		if err := svc.store.PutSupplier(ctx, reg.supplier(id)); err != nil {
			return fmt.Errorf("failed to create supplier listing: %w", err)
		}
	}
	return nil
}

func (svc *AuthService) Login(ctx context.Context, email, password string) (*market.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalizeEmail(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	acct, err := svc.accounts.FindByEmail(normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if acct == nil {
		svc.log.Debug().Msg("Login for unknown email")
		return nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		svc.log.Debug().Str("account_id", acct.ID).Msg("Login with wrong password")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	svc.log.Info().Str("account_id", acct.ID).Msg("Signed in")
	return acct, nil
}

// Logout only records the sign-out; there are no tokens to revoke.
func (svc *AuthService) Logout(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	svc.log.Info().Str("account_id", accountID).Msg("Signed out")
	return nil
}

// Account returns the account with the given id.
func (svc *AuthService) Account(_ context.Context, id string) (*market.Account, error) {
	acct, err := svc.accounts.FindByID(id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errs.NotFound("account", id)
	}
	return acct, nil
}
