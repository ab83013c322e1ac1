package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studentfees/internal/domain"
	"studentfees/internal/repository"
)

// AccountService manages student fee accounts.
type AccountService struct {
	store repository.Store
}

// NewAccountService creates a new AccountService. store may be nil.
func NewAccountService(store repository.Store) *AccountService {
	return &AccountService{store: store}
}

// CreateAccountRequest contains the parameters for opening a fee account.
type CreateAccountRequest struct {
	ID            string
	StudentName   string
	GuardianEmail string
	Balance       int64
}

// CreateAccount opens a fee account with the given outstanding balance.
// An ID is generated when none is supplied.
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	if s.store == nil {
		return nil, ErrPersistenceUnavailable
	}
	if strings.TrimSpace(req.StudentName) == "" {
		return nil, fmt.Errorf("%w: studentName is required", ErrMissingField)
	}
	if req.Balance < 0 {
		return nil, fmt.Errorf("%w: balance must not be negative", ErrInvalidAmount)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now()
	account := &domain.Account{
		ID:            id,
		StudentName:   strings.TrimSpace(req.StudentName),
		GuardianEmail: strings.TrimSpace(req.GuardianEmail),
		Balance:       req.Balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Accounts().Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}

	return account, nil
}

// GetAccount returns the account with the given ID.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidAccountID
	}
	if s.store == nil {
		return nil, ErrPersistenceUnavailable
	}

	account, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}

	return account, nil
}
