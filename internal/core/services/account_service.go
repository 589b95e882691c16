package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// accountService implements the AccountSvcFacade interface
type accountService struct {
	BaseService
	txManager   portsrepo.TransactionManager
	accountRepo portsrepo.AccountRepositoryFacade
	now         func() time.Time
}

// AccountServiceOption is a functional option for configuring the account service
type AccountServiceOption func(*accountService)

// WithAccountClock overrides the time source used for audit fields.
func WithAccountClock(now func() time.Time) AccountServiceOption {
	return func(s *accountService) {
		s.now = now
	}
}

// NewAccountService creates a new account service with the provided options
func NewAccountService(txManager portsrepo.TransactionManager, repo portsrepo.AccountRepositoryFacade, options ...AccountServiceOption) portssvc.AccountSvcFacade {
	svc := &accountService{
		txManager:   txManager,
		accountRepo: repo,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.AccountSvcFacade = (*accountService)(nil)

func actorOrSystem(actor string) string {
	if actor == "" {
		return domain.SystemActor
	}
	return actor
}

func (s *accountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*domain.Account, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if existing, err := s.accountRepo.FindAccountByCode(ctx, req.Code); err == nil {
		return nil, apperrors.NewConflictError("account code %s already used by %s", req.Code, existing.AccountID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to check account code", slog.String("code", req.Code))
		return nil, err
	}

	var parentID *string
	if req.ParentAccountID != nil && *req.ParentAccountID != "" {
		parent, err := s.accountRepo.FindAccountByID(ctx, *req.ParentAccountID)
		if err != nil {
			return nil, fmt.Errorf("invalid parent account: %w", err)
		}
		if parent.AccountType != req.AccountType {
			return nil, apperrors.NewValidationError("parent account %s is %s, child is %s", parent.AccountID, parent.AccountType, req.AccountType)
		}
		parentID = &parent.AccountID
	}

	now := s.now()
	actor := actorOrSystem(req.Actor)
	account := domain.Account{
		AccountID:       uuid.NewString(),
		Code:            req.Code,
		Name:            req.Name,
		AccountType:     req.AccountType,
		Subtype:         req.Subtype,
		ParentAccountID: parentID,
		Description:     req.Description,
		IsActive:        true,
		Balance:         decimal.Zero,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor,
			LastUpdatedAt: now,
			LastUpdatedBy: actor,
		},
	}

	if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, apperrors.NewConflictError("account code %s already exists", req.Code)
		}
		s.LogError(ctx, err, "Failed to save account", slog.String("code", req.Code))
		return nil, err
	}

	s.LogInfo(ctx, "Account created",
		slog.String("account_id", account.AccountID),
		slog.String("code", account.Code))
	return &account, nil
}

func (s *accountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find account by ID", slog.String("account_id", accountID))
		}
		return nil, err
	}
	return account, nil
}

func (s *accountService) GetAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	return s.accountRepo.FindAccountByCode(ctx, code)
}

func (s *accountService) GetAccountByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	unique := make([]string, 0, len(accountIDs))
	seen := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	accounts, err := s.accountRepo.FindAccountsByIDs(ctx, unique)
	if err != nil {
		s.LogError(ctx, err, "Failed to find accounts by IDs", slog.Int("count", len(unique)))
		return nil, err
	}

	var missing []string
	for _, id := range unique {
		if _, ok := accounts[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewNotFoundError("accounts", strings.Join(missing, ", "))
	}
	return accounts, nil
}

func (s *accountService) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list accounts")
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if accounts == nil {
		return []domain.Account{}, nil
	}
	return accounts, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest) (*domain.Account, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Subtype != nil {
		account.Subtype = *req.Subtype
	}
	if req.Description != nil {
		account.Description = *req.Description
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	switch {
	case req.ClearParent:
		account.ParentAccountID = nil
	case req.ParentAccountID != nil:
		if err := s.checkParent(ctx, account, *req.ParentAccountID); err != nil {
			return nil, err
		}
		parentID := *req.ParentAccountID
		account.ParentAccountID = &parentID
	}

	account.LastUpdatedAt = s.now()
	account.LastUpdatedBy = actorOrSystem(req.Actor)

	if err := s.accountRepo.UpdateAccount(ctx, *account); err != nil {
		s.LogError(ctx, err, "Failed to update account", slog.String("account_id", accountID))
		return nil, err
	}
	return account, nil
}

// checkParent rejects self-parenting, cross-type parents and cycles.
func (s *accountService) checkParent(ctx context.Context, account *domain.Account, parentID string) error {
	if parentID == account.AccountID {
		return apperrors.NewConflictError("account %s cannot be its own parent", account.AccountID)
	}
	parent, err := s.accountRepo.FindAccountByID(ctx, parentID)
	if err != nil {
		return fmt.Errorf("invalid parent account: %w", err)
	}
	if parent.AccountType != account.AccountType {
		return apperrors.NewValidationError("parent account %s is %s, child is %s", parent.AccountID, parent.AccountType, account.AccountType)
	}

	visited := map[string]struct{}{parent.AccountID: {}}
	for cur := parent; cur.ParentAccountID != nil; {
		next := *cur.ParentAccountID
		if next == account.AccountID {
			return apperrors.NewConflictError("re-parenting %s under %s would create a cycle", account.AccountID, parentID)
		}
		if _, ok := visited[next]; ok {
			break
		}
		visited[next] = struct{}{}
		cur, err = s.accountRepo.FindAccountByID(ctx, next)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *accountService) DeactivateAccount(ctx context.Context, accountID string, actor string) error {
	inactive := false
	_, err := s.UpdateAccount(ctx, accountID, dto.UpdateAccountRequest{IsActive: &inactive, Actor: actor})
	return err
}

// DeleteAccount locks the account before checking for children and postings, so a posting
// or a new child cannot slip in between the checks and the delete.
func (s *accountService) DeleteAccount(ctx context.Context, accountID string) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.accountRepo.LockAccounts(txCtx, []string{accountID})
		if err != nil {
			return err
		}
		if _, ok := locked[accountID]; !ok {
			return apperrors.NewNotFoundError("account", accountID)
		}

		hasChildren, err := s.accountRepo.HasChildren(txCtx, accountID)
		if err != nil {
			return err
		}
		if hasChildren {
			return apperrors.NewConflictError("account %s has child accounts", accountID)
		}

		hasPostings, err := s.accountRepo.HasPostings(txCtx, accountID)
		if err != nil {
			return err
		}
		if hasPostings {
			return apperrors.NewConflictError("account %s has journal lines", accountID)
		}

		return s.accountRepo.DeleteAccount(txCtx, accountID)
	})
	if err != nil {
		if !apperrors.IsDomainError(err) {
			s.LogError(ctx, err, "Failed to delete account", slog.String("account_id", accountID))
		}
		return apperrors.AsTransient(err)
	}
	s.LogInfo(ctx, "Account deleted", slog.String("account_id", accountID))
	return nil
}
