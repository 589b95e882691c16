package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/core/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockAccountRepository is a mock type for the AccountRepositoryFacade interface
type MockAccountRepository struct {
	mock.Mock
}

var _ portsrepo.AccountRepositoryFacade = (*MockAccountRepository)(nil)

func (m *MockAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) HasChildren(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) HasPostings(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockAccountRepository) LockAccounts(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) ApplyBalanceChanges(ctx context.Context, changes map[string]decimal.Decimal, actor string, at time.Time) error {
	args := m.Called(ctx, changes, actor, at)
	return args.Error(0)
}

// passthroughTx runs units of work directly on the caller's context.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Test Suite Setup ---

type AccountServiceTestSuite struct {
	suite.Suite
	mockRepo *MockAccountRepository
	service  portssvc.AccountSvcFacade
	now      time.Time
}

func (suite *AccountServiceTestSuite) SetupTest() {
	suite.mockRepo = new(MockAccountRepository)
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	suite.service = services.NewAccountService(passthroughTx{}, suite.mockRepo, services.WithAccountClock(func() time.Time { return suite.now }))
}

func strPtr(s string) *string { return &s }

// --- Test Cases ---

func (suite *AccountServiceTestSuite) TestCreateAccount_Success() {
	ctx := context.Background()
	req := dto.CreateAccountRequest{
		Code:        "1000",
		Name:        "Cash on hand",
		AccountType: domain.Asset,
		Subtype:     domain.SubtypeCash,
		Actor:       "alice",
	}

	suite.mockRepo.On("FindAccountByCode", ctx, "1000").Return(nil, apperrors.NewNotFoundError("account", "1000")).Once()
	suite.mockRepo.On("SaveAccount", ctx, mock.AnythingOfType("domain.Account")).Return(nil).Once()

	created, err := suite.service.CreateAccount(ctx, req)

	suite.Require().NoError(err)
	suite.Require().NotNil(created)
	suite.NotEmpty(created.AccountID)
	suite.Equal("1000", created.Code)
	suite.Equal(domain.Asset, created.AccountType)
	suite.True(created.IsActive)
	suite.True(created.Balance.IsZero())
	suite.Equal("alice", created.CreatedBy)
	suite.Equal(suite.now, created.CreatedAt)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *AccountServiceTestSuite) TestCreateAccount_DuplicateCode() {
	ctx := context.Background()
	suite.mockRepo.On("FindAccountByCode", ctx, "1000").Return(&domain.Account{AccountID: "acc-1", Code: "1000"}, nil).Once()

	_, err := suite.service.CreateAccount(ctx, dto.CreateAccountRequest{
		Code: "1000", Name: "Cash", AccountType: domain.Asset, Subtype: domain.SubtypeCash,
	})

	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.mockRepo.AssertNotCalled(suite.T(), "SaveAccount", mock.Anything, mock.Anything)
}

func (suite *AccountServiceTestSuite) TestCreateAccount_ValidationError() {
	_, err := suite.service.CreateAccount(context.Background(), dto.CreateAccountRequest{
		Code: "1000", Name: "Cash", AccountType: domain.AccountType("INCOME"), Subtype: domain.SubtypeCash,
	})
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *AccountServiceTestSuite) TestCreateAccount_ParentOfOtherType() {
	ctx := context.Background()
	suite.mockRepo.On("FindAccountByCode", ctx, "1100").Return(nil, apperrors.ErrNotFound).Once()
	suite.mockRepo.On("FindAccountByID", ctx, "liab-1").Return(&domain.Account{AccountID: "liab-1", AccountType: domain.Liability}, nil).Once()

	_, err := suite.service.CreateAccount(ctx, dto.CreateAccountRequest{
		Code: "1100", Name: "Bank", AccountType: domain.Asset, Subtype: domain.SubtypeBank, ParentAccountID: strPtr("liab-1"),
	})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestCreateAccount_SaveError() {
	ctx := context.Background()
	dbErr := errors.New("connection refused")
	suite.mockRepo.On("FindAccountByCode", ctx, "2000").Return(nil, apperrors.ErrNotFound).Once()
	suite.mockRepo.On("SaveAccount", ctx, mock.AnythingOfType("domain.Account")).Return(dbErr).Once()

	_, err := suite.service.CreateAccount(ctx, dto.CreateAccountRequest{
		Code: "2000", Name: "Payables", AccountType: domain.Liability, Subtype: domain.SubtypeAccountsPayable,
	})
	suite.ErrorIs(err, dbErr)
}

func (suite *AccountServiceTestSuite) TestGetAccountByIDs_ReportsMissing() {
	ctx := context.Background()
	found := map[string]domain.Account{"a": {AccountID: "a"}}
	suite.mockRepo.On("FindAccountsByIDs", ctx, []string{"a", "b"}).Return(found, nil).Once()

	_, err := suite.service.GetAccountByIDs(ctx, []string{"a", "b", "a"})

	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.Contains(err.Error(), "b")
}

func (suite *AccountServiceTestSuite) TestUpdateAccount_SelfParent() {
	ctx := context.Background()
	suite.mockRepo.On("FindAccountByID", ctx, "a").Return(&domain.Account{AccountID: "a", AccountType: domain.Asset}, nil).Once()

	_, err := suite.service.UpdateAccount(ctx, "a", dto.UpdateAccountRequest{ParentAccountID: strPtr("a")})
	suite.ErrorIs(err, apperrors.ErrConflict)
}

func (suite *AccountServiceTestSuite) TestUpdateAccount_Cycle() {
	ctx := context.Background()
	// c -> b -> a; making a a child of c closes the loop.
	suite.mockRepo.On("FindAccountByID", ctx, "a").Return(&domain.Account{AccountID: "a", AccountType: domain.Asset}, nil).Once()
	suite.mockRepo.On("FindAccountByID", ctx, "c").Return(&domain.Account{AccountID: "c", AccountType: domain.Asset, ParentAccountID: strPtr("b")}, nil).Once()
	suite.mockRepo.On("FindAccountByID", ctx, "b").Return(&domain.Account{AccountID: "b", AccountType: domain.Asset, ParentAccountID: strPtr("a")}, nil).Once()

	_, err := suite.service.UpdateAccount(ctx, "a", dto.UpdateAccountRequest{ParentAccountID: strPtr("c")})
	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.mockRepo.AssertNotCalled(suite.T(), "UpdateAccount", mock.Anything, mock.Anything)
}

func (suite *AccountServiceTestSuite) TestDeactivateAccount() {
	ctx := context.Background()
	suite.mockRepo.On("FindAccountByID", ctx, "a").Return(&domain.Account{AccountID: "a", AccountType: domain.Asset, IsActive: true}, nil).Once()
	suite.mockRepo.On("UpdateAccount", ctx, mock.MatchedBy(func(acc domain.Account) bool {
		return acc.AccountID == "a" && !acc.IsActive && acc.LastUpdatedBy == "bob"
	})).Return(nil).Once()

	suite.NoError(suite.service.DeactivateAccount(ctx, "a", "bob"))
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *AccountServiceTestSuite) lockAccount(ctx context.Context, id string) {
	suite.mockRepo.On("LockAccounts", ctx, []string{id}).Return(map[string]domain.Account{id: {AccountID: id}}, nil).Once()
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_WithPostings() {
	ctx := context.Background()
	suite.lockAccount(ctx, "a")
	suite.mockRepo.On("HasChildren", ctx, "a").Return(false, nil).Once()
	suite.mockRepo.On("HasPostings", ctx, "a").Return(true, nil).Once()

	err := suite.service.DeleteAccount(ctx, "a")
	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.mockRepo.AssertNotCalled(suite.T(), "DeleteAccount", mock.Anything, mock.Anything)
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_WithChildren() {
	ctx := context.Background()
	suite.lockAccount(ctx, "a")
	suite.mockRepo.On("HasChildren", ctx, "a").Return(true, nil).Once()

	suite.ErrorIs(suite.service.DeleteAccount(ctx, "a"), apperrors.ErrConflict)
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_NotFound() {
	ctx := context.Background()
	suite.mockRepo.On("LockAccounts", ctx, []string{"a"}).Return(map[string]domain.Account{}, nil).Once()

	suite.ErrorIs(suite.service.DeleteAccount(ctx, "a"), apperrors.ErrNotFound)
	suite.mockRepo.AssertNotCalled(suite.T(), "HasPostings", mock.Anything, mock.Anything)
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_Success() {
	ctx := context.Background()
	suite.lockAccount(ctx, "a")
	suite.mockRepo.On("HasChildren", ctx, "a").Return(false, nil).Once()
	suite.mockRepo.On("HasPostings", ctx, "a").Return(false, nil).Once()
	suite.mockRepo.On("DeleteAccount", ctx, "a").Return(nil).Once()

	suite.NoError(suite.service.DeleteAccount(ctx, "a"))
	suite.mockRepo.AssertExpectations(suite.T())
}

// --- Run Test Suite ---

func TestAccountServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AccountServiceTestSuite))
}
