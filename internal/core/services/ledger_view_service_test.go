package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/mma_ledger/internal/apperrors"
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/SscSPs/mma_ledger/internal/core/services"
	"github.com/SscSPs/mma_ledger/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock TransactionRowReader ---
type MockTransactionRowReader struct {
	mock.Mock
}

func (m *MockTransactionRowReader) ListTransactionRows(ctx context.Context, userID string, filter domain.TransactionRowFilter) ([]domain.TransactionRow, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransactionRow), args.Error(1)
}

// --- Mock RateSource ---
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) GetRateOnDate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to, date)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// --- Test Suite ---
type LedgerViewServiceTestSuite struct {
	suite.Suite
	rowRepo     *MockTransactionRowReader
	rateSource  *MockRateSource
	currencySvc *MockCurrencyService
	service     *services.LedgerViewService
	ctx         context.Context
	userID      string
}

func (suite *LedgerViewServiceTestSuite) SetupTest() {
	suite.rowRepo = new(MockTransactionRowReader)
	suite.rateSource = new(MockRateSource)
	suite.currencySvc = new(MockCurrencyService)
	suite.ctx = context.Background()
	suite.userID = "user-1"
	suite.service = services.NewLedgerViewService(suite.rowRepo, suite.rateSource, suite.currencySvc, services.LedgerViewOptions{
		MaxOpenViews: 2,
		FetchTimeout: time.Second,
	})
}

func (suite *LedgerViewServiceTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = suite.service.Shutdown(ctx)
}

func sampleRows() []domain.TransactionRow {
	return []domain.TransactionRow{
		{
			TransactionID: "t1", AccountID: "acc-1", LocalCurrency: "USD", Date: "2024-01-01",
			AmountLocal: decimal.NewFromInt(10), CashflowLocal: decimal.NewFromInt(10), TransactionType: domain.Debit,
			EmbeddedRates: domain.EmbeddedRates{"USD-VND": "24500"},
		},
		{
			TransactionID: "t2", AccountID: "acc-1", LocalCurrency: "USD", Date: "2024-01-01",
			AmountLocal: decimal.NewFromInt(2), CashflowLocal: decimal.NewFromInt(-2), TransactionType: domain.Credit,
		},
		{
			TransactionID: "t3", AccountID: "acc-2", LocalCurrency: "VND", Date: "2024-01-02",
			AmountLocal: decimal.NewFromInt(1000), CashflowLocal: decimal.NewFromInt(1000), TransactionType: domain.Debit,
		},
	}
}

func (suite *LedgerViewServiceTestSuite) defaultFilter() domain.TransactionRowFilter {
	return domain.TransactionRowFilter{Limit: dto.DefaultRowsLimit}
}

// --- Test Cases ---

func (suite *LedgerViewServiceTestSuite) TestOpenView_Success() {
	view, err := suite.service.OpenView(suite.ctx, suite.userID)

	suite.Require().NoError(err)
	suite.NotEmpty(view.ViewID)
	suite.Equal(suite.userID, view.UserID)
	suite.Zero(view.Revision)
	suite.Equal(1, suite.service.OpenViews())
}

func (suite *LedgerViewServiceTestSuite) TestOpenView_LimitReached() {
	_, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	_, err = suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	view, err := suite.service.OpenView(suite.ctx, suite.userID)

	suite.Nil(view)
	suite.ErrorIs(err, apperrors.ErrLimitReached)
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_UnknownView() {
	page, err := suite.service.RenderRows(suite.ctx, "missing", suite.userID, dto.RenderRowsParams{TargetCurrency: "VND"})

	suite.Nil(page)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_OtherUsersView() {
	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	page, err := suite.service.RenderRows(suite.ctx, view.ViewID, "intruder", dto.RenderRowsParams{TargetCurrency: "VND"})

	suite.Nil(page)
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_ResolvesAndBackfills() {
	gate := make(chan time.Time)
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	suite.rowRepo.On("ListTransactionRows", suite.ctx, suite.userID, suite.defaultFilter()).Return(sampleRows(), nil)
	suite.currencySvc.On("GetCurrencyByCode", suite.ctx, "VND").Return(&domain.Currency{CurrencyCode: "VND", Precision: 0}, nil)
	suite.rateSource.On("GetRateOnDate", mock.Anything, "USD", "VND", jan1).
		Return(decimal.NewFromInt(25000), nil).WaitUntil(gate).Once()

	page, err := suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "vnd"})

	suite.Require().NoError(err)
	suite.Equal("VND", page.TargetCurrency)
	suite.Equal(1, page.LoadingCount)
	suite.Zero(page.Revision)
	suite.Require().Len(page.Rows, 3)

	embedded := page.Rows[0]
	suite.False(embedded.IsLoading)
	suite.Equal("245000", embedded.DisplayAmount)

	pending := page.Rows[1]
	suite.True(pending.IsLoading)
	suite.True(decimal.NewFromInt(48000).Equal(pending.Amount))
	suite.True(decimal.NewFromInt(-48000).Equal(pending.Cashflow))

	identity := page.Rows[2]
	suite.False(identity.IsLoading)
	suite.Equal("1000", identity.DisplayAmount)

	close(gate)

	var final *domain.LedgerViewPage
	suite.Eventually(func() bool {
		final, err = suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "VND"})
		return err == nil && final.LoadingCount == 0
	}, 2*time.Second, 10*time.Millisecond)

	suite.Equal(uint64(1), final.Revision)
	suite.True(decimal.NewFromInt(50000).Equal(final.Rows[1].Amount))
	suite.True(decimal.NewFromInt(-50000).Equal(final.Rows[1].Cashflow))
	suite.Equal("50000", final.Rows[1].DisplayAmount)
	suite.rateSource.AssertNumberOfCalls(suite.T(), "GetRateOnDate", 1)
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_UnknownCurrencyUsesDefaultPrecision() {
	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	row := sampleRows()[0]
	row.EmbeddedRates = domain.EmbeddedRates{"USD-EUR": "0.915"}
	filter := domain.TransactionRowFilter{AccountID: "acc-1", Limit: 10, Offset: 5}

	suite.rowRepo.On("ListTransactionRows", suite.ctx, suite.userID, filter).Return([]domain.TransactionRow{row}, nil).Once()
	suite.currencySvc.On("GetCurrencyByCode", suite.ctx, "EUR").Return(nil, apperrors.ErrNotFound).Once()

	page, err := suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{
		TargetCurrency: "EUR",
		AccountID:      "acc-1",
		Limit:          10,
		Offset:         5,
	})

	suite.Require().NoError(err)
	suite.Require().Len(page.Rows, 1)
	suite.Equal("9.15", page.Rows[0].DisplayAmount)
	suite.rowRepo.AssertExpectations(suite.T())
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_RepoError() {
	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	repoErr := errors.New("connection reset")
	suite.rowRepo.On("ListTransactionRows", suite.ctx, suite.userID, suite.defaultFilter()).Return(nil, repoErr).Once()

	page, err := suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "VND"})

	suite.Nil(page)
	suite.ErrorIs(err, repoErr)
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_InvalidTarget() {
	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	_, err = suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "VN"})

	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *LedgerViewServiceTestSuite) TestCloseView() {
	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	suite.ErrorIs(suite.service.CloseView(suite.ctx, view.ViewID, "intruder"), apperrors.ErrForbidden)
	suite.Require().NoError(suite.service.CloseView(suite.ctx, view.ViewID, suite.userID))
	suite.Equal(0, suite.service.OpenViews())

	suite.ErrorIs(suite.service.CloseView(suite.ctx, view.ViewID, suite.userID), apperrors.ErrNotFound)
	_, err = suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "VND"})
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *LedgerViewServiceTestSuite) TestShutdown_WaitsForLookups() {
	gate := make(chan time.Time)
	view, err := suite.service.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	suite.rowRepo.On("ListTransactionRows", suite.ctx, suite.userID, suite.defaultFilter()).Return(sampleRows()[1:2], nil)
	suite.currencySvc.On("GetCurrencyByCode", suite.ctx, "VND").Return(&domain.Currency{CurrencyCode: "VND"}, nil)
	suite.rateSource.On("GetRateOnDate", mock.Anything, "USD", "VND", mock.Anything).
		Return(decimal.NewFromInt(25000), nil).WaitUntil(gate).Once()

	_, err = suite.service.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "VND"})
	suite.Require().NoError(err)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	suite.ErrorIs(suite.service.Shutdown(short), context.DeadlineExceeded)

	close(gate)
	suite.NoError(suite.service.Shutdown(context.Background()))

	_, err = suite.service.OpenView(suite.ctx, suite.userID)
	suite.ErrorIs(err, apperrors.ErrLimitReached)
}

func (suite *LedgerViewServiceTestSuite) newServiceWithClock(opts services.LedgerViewOptions, now *time.Time) *services.LedgerViewService {
	opts.Now = func() time.Time { return *now }
	svc := services.NewLedgerViewService(suite.rowRepo, suite.rateSource, suite.currencySvc, opts)
	suite.T().Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func (suite *LedgerViewServiceTestSuite) TestOpenView_PerUserLimitLeavesRoomForOthers() {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := suite.newServiceWithClock(services.LedgerViewOptions{MaxOpenViews: 3, MaxViewsPerUser: 2}, &now)

	for i := 0; i < 2; i++ {
		_, err := svc.OpenView(suite.ctx, "user-a")
		suite.Require().NoError(err)
	}
	_, err := svc.OpenView(suite.ctx, "user-a")
	suite.ErrorIs(err, apperrors.ErrLimitReached)

	view, err := svc.OpenView(suite.ctx, "user-b")
	suite.Require().NoError(err)
	suite.Equal("user-b", view.UserID)
	suite.Equal(3, svc.OpenViews())
}

func (suite *LedgerViewServiceTestSuite) TestOpenView_ExpiresAbandonedViews() {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := suite.newServiceWithClock(services.LedgerViewOptions{MaxOpenViews: 3, IdleTimeout: 10 * time.Minute}, &now)

	var abandoned []string
	for i := 0; i < 3; i++ {
		view, err := svc.OpenView(suite.ctx, "user-a")
		suite.Require().NoError(err)
		abandoned = append(abandoned, view.ViewID)
	}
	_, err := svc.OpenView(suite.ctx, "user-b")
	suite.Require().ErrorIs(err, apperrors.ErrLimitReached)

	now = now.Add(11 * time.Minute)

	_, err = svc.OpenView(suite.ctx, "user-b")
	suite.Require().NoError(err)
	suite.Equal(1, svc.OpenViews())

	_, err = svc.RenderRows(suite.ctx, abandoned[0], "user-a", dto.RenderRowsParams{TargetCurrency: "VND"})
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *LedgerViewServiceTestSuite) TestRenderRows_KeepsViewAlive() {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := suite.newServiceWithClock(services.LedgerViewOptions{MaxOpenViews: 5, IdleTimeout: 10 * time.Minute}, &now)

	suite.rowRepo.On("ListTransactionRows", suite.ctx, suite.userID, suite.defaultFilter()).Return([]domain.TransactionRow{}, nil)
	suite.currencySvc.On("GetCurrencyByCode", suite.ctx, "VND").Return(&domain.Currency{CurrencyCode: "VND"}, nil)

	view, err := svc.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	now = now.Add(8 * time.Minute)
	_, err = svc.RenderRows(suite.ctx, view.ViewID, suite.userID, dto.RenderRowsParams{TargetCurrency: "VND"})
	suite.Require().NoError(err)

	now = now.Add(8 * time.Minute)
	suite.Zero(svc.ExpireIdleViews(suite.ctx))
	suite.Equal(1, svc.OpenViews())

	now = now.Add(3 * time.Minute)
	suite.Equal(1, svc.ExpireIdleViews(suite.ctx))
	suite.Zero(svc.OpenViews())
}

func (suite *LedgerViewServiceTestSuite) TestRunIdleSweeper_ClosesIdleViews() {
	var mu sync.Mutex
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := services.NewLedgerViewService(suite.rowRepo, suite.rateSource, suite.currencySvc, services.LedgerViewOptions{
		MaxOpenViews: 5,
		IdleTimeout:  time.Minute,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	})
	defer func() { _ = svc.Shutdown(context.Background()) }()

	_, err := svc.OpenView(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunIdleSweeper(ctx, 5*time.Millisecond)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	suite.Eventually(func() bool { return svc.OpenViews() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLedgerViewService(t *testing.T) {
	suite.Run(t, new(LedgerViewServiceTestSuite))
}
