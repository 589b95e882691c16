package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/handlers"
	"github.com/SscSPs/general_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock OutboxService ---
type MockOutboxService struct {
	mock.Mock
}

func (m *MockOutboxService) DeliverNow(ctx context.Context, updateID string) {
	m.Called(ctx, updateID)
}
func (m *MockOutboxService) DispatchDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *MockOutboxService) Run(ctx context.Context) {
	m.Called(ctx)
}
func (m *MockOutboxService) ListUpdates(ctx context.Context, filter domain.UpdateFilter) ([]domain.PendingServiceUpdate, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PendingServiceUpdate), args.Error(1)
}
func (m *MockOutboxService) Requeue(ctx context.Context, updateID string) error {
	args := m.Called(ctx, updateID)
	return args.Error(0)
}

var _ portssvc.OutboxSvcFacade = (*MockOutboxService)(nil)

// --- Mock CompensationService ---
type MockCompensationService struct {
	mock.Mock
}

func (m *MockCompensationService) Compensate(ctx context.Context, saga domain.PostingSaga) error {
	args := m.Called(ctx, saga)
	return args.Error(0)
}
func (m *MockCompensationService) RecoverStalled(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *MockCompensationService) Run(ctx context.Context) {
	m.Called(ctx)
}

var _ portssvc.CompensationSvc = (*MockCompensationService)(nil)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type HandlersTestSuite struct {
	suite.Suite
	outbox       *MockOutboxService
	compensation *MockCompensationService
	pinger       *stubPinger
	router       *gin.Engine
}

func (s *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.outbox = new(MockOutboxService)
	s.compensation = new(MockCompensationService)
	s.pinger = &stubPinger{}
	s.router = gin.New()
	s.router.Use(middleware.StructuredLoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	handlers.RegisterRoutes(s.router, &portssvc.ServiceContainer{
		Outbox:       s.outbox,
		Compensation: s.compensation,
	}, s.pinger)
}

func (s *HandlersTestSuite) TearDownTest() {
	s.outbox.AssertExpectations(s.T())
	s.compensation.AssertExpectations(s.T())
}

func (s *HandlersTestSuite) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func (s *HandlersTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("OK", w.Body.String())
}

func (s *HandlersTestSuite) TestReady() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/ready").Code)

	s.pinger.err = errors.New("connection refused")
	w := s.do(http.MethodGet, "/ready")
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), "connection refused")
}

func (s *HandlersTestSuite) TestListUpdates() {
	filter := domain.UpdateFilter{Status: domain.UpdateFailed, Limit: 5}
	s.outbox.On("ListUpdates", mock.Anything, filter).
		Return([]domain.PendingServiceUpdate{{ID: "u1", Status: domain.UpdateFailed}}, nil).Once()

	w := s.do(http.MethodGet, "/ops/outbox?status=FAILED&limit=5")
	s.Equal(http.StatusOK, w.Code)

	var body struct {
		Updates []domain.PendingServiceUpdate `json:"updates"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Require().Len(body.Updates, 1)
	s.Equal("u1", body.Updates[0].ID)
}

func (s *HandlersTestSuite) TestListUpdates_BadLimit() {
	w := s.do(http.MethodGet, "/ops/outbox?limit=abc")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestRequeue() {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"requeued", nil, http.StatusNoContent},
		{"not failed", apperrors.NewConflictError("pending service update u1 is COMPLETED"), http.StatusConflict},
		{"missing", apperrors.NewNotFoundError("pending service update", "u1"), http.StatusNotFound},
		{"store down", fmt.Errorf("%w: dial tcp", apperrors.ErrTransient), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.outbox.On("Requeue", mock.Anything, "u1").Return(tt.err).Once()
			w := s.do(http.MethodPost, "/ops/outbox/u1/requeue")
			s.Equal(tt.want, w.Code)
		})
	}
}

func (s *HandlersTestSuite) TestDispatch() {
	s.outbox.On("DispatchDue", mock.Anything).Return(3, nil).Once()
	w := s.do(http.MethodPost, "/ops/outbox/dispatch")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"attempted":3}`, w.Body.String())
}

func (s *HandlersTestSuite) TestRecoverSagas() {
	s.compensation.On("RecoverStalled", mock.Anything).Return(2, nil).Once()
	w := s.do(http.MethodPost, "/ops/sagas/recover")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"resolved":2}`, w.Body.String())
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
