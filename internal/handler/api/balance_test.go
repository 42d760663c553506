//go:build unit

package api_test

import (
	"errors"
	"net/http"
	"testing"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/handler/api"
	resdto "loyalty-core/internal/handler/dto/response"
	"loyalty-core/internal/usecase/commands"
	"loyalty-core/tests/common/builder"
	"loyalty-core/tests/common/httptest"
	"loyalty-core/tests/common/testutil"
	commandsmock "loyalty-core/tests/mock/commands"
	queriesmock "loyalty-core/tests/mock/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type BalanceHandlerTestSuite struct {
	suite.Suite
	router       *gin.Engine
	mockCtrl     *gomock.Controller
	mockCommands *commandsmock.MockTransferCommands
	mockQueries  *queriesmock.MockBalanceQueries
	handler      *api.BalanceHandler
	memberID     uuid.UUID
}

func (s *BalanceHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.memberID = uuid.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockCommands = commandsmock.NewMockTransferCommands(s.mockCtrl)
	s.mockQueries = queriesmock.NewMockBalanceQueries(s.mockCtrl)
	s.handler = api.NewBalanceHandler(s.mockCommands, s.mockQueries)

	authMiddleware := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Unauthorized"}})
			return
		}
		c.Set("member_id", s.memberID)
		c.Next()
	}

	s.router.GET("/balance", authMiddleware, s.handler.Get)
	s.router.POST("/balance/transfer", authMiddleware, s.handler.Transfer)
}

func (s *BalanceHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestBalanceHandlerSuite(t *testing.T) {
	suite.Run(t, new(BalanceHandlerTestSuite))
}

// ================================================================================
// TestGet
// ================================================================================

func (s *BalanceHandlerTestSuite) TestGet() {
	view := builder.NewBalanceBuilder().With(func(b *builder.BalanceBuilder) {
		b.MemberID = s.memberID
	}).BuildView()

	s.Run("success: returns 200 OK with BalanceResponse", func() {
		s.mockQueries.EXPECT().GetByMember(gomock.Any(), s.memberID).
			Return(view, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/balance", nil, "bearer-token")

		var response resdto.BalanceResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Equal(s.memberID, response.MemberID)
		s.Equal(view.Bank, response.Bank)
		s.Equal(view.Total, response.Total)
	})

	s.Run("error: 401 Unauthorized when unauthenticated", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/balance", nil, "")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusUnauthorized, "Unauthorized")
	})

	s.Run("error: 500 Internal Server Error on query failure", func() {
		s.mockQueries.EXPECT().GetByMember(gomock.Any(), s.memberID).
			Return(nil, errors.New("database error")).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/balance", nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusInternalServerError, "")
	})
}

// ================================================================================
// TestTransfer
// ================================================================================

func (s *BalanceHandlerTestSuite) TestTransfer() {
	url := "/balance/transfer"
	reqBody := builder.NewTransferBuilder().BuildRequestDTO()

	result := &commands.TransferResult{
		Balance:        balance.Snapshot{Bank: 70, Wealth: 80, Insurance: 25, Total: 175},
		CorrelationRef: uuid.New(),
	}

	s.Run("success: returns 200 OK with the post-transfer balance", func() {
		s.mockCommands.EXPECT().Transfer(gomock.Any(), s.memberID, reqBody.From, reqBody.To, reqBody.Amount).
			Return(result, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")

		var response resdto.TransferResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.EqualValues(70, response.Balance.Bank)
		s.EqualValues(80, response.Balance.Wealth)
		s.Equal(result.CorrelationRef, response.CorrelationRef)
	})

	s.Run("error: 400 Bad Request on validation errors", func() {
		missing := []struct {
			name   string
			mutate func(m map[string]any)
		}{
			{name: "missing field: from (required)", mutate: testutil.Field("from", nil)},
			{name: "missing field: to (required)", mutate: testutil.Field("to", nil)},
			{name: "missing field: amount (required)", mutate: testutil.Field("amount", nil)},
		}
		for _, tc := range missing {
			s.Run(tc.name, func() {
				requestMap := testutil.DtoMap(s.T(), reqBody, tc.mutate)
				rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, requestMap, "bearer-token")
				httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "")
			})
		}
	})

	s.Run("error: maps usecase errors to proper statuses", func() {
		testCases := []struct {
			name           string
			commandsError  error
			expectedStatus int
			expectedMsg    string
		}{
			{
				name:           "same category",
				commandsError:  commands.ErrSameCategory,
				expectedStatus: http.StatusBadRequest,
				expectedMsg:    "must differ",
			},
			{
				name:           "non-positive amount",
				commandsError:  commands.ErrInvalidAmount,
				expectedStatus: http.StatusBadRequest,
				expectedMsg:    "positive",
			},
			{
				name:           "unknown category",
				commandsError:  commands.ErrInvalidCategory,
				expectedStatus: http.StatusBadRequest,
				expectedMsg:    "Unknown balance category",
			},
			{
				name:           "insufficient balance",
				commandsError:  commands.ErrInsufficientBalance,
				expectedStatus: http.StatusUnprocessableEntity,
				expectedMsg:    "Insufficient balance",
			},
			{
				name:           "internal server error",
				commandsError:  errors.New("database error"),
				expectedStatus: http.StatusInternalServerError,
				expectedMsg:    "Internal server error",
			},
		}

		for _, tc := range testCases {
			s.Run(tc.name, func() {
				s.mockCommands.EXPECT().Transfer(gomock.Any(), s.memberID, reqBody.From, reqBody.To, reqBody.Amount).
					Return(nil, tc.commandsError).Times(1)

				rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")
				httptest.AssertErrorResponse(s.T(), rec, tc.expectedStatus, tc.expectedMsg)
			})
		}
	})
}
