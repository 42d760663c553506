//go:build unit

package api_test

import (
	"errors"
	"net/http"
	"testing"

	"loyalty-core/internal/handler/api"
	resdto "loyalty-core/internal/handler/dto/response"
	"loyalty-core/internal/usecase/commands"
	"loyalty-core/internal/usecase/queries"
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

type CouponHandlerTestSuite struct {
	suite.Suite
	router       *gin.Engine
	mockCtrl     *gomock.Controller
	mockCommands *commandsmock.MockCouponCommands
	mockQueries  *queriesmock.MockWalletQueries
	handler      *api.CouponHandler
	memberID     uuid.UUID
}

func (s *CouponHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.memberID = uuid.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockCommands = commandsmock.NewMockCouponCommands(s.mockCtrl)
	s.mockQueries = queriesmock.NewMockWalletQueries(s.mockCtrl)
	s.handler = api.NewCouponHandler(s.mockCommands, s.mockQueries)

	authMiddleware := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Unauthorized"}})
			return
		}
		c.Set("member_id", s.memberID)
		c.Next()
	}

	s.router.GET("/coupons", authMiddleware, s.handler.List)
	s.router.POST("/coupons/use", authMiddleware, s.handler.Use)
	s.router.GET("/coupons/:id", authMiddleware, s.handler.Get)
	s.router.POST("/coupons/:id/activate", authMiddleware, s.handler.Activate)
}

func (s *CouponHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestCouponHandlerSuite(t *testing.T) {
	suite.Run(t, new(CouponHandlerTestSuite))
}

// ================================================================================
// TestList
// ================================================================================

func (s *CouponHandlerTestSuite) TestList() {
	views := []*queries.CouponView{
		builder.NewCouponBuilder().BuildView(),
		builder.NewCouponBuilder().With(func(b *builder.CouponBuilder) {
			b.RewardKey = "movie-ticket"
			b.Status = "active"
			b.Code = "CP-TEST0002"
		}).BuildView(),
	}

	s.Run("success: returns 200 OK with all wallet coupons", func() {
		s.mockQueries.EXPECT().ListByMember(gomock.Any(), s.memberID, "").
			Return(views, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/coupons", nil, "bearer-token")

		var response []*resdto.CouponResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Len(response, 2)
		s.Equal(views[0].Code, response[0].Code)
	})

	s.Run("success: status query is forwarded as a filter", func() {
		s.mockQueries.EXPECT().ListByMember(gomock.Any(), s.memberID, "active").
			Return(views[1:], nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/coupons?status=active", nil, "bearer-token")

		var response []*resdto.CouponResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Len(response, 1)
		s.Equal("active", response[0].Status)
	})

	s.Run("error: 401 Unauthorized when unauthenticated", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/coupons", nil, "")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusUnauthorized, "Unauthorized")
	})
}

// ================================================================================
// TestGet
// ================================================================================

func (s *CouponHandlerTestSuite) TestGet() {
	view := builder.NewCouponBuilder().BuildView()
	url := "/coupons/" + view.ID.String()

	s.Run("success: returns 200 OK with CouponResponse", func() {
		s.mockQueries.EXPECT().GetByID(gomock.Any(), s.memberID, view.ID).
			Return(view, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, url, nil, "bearer-token")

		var response resdto.CouponResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Equal(view.ID, response.ID)
		s.Equal(view.Code, response.Code)
		s.Equal(view.CategoryUsed, response.CategoryUsed)
	})

	s.Run("error: 400 Bad Request for a malformed id", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/coupons/not-a-uuid", nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid coupon id")
	})

	s.Run("error: 404 Not Found for an unknown coupon", func() {
		s.mockQueries.EXPECT().GetByID(gomock.Any(), s.memberID, view.ID).
			Return(nil, queries.ErrCouponNotFound).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, url, nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusNotFound, "Coupon not found")
	})

	s.Run("error: 403 Forbidden for another member's coupon", func() {
		s.mockQueries.EXPECT().GetByID(gomock.Any(), s.memberID, view.ID).
			Return(nil, queries.ErrCouponForbidden).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, url, nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusForbidden, "another member")
	})
}

// ================================================================================
// TestActivate
// ================================================================================

func (s *CouponHandlerTestSuite) TestActivate() {
	view := builder.NewCouponBuilder().With(func(b *builder.CouponBuilder) {
		b.Status = "active"
	}).BuildView()
	url := "/coupons/" + view.ID.String() + "/activate"

	s.Run("success: returns 200 OK with the activated coupon", func() {
		s.mockCommands.EXPECT().Activate(gomock.Any(), s.memberID, view.ID).
			Return(view, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, nil, "bearer-token")

		var response resdto.CouponResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Equal("active", response.Status)
	})

	s.Run("error: maps lifecycle errors to proper statuses", func() {
		testCases := []struct {
			name           string
			commandsError  error
			expectedStatus int
			expectedMsg    string
		}{
			{
				name:           "unknown instance",
				commandsError:  commands.ErrInstanceNotFound,
				expectedStatus: http.StatusNotFound,
				expectedMsg:    "Coupon not found",
			},
			{
				name:           "foreign instance",
				commandsError:  commands.ErrForbidden,
				expectedStatus: http.StatusForbidden,
				expectedMsg:    "another member",
			},
			{
				name:           "validity lapsed",
				commandsError:  commands.ErrCouponExpired,
				expectedStatus: http.StatusGone,
				expectedMsg:    "expired",
			},
			{
				name:           "double activation",
				commandsError:  commands.ErrInvalidTransition,
				expectedStatus: http.StatusConflict,
				expectedMsg:    "not in a usable state",
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
				s.mockCommands.EXPECT().Activate(gomock.Any(), s.memberID, view.ID).
					Return(nil, tc.commandsError).Times(1)

				rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, nil, "bearer-token")
				httptest.AssertErrorResponse(s.T(), rec, tc.expectedStatus, tc.expectedMsg)
			})
		}
	})
}

// ================================================================================
// TestUse
// ================================================================================

func (s *CouponHandlerTestSuite) TestUse() {
	url := "/coupons/use"

	usedView := builder.NewCouponBuilder().With(func(b *builder.CouponBuilder) {
		b.Status = "used"
	}).BuildView()
	reqBody := builder.NewCouponBuilder().BuildUseRequestDTO()

	s.Run("success: returns 200 OK with the consumed coupon", func() {
		s.mockCommands.EXPECT().Use(gomock.Any(), s.memberID, reqBody.Code).
			Return(usedView, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")

		var response resdto.CouponResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &response)
		s.Equal("used", response.Status)
	})

	s.Run("success: surrounding whitespace in the code is trimmed", func() {
		s.mockCommands.EXPECT().Use(gomock.Any(), s.memberID, reqBody.Code).
			Return(usedView, nil).Times(1)

		requestMap := testutil.DtoMap(s.T(), reqBody, testutil.Field("code", "  "+reqBody.Code+"  "))
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, requestMap, "bearer-token")
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, nil)
	})

	s.Run("error: 400 Bad Request when code is missing", func() {
		requestMap := testutil.DtoMap(s.T(), reqBody, testutil.Field("code", nil))
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, requestMap, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid request")
	})

	s.Run("error: 409 Conflict when the coupon was never activated", func() {
		s.mockCommands.EXPECT().Use(gomock.Any(), s.memberID, reqBody.Code).
			Return(nil, commands.ErrInvalidTransition).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusConflict, "not in a usable state")
	})

	s.Run("error: 410 Gone when the usage window has lapsed", func() {
		s.mockCommands.EXPECT().Use(gomock.Any(), s.memberID, reqBody.Code).
			Return(nil, commands.ErrCouponExpired).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusGone, "expired")
	})
}
