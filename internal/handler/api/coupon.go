package api

import (
	"errors"
	"net/http"

	reqdto "loyalty-core/internal/handler/dto/request"
	resdto "loyalty-core/internal/handler/dto/response"
	"loyalty-core/internal/handler/httperr"
	"loyalty-core/internal/handler/middleware"
	"loyalty-core/internal/usecase/commands"
	"loyalty-core/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CouponHandler struct {
	cmds commands.CouponCommands
	q    queries.WalletQueries
}

func NewCouponHandler(cmds commands.CouponCommands, q queries.WalletQueries) *CouponHandler {
	return &CouponHandler{cmds: cmds, q: q}
}

// @Summary List wallet coupons
// @Description List the member's coupon instances, newest first
// @Tags coupons
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {array} resdto.CouponResponse
// @Failure 401 {object} map[string]string
// @Router /coupons [get]
func (h *CouponHandler) List(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}

	views, err := h.q.ListByMember(c.Request.Context(), memberID, c.Query("status"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to list coupons", nil)
		return
	}
	c.JSON(http.StatusOK, resdto.FromCouponViews(views))
}

// @Summary Get coupon
// @Description Get one coupon instance by id
// @Tags coupons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Coupon instance ID"
// @Success 200 {object} resdto.CouponResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /coupons/{id} [get]
func (h *CouponHandler) Get(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid coupon id", nil)
		return
	}

	view, err := h.q.GetByID(c.Request.Context(), memberID, id)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrCouponNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Coupon not found", nil)
		case errors.Is(err, queries.ErrCouponForbidden):
			httperr.AbortWithError(c, http.StatusForbidden, err, "Coupon belongs to another member", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to load coupon", nil)
		}
		return
	}
	c.JSON(http.StatusOK, resdto.FromCouponView(view))
}

// @Summary Activate coupon
// @Description Move a redeemed coupon to active, opening its usage window
// @Tags coupons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Coupon instance ID"
// @Success 200 {object} resdto.CouponResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 410 {object} map[string]string
// @Router /coupons/{id}/activate [post]
func (h *CouponHandler) Activate(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid coupon id", nil)
		return
	}

	view, err := h.cmds.Activate(c.Request.Context(), memberID, id)
	if err != nil {
		h.abortLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromCouponView(view))
}

// @Summary Use coupon
// @Description Consume an active coupon by its code (merchant scan)
// @Tags coupons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.UseCouponRequest true "Coupon code"
// @Success 200 {object} resdto.CouponResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 410 {object} map[string]string
// @Router /coupons/use [post]
func (h *CouponHandler) Use(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}
	var req reqdto.UseCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}

	view, err := h.cmds.Use(c.Request.Context(), memberID, req.TrimmedCode())
	if err != nil {
		h.abortLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromCouponView(view))
}

func (h *CouponHandler) abortLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commands.ErrInstanceNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Coupon not found", nil)
	case errors.Is(err, commands.ErrForbidden):
		httperr.AbortWithError(c, http.StatusForbidden, err, "Coupon belongs to another member", nil)
	case errors.Is(err, commands.ErrCouponExpired):
		httperr.AbortWithError(c, http.StatusGone, err, "Coupon has expired", nil)
	case errors.Is(err, commands.ErrInvalidTransition):
		httperr.AbortWithError(c, http.StatusConflict, err, "Coupon is not in a usable state", nil)
	default:
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
	}
}
