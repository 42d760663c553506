package api

import (
	"errors"
	"net/http"
	"strconv"

	"loyalty-core/internal/domain/reward"
	reqdto "loyalty-core/internal/handler/dto/request"
	resdto "loyalty-core/internal/handler/dto/response"
	"loyalty-core/internal/handler/httperr"
	"loyalty-core/internal/handler/middleware"
	"loyalty-core/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

type RedemptionHandler struct {
	cmds commands.RedemptionCommands
	// catalog resolves the legacy numeric alias at the boundary; everything
	// past it speaks the stable reward key.
	catalog reward.Catalog
}

func NewRedemptionHandler(cmds commands.RedemptionCommands, catalog reward.Catalog) *RedemptionHandler {
	return &RedemptionHandler{cmds: cmds, catalog: catalog}
}

// @Summary Redeem reward
// @Description Exchange points for a coupon instance
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rewardKey path string true "Reward key (legacy numeric id accepted)"
// @Param request body reqdto.RedeemRequest false "Redeem options"
// @Success 200 {object} resdto.RedeemResponse "Previously issued instance replayed"
// @Success 201 {object} resdto.RedeemResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /rewards/{rewardKey}/redeem [post]
func (h *RedemptionHandler) Redeem(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}

	rewardKey := h.resolveRewardKey(c, c.Param("rewardKey"))

	var req reqdto.RedeemRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
			return
		}
	}
	mode, err := req.RedeemMode()
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid redeem mode", nil)
		return
	}

	result, err := h.cmds.Redeem(c.Request.Context(), memberID, rewardKey, mode)
	if err != nil {
		h.abortRedeemError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resdto.FromRedeemResult(result))
}

// resolveRewardKey maps a purely numeric path segment through the legacy id
// alias; everything else is already a reward key.
func (h *RedemptionHandler) resolveRewardKey(c *gin.Context, raw string) string {
	legacyID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	if def, err := h.catalog.FindByLegacyID(c.Request.Context(), legacyID); err == nil {
		return def.Key
	}
	return raw
}

func (h *RedemptionHandler) abortRedeemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commands.ErrRewardNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Reward not found", nil)
	case errors.Is(err, commands.ErrWrongRewardType):
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Reward is not redeemable as a coupon", nil)
	case errors.Is(err, commands.ErrTemplateInactive):
		httperr.AbortWithError(c, http.StatusConflict, err, "Coupon is not available", nil)
	case errors.Is(err, commands.ErrCatalogExpired):
		httperr.AbortWithError(c, http.StatusConflict, err, "Coupon offer has expired", nil)
	case errors.Is(err, commands.ErrOutOfStock):
		httperr.AbortWithError(c, http.StatusConflict, err, "Coupon is out of stock", nil)
	case errors.Is(err, commands.ErrInsufficientPoints):
		httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Insufficient points", nil)
	case errors.Is(err, commands.ErrStoreConflict):
		httperr.AbortWithError(c, http.StatusConflict, err, "Concurrent redemption in progress, retry", nil)
	default:
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
	}
}
