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
)

type BalanceHandler struct {
	cmds commands.TransferCommands
	q    queries.BalanceQueries
}

func NewBalanceHandler(cmds commands.TransferCommands, q queries.BalanceQueries) *BalanceHandler {
	return &BalanceHandler{cmds: cmds, q: q}
}

// @Summary Get balance
// @Description Get the member's per-category point balance
// @Tags balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} resdto.BalanceResponse
// @Failure 401 {object} map[string]string
// @Router /balance [get]
func (h *BalanceHandler) Get(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}

	view, err := h.q.GetByMember(c.Request.Context(), memberID)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to load balance", nil)
		return
	}
	c.JSON(http.StatusOK, resdto.FromBalanceView(view))
}

// @Summary Transfer points
// @Description Move points between categories, or out to the partner program
// @Tags balance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.TransferRequest true "Transfer request"
// @Success 200 {object} resdto.TransferResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /balance/transfer [post]
func (h *BalanceHandler) Transfer(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}
	var req reqdto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}

	result, err := h.cmds.Transfer(c.Request.Context(), memberID, req.From, req.To, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrSameCategory):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Source and destination must differ", nil)
		case errors.Is(err, commands.ErrInvalidAmount):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Amount must be positive", nil)
		case errors.Is(err, commands.ErrInvalidCategory):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Unknown balance category", nil)
		case errors.Is(err, commands.ErrInsufficientBalance):
			httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Insufficient balance", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}
	c.JSON(http.StatusOK, resdto.FromTransferResult(result))
}
