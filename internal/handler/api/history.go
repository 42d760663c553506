package api

import (
	"errors"
	"net/http"
	"strconv"

	resdto "loyalty-core/internal/handler/dto/response"
	"loyalty-core/internal/handler/httperr"
	"loyalty-core/internal/handler/middleware"
	"loyalty-core/internal/usecase/queries"

	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	q queries.HistoryQueries
}

func NewHistoryHandler(q queries.HistoryQueries) *HistoryHandler {
	return &HistoryHandler{q: q}
}

// @Summary Get point history
// @Description Reverse-chronological ledger feed with cursor pagination
// @Tags history
// @Produce json
// @Security BearerAuth
// @Param after query string false "Opaque cursor from a previous page"
// @Param limit query int false "Page size (default 20, max 200)"
// @Param kind query string false "Filter by entry kind"
// @Success 200 {object} resdto.HistoryResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New("member not authenticated"), "Unauthorized", nil)
		return
	}

	var after *queries.Cursor
	if cursorStr := c.Query("after"); cursorStr != "" {
		after = &queries.Cursor{After: cursorStr}
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid limit", nil)
			return
		}
		limit = parsed
	}

	views, next, err := h.q.ListByMember(c.Request.Context(), memberID, after, limit, c.Query("kind"))
	if err != nil {
		if errors.Is(err, queries.ErrInvalidCursor) {
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid cursor", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to load history", nil)
		return
	}
	c.JSON(http.StatusOK, resdto.FromLedgerEntryViews(views, next))
}
