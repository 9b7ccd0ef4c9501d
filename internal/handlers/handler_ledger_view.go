package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/mma_ledger/internal/apperrors"
	portssvc "github.com/SscSPs/mma_ledger/internal/core/ports/services"
	"github.com/SscSPs/mma_ledger/internal/dto"
	"github.com/SscSPs/mma_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerViewHandler serves the transaction list in a chosen display currency.
type ledgerViewHandler struct {
	ledgerViewService portssvc.LedgerViewSvc
}

func newLedgerViewHandler(lvs portssvc.LedgerViewSvc) *ledgerViewHandler {
	return &ledgerViewHandler{
		ledgerViewService: lvs,
	}
}

// RegisterLedgerViewRoutes registers routes related to ledger views.
func RegisterLedgerViewRoutes(rg *gin.RouterGroup, ledgerViewService portssvc.LedgerViewSvc) {
	h := newLedgerViewHandler(ledgerViewService)

	views := rg.Group("/ledger-views")
	{
		views.POST("", h.openView)
		views.GET("/:view_id/rows", h.renderRows)
		views.DELETE("/:view_id", h.closeView)
	}
}

// openView godoc
// @Summary Open a ledger view
// @Description Opens a transaction list view with empty conversion caches. Rows are rendered through it until it is closed.
// @Tags ledger views
// @Produce  json
// @Success 201 {object} dto.LedgerViewResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 429 {object} map[string]string "Too many open views"
// @Failure 500 {object} map[string]string "Failed to open view"
// @Security BearerAuth
// @Router /ledger-views [post]
func (h *ledgerViewHandler) openView(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	view, err := h.ledgerViewService.OpenView(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, "Failed to open ledger view")
		return
	}

	c.JSON(http.StatusCreated, dto.ToLedgerViewResponse(view))
}

// renderRows godoc
// @Summary Render ledger rows
// @Description Converts a page of transaction rows into the display currency. Rows whose rate is still being fetched carry an estimate and isLoading=true; render again until loadingCount is 0.
// @Tags ledger views
// @Produce  json
// @Param   view_id path string true "Ledger view ID"
// @Param   currency query string true "Display currency (3 letters)"
// @Param   accountID query string false "Only rows of this account"
// @Param   limit query int false "Page size (default 50, max 500)"
// @Param   offset query int false "Rows to skip"
// @Success 200 {object} dto.LedgerViewPageResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "View belongs to another user"
// @Failure 404 {object} map[string]string "View not found"
// @Failure 500 {object} map[string]string "Failed to render rows"
// @Security BearerAuth
// @Router /ledger-views/{view_id}/rows [get]
func (h *ledgerViewHandler) renderRows(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	viewID := c.Param("view_id")

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var params dto.RenderRowsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for RenderRows", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	page, err := h.ledgerViewService.RenderRows(c.Request.Context(), viewID, userID, params)
	if err != nil {
		h.writeError(c, err, "Failed to render ledger rows")
		return
	}

	c.JSON(http.StatusOK, dto.ToLedgerViewPageResponse(page))
}

// closeView godoc
// @Summary Close a ledger view
// @Description Discards the view and its caches. Rate lookups it started are allowed to finish but their results are dropped.
// @Tags ledger views
// @Param   view_id path string true "Ledger view ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "View belongs to another user"
// @Failure 404 {object} map[string]string "View not found"
// @Security BearerAuth
// @Router /ledger-views/{view_id} [delete]
func (h *ledgerViewHandler) closeView(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	viewID := c.Param("view_id")

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.ledgerViewService.CloseView(c.Request.Context(), viewID, userID); err != nil {
		h.writeError(c, err, "Failed to close ledger view")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ledgerViewHandler) writeError(c *gin.Context, err error, msg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("view_id", c.Param("view_id")))
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn(msg, slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn(msg, slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, gin.H{"error": "Ledger view not found"})
	case errors.Is(err, apperrors.ErrForbidden):
		logger.Warn(msg, slog.String("error", err.Error()))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrLimitReached):
		logger.Warn(msg, slog.String("error", err.Error()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many open ledger views"})
	default:
		logger.Error(msg, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
