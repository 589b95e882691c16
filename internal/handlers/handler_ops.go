package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// outboxHandler exposes the pending service update queue to operators.
type outboxHandler struct {
	outboxService portssvc.OutboxSvcFacade
}

func registerOutboxRoutes(rg *gin.RouterGroup, outboxService portssvc.OutboxSvcFacade) {
	h := &outboxHandler{outboxService: outboxService}

	outbox := rg.Group("/outbox")
	{
		outbox.GET("", h.listUpdates)
		outbox.POST("/:id/requeue", h.requeue)
		outbox.POST("/dispatch", h.dispatch)
	}
}

// listUpdates returns records filtered by ?status=, ?entryID= and ?limit=.
func (h *outboxHandler) listUpdates(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	filter := domain.UpdateFilter{
		Status:  domain.UpdateStatus(c.Query("status")),
		EntryID: c.Query("entryID"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	updates, err := h.outboxService.ListUpdates(c.Request.Context(), filter)
	if err != nil {
		respondError(c, logger, "Failed to list pending service updates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}

func (h *outboxHandler) requeue(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c).With(slog.String("update_id", c.Param("id")))
	if err := h.outboxService.Requeue(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, logger, "Failed to requeue pending service update", err)
		return
	}
	logger.Info("Pending service update requeued")
	c.Status(http.StatusNoContent)
}

func (h *outboxHandler) dispatch(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	n, err := h.outboxService.DispatchDue(c.Request.Context())
	if err != nil {
		respondError(c, logger, "Failed to dispatch due updates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempted": n})
}

// sagaHandler lets operators trigger recovery without waiting for the next sweep.
type sagaHandler struct {
	compensationService portssvc.CompensationSvc
}

func registerSagaRoutes(rg *gin.RouterGroup, compensationService portssvc.CompensationSvc) {
	h := &sagaHandler{compensationService: compensationService}
	rg.POST("/sagas/recover", h.recover)
}

func (h *sagaHandler) recover(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	n, err := h.compensationService.RecoverStalled(c.Request.Context())
	if err != nil {
		respondError(c, logger, "Failed to recover stalled sagas", err)
		return
	}
	logger.Info("Stalled sagas recovered", slog.Int("resolved", n))
	c.JSON(http.StatusOK, gin.H{"resolved": n})
}
