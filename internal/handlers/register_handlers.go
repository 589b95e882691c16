package handlers

import (
	"context"

	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes sets up the operational routes. The ledger has no business API;
// these routes serve health checks and operators.
func RegisterRoutes(r *gin.Engine, services *portssvc.ServiceContainer, store Pinger) {
	registerHealthRoutes(r, store)

	ops := r.Group("/ops")
	registerOutboxRoutes(ops, services.Outbox)
	registerSagaRoutes(ops, services.Compensation)
}
