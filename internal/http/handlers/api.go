package handlers

import (
	"bustix/internal/http/middleware"
	"bustix/internal/services"

	"github.com/gin-gonic/gin"
)

// API holds the services behind the HTTP handlers. Value services are copied
// per request so their log lines carry the request id.
type API struct {
	Inventory    services.InventoryService
	Reservations *services.ReservationService
	Ledger       services.LedgerService
	Deposits     services.DepositService
}

func (a *API) inventory(c *gin.Context) services.InventoryService {
	s := a.Inventory
	s.RequestID = middleware.GetRequestID(c)
	return s
}

func (a *API) ledger(c *gin.Context) services.LedgerService {
	s := a.Ledger
	s.RequestID = middleware.GetRequestID(c)
	return s
}

func (a *API) deposits(c *gin.Context) services.DepositService {
	s := a.Deposits
	s.RequestID = middleware.GetRequestID(c)
	s.Ledger.RequestID = s.RequestID
	return s
}

func (a *API) docs(c *gin.Context) services.DocsService {
	return services.DocsService{
		Reservations: a.Reservations,
		Inventory:    a.inventory(c),
		RequestID:    middleware.GetRequestID(c),
	}
}
