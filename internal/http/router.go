package api

import (
	stdhttp "net/http"

	intconfig "bustix/internal/config"
	"bustix/internal/domain"
	h "bustix/internal/http/handlers"
	"bustix/internal/http/middleware"
	"bustix/internal/utils"

	"github.com/gin-gonic/gin"
)

func NewRouter(env intconfig.Env, handlers *h.API) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Logger().Warnf("failed to set trusted proxies: %v", err)
	}

	r.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route tidak ditemukan",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)
		api.GET("/routes", h.Routes)

		authed := api.Group("")
		authed.Use(middleware.Auth([]byte(env.JWTSecret)))

		// Trips & seat map
		trips := authed.Group("/trips")
		trips.POST("", middleware.RequireRoles(domain.RoleAdmin), handlers.CreateTrip)
		trips.GET("/:id/seats", handlers.GetTripSeats)
		trips.POST("/:id/holds", middleware.RequireRoles(domain.RoleCustomer, domain.RoleAgent), handlers.CreateHold)

		// Reservations
		reservations := authed.Group("/reservations")
		reservations.GET("/:id", handlers.GetReservation)
		reservations.POST("/:id/confirm", handlers.ConfirmReservation)
		reservations.POST("/:id/cancel", handlers.CancelReservation)
		reservations.GET("/:id/e-ticket", handlers.GetReservationETicket)
		reservations.GET("/:id/receipt", handlers.GetReservationReceipt)

		// Wallet ledger
		authed.POST("/ledger/transactions", handlers.SubmitLedgerTransaction)
		accounts := authed.Group("/accounts")
		accounts.GET("/:id/balance", handlers.GetAccountBalance)
		accounts.GET("/:id/transactions", handlers.GetAccountTransactions)
	}

	h.SetRouter(r)
	return r
}
