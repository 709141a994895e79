package handlers

import (
	"net/http"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type holdRequest struct {
	SeatIDs   []string `json:"seat_ids"`
	AccountID string   `json:"account_id"`
}

// CreateHold reserves seats on a trip. Agents may hold on behalf of a
// customer by naming account_id.
func (a *API) CreateHold(c *gin.Context) {
	var req holdRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	caller := middleware.Caller(c)
	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = caller.AccountID
	}
	if accountID != caller.AccountID && caller.Role == domain.RoleCustomer {
		RespondDomainError(c, domain.ForbiddenError{Msg: "customer hanya boleh memesan untuk akun sendiri"})
		return
	}

	placedBy := ""
	if accountID != caller.AccountID {
		placedBy = caller.AccountID
	}
	res, err := a.Reservations.RequestHoldFor(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.SeatIDs, accountID, placedBy)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reservation": res})
}

// ownedReservation loads the reservation and checks the caller may act on
// it: the owner, an admin, or the agent who placed the hold. On failure the
// response is already written.
func (a *API) ownedReservation(c *gin.Context) (models.Reservation, bool) {
	res, err := a.Reservations.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		RespondDomainError(c, err)
		return models.Reservation{}, false
	}
	caller := middleware.Caller(c)
	placedByCaller := res.PlacedBy != "" && res.PlacedBy == caller.AccountID
	if !caller.CanActFor(res.AccountID) && !placedByCaller {
		RespondDomainError(c, domain.ForbiddenError{Msg: "reservasi bukan milik akun ini"})
		return models.Reservation{}, false
	}
	return res, true
}

func (a *API) GetReservation(c *gin.Context) {
	res, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": res})
}

// ConfirmReservation debits the account and books the held seats.
func (a *API) ConfirmReservation(c *gin.Context) {
	res, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	out, err := a.Reservations.ConfirmAndPay(c.Request.Context(), res.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": out})
}

func (a *API) CancelReservation(c *gin.Context) {
	res, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	out, err := a.Reservations.Cancel(c.Request.Context(), res.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": out})
}

// GetReservationETicket returns the e-ticket PDF (inline).
func (a *API) GetReservationETicket(c *gin.Context) {
	res, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	pdfBytes, filename, err := a.docs(c).GenerateETicket(c.Request.Context(), res.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// GetReservationReceipt returns the payment receipt PDF (inline).
func (a *API) GetReservationReceipt(c *gin.Context) {
	res, ok := a.ownedReservation(c)
	if !ok {
		return
	}
	pdfBytes, filename, err := a.docs(c).GenerateReceipt(c.Request.Context(), res.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
