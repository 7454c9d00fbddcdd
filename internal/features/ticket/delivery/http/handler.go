package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/common/middleware"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/service"
)

type TicketHandler struct {
	service  service.TicketService
	verifier middleware.SessionVerifier
}

func NewTicketHandler(service service.TicketService, verifier middleware.SessionVerifier) *TicketHandler {
	return &TicketHandler{
		service:  service,
		verifier: verifier,
	}
}

func (h *TicketHandler) RegisterRoutes(router *gin.RouterGroup) {
	raffle := router.Group("/raffles/:id")

	// Bulk reservation sits beside the grid, not under /tickets/:number.
	raffle.POST("/reservations", h.reserveBatch)

	tickets := raffle.Group("/tickets")
	{
		tickets.GET("", h.list)
		tickets.GET("/:number", h.getByNumber)

		// Buyer-facing: no account required.
		tickets.POST("/:number/reserve", h.reserve)

		authed := tickets.Group("", middleware.Auth(h.verifier))
		{
			authed.POST("/:number/cancel", h.cancel)
			authed.POST("/:number/confirm", h.confirmSale)
			authed.PUT("/:number/status", h.forceStatus)
		}
	}
}

type reserveRequest struct {
	BuyerName  string `json:"buyer_name" binding:"required"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone"`
}

func (r *reserveRequest) buyerInfo() models.BuyerInfo {
	return models.BuyerInfo{
		Name:  r.BuyerName,
		Email: r.BuyerEmail,
		Phone: r.BuyerPhone,
	}
}

type reserveBatchRequest struct {
	Numbers    []int  `json:"numbers" binding:"required"`
	BuyerName  string `json:"buyer_name" binding:"required"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone"`
}

type forceStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone"`
}

// @Summary List raffle tickets
// @Description Every ticket of the raffle. Lapsed reservations are released on the way out.
// @Tags tickets
// @Produce json
// @Param id path string true "Raffle ID"
// @Success 200 {array} models.Ticket
// @Failure 404 {object} middleware.ErrorResponse "Raffle not found"
// @Router /raffles/{id}/tickets [get]
func (h *TicketHandler) list(c *gin.Context) {
	tickets, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// @Summary Get one ticket
// @Tags tickets
// @Produce json
// @Param id path string true "Raffle ID"
// @Param number path int true "Ticket number"
// @Success 200 {object} models.Ticket
// @Failure 404 {object} middleware.ErrorResponse "Ticket not found"
// @Router /raffles/{id}/tickets/{number} [get]
func (h *TicketHandler) getByNumber(c *gin.Context) {
	number, ok := h.ticketNumber(c)
	if !ok {
		return
	}

	ticket, err := h.service.Get(c.Request.Context(), c.Param("id"), number)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// @Summary Reserve a ticket
// @Description Reserves one available ticket for 24 hours and returns the WhatsApp handoff link. Exactly one of any concurrent attempts wins.
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "Raffle ID"
// @Param number path int true "Ticket number"
// @Param input body reserveRequest true "Buyer details"
// @Success 200 {object} service.ReservationResult
// @Failure 409 {object} middleware.ErrorResponse "Ticket already taken"
// @Failure 410 {object} middleware.ErrorResponse "Raffle is completed"
// @Router /raffles/{id}/tickets/{number}/reserve [post]
func (h *TicketHandler) reserve(c *gin.Context) {
	number, ok := h.ticketNumber(c)
	if !ok {
		return
	}

	var input reserveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Reserve(c.Request.Context(), c.Param("id"), number, input.buyerInfo())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Reserve several tickets
// @Description Best-effort bulk reservation. Tickets lost to concurrent buyers are reported; the rest stay reserved. Partial success answers 207.
// @Tags tickets
// @Accept json
// @Produce json
// @Param id path string true "Raffle ID"
// @Param input body reserveBatchRequest true "Numbers and buyer details"
// @Success 200 {object} service.BatchReservationResult
// @Success 207 {object} service.BatchReservationResult "Some numbers were already taken"
// @Failure 409 {object} middleware.ErrorResponse "No ticket could be reserved"
// @Router /raffles/{id}/reservations [post]
func (h *TicketHandler) reserveBatch(c *gin.Context) {
	var input reserveBatchRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyer := models.BuyerInfo{Name: input.BuyerName, Email: input.BuyerEmail, Phone: input.BuyerPhone}
	result, err := h.service.ReserveBatch(c.Request.Context(), c.Param("id"), input.Numbers, buyer)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok &&
			appErr.Code == apperrors.ErrCodePartialReservation &&
			result != nil && len(result.Reserved) > 0 {
			c.JSON(http.StatusMultiStatus, result)
			return
		}
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Cancel a reservation
// @Description Owner-only. Returns the ticket to available and clears buyer data.
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Raffle ID"
// @Param number path int true "Ticket number"
// @Success 200 {object} models.Ticket
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Router /raffles/{id}/tickets/{number}/cancel [post]
func (h *TicketHandler) cancel(c *gin.Context) {
	number, ok := h.ticketNumber(c)
	if !ok {
		return
	}

	ticket, err := h.service.Cancel(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), number)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// @Summary Confirm a sale
// @Description Owner-only. Marks a ticket as sold after payment was arranged outside the payment provider.
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Raffle ID"
// @Param number path int true "Ticket number"
// @Success 200 {object} models.Ticket
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Router /raffles/{id}/tickets/{number}/confirm [post]
func (h *TicketHandler) confirmSale(c *gin.Context) {
	number, ok := h.ticketNumber(c)
	if !ok {
		return
	}

	ticket, err := h.service.ConfirmSale(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), number)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// @Summary Force a ticket status
// @Description Owner-only override to any status. Buyer fields follow the target status.
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Raffle ID"
// @Param number path int true "Ticket number"
// @Param input body forceStatusRequest true "Target status and optional buyer details"
// @Success 200 {object} models.Ticket
// @Failure 400 {object} middleware.ErrorResponse "Invalid status"
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Router /raffles/{id}/tickets/{number}/status [put]
func (h *TicketHandler) forceStatus(c *gin.Context) {
	number, ok := h.ticketNumber(c)
	if !ok {
		return
	}

	var input forceStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyer := models.BuyerInfo{Name: input.BuyerName, Email: input.BuyerEmail, Phone: input.BuyerPhone}
	ticket, err := h.service.ForceStatus(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), number, models.Status(input.Status), buyer)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) ticketNumber(c *gin.Context) (int, bool) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticket number must be a positive integer"})
		return 0, false
	}
	return number, true
}
