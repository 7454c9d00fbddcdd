package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/common/middleware"
	"github.com/cvelasquez94/raffle-fast/internal/features/payment/service"
	ticketmodels "github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
)

// clientIDHeader identifies the buyer's device. Buyers have no accounts; the
// pending-payment marker is keyed by this value.
const clientIDHeader = "X-Client-ID"

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(service service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/raffles/:id/payments")
	{
		payments.POST("/link", h.requestLink)
		payments.POST("/reconcile", h.reconcile)
	}
}

type linkRequest struct {
	Numbers    []int  `json:"numbers" binding:"required"`
	BuyerName  string `json:"buyer_name" binding:"required"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone"`
}

// @Summary Request a payment link
// @Description Creates a checkout link for the given ticket numbers, reserves them with the payment reference stamped and stores a pending-payment marker for the caller's device.
// @Tags payments
// @Accept json
// @Produce json
// @Param id path string true "Raffle ID"
// @Param X-Client-ID header string true "Device identifier for the pending-payment marker"
// @Param input body linkRequest true "Numbers and buyer details"
// @Success 200 {object} service.LinkResult
// @Success 207 {object} service.LinkResult "Some numbers were already taken; the link covers the reserved ones"
// @Failure 409 {object} middleware.ErrorResponse "No ticket could be reserved"
// @Failure 422 {object} middleware.ErrorResponse "Payments not enabled for this raffle"
// @Failure 502 {object} middleware.ErrorResponse "Payment provider error"
// @Router /raffles/{id}/payments/link [post]
func (h *PaymentHandler) requestLink(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	var input linkRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyer := ticketmodels.BuyerInfo{Name: input.BuyerName, Email: input.BuyerEmail, Phone: input.BuyerPhone}
	result, err := h.service.RequestPaymentLink(c.Request.Context(), clientID, c.Param("id"), input.Numbers, buyer)
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

// @Summary Reconcile a pending payment
// @Description Checks the payment provider for the caller's pending payment. Settled payments promote the marked tickets to sold; terminal failures drop the marker; anything else stays pending for the next load.
// @Tags payments
// @Produce json
// @Param id path string true "Raffle ID"
// @Param X-Client-ID header string true "Device identifier for the pending-payment marker"
// @Success 200 {object} models.ReconcileResult
// @Failure 404 {object} middleware.ErrorResponse "Raffle not found"
// @Router /raffles/{id}/payments/reconcile [post]
func (h *PaymentHandler) reconcile(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) clientID(c *gin.Context) (string, bool) {
	clientID := c.GetHeader(clientIDHeader)
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Client-ID header is required"})
		return "", false
	}
	return clientID, true
}
