package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvelasquez94/raffle-fast/internal/common/middleware"
	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/service"
)

type RaffleHandler struct {
	service  service.RaffleService
	verifier middleware.SessionVerifier
}

func NewRaffleHandler(service service.RaffleService, verifier middleware.SessionVerifier) *RaffleHandler {
	return &RaffleHandler{
		service:  service,
		verifier: verifier,
	}
}

func (h *RaffleHandler) RegisterRoutes(router *gin.RouterGroup) {
	raffles := router.Group("/raffles")
	{
		raffles.GET("/:id", h.getByID)
		raffles.GET("/:id/stats", h.stats)

		authed := raffles.Group("", middleware.Auth(h.verifier))
		{
			authed.POST("", h.create)
			authed.GET("", h.listMine)
			authed.PUT("/:id", h.update)
			authed.DELETE("/:id", h.delete)
			authed.POST("/:id/complete", h.complete)
		}
	}
}

// @Summary Create a raffle
// @Description Creates a raffle with its full ticket grid. An owner can only run one active raffle at a time.
// @Tags raffles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body models.RaffleCreate true "Raffle to create"
// @Success 201 {object} models.Raffle
// @Failure 400 {object} middleware.ErrorResponse "Validation error"
// @Failure 409 {object} middleware.ErrorResponse "An active raffle already exists"
// @Router /raffles [post]
func (h *RaffleHandler) create(c *gin.Context) {
	var input models.RaffleCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raffle, err := h.service.Create(c.Request.Context(), middleware.GetUserID(c), &input)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, raffle)
}

// @Summary Get raffle by ID
// @Description Public view of a raffle. Payment credentials are never included.
// @Tags raffles
// @Produce json
// @Param id path string true "Raffle ID"
// @Success 200 {object} models.Raffle
// @Failure 404 {object} middleware.ErrorResponse "Raffle not found"
// @Router /raffles/{id} [get]
func (h *RaffleHandler) getByID(c *gin.Context) {
	raffle, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffle)
}

// @Summary Get my raffles
// @Tags raffles
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Raffle
// @Router /raffles [get]
func (h *RaffleHandler) listMine(c *gin.Context) {
	raffles, err := h.service.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"raffles": raffles})
}

// @Summary Update raffle metadata
// @Description Owner-only edit of title, description, price, contact and payment settings.
// @Tags raffles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Raffle ID"
// @Param input body models.RaffleUpdate true "Fields to update"
// @Success 200 {object} models.Raffle
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Failure 410 {object} middleware.ErrorResponse "Raffle is completed"
// @Router /raffles/{id} [put]
func (h *RaffleHandler) update(c *gin.Context) {
	var input models.RaffleUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raffle, err := h.service.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &input)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffle)
}

// @Summary Delete a raffle
// @Tags raffles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Raffle ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Router /raffles/{id} [delete]
func (h *RaffleHandler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Complete a raffle
// @Description One-way transition. A completed raffle stops accepting ticket changes permanently.
// @Tags raffles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Raffle ID"
// @Success 200 {object} models.Raffle
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Failure 410 {object} middleware.ErrorResponse "Already completed"
// @Router /raffles/{id}/complete [post]
func (h *RaffleHandler) complete(c *gin.Context) {
	raffle, err := h.service.Complete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffle)
}

// @Summary Get raffle ticket counts
// @Description Per-status ticket counts for the grid view. Briefly cached.
// @Tags raffles
// @Produce json
// @Param id path string true "Raffle ID"
// @Success 200 {object} models.StatusCounts
// @Failure 404 {object} middleware.ErrorResponse "Raffle not found"
// @Router /raffles/{id}/stats [get]
func (h *RaffleHandler) stats(c *gin.Context) {
	counts, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}
