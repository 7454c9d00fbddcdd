package models

import (
	"errors"
	"time"
)

var (
	ErrInvalidTicketCount = errors.New("total tickets must be one of 10, 25, 50 or 100")
	ErrInvalidPrice       = errors.New("price per ticket must be greater than 0")
	ErrMissingWhatsApp    = errors.New("whatsapp contact number is required")
)

// Status represents the lifecycle state of a raffle.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed" // terminal for buyers; owner keeps view access
	StatusCancelled Status = "cancelled"
)

// AllowedSizes is the fixed set of grid sizes a raffle can be created with.
var AllowedSizes = []int{10, 25, 50, 100}

func ValidSize(total int) bool {
	for _, s := range AllowedSizes {
		if total == s {
			return true
		}
	}
	return false
}

// Raffle is a fixed-size grid of numbered tickets run by a single owner.
type Raffle struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	PricePerTicket float64 `json:"price_per_ticket"`
	TotalTickets   int     `json:"total_tickets"`
	WhatsApp       string  `json:"whatsapp_number"`
	Status         Status  `json:"status"`

	// MercadoPago credentials. The access token never leaves the service.
	MercadoPagoToken   string `json:"-"`
	MercadoPagoEnabled bool   `json:"mercadopago_enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentConfigured reports whether payment links can be issued for the raffle.
func (r *Raffle) PaymentConfigured() bool {
	return r.MercadoPagoEnabled && r.MercadoPagoToken != "" && r.PricePerTicket > 0
}

// Accepting reports whether buyer-driven mutations are still allowed.
func (r *Raffle) Accepting() bool {
	return r.Status == StatusActive
}

// RaffleCreate is the input for creating a raffle.
type RaffleCreate struct {
	Title              string  `json:"title" binding:"required"`
	Description        string  `json:"description"`
	PricePerTicket     float64 `json:"price_per_ticket" binding:"required"`
	TotalTickets       int     `json:"total_tickets" binding:"required"`
	WhatsApp           string  `json:"whatsapp_number" binding:"required"`
	MercadoPagoToken   string  `json:"mercadopago_access_token"`
	MercadoPagoEnabled bool    `json:"mercadopago_enabled"`
}

func (c *RaffleCreate) Validate() error {
	if !ValidSize(c.TotalTickets) {
		return ErrInvalidTicketCount
	}
	if c.PricePerTicket <= 0 {
		return ErrInvalidPrice
	}
	if c.WhatsApp == "" {
		return ErrMissingWhatsApp
	}
	return nil
}

// RaffleUpdate is the owner-editable subset of raffle metadata. Nil fields
// are left untouched.
type RaffleUpdate struct {
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	PricePerTicket     *float64 `json:"price_per_ticket"`
	WhatsApp           *string  `json:"whatsapp_number"`
	MercadoPagoToken   *string  `json:"mercadopago_access_token"`
	MercadoPagoEnabled *bool    `json:"mercadopago_enabled"`
}
