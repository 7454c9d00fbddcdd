package repository

import (
	"context"

	"github.com/cvelasquez94/raffle-fast/internal/features/payment/models"
)

// MarkerRepository is the typed single-slot store for pending-payment
// markers. Keyed by client id: each device carries at most one marker, and
// reconciliation only ever consults the caller's own slot.
type MarkerRepository interface {
	// Get returns models.ErrNoMarker when the slot is empty.
	Get(ctx context.Context, clientID string) (*models.Marker, error)
	Set(ctx context.Context, clientID string, marker *models.Marker) error
	Clear(ctx context.Context, clientID string) error
}
