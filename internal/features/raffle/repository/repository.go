package repository

import (
	"context"
	"errors"

	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
)

var ErrRaffleNotFound = errors.New("raffle not found")

type RaffleRepository interface {
	Create(ctx context.Context, raffle *models.Raffle) error
	GetByID(ctx context.Context, id string) (*models.Raffle, error)
	Update(ctx context.Context, raffle *models.Raffle) error
	Delete(ctx context.Context, id string) error

	ListByOwner(ctx context.Context, ownerID string) ([]*models.Raffle, error)

	// HasActiveRaffle backs the one-active-raffle-per-owner invariant.
	HasActiveRaffle(ctx context.Context, ownerID string) (bool, error)

	// UpdateStatusIf transitions the raffle status only when the stored
	// status matches expected. Guards the one-way active→completed gate.
	UpdateStatusIf(ctx context.Context, id string, expected, next models.Status) (bool, error)
}
