package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
)

var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository is the contract against the ticket store. The store is the
// sole arbiter of the available→reserved race: UpdateStatus with an expected
// previous status must be atomic (compare-and-swap on the status column), and
// a swap on any implementation that cannot guarantee that is a correctness
// bug, not a performance choice.
type TicketRepository interface {
	// CreateBatch inserts tickets numbered 1..total for a raffle, all available.
	CreateBatch(ctx context.Context, raffleID string, total int) error

	GetByNumber(ctx context.Context, raffleID string, number int) (*models.Ticket, error)
	ListByRaffle(ctx context.Context, raffleID string) ([]*models.Ticket, error)
	CountByStatus(ctx context.Context, raffleID string) (*models.StatusCounts, error)

	// UpdateStatus writes the complete field assignment. When expected is
	// non-empty the write only applies if the stored status still equals it;
	// the boolean result is false when the row was not in the expected state
	// (the race was lost). With an empty expected status the write is
	// unconditional (owner override).
	UpdateStatus(ctx context.Context, raffleID string, number int, expected models.Status, update models.Update) (bool, error)

	// ReleaseExpired reverts every reserved ticket whose hold lapsed before
	// now back to available, clearing buyer and payment fields. Returns the
	// number of tickets released.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)

	DeleteByRaffle(ctx context.Context, raffleID string) error
}
