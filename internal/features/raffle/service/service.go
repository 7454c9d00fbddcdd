package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/repository"
	ticketmodels "github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	ticketrepo "github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

const statsCacheTTL = 30 * time.Second

// Cache is the slice of the shared cache service the raffle service needs.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RaffleService owns raffle lifecycle: creation with its ticket grid,
// owner-only edits, and the one-way completion gate.
type RaffleService interface {
	Create(ctx context.Context, ownerID string, input *models.RaffleCreate) (*models.Raffle, error)
	GetByID(ctx context.Context, id string) (*models.Raffle, error)
	Update(ctx context.Context, ownerID, id string, update *models.RaffleUpdate) (*models.Raffle, error)
	Complete(ctx context.Context, ownerID, id string) (*models.Raffle, error)
	Delete(ctx context.Context, ownerID, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Raffle, error)
	Stats(ctx context.Context, id string) (*ticketmodels.StatusCounts, error)
}

type raffleService struct {
	raffles repository.RaffleRepository
	tickets ticketrepo.TicketRepository
	cache   Cache
	now     func() time.Time
}

func NewRaffleService(raffles repository.RaffleRepository, tickets ticketrepo.TicketRepository, cacheService Cache) RaffleService {
	return &raffleService{
		raffles: raffles,
		tickets: tickets,
		cache:   cacheService,
		now:     time.Now,
	}
}

// Create validates the input, enforces the single-active-raffle rule and
// materializes the full ticket grid. If the grid insert fails the raffle row
// is rolled back so no raffle ever exists without its tickets.
func (s *raffleService) Create(ctx context.Context, ownerID string, input *models.RaffleCreate) (*models.Raffle, error) {
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidationError("raffle", err.Error())
	}

	active, err := s.raffles.HasActiveRaffle(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check active raffle", err)
	}
	if active {
		return nil, apperrors.New(apperrors.ErrCodeActiveRaffle, "An active raffle already exists; complete it before creating another").
			WithDetail("owner_id", ownerID)
	}

	now := s.now()
	raffle := &models.Raffle{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Title:              input.Title,
		Description:        input.Description,
		PricePerTicket:     input.PricePerTicket,
		TotalTickets:       input.TotalTickets,
		WhatsApp:           input.WhatsApp,
		Status:             models.StatusActive,
		MercadoPagoToken:   input.MercadoPagoToken,
		MercadoPagoEnabled: input.MercadoPagoEnabled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.raffles.Create(ctx, raffle); err != nil {
		return nil, apperrors.NewDatabaseError("create raffle", err)
	}

	if err := s.tickets.CreateBatch(ctx, raffle.ID, raffle.TotalTickets); err != nil {
		if delErr := s.raffles.Delete(ctx, raffle.ID); delErr != nil {
			logger.Error().Err(delErr).Str("raffle_id", raffle.ID).
				Msg("Failed to roll back raffle after ticket grid creation failed")
		}
		return nil, apperrors.NewDatabaseError("create ticket grid", err)
	}

	logger.Info().
		Str("raffle_id", raffle.ID).
		Str("owner_id", ownerID).
		Int("total_tickets", raffle.TotalTickets).
		Msg("Raffle created")

	return raffle, nil
}

func (s *raffleService) GetByID(ctx context.Context, id string) (*models.Raffle, error) {
	return s.getRaffle(ctx, id)
}

// Update applies the owner-editable metadata fields. Ticket state and raffle
// status are out of reach here; status moves only through Complete.
func (s *raffleService) Update(ctx context.Context, ownerID, id string, update *models.RaffleUpdate) (*models.Raffle, error) {
	raffle, err := s.requireOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !raffle.Accepting() {
		return nil, apperrors.NewRaffleCompletedError(id)
	}

	if update.Title != nil {
		raffle.Title = *update.Title
	}
	if update.Description != nil {
		raffle.Description = *update.Description
	}
	if update.PricePerTicket != nil {
		if *update.PricePerTicket <= 0 {
			return nil, apperrors.NewValidationError("price_per_ticket", "must be greater than 0")
		}
		raffle.PricePerTicket = *update.PricePerTicket
	}
	if update.WhatsApp != nil {
		raffle.WhatsApp = *update.WhatsApp
	}
	if update.MercadoPagoToken != nil {
		raffle.MercadoPagoToken = *update.MercadoPagoToken
	}
	if update.MercadoPagoEnabled != nil {
		raffle.MercadoPagoEnabled = *update.MercadoPagoEnabled
	}
	raffle.UpdatedAt = s.now()

	if err := s.raffles.Update(ctx, raffle); err != nil {
		return nil, apperrors.NewDatabaseError("update raffle", err)
	}

	return raffle, nil
}

// Complete moves the raffle through the one-way active→completed gate. The
// transition is conditional at the store so concurrent completes cannot
// double-fire, and there is no way back.
func (s *raffleService) Complete(ctx context.Context, ownerID, id string) (*models.Raffle, error) {
	raffle, err := s.requireOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.raffles.UpdateStatusIf(ctx, id, models.StatusActive, models.StatusCompleted)
	if err != nil {
		return nil, apperrors.NewDatabaseError("complete raffle", err)
	}
	if !ok {
		return nil, apperrors.NewRaffleCompletedError(id)
	}

	raffle.Status = models.StatusCompleted
	raffle.UpdatedAt = s.now()

	s.invalidateStats(ctx, id)

	logger.Info().Str("raffle_id", id).Msg("Raffle completed")

	return raffle, nil
}

func (s *raffleService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.requireOwner(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.tickets.DeleteByRaffle(ctx, id); err != nil {
		return apperrors.NewDatabaseError("delete tickets", err)
	}
	if err := s.raffles.Delete(ctx, id); err != nil {
		return apperrors.NewDatabaseError("delete raffle", err)
	}

	s.invalidateStats(ctx, id)

	return nil
}

func (s *raffleService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Raffle, error) {
	raffles, err := s.raffles.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list raffles", err)
	}
	return raffles, nil
}

// Stats returns the per-status ticket counts, cached briefly; the grid view
// polls this on every load.
func (s *raffleService) Stats(ctx context.Context, id string) (*ticketmodels.StatusCounts, error) {
	key := statsCacheKey(id)

	var cached ticketmodels.StatusCounts
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	if _, err := s.getRaffle(ctx, id); err != nil {
		return nil, err
	}

	counts, err := s.tickets.CountByStatus(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count tickets", err)
	}

	if err := s.cache.Set(ctx, key, counts, statsCacheTTL); err != nil {
		logger.Warn().Err(err).Str("raffle_id", id).Msg("Failed to cache raffle stats")
	}

	return counts, nil
}

func (s *raffleService) requireOwner(ctx context.Context, ownerID, id string) (*models.Raffle, error) {
	raffle, err := s.getRaffle(ctx, id)
	if err != nil {
		return nil, err
	}
	if raffle.OwnerID != ownerID {
		return nil, apperrors.NewNotOwnerError(id)
	}
	return raffle, nil
}

func (s *raffleService) getRaffle(ctx context.Context, id string) (*models.Raffle, error) {
	raffle, err := s.raffles.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrRaffleNotFound {
			return nil, apperrors.NewRaffleNotFoundError(id)
		}
		return nil, apperrors.NewDatabaseError("get raffle", err)
	}
	return raffle, nil
}

func (s *raffleService) invalidateStats(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, statsCacheKey(id)); err != nil {
		logger.Warn().Err(err).Str("raffle_id", id).Msg("Failed to invalidate stats cache")
	}
}

func statsCacheKey(id string) string {
	return fmt.Sprintf("raffle_stats:%s", id)
}
