package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	apperrors "github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
	rafflemodels "github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
	rafflerepo "github.com/cvelasquez94/raffle-fast/internal/features/raffle/repository"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

// TicketService is the reservation engine plus the owner-only status
// authority. All correctness-critical concurrency is delegated to the ticket
// store's conditional writes; the service itself holds no locks.
type TicketService interface {
	List(ctx context.Context, raffleID string) ([]*models.Ticket, error)
	Get(ctx context.Context, raffleID string, number int) (*models.Ticket, error)

	Reserve(ctx context.Context, raffleID string, number int, buyer models.BuyerInfo) (*ReservationResult, error)
	ReserveBatch(ctx context.Context, raffleID string, numbers []int, buyer models.BuyerInfo) (*BatchReservationResult, error)

	Cancel(ctx context.Context, userID, raffleID string, number int) (*models.Ticket, error)
	ConfirmSale(ctx context.Context, userID, raffleID string, number int) (*models.Ticket, error)
	ForceStatus(ctx context.Context, userID, raffleID string, number int, status models.Status, buyer models.BuyerInfo) (*models.Ticket, error)
}

// ReservationResult carries the reserved ticket and the WhatsApp handoff link
// for the caller to open.
type ReservationResult struct {
	Ticket       *models.Ticket `json:"ticket"`
	WhatsAppLink string         `json:"whatsapp_link"`
}

// BatchReservationResult enumerates the outcome of a best-effort bulk
// reservation. Reserved numbers stand even when others were lost; there is no
// cross-ticket rollback.
type BatchReservationResult struct {
	Reserved     []int            `json:"reserved_numbers"`
	Taken        []int            `json:"taken_numbers,omitempty"`
	Tickets      []*models.Ticket `json:"tickets"`
	WhatsAppLink string           `json:"whatsapp_link,omitempty"`
}

type ticketService struct {
	tickets repository.TicketRepository
	raffles rafflerepo.RaffleRepository
	now     func() time.Time
}

func NewTicketService(tickets repository.TicketRepository, raffles rafflerepo.RaffleRepository) TicketService {
	return &ticketService{
		tickets: tickets,
		raffles: raffles,
		now:     time.Now,
	}
}

func (s *ticketService) getRaffle(ctx context.Context, raffleID string) (*rafflemodels.Raffle, error) {
	raffle, err := s.raffles.GetByID(ctx, raffleID)
	if err != nil {
		if err == rafflerepo.ErrRaffleNotFound {
			return nil, apperrors.NewRaffleNotFoundError(raffleID)
		}
		return nil, apperrors.NewDatabaseError("get raffle", err)
	}
	return raffle, nil
}

// List returns every ticket of the raffle. Reserved tickets whose hold has
// lapsed are reverted to available on the way out: the store row is rewritten
// with a conditional update so a concurrent promotion to sold is never
// clobbered.
func (s *ticketService) List(ctx context.Context, raffleID string) ([]*models.Ticket, error) {
	if _, err := s.getRaffle(ctx, raffleID); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListByRaffle(ctx, raffleID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list tickets", err)
	}

	now := s.now()
	for i, t := range tickets {
		if t.Expired(now) {
			tickets[i] = s.releaseExpired(ctx, t)
		}
	}

	return tickets, nil
}

func (s *ticketService) Get(ctx context.Context, raffleID string, number int) (*models.Ticket, error) {
	if _, err := s.getRaffle(ctx, raffleID); err != nil {
		return nil, err
	}

	ticket, err := s.loadTicket(ctx, raffleID, number)
	if err != nil {
		return nil, err
	}

	if ticket.Expired(s.now()) {
		ticket = s.releaseExpired(ctx, ticket)
	}

	return ticket, nil
}

func (s *ticketService) loadTicket(ctx context.Context, raffleID string, number int) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, raffleID, number)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return nil, apperrors.NewTicketNotFoundError(ticketRef(raffleID, number))
		}
		return nil, apperrors.NewDatabaseError("get ticket", err)
	}
	return ticket, nil
}

// releaseExpired lazily rewrites an expired reservation back to available.
// Losing the conditional write here is fine; it means someone else already
// moved the ticket on, and the fresh state is re-read.
func (s *ticketService) releaseExpired(ctx context.Context, ticket *models.Ticket) *models.Ticket {
	ok, err := s.tickets.UpdateStatus(ctx, ticket.RaffleID, ticket.Number, models.StatusReserved, models.AvailableUpdate())
	if err != nil {
		logger.Warn().
			Err(err).
			Str("raffle_id", ticket.RaffleID).
			Int("number", ticket.Number).
			Msg("Failed to release expired reservation")
		return ticket
	}

	fresh, err := s.tickets.GetByNumber(ctx, ticket.RaffleID, ticket.Number)
	if err != nil {
		if ok {
			cleared := *ticket
			cleared.Status = models.StatusAvailable
			cleared.BuyerName, cleared.BuyerEmail, cleared.BuyerPhone = "", "", ""
			cleared.ReservedAt, cleared.ReservedUntil, cleared.SoldAt = nil, nil, nil
			cleared.PaymentLink, cleared.PaymentReference, cleared.PaymentStatus = "", "", ""
			return &cleared
		}
		return ticket
	}

	return fresh
}

// Reserve transitions one ticket available→reserved. At most one concurrent
// attempt can succeed: the store applies the write only if the row is still
// available, and a zero-row result means the race was lost.
func (s *ticketService) Reserve(ctx context.Context, raffleID string, number int, buyer models.BuyerInfo) (*ReservationResult, error) {
	if err := buyer.Validate(); err != nil {
		return nil, apperrors.NewValidationError("name", "buyer name is required")
	}

	raffle, err := s.getRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if !raffle.Accepting() {
		return nil, apperrors.NewRaffleCompletedError(raffleID)
	}

	ticket, err := s.reserveOne(ctx, raffle, number, buyer)
	if err != nil {
		return nil, err
	}

	return &ReservationResult{
		Ticket:       ticket,
		WhatsAppLink: whatsappLink(raffle.WhatsApp, reservationMessage(raffle.Title, []int{number})),
	}, nil
}

func (s *ticketService) reserveOne(ctx context.Context, raffle *rafflemodels.Raffle, number int, buyer models.BuyerInfo) (*models.Ticket, error) {
	ticket, err := s.loadTicket(ctx, raffle.ID, number)
	if err != nil {
		return nil, err
	}

	// A lapsed reservation is logically available; free it before racing
	// for it like everyone else.
	if ticket.Expired(s.now()) {
		ticket = s.releaseExpired(ctx, ticket)
	}

	if ticket.Status != models.StatusAvailable {
		return nil, apperrors.NewTicketTakenError(ticketRef(raffle.ID, number))
	}

	now := s.now()
	ok, err := s.tickets.UpdateStatus(ctx, raffle.ID, number, models.StatusAvailable, models.ReservedUpdate(buyer, now))
	if err != nil {
		return nil, apperrors.NewDatabaseError("reserve ticket", err)
	}
	if !ok {
		// Another buyer won between our read and the conditional write.
		return nil, apperrors.NewTicketTakenError(ticketRef(raffle.ID, number))
	}

	logger.Info().
		Str("raffle_id", raffle.ID).
		Int("number", number).
		Msg("Ticket reserved")

	return s.loadTicket(ctx, raffle.ID, number)
}

// ReserveBatch fires one independently guarded conditional write per number.
// Partial success is expected under contention and is reported, not rolled
// back.
func (s *ticketService) ReserveBatch(ctx context.Context, raffleID string, numbers []int, buyer models.BuyerInfo) (*BatchReservationResult, error) {
	if err := buyer.Validate(); err != nil {
		return nil, apperrors.NewValidationError("name", "buyer name is required")
	}
	if len(numbers) == 0 {
		return nil, apperrors.NewValidationError("numbers", "at least one ticket number is required")
	}

	raffle, err := s.getRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if !raffle.Accepting() {
		return nil, apperrors.NewRaffleCompletedError(raffleID)
	}

	result := &BatchReservationResult{}
	for _, number := range numbers {
		ticket, err := s.reserveOne(ctx, raffle, number, buyer)
		if err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeTicketTaken {
				result.Taken = append(result.Taken, number)
				continue
			}
			// Infrastructure failure mid-batch: report what happened so far
			// alongside the error. Reserved tickets stand regardless.
			return result, err
		}
		result.Reserved = append(result.Reserved, number)
		result.Tickets = append(result.Tickets, ticket)
	}

	sort.Ints(result.Reserved)
	sort.Ints(result.Taken)

	if len(result.Reserved) > 0 {
		result.WhatsAppLink = whatsappLink(raffle.WhatsApp, reservationMessage(raffle.Title, result.Reserved))
	}

	if len(result.Taken) > 0 {
		return result, apperrors.NewPartialReservationError(result.Reserved, result.Taken)
	}

	return result, nil
}

// Cancel is the owner's reserved→available rollback. It clears every buyer,
// timestamp and payment field and needs no concurrency guard.
func (s *ticketService) Cancel(ctx context.Context, userID, raffleID string, number int) (*models.Ticket, error) {
	raffle, err := s.requireOwner(ctx, userID, raffleID)
	if err != nil {
		return nil, err
	}
	if !raffle.Accepting() {
		return nil, apperrors.NewRaffleCompletedError(raffleID)
	}

	if _, err := s.loadTicket(ctx, raffleID, number); err != nil {
		return nil, err
	}

	if _, err := s.tickets.UpdateStatus(ctx, raffleID, number, "", models.AvailableUpdate()); err != nil {
		return nil, apperrors.NewDatabaseError("cancel reservation", err)
	}

	return s.loadTicket(ctx, raffleID, number)
}

// ConfirmSale is the owner marking a reserved ticket as paid outside the
// payment provider flow.
func (s *ticketService) ConfirmSale(ctx context.Context, userID, raffleID string, number int) (*models.Ticket, error) {
	raffle, err := s.requireOwner(ctx, userID, raffleID)
	if err != nil {
		return nil, err
	}
	if !raffle.Accepting() {
		return nil, apperrors.NewRaffleCompletedError(raffleID)
	}

	ticket, err := s.loadTicket(ctx, raffleID, number)
	if err != nil {
		return nil, err
	}

	if _, err := s.tickets.UpdateStatus(ctx, raffleID, number, "", ticket.SoldUpdate(s.now(), ticket.PaymentStatus)); err != nil {
		return nil, apperrors.NewDatabaseError("confirm sale", err)
	}

	return s.loadTicket(ctx, raffleID, number)
}

// ForceStatus lets the owner push a ticket into any state, overriding
// buyer-driven transitions. Field presence still follows the target status,
// so even overrides cannot produce an illegal row.
func (s *ticketService) ForceStatus(ctx context.Context, userID, raffleID string, number int, status models.Status, buyer models.BuyerInfo) (*models.Ticket, error) {
	raffle, err := s.requireOwner(ctx, userID, raffleID)
	if err != nil {
		return nil, err
	}
	if !raffle.Accepting() {
		return nil, apperrors.NewRaffleCompletedError(raffleID)
	}

	if _, err := s.loadTicket(ctx, raffleID, number); err != nil {
		return nil, err
	}

	update, err := models.ForcedUpdate(status, buyer, s.now())
	if err != nil {
		return nil, apperrors.NewValidationError("status", "must be one of available, reserved, sold")
	}

	if _, err := s.tickets.UpdateStatus(ctx, raffleID, number, "", update); err != nil {
		return nil, apperrors.NewDatabaseError("force ticket status", err)
	}

	logger.Info().
		Str("raffle_id", raffleID).
		Int("number", number).
		Str("status", string(status)).
		Msg("Ticket status forced by owner")

	return s.loadTicket(ctx, raffleID, number)
}

func (s *ticketService) requireOwner(ctx context.Context, userID, raffleID string) (*rafflemodels.Raffle, error) {
	raffle, err := s.getRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if raffle.OwnerID != userID {
		return nil, apperrors.NewNotOwnerError(raffleID)
	}
	return raffle, nil
}

func ticketRef(raffleID string, number int) string {
	return raffleID + "#" + strconv.Itoa(number)
}
