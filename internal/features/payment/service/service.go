package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
	"github.com/cvelasquez94/raffle-fast/internal/features/payment/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/payment/repository"
	rafflemodels "github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
	rafflerepo "github.com/cvelasquez94/raffle-fast/internal/features/raffle/repository"
	ticketmodels "github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	ticketrepo "github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

// Provider is the outbound payment boundary: create a link, look up payments.
// Both are opaque HTTP calls against the raffle owner's own credential.
type Provider interface {
	CreatePaymentLink(ctx context.Context, accessToken string, req models.LinkRequest) (*models.Link, error)
	SearchPayments(ctx context.Context, accessToken, preferenceID string) ([]models.Payment, error)
}

// PaymentService drives the payment-link and reconciliation flow. It is a
// polling design: settlement is only observed when the buyer returns to the
// application, and a paid-but-never-reconciled ticket simply stays reserved
// until its hold expires.
type PaymentService interface {
	RequestPaymentLink(ctx context.Context, clientID, raffleID string, numbers []int, buyer ticketmodels.BuyerInfo) (*LinkResult, error)
	Reconcile(ctx context.Context, clientID, raffleID string) (*models.ReconcileResult, error)
}

// LinkResult is the outcome of a payment-link request. Numbers lost to
// concurrent buyers between link creation and the conditional reserve are
// listed separately; reserved ones stand.
type LinkResult struct {
	PaymentLink  string `json:"payment_link"`
	PreferenceID string `json:"preference_id"`
	Reserved     []int  `json:"reserved_numbers"`
	Taken        []int  `json:"taken_numbers,omitempty"`
}

type paymentService struct {
	raffles       rafflerepo.RaffleRepository
	tickets       ticketrepo.TicketRepository
	markers       repository.MarkerRepository
	provider      Provider
	publicBaseURL string
	now           func() time.Time
}

func NewPaymentService(raffles rafflerepo.RaffleRepository, tickets ticketrepo.TicketRepository, markers repository.MarkerRepository, provider Provider, publicBaseURL string) PaymentService {
	return &paymentService{
		raffles:       raffles,
		tickets:       tickets,
		markers:       markers,
		provider:      provider,
		publicBaseURL: publicBaseURL,
		now:           time.Now,
	}
}

func (s *paymentService) RequestPaymentLink(ctx context.Context, clientID, raffleID string, numbers []int, buyer ticketmodels.BuyerInfo) (*LinkResult, error) {
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
	if !raffle.PaymentConfigured() {
		return nil, apperrors.NewPaymentDisabledError(raffleID)
	}

	sort.Ints(numbers)

	link, err := s.provider.CreatePaymentLink(ctx, raffle.MercadoPagoToken, models.LinkRequest{
		Title:             raffle.Title,
		Description:       linkDescription(raffle.Title, numbers),
		Quantity:          len(numbers),
		UnitPrice:         raffle.PricePerTicket,
		ExternalReference: externalReference(raffleID, numbers),
		BuyerEmail:        buyer.Email,
		BuyerName:         buyer.Name,
		BackURLs:          s.backURLs(raffleID),
	})
	if err != nil {
		return nil, apperrors.NewPaymentProviderError("create payment link", err)
	}

	result := &LinkResult{
		PaymentLink:  link.URL,
		PreferenceID: link.PreferenceID,
	}

	// Same conditional reserve as the plain flow, with the payment link and
	// provider reference stamped onto each ticket row.
	now := s.now()
	for _, number := range numbers {
		ok, err := s.reserveForPayment(ctx, raffleID, number, buyer, now, link)
		if err != nil {
			return result, err
		}
		if ok {
			result.Reserved = append(result.Reserved, number)
		} else {
			result.Taken = append(result.Taken, number)
		}
	}

	if len(result.Reserved) == 0 {
		return result, apperrors.NewPartialReservationError(nil, result.Taken)
	}

	marker := &models.Marker{
		RaffleID:     raffleID,
		Numbers:      result.Reserved,
		PreferenceID: link.PreferenceID,
		CreatedAt:    now,
	}
	if err := s.markers.Set(ctx, clientID, marker); err != nil {
		// The reservation and the stamped payment reference survive; the
		// owner can still confirm the sale manually, so don't fail the
		// request over a lost marker.
		logger.Error().Err(err).Str("raffle_id", raffleID).Msg("Failed to persist pending payment marker")
	}

	if len(result.Taken) > 0 {
		return result, apperrors.NewPartialReservationError(result.Reserved, result.Taken)
	}

	return result, nil
}

func (s *paymentService) reserveForPayment(ctx context.Context, raffleID string, number int, buyer ticketmodels.BuyerInfo, now time.Time, link *models.Link) (bool, error) {
	ticket, err := s.tickets.GetByNumber(ctx, raffleID, number)
	if err != nil {
		if err == ticketrepo.ErrTicketNotFound {
			return false, apperrors.NewTicketNotFoundError(fmt.Sprintf("%s#%d", raffleID, number))
		}
		return false, apperrors.NewDatabaseError("get ticket", err)
	}

	// Free a lapsed hold first so the conditional write below can win it.
	if ticket.Expired(now) {
		if _, err := s.tickets.UpdateStatus(ctx, raffleID, number, ticketmodels.StatusReserved, ticketmodels.AvailableUpdate()); err != nil {
			return false, apperrors.NewDatabaseError("release expired reservation", err)
		}
	} else if ticket.Status != ticketmodels.StatusAvailable {
		return false, nil
	}

	update := ticketmodels.ReservedForPaymentUpdate(buyer, now, link.URL, link.PreferenceID)
	ok, err := s.tickets.UpdateStatus(ctx, raffleID, number, ticketmodels.StatusAvailable, update)
	if err != nil {
		return false, apperrors.NewDatabaseError("reserve ticket for payment", err)
	}

	return ok, nil
}

// Reconcile runs once per application load when a marker exists for the
// current raffle. Provider hiccups leave the marker in place and report
// pending; the next load retries.
func (s *paymentService) Reconcile(ctx context.Context, clientID, raffleID string) (*models.ReconcileResult, error) {
	marker, err := s.markers.Get(ctx, clientID)
	if err != nil {
		if err == models.ErrNoMarker {
			return &models.ReconcileResult{Outcome: models.OutcomeNone}, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "Failed to load pending payment marker")
	}

	// A marker for another raffle is left alone; it reconciles when the
	// buyer returns to that raffle.
	if marker.RaffleID != raffleID {
		return &models.ReconcileResult{Outcome: models.OutcomeNone}, nil
	}

	now := s.now()
	if marker.Expired(now) {
		s.clearMarker(ctx, clientID)
		return &models.ReconcileResult{Outcome: models.OutcomeNone}, nil
	}

	raffle, err := s.getRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if raffle.MercadoPagoToken == "" {
		s.clearMarker(ctx, clientID)
		return &models.ReconcileResult{Outcome: models.OutcomeNone}, nil
	}

	payments, err := s.provider.SearchPayments(ctx, raffle.MercadoPagoToken, marker.PreferenceID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("raffle_id", raffleID).
			Str("preference_id", marker.PreferenceID).
			Msg("Payment lookup failed; will retry on next load")
		return &models.ReconcileResult{Outcome: models.OutcomePending, Numbers: marker.Numbers}, nil
	}

	if anySettled(payments) {
		s.promoteToSold(ctx, marker, now)
		s.clearMarker(ctx, clientID)
		return &models.ReconcileResult{Outcome: models.OutcomeSettled, Numbers: marker.Numbers}, nil
	}

	if anyTerminalFailure(payments) {
		// Tickets stay reserved until their natural expiry; only the marker
		// is dropped.
		s.clearMarker(ctx, clientID)
		return &models.ReconcileResult{Outcome: models.OutcomeFailed, Numbers: marker.Numbers}, nil
	}

	return &models.ReconcileResult{Outcome: models.OutcomePending, Numbers: marker.Numbers}, nil
}

func (s *paymentService) promoteToSold(ctx context.Context, marker *models.Marker, now time.Time) {
	for _, number := range marker.Numbers {
		ticket, err := s.tickets.GetByNumber(ctx, marker.RaffleID, number)
		if err != nil {
			logger.Error().Err(err).Str("raffle_id", marker.RaffleID).Int("number", number).
				Msg("Failed to load ticket during settlement")
			continue
		}

		update := ticket.SoldUpdate(now, string(models.PaymentStatusApproved))
		ok, err := s.tickets.UpdateStatus(ctx, marker.RaffleID, number, ticketmodels.StatusReserved, update)
		if err != nil {
			logger.Error().Err(err).Str("raffle_id", marker.RaffleID).Int("number", number).
				Msg("Failed to promote ticket to sold")
			continue
		}
		if !ok {
			logger.Warn().Str("raffle_id", marker.RaffleID).Int("number", number).
				Msg("Ticket was not reserved at settlement time")
		}
	}
}

func (s *paymentService) clearMarker(ctx context.Context, clientID string) {
	if err := s.markers.Clear(ctx, clientID); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear pending payment marker")
	}
}

func (s *paymentService) getRaffle(ctx context.Context, raffleID string) (*rafflemodels.Raffle, error) {
	raffle, err := s.raffles.GetByID(ctx, raffleID)
	if err != nil {
		if err == rafflerepo.ErrRaffleNotFound {
			return nil, apperrors.NewRaffleNotFoundError(raffleID)
		}
		return nil, apperrors.NewDatabaseError("get raffle", err)
	}
	return raffle, nil
}

func (s *paymentService) backURLs(raffleID string) *models.BackURLs {
	if s.publicBaseURL == "" {
		return nil
	}

	base := strings.TrimSuffix(s.publicBaseURL, "/") + "/raffles/" + raffleID
	return &models.BackURLs{
		Success: base + "?payment=success",
		Failure: base + "?payment=failure",
		Pending: base + "?payment=pending",
	}
}

func anySettled(payments []models.Payment) bool {
	for _, p := range payments {
		if p.Status.Settled() {
			return true
		}
	}
	return false
}

func anyTerminalFailure(payments []models.Payment) bool {
	for _, p := range payments {
		if p.Status.TerminalFailure() {
			return true
		}
	}
	return false
}

// externalReference uniquely encodes the raffle and ticket numbers a payment
// is for, e.g. "a1b2:3,7,12".
func externalReference(raffleID string, numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return raffleID + ":" + strings.Join(parts, ",")
}

func linkDescription(title string, numbers []int) string {
	if len(numbers) == 1 {
		return fmt.Sprintf("Número %d de la rifa \"%s\"", numbers[0], title)
	}

	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("Números %s de la rifa \"%s\"", strings.Join(parts, ", "), title)
}
