package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/features/payment/models"
	rafflemodels "github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
	rafflerepo "github.com/cvelasquez94/raffle-fast/internal/features/raffle/repository"
	ticketmodels "github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	ticketrepo "github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[int]*ticketmodels.Ticket
}

func newFakeTickets(total int) *fakeTickets {
	f := &fakeTickets{tickets: make(map[int]*ticketmodels.Ticket, total)}
	for n := 1; n <= total; n++ {
		f.tickets[n] = &ticketmodels.Ticket{RaffleID: testRaffleID, Number: n, Status: ticketmodels.StatusAvailable}
	}
	return f
}

func (f *fakeTickets) CreateBatch(context.Context, string, int) error { return nil }

func (f *fakeTickets) GetByNumber(_ context.Context, _ string, number int) (*ticketmodels.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[number]
	if !ok {
		return nil, ticketrepo.ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTickets) ListByRaffle(context.Context, string) ([]*ticketmodels.Ticket, error) {
	return nil, nil
}

func (f *fakeTickets) CountByStatus(context.Context, string) (*ticketmodels.StatusCounts, error) {
	return &ticketmodels.StatusCounts{}, nil
}

func (f *fakeTickets) UpdateStatus(_ context.Context, _ string, number int, expected ticketmodels.Status, update ticketmodels.Update) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[number]
	if !ok {
		return false, ticketrepo.ErrTicketNotFound
	}
	if expected != "" && t.Status != expected {
		return false, nil
	}
	t.Status = update.Status
	t.BuyerName = update.BuyerName
	t.BuyerEmail = update.BuyerEmail
	t.BuyerPhone = update.BuyerPhone
	t.ReservedAt = update.ReservedAt
	t.ReservedUntil = update.ReservedUntil
	t.SoldAt = update.SoldAt
	t.PaymentLink = update.PaymentLink
	t.PaymentReference = update.PaymentReference
	t.PaymentStatus = update.PaymentStatus
	return true, nil
}

func (f *fakeTickets) ReleaseExpired(context.Context, time.Time) (int, error) { return 0, nil }
func (f *fakeTickets) DeleteByRaffle(context.Context, string) error           { return nil }

type fakeRaffles struct {
	raffle *rafflemodels.Raffle
}

func (f *fakeRaffles) Create(context.Context, *rafflemodels.Raffle) error { return nil }

func (f *fakeRaffles) GetByID(_ context.Context, id string) (*rafflemodels.Raffle, error) {
	if f.raffle == nil || f.raffle.ID != id {
		return nil, rafflerepo.ErrRaffleNotFound
	}
	copied := *f.raffle
	return &copied, nil
}

func (f *fakeRaffles) Update(context.Context, *rafflemodels.Raffle) error { return nil }
func (f *fakeRaffles) Delete(context.Context, string) error               { return nil }

func (f *fakeRaffles) ListByOwner(context.Context, string) ([]*rafflemodels.Raffle, error) {
	return nil, nil
}

func (f *fakeRaffles) HasActiveRaffle(context.Context, string) (bool, error) { return false, nil }

func (f *fakeRaffles) UpdateStatusIf(context.Context, string, rafflemodels.Status, rafflemodels.Status) (bool, error) {
	return true, nil
}

type fakeMarkers struct {
	mu      sync.Mutex
	markers map[string]*models.Marker
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{markers: make(map[string]*models.Marker)}
}

func (f *fakeMarkers) Get(_ context.Context, clientID string) (*models.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markers[clientID]
	if !ok {
		return nil, models.ErrNoMarker
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMarkers) Set(_ context.Context, clientID string, marker *models.Marker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *marker
	f.markers[clientID] = &copied
	return nil
}

func (f *fakeMarkers) Clear(_ context.Context, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.markers, clientID)
	return nil
}

type fakeProvider struct {
	link      *models.Link
	linkErr   error
	payments  []models.Payment
	searchErr error

	lastRequest *models.LinkRequest
}

func (f *fakeProvider) CreatePaymentLink(_ context.Context, _ string, req models.LinkRequest) (*models.Link, error) {
	f.lastRequest = &req
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return f.link, nil
}

func (f *fakeProvider) SearchPayments(context.Context, string, string) ([]models.Payment, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.payments, nil
}

const (
	testRaffleID = "raffle-1"
	testClientID = "device-1"
)

type fixture struct {
	svc      *paymentService
	tickets  *fakeTickets
	raffles  *fakeRaffles
	markers  *fakeMarkers
	provider *fakeProvider
}

func newFixture(publicBaseURL string) *fixture {
	tickets := newFakeTickets(10)
	raffles := &fakeRaffles{raffle: &rafflemodels.Raffle{
		ID:                 testRaffleID,
		OwnerID:            "owner-1",
		Title:              "Rifa del club",
		PricePerTicket:     1500,
		TotalTickets:       10,
		WhatsApp:           "5491122334455",
		Status:             rafflemodels.StatusActive,
		MercadoPagoToken:   "APP_USR-token",
		MercadoPagoEnabled: true,
	}}
	markers := newFakeMarkers()
	provider := &fakeProvider{link: &models.Link{URL: "https://mp.example/init", PreferenceID: "pref-1"}}

	svc := NewPaymentService(raffles, tickets, markers, provider, publicBaseURL).(*paymentService)
	return &fixture{svc: svc, tickets: tickets, raffles: raffles, markers: markers, provider: provider}
}

func testBuyer() ticketmodels.BuyerInfo {
	return ticketmodels.BuyerInfo{Name: "Ana", Email: "ana@example.com"}
}

func TestRequestPaymentLink(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture("")

		result, err := f.svc.RequestPaymentLink(ctx, testClientID, testRaffleID, []int{3, 7}, testBuyer())

		require.NoError(t, err)
		assert.Equal(t, "https://mp.example/init", result.PaymentLink)
		assert.Equal(t, []int{3, 7}, result.Reserved)
		assert.Empty(t, result.Taken)

		// Tickets carry the link and the provider reference.
		ticket, err := f.tickets.GetByNumber(ctx, testRaffleID, 3)
		require.NoError(t, err)
		assert.Equal(t, ticketmodels.StatusReserved, ticket.Status)
		assert.Equal(t, "https://mp.example/init", ticket.PaymentLink)
		assert.Equal(t, "pref-1", ticket.PaymentReference)

		marker, err := f.markers.Get(ctx, testClientID)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 7}, marker.Numbers)
		assert.Equal(t, "pref-1", marker.PreferenceID)

		// No public address, no return URLs.
		require.NotNil(t, f.provider.lastRequest)
		assert.Nil(t, f.provider.lastRequest.BackURLs)
		assert.Equal(t, 2, f.provider.lastRequest.Quantity)
		assert.Equal(t, 1500.0, f.provider.lastRequest.UnitPrice)
	})

	t.Run("Back URLs With Public Address", func(t *testing.T) {
		f := newFixture("https://rifas.example")

		_, err := f.svc.RequestPaymentLink(ctx, testClientID, testRaffleID, []int{3}, testBuyer())

		require.NoError(t, err)
		require.NotNil(t, f.provider.lastRequest.BackURLs)
		assert.Equal(t, "https://rifas.example/raffles/raffle-1?payment=success", f.provider.lastRequest.BackURLs.Success)
		assert.Equal(t, "https://rifas.example/raffles/raffle-1?payment=failure", f.provider.lastRequest.BackURLs.Failure)
	})

	t.Run("Payments Not Configured", func(t *testing.T) {
		f := newFixture("")
		f.raffles.raffle.MercadoPagoEnabled = false

		_, err := f.svc.RequestPaymentLink(ctx, testClientID, testRaffleID, []int{3}, testBuyer())

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodePaymentDisabled, appErr.Code)
	})

	t.Run("Completed Raffle", func(t *testing.T) {
		f := newFixture("")
		f.raffles.raffle.Status = rafflemodels.StatusCompleted

		_, err := f.svc.RequestPaymentLink(ctx, testClientID, testRaffleID, []int{3}, testBuyer())

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeRaffleCompleted, appErr.Code)
	})

	t.Run("Provider Failure", func(t *testing.T) {
		f := newFixture("")
		f.provider.linkErr = errors.New("upstream down")

		_, err := f.svc.RequestPaymentLink(ctx, testClientID, testRaffleID, []int{3}, testBuyer())

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodePaymentProvider, appErr.Code)

		// Nothing was reserved and no marker was stored.
		ticket, err := f.tickets.GetByNumber(ctx, testRaffleID, 3)
		require.NoError(t, err)
		assert.Equal(t, ticketmodels.StatusAvailable, ticket.Status)
		_, err = f.markers.Get(ctx, testClientID)
		assert.Equal(t, models.ErrNoMarker, err)
	})

	t.Run("Partial Reservation", func(t *testing.T) {
		f := newFixture("")

		_, err := f.tickets.UpdateStatus(ctx, testRaffleID, 7, ticketmodels.StatusAvailable,
			ticketmodels.ReservedUpdate(ticketmodels.BuyerInfo{Name: "Beto"}, time.Now()))
		require.NoError(t, err)

		result, err := f.svc.RequestPaymentLink(ctx, testClientID, testRaffleID, []int{3, 7}, testBuyer())

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodePartialReservation, appErr.Code)
		assert.Equal(t, []int{3}, result.Reserved)
		assert.Equal(t, []int{7}, result.Taken)

		// The marker only covers what was actually reserved.
		marker, err := f.markers.Get(ctx, testClientID)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, marker.Numbers)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	reserveForPaymentNumbers := func(t *testing.T, f *fixture, numbers []int) {
		t.Helper()
		now := time.Now()
		for _, n := range numbers {
			ok, err := f.tickets.UpdateStatus(ctx, testRaffleID, n, ticketmodels.StatusAvailable,
				ticketmodels.ReservedForPaymentUpdate(testBuyer(), now, "https://mp.example/init", "pref-1"))
			require.NoError(t, err)
			require.True(t, ok)
		}
	}

	setMarker := func(t *testing.T, f *fixture, numbers []int, createdAt time.Time) {
		t.Helper()
		require.NoError(t, f.markers.Set(ctx, testClientID, &models.Marker{
			RaffleID:     testRaffleID,
			Numbers:      numbers,
			PreferenceID: "pref-1",
			CreatedAt:    createdAt,
		}))
	}

	t.Run("No Marker", func(t *testing.T) {
		f := newFixture("")

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeNone, result.Outcome)
	})

	t.Run("Marker For Another Raffle Is Kept", func(t *testing.T) {
		f := newFixture("")
		require.NoError(t, f.markers.Set(ctx, testClientID, &models.Marker{
			RaffleID: "other", Numbers: []int{1}, PreferenceID: "pref-x", CreatedAt: time.Now(),
		}))

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeNone, result.Outcome)
		_, err = f.markers.Get(ctx, testClientID)
		assert.NoError(t, err)
	})

	t.Run("Expired Marker Skips Provider", func(t *testing.T) {
		f := newFixture("")
		f.provider.searchErr = errors.New("should not be called")
		setMarker(t, f, []int{3}, time.Now().Add(-25*time.Hour))

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeNone, result.Outcome)
		_, err = f.markers.Get(ctx, testClientID)
		assert.Equal(t, models.ErrNoMarker, err)
	})

	t.Run("Settled Promotes Tickets", func(t *testing.T) {
		f := newFixture("")
		reserveForPaymentNumbers(t, f, []int{3, 7})
		setMarker(t, f, []int{3, 7}, time.Now())
		f.provider.payments = []models.Payment{
			{ID: "p1", Status: models.PaymentStatusRejected},
			{ID: "p2", Status: models.PaymentStatusApproved},
		}

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSettled, result.Outcome)
		assert.Equal(t, []int{3, 7}, result.Numbers)

		for _, n := range []int{3, 7} {
			ticket, err := f.tickets.GetByNumber(ctx, testRaffleID, n)
			require.NoError(t, err)
			assert.Equal(t, ticketmodels.StatusSold, ticket.Status)
			assert.Equal(t, "Ana", ticket.BuyerName)
			assert.Equal(t, string(models.PaymentStatusApproved), ticket.PaymentStatus)
			assert.NotNil(t, ticket.SoldAt)
		}

		_, err = f.markers.Get(ctx, testClientID)
		assert.Equal(t, models.ErrNoMarker, err)
	})

	t.Run("Terminal Failure Leaves Tickets Reserved", func(t *testing.T) {
		f := newFixture("")
		reserveForPaymentNumbers(t, f, []int{3})
		setMarker(t, f, []int{3}, time.Now())
		f.provider.payments = []models.Payment{{ID: "p1", Status: models.PaymentStatusRejected}}

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeFailed, result.Outcome)

		ticket, err := f.tickets.GetByNumber(ctx, testRaffleID, 3)
		require.NoError(t, err)
		assert.Equal(t, ticketmodels.StatusReserved, ticket.Status)

		_, err = f.markers.Get(ctx, testClientID)
		assert.Equal(t, models.ErrNoMarker, err)
	})

	t.Run("Pending Keeps Marker", func(t *testing.T) {
		f := newFixture("")
		reserveForPaymentNumbers(t, f, []int{3})
		setMarker(t, f, []int{3}, time.Now())
		f.provider.payments = []models.Payment{{ID: "p1", Status: models.PaymentStatusInProcess}}

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomePending, result.Outcome)
		_, err = f.markers.Get(ctx, testClientID)
		assert.NoError(t, err)
	})

	t.Run("Provider Failure Reports Pending", func(t *testing.T) {
		f := newFixture("")
		reserveForPaymentNumbers(t, f, []int{3})
		setMarker(t, f, []int{3}, time.Now())
		f.provider.searchErr = errors.New("upstream down")

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomePending, result.Outcome)
		_, err = f.markers.Get(ctx, testClientID)
		assert.NoError(t, err)
	})

	t.Run("Settled Approves Only Reserved Rows", func(t *testing.T) {
		f := newFixture("")
		reserveForPaymentNumbers(t, f, []int{3})
		// Number 5 was never reserved for this payment; settlement must not
		// touch it.
		setMarker(t, f, []int{3, 5}, time.Now())
		f.provider.payments = []models.Payment{{ID: "p1", Status: models.PaymentStatusApproved}}

		result, err := f.svc.Reconcile(ctx, testClientID, testRaffleID)

		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSettled, result.Outcome)

		sold, err := f.tickets.GetByNumber(ctx, testRaffleID, 3)
		require.NoError(t, err)
		assert.Equal(t, ticketmodels.StatusSold, sold.Status)

		untouched, err := f.tickets.GetByNumber(ctx, testRaffleID, 5)
		require.NoError(t, err)
		assert.Equal(t, ticketmodels.StatusAvailable, untouched.Status)
	})
}
