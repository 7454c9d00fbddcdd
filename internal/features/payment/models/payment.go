package models

import (
	"errors"
	"time"
)

var ErrNoMarker = errors.New("no pending payment marker")

// MarkerTTL is how long a pending-payment marker stays actionable. After
// that the buyer's reservation has expired anyway and the marker is dropped
// without contacting the provider.
const MarkerTTL = 24 * time.Hour

// PaymentStatus is the provider-side state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInProcess PaymentStatus = "in_process"
)

// Settled reports whether the payment went through.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusApproved
}

// TerminalFailure reports whether the payment can no longer succeed.
func (s PaymentStatus) TerminalFailure() bool {
	return s == PaymentStatusRejected || s == PaymentStatusCancelled
}

// Payment is one payment record returned by the provider lookup.
type Payment struct {
	ID     string        `json:"id"`
	Status PaymentStatus `json:"status"`
}

// LinkRequest is the provider-agnostic payment-link request.
type LinkRequest struct {
	Title             string
	Description       string
	Quantity          int
	UnitPrice         float64
	ExternalReference string
	BuyerEmail        string
	BuyerName         string

	// BackURLs are omitted entirely when the service has no publicly
	// reachable address; the provider cannot call back into localhost.
	BackURLs *BackURLs
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

// Link is the provider's answer to a link request.
type Link struct {
	URL          string `json:"payment_link"`
	PreferenceID string `json:"preference_id"`
}

// Marker is the pending-payment record persisted between handing the buyer
// to the provider and their return to the application. One slot per client
// and raffle; no cross-device reconciliation is attempted.
type Marker struct {
	RaffleID     string    `json:"raffle_id"`
	Numbers      []int     `json:"numbers"`
	PreferenceID string    `json:"preference_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (m *Marker) Expired(now time.Time) bool {
	return now.Sub(m.CreatedAt) > MarkerTTL
}

// ReconcileOutcome is the result of one reconciliation pass.
type ReconcileOutcome string

const (
	// OutcomeSettled: a settled payment was found, tickets were promoted to
	// sold and the marker was cleared.
	OutcomeSettled ReconcileOutcome = "settled"
	// OutcomeFailed: the payment terminally failed; tickets stay reserved
	// until their natural expiry, the marker was cleared.
	OutcomeFailed ReconcileOutcome = "failed"
	// OutcomePending: nothing conclusive yet; the marker stays and the next
	// load retries.
	OutcomePending ReconcileOutcome = "pending"
	// OutcomeNone: there was no actionable marker.
	OutcomeNone ReconcileOutcome = "none"
)

// ReconcileResult reports a reconciliation pass to the caller.
type ReconcileResult struct {
	Outcome ReconcileOutcome `json:"outcome"`
	Numbers []int            `json:"numbers,omitempty"`
}
