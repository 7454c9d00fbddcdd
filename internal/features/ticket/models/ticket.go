package models

import (
	"errors"
	"time"
)

var (
	ErrMissingBuyerName = errors.New("buyer name is required")
	ErrInvalidStatus    = errors.New("invalid ticket status")
)

// Status is the lifecycle state of a numbered ticket. It is a closed set;
// every consumer must handle all three cases.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold:
		return true
	}
	return false
}

// ReservationWindow is how long a reservation holds a ticket before it is
// treated as available again.
const ReservationWindow = 24 * time.Hour

// BuyerInfo is the contact detail a buyer leaves on a reservation. Only the
// name is mandatory.
type BuyerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (b BuyerInfo) Validate() error {
	if b.Name == "" {
		return ErrMissingBuyerName
	}
	return nil
}

// Ticket is one numbered slot in a raffle grid. Field presence follows the
// status: available carries no buyer or timestamp fields, reserved carries
// reservation timestamps and buyer fields, sold carries the sale timestamp
// and buyer fields but no reservation expiry.
type Ticket struct {
	RaffleID string `json:"raffle_id"`
	Number   int    `json:"number"`
	Status   Status `json:"status"`

	BuyerName  string `json:"buyer_name,omitempty"`
	BuyerEmail string `json:"buyer_email,omitempty"`
	BuyerPhone string `json:"buyer_phone,omitempty"`

	ReservedAt    *time.Time `json:"reserved_at,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	SoldAt        *time.Time `json:"sold_at,omitempty"`

	PaymentLink      string `json:"payment_link,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	PaymentStatus    string `json:"payment_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether a reserved ticket's hold has lapsed. Such a ticket
// is logically available; readers revert it lazily.
func (t *Ticket) Expired(now time.Time) bool {
	return t.Status == StatusReserved && t.ReservedUntil != nil && t.ReservedUntil.Before(now)
}

// Update is a complete, invariant-satisfying assignment of every mutable
// ticket field. Repositories write it verbatim, so no code path can leave a
// row with an illegal field combination.
type Update struct {
	Status Status

	BuyerName  string
	BuyerEmail string
	BuyerPhone string

	ReservedAt    *time.Time
	ReservedUntil *time.Time
	SoldAt        *time.Time

	PaymentLink      string
	PaymentReference string
	PaymentStatus    string
}

// AvailableUpdate clears every buyer, timestamp and payment field.
func AvailableUpdate() Update {
	return Update{Status: StatusAvailable}
}

// ReservedUpdate stamps a fresh 24-hour reservation for the given buyer.
func ReservedUpdate(buyer BuyerInfo, now time.Time) Update {
	until := now.Add(ReservationWindow)
	return Update{
		Status:        StatusReserved,
		BuyerName:     buyer.Name,
		BuyerEmail:    buyer.Email,
		BuyerPhone:    buyer.Phone,
		ReservedAt:    &now,
		ReservedUntil: &until,
	}
}

// ReservedForPaymentUpdate is a reservation that additionally carries the
// payment link and provider reference handed out for it.
func ReservedForPaymentUpdate(buyer BuyerInfo, now time.Time, link, reference string) Update {
	u := ReservedUpdate(buyer, now)
	u.PaymentLink = link
	u.PaymentReference = reference
	u.PaymentStatus = "pending"
	return u
}

// SoldUpdate promotes a reserved ticket, keeping its buyer and payment
// details but dropping the reservation expiry.
func (t *Ticket) SoldUpdate(now time.Time, paymentStatus string) Update {
	return Update{
		Status:           StatusSold,
		BuyerName:        t.BuyerName,
		BuyerEmail:       t.BuyerEmail,
		BuyerPhone:       t.BuyerPhone,
		SoldAt:           &now,
		PaymentLink:      t.PaymentLink,
		PaymentReference: t.PaymentReference,
		PaymentStatus:    paymentStatus,
	}
}

// ForcedUpdate builds the owner-override assignment for an arbitrary target
// status. Buyer fields are taken as supplied; timestamps follow the status.
func ForcedUpdate(status Status, buyer BuyerInfo, now time.Time) (Update, error) {
	switch status {
	case StatusAvailable:
		return AvailableUpdate(), nil
	case StatusReserved:
		u := ReservedUpdate(buyer, now)
		return u, nil
	case StatusSold:
		return Update{
			Status:     StatusSold,
			BuyerName:  buyer.Name,
			BuyerEmail: buyer.Email,
			BuyerPhone: buyer.Phone,
			SoldAt:     &now,
		}, nil
	default:
		return Update{}, ErrInvalidStatus
	}
}

// StatusCounts mirrors the availability summary shown on the raffle page.
type StatusCounts struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Sold      int `json:"sold"`
}
