package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

type postgresTicketRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.TicketRepository {
	return &postgresTicketRepository{db: db}
}

const ticketColumns = `raffle_id, number, status, buyer_name, buyer_email, buyer_phone,
	reserved_at, reserved_until, sold_at, payment_link, payment_reference, payment_status,
	created_at, updated_at`

func (r *postgresTicketRepository) CreateBatch(ctx context.Context, raffleID string, total int) error {
	query := `
		INSERT INTO tickets (raffle_id, number, status)
		SELECT $1, n, 'available' FROM generate_series(1, $2) AS n
	`

	_, err := r.db.ExecContext(ctx, query, raffleID, total)
	if err != nil {
		return fmt.Errorf("failed to create tickets: %w", err)
	}

	return nil
}

func (r *postgresTicketRepository) GetByNumber(ctx context.Context, raffleID string, number int) (*models.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE raffle_id = $1 AND number = $2", ticketColumns)

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, raffleID, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return ticket, nil
}

func (r *postgresTicketRepository) ListByRaffle(ctx context.Context, raffleID string) ([]*models.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE raffle_id = $1 ORDER BY number", ticketColumns)

	rows, err := r.db.QueryContext(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	return tickets, rows.Err()
}

func (r *postgresTicketRepository) CountByStatus(ctx context.Context, raffleID string) (*models.StatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'available'),
			COUNT(*) FILTER (WHERE status = 'reserved'),
			COUNT(*) FILTER (WHERE status = 'sold')
		FROM tickets WHERE raffle_id = $1
	`

	counts := &models.StatusCounts{}
	err := r.db.QueryRowContext(ctx, query, raffleID).Scan(&counts.Available, &counts.Reserved, &counts.Sold)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	return counts, nil
}

// UpdateStatus writes the full mutable field set. The optional WHERE on the
// previous status is the race guard: the first writer to observe the expected
// state wins, every other writer sees zero rows affected.
func (r *postgresTicketRepository) UpdateStatus(ctx context.Context, raffleID string, number int, expected models.Status, update models.Update) (bool, error) {
	query := `
		UPDATE tickets SET
			status = $3,
			buyer_name = NULLIF($4, ''),
			buyer_email = NULLIF($5, ''),
			buyer_phone = NULLIF($6, ''),
			reserved_at = $7,
			reserved_until = $8,
			sold_at = $9,
			payment_link = NULLIF($10, ''),
			payment_reference = NULLIF($11, ''),
			payment_status = NULLIF($12, ''),
			updated_at = NOW()
		WHERE raffle_id = $1 AND number = $2
	`
	args := []interface{}{
		raffleID, number, string(update.Status),
		update.BuyerName, update.BuyerEmail, update.BuyerPhone,
		update.ReservedAt, update.ReservedUntil, update.SoldAt,
		update.PaymentLink, update.PaymentReference, update.PaymentStatus,
	}

	if expected != "" {
		query += " AND status = $13"
		args = append(args, string(expected))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update ticket status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *postgresTicketRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE tickets SET
			status = 'available',
			buyer_name = NULL,
			buyer_email = NULL,
			buyer_phone = NULL,
			reserved_at = NULL,
			reserved_until = NULL,
			sold_at = NULL,
			payment_link = NULL,
			payment_reference = NULL,
			payment_status = NULL,
			updated_at = NOW()
		WHERE status = 'reserved' AND reserved_until < $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired tickets: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *postgresTicketRepository) DeleteByRaffle(ctx context.Context, raffleID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tickets WHERE raffle_id = $1", raffleID)
	if err != nil {
		return fmt.Errorf("failed to delete tickets: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var (
		t             models.Ticket
		status        string
		buyerName     sql.NullString
		buyerEmail    sql.NullString
		buyerPhone    sql.NullString
		reservedAt    sql.NullTime
		reservedUntil sql.NullTime
		soldAt        sql.NullTime
		paymentLink   sql.NullString
		paymentRef    sql.NullString
		paymentStatus sql.NullString
	)

	err := row.Scan(&t.RaffleID, &t.Number, &status, &buyerName, &buyerEmail, &buyerPhone,
		&reservedAt, &reservedUntil, &soldAt, &paymentLink, &paymentRef, &paymentStatus,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Status = models.Status(status)
	t.BuyerName = buyerName.String
	t.BuyerEmail = buyerEmail.String
	t.BuyerPhone = buyerPhone.String
	t.PaymentLink = paymentLink.String
	t.PaymentReference = paymentRef.String
	t.PaymentStatus = paymentStatus.String

	if reservedAt.Valid {
		v := reservedAt.Time
		t.ReservedAt = &v
	}
	if reservedUntil.Valid {
		v := reservedUntil.Time
		t.ReservedUntil = &v
	}
	if soldAt.Valid {
		v := soldAt.Time
		t.SoldAt = &v
	}

	return &t, nil
}
