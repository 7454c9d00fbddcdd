package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/raffle/repository"
)

type postgresRaffleRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.RaffleRepository {
	return &postgresRaffleRepository{db: db}
}

const raffleColumns = `id, owner_id, title, description, price_per_ticket, total_tickets,
	whatsapp_number, status, mercadopago_access_token, mercadopago_enabled, created_at, updated_at`

func (r *postgresRaffleRepository) Create(ctx context.Context, raffle *models.Raffle) error {
	query := `
		INSERT INTO raffles (id, owner_id, title, description, price_per_ticket, total_tickets,
			whatsapp_number, status, mercadopago_access_token, mercadopago_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		raffle.ID, raffle.OwnerID, raffle.Title, raffle.Description, raffle.PricePerTicket,
		raffle.TotalTickets, raffle.WhatsApp, string(raffle.Status), raffle.MercadoPagoToken,
		raffle.MercadoPagoEnabled, raffle.CreatedAt, raffle.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create raffle: %w", err)
	}

	return nil
}

func (r *postgresRaffleRepository) GetByID(ctx context.Context, id string) (*models.Raffle, error) {
	query := fmt.Sprintf("SELECT %s FROM raffles WHERE id = $1", raffleColumns)

	raffle, err := scanRaffle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}

	return raffle, nil
}

func (r *postgresRaffleRepository) Update(ctx context.Context, raffle *models.Raffle) error {
	query := `
		UPDATE raffles SET
			title = $2,
			description = $3,
			price_per_ticket = $4,
			whatsapp_number = $5,
			mercadopago_access_token = NULLIF($6, ''),
			mercadopago_enabled = $7,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		raffle.ID, raffle.Title, raffle.Description, raffle.PricePerTicket,
		raffle.WhatsApp, raffle.MercadoPagoToken, raffle.MercadoPagoEnabled)
	if err != nil {
		return fmt.Errorf("failed to update raffle: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrRaffleNotFound
	}

	return nil
}

func (r *postgresRaffleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM raffles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete raffle: %w", err)
	}

	return nil
}

func (r *postgresRaffleRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Raffle, error) {
	query := fmt.Sprintf("SELECT %s FROM raffles WHERE owner_id = $1 ORDER BY created_at DESC", raffleColumns)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}
	defer rows.Close()

	var raffles []*models.Raffle
	for rows.Next() {
		raffle, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, raffle)
	}

	return raffles, rows.Err()
}

func (r *postgresRaffleRepository) HasActiveRaffle(ctx context.Context, ownerID string) (bool, error) {
	query := "SELECT EXISTS (SELECT 1 FROM raffles WHERE owner_id = $1 AND status = 'active')"

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active raffle: %w", err)
	}

	return exists, nil
}

func (r *postgresRaffleRepository) UpdateStatusIf(ctx context.Context, id string, expected, next models.Status) (bool, error) {
	query := "UPDATE raffles SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2"

	result, err := r.db.ExecContext(ctx, query, id, string(expected), string(next))
	if err != nil {
		return false, fmt.Errorf("failed to update raffle status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRaffle(row rowScanner) (*models.Raffle, error) {
	var (
		raffle  models.Raffle
		status  string
		mpToken sql.NullString
	)

	err := row.Scan(&raffle.ID, &raffle.OwnerID, &raffle.Title, &raffle.Description,
		&raffle.PricePerTicket, &raffle.TotalTickets, &raffle.WhatsApp, &status,
		&mpToken, &raffle.MercadoPagoEnabled, &raffle.CreatedAt, &raffle.UpdatedAt)
	if err != nil {
		return nil, err
	}

	raffle.Status = models.Status(status)
	raffle.MercadoPagoToken = mpToken.String

	return &raffle, nil
}
