package repository

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PaymentRepository keeps an audit trail of payment attempts
type PaymentRepository interface {
	Save(ctx context.Context, attempt *entity.PaymentAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentAttempt, error)
	FindRefundRequired(ctx context.Context) ([]*entity.PaymentAttempt, error)
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

func (r *paymentRepository) Save(ctx context.Context, attempt *entity.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (id, session_id, user_id, amount, currency, status, gateway, gateway_ref,
			refund_state, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			gateway_ref = EXCLUDED.gateway_ref,
			refund_state = EXCLUDED.refund_state,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		attempt.ID,
		attempt.SessionID,
		attempt.UserID,
		attempt.Amount,
		attempt.Currency,
		attempt.Status,
		attempt.Gateway,
		attempt.GatewayRef,
		attempt.RefundState,
		attempt.FailureReason,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to save payment attempt",
			zap.Error(err),
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("status", string(attempt.Status)),
		)
		return fmt.Errorf("save payment attempt %s: %w", attempt.ID.String(), err)
	}

	return nil
}

const attemptColumns = `id, session_id, user_id, amount, currency, status, gateway, COALESCE(gateway_ref, ''),
	refund_state, COALESCE(failure_reason, ''), created_at, updated_at`

func scanAttempt(row pgx.Row) (*entity.PaymentAttempt, error) {
	var a entity.PaymentAttempt
	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.UserID,
		&a.Amount,
		&a.Currency,
		&a.Status,
		&a.Gateway,
		&a.GatewayRef,
		&a.RefundState,
		&a.FailureReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment attempt by ID",
			zap.Error(err),
			zap.String("attempt_id", id.String()),
		)
		return nil, fmt.Errorf("find payment attempt by ID %s: %w", id.String(), err)
	}

	return attempt, nil
}

func (r *paymentRepository) FindRefundRequired(ctx context.Context) ([]*entity.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE refund_state = $1
		ORDER BY updated_at
	`

	rows, err := r.db.Query(ctx, query, entity.RefundRequired)
	if err != nil {
		r.log.Error("Failed to find refund-required attempts", zap.Error(err))
		return nil, fmt.Errorf("find refund-required attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*entity.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return attempts, nil
}
