package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/ledger"
)

// InTransfer runs fn inside one SQL transaction. A nil return from fn
// commits; anything else rolls the whole unit back, so no partial balance
// change or orphan record ever becomes visible. Conflicts the database
// reports as retryable are surfaced wrapped in models.ErrTxConflict.
func (s *Storage) InTransfer(ctx context.Context, fn func(tx ledger.TransferTx) error) error {
	const op = "storage.postgres.InTransfer"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := fn(&transferTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to roll back transfer", slog.String("error", rbErr.Error()))
		}
		return classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	return nil
}

type transferTx struct {
	tx *sql.Tx
}

func (t *transferTx) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	const op = "storage.postgres.UserIDByUsername"

	var id int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE username = $1", username).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (t *transferTx) LockUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.LockUser"

	row := t.tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (t *transferTx) AddToBalance(ctx context.Context, id int64, delta int64) error {
	const op = "storage.postgres.AddToBalance"

	_, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2", delta, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *transferTx) InsertTransaction(ctx context.Context, record *models.Transaction) error {
	const op = "storage.postgres.InsertTransaction"

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (id, from_user_id, from_username, from_name,
			to_user_id, to_username, to_name, amount, note, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.FromUserID, record.FromUsername, record.FromName,
		record.ToUserID, record.ToUsername, record.ToName, record.Amount,
		record.Note, record.Status, record.Timestamp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Postgres error classes that are safe to retry when no write of the next
// attempt has happened yet: serialization_failure, deadlock_detected,
// lock_not_available.
var retryableCodes = map[pq.ErrorCode]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && retryableCodes[pqErr.Code] {
		return fmt.Errorf("%s: %w: %s", op, models.ErrTxConflict, pqErr.Code)
	}
	return fmt.Errorf("%s: %w", op, err)
}
