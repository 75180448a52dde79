package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
)

// maxTransferAttempts bounds how often a transfer is restarted after a
// store-level conflict. Every retry re-enters the unit from the top, before
// any write of the new attempt has been made.
const maxTransferAttempts = 3

// Transfer moves amount from the account fromUserID to the account owning
// toUsername and appends one immutable transaction record, all as a single
// atomic unit. Both rows are locked in ascending id order, so two crossing
// transfers can never deadlock, and every precondition that depends on
// store state is checked under those locks. On success it returns the new
// record and a snapshot of the sender with the debit applied; on any
// failure the store is left untouched.
func (s *Service) Transfer(ctx context.Context, fromUserID int64, toUsername string, amount int64, note string) (*models.Transaction, *models.User, error) {
	if amount <= 0 {
		return nil, nil, models.ErrInvalidAmount
	}

	toUsername = strings.TrimSpace(toUsername)

	note = strings.TrimSpace(note)
	if note == "" {
		note = models.DefaultNote
	}
	if len([]rune(note)) > models.MaxNoteLength {
		return nil, nil, models.ErrNoteTooLong
	}

	var (
		record *models.Transaction
		sender models.User
	)

	for attempt := 1; ; attempt++ {
		err := s.store.InTransfer(ctx, func(tx TransferTx) error {
			toUserID, err := tx.UserIDByUsername(ctx, toUsername)
			if err != nil {
				if errors.Is(err, models.ErrUserNotFound) {
					return models.ErrRecipientNotFound
				}
				return err
			}
			if toUserID == fromUserID {
				return models.ErrSelfTransfer
			}

			from, to, err := lockPair(ctx, tx, fromUserID, toUserID)
			if err != nil {
				return err
			}

			// Balance is re-read under lock; the pre-lock view is never
			// trusted.
			if from.Balance < amount {
				return &models.InsufficientFundsError{Balance: from.Balance}
			}

			if err := tx.AddToBalance(ctx, from.ID, -amount); err != nil {
				return err
			}
			if err := tx.AddToBalance(ctx, to.ID, amount); err != nil {
				return err
			}

			record = &models.Transaction{
				ID:           uuid.New(),
				FromUserID:   from.ID,
				FromUsername: from.Username,
				FromName:     from.Name,
				ToUserID:     to.ID,
				ToUsername:   to.Username,
				ToName:       to.Name,
				Amount:       amount,
				Note:         note,
				Status:       models.StatusCompleted,
				Timestamp:    time.Now().UTC(),
			}
			if err := tx.InsertTransaction(ctx, record); err != nil {
				return err
			}

			sender = *from
			sender.Balance -= amount
			return nil
		})

		if err == nil {
			s.log.Info("Transfer completed",
				slog.String("transaction", record.ID.String()),
				slog.Int64("from", record.FromUserID),
				slog.Int64("to", record.ToUserID),
				slog.Int64("amount", record.Amount),
			)
			return record, &sender, nil
		}

		if errors.Is(err, models.ErrTxConflict) && attempt < maxTransferAttempts {
			s.log.Warn("Transfer conflict, retrying",
				slog.Int("attempt", attempt),
				slog.Int64("from", fromUserID),
				slog.String("to", toUsername),
			)
			continue
		}

		return nil, nil, err
	}
}

// lockPair acquires exclusive row locks on both accounts in ascending id
// order and returns them as (sender, recipient).
func lockPair(ctx context.Context, tx TransferTx, fromID, toID int64) (*models.User, *models.User, error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}

	locked := make(map[int64]*models.User, 2)
	for _, id := range [2]int64{first, second} {
		user, err := tx.LockUser(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				if id == fromID {
					return nil, nil, models.ErrSenderNotFound
				}
				return nil, nil, models.ErrRecipientNotFound
			}
			return nil, nil, fmt.Errorf("lock user %d: %w", id, err)
		}
		locked[id] = user
	}

	return locked[fromID], locked[toID], nil
}
