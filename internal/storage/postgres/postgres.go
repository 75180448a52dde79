// Package postgres implements the ledger's durable store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
)

const userColumns = "id, username, name, password_hash, balance, created_at, updated_at"

const transactionColumns = "id, from_user_id, from_username, from_name, " +
	"to_user_id, to_username, to_name, amount, note, status, timestamp"

type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(dbUrl string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %s", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect database error %s", err)
	}

	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.UserByUsername"

	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ListUsers matches search case-insensitively against name or username
// (every row when search is empty), sorts by the whitelisted field with an
// id tie-break and slices one page when opts asks for it. The second return
// is the total match count regardless of pagination.
func (s *Storage) ListUsers(ctx context.Context, search string, opts models.ListOptions) ([]models.User, int, error) {
	const op = "storage.postgres.ListUsers"

	where := " FROM users WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR username ILIKE '%' || $1 || '%')"

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	column := "name"
	if opts.SortBy == models.UserSortBalance {
		column = "balance"
	}
	query := "SELECT " + userColumns + where +
		" ORDER BY " + column + " " + sqlDirection(opts.SortOrder) + ", id ASC"

	args := []any{search}
	if opts.Paginated {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return users, total, nil
}

// ListTransactions returns records where userID participates as sender or
// receiver; userID 0 selects every record.
func (s *Storage) ListTransactions(ctx context.Context, userID int64, opts models.ListOptions) ([]models.Transaction, int, error) {
	const op = "storage.postgres.ListTransactions"

	where := " FROM transactions WHERE ($1 = 0 OR from_user_id = $1 OR to_user_id = $1)"

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	column := "timestamp"
	if opts.SortBy == models.TxSortAmount {
		column = "amount"
	}
	query := "SELECT " + transactionColumns + where +
		" ORDER BY " + column + " " + sqlDirection(opts.SortOrder) + ", id ASC"

	args := []any{userID}
	if opts.Paginated {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		transactions = append(transactions, *transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return transactions, total, nil
}

func (s *Storage) TransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	const op = "storage.postgres.TransactionByID"

	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id)

	transaction, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return transaction, nil
}

func (s *Storage) Stats(ctx context.Context) (*models.Stats, error) {
	const op = "storage.postgres.Stats"

	var stats models.Stats

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM users").
		Scan(&stats.TotalUsers, &stats.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions").
		Scan(&stats.TotalTransactions, &stats.TotalTransactionAmount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &stats, nil
}

func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.postgres.CountUsers"

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// SeedUsers inserts the given users with their fixed ids in one transaction
// and bumps the id sequence past the highest seeded id.
func (s *Storage) SeedUsers(ctx context.Context, users []models.User) error {
	const op = "storage.postgres.SeedUsers"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	for _, user := range users {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, username, name, password_hash, balance) VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING",
			user.ID, user.Username, user.Name, user.PasswordHash, user.Balance)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"SELECT setval(pg_get_serial_sequence('users', 'id'), (SELECT COALESCE(MAX(id), 1) FROM users))")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func sqlDirection(order string) string {
	if order == models.OrderDesc {
		return "DESC"
	}
	return "ASC"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Name, &user.PasswordHash,
		&user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var transaction models.Transaction
	err := row.Scan(&transaction.ID, &transaction.FromUserID, &transaction.FromUsername,
		&transaction.FromName, &transaction.ToUserID, &transaction.ToUsername,
		&transaction.ToName, &transaction.Amount, &transaction.Note,
		&transaction.Status, &transaction.Timestamp)
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}
