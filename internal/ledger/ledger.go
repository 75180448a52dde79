// Package ledger holds the business logic of the demo ledger: the atomic
// funds-transfer operation, list/pagination reads over users and
// transactions, whole-store statistics and credential checks. All durable
// state lives behind the Store interface.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
)

// Store is the durable backing of the ledger.
type Store interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, search string, opts models.ListOptions) ([]models.User, int, error)
	ListTransactions(ctx context.Context, userID int64, opts models.ListOptions) ([]models.Transaction, int, error)
	TransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Stats(ctx context.Context) (*models.Stats, error)
	CountUsers(ctx context.Context) (int, error)
	SeedUsers(ctx context.Context, users []models.User) error

	// InTransfer runs fn as one atomic unit of work: every mutation made
	// through the TransferTx is committed together if fn returns nil and
	// discarded whole otherwise.
	InTransfer(ctx context.Context, fn func(tx TransferTx) error) error
}

// TransferTx is the view of the store inside one transfer unit.
type TransferTx interface {
	// UserIDByUsername resolves a username without locking the row.
	UserIDByUsername(ctx context.Context, username string) (int64, error)
	// LockUser reads a user row under an exclusive row lock held until the
	// unit commits or rolls back.
	LockUser(ctx context.Context, id int64) (*models.User, error)
	AddToBalance(ctx context.Context, id int64, delta int64) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
}

type Service struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Authenticate checks a username/password pair against the stored bcrypt
// hash. Unknown users and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "ledger.Authenticate"

	user, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.store.UserByID(ctx, id)
}

// ListUsers returns users matching the optional case-insensitive search
// term over name or username, sorted by name or balance with a stable id
// tie-break.
func (s *Service) ListUsers(ctx context.Context, search string, opts models.ListOptions) (*models.Listing[models.User], error) {
	opts, err := normalizeOptions(opts, models.UserSortName, models.OrderAsc,
		models.UserSortName, models.UserSortBalance)
	if err != nil {
		return nil, err
	}

	items, total, err := s.store.ListUsers(ctx, strings.TrimSpace(search), opts)
	if err != nil {
		return nil, err
	}
	return newListing(items, total, opts), nil
}

// ListTransactions returns transaction records, optionally restricted to
// those where userID is sender or receiver. Newest first unless the caller
// chooses otherwise.
func (s *Service) ListTransactions(ctx context.Context, userID int64, opts models.ListOptions) (*models.Listing[models.Transaction], error) {
	opts, err := normalizeOptions(opts, models.TxSortTimestamp, models.OrderDesc,
		models.TxSortTimestamp, models.TxSortAmount)
	if err != nil {
		return nil, err
	}

	items, total, err := s.store.ListTransactions(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return newListing(items, total, opts), nil
}

func (s *Service) TransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.store.TransactionByID(ctx, id)
}

// Stats aggregates totals over the whole store. AvgBalance is zero when
// there are no users.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.TotalUsers > 0 {
		stats.AvgBalance = float64(stats.TotalBalance) / float64(stats.TotalUsers)
	}
	return stats, nil
}

// SeedUser describes one account to create when the store is empty.
type SeedUser struct {
	ID       int64
	Username string
	Name     string
	Password string
	Balance  int64
}

// SeedIfEmpty creates the given accounts when the users table has no rows
// yet, hashing each password. Reports whether seeding ran.
func (s *Service) SeedIfEmpty(ctx context.Context, seeds []SeedUser) (bool, error) {
	const op = "ledger.SeedIfEmpty"

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if count > 0 {
		return false, nil
	}

	users := make([]models.User, 0, len(seeds))
	for _, seed := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, models.User{
			ID:           seed.ID,
			Username:     seed.Username,
			Name:         seed.Name,
			PasswordHash: string(hash),
			Balance:      seed.Balance,
		})
	}

	if err := s.store.SeedUsers(ctx, users); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("Seeded initial users", slog.Int("count", len(users)))
	return true, nil
}

func normalizeOptions(opts models.ListOptions, defaultSort, defaultOrder string, allowedSorts ...string) (models.ListOptions, error) {
	if opts.SortBy == "" {
		opts.SortBy = defaultSort
	}
	valid := false
	for _, sort := range allowedSorts {
		if opts.SortBy == sort {
			valid = true
			break
		}
	}
	if !valid {
		return opts, fmt.Errorf("%w: sort field %q", models.ErrInvalidListOptions, opts.SortBy)
	}

	switch strings.ToLower(opts.SortOrder) {
	case "":
		opts.SortOrder = defaultOrder
	case models.OrderAsc, models.OrderDesc:
		opts.SortOrder = strings.ToLower(opts.SortOrder)
	default:
		return opts, fmt.Errorf("%w: sort order %q", models.ErrInvalidListOptions, opts.SortOrder)
	}

	if opts.Paginated {
		if opts.Page < 1 {
			return opts, fmt.Errorf("%w: page %d", models.ErrInvalidListOptions, opts.Page)
		}
		if opts.PageSize < models.MinPageSize || opts.PageSize > models.MaxPageSize {
			return opts, fmt.Errorf("%w: page size %d", models.ErrInvalidListOptions, opts.PageSize)
		}
	}
	return opts, nil
}

func newListing[T any](items []T, total int, opts models.ListOptions) *models.Listing[T] {
	listing := &models.Listing[T]{Items: items, Total: total}
	if opts.Paginated {
		pages := 0
		if total > 0 {
			pages = (total + opts.PageSize - 1) / opts.PageSize
		}
		listing.Page = &models.PageInfo{
			Page:       opts.Page,
			PageSize:   opts.PageSize,
			TotalPages: pages,
		}
	}
	return listing
}
