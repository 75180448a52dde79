package ledger_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/ledger"
)

// memStore is an in-memory ledger.Store with real unit-of-work semantics:
// InTransfer serializes units on one mutex and restores a snapshot when the
// unit fails, so nothing partial ever becomes visible.
type memStore struct {
	mu    sync.Mutex
	users map[int64]*models.User
	txs   []models.Transaction

	failInsert error // when set, InsertTransaction fails with it
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*models.User)}
}

func (s *memStore) addUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.users[u.ID] = &u
}

func (s *memStore) balance(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

func (s *memStore) totalBalance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, u := range s.users {
		sum += u.Balance
	}
	return sum
}

func (s *memStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *memStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *memStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *memStore) ListUsers(ctx context.Context, search string, opts models.ListOptions) ([]models.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := strings.ToLower(search)
	var matched []models.User
	for _, user := range s.users {
		if term == "" ||
			strings.Contains(strings.ToLower(user.Name), term) ||
			strings.Contains(strings.ToLower(user.Username), term) {
			matched = append(matched, *user)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		if opts.SortBy == models.UserSortBalance {
			switch {
			case a.Balance < b.Balance:
				c = -1
			case a.Balance > b.Balance:
				c = 1
			}
		} else {
			c = strings.Compare(a.Name, b.Name)
		}
		if opts.SortOrder == models.OrderDesc {
			c = -c
		}
		if c == 0 {
			return a.ID < b.ID
		}
		return c < 0
	})

	total := len(matched)
	return page(matched, opts), total, nil
}

func (s *memStore) ListTransactions(ctx context.Context, userID int64, opts models.ListOptions) ([]models.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Transaction
	for _, tx := range s.txs {
		if userID == 0 || tx.FromUserID == userID || tx.ToUserID == userID {
			matched = append(matched, tx)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		if opts.SortBy == models.TxSortAmount {
			switch {
			case a.Amount < b.Amount:
				c = -1
			case a.Amount > b.Amount:
				c = 1
			}
		} else {
			switch {
			case a.Timestamp.Before(b.Timestamp):
				c = -1
			case a.Timestamp.After(b.Timestamp):
				c = 1
			}
		}
		if opts.SortOrder == models.OrderDesc {
			c = -c
		}
		if c == 0 {
			return a.ID.String() < b.ID.String()
		}
		return c < 0
	})

	total := len(matched)
	return page(matched, opts), total, nil
}

func (s *memStore) TransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			cp := tx
			return &cp, nil
		}
	}
	return nil, models.ErrTransactionNotFound
}

func (s *memStore) Stats(ctx context.Context) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.Stats{
		TotalUsers:        len(s.users),
		TotalTransactions: len(s.txs),
	}
	for _, user := range s.users {
		stats.TotalBalance += user.Balance
	}
	for _, tx := range s.txs {
		stats.TotalTransactionAmount += tx.Amount
	}
	return stats, nil
}

func (s *memStore) CountUsers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *memStore) SeedUsers(ctx context.Context, users []models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range users {
		u := user
		s.users[u.ID] = &u
	}
	return nil
}

func (s *memStore) InTransfer(ctx context.Context, fn func(tx ledger.TransferTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]*models.User, len(s.users))
	for id, user := range s.users {
		cp := *user
		snapshot[id] = &cp
	}
	txCount := len(s.txs)

	if err := fn(&memTx{store: s}); err != nil {
		s.users = snapshot
		s.txs = s.txs[:txCount]
		return err
	}
	return nil
}

// memTx mutates the store directly; the unit's mutex is already held.
type memTx struct {
	store *memStore
}

func (t *memTx) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	for _, user := range t.store.users {
		if user.Username == username {
			return user.ID, nil
		}
	}
	return 0, models.ErrUserNotFound
}

func (t *memTx) LockUser(ctx context.Context, id int64) (*models.User, error) {
	user, ok := t.store.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (t *memTx) AddToBalance(ctx context.Context, id int64, delta int64) error {
	user, ok := t.store.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	user.Balance += delta
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, record *models.Transaction) error {
	if t.store.failInsert != nil {
		return t.store.failInsert
	}
	t.store.txs = append(t.store.txs, *record)
	return nil
}

func page[T any](items []T, opts models.ListOptions) []T {
	if !opts.Paginated {
		return items
	}
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(items) {
		return nil
	}
	end := start + opts.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// conflictStore fails the first n units with a retryable conflict, then
// behaves like the wrapped store.
type conflictStore struct {
	*memStore
	remaining int
}

func (s *conflictStore) InTransfer(ctx context.Context, fn func(tx ledger.TransferTx) error) error {
	if s.remaining > 0 {
		s.remaining--
		return fmt.Errorf("deadlock detected: %w", models.ErrTxConflict)
	}
	return s.memStore.InTransfer(ctx, fn)
}
