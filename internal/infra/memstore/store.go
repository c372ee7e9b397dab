// Package memstore is the in-memory domain.Store. State lives for the life
// of the process and is lost on restart.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/greencredits/greencredits/internal/domain"
)

// Store implements domain.Store with maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	users        map[string]domain.User
	usersByEmail map[string]string
	accounts     map[string]domain.LedgerAccount
	transactions []domain.Transaction
	badges       map[string][]domain.Badge
	reports      map[int64]domain.Report

	nextTxID     int64
	nextReportID int64
}

var _ domain.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]domain.User),
		usersByEmail: make(map[string]string),
		accounts:     make(map[string]domain.LedgerAccount),
		transactions: make([]domain.Transaction, 0),
		badges:       make(map[string][]domain.Badge),
		reports:      make(map[int64]domain.Report),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (s *Store) GetAccount(_ context.Context, userID string) (domain.LedgerAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return domain.LedgerAccount{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

func (s *Store) CreateAccount(_ context.Context, userID string) (domain.LedgerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(userID), nil
}

func (s *Store) SetMultiplier(_ context.Context, userID string, m float64) (domain.LedgerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.account(userID)
	acct.Multiplier = m
	s.accounts[userID] = acct
	return acct, nil
}

// ApplyLedgerUpdate works on copies and publishes them only when every step
// succeeded.
func (s *Store) ApplyLedgerUpdate(_ context.Context, u domain.LedgerUpdate) (domain.LedgerUpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[u.UserID]
	if !ok {
		acct = domain.NewLedgerAccount(u.UserID)
	}
	if u.Activity != nil {
		u.Activity.Apply(&acct)
	}

	var res domain.LedgerUpdateResult
	nextID := s.nextTxID
	post := func(tx domain.Transaction) error {
		if err := acct.Post(tx.Amount); err != nil {
			return err
		}
		nextID++
		tx.ID = nextID
		tx.UserID = u.UserID
		res.Transactions = append(res.Transactions, tx)
		return nil
	}
	for _, tx := range u.Transactions {
		if err := post(tx); err != nil {
			return domain.LedgerUpdateResult{}, err
		}
	}

	badges := append([]domain.Badge(nil), s.badges[u.UserID]...)
	for _, g := range u.Badges {
		if hasBadge(badges, g.Badge.Key) {
			continue
		}
		badges = append(badges, g.Badge)
		res.Badges = append(res.Badges, g.Badge)
		if g.Bonus != nil {
			if err := post(*g.Bonus); err != nil {
				return domain.LedgerUpdateResult{}, err
			}
		}
	}

	s.accounts[u.UserID] = acct
	s.badges[u.UserID] = badges
	s.transactions = append(s.transactions, res.Transactions...)
	s.nextTxID = nextID
	res.Account = acct
	return res, nil
}

// account returns the stored account, inserting an empty one first.
// Caller holds the write lock.
func (s *Store) account(userID string) domain.LedgerAccount {
	acct, ok := s.accounts[userID]
	if !ok {
		acct = domain.NewLedgerAccount(userID)
		s.accounts[userID] = acct
	}
	return acct
}

func (s *Store) ScanAccounts(_ context.Context, fn func(domain.LedgerAccount) bool) error {
	s.mu.RLock()
	snapshot := make([]domain.LedgerAccount, 0, len(s.accounts))
	for _, acct := range s.accounts {
		snapshot = append(snapshot, acct)
	}
	s.mu.RUnlock()

	// Callbacks run outside the lock so they may call back into the store.
	for _, acct := range snapshot {
		if !fn(acct) {
			break
		}
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func (s *Store) ListBadges(_ context.Context, userID string) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Badge(nil), s.badges[userID]...), nil
}

func (s *Store) AddBadge(_ context.Context, userID string, b domain.Badge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hasBadge(s.badges[userID], b.Key) {
		return false, nil
	}
	s.badges[userID] = append(s.badges[userID], b)
	return true, nil
}

func hasBadge(owned []domain.Badge, key domain.BadgeKey) bool {
	for _, b := range owned {
		if b.Key == key {
			return true
		}
	}
	return false
}

// ─── Users ──────────────────────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := s.usersByEmail[email]; exists {
		return domain.ErrUserExists
	}
	u.Email = email
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

// ─── Reports ────────────────────────────────────────────────────────────────

func (s *Store) CreateReport(_ context.Context, r domain.Report) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReportID++
	r.ID = s.nextReportID
	s.reports[r.ID] = r
	return r, nil
}

func (s *Store) GetReport(_ context.Context, id int64) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return domain.Report{}, domain.ErrReportNotFound
	}
	return r, nil
}

func (s *Store) UpdateReport(_ context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; !ok {
		return domain.ErrReportNotFound
	}
	s.reports[r.ID] = r
	return nil
}

func (s *Store) ListReports(_ context.Context) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedReports(func(domain.Report) bool { return true }), nil
}

func (s *Store) ListReportsByUser(_ context.Context, userID string) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedReports(func(r domain.Report) bool { return r.UserID == userID }), nil
}

// sortedReports returns matching reports newest first. Caller holds s.mu.
func (s *Store) sortedReports(keep func(domain.Report) bool) []domain.Report {
	out := make([]domain.Report, 0)
	for _, r := range s.reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
