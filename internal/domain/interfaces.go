package domain

import "context"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// LedgerStore persists accounts and the transaction log. Balances change
// only through ApplyLedgerUpdate.
type LedgerStore interface {
	// GetAccount returns ErrAccountNotFound when the user has no account.
	GetAccount(ctx context.Context, userID string) (LedgerAccount, error)

	// CreateAccount inserts an empty account unless one exists and returns
	// the stored account.
	CreateAccount(ctx context.Context, userID string) (LedgerAccount, error)

	// SetMultiplier writes only the multiplier, creating the account if
	// needed.
	SetMultiplier(ctx context.Context, userID string, m float64) (LedgerAccount, error)

	// ApplyLedgerUpdate commits u in one atomic step, creating the account
	// if needed. The store assigns transaction IDs.
	ApplyLedgerUpdate(ctx context.Context, u LedgerUpdate) (LedgerUpdateResult, error)

	// ScanAccounts calls fn for every account until fn returns false.
	ScanAccounts(ctx context.Context, fn func(LedgerAccount) bool) error

	// ListTransactions returns a user's transactions in insertion order.
	ListTransactions(ctx context.Context, userID string) ([]Transaction, error)
}

// BadgeStore persists per-user badge ownership.
type BadgeStore interface {
	ListBadges(ctx context.Context, userID string) ([]Badge, error)

	// AddBadge records ownership. Returns false if the user already owned it.
	AddBadge(ctx context.Context, userID string, b Badge) (bool, error)
}

// UserStore persists citizens and administrators.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error // ErrUserExists on duplicate email
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// ReportStore persists waste reports.
type ReportStore interface {
	// CreateReport assigns r.ID and returns the stored report.
	CreateReport(ctx context.Context, r Report) (Report, error)
	GetReport(ctx context.Context, id int64) (Report, error)
	UpdateReport(ctx context.Context, r Report) error
	ListReports(ctx context.Context) ([]Report, error)
	ListReportsByUser(ctx context.Context, userID string) ([]Report, error)
}

// Store is everything the service needs from a backend.
type Store interface {
	LedgerStore
	BadgeStore
	UserStore
	ReportStore
	Close() error
}
