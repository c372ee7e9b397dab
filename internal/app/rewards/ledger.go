package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/observability"
	"github.com/greencredits/greencredits/internal/logger"
)

// Ledger applies credits and debits to accounts. Every write reaches the
// store as one domain.LedgerUpdate, which the store applies as deltas, so
// ledgers in different processes can share a store.
type Ledger struct {
	store domain.LedgerStore
	now   func() time.Time
	log   *zap.Logger
}

// NewLedger creates a ledger over store. A nil clock means time.Now.
func NewLedger(store domain.LedgerStore, now func() time.Time, log *zap.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now, log: logger.OrDefault(log)}
}

// EnsureAccount returns the user's account, creating an empty one first if
// none exists.
func (l *Ledger) EnsureAccount(ctx context.Context, userID string) (domain.LedgerAccount, error) {
	acct, err := l.store.GetAccount(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.LedgerAccount{}, fmt.Errorf("load account: %w", err)
	}
	if acct, err = l.store.CreateAccount(ctx, userID); err != nil {
		return domain.LedgerAccount{}, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

// peek returns the stored account, or an empty one without creating it.
func (l *Ledger) peek(ctx context.Context, userID string) (domain.LedgerAccount, error) {
	acct, err := l.store.GetAccount(ctx, userID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.NewLedgerAccount(userID), nil
	}
	if err != nil {
		return domain.LedgerAccount{}, fmt.Errorf("load account: %w", err)
	}
	return acct, nil
}

// Apply commits u and records every stored transaction.
func (l *Ledger) Apply(ctx context.Context, u domain.LedgerUpdate) (domain.LedgerUpdateResult, error) {
	res, err := l.store.ApplyLedgerUpdate(ctx, u)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			observability.RedemptionsRejected.Inc()
		}
		return domain.LedgerUpdateResult{}, err
	}
	for _, tx := range res.Transactions {
		observability.RecordTransaction(tx)
		l.log.Debug("posted",
			zap.String("user_id", tx.UserID),
			zap.Stringer("action", tx.Action),
			zap.Int64("amount", tx.Amount),
		)
	}
	return res, nil
}

// Credit adds amount to the user's total and available balance and appends
// a transaction. A zero amount is a no-op and returns a nil transaction.
func (l *Ledger) Credit(ctx context.Context, userID string, action domain.ActionKind, amount int64, description string, reportID *int64) (*domain.Transaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: credit of %d", domain.ErrInvalidAmount, amount)
	}
	if amount == 0 {
		return nil, nil
	}

	res, err := l.Apply(ctx, domain.LedgerUpdate{
		UserID: userID,
		Transactions: []domain.Transaction{{
			UserID:      userID,
			Action:      action,
			Amount:      amount,
			Description: description,
			ReportID:    reportID,
			Timestamp:   l.now(),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("commit credit: %w", err)
	}
	return &res.Transactions[0], nil
}

// Debit spends available credits on a reward. The store checks the balance
// it holds, so the ledger is unchanged when it is insufficient.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, description, rewardID string) (domain.Transaction, domain.LedgerAccount, error) {
	if amount <= 0 {
		return domain.Transaction{}, domain.LedgerAccount{}, fmt.Errorf("%w: debit of %d", domain.ErrInvalidAmount, amount)
	}

	res, err := l.Apply(ctx, domain.LedgerUpdate{
		UserID: userID,
		Transactions: []domain.Transaction{{
			UserID:      userID,
			Action:      domain.ActionRedemption,
			Amount:      -amount,
			Description: description,
			RewardID:    rewardID,
			Timestamp:   l.now(),
		}},
	})
	if errors.Is(err, domain.ErrInsufficientBalance) {
		acct, _ := l.peek(ctx, userID)
		return domain.Transaction{}, acct, err
	}
	if err != nil {
		return domain.Transaction{}, domain.LedgerAccount{}, fmt.Errorf("commit debit: %w", err)
	}
	return res.Transactions[0], res.Account, nil
}

// History returns the user's transactions newest first.
func (l *Ledger) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	return out, nil
}
