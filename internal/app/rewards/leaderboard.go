package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/dsa"
)

// UnknownUserName labels leaderboard rows whose user record is missing.
const UnknownUserName = "Unknown"

// LeaderboardStore is what ranking reads.
type LeaderboardStore interface {
	domain.LedgerStore
	domain.BadgeStore
	domain.UserStore
}

// Leaderboard ranks accounts by total credits. It is computed on demand.
type Leaderboard struct {
	store LeaderboardStore
	size  int
}

// NewLeaderboard creates a leaderboard returning at most size entries.
// size <= 0 means domain.DefaultLeaderboardSize.
func NewLeaderboard(store LeaderboardStore, size int) *Leaderboard {
	if size <= 0 {
		size = domain.DefaultLeaderboardSize
	}
	return &Leaderboard{store: store, size: size}
}

// Rank returns the top accounts, best first, with 1-based ranks.
func (lb *Leaderboard) Rank(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	top := dsa.NewTopK(lb.size, func(a, b domain.LeaderboardEntry) bool { return a.RanksAbove(b) })
	err := lb.store.ScanAccounts(ctx, func(acct domain.LedgerAccount) bool {
		top.Push(domain.LeaderboardEntry{
			UserID:       acct.UserID,
			TotalCredits: acct.TotalCredits,
			ReportCount:  acct.ReportCount,
		})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}

	entries := top.Sorted()
	for i := range entries {
		e := &entries[i]
		e.Rank = i + 1

		e.Name = UnknownUserName
		u, err := lb.store.GetUser(ctx, e.UserID)
		switch {
		case err == nil:
			e.Name = u.Name
		case !errors.Is(err, domain.ErrUserNotFound):
			return nil, err
		}

		if e.Badges, err = lb.store.ListBadges(ctx, e.UserID); err != nil {
			return nil, err
		}
		e.BadgeCount = len(e.Badges)
	}
	return entries, nil
}
