// Package storetest is a conformance suite every domain.Store adapter runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/greencredits/greencredits/internal/domain"
)

// Factory returns a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) domain.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("ApplyLedgerUpdate", func(t *testing.T) { testApply(t, newStore(t)) })
	t.Run("ApplyLedgerUpdate/Overdraft", func(t *testing.T) { testOverdraft(t, newStore(t)) })
	t.Run("ApplyLedgerUpdate/BadgeGrants", func(t *testing.T) { testBadgeGrants(t, newStore(t)) })
	t.Run("ScanAccounts", func(t *testing.T) { testScan(t, newStore(t)) })
	t.Run("Badges", func(t *testing.T) { testBadges(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, newStore(t)) })
}

func testAccounts(t *testing.T, s domain.Store) {
	ctx := context.Background()

	if _, err := s.GetAccount(ctx, "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("GetAccount(ghost) err = %v, want ErrAccountNotFound", err)
	}

	created, err := s.CreateAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	if created.UserID != "u1" || created.Multiplier != domain.DefaultMultiplier || created.TotalCredits != 0 {
		t.Errorf("CreateAccount() = %+v", created)
	}

	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
			UserID:   "u1",
			Activity: &domain.Activity{Reports: 1, GPSReports: i % 2, Streak: i + 2, LastActivity: last},
		}); err != nil {
			t.Fatalf("ApplyLedgerUpdate() error: %v", err)
		}
	}
	if _, err := s.SetMultiplier(ctx, "u1", 1.5); err != nil {
		t.Fatalf("SetMultiplier() error: %v", err)
	}

	got, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if got.ReportCount != 3 || got.GPSReportCount != 1 || got.Streak != 4 {
		t.Errorf("counters = %d/%d/%d, want 3/1/4", got.ReportCount, got.GPSReportCount, got.Streak)
	}
	if got.Multiplier != 1.5 {
		t.Errorf("Multiplier = %v, want 1.5", got.Multiplier)
	}
	if !got.LastActivity.Equal(last) {
		t.Errorf("LastActivity = %v, want %v", got.LastActivity, last)
	}

	again, err := s.CreateAccount(ctx, "u1")
	if err != nil || again.ReportCount != 3 || again.Multiplier != 1.5 {
		t.Errorf("second CreateAccount() = %+v, %v; want the existing account", again, err)
	}
	if m, _ := s.SetMultiplier(ctx, "fresh", 2); m.Multiplier != 2 || m.ReportCount != 0 {
		t.Errorf("SetMultiplier(fresh) = %+v", m)
	}
}

func testApply(t *testing.T, s domain.Store) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reportID := int64(7)

	res, err := s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
		UserID: "u1",
		Transactions: []domain.Transaction{{
			Action: domain.ActionReportSubmitted, Amount: 10,
			Description: "Report submitted with photo", ReportID: &reportID, Timestamp: ts,
		}},
	})
	if err != nil {
		t.Fatalf("ApplyLedgerUpdate(credit) error: %v", err)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].UserID != "u1" || res.Account.TotalCredits != 10 {
		t.Fatalf("credit result = %+v", res)
	}
	first := res.Transactions[0]

	res, err = s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
		UserID: "u1",
		Transactions: []domain.Transaction{{
			Action: domain.ActionRedemption, Amount: -6,
			Description: "Redeemed for reward: bus-pass", RewardID: "bus-pass", Timestamp: ts.Add(time.Minute),
		}},
	})
	if err != nil {
		t.Fatalf("ApplyLedgerUpdate(debit) error: %v", err)
	}
	if second := res.Transactions[0]; second.ID <= first.ID {
		t.Errorf("ids not increasing: %d then %d", first.ID, second.ID)
	}

	got, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if got.TotalCredits != 10 || got.AvailableCredits != 4 || got.Redeemed != 6 {
		t.Errorf("balances = %d/%d/%d, want 10/4/6", got.TotalCredits, got.AvailableCredits, got.Redeemed)
	}
	if got != res.Account {
		t.Errorf("result account %+v differs from stored %+v", res.Account, got)
	}

	txs, err := s.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions() error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("ListTransactions() returned %d, want 2", len(txs))
	}
	if txs[0].Action != domain.ActionReportSubmitted || txs[0].ReportID == nil || *txs[0].ReportID != 7 {
		t.Errorf("first tx = %+v", txs[0])
	}
	if txs[1].Amount != -6 || txs[1].RewardID != "bus-pass" {
		t.Errorf("second tx = %+v", txs[1])
	}

	others, _ := s.ListTransactions(ctx, "u2")
	if len(others) != 0 {
		t.Errorf("u2 has %d transactions, want 0", len(others))
	}
}

func testOverdraft(t *testing.T, s domain.Store) {
	ctx := context.Background()
	if _, err := s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
		UserID:       "u1",
		Transactions: []domain.Transaction{{Action: domain.ActionFirstReport, Amount: 25}},
	}); err != nil {
		t.Fatal(err)
	}

	def, _ := domain.BadgeWasteHunter.Definition()
	_, err := s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
		UserID:   "u1",
		Activity: &domain.Activity{Reports: 1, Streak: 1},
		Transactions: []domain.Transaction{
			{Action: domain.ActionReportSubmitted, Amount: 10},
			{Action: domain.ActionRedemption, Amount: -40, RewardID: "r1"},
		},
		Badges: []domain.BadgeGrant{{Badge: domain.NewBadge(def, time.Now())}},
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("overdraft err = %v, want ErrInsufficientBalance", err)
	}

	// Nothing from the failed update is visible.
	got, _ := s.GetAccount(ctx, "u1")
	if got.TotalCredits != 25 || got.AvailableCredits != 25 || got.Redeemed != 0 || got.ReportCount != 0 {
		t.Errorf("account after failed update = %+v", got)
	}
	txs, _ := s.ListTransactions(ctx, "u1")
	if len(txs) != 1 {
		t.Errorf("ListTransactions() = %d rows, want 1", len(txs))
	}
	badges, _ := s.ListBadges(ctx, "u1")
	if len(badges) != 0 {
		t.Errorf("failed update granted %d badges", len(badges))
	}

	if _, err := s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
		UserID:       "ghost",
		Transactions: []domain.Transaction{{Action: domain.ActionRedemption, Amount: -1}},
	}); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("debit on new account err = %v, want ErrInsufficientBalance", err)
	}
}

func testBadgeGrants(t *testing.T, s domain.Store) {
	ctx := context.Background()
	def, _ := domain.BadgeEcoWarrior.Definition()
	grant := func() (domain.LedgerUpdateResult, error) {
		return s.ApplyLedgerUpdate(ctx, domain.LedgerUpdate{
			UserID: "u1",
			Badges: []domain.BadgeGrant{{
				Badge: domain.NewBadge(def, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
				Bonus: &domain.Transaction{Action: domain.ActionBadgeBonus, Amount: 50, Description: "Badge unlocked: Eco Warrior"},
			}},
		})
	}

	res, err := grant()
	if err != nil {
		t.Fatalf("ApplyLedgerUpdate() error: %v", err)
	}
	if len(res.Badges) != 1 || len(res.Transactions) != 1 || res.Account.TotalCredits != 50 {
		t.Fatalf("first grant = %+v", res)
	}

	// An owned badge pays no second bonus.
	res, err = grant()
	if err != nil {
		t.Fatalf("second ApplyLedgerUpdate() error: %v", err)
	}
	if len(res.Badges) != 0 || len(res.Transactions) != 0 || res.Account.TotalCredits != 50 {
		t.Errorf("second grant = %+v", res)
	}
	badges, _ := s.ListBadges(ctx, "u1")
	if len(badges) != 1 {
		t.Errorf("ListBadges() = %d, want 1", len(badges))
	}
}

func testScan(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.CreateAccount(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	seen := 0
	if err := s.ScanAccounts(ctx, func(domain.LedgerAccount) bool {
		seen++
		return true
	}); err != nil {
		t.Fatalf("ScanAccounts() error: %v", err)
	}
	if seen != 3 {
		t.Errorf("scanned %d accounts, want 3", seen)
	}

	seen = 0
	s.ScanAccounts(ctx, func(domain.LedgerAccount) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Errorf("early stop scanned %d accounts, want 1", seen)
	}
}

func testBadges(t *testing.T, s domain.Store) {
	ctx := context.Background()
	def, _ := domain.BadgeEcoWarrior.Definition()
	badge := domain.NewBadge(def, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	added, err := s.AddBadge(ctx, "u1", badge)
	if err != nil || !added {
		t.Fatalf("AddBadge() = %v, %v; want true, nil", added, err)
	}
	added, err = s.AddBadge(ctx, "u1", badge)
	if err != nil || added {
		t.Fatalf("second AddBadge() = %v, %v; want false, nil", added, err)
	}

	badges, err := s.ListBadges(ctx, "u1")
	if err != nil {
		t.Fatalf("ListBadges() error: %v", err)
	}
	if len(badges) != 1 || badges[0].Key != domain.BadgeEcoWarrior || badges[0].Name != "Eco Warrior" {
		t.Errorf("ListBadges() = %+v", badges)
	}

	none, _ := s.ListBadges(ctx, "u2")
	if len(none) != 0 {
		t.Errorf("u2 has %d badges, want 0", len(none))
	}
}

func testUsers(t *testing.T, s domain.Store) {
	ctx := context.Background()
	u := domain.User{
		ID: "u1", Name: "Asha", Email: "Asha@Example.com ", PasswordHash: "hash",
		Role: domain.RoleCitizen, CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	dup := u
	dup.ID = "u2"
	if err := s.CreateUser(ctx, dup); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("duplicate CreateUser() err = %v, want ErrUserExists", err)
	}

	got, err := s.GetUserByEmail(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error: %v", err)
	}
	if got.ID != "u1" || got.PasswordHash != "hash" || got.Role != domain.RoleCitizen {
		t.Errorf("GetUserByEmail() = %+v", got)
	}
	if _, err := s.GetUser(ctx, "u1"); err != nil {
		t.Errorf("GetUser() error: %v", err)
	}
	if _, err := s.GetUser(ctx, "nope"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUser(nope) err = %v, want ErrUserNotFound", err)
	}
}

func testReports(t *testing.T, s domain.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lng := 12.97, 77.59

	first, err := s.CreateReport(ctx, domain.Report{
		UserID: "u1", Description: "Overflowing bin", Lat: &lat, Lng: &lng,
		Status: domain.StatusPending, CreatedAt: base, UpdatedAt: base,
	})
	if err != nil {
		t.Fatalf("CreateReport() error: %v", err)
	}
	second, _ := s.CreateReport(ctx, domain.Report{
		UserID: "u2", Description: "Litter", Status: domain.StatusPending,
		CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
	})
	if second.ID <= first.ID {
		t.Errorf("report ids not increasing: %d then %d", first.ID, second.ID)
	}

	got, err := s.GetReport(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetReport() error: %v", err)
	}
	if !got.HasGPS() || *got.Lat != lat {
		t.Errorf("GetReport() lost coordinates: %+v", got)
	}

	got.Status = domain.StatusDisposed
	got.DisposalMethod = domain.DisposalRecycled
	if err := s.UpdateReport(ctx, got); err != nil {
		t.Fatalf("UpdateReport() error: %v", err)
	}
	updated, _ := s.GetReport(ctx, first.ID)
	if updated.Status != domain.StatusDisposed || updated.DisposalMethod != domain.DisposalRecycled {
		t.Errorf("UpdateReport() not persisted: %+v", updated)
	}

	if err := s.UpdateReport(ctx, domain.Report{ID: 999}); !errors.Is(err, domain.ErrReportNotFound) {
		t.Errorf("UpdateReport(999) err = %v, want ErrReportNotFound", err)
	}
	if _, err := s.GetReport(ctx, 999); !errors.Is(err, domain.ErrReportNotFound) {
		t.Errorf("GetReport(999) err = %v, want ErrReportNotFound", err)
	}

	all, _ := s.ListReports(ctx)
	if len(all) != 2 || all[0].ID != second.ID {
		t.Errorf("ListReports() should be newest first, got %d reports", len(all))
	}
	mine, _ := s.ListReportsByUser(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Errorf("ListReportsByUser(u1) = %+v", mine)
	}
}
