package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/memstore"
	"github.com/greencredits/greencredits/internal/infra/sqlite"
)

// ─── Report Submission ──────────────────────────────────────────────────────

func TestOnReportSubmitted_FirstFullReport(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.OnReportSubmitted(ctx, fullReport(1, "u1"))
	if err != nil {
		t.Fatalf("OnReportSubmitted() error: %v", err)
	}

	want := []domain.ActionKind{
		domain.ActionReportSubmitted,
		domain.ActionReportWithGPS,
		domain.ActionFirstReport,
		domain.ActionQualityReport,
	}
	got := actionsOf(res.Breakdown)
	if len(got) != len(want) {
		t.Fatalf("breakdown = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("breakdown[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if res.Earned != 65 || res.Total != 65 || res.Available != 65 {
		t.Errorf("earned/total/available = %d/%d/%d, want 65/65/65", res.Earned, res.Total, res.Available)
	}
	if res.QualityScore != 100 {
		t.Errorf("QualityScore = %d, want 100", res.QualityScore)
	}

	acct, _ := e.Account(ctx, "u1")
	if acct.ReportCount != 1 {
		t.Errorf("ReportCount = %d, want exactly 1", acct.ReportCount)
	}
	if acct.GPSReportCount != 1 || acct.Streak != 1 {
		t.Errorf("GPSReportCount/Streak = %d/%d, want 1/1", acct.GPSReportCount, acct.Streak)
	}
}

func TestOnReportSubmitted_SecondReportUnlocksBadge(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	e.OnReportSubmitted(ctx, fullReport(1, "u1"))
	res, err := e.OnReportSubmitted(ctx, fullReport(2, "u1"))
	if err != nil {
		t.Fatalf("OnReportSubmitted() error: %v", err)
	}

	// 65 + 10 + 5 + 25 = 105, ECO_WARRIOR bonus 50 = 155.
	if res.Earned != 40 {
		t.Errorf("Earned = %d, want 40", res.Earned)
	}
	if res.Total != 155 {
		t.Errorf("Total = %d, want 155", res.Total)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0].Key != domain.BadgeEcoWarrior {
		t.Errorf("NewBadges = %+v, want ECO_WARRIOR", res.NewBadges)
	}
	for _, a := range res.Breakdown {
		if a.Action == domain.ActionFirstReport {
			t.Error("FIRST_REPORT paid twice")
		}
	}
}

func TestOnReportSubmitted_LowQuality(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	e.OnReportSubmitted(ctx, bareReport(1, "u1"))

	res, _ := e.OnReportSubmitted(ctx, bareReport(2, "u1"))
	got := actionsOf(res.Breakdown)
	if len(got) != 1 || got[0] != domain.ActionReportSubmitted {
		t.Errorf("breakdown = %v, want [REPORT_SUBMITTED]", got)
	}
	acct, _ := e.Account(ctx, "u1")
	if acct.GPSReportCount != 0 || acct.ReportCount != 2 {
		t.Errorf("counters = %+v", acct)
	}
}

func TestOnReportSubmitted_WasteHunter(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	var last SubmissionResult
	for i := int64(1); i <= 5; i++ {
		last, _ = e.OnReportSubmitted(ctx, bareReport(i, "u1"))
	}
	// 35 + 4*10 = 75 credits, 5 reports → WASTE_HUNTER (+50) = 125 → ECO_WARRIOR (+50) = 175.
	if len(last.NewBadges) != 2 {
		t.Fatalf("NewBadges = %+v, want 2", last.NewBadges)
	}
	if last.NewBadges[0].Key != domain.BadgeEcoWarrior || last.NewBadges[1].Key != domain.BadgeWasteHunter {
		t.Errorf("NewBadges not in catalog order: %+v", last.NewBadges)
	}
	if last.Total != 175 {
		t.Errorf("Total = %d, want 175", last.Total)
	}
}

// ─── Streaks ────────────────────────────────────────────────────────────────

func TestOnReportSubmitted_WeeklyStreak(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	var res SubmissionResult
	for day := 1; day <= 7; day++ {
		res, _ = e.OnReportSubmitted(ctx, bareReport(int64(day), "u1"))
		if res.Streak != day {
			t.Fatalf("day %d streak = %d", day, res.Streak)
		}
		clock.Advance(24 * time.Hour)
	}

	found := false
	for _, a := range res.Breakdown {
		if a.Action == domain.ActionWeeklyStreak && a.Credits == 30 {
			found = true
		}
	}
	if !found {
		t.Errorf("day 7 breakdown = %v, want WEEKLY_STREAK", actionsOf(res.Breakdown))
	}
}

func TestOnReportSubmitted_StreakSameDayAndGap(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	e.OnReportSubmitted(ctx, bareReport(1, "u1"))
	clock.Advance(24 * time.Hour)
	e.OnReportSubmitted(ctx, bareReport(2, "u1"))
	clock.Advance(time.Hour)
	res, _ := e.OnReportSubmitted(ctx, bareReport(3, "u1"))
	if res.Streak != 2 {
		t.Errorf("same-day streak = %d, want 2", res.Streak)
	}

	clock.Advance(72 * time.Hour)
	res, _ = e.OnReportSubmitted(ctx, bareReport(4, "u1"))
	if res.Streak != 1 {
		t.Errorf("streak after gap = %d, want 1", res.Streak)
	}
}

func TestAward_DoesNotTouchStreak(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	e.OnReportSubmitted(ctx, bareReport(1, "u1"))
	before, _ := e.Account(ctx, "u1")
	clock.Advance(24 * time.Hour)
	e.Award(ctx, "u1", domain.ActionReportVerified, nil, 0)

	after, _ := e.Account(ctx, "u1")
	if !after.LastActivity.Equal(before.LastActivity) || after.Streak != before.Streak {
		t.Errorf("Award changed streak state: %+v → %+v", before, after)
	}
}

// ─── Status Transitions ─────────────────────────────────────────────────────

func TestOnStatusTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to domain.ReportStatus
		disposal domain.DisposalMethod
		action   domain.ActionKind
		credits  int64 // 0 means no award
	}{
		{"verified", domain.StatusPending, domain.StatusInProgress, "", domain.ActionReportVerified, 15},
		{"collected counts as progress", domain.StatusPending, domain.StatusCollected, "", domain.ActionReportVerified, 15},
		{"resolved from pending", domain.StatusPending, domain.StatusResolved, "", domain.ActionReportResolved, 20},
		{"resolved from progress", domain.StatusInProgress, domain.StatusResolved, "", domain.ActionReportResolved, 20},
		{"recycled", domain.StatusProcessed, domain.StatusDisposed, domain.DisposalRecycled, domain.ActionReportResolved, 25},
		{"composted", domain.StatusSorted, domain.StatusDisposed, domain.DisposalComposted, domain.ActionReportResolved, 20},
		{"incinerated", domain.StatusInProgress, domain.StatusDisposed, domain.DisposalIncinerated, domain.ActionReportResolved, 10},
		{"landfilled", domain.StatusInProgress, domain.StatusDisposed, domain.DisposalLandfilled, domain.ActionReportResolved, 5},
		{"disposed without method", domain.StatusInProgress, domain.StatusDisposed, "", domain.ActionReportResolved, 20},
		{"terminal to terminal", domain.StatusResolved, domain.StatusDisposed, domain.DisposalRecycled, 0, 0},
		{"same status", domain.StatusPending, domain.StatusPending, "", 0, 0},
		{"progress to progress", domain.StatusCollected, domain.StatusSorted, "", 0, 0},
		{"back to pending", domain.StatusInProgress, domain.StatusPending, "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			ctx := context.Background()
			r := bareReport(1, "u1")
			r.DisposalMethod = tt.disposal

			res, err := e.OnStatusTransition(ctx, r, tt.from, tt.to)
			if err != nil {
				t.Fatalf("OnStatusTransition() error: %v", err)
			}
			if tt.credits == 0 {
				if res.Award != nil {
					t.Errorf("unexpected award %+v", res.Award)
				}
				return
			}
			if res.Award == nil {
				t.Fatal("expected an award")
			}
			if res.Award.Action != tt.action || res.Award.Credits != tt.credits {
				t.Errorf("award = %v/%d, want %v/%d", res.Award.Action, res.Award.Credits, tt.action, tt.credits)
			}
			if res.Total != tt.credits {
				t.Errorf("Total = %d, want %d", res.Total, tt.credits)
			}
		})
	}
}

func TestOnStatusTransition_PaidOncePerReport(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	r := bareReport(1, "u1")

	e.OnStatusTransition(ctx, r, domain.StatusPending, domain.StatusResolved)
	e.OnStatusTransition(ctx, r, domain.StatusResolved, domain.StatusPending)
	res, _ := e.OnStatusTransition(ctx, r, domain.StatusPending, domain.StatusResolved)
	if res.Award != nil {
		t.Errorf("reopened report paid again: %+v", res.Award)
	}
	if res.Total != 20 {
		t.Errorf("Total = %d, want 20", res.Total)
	}

	// A different report still pays.
	res, _ = e.OnStatusTransition(ctx, bareReport(2, "u1"), domain.StatusPending, domain.StatusResolved)
	if res.Award == nil {
		t.Error("second report was not paid")
	}
}

// ─── Generic Award ──────────────────────────────────────────────────────────

func TestAward_UnlocksBadgeInSameCall(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 95); err != nil {
		t.Fatalf("Award(custom 95) error: %v", err)
	}
	acct, _ := e.Account(ctx, "u1")
	if acct.TotalCredits != 95 {
		t.Fatalf("TotalCredits = %d, want 95", acct.TotalCredits)
	}

	res, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 0)
	if err != nil {
		t.Fatalf("Award() error: %v", err)
	}
	if res.Award == nil || res.Award.Credits != 10 {
		t.Errorf("award = %+v, want 10 credits", res.Award)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0].Key != domain.BadgeEcoWarrior {
		t.Errorf("NewBadges = %+v, want ECO_WARRIOR", res.NewBadges)
	}
	if res.Total != 155 {
		t.Errorf("Total = %d, want 155", res.Total)
	}

	history, _ := e.History(ctx, "u1")
	if history[0].Action != domain.ActionBadgeBonus || history[0].Amount != 50 {
		t.Errorf("latest transaction = %+v, want BADGE_BONUS 50", history[0])
	}
}

func TestAward_Multiplier(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.SetMultiplier(ctx, "u1", 1.5); err != nil {
		t.Fatalf("SetMultiplier() error: %v", err)
	}
	res, _ := e.Award(ctx, "u1", domain.ActionReportWithGPS, nil, 0)
	if res.Award.Credits != 7 {
		t.Errorf("credits = %d, want floor(5*1.5) = 7", res.Award.Credits)
	}

	e.SetMultiplier(ctx, "u1", 0)
	res, _ = e.Award(ctx, "u1", domain.ActionReportWithGPS, nil, 0)
	if res.Award != nil {
		t.Errorf("zero multiplier still paid %+v", res.Award)
	}
}

func TestAward_Errors(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		action domain.ActionKind
		custom int64
		want   error
	}{
		{"unknown kind", domain.ActionKind(99), 0, domain.ErrUnknownActionKind},
		{"unknown kind with amount", domain.ActionKind(99), 10, domain.ErrUnknownActionKind},
		{"redemption", domain.ActionRedemption, 10, domain.ErrInvalidAmount},
		{"negative amount", domain.ActionReportSubmitted, -5, domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Award(ctx, "u1", tt.action, nil, tt.custom); !errors.Is(err, tt.want) {
				t.Errorf("Award() err = %v, want %v", err, tt.want)
			}
		})
	}

	if h, _ := e.History(ctx, "u1"); len(h) != 0 {
		t.Errorf("failed awards wrote %d transactions", len(h))
	}
}

func TestAward_BadgeBonusDefault(t *testing.T) {
	e, _, _ := newTestEngine(t)
	res, err := e.Award(context.Background(), "u1", domain.ActionBadgeBonus, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Award.Credits != 50 {
		t.Errorf("BADGE_BONUS credits = %d, want 50", res.Award.Credits)
	}
}

func TestSetMultiplier_Invalid(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.SetMultiplier(context.Background(), "u1", -0.5); !errors.Is(err, domain.ErrInvalidMultiplier) {
		t.Errorf("SetMultiplier(-0.5) err = %v, want ErrInvalidMultiplier", err)
	}
}

// ─── Redemption ─────────────────────────────────────────────────────────────

func TestRedeem(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	e.Award(ctx, "u1", domain.ActionFirstReport, nil, 0)

	_, remaining, err := e.Redeem(ctx, "u1", "bus-pass", 30)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Redeem(30) err = %v, want ErrInsufficientBalance", err)
	}
	if remaining != 25 {
		t.Errorf("remaining after failure = %d, want 25", remaining)
	}

	tx, remaining, err := e.Redeem(ctx, "u1", "bus-pass", 20)
	if err != nil {
		t.Fatalf("Redeem(20) error: %v", err)
	}
	if remaining != 5 || tx.Amount != -20 || tx.Description != "Redeemed for reward: bus-pass" {
		t.Errorf("Redeem() = %+v, remaining %d", tx, remaining)
	}

	acct, _ := e.Account(ctx, "u1")
	if !acct.Balanced() || acct.TotalCredits != 25 || acct.Redeemed != 20 {
		t.Errorf("account after redeem = %+v", acct)
	}
}

// ─── Concurrency ────────────────────────────────────────────────────────────

func TestEngine_ConcurrentAwardsSerializedPerUser(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 0); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// 500 credits plus ECO_WARRIOR and CITY_GUARDIAN bonuses.
	acct, _ := e.Account(ctx, "u1")
	if acct.TotalCredits != 600 {
		t.Errorf("TotalCredits = %d, want 600", acct.TotalCredits)
	}
	if !acct.Balanced() {
		t.Error("account unbalanced")
	}
	badges, _ := e.Badges(ctx, "u1")
	if len(badges) != 2 {
		t.Errorf("badges = %d, want 2", len(badges))
	}
	if n := e.locks.size(); n != 0 {
		t.Errorf("lock table holds %d entries after release", n)
	}
}

// ─── Atomic Updates ─────────────────────────────────────────────────────────

func newFlakyEngine(t *testing.T) (*Engine, *flakyStore) {
	t.Helper()
	store := &flakyStore{Store: memstore.New()}
	cfg := DefaultConfig()
	cfg.Now = newFakeClock().Now
	return NewEngine(store, cfg, nil), store
}

func TestOnReportSubmitted_FailedCommitAppliesNothing(t *testing.T) {
	e, store := newFlakyEngine(t)
	ctx := context.Background()
	errDisk := errors.New("disk full")

	store.fail(errDisk)
	if _, err := e.OnReportSubmitted(ctx, fullReport(1, "u1")); !errors.Is(err, errDisk) {
		t.Fatalf("OnReportSubmitted() err = %v, want %v", err, errDisk)
	}
	if _, err := store.GetAccount(ctx, "u1"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("failed submission left an account behind: %v", err)
	}

	// Counters, credits and badges travel in the one update.
	u := store.last
	if u.Activity == nil || u.Activity.Reports != 1 || u.Activity.Streak != 1 {
		t.Errorf("activity = %+v", u.Activity)
	}
	if len(u.Transactions) != 4 {
		t.Errorf("update carries %d transactions, want 4", len(u.Transactions))
	}

	// The retry is still the user's first report.
	store.fail(nil)
	res, err := e.OnReportSubmitted(ctx, fullReport(1, "u1"))
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if res.Earned != 65 || res.Streak != 1 {
		t.Errorf("retry earned/streak = %d/%d, want 65/1", res.Earned, res.Streak)
	}
	acct, _ := e.Account(ctx, "u1")
	if acct.ReportCount != 1 || acct.TotalCredits != 65 {
		t.Errorf("account after retry = %+v", acct)
	}
}

func TestAward_BadgeAndBonusCommitTogether(t *testing.T) {
	e, store := newFlakyEngine(t)
	ctx := context.Background()
	if _, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 90); err != nil {
		t.Fatal(err)
	}

	store.fail(errors.New("locked"))
	if _, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 0); err == nil {
		t.Fatal("Award() succeeded on a failing store")
	}
	if badges, _ := e.Badges(ctx, "u1"); len(badges) != 0 {
		t.Errorf("failed award granted %d badges", len(badges))
	}
	if g := store.last.Badges; len(g) != 1 || g[0].Bonus == nil || g[0].Bonus.Amount != 50 {
		t.Errorf("badge grants = %+v, want ECO_WARRIOR with its bonus", g)
	}

	store.fail(nil)
	res, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.NewBadges) != 1 || res.Total != 150 {
		t.Errorf("award = %+v, want ECO_WARRIOR and 150 credits", res)
	}
}

// Two engines over two handles on one database file stand in for the CLI
// running next to a server.
func TestEngine_SharedDatabaseKeepsEveryAward(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var engines []*Engine
	for i := 0; i < 2; i++ {
		db, err := sqlite.Open(dir)
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		engines = append(engines, NewEngine(db, DefaultConfig(), nil))
	}

	const perEngine = 20
	var wg sync.WaitGroup
	for _, e := range engines {
		for i := 0; i < perEngine; i++ {
			wg.Add(1)
			go func(e *Engine) {
				defer wg.Done()
				if _, err := e.Award(ctx, "u1", domain.ActionReportSubmitted, nil, 1); err != nil {
					t.Error(err)
				}
			}(e)
		}
	}
	wg.Wait()

	acct, err := engines[0].Account(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	history, _ := engines[1].History(ctx, "u1")
	var sum int64
	for _, tx := range history {
		sum += tx.Amount
	}
	if len(history) != 2*perEngine || sum != 2*perEngine {
		t.Errorf("log = %d rows summing to %d, want %d", len(history), sum, 2*perEngine)
	}
	if acct.TotalCredits != sum || !acct.Balanced() {
		t.Errorf("account = %+v, want total %d matching the log", acct, sum)
	}
}
