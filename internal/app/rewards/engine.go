package rewards

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/app/quality"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/observability"
	"github.com/greencredits/greencredits/internal/logger"
)

// Store is what the engine needs from a backend.
type Store interface {
	domain.LedgerStore
	domain.BadgeStore
}

// Award is one credited action, as reported back to the client.
type Award struct {
	Action      domain.ActionKind `json:"action"`
	Credits     int64             `json:"credits"`
	Description string            `json:"description"`
}

// SubmissionResult summarizes the credits a report submission produced.
// Earned excludes badge bonuses; Total and Available include them.
type SubmissionResult struct {
	Earned       int64          `json:"earned"`
	Total        int64          `json:"total"`
	Available    int64          `json:"available"`
	NewBadges    []domain.Badge `json:"newBadges"`
	Breakdown    []Award        `json:"breakdown"`
	QualityScore int            `json:"qualityScore"`
	Streak       int            `json:"streak"`
}

// AwardResult summarizes a single award. Award is nil when nothing was paid.
type AwardResult struct {
	Award     *Award         `json:"award,omitempty"`
	NewBadges []domain.Badge `json:"newBadges"`
	Total     int64          `json:"total"`
	Available int64          `json:"available"`
}

// Engine is the credit award engine.
type Engine struct {
	ledger  *Ledger
	badges  *BadgeEvaluator
	streaks StreakPolicy
	cfg     Config
	locks   *keyedMutex
	log     *zap.Logger
}

// NewEngine wires a ledger and badge evaluator over store.
func NewEngine(store Store, cfg Config, log *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	log = logger.OrDefault(log).Named("rewards")
	ledger := NewLedger(store, cfg.Now, log)
	return &Engine{
		ledger: ledger,
		badges: NewBadgeEvaluator(ledger, store, cfg, log),
		cfg:    cfg,
		locks:  newKeyedMutex(),
		log:    log,
	}
}

// ─── Report Events ──────────────────────────────────────────────────────────

// OnReportSubmitted pays the submission awards for a newly stored report,
// updates report counters and the streak, then evaluates badges once. All
// of it is committed as one ledger update; on error nothing is applied.
func (e *Engine) OnReportSubmitted(ctx context.Context, r domain.Report) (SubmissionResult, error) {
	unlock := e.locks.Lock(r.UserID)
	defer unlock()

	u, err := e.begin(ctx, r.UserID)
	if err != nil {
		return SubmissionResult{}, err
	}
	firstReport := u.acct.ReportCount == 0
	score := quality.Score(r)
	now := e.cfg.Now()

	prevStreak := u.acct.Streak
	activity := domain.Activity{
		Reports:      1,
		Streak:       e.streaks.Next(prevStreak, u.acct.LastActivity, now),
		LastActivity: now,
	}
	if r.HasGPS() {
		activity.GPSReports = 1
	}
	u.Activity = &activity
	activity.Apply(&u.acct)

	actions := []domain.ActionKind{domain.ActionReportSubmitted}
	if r.HasGPS() {
		actions = append(actions, domain.ActionReportWithGPS)
	}
	if firstReport {
		actions = append(actions, domain.ActionFirstReport)
	}
	if score >= e.cfg.QualityThreshold {
		actions = append(actions, domain.ActionQualityReport)
	}
	if activity.Streak > prevStreak {
		actions = append(actions, e.streaks.Milestones(activity.Streak)...)
	}

	reportID := r.ID
	result := SubmissionResult{
		Breakdown:    make([]Award, 0, len(actions)),
		QualityScore: score,
		Streak:       activity.Streak,
	}
	for _, action := range actions {
		def, _ := action.Definition()
		if award := u.credit(action, def.Credits, def.Description, &reportID, now); award != nil {
			result.Breakdown = append(result.Breakdown, *award)
			result.Earned += award.Credits
		}
	}

	acct, badges, err := e.commit(ctx, u)
	if err != nil {
		return SubmissionResult{}, err
	}
	result.NewBadges = badges
	result.Total, result.Available = acct.TotalCredits, acct.AvailableCredits

	observability.ReportsSubmitted.Inc()
	observability.ReportQuality.Observe(float64(score))
	e.log.Info("report rewarded",
		zap.String("user_id", r.UserID),
		zap.Int64("report_id", r.ID),
		zap.Int("quality", score),
		zap.Int64("earned", result.Earned),
		zap.Int("new_badges", len(result.NewBadges)),
	)
	return result, nil
}

// OnStatusTransition pays for a report moving from one status to another.
//
//	Pending → in progress        REPORT_VERIFIED
//	non-terminal → terminal      REPORT_RESOLVED (disposal method sets the amount)
//	terminal → terminal          nothing
//
// Each action is paid at most once per report.
func (e *Engine) OnStatusTransition(ctx context.Context, r domain.Report, from, to domain.ReportStatus) (AwardResult, error) {
	if from == to {
		return AwardResult{NewBadges: []domain.Badge{}}, nil
	}
	observability.StatusTransitions.WithLabelValues(string(to)).Inc()

	var (
		action      domain.ActionKind
		base        int64
		description string
	)
	switch {
	case from == domain.StatusPending && to.InProgress():
		def, _ := domain.ActionReportVerified.Definition()
		action, base, description = def.Kind, def.Credits, def.Description
	case !from.Terminal() && to.Terminal():
		def, _ := domain.ActionReportResolved.Definition()
		action, base, description = def.Kind, def.Credits, def.Description
		if to == domain.StatusDisposed {
			if credits, ok := domain.DisposalCredits(r.DisposalMethod); ok {
				base = credits
				description = fmt.Sprintf("%s (%s)", def.Description, r.DisposalMethod)
			}
		}
	default:
		return AwardResult{NewBadges: []domain.Badge{}}, nil
	}

	unlock := e.locks.Lock(r.UserID)
	defer unlock()

	paid, err := e.alreadyPaid(ctx, r.UserID, r.ID, action)
	if err != nil {
		return AwardResult{}, err
	}
	if paid {
		e.log.Debug("transition already paid",
			zap.Int64("report_id", r.ID),
			zap.Stringer("action", action),
		)
		return e.result(ctx, r.UserID)
	}

	reportID := r.ID
	return e.awardOnce(ctx, r.UserID, action, base, description, &reportID)
}

// ─── Generic Award ──────────────────────────────────────────────────────────

// Award credits one action to a user, scaled by the account multiplier, and
// evaluates badges. customAmount replaces the action's base credits when
// positive.
func (e *Engine) Award(ctx context.Context, userID string, action domain.ActionKind, reportID *int64, customAmount int64) (AwardResult, error) {
	def, ok := action.Definition()
	if !ok {
		e.log.Warn("unknown action kind", zap.Int("action", int(action)), zap.String("user_id", userID))
		return AwardResult{}, fmt.Errorf("%w: %d", domain.ErrUnknownActionKind, int(action))
	}
	if action == domain.ActionRedemption {
		return AwardResult{}, fmt.Errorf("%w: redemptions are debits", domain.ErrInvalidAmount)
	}
	if customAmount < 0 {
		return AwardResult{}, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, customAmount)
	}

	base := def.Credits
	if customAmount > 0 {
		base = customAmount
	} else if action == domain.ActionBadgeBonus {
		base = e.cfg.BadgeBonus
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	return e.awardOnce(ctx, userID, action, base, def.Description, reportID)
}

// Redeem spends credits on a reward and returns the transaction and the
// remaining available balance.
func (e *Engine) Redeem(ctx context.Context, userID, rewardID string, credits int64) (domain.Transaction, int64, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	tx, acct, err := e.ledger.Debit(ctx, userID, credits, "Redeemed for reward: "+rewardID, rewardID)
	if err != nil {
		return domain.Transaction{}, acct.AvailableCredits, err
	}
	e.log.Info("credits redeemed",
		zap.String("user_id", userID),
		zap.String("reward_id", rewardID),
		zap.Int64("credits", credits),
		zap.Int64("remaining", acct.AvailableCredits),
	)
	return tx, acct.AvailableCredits, nil
}

// SetMultiplier changes the factor applied to the user's future awards.
func (e *Engine) SetMultiplier(ctx context.Context, userID string, m float64) (domain.LedgerAccount, error) {
	if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return domain.LedgerAccount{}, fmt.Errorf("%w: %v", domain.ErrInvalidMultiplier, m)
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	acct, err := e.ledger.store.SetMultiplier(ctx, userID, m)
	if err != nil {
		return domain.LedgerAccount{}, fmt.Errorf("set multiplier: %w", err)
	}
	e.log.Info("multiplier set", zap.String("user_id", userID), zap.Float64("multiplier", m))
	return acct, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Account returns the user's ledger account, creating it if needed.
func (e *Engine) Account(ctx context.Context, userID string) (domain.LedgerAccount, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.ledger.EnsureAccount(ctx, userID)
}

// History returns the user's transactions newest first.
func (e *Engine) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return e.ledger.History(ctx, userID)
}

// Badges returns the badges the user owns.
func (e *Engine) Badges(ctx context.Context, userID string) ([]domain.Badge, error) {
	return e.badges.Owned(ctx, userID)
}

// NextBadges returns progress toward the closest unearned badges.
func (e *Engine) NextBadges(ctx context.Context, userID string) ([]domain.BadgeProgress, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()
	return e.badges.NextAvailable(ctx, userID)
}

// ─── Internals ──────────────────────────────────────────────────────────────

// update collects the writes of one engine operation so they reach the
// store as a single LedgerUpdate. acct is the account as it will read once
// the update is applied.
type update struct {
	domain.LedgerUpdate
	acct domain.LedgerAccount
}

func (e *Engine) begin(ctx context.Context, userID string) (*update, error) {
	acct, err := e.ledger.peek(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &update{LedgerUpdate: domain.LedgerUpdate{UserID: userID}, acct: acct}, nil
}

// credit scales base by the account multiplier and queues it. Returns nil
// when the scaled amount is zero.
func (u *update) credit(action domain.ActionKind, base int64, description string, reportID *int64, now time.Time) *Award {
	amount := Scale(base, u.acct.Multiplier)
	if amount <= 0 {
		return nil
	}
	u.Transactions = append(u.Transactions, domain.Transaction{
		UserID:      u.UserID,
		Action:      action,
		Amount:      amount,
		Description: description,
		ReportID:    reportID,
		Timestamp:   now,
	})
	u.acct.Post(amount)
	return &Award{Action: action, Credits: amount, Description: description}
}

// commit adds the badges u unlocks and applies everything in one step.
// Caller holds the user's lock.
func (e *Engine) commit(ctx context.Context, u *update) (domain.LedgerAccount, []domain.Badge, error) {
	grants, err := e.badges.plan(ctx, u.acct)
	if err != nil {
		return domain.LedgerAccount{}, nil, err
	}
	u.Badges = grants
	res, err := e.ledger.Apply(ctx, u.LedgerUpdate)
	if err != nil {
		return domain.LedgerAccount{}, nil, fmt.Errorf("commit ledger update: %w", err)
	}
	return res.Account, e.badges.record(u.UserID, res.Badges), nil
}

// awardOnce credits one scaled action together with any badges it unlocks.
// Caller holds the user's lock.
func (e *Engine) awardOnce(ctx context.Context, userID string, action domain.ActionKind, base int64, description string, reportID *int64) (AwardResult, error) {
	u, err := e.begin(ctx, userID)
	if err != nil {
		return AwardResult{}, err
	}
	award := u.credit(action, base, description, reportID, e.cfg.Now())
	acct, badges, err := e.commit(ctx, u)
	if err != nil {
		return AwardResult{}, err
	}
	return AwardResult{
		Award:     award,
		NewBadges: badges,
		Total:     acct.TotalCredits,
		Available: acct.AvailableCredits,
	}, nil
}

func (e *Engine) alreadyPaid(ctx context.Context, userID string, reportID int64, action domain.ActionKind) (bool, error) {
	txs, err := e.ledger.store.ListTransactions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, tx := range txs {
		if tx.Action == action && tx.ReportID != nil && *tx.ReportID == reportID {
			return true, nil
		}
	}
	return false, nil
}

// result reports the current balance for a call that paid nothing.
func (e *Engine) result(ctx context.Context, userID string) (AwardResult, error) {
	acct, err := e.ledger.EnsureAccount(ctx, userID)
	if err != nil {
		return AwardResult{}, err
	}
	return AwardResult{
		NewBadges: []domain.Badge{},
		Total:     acct.TotalCredits,
		Available: acct.AvailableCredits,
	}, nil
}
