package rewards

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/observability"
	"github.com/greencredits/greencredits/internal/logger"
)

// BadgeEvaluator grants catalog badges whose thresholds an account has
// crossed and pays the badge bonus for each.
type BadgeEvaluator struct {
	ledger *Ledger
	badges domain.BadgeStore
	cfg    Config
	log    *zap.Logger
}

// NewBadgeEvaluator creates an evaluator crediting bonuses through ledger.
func NewBadgeEvaluator(ledger *Ledger, badges domain.BadgeStore, cfg Config, log *zap.Logger) *BadgeEvaluator {
	return &BadgeEvaluator{
		ledger: ledger,
		badges: badges,
		cfg:    cfg.withDefaults(),
		log:    logger.OrDefault(log),
	}
}

// Evaluate grants every badge the stored account now qualifies for and
// returns the new ones in catalog order. Badges and their bonuses are
// committed together.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, userID string) ([]domain.Badge, error) {
	acct, err := e.ledger.peek(ctx, userID)
	if err != nil {
		return nil, err
	}
	grants, err := e.plan(ctx, acct)
	if err != nil || len(grants) == 0 {
		return nil, err
	}
	res, err := e.ledger.Apply(ctx, domain.LedgerUpdate{UserID: userID, Badges: grants})
	if err != nil {
		return nil, fmt.Errorf("grant badges: %w", err)
	}
	return e.record(userID, res.Badges), nil
}

// plan returns the badges acct qualifies for, each with its bonus.
//
// A bonus can push credits over the next threshold, so passes repeat until
// one unlocks nothing. Each pass grants at least one badge or stops, which
// bounds the loop by the catalog size.
func (e *BadgeEvaluator) plan(ctx context.Context, acct domain.LedgerAccount) ([]domain.BadgeGrant, error) {
	owned, err := e.ownedSet(ctx, acct.UserID)
	if err != nil {
		return nil, err
	}

	var grants []domain.BadgeGrant
	for pass := 0; pass < len(domain.BadgeCatalog); pass++ {
		progressed := false
		for _, def := range domain.BadgeCatalog {
			if owned[def.Key] || !def.Unlocked(acct) {
				continue
			}
			owned[def.Key] = true
			progressed = true

			grant := domain.BadgeGrant{Badge: domain.NewBadge(def, e.cfg.Now())}
			if bonus := Scale(e.cfg.BadgeBonus, acct.Multiplier); bonus > 0 {
				grant.Bonus = &domain.Transaction{
					UserID:      acct.UserID,
					Action:      domain.ActionBadgeBonus,
					Amount:      bonus,
					Description: fmt.Sprintf("Badge unlocked: %s", def.Name),
					Timestamp:   e.cfg.Now(),
				}
				if err := acct.Post(bonus); err != nil {
					return nil, err
				}
			}
			grants = append(grants, grant)
		}
		if !progressed {
			break
		}
	}
	return grants, nil
}

// record reports newly granted badges and returns them in catalog order.
func (e *BadgeEvaluator) record(userID string, granted []domain.Badge) []domain.Badge {
	out := make([]domain.Badge, 0, len(granted))
	for _, b := range granted {
		observability.RecordBadge(b)
		e.log.Info("badge unlocked", zap.String("user_id", userID), zap.Stringer("badge", b.Key))
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// NextAvailable returns the unearned badges closest to unlocking, highest
// percentage first, ties in catalog order.
func (e *BadgeEvaluator) NextAvailable(ctx context.Context, userID string) ([]domain.BadgeProgress, error) {
	owned, err := e.ownedSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	acct, err := e.ledger.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := make([]domain.BadgeProgress, 0, len(domain.BadgeCatalog))
	for _, def := range domain.BadgeCatalog {
		if owned[def.Key] {
			continue
		}
		progress := def.Metric.Value(acct)
		if progress >= def.Threshold {
			continue
		}
		next = append(next, domain.BadgeProgress{
			Key:         def.Key,
			Name:        def.Name,
			Icon:        def.Icon,
			Description: def.Description,
			Metric:      def.Metric.String(),
			Progress:    progress,
			Target:      def.Threshold,
			Percentage:  percentage(progress, def.Threshold),
		})
	}

	sort.SliceStable(next, func(i, j int) bool { return next[i].Percentage > next[j].Percentage })
	if len(next) > e.cfg.NextBadgesLimit {
		next = next[:e.cfg.NextBadgesLimit]
	}
	return next, nil
}

// Owned returns the user's badges.
func (e *BadgeEvaluator) Owned(ctx context.Context, userID string) ([]domain.Badge, error) {
	return e.badges.ListBadges(ctx, userID)
}

func (e *BadgeEvaluator) ownedSet(ctx context.Context, userID string) (map[domain.BadgeKey]bool, error) {
	badges, err := e.badges.ListBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	owned := make(map[domain.BadgeKey]bool, len(badges))
	for _, b := range badges {
		owned[b.Key] = true
	}
	return owned, nil
}

func percentage(progress, target int64) float64 {
	if target <= 0 {
		return 100
	}
	p := float64(progress) * 100 / float64(target)
	if p > 100 {
		return 100
	}
	return p
}
