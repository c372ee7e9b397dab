// Package rewards turns report events into ledger transactions and badges.
//
// The Engine is the entry point. It owns a Ledger (balance plus append-only
// history), a BadgeEvaluator (catalog thresholds and bonus credits) and the
// streak rules. Every award sequence for one user runs under that user's
// lock and reaches the store as one ledger update, so the evaluator sees the
// balance the award produces and a failure applies nothing.
package rewards

import (
	"math"
	"time"
)

// Config tunes the award rules.
type Config struct {
	// QualityThreshold is the minimum quality score paying QUALITY_REPORT.
	// Zero or less means the default; daemon config rejects it.
	QualityThreshold int

	// BadgeBonus is the base credit bonus paid per unlocked badge.
	BadgeBonus int64

	// NextBadgesLimit caps NextAvailable results.
	NextBadgesLimit int

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the production award rules.
func DefaultConfig() Config {
	return Config{
		QualityThreshold: 80,
		BadgeBonus:       50,
		NextBadgesLimit:  3,
		Now:              time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	if c.BadgeBonus <= 0 {
		c.BadgeBonus = d.BadgeBonus
	}
	if c.NextBadgesLimit <= 0 {
		c.NextBadgesLimit = d.NextBadgesLimit
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Scale applies an account multiplier to a base amount, rounding down.
func Scale(base int64, multiplier float64) int64 {
	return int64(math.Floor(float64(base) * multiplier))
}
