package rewards

import (
	"time"

	"github.com/greencredits/greencredits/internal/domain"
)

// ─── Streak Policy ──────────────────────────────────────────────────────────
// Activity is a report submission, counted per UTC calendar day.
//
//   same day as last activity  → unchanged (at least 1)
//   the following day          → +1
//   first activity, or a gap   → reset to 1

const (
	WeeklyStreakDays  = 7
	MonthlyStreakDays = 30
)

// StreakPolicy computes streak transitions.
type StreakPolicy struct{}

// Next returns the streak after an activity at now, given the previous
// streak and last activity time.
func (StreakPolicy) Next(prev int, last, now time.Time) int {
	if last.IsZero() || prev <= 0 {
		return 1
	}
	switch days := dayNumber(now) - dayNumber(last); {
	case days <= 0:
		return prev
	case days == 1:
		return prev + 1
	default:
		return 1
	}
}

// Milestones returns the streak actions earned by reaching streak. Callers
// only ask when the streak actually grew.
func (StreakPolicy) Milestones(streak int) []domain.ActionKind {
	var out []domain.ActionKind
	if streak > 0 && streak%WeeklyStreakDays == 0 {
		out = append(out, domain.ActionWeeklyStreak)
	}
	if streak > 0 && streak%MonthlyStreakDays == 0 {
		out = append(out, domain.ActionMonthlyStreak)
	}
	return out
}

func dayNumber(t time.Time) int64 {
	return t.UTC().Truncate(24*time.Hour).Unix() / 86400
}
