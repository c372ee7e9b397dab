package domain

import (
	"fmt"
	"time"
)

// ─── Badge Catalog ──────────────────────────────────────────────────────────
// Badges are a closed set evaluated in catalog order. Each definition carries
// the metric it watches and the threshold that unlocks it.

// BadgeKey identifies a catalog badge.
type BadgeKey int

const (
	BadgeEcoWarrior BadgeKey = iota
	BadgeWasteHunter
	BadgeGPSMaster
	BadgeCityGuardian
	BadgeGreenChampion
	BadgeStreakMaster
)

// BadgeMetric selects the account counter a badge threshold applies to.
type BadgeMetric int

const (
	MetricCredits BadgeMetric = iota
	MetricReports
	MetricGPSReports
	MetricStreak
)

// Value reads the metric from an account snapshot.
func (m BadgeMetric) Value(a LedgerAccount) int64 {
	switch m {
	case MetricCredits:
		return a.TotalCredits
	case MetricReports:
		return int64(a.ReportCount)
	case MetricGPSReports:
		return int64(a.GPSReportCount)
	case MetricStreak:
		return int64(a.Streak)
	}
	return 0
}

// String names the metric the way the API reports progress.
func (m BadgeMetric) String() string {
	switch m {
	case MetricCredits:
		return "credits"
	case MetricReports:
		return "reports"
	case MetricGPSReports:
		return "gps_reports"
	case MetricStreak:
		return "streak"
	}
	return fmt.Sprintf("BadgeMetric(%d)", int(m))
}

// BadgeDefinition is one catalog entry.
type BadgeDefinition struct {
	Key         BadgeKey
	ID          string
	Name        string
	Icon        string
	Description string
	Metric      BadgeMetric
	Threshold   int64
}

// Unlocked is the badge predicate.
func (d BadgeDefinition) Unlocked(a LedgerAccount) bool {
	return d.Metric.Value(a) >= d.Threshold
}

// BadgeCatalog is the fixed catalog in evaluation order.
var BadgeCatalog = []BadgeDefinition{
	{BadgeEcoWarrior, "ECO_WARRIOR", "Eco Warrior", "🌱", "Earned 100 Green Credits", MetricCredits, 100},
	{BadgeWasteHunter, "WASTE_HUNTER", "Waste Hunter", "🔍", "Submitted 5 waste reports", MetricReports, 5},
	{BadgeGPSMaster, "GPS_MASTER", "GPS Master", "📍", "10 reports with GPS location", MetricGPSReports, 10},
	{BadgeCityGuardian, "CITY_GUARDIAN", "City Guardian", "🏆", "Earned 500 Green Credits", MetricCredits, 500},
	{BadgeGreenChampion, "GREEN_CHAMPION", "Green Champion", "👑", "Earned 1000 Green Credits", MetricCredits, 1000},
	{BadgeStreakMaster, "STREAK_MASTER", "Streak Master", "⚡", "30-day activity streak", MetricStreak, 30},
}

// Definition returns the catalog entry for k.
func (k BadgeKey) Definition() (BadgeDefinition, bool) {
	for _, d := range BadgeCatalog {
		if d.Key == k {
			return d, true
		}
	}
	return BadgeDefinition{}, false
}

// String returns the wire id, e.g. "ECO_WARRIOR".
func (k BadgeKey) String() string {
	if d, ok := k.Definition(); ok {
		return d.ID
	}
	return fmt.Sprintf("BadgeKey(%d)", int(k))
}

// MarshalText encodes the key as its wire id.
func (k BadgeKey) MarshalText() ([]byte, error) {
	if _, ok := k.Definition(); !ok {
		return nil, fmt.Errorf("unknown badge key %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a wire id.
func (k *BadgeKey) UnmarshalText(b []byte) error {
	parsed, err := ParseBadgeKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseBadgeKey maps a wire id back to its key.
func ParseBadgeKey(id string) (BadgeKey, error) {
	for _, d := range BadgeCatalog {
		if d.ID == id {
			return d.Key, nil
		}
	}
	return 0, fmt.Errorf("unknown badge %q", id)
}

// ─── Badge Instances ────────────────────────────────────────────────────────

// Badge is a badge owned by one user. Ownership is never revoked.
type Badge struct {
	Key         BadgeKey  `json:"key"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// NewBadge instantiates a catalog entry for a user.
func NewBadge(d BadgeDefinition, earnedAt time.Time) Badge {
	return Badge{
		Key:         d.Key,
		Name:        d.Name,
		Icon:        d.Icon,
		Description: d.Description,
		EarnedAt:    earnedAt,
	}
}

// BadgeProgress describes how close a user is to an unearned badge.
type BadgeProgress struct {
	Key         BadgeKey `json:"key"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Metric      string   `json:"metric"`
	Progress    int64    `json:"progress"`
	Target      int64    `json:"target"`
	Percentage  float64  `json:"percentage"`
}
