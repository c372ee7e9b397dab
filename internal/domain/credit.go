package domain

import (
	"fmt"
	"time"
)

// ─── Credit Actions ─────────────────────────────────────────────────────────
// The action table is a closed set. Every ActionKind has exactly one entry in
// actionTable; TestActionKinds_AllDefined keeps the two in step.

// ActionKind is the business reason for a ledger transaction.
type ActionKind int

const (
	ActionReportSubmitted ActionKind = iota
	ActionReportWithGPS
	ActionFirstReport
	ActionReportVerified
	ActionReportResolved
	ActionQualityReport
	ActionWeeklyStreak
	ActionMonthlyStreak
	ActionBadgeBonus
	ActionRedemption
)

// ActionKinds lists every action kind in declaration order.
var ActionKinds = []ActionKind{
	ActionReportSubmitted,
	ActionReportWithGPS,
	ActionFirstReport,
	ActionReportVerified,
	ActionReportResolved,
	ActionQualityReport,
	ActionWeeklyStreak,
	ActionMonthlyStreak,
	ActionBadgeBonus,
	ActionRedemption,
}

// ActionDefinition is the static configuration of one action kind.
// Credits is zero for kinds that always carry a caller-supplied amount.
type ActionDefinition struct {
	Kind        ActionKind
	Key         string
	Credits     int64
	Description string
}

var actionTable = map[ActionKind]ActionDefinition{
	ActionReportSubmitted: {ActionReportSubmitted, "REPORT_SUBMITTED", 10, "Report submitted with photo"},
	ActionReportWithGPS:   {ActionReportWithGPS, "REPORT_WITH_GPS", 5, "GPS location provided"},
	ActionFirstReport:     {ActionFirstReport, "FIRST_REPORT", 25, "First environmental report"},
	ActionReportVerified:  {ActionReportVerified, "REPORT_VERIFIED", 15, "Report verified by municipality"},
	ActionReportResolved:  {ActionReportResolved, "REPORT_RESOLVED", 20, "Reported issue resolved"},
	ActionQualityReport:   {ActionQualityReport, "QUALITY_REPORT", 25, "High-quality detailed report"},
	ActionWeeklyStreak:    {ActionWeeklyStreak, "WEEKLY_STREAK", 30, "Active for 7 consecutive days"},
	ActionMonthlyStreak:   {ActionMonthlyStreak, "MONTHLY_STREAK", 100, "Active for 30 consecutive days"},
	ActionBadgeBonus:      {ActionBadgeBonus, "BADGE_BONUS", 0, "Badge unlocked bonus"},
	ActionRedemption:      {ActionRedemption, "REDEMPTION", 0, "Redeemed for reward"},
}

// Definition returns the static entry for k.
func (k ActionKind) Definition() (ActionDefinition, bool) {
	d, ok := actionTable[k]
	return d, ok
}

// String returns the wire key, e.g. "REPORT_SUBMITTED".
func (k ActionKind) String() string {
	if d, ok := actionTable[k]; ok {
		return d.Key
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// MarshalText encodes the kind as its wire key.
func (k ActionKind) MarshalText() ([]byte, error) {
	if _, ok := actionTable[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownActionKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a wire key.
func (k *ActionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseActionKind maps a wire key back to its kind.
func ParseActionKind(key string) (ActionKind, error) {
	for _, k := range ActionKinds {
		if actionTable[k].Key == key {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownActionKind, key)
}

// ─── Disposal Credits ───────────────────────────────────────────────────────

// disposalCredits replaces the REPORT_RESOLVED base amount when a report is
// closed as Disposed. Ordered recycled > composted > incinerated > landfilled.
var disposalCredits = map[DisposalMethod]int64{
	DisposalRecycled:    25,
	DisposalComposted:   20,
	DisposalIncinerated: 10,
	DisposalLandfilled:  5,
}

// DisposalCredits returns the resolution bonus for a disposal method.
func DisposalCredits(m DisposalMethod) (int64, bool) {
	c, ok := disposalCredits[m]
	return c, ok
}

// ─── Ledger Types ───────────────────────────────────────────────────────────

// DefaultMultiplier scales every award for accounts nobody has tuned.
const DefaultMultiplier = 1.0

// LedgerAccount is the per-user credit aggregate.
// Invariant: AvailableCredits == TotalCredits - Redeemed, Redeemed <= TotalCredits.
type LedgerAccount struct {
	UserID           string    `json:"userId"`
	TotalCredits     int64     `json:"totalCredits"`
	AvailableCredits int64     `json:"availableCredits"`
	Redeemed         int64     `json:"redeemed"`
	ReportCount      int       `json:"reportCount"`
	GPSReportCount   int       `json:"gpsReportCount"`
	Streak           int       `json:"streak"`
	LastActivity     time.Time `json:"lastActivity"`
	Multiplier       float64   `json:"multiplier"`
}

// NewLedgerAccount returns a zero-initialized account.
func NewLedgerAccount(userID string) LedgerAccount {
	return LedgerAccount{UserID: userID, Multiplier: DefaultMultiplier}
}

// Balanced reports whether the account invariant holds.
func (a LedgerAccount) Balanced() bool {
	return a.AvailableCredits == a.TotalCredits-a.Redeemed &&
		a.Redeemed <= a.TotalCredits &&
		a.AvailableCredits >= 0
}

// Transaction is an immutable, append-only ledger record.
// Amount is positive for awards and negative for redemptions.
type Transaction struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"userId"`
	Action      ActionKind `json:"action"`
	Amount      int64      `json:"credits"`
	Description string     `json:"description"`
	ReportID    *int64     `json:"reportId,omitempty"`
	RewardID    string     `json:"rewardId,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Post adds a transaction amount to the balances. Positive amounts add to
// total and available credits; negative amounts move available credits to
// redeemed. An overdraft leaves the account unchanged.
func (a *LedgerAccount) Post(amount int64) error {
	if amount < 0 && a.AvailableCredits+amount < 0 {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientBalance, -amount, a.AvailableCredits)
	}
	if amount >= 0 {
		a.TotalCredits += amount
	} else {
		a.Redeemed -= amount
	}
	a.AvailableCredits += amount
	return nil
}

// ─── Ledger Updates ─────────────────────────────────────────────────────────

// Activity is the counter change one report submission makes.
type Activity struct {
	Reports      int       // added to ReportCount
	GPSReports   int       // added to GPSReportCount
	Streak       int       // replaces Streak
	LastActivity time.Time // replaces LastActivity
}

// Apply adds the activity to a.
func (act Activity) Apply(a *LedgerAccount) {
	a.ReportCount += act.Reports
	a.GPSReportCount += act.GPSReports
	a.Streak = act.Streak
	a.LastActivity = act.LastActivity
}

// BadgeGrant pairs a badge with the bonus paid for it. The bonus is only
// recorded when the badge is newly granted.
type BadgeGrant struct {
	Badge Badge
	Bonus *Transaction
}

// LedgerUpdate is one atomic change to a user's ledger: activity counters,
// then transactions in order, then badge grants. Stores add each amount to
// the stored balances rather than writing values read earlier, so writers
// in other processes cannot overwrite each other. Any failure, including an
// overdraft, leaves the ledger untouched.
type LedgerUpdate struct {
	UserID       string
	Activity     *Activity
	Transactions []Transaction
	Badges       []BadgeGrant
}

// LedgerUpdateResult is what a LedgerUpdate stored.
type LedgerUpdateResult struct {
	Account      LedgerAccount
	Transactions []Transaction // with IDs, badge bonuses included
	Badges       []Badge       // newly granted only
}
