package domain

// ─── Leaderboard Types ──────────────────────────────────────────────────────

// DefaultLeaderboardSize is how many users the public leaderboard shows.
const DefaultLeaderboardSize = 10

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	Name         string  `json:"name"`
	TotalCredits int64   `json:"totalCredits"`
	ReportCount  int     `json:"reportCount"`
	BadgeCount   int     `json:"badgeCount"`
	Badges       []Badge `json:"badges"`
}

// RanksAbove orders leaderboard entries: more credits first, then more
// reports, then user id for a stable order.
func (e LeaderboardEntry) RanksAbove(o LeaderboardEntry) bool {
	if e.TotalCredits != o.TotalCredits {
		return e.TotalCredits > o.TotalCredits
	}
	if e.ReportCount != o.ReportCount {
		return e.ReportCount > o.ReportCount
	}
	return e.UserID < o.UserID
}
