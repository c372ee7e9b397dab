package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/app/accounts"
	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
)

// ─── Credits API ────────────────────────────────────────────────────────────
//
// GET  /api/credits                          balance, badges, next badges
// GET  /api/credits/history                  transactions, newest first
// POST /api/credits/redeem                   spend credits on a reward
// GET  /api/leaderboard                      top users by credits
// GET  /api/badges                           the badge catalog
// PUT  /api/admin/users/{id}/multiplier      tune a user's award multiplier

// CreditsAPI serves ledger, badge and leaderboard reads.
type CreditsAPI struct {
	Engine      *rewards.Engine
	Leaderboard *rewards.Leaderboard
	Accounts    *accounts.Service
	log         *zap.Logger
}

// HandleCredits returns the session user's ledger account and badges.
func (c *CreditsAPI) HandleCredits(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	ctx := r.Context()

	acct, err := c.Engine.Account(ctx, u.ID)
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	badges, err := c.Engine.Badges(ctx, u.ID)
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	next, err := c.Engine.NextBadges(ctx, u.ID)
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"credits":    acct,
		"badges":     badges,
		"nextBadges": next,
	})
}

// HandleHistory returns the session user's transactions.
func (c *CreditsAPI) HandleHistory(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	txs, err := c.Engine.History(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": txs,
	})
}

type redeemRequest struct {
	RewardID string `json:"rewardId"`
	Credits  int64  `json:"credits"`
}

// HandleRedeem spends the session user's credits on a reward.
func (c *CreditsAPI) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	if req.RewardID == "" {
		writeError(w, http.StatusBadRequest, "rewardId is required")
		return
	}

	tx, remaining, err := c.Engine.Redeem(r.Context(), u.ID, req.RewardID, req.Credits)
	if errors.Is(err, domain.ErrInsufficientBalance) {
		writeError(w, http.StatusPaymentRequired, "Insufficient credits")
		return
	}
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Credits redeemed successfully!",
		"remaining":   remaining,
		"transaction": tx,
	})
}

// HandleLeaderboard returns the ranked top users.
func (c *CreditsAPI) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := c.Leaderboard.Rank(r.Context())
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"leaderboard": entries,
	})
}

type badgeView struct {
	Key         domain.BadgeKey `json:"key"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon"`
	Description string          `json:"description"`
	Metric      string          `json:"metric"`
	Threshold   int64           `json:"threshold"`
}

// HandleBadgeCatalog lists every badge and its unlock rule.
func (c *CreditsAPI) HandleBadgeCatalog(w http.ResponseWriter, r *http.Request) {
	views := make([]badgeView, 0, len(domain.BadgeCatalog))
	for _, d := range domain.BadgeCatalog {
		views = append(views, badgeView{
			Key:         d.Key,
			Name:        d.Name,
			Icon:        d.Icon,
			Description: d.Description,
			Metric:      d.Metric.String(),
			Threshold:   d.Threshold,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"badges":  views,
	})
}

type multiplierRequest struct {
	Multiplier *float64 `json:"multiplier"`
}

// HandleSetMultiplier changes the award multiplier of a citizen.
func (c *CreditsAPI) HandleSetMultiplier(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req multiplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	if req.Multiplier == nil {
		writeError(w, http.StatusBadRequest, "multiplier is required")
		return
	}
	if _, err := c.Accounts.Get(r.Context(), userID); err != nil {
		writeDomainError(w, c.log, err)
		return
	}

	acct, err := c.Engine.SetMultiplier(r.Context(), userID, *req.Multiplier)
	if err != nil {
		writeDomainError(w, c.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"credits": acct,
	})
}
