// Package milestone derives reward opportunities from a player's running
// point total. Milestones recognize progress, settled or not: temporary
// points count here even though the leaderboard ignores them.
package milestone

import (
	"log/slog"
	"time"

	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
)

// Step is the fixed point interval between milestones.
const Step = 500

// ValidMilestone reports whether m is a positive multiple of Step.
func ValidMilestone(m int) bool {
	return m > 0 && m%Step == 0
}

type Tracker struct {
	progress      *store.ProgressStore
	opportunities *store.OpportunityStore
	logger        *slog.Logger
	now           func() time.Time
}

func NewTracker(ps *store.ProgressStore, os *store.OpportunityStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		progress:      ps,
		opportunities: os,
		logger:        logger,
		now:           time.Now,
	}
}

// Sync creates one opportunity per milestone the player's total has crossed
// that does not exist yet, and returns only the newly created ones. Each
// insert is insert-if-absent on the (player, milestone) unique key, so
// concurrent syncs never produce duplicates and repeat calls with an
// unchanged total create nothing.
func (t *Tracker) Sync(playerID int64) ([]model.RewardOpportunity, error) {
	total, err := t.progress.TotalPoints(playerID)
	if err != nil {
		return nil, err
	}

	var created []model.RewardOpportunity
	for m := Step; m <= total; m += Step {
		inserted, err := t.opportunities.CreateIfAbsent(playerID, m)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}
		opp, err := t.opportunities.Get(playerID, m)
		if err != nil {
			return nil, err
		}
		if opp != nil {
			created = append(created, *opp)
		}
		t.logger.Info("milestone unlocked", "player_id", playerID, "milestone", m)
	}
	return created, nil
}

// Claim spends the opportunity at the given milestone on the chosen reward.
// The underlying update is conditioned on the opportunity being unused, so a
// milestone is claimable exactly once.
func (t *Tracker) Claim(playerID int64, m int, rewardID int64) (*model.RewardOpportunity, error) {
	return t.opportunities.Claim(playerID, m, rewardID, t.now())
}

// List returns every opportunity the player has unlocked, used or not.
func (t *Tracker) List(playerID int64) ([]model.RewardOpportunity, error) {
	return t.opportunities.ListByPlayer(playerID)
}

// SetNowFunc overrides the clock, for tests.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	t.now = now
}
