// Package leaderboard ranks settled daily scores. Rows still open — even
// ones past their deadline that no reconciliation has reached — never
// appear; the builder repairs overdue rows first instead of showing them
// stale.
package leaderboard

import (
	"log/slog"
	"time"

	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/reconcile"
	"github.com/lexibloom/lexibloom/internal/store"
)

const DefaultLimit = 25

type Builder struct {
	progress   *store.ProgressStore
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewBuilder(ps *store.ProgressStore, r *reconcile.Reconciler, logger *slog.Logger) *Builder {
	return &Builder{progress: ps, reconciler: r, logger: logger}
}

// Build returns the ranked view for a day. This is a read-with-repair: all
// due rows are finalized first, so the board reflects every deadline that
// has passed by now. An empty day is omitted by passing ""; it resolves to
// the most recent day with any finalized rows. When nothing has settled yet
// the board is empty with an explanatory status, never an error.
//
// Ranks are dense and start at 1: equal points share a rank, and within a
// tie rows order by earliest finalization, then lowest player id.
func (b *Builder) Build(day string, limit int, now time.Time) (*model.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if _, err := b.reconciler.FinalizeAllDue(now); err != nil {
		return nil, err
	}

	if day == "" {
		latest, err := b.progress.LatestFinalizedDay()
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return &model.Leaderboard{
				Entries: []model.LeaderboardEntry{},
				Status:  "no finalized results yet",
			}, nil
		}
		day = latest
	}

	entries, err := b.progress.ListFinalizedByDay(day, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &model.Leaderboard{
			Day:     day,
			Entries: []model.LeaderboardEntry{},
			Status:  "no finalized results for this day",
		}, nil
	}

	rank := 0
	prevPoints := -1
	for i := range entries {
		if entries[i].Points != prevPoints {
			rank++
			prevPoints = entries[i].Points
		}
		entries[i].Rank = rank
	}

	return &model.Leaderboard{Day: day, Entries: entries}, nil
}
