// Package reconcile transitions overdue ledger rows from temporary to final.
// The same compare-and-set core runs lazily ahead of freshness-sensitive
// reads and on a periodic background sweep, and is idempotent either way.
package reconcile

import (
	"log/slog"
	"time"

	"github.com/lexibloom/lexibloom/internal/localday"
	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
)

type Reconciler struct {
	progress *store.ProgressStore
	logger   *slog.Logger
}

func NewReconciler(ps *store.ProgressStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{progress: ps, logger: logger}
}

// FinalizeAllDue seals every open row whose deadline has passed and returns
// how many rows this call sealed. Safe to run any number of times from
// either path; rows already sealed are never touched again.
func (r *Reconciler) FinalizeAllDue(now time.Time) (int64, error) {
	n, err := r.progress.FinalizeDue(now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("finalized due progress records", "count", n)
	}
	return n, nil
}

// FinalizeDueForPlayer is the lazy-path variant scoped to a single player's
// rows, used as the repair step of read-with-repair reads.
func (r *Reconciler) FinalizeDueForPlayer(playerID int64, now time.Time) (int64, error) {
	n, err := r.progress.FinalizeDueForPlayer(playerID, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("finalized due progress records for player",
			"player_id", playerID, "count", n)
	}
	return n, nil
}

// DailyStatus reports the player's current day after repairing any overdue
// rows, so a reader never sees a row still marked temporary past its
// deadline. This read performs that bounded write as a documented
// precondition.
func (r *Reconciler) DailyStatus(playerID int64, timeZone string, now time.Time) (*model.DailyStatus, error) {
	if _, err := r.FinalizeDueForPlayer(playerID, now); err != nil {
		return nil, err
	}

	zone := timeZone
	if zone == "" {
		openZone, err := r.progress.OpenZoneForPlayer(playerID)
		if err != nil {
			return nil, err
		}
		zone = openZone
	}

	day := resolveDay(zone, now)
	record, err := r.progress.GetByPlayerDay(playerID, day)
	if err != nil {
		return nil, err
	}

	total, err := r.progress.TotalPoints(playerID)
	if err != nil {
		return nil, err
	}

	status := &model.DailyStatus{
		PlayerID:    playerID,
		Day:         day,
		Record:      record,
		TotalPoints: total,
	}
	if record != nil {
		status.Locked = record.Finalized
		if !record.Finalized {
			if remaining := record.FinalizeAt.Sub(now); remaining > 0 {
				status.LocksInSecs = int64(remaining.Seconds())
			}
		}
	}
	return status, nil
}

func resolveDay(zone string, now time.Time) string {
	return localday.Resolve(zone, now).Day
}
