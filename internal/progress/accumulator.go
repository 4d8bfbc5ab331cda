// Package progress is the write path of the engine: it turns raw session
// deltas into idempotent, additive ledger writes.
package progress

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lexibloom/lexibloom/internal/localday"
	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
)

// ValidationError rejects a malformed submission before it touches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Accumulator applies game-completion deltas to the progress ledger.
type Accumulator struct {
	progress *store.ProgressStore
	players  *store.PlayerStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewAccumulator(ps *store.ProgressStore, players *store.PlayerStore, logger *slog.Logger) *Accumulator {
	return &Accumulator{
		progress: ps,
		players:  players,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit records one completed session. The (player, day) row is created on
// the first submission of a local day and extended additively afterwards;
// the whole write is a single atomic statement, so concurrent submissions
// for the same day all land and a racing finalization can never interleave
// mid-write. A sealed day returns store.ErrDayFinalized with the sealed
// record attached for the caller's information.
func (a *Accumulator) Submit(playerID int64, delta model.ProgressDelta, timeZone string) (*model.ProgressRecord, error) {
	if err := validate(delta); err != nil {
		return nil, err
	}

	zone, err := a.resolveZone(playerID, timeZone)
	if err != nil {
		return nil, err
	}

	res := localday.Resolve(zone, a.now())
	if res.Fallback {
		a.logger.Warn("unknown time zone, using default",
			"player_id", playerID, "zone", zone, "default", localday.DefaultZone)
	}

	record, err := a.progress.Apply(playerID, res.Day, delta, res.NextMidnight, res.Zone, a.now())
	if err == store.ErrDayFinalized {
		sealed, getErr := a.progress.GetByPlayerDay(playerID, res.Day)
		if getErr != nil {
			return nil, getErr
		}
		a.logger.Info("submission for finalized day dropped",
			"player_id", playerID, "day", res.Day, "points", delta.Points)
		return sealed, store.ErrDayFinalized
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// resolveZone picks the zone for this write: the client's declared zone if
// present, else the zone on the player's open row, else the player's
// preferred zone. localday.Resolve handles the final fallback to the
// default.
func (a *Accumulator) resolveZone(playerID int64, timeZone string) (string, error) {
	if timeZone != "" {
		return timeZone, nil
	}

	zone, err := a.progress.OpenZoneForPlayer(playerID)
	if err != nil {
		return "", err
	}
	if zone != "" {
		return zone, nil
	}

	player, err := a.players.GetByID(playerID)
	if err != nil {
		return "", err
	}
	if player != nil {
		return player.TimeZone, nil
	}
	return "", nil
}

func validate(delta model.ProgressDelta) error {
	switch {
	case delta.Points < 0:
		return &ValidationError{Field: "points", Reason: "must not be negative"}
	case delta.Questions < 0:
		return &ValidationError{Field: "questions", Reason: "must not be negative"}
	case delta.Correct < 0:
		return &ValidationError{Field: "correct", Reason: "must not be negative"}
	case delta.Correct > delta.Questions:
		return &ValidationError{Field: "correct", Reason: "cannot exceed questions"}
	case delta.Level < 0:
		return &ValidationError{Field: "level", Reason: "must not be negative"}
	}
	return nil
}

// SetNowFunc overrides the clock, for tests.
func (a *Accumulator) SetNowFunc(now func() time.Time) {
	a.now = now
}
