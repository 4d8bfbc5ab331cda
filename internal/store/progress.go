package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lexibloom/lexibloom/internal/model"
)

// ErrDayFinalized is returned when a write targets a (player, day) row that
// has already been sealed. The contribution is dropped, not applied.
var ErrDayFinalized = errors.New("progress day already finalized")

type ProgressStore struct {
	db *sql.DB
}

func NewProgressStore(db *sql.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func scanProgress(scanner interface{ Scan(...any) error }) (*model.ProgressRecord, error) {
	var r model.ProgressRecord
	var finalized int
	var finalizeAt, lastUpdateAt int64
	var finalizedAt sql.NullInt64

	err := scanner.Scan(
		&r.ID, &r.PlayerID, &r.Day, &r.PointsEarned, &r.QuestionsAnswered,
		&r.CorrectAnswers, &r.Level, &finalized, &finalizeAt, &finalizedAt,
		&r.UserTimeZone, &lastUpdateAt,
	)
	if err != nil {
		return nil, err
	}

	r.Finalized = finalized != 0
	r.FinalizeAt = time.Unix(finalizeAt, 0).UTC()
	r.LastUpdateAt = time.Unix(lastUpdateAt, 0).UTC()
	if finalizedAt.Valid {
		t := time.Unix(finalizedAt.Int64, 0).UTC()
		r.FinalizedAt = &t
	}
	return &r, nil
}

const progressCols = `id, player_id, day, points_earned, questions_answered, correct_answers, level, finalized, finalize_at, finalized_at, user_time_zone, last_update_at`

// Apply records one session's deltas into the (player, day) row as a single
// atomic statement. A missing row is created with the deltas as starting
// values; an open row has the deltas added, keeps the larger of the stored
// and newly computed deadlines, and takes the level high-water mark. A
// finalized row absorbs nothing and Apply returns ErrDayFinalized.
func (s *ProgressStore) Apply(playerID int64, day string, delta model.ProgressDelta, finalizeAt time.Time, zone string, now time.Time) (*model.ProgressRecord, error) {
	result, err := s.db.Exec(
		`INSERT INTO progress_records
			(player_id, day, points_earned, questions_answered, correct_answers, level, finalized, finalize_at, user_time_zone, last_update_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (player_id, day) DO UPDATE SET
			points_earned = points_earned + excluded.points_earned,
			questions_answered = questions_answered + excluded.questions_answered,
			correct_answers = correct_answers + excluded.correct_answers,
			level = MAX(level, excluded.level),
			user_time_zone = CASE WHEN excluded.finalize_at > finalize_at THEN excluded.user_time_zone ELSE user_time_zone END,
			finalize_at = MAX(finalize_at, excluded.finalize_at),
			last_update_at = excluded.last_update_at
		WHERE finalized = 0`,
		playerID, day, delta.Points, delta.Questions, delta.Correct, delta.Level,
		finalizeAt.Unix(), zone, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("apply progress: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Conflict hit a finalized row and the guarded update skipped it.
		return nil, ErrDayFinalized
	}

	return s.GetByPlayerDay(playerID, day)
}

func (s *ProgressStore) GetByPlayerDay(playerID int64, day string) (*model.ProgressRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+progressCols+` FROM progress_records WHERE player_id = ? AND day = ?`,
		playerID, day,
	)
	r, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return r, nil
}

func (s *ProgressStore) ListByPlayer(playerID int64) ([]model.ProgressRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+progressCols+` FROM progress_records WHERE player_id = ? ORDER BY day DESC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress by player: %w", err)
	}
	defer rows.Close()

	var records []model.ProgressRecord
	for rows.Next() {
		r, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// FinalizeDue seals every open row whose deadline has passed. The update is
// conditioned on finalized = 0, so a row flips at most once no matter how
// many callers race. Returns the number of rows sealed by this call.
func (s *ProgressStore) FinalizeDue(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE progress_records SET finalized = 1, finalized_at = ?
		 WHERE finalized = 0 AND finalize_at <= ?`,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("finalize due: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// FinalizeDueForPlayer is FinalizeDue scoped to one player, for reads that
// only need that player's rows to be fresh.
func (s *ProgressStore) FinalizeDueForPlayer(playerID int64, now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE progress_records SET finalized = 1, finalized_at = ?
		 WHERE player_id = ? AND finalized = 0 AND finalize_at <= ?`,
		now.Unix(), playerID, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("finalize due for player: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// TotalPoints sums points across every row for the player, finalized or not.
// Milestone rewards recognize progress; only the leaderboard waits for
// settlement.
func (s *ProgressStore) TotalPoints(playerID int64) (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points_earned), 0) FROM progress_records WHERE player_id = ?`,
		playerID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}

// OpenZoneForPlayer returns the time zone recorded on the player's most
// recent unfinalized row, or "" if the player has none open.
func (s *ProgressStore) OpenZoneForPlayer(playerID int64) (string, error) {
	var zone string
	err := s.db.QueryRow(
		`SELECT user_time_zone FROM progress_records
		 WHERE player_id = ? AND finalized = 0 ORDER BY day DESC LIMIT 1`,
		playerID,
	).Scan(&zone)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open zone for player: %w", err)
	}
	return zone, nil
}

// ListFinalizedByDay returns settled rows for a day joined with display
// names, ordered by points descending. Ties order by earliest finalized_at,
// then lowest player id, so the result is deterministic.
func (s *ProgressStore) ListFinalizedByDay(day string, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT r.player_id, p.display_name, r.points_earned
		 FROM progress_records r
		 JOIN players p ON p.id = r.player_id
		 WHERE r.day = ? AND r.finalized = 1
		 ORDER BY r.points_earned DESC, r.finalized_at ASC, r.player_id ASC
		 LIMIT ?`,
		day, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list finalized by day: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.DisplayName, &e.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestFinalizedDay returns the most recent day with at least one settled
// row, or "" when nothing has finalized yet.
func (s *ProgressStore) LatestFinalizedDay() (string, error) {
	var day string
	err := s.db.QueryRow(
		`SELECT day FROM progress_records WHERE finalized = 1 ORDER BY day DESC LIMIT 1`,
	).Scan(&day)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest finalized day: %w", err)
	}
	return day, nil
}
