package model

import "time"

// ProgressRecord is one player's ledger row for one calendar day in that
// player's own time zone. Counters only grow while the row is open; once
// Finalized flips the row never changes again.
type ProgressRecord struct {
	ID                int64      `json:"id"`
	PlayerID          int64      `json:"player_id"`
	Day               string     `json:"day"`
	PointsEarned      int        `json:"points_earned"`
	QuestionsAnswered int        `json:"questions_answered"`
	CorrectAnswers    int        `json:"correct_answers"`
	Level             int        `json:"level"`
	Finalized         bool       `json:"finalized"`
	FinalizeAt        time.Time  `json:"finalize_at"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`
	UserTimeZone      string     `json:"user_time_zone"`
	LastUpdateAt      time.Time  `json:"last_update_at"`
}

// ProgressDelta carries one game session's raw contributions.
type ProgressDelta struct {
	Points    int
	Questions int
	Correct   int
	Level     int
}

// DailyStatus is the dashboard view of a player's current day.
type DailyStatus struct {
	PlayerID    int64           `json:"player_id"`
	Day         string          `json:"day"`
	Record      *ProgressRecord `json:"record,omitempty"`
	Locked      bool            `json:"locked"`
	LocksInSecs int64           `json:"locks_in_seconds"`
	TotalPoints int             `json:"total_points"`
}
