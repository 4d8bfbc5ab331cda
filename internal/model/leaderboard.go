package model

// LeaderboardEntry is one ranked row of settled points for a day.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    int64  `json:"player_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

// Leaderboard is the ranked view over finalized rows for a single day.
// Status is set when there is nothing to rank yet.
type Leaderboard struct {
	Day     string             `json:"day"`
	Entries []LeaderboardEntry `json:"entries"`
	Status  string             `json:"status,omitempty"`
}
