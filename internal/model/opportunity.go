package model

import "time"

// RewardOpportunity is one claimable reward slot unlocked by crossing a
// point milestone. At most one exists per (player, milestone), and the used
// transition happens at most once.
type RewardOpportunity struct {
	ID               int64      `json:"id"`
	PlayerID         int64      `json:"player_id"`
	Milestone        int        `json:"milestone"`
	IsUsed           bool       `json:"is_used"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	SelectedRewardID *int64     `json:"selected_reward_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
