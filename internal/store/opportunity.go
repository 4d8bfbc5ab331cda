package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lexibloom/lexibloom/internal/model"
)

var (
	// ErrOpportunityUsed is returned when a claim targets an already-used
	// opportunity.
	ErrOpportunityUsed = errors.New("reward opportunity already used")
	// ErrOpportunityNotFound is returned when a claim targets a milestone the
	// player has not unlocked.
	ErrOpportunityNotFound = errors.New("reward opportunity not found")
)

type OpportunityStore struct {
	db *sql.DB
}

func NewOpportunityStore(db *sql.DB) *OpportunityStore {
	return &OpportunityStore{db: db}
}

func scanOpportunity(scanner interface{ Scan(...any) error }) (*model.RewardOpportunity, error) {
	var o model.RewardOpportunity
	var isUsed int
	var usedAt sql.NullInt64
	var rewardID sql.NullInt64

	err := scanner.Scan(&o.ID, &o.PlayerID, &o.Milestone, &isUsed, &usedAt, &rewardID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.IsUsed = isUsed != 0
	if usedAt.Valid {
		t := time.Unix(usedAt.Int64, 0).UTC()
		o.UsedAt = &t
	}
	if rewardID.Valid {
		o.SelectedRewardID = &rewardID.Int64
	}
	return &o, nil
}

const opportunityCols = `id, player_id, milestone, is_used, used_at, selected_reward_id, created_at`

// CreateIfAbsent inserts the (player, milestone) opportunity if it does not
// exist. The unique index makes this safe under concurrent calls; created
// reports whether this call inserted the row.
func (s *OpportunityStore) CreateIfAbsent(playerID int64, milestone int) (created bool, err error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_opportunities (player_id, milestone) VALUES (?, ?)
		 ON CONFLICT (player_id, milestone) DO NOTHING`,
		playerID, milestone,
	)
	if err != nil {
		return false, fmt.Errorf("insert opportunity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *OpportunityStore) Get(playerID int64, milestone int) (*model.RewardOpportunity, error) {
	row := s.db.QueryRow(
		`SELECT `+opportunityCols+` FROM reward_opportunities WHERE player_id = ? AND milestone = ?`,
		playerID, milestone,
	)
	o, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return o, nil
}

func (s *OpportunityStore) ListByPlayer(playerID int64) ([]model.RewardOpportunity, error) {
	rows, err := s.db.Query(
		`SELECT `+opportunityCols+` FROM reward_opportunities WHERE player_id = ? ORDER BY milestone ASC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []model.RewardOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		opps = append(opps, *o)
	}
	return opps, rows.Err()
}

// Claim marks the opportunity used, conditioned on it still being unused, so
// each milestone pays out exactly once under concurrent claims.
func (s *OpportunityStore) Claim(playerID int64, milestone int, rewardID int64, now time.Time) (*model.RewardOpportunity, error) {
	result, err := s.db.Exec(
		`UPDATE reward_opportunities SET is_used = 1, used_at = ?, selected_reward_id = ?
		 WHERE player_id = ? AND milestone = ? AND is_used = 0`,
		now.Unix(), rewardID, playerID, milestone,
	)
	if err != nil {
		return nil, fmt.Errorf("claim opportunity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, err := s.Get(playerID, milestone)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrOpportunityNotFound
		}
		return nil, ErrOpportunityUsed
	}
	return s.Get(playerID, milestone)
}
