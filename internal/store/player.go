package store

import (
	"database/sql"
	"fmt"

	"github.com/lexibloom/lexibloom/internal/model"
)

type PlayerStore struct {
	db *sql.DB
}

func NewPlayerStore(db *sql.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func scanPlayer(scanner interface{ Scan(...any) error }) (*model.Player, error) {
	var p model.Player
	err := scanner.Scan(&p.ID, &p.DisplayName, &p.TimeZone, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const playerCols = `id, display_name, time_zone, created_at`

func (s *PlayerStore) Create(displayName, timeZone string) (*model.Player, error) {
	result, err := s.db.Exec(
		`INSERT INTO players (display_name, time_zone) VALUES (?, ?)`,
		displayName, timeZone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PlayerStore) GetByID(id int64) (*model.Player, error) {
	row := s.db.QueryRow(`SELECT `+playerCols+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

func (s *PlayerStore) List() ([]model.Player, error) {
	rows, err := s.db.Query(`SELECT ` + playerCols + ` FROM players ORDER BY display_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}
