package model

import "time"

type Player struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	TimeZone    string    `json:"time_zone"`
	CreatedAt   time.Time `json:"created_at"`
}
