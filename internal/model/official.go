package model

import "time"

type Position string

const (
	PositionChairman Position = "Chairman"
	PositionKagawad  Position = "Kagawad"
)

const MaxKagawad = 7

func (p Position) Valid() bool {
	return p == PositionChairman || p == PositionKagawad
}

type ElectedOfficial struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Position  Position  `json:"position"`
	Order     *int      `json:"order"`
	PhotoKey  string    `json:"photo_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
