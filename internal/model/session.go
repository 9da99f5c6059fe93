package model

import "time"

type Session struct {
	ID         int64     `json:"id"`
	Token      string    `json:"token"`
	OperatorID int64     `json:"operator_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
