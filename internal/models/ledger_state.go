package models

import "time"

// LedgerState is the live jukebox object.
// There is ONE row in this table (ID=1).
type LedgerState struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	Owner        string    `gorm:"size:128;not null" json:"owner"`
	Fee          uint64    `gorm:"not null" json:"fee"`
	LastPayer    string    `gorm:"size:128" json:"last_payer"`
	CurrentTrack string    `json:"current_track"`
	Version      uint64    `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides the default pluralization
func (LedgerState) TableName() string {
	return "ledger_state"
}
