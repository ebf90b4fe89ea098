package models

import "time"

// RegistryEntry is one registered track. Insertion order (ID) is registry order.
type RegistryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Title     string    `gorm:"index;not null" json:"title"`
	Artist    string    `gorm:"size:128;index;not null" json:"artist"`
	CreatedAt time.Time `json:"created_at"`
}

// Account holds the coin balance of an address.
type Account struct {
	Address   string    `gorm:"primaryKey;size:128" json:"address"`
	Balance   uint64    `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEvent records every committed transition, so observers can rebuild history
// without re-reading the full state.
type LedgerEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"size:32;index;not null" json:"kind"`
	Title     string    `json:"title"`
	Artist    string    `gorm:"size:128" json:"artist,omitempty"`
	Payer     string    `gorm:"size:128;index" json:"payer,omitempty"`
	Amount    uint64    `json:"amount"`
	Version   uint64    `gorm:"index" json:"version"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
