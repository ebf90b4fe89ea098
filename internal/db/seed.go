package database

import (
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrBlinki/sui-hackaton25/internal/contract"
	"github.com/MrBlinki/sui-hackaton25/internal/models"
)

// SeedLedger creates the genesis row exactly once. The registry seed is only
// written when the genesis row is created, so restarts never duplicate it.
func SeedLedger(db *gorm.DB, genesis contract.State) error {
	return db.Transaction(func(tx *gorm.DB) error {
		row := models.LedgerState{
			ID:           1,
			Owner:        string(genesis.Owner),
			Fee:          genesis.Fee,
			CurrentTrack: genesis.CurrentTrack,
		}

		// UPSERT on the singleton id so restarts keep the live state
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		log.Printf("🌱 Genesis ledger created (owner %s, fee %d, %d seed tracks)",
			genesis.Owner, genesis.Fee, len(genesis.Registry))

		for _, entry := range genesis.Registry {
			if err := tx.Create(&models.RegistryEntry{Title: entry.Title, Artist: string(entry.Artist)}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
