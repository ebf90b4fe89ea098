// Package ledger hosts the jukebox contract. It plays the role of the
// distributed ledger: every call is applied serially and atomically against the
// persisted state, with the payment coin debited and the resulting transfers
// credited inside the same database transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrBlinki/sui-hackaton25/internal/contract"
	"github.com/MrBlinki/sui-hackaton25/internal/models"
)

// ErrNotInitialized is returned when the genesis row is missing.
var ErrNotInitialized = errors.New("ledger state has not been created")

type StateManager struct {
	db       *gorm.DB
	contract *contract.Contract
	// mu serializes transitions; the database transaction makes each one all-or-nothing.
	mu sync.Mutex
}

func NewStateManager(db *gorm.DB, c *contract.Contract) *StateManager {
	return &StateManager{db: db, contract: c}
}

// State returns the last committed state.
func (sm *StateManager) State(ctx context.Context) (contract.State, error) {
	s, _, err := loadState(sm.db.WithContext(ctx))
	return s, err
}

// Execute applies one call. Validation failures leave the database untouched.
func (sm *StateManager) Execute(ctx context.Context, call contract.Call) (contract.Receipt, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var receipt contract.Receipt
	err := sm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, ids, err := loadState(tx)
		if err != nil {
			return err
		}

		next, r, err := sm.contract.Apply(current, call)
		if err != nil {
			return err
		}

		if call.Kind == contract.KindChangeTrack {
			if err := debit(tx, call.Caller, call.Payment); err != nil {
				return err
			}
			for _, t := range r.Transfers {
				if err := credit(tx, t.To, t.Amount); err != nil {
					return err
				}
			}
		}

		if err := persist(tx, next, call, r, ids); err != nil {
			return err
		}
		receipt = r
		return nil
	})

	transitionsTotal.WithLabelValues(string(call.Kind), resultLabel(err)).Inc()
	if err != nil {
		return contract.Receipt{}, err
	}

	if ev := receipt.Event; ev != nil {
		feesCollected.Add(float64(ev.Fee))
		log.Printf("🎵 Track changed to %q by %s (artist %s, version %d)", ev.Title, ev.Payer, ev.Artist, receipt.Version)
	}
	return receipt, nil
}

// Fund credits an account. Only the owner may mint.
func (sm *StateManager) Fund(ctx context.Context, caller, to contract.Address, amount uint64) (uint64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var balance uint64
	err := sm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.LedgerState
		if err := tx.First(&row, 1).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotInitialized
			}
			return err
		}
		if contract.Address(row.Owner) != caller {
			return contract.ErrNotAuthorized
		}
		if err := credit(tx, to, amount); err != nil {
			return err
		}
		var err error
		balance, err = balanceOf(tx, to)
		return err
	})
	return balance, err
}

// Balance returns the coin balance of an address; unknown addresses hold zero.
func (sm *StateManager) Balance(ctx context.Context, addr contract.Address) (uint64, error) {
	return balanceOf(sm.db.WithContext(ctx), addr)
}

// Events returns the most recent transitions, newest first.
func (sm *StateManager) Events(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.LedgerEvent
	err := sm.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}

func loadState(tx *gorm.DB) (contract.State, []uint, error) {
	var row models.LedgerState
	if err := tx.First(&row, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return contract.State{}, nil, ErrNotInitialized
		}
		return contract.State{}, nil, err
	}

	var entries []models.RegistryEntry
	if err := tx.Order("id ASC").Find(&entries).Error; err != nil {
		return contract.State{}, nil, err
	}

	s := contract.State{
		Owner:        contract.Address(row.Owner),
		Fee:          row.Fee,
		LastPayer:    contract.Address(row.LastPayer),
		CurrentTrack: row.CurrentTrack,
		Registry:     make([]contract.TrackEntry, len(entries)),
		Version:      row.Version,
	}
	ids := make([]uint, len(entries))
	for i, e := range entries {
		s.Registry[i] = contract.TrackEntry{Title: e.Title, Artist: contract.Address(e.Artist)}
		ids[i] = e.ID
	}
	return s, ids, nil
}

func persist(tx *gorm.DB, next contract.State, call contract.Call, r contract.Receipt, ids []uint) error {
	// current_track and last_payer are written by one UPDATE
	res := tx.Model(&models.LedgerState{ID: 1}).Updates(map[string]interface{}{
		"current_track": next.CurrentTrack,
		"last_payer":    string(next.LastPayer),
		"version":       next.Version,
	})
	if res.Error != nil {
		return res.Error
	}

	event := models.LedgerEvent{Kind: string(call.Kind), Payer: string(call.Caller), Version: next.Version}

	switch call.Kind {
	case contract.KindRegisterTrack:
		entry := models.RegistryEntry{Title: r.Added.Title, Artist: string(r.Added.Artist)}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		event.Title, event.Artist = entry.Title, entry.Artist
	case contract.KindRemoveTrack:
		if err := tx.Delete(&models.RegistryEntry{}, ids[call.Index]).Error; err != nil {
			return err
		}
		event.Title, event.Artist = r.Removed.Title, string(r.Removed.Artist)
	case contract.KindChangeTrack:
		event.Title, event.Artist, event.Amount = r.Event.Title, string(r.Event.Artist), r.Event.Fee
	default:
		return fmt.Errorf("no persistence for %q", call.Kind)
	}

	return tx.Create(&event).Error
}

func debit(tx *gorm.DB, addr contract.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	res := tx.Model(&models.Account{}).
		Where("address = ? AND balance >= ?", string(addr), amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrInsufficientFunds
	}
	return nil
}

func credit(tx *gorm.DB, addr contract.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"balance": gorm.Expr("accounts.balance + ?", amount)}),
	}).Create(&models.Account{Address: string(addr), Balance: amount}).Error
}

func balanceOf(tx *gorm.DB, addr contract.Address) (uint64, error) {
	var acct models.Account
	err := tx.Where("address = ?", string(addr)).Limit(1).Find(&acct).Error
	return acct.Balance, err
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := contract.Code(err); code != "" {
		return code
	}
	return "error"
}
