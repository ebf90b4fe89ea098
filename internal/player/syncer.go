package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/contract"
)

const DefaultInterval = 5 * time.Second

// ErrSubmissionInFlight is returned while an earlier Submit has not resolved.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// Resolver maps a ledger title to something playable.
type Resolver interface {
	Resolve(title string) (Entry, bool)
}

// Syncer keeps local playback on the ledger's current track by polling.
type Syncer struct {
	ledger   Ledger
	playlist Resolver
	engine   Engine
	interval time.Duration

	tickMu   sync.Mutex
	observed string
	seen     bool

	submitting atomic.Bool

	stateMu    sync.RWMutex
	nowPlaying *Entry
}

func NewSyncer(ledger Ledger, playlist Resolver, engine Engine, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Syncer{ledger: ledger, playlist: playlist, engine: engine, interval: interval}
}

// Run polls until ctx is done. The next poll is scheduled only after the
// previous one finished, so polls never overlap.
func (s *Syncer) Run(ctx context.Context) error {
	log.Printf("🔁 Sync loop started (every %s)", s.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.engine.Stop(); err != nil {
				log.Printf("⚠️ Failed to stop playback: %v", err)
			}
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			log.Printf("⚠️ Poll failed, retrying next tick: %v", err)
		}
		timer.Reset(s.interval)
	}
}

// Tick fetches the current track once and switches playback when it changed.
// Titles that resolve to nothing locally are recorded as seen but leave
// playback alone.
func (s *Syncer) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	pollsTotal.Inc()
	title, err := s.ledger.CurrentTrack(ctx)
	if err != nil {
		pollErrors.Inc()
		return fmt.Errorf("fetching current track: %w", err)
	}

	if s.seen && title == s.observed {
		return nil
	}
	s.observed, s.seen = title, true

	entry, ok := s.playlist.Resolve(title)
	if !ok {
		unplayableTotal.Inc()
		log.Printf("🔇 %q is on-chain but unplayable locally", title)
		return nil
	}

	if err := s.engine.Stop(); err != nil {
		log.Printf("⚠️ Failed to stop playback: %v", err)
	}
	if err := s.engine.Play(ctx, entry); err != nil {
		log.Printf("❌ Failed to play %q: %v", title, err)
		return nil
	}

	switchesTotal.Inc()
	s.stateMu.Lock()
	s.nowPlaying = &entry
	s.stateMu.Unlock()
	return nil
}

// Submit pays to change the track. Only one submission runs at a time; a
// confirmed one is followed by an immediate poll. Failures leave playback as is.
func (s *Syncer) Submit(ctx context.Context, title string, payment uint64) (contract.Receipt, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return contract.Receipt{}, ErrSubmissionInFlight
	}
	defer s.submitting.Store(false)

	receipt, err := s.ledger.ChangeTrack(ctx, title, payment)
	if err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		return contract.Receipt{}, fmt.Errorf("transaction failed: %w", err)
	}
	submissionsTotal.WithLabelValues("ok").Inc()
	log.Printf("💸 Paid %d to play %q (version %d)", payment, title, receipt.Version)

	if err := s.Tick(ctx); err != nil {
		log.Printf("⚠️ Refresh after submission failed: %v", err)
	}
	return receipt, nil
}

// NowPlaying returns the entry started last, if any.
func (s *Syncer) NowPlaying() (Entry, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.nowPlaying == nil {
		return Entry{}, false
	}
	return *s.nowPlaying, true
}

// Observed returns the last ledger value seen, and false before the first poll.
func (s *Syncer) Observed() (string, bool) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.observed, s.seen
}
