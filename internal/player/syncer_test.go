package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/contract"
)

// scriptedLedger answers CurrentTrack from a fixed sequence, repeating the last value.
type scriptedLedger struct {
	mu      sync.Mutex
	values  []string
	errs    map[int]error
	polls   int
	current string

	changeErr   error
	changeBlock chan struct{}
	changes     []string
}

func (l *scriptedLedger) CurrentTrack(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.polls
	l.polls++
	if err := l.errs[i]; err != nil {
		return "", err
	}
	if len(l.values) == 0 {
		return l.current, nil
	}
	if i >= len(l.values) {
		i = len(l.values) - 1
	}
	return l.values[i], nil
}

func (l *scriptedLedger) ChangeTrack(ctx context.Context, title string, payment uint64) (contract.Receipt, error) {
	if l.changeBlock != nil {
		<-l.changeBlock
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.changeErr != nil {
		return contract.Receipt{}, l.changeErr
	}
	l.changes = append(l.changes, title)
	l.current = title
	return contract.Receipt{Kind: contract.KindChangeTrack, Version: uint64(len(l.changes))}, nil
}

type recordingEngine struct {
	mu    sync.Mutex
	plays []string
	stops int
}

func (e *recordingEngine) Play(_ context.Context, entry Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays = append(e.plays, entry.Title)
	return nil
}

func (e *recordingEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	return nil
}

func (e *recordingEngine) Plays() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.plays...)
}

func testPlaylist() *Playlist {
	return NewPlaylist("http://proxy",
		[]BlobTrack{{Title: "A", BlobID: "blobA"}, {Title: "B", BlobID: "blobB"}},
		[]StaticTrack{{Title: "B", Path: "/music/b.mp3"}, {Title: "C", Path: "/music/c.mp3"}},
	)
}

func TestTickCoalescesRepeats(t *testing.T) {
	ledger := &scriptedLedger{values: []string{"A", "A", "B", "B", "C"}}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	plays := engine.Plays()
	if strings.Join(plays, ",") != "A,B,C" {
		t.Fatalf("plays = %v, want [A B C]", plays)
	}
	// Two switches after the first start
	if len(plays)-1 != 2 {
		t.Errorf("switches = %d", len(plays)-1)
	}

	np, ok := s.NowPlaying()
	if !ok || np.Title != "C" || np.Locator != "/music/c.mp3" {
		t.Errorf("now playing = %+v", np)
	}
}

func TestTickUnresolvableIsNoOp(t *testing.T) {
	ledger := &scriptedLedger{values: []string{"A", "Ghost", "Ghost"}}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, time.Second)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	if plays := engine.Plays(); len(plays) != 1 || plays[0] != "A" {
		t.Errorf("plays = %v", plays)
	}
	if engine.stops != 1 {
		t.Errorf("stops = %d, want 1 (before A only)", engine.stops)
	}
	if np, _ := s.NowPlaying(); np.Title != "A" {
		t.Errorf("now playing = %q, want A to keep playing", np.Title)
	}
	if obs, _ := s.Observed(); obs != "Ghost" {
		t.Errorf("observed = %q", obs)
	}
}

func TestTickPrefersBlobEntries(t *testing.T) {
	ledger := &scriptedLedger{values: []string{"B"}}
	s := NewSyncer(ledger, testPlaylist(), &recordingEngine{}, time.Second)

	s.Tick(context.Background())
	np, _ := s.NowPlaying()
	if np.BlobID != "blobB" || np.Locator != "http://proxy/api/audio/blobB" {
		t.Errorf("now playing = %+v", np)
	}
}

func TestTickSwallowsFetchErrors(t *testing.T) {
	ledger := &scriptedLedger{
		values: []string{"A", "A", "B"},
		errs:   map[int]error{1: errors.New("connection refused")},
	}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, time.Second)

	ctx := context.Background()
	if err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Tick(ctx); err == nil {
		t.Error("expected fetch error")
	}
	if err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(engine.Plays(), ","); got != "A,B" {
		t.Errorf("plays = %s", got)
	}
}

func TestEmptyTitleFirstPoll(t *testing.T) {
	// An empty current track is a real value, not the unseen sentinel
	ledger := &scriptedLedger{values: []string{"", "", "A"}}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, time.Second)

	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
	}
	if got := strings.Join(engine.Plays(), ","); got != "A" {
		t.Errorf("plays = %s", got)
	}
}

func TestSubmitRefreshesImmediately(t *testing.T) {
	ledger := &scriptedLedger{current: "A"}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, time.Hour)

	ctx := context.Background()
	s.Tick(ctx)

	receipt, err := s.Submit(ctx, "C", 100)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Version != 1 {
		t.Errorf("receipt = %+v", receipt)
	}
	if got := strings.Join(engine.Plays(), ","); got != "A,C" {
		t.Errorf("plays = %s, want the new track without waiting for a poll", got)
	}
}

func TestSubmitFailureLeavesPlayback(t *testing.T) {
	ledger := &scriptedLedger{current: "A", changeErr: contract.ErrInsufficientPayment}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, time.Hour)

	ctx := context.Background()
	s.Tick(ctx)
	pollsBefore := ledger.polls

	_, err := s.Submit(ctx, "B", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, contract.ErrInsufficientPayment) {
		t.Errorf("err = %v, want InsufficientPayment in chain", err)
	}
	if !strings.HasPrefix(err.Error(), "transaction failed: ") {
		t.Errorf("err text = %q", err.Error())
	}
	if got := strings.Join(engine.Plays(), ","); got != "A" {
		t.Errorf("plays = %s", got)
	}
	if ledger.polls != pollsBefore {
		t.Error("failed submission triggered a poll")
	}
}

func TestSubmitIsSingleFlight(t *testing.T) {
	block := make(chan struct{})
	ledger := &scriptedLedger{current: "A", changeBlock: block}
	s := NewSyncer(ledger, testPlaylist(), &recordingEngine{}, time.Hour)

	ctx := context.Background()
	first := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "B", 100)
		first <- err
	}()

	// Wait until the first submission holds the guard
	deadline := time.Now().Add(2 * time.Second)
	for !s.submitting.Load() {
		if time.Now().After(deadline) {
			t.Fatal("first submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Submit(ctx, "C", 100); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second submit err = %v, want ErrSubmissionInFlight", err)
	}

	// Polls keep working while the submission is pending
	if err := s.Tick(ctx); err != nil {
		t.Errorf("tick during submission: %v", err)
	}

	close(block)
	if err := <-first; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := s.Submit(ctx, "C", 100); err != nil {
		t.Errorf("submit after resolve: %v", err)
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	ledger := &scriptedLedger{values: []string{"A", "A", "B"}}
	engine := &recordingEngine{}
	s := NewSyncer(ledger, testPlaylist(), engine, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(engine.Plays()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("plays = %v", engine.Plays())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("run err = %v", err)
	}
	if got := strings.Join(engine.Plays(), ","); got != "A,B" {
		t.Errorf("plays = %s", got)
	}
}
