package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrBlinki/sui-hackaton25/internal/api/middleware"
	"github.com/MrBlinki/sui-hackaton25/internal/config"
	"github.com/MrBlinki/sui-hackaton25/internal/contract"
	database "github.com/MrBlinki/sui-hackaton25/internal/db"
	"github.com/MrBlinki/sui-hackaton25/internal/ledger"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "github.com/MrBlinki/sui-hackaton25/internal/api/server"
)

func main() {
	tokenFor := flag.String("token", "", "Print a signed caller token for this address and exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 1. Setup Configuration
	cfg := config.Load()
	if err := cfg.ValidateLedger(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if *tokenFor != "" {
		ttl := time.Duration(cfg.Auth.TokenTTL) * time.Hour
		tok, err := middleware.IssueToken([]byte(cfg.Auth.JWTSecret), *tokenFor, ttl)
		if err != nil {
			log.Fatalf("❌ Failed to sign token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	log.Println("Starting Jukebox Ledger Node...")

	// 2. Initialize Infrastructure
	db := database.New(cfg)

	// 3. Run Database Migrations and write the genesis state once
	db.AutoMigrate()

	seed := make([]contract.TrackEntry, 0, len(cfg.Ledger.SeedTracks))
	for _, t := range cfg.Ledger.SeedTracks {
		seed = append(seed, contract.TrackEntry{Title: t.Title, Artist: contract.Address(t.Artist)})
	}
	genesis := contract.Genesis(contract.Address(cfg.Ledger.Owner), cfg.Ledger.Fee, cfg.Ledger.DefaultTrack, seed)
	if err := database.SeedLedger(db.DB, genesis); err != nil {
		log.Fatalf("❌ Failed to seed ledger: %v", err)
	}

	// 4. Contract
	rules := contract.Rules{
		SplitMode:       contract.SplitMode(cfg.Ledger.SplitMode),
		DuplicateTitles: contract.DuplicatePolicy(cfg.Ledger.DuplicateTitles),
	}
	state := ledger.NewStateManager(db.DB, contract.New(rules))
	log.Printf("📜 Contract rules: split=%s duplicates=%s fee=%d owner=%s",
		rules.SplitMode, rules.DuplicateTitles, cfg.Ledger.Fee, cfg.Ledger.Owner)

	// 5. Setup Metrics
	ledger.RegisterMetrics()
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 6. Start Server
	srv := apiserver.New(cfg, state)

	log.Printf("🚀 Ledger API starting on %s", cfg.Server.LedgerPort)
	if err := srv.Start(cfg.Server.LedgerPort); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}
