package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrBlinki/sui-hackaton25/internal/config"
	"github.com/MrBlinki/sui-hackaton25/internal/player"
)

func main() {
	// 1. Parse Flags
	simulate := flag.Bool("simulate", false, "Dry run: print playback changes instead of playing audio")
	play := flag.String("play", "", "Pay to switch the jukebox to this title, then keep syncing")
	payment := flag.Uint64("payment", 0, "Payment for -play (defaults to the ledger fee)")
	upload := flag.String("upload", "", "Upload this audio file through the proxy and add it to the playlist")
	title := flag.String("title", "", "Title for -upload (defaults to the file's tags)")
	register := flag.Bool("register", true, "Register an uploaded title on the ledger")
	metrics := flag.Bool("metrics", false, "Expose player metrics on server.metrics_port")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 2. Load Config
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerClient := player.NewLedgerClient(cfg.Player.LedgerURL, cfg.Player.Token, cfg.RequestTimeout())

	playlist, err := player.LoadPlaylist(cfg.Player.PlaylistFile, cfg.Player.ProxyURL)
	if err != nil {
		log.Fatalf("❌ Failed to load playlist: %v", err)
	}
	log.Printf("🎶 Playlist %s: %d titles", cfg.Player.PlaylistFile, len(playlist.Titles()))

	// 3. One-shot upload
	if *upload != "" {
		if err := uploadTrack(ctx, cfg, ledgerClient, playlist, *upload, *title, *register); err != nil {
			log.Fatalf("❌ %v", err)
		}
		if *play == "" {
			return
		}
	}

	// 4. Engine
	var engine player.Engine
	if *simulate {
		log.Println("🧪 MODE: DRY RUN / SIMULATION")
		log.Println("   - No Audio Output")
		engine = player.NewDryEngine(os.Stdout)
	} else {
		log.Printf("🚀 Starting Jukebox Player (%s)", cfg.Player.PlayerCommand)
		engine = player.NewProcessEngine(cfg.Player.PlayerCommand, cfg.Player.PlayerArguments)
	}

	if *metrics {
		player.RegisterMetrics()
		go func() {
			http.Handle("/_metrics", promhttp.Handler())
			log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
			if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
				log.Printf("⚠️ Metrics server error: %v", err)
			}
		}()
	}

	syncer := player.NewSyncer(ledgerClient, playlist, engine, cfg.PollInterval())

	// 5. Optional pay-to-play, alongside the poll loop
	if *play != "" {
		go func() {
			amount := *payment
			if amount == 0 {
				state, err := ledgerClient.State(ctx)
				if err != nil {
					log.Printf("❌ Could not read the fee: %v", err)
					return
				}
				amount = state.Fee
			}
			receipt, err := syncer.Submit(ctx, *play, amount)
			if err != nil {
				log.Printf("❌ %v", err)
				return
			}
			for _, t := range receipt.Transfers {
				log.Printf("   ↳ %d to %s (%s)", t.Amount, t.To, t.Reason)
			}
		}()
	}

	if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("❌ Sync loop stopped: %v", err)
	}
	log.Println("👋 Player stopped")
}

func uploadTrack(ctx context.Context, cfg *config.Config, ledgerClient *player.LedgerClient, playlist *player.Playlist, path, title string, register bool) error {
	proxyClient := player.NewProxyClient(cfg.Player.ProxyURL, 0)

	log.Printf("📤 Uploading %s...", path)
	res, err := proxyClient.Upload(ctx, path, title)
	if err != nil {
		return err
	}
	log.Printf("✅ Stored as blob %s (%d bytes, title %q)", res.BlobID, res.Size, res.Title)

	playlist.AddBlob(res.Title, res.BlobID)
	if err := playlist.Save(); err != nil {
		return err
	}

	if register {
		receipt, err := ledgerClient.RegisterTrack(ctx, res.Title, "")
		if err != nil {
			return err
		}
		log.Printf("📜 Registered %q on the ledger (version %d)", res.Title, receipt.Version)
	}
	return nil
}
