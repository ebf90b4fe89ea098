package main

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrBlinki/sui-hackaton25/internal/blob"
	"github.com/MrBlinki/sui-hackaton25/internal/cache"
	"github.com/MrBlinki/sui-hackaton25/internal/config"
	"github.com/MrBlinki/sui-hackaton25/internal/proxy"
	"github.com/MrBlinki/sui-hackaton25/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Jukebox Blob Proxy...")

	// 1. Setup Configuration
	cfg := config.Load()
	if err := cfg.ValidateProxy(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	maxBytes, _ := cfg.CacheMaxBytes()
	timeout := cfg.FetchTimeout()

	// 2. Endpoints, in priority order
	client := &http.Client{}
	var mirrors []blob.Mirror
	for _, u := range cfg.Proxy.Aggregators {
		mirrors = append(mirrors, blob.NewHTTPMirror(u, client))
	}
	var publishers []blob.Publisher
	for _, u := range cfg.Proxy.Publishers {
		publishers = append(publishers, blob.NewHTTPPublisher(u, cfg.Proxy.Epochs, client))
	}

	// 3. Optional storage tier, tried last
	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to init fallback storage: %v", err)
	}
	if store != nil {
		prefix := cfg.Proxy.Fallback.Prefix
		mirrors = append(mirrors, &blob.StorageMirror{Provider: store, Prefix: prefix})
		publishers = append(publishers, &blob.StoragePublisher{Provider: store, Prefix: prefix})
		log.Printf("🗄️ Fallback storage: %s (prefix %q)", store.Name(), prefix)
	}

	mirrorList := blob.NewMirrors(timeout, mirrors...)
	publisherList := blob.NewPublishers(timeout, publishers...)

	// 4. Cache
	blobCache, err := cache.NewManager(mirrorList, cfg.Proxy.CacheDir, maxBytes)
	if err != nil {
		log.Fatalf("❌ Failed to init cache: %v", err)
	}
	stats := blobCache.Stats()
	log.Printf("💾 Cache at %s: %d files, %d bytes (limit %s)",
		cfg.Proxy.CacheDir, stats.Files, stats.Bytes, cfg.Proxy.CacheMaxSize)

	// 5. Setup Metrics
	blob.RegisterMetrics()
	cache.RegisterMetrics()
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 6. Start Server
	srv := proxy.New(cfg, blobCache, mirrorList, publisherList)

	log.Printf("🚀 Blob proxy starting on %s (%d mirrors, %d publishers, %s per endpoint)",
		cfg.Server.ProxyPort, mirrorList.Len(), publisherList.Len(), timeout)
	if err := srv.Start(cfg.Server.ProxyPort); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}
