package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		LedgerPort  string `mapstructure:"ledger_port"`
		ProxyPort   string `mapstructure:"proxy_port"`
		MetricsPort string `mapstructure:"metrics_port"`
		LogLevel    string `mapstructure:"log_level"`
	} `mapstructure:"server"`
	Database struct {
		Driver   string `mapstructure:"driver"` // sqlite or postgres
		Path     string `mapstructure:"path"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
		TokenTTL  int    `mapstructure:"token_ttl_hours"`
	} `mapstructure:"auth"`
	Ledger struct {
		Owner           string      `mapstructure:"owner"`
		Fee             uint64      `mapstructure:"fee"`
		DefaultTrack    string      `mapstructure:"default_track"`
		SplitMode       string      `mapstructure:"split_mode"`
		DuplicateTitles string      `mapstructure:"duplicate_titles"`
		SeedTracks      []SeedTrack `mapstructure:"seed_tracks"`
	} `mapstructure:"ledger"`
	Proxy struct {
		CacheDir     string   `mapstructure:"cache_dir"`
		CacheMaxSize string   `mapstructure:"cache_max_size"`
		Aggregators  []string `mapstructure:"aggregators"`
		Publishers   []string `mapstructure:"publishers"`
		Epochs       int      `mapstructure:"epochs"`
		FetchTimeout int      `mapstructure:"fetch_timeout_seconds"`
		MaxUploadMB  int      `mapstructure:"max_upload_mb"`
		// Fallback is an optional storage tier tried after the HTTP endpoints.
		Fallback struct {
			Provider     string `mapstructure:"provider"` // "", local or s3
			LocalStorage string `mapstructure:"local_storage"`
			KeyID        string `mapstructure:"key_id"`
			AppKey       string `mapstructure:"app_key"`
			Endpoint     string `mapstructure:"endpoint"`
			Region       string `mapstructure:"region"`
			Bucket       string `mapstructure:"bucket"`
			Prefix       string `mapstructure:"prefix"`
		} `mapstructure:"fallback"`
	} `mapstructure:"proxy"`
	Player struct {
		LedgerURL       string `mapstructure:"ledger_url"`
		ProxyURL        string `mapstructure:"proxy_url"`
		Token           string `mapstructure:"token"`
		PollInterval    int    `mapstructure:"poll_interval_seconds"`
		RequestTimeout  int    `mapstructure:"request_timeout_seconds"`
		PlaylistFile    string `mapstructure:"playlist_file"`
		PlayerCommand   string `mapstructure:"player_command"`
		PlayerArguments string `mapstructure:"player_args"`
	} `mapstructure:"player"`
}

// SeedTrack is a registry row written into a fresh ledger.
type SeedTrack struct {
	Title  string `mapstructure:"title"`
	Artist string `mapstructure:"artist"`
}

var DefaultAggregators = []string{
	"https://aggregator.walrus-testnet.walrus.space",
	"https://wal-aggregator-testnet.staketab.org",
	"https://walrus-testnet-aggregator.nodes.guru",
	"https://aggregator.walrus.banansen.dev",
}

var DefaultPublishers = []string{
	"https://publisher.walrus-testnet.walrus.space",
	"https://wal-publisher-testnet.staketab.org",
	"https://walrus-testnet-publisher.nodes.guru",
	"https://publisher.walrus.banansen.dev",
}

func Load() *Config {
	viper.SetEnvPrefix("JUKEBOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Server
	viper.BindEnv("server.ledger_port")
	viper.BindEnv("server.proxy_port")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.log_level")

	// Database
	viper.BindEnv("database.driver")
	viper.BindEnv("database.path")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")

	// Auth
	viper.BindEnv("auth.jwt_secret")
	viper.BindEnv("auth.token_ttl_hours")

	// Ledger
	viper.BindEnv("ledger.owner")
	viper.BindEnv("ledger.fee")
	viper.BindEnv("ledger.default_track")
	viper.BindEnv("ledger.split_mode")
	viper.BindEnv("ledger.duplicate_titles")

	// Proxy
	viper.BindEnv("proxy.cache_dir")
	viper.BindEnv("proxy.cache_max_size")
	viper.BindEnv("proxy.aggregators")
	viper.BindEnv("proxy.publishers")
	viper.BindEnv("proxy.epochs")
	viper.BindEnv("proxy.fetch_timeout_seconds")
	viper.BindEnv("proxy.max_upload_mb")
	viper.BindEnv("proxy.fallback.provider")
	viper.BindEnv("proxy.fallback.local_storage")
	viper.BindEnv("proxy.fallback.key_id")
	viper.BindEnv("proxy.fallback.app_key")
	viper.BindEnv("proxy.fallback.endpoint")
	viper.BindEnv("proxy.fallback.region")
	viper.BindEnv("proxy.fallback.bucket")
	viper.BindEnv("proxy.fallback.prefix")

	// Player
	viper.BindEnv("player.ledger_url")
	viper.BindEnv("player.proxy_url")
	viper.BindEnv("player.token")
	viper.BindEnv("player.poll_interval_seconds")
	viper.BindEnv("player.request_timeout_seconds")
	viper.BindEnv("player.playlist_file")
	viper.BindEnv("player.player_command")
	viper.BindEnv("player.player_args")

	// Defaults
	viper.SetDefault("server.ledger_port", ":8081")
	viper.SetDefault("server.proxy_port", ":3001")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.log_level", "info")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "jukebox.db")
	viper.SetDefault("database.port", "5432")

	viper.SetDefault("auth.token_ttl_hours", 24*30)

	viper.SetDefault("ledger.fee", 100_000_000) // 0.1 SUI in MIST
	viper.SetDefault("ledger.default_track", "Nothing playing yet")
	viper.SetDefault("ledger.split_mode", "registry")
	viper.SetDefault("ledger.duplicate_titles", "first_wins")

	viper.SetDefault("proxy.cache_dir", "./audio-cache")
	viper.SetDefault("proxy.cache_max_size", "2GB")
	viper.SetDefault("proxy.aggregators", DefaultAggregators)
	viper.SetDefault("proxy.publishers", DefaultPublishers)
	viper.SetDefault("proxy.epochs", 5)
	viper.SetDefault("proxy.fetch_timeout_seconds", 15)
	viper.SetDefault("proxy.max_upload_mb", 50)
	viper.SetDefault("proxy.fallback.local_storage", "./data")
	viper.SetDefault("proxy.fallback.prefix", "blobs/")

	viper.SetDefault("player.ledger_url", "http://localhost:8081")
	viper.SetDefault("player.proxy_url", "http://localhost:3001")
	viper.SetDefault("player.poll_interval_seconds", 5)
	viper.SetDefault("player.request_timeout_seconds", 10)
	viper.SetDefault("player.playlist_file", "playlist.yaml")
	viper.SetDefault("player.player_command", "ffplay")
	viper.SetDefault("player.player_args", "-nodisp -autoexit -loglevel error")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	// Comma separated env values arrive as a single element.
	cfg.Proxy.Aggregators = splitList(cfg.Proxy.Aggregators)
	cfg.Proxy.Publishers = splitList(cfg.Proxy.Publishers)

	return &cfg
}

// Anything shorter is guessable enough to forge owner tokens.
const minSecretLen = 16

// ValidateLedger reports settings the ledger node cannot start with.
func (c *Config) ValidateLedger() error {
	if c.Ledger.Owner == "" {
		return errors.New("ledger owner is missing (JUKEBOX_LEDGER_OWNER)")
	}
	if c.Ledger.Fee == 0 {
		return errors.New("ledger fee must be greater than zero")
	}
	switch c.Ledger.SplitMode {
	case "registry", "owner":
	default:
		return fmt.Errorf("unknown ledger split_mode %q", c.Ledger.SplitMode)
	}
	switch c.Ledger.DuplicateTitles {
	case "first_wins", "reject":
	default:
		return fmt.Errorf("unknown ledger duplicate_titles %q", c.Ledger.DuplicateTitles)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is missing (JUKEBOX_AUTH_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}
	return nil
}

// ValidateProxy reports settings the blob proxy cannot start with.
func (c *Config) ValidateProxy() error {
	if len(c.Proxy.Aggregators) == 0 && c.Proxy.Fallback.Provider == "" {
		return errors.New("no aggregator endpoints configured")
	}
	if len(c.Proxy.Publishers) == 0 && c.Proxy.Fallback.Provider == "" {
		return errors.New("no publisher endpoints configured")
	}
	if _, err := c.CacheMaxBytes(); err != nil {
		return err
	}
	return nil
}

// CacheMaxBytes parses proxy.cache_max_size ("2GB", "512MB"). Zero disables eviction.
func (c *Config) CacheMaxBytes() (int64, error) {
	if strings.TrimSpace(c.Proxy.CacheMaxSize) == "" || c.Proxy.CacheMaxSize == "0" {
		return 0, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(c.Proxy.CacheMaxSize)); err != nil {
		return 0, fmt.Errorf("invalid proxy cache_max_size %q: %w", c.Proxy.CacheMaxSize, err)
	}
	return int64(size.Bytes()), nil
}

func (c *Config) FetchTimeout() time.Duration {
	if c.Proxy.FetchTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Proxy.FetchTimeout) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	if c.Player.PollInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Player.PollInterval) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	if c.Player.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Player.RequestTimeout) * time.Second
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, strings.TrimRight(p, "/"))
			}
		}
	}
	return out
}
