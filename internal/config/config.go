package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultDataDir          = "resources"
	defaultSyncPort         = 8080
	defaultDiscoveryPort    = 8081
	defaultSyncInterval     = 300 // seconds
	defaultAnnounceInterval = 30  // seconds
)

// Config holds all node settings. One instance is built at startup and
// passed down; nothing reads the environment after MustLoad returns.
type Config struct {
	Env      string
	Username string
	DataDir  string
	LAN      lan
	Logger   logger
}

type lan struct {
	SyncPort         int
	DiscoveryPort    int
	SyncInterval     int // seconds between automatic syncs
	AnnounceInterval int // seconds between discovery re-announces
	AutoSync         bool
	HostMode         bool
	Secret           string // optional shared secret for /auth, empty disables the check
}

type logger struct {
	LogLevel string
}

// MustLoad reads settings from the environment (and .env when present).
// Missing values fall back to defaults; it never fails.
func MustLoad() *Config {
	_ = godotenv.Load() // no .env file is fine, rely on the process environment

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", EnvLocal)
	viper.SetDefault("MAPART_USERNAME", defaultUsername())
	viper.SetDefault("MAPART_DATA_DIR", defaultDataDir)
	viper.SetDefault("LAN_PORT", defaultSyncPort)
	viper.SetDefault("LAN_DISCOVERY_PORT", defaultDiscoveryPort)
	viper.SetDefault("LAN_SYNC_INTERVAL", defaultSyncInterval)
	viper.SetDefault("LAN_ANNOUNCE_INTERVAL", defaultAnnounceInterval)
	viper.SetDefault("LAN_AUTO_SYNC", true)
	viper.SetDefault("LAN_HOST_MODE", false)
	viper.SetDefault("LOG_LEVEL", "info")

	return &Config{
		Env:      viper.GetString("APP_ENV"),
		Username: viper.GetString("MAPART_USERNAME"),
		DataDir:  viper.GetString("MAPART_DATA_DIR"),
		LAN: lan{
			SyncPort:         viper.GetInt("LAN_PORT"),
			DiscoveryPort:    viper.GetInt("LAN_DISCOVERY_PORT"),
			SyncInterval:     viper.GetInt("LAN_SYNC_INTERVAL"),
			AnnounceInterval: viper.GetInt("LAN_ANNOUNCE_INTERVAL"),
			AutoSync:         viper.GetBool("LAN_AUTO_SYNC"),
			HostMode:         viper.GetBool("LAN_HOST_MODE"),
			Secret:           viper.GetString("LAN_SECRET"),
		},
		Logger: logger{LogLevel: viper.GetString("LOG_LEVEL")},
	}
}

// SessionFile is the shared lock store for the current project.
func (c *Config) SessionFile() string {
	return filepath.Join(c.DataDir, "session.json")
}

// ProgressFile holds the progress document.
func (c *Config) ProgressFile() string {
	return filepath.Join(c.DataDir, "progress.json")
}

// VersionFile is the SQLite version-history database.
func (c *Config) VersionFile() string {
	return filepath.Join(c.DataDir, "versions.db")
}

// PeersFile is the shared peer registry.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, "peers.json")
}

func defaultUsername() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "anonymous"
	}
	return hostname
}
