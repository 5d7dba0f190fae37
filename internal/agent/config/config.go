package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/beacon-library/beacon-agent/internal/utils"
	"github.com/goccy/go-json"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".beacon", "config.json")
	DefaultLogFilePath = filepath.Join(home, ".beacon", "logs", "agent.log")
	DefaultSyncFolder  = filepath.Join(home, "Beacon")
	DefaultServerURL   = "https://beacon.example.org"

	DefaultSyncInterval = 30 * time.Second
	MinSyncInterval     = 5 * time.Second
)

var (
	ErrNoSyncFolder = errors.New("config: sync folder missing")
	ErrNoServerURL  = errors.New("config: server url missing")
)

// LibraryRef pins a remote library to its folder name under the sync root.
type LibraryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Config struct {
	SyncFolder   string       `json:"sync_folder"`
	ServerURL    string       `json:"server_url"`
	Email        string       `json:"email"`
	RefreshToken string       `json:"refresh_token"`
	TokenURL     string       `json:"token_url"`
	ClientID     string       `json:"client_id"`
	Libraries    []LibraryRef `json:"libraries"`
	AutoSync     bool         `json:"auto_sync"`
	SyncInterval Duration     `json:"sync_interval_ms"`

	Path string `json:"-"`
}

// Duration marshals as integer milliseconds, matching what the settings UI
// stores.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (c *Config) Validate() error {
	if c.SyncFolder == "" {
		return ErrNoSyncFolder
	}
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	if time.Duration(c.SyncInterval) < MinSyncInterval {
		c.SyncInterval = Duration(DefaultSyncInterval)
	}
	return nil
}

// LibraryByFolder resolves the folder name directly under the sync root to
// its library ref.
func (c *Config) LibraryByFolder(name string) (LibraryRef, bool) {
	for _, lib := range c.Libraries {
		if lib.Name == name {
			return lib, true
		}
	}
	return LibraryRef{}, false
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse %q: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
