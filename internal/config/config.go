package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"relaychat/internal/identity"
)

// Config holds all runtime settings. The core treats it as read-only.
type Config struct {
	HTTP      *HTTPConfig
	Chat      *ChatConfig
	WebSocket *WebSocketConfig
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ChatConfig is the relay's identity and moderation surface: the single
// admin identity, the trip salt, the moderator trip allowlist, and the
// optional jail file of pre-arrested addresses.
type ChatConfig struct {
	AdminName      string
	AdminPassword  string
	Salt           string
	Mods           []string
	JailFile       string
	TrustForwarded bool
}

type WebSocketConfig struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	UpgradesPerSec float64
	UpgradeBurst   int
}

// DefaultConfig returns a runnable local configuration. The admin password
// is intentionally empty, which disables admin login until one is set.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         6060,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Chat: &ChatConfig{
			AdminName: "admin",
			JailFile:  "jail.txt",
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			UpgradesPerSec: 2,
			UpgradeBurst:   5,
		},
	}
}

func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.AdminName != "" && !identity.ValidNick(c.Chat.AdminName) {
		return fmt.Errorf("admin name %q is not a valid nickname", c.Chat.AdminName)
	}
	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket timings must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.UpgradesPerSec <= 0 || c.WebSocket.UpgradeBurst <= 0 {
		return fmt.Errorf("websocket upgrade limits must be positive")
	}
	return nil
}

// LoadFromEnv overlays environment variables onto the defaults.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("RELAYCHAT_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("RELAYCHAT_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if admin := os.Getenv("RELAYCHAT_ADMIN"); admin != "" {
		cfg.Chat.AdminName = admin
	}
	if password := os.Getenv("RELAYCHAT_PASSWORD"); password != "" {
		cfg.Chat.AdminPassword = password
	}
	if salt := os.Getenv("RELAYCHAT_SALT"); salt != "" {
		cfg.Chat.Salt = salt
	}
	if mods := os.Getenv("RELAYCHAT_MODS"); mods != "" {
		cfg.Chat.Mods = splitMods(mods)
	}
	if jail := os.Getenv("RELAYCHAT_JAIL_FILE"); jail != "" {
		cfg.Chat.JailFile = jail
	}
	if fwd := os.Getenv("RELAYCHAT_TRUST_FORWARDED"); fwd != "" {
		if b, err := strconv.ParseBool(fwd); err == nil {
			cfg.Chat.TrustForwarded = b
		}
	}
	return cfg
}

func splitMods(raw string) []string {
	var mods []string
	for _, trip := range strings.Split(raw, ",") {
		if trip = strings.TrimSpace(trip); trip != "" {
			mods = append(mods, trip)
		}
	}
	return mods
}

// configFile mirrors Config for JSON parsing, with durations as strings.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Chat *struct {
		Admin          string   `json:"admin"`
		Password       string   `json:"password"`
		Salt           string   `json:"salt"`
		Mods           []string `json:"mods"`
		JailFile       string   `json:"jail_file"`
		TrustForwarded bool     `json:"trust_forwarded"`
	} `json:"chat"`
	WebSocket *struct {
		PingInterval   string  `json:"ping_interval"`
		ReadTimeout    string  `json:"read_timeout"`
		WriteTimeout   string  `json:"write_timeout"`
		UpgradesPerSec float64 `json:"upgrades_per_sec"`
		UpgradeBurst   int     `json:"upgrade_burst"`
	} `json:"websocket"`
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// LoadFromFile reads a JSON config file and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		setDuration(&cfg.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		setDuration(&cfg.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.Chat != nil {
		if file.Chat.Admin != "" {
			cfg.Chat.AdminName = file.Chat.Admin
		}
		cfg.Chat.AdminPassword = file.Chat.Password
		cfg.Chat.Salt = file.Chat.Salt
		cfg.Chat.Mods = file.Chat.Mods
		if file.Chat.JailFile != "" {
			cfg.Chat.JailFile = file.Chat.JailFile
		}
		cfg.Chat.TrustForwarded = file.Chat.TrustForwarded
	}
	if file.WebSocket != nil {
		setDuration(&cfg.WebSocket.PingInterval, file.WebSocket.PingInterval)
		setDuration(&cfg.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		setDuration(&cfg.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		if file.WebSocket.UpgradesPerSec > 0 {
			cfg.WebSocket.UpgradesPerSec = file.WebSocket.UpgradesPerSec
		}
		if file.WebSocket.UpgradeBurst > 0 {
			cfg.WebSocket.UpgradeBurst = file.WebSocket.UpgradeBurst
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves configuration with precedence file > environment > defaults.
// A missing or unreadable file falls back to the environment silently.
func Load(path string) *Config {
	cfg := LoadFromEnv()
	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		}
	}
	return cfg
}
