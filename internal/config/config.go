package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all settings for the pulse host.
type Config struct {
	// Browser
	CDPAddress    string
	CDPPort       int
	LaunchBrowser bool
	ProfileDir    string
	BrowserBinary string

	// Agent link
	AgentURL       string
	UserID         string
	SessionID      string
	ReconnectDelay time.Duration
	ActionTimeout  time.Duration

	// Operator surface
	BindAddr     string
	BindFallback bool
	LogLevel     string
	LogFile      string
	SnapshotDir  string
	HistoryDir   string
	SurfacesFile string

	// Capture
	CaptureInterval time.Duration
	CaptureMaxDim   int
	CaptureQuality  int

	// Window layout
	WindowWidth  int
	WindowHeight int
	HeaderHeight int

	// Audio input
	MicPath string

	// Disconnect notifications
	NtfyURL     string
	NotifyAfter int
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:      getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		LaunchBrowser:   getEnvBoolOrDefault("PULSE_LAUNCH_BROWSER", false),
		ProfileDir:      getEnvOrDefault("PULSE_BROWSER_PROFILE_DIR", "./browser_profile"),
		BrowserBinary:   os.Getenv("PULSE_BROWSER_BINARY"),
		AgentURL:        getEnvOrDefault("PULSE_AGENT_URL", "ws://127.0.0.1:8080"),
		UserID:          getEnvOrDefault("PULSE_USER_ID", "local"),
		SessionID:       getEnvOrDefault("PULSE_SESSION_ID", uuid.NewString()),
		ReconnectDelay:  getEnvMillisOrDefault("PULSE_RECONNECT_DELAY_MS", 3000),
		ActionTimeout:   getEnvMillisOrDefault("PULSE_ACTION_TIMEOUT_MS", 15000),
		BindAddr:        getEnvOrDefault("PULSE_BIND_ADDR", "127.0.0.1:8190"),
		BindFallback:    getEnvBoolOrDefault("PULSE_BIND_FALLBACK", true),
		LogLevel:        strings.ToLower(getEnvOrDefault("PULSE_LOG_LEVEL", "info")),
		LogFile:         getEnvOrDefault("PULSE_LOG_FILE", "logs/pulse.log"),
		SnapshotDir:     getEnvOrDefault("PULSE_SNAPSHOT_DIR", "./snapshots"),
		HistoryDir:      getEnvOrDefault("PULSE_HISTORY_DIR", "./history"),
		SurfacesFile:    getEnvOrDefault("PULSE_SURFACES_FILE", "./config/surfaces.yaml"),
		CaptureInterval: getEnvMillisOrDefault("PULSE_CAPTURE_INTERVAL_MS", 1000),
		CaptureMaxDim:   getEnvIntOrDefault("PULSE_CAPTURE_MAX_DIM", 768),
		CaptureQuality:  getEnvIntOrDefault("PULSE_CAPTURE_QUALITY", 60),
		WindowWidth:     getEnvIntOrDefault("PULSE_WINDOW_WIDTH", 1280),
		WindowHeight:    getEnvIntOrDefault("PULSE_WINDOW_HEIGHT", 800),
		HeaderHeight:    getEnvIntOrDefault("PULSE_HEADER_HEIGHT", 80),
		MicPath:         os.Getenv("PULSE_MIC_PATH"),
		NtfyURL:         os.Getenv("PULSE_NTFY_URL"),
		NotifyAfter:     getEnvIntOrDefault("PULSE_NOTIFY_AFTER", 10),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the host cannot run with.
func (c *Config) Validate() error {
	if c.UserID == "" || c.SessionID == "" {
		return fmt.Errorf("config: user and session ids are required")
	}
	if !strings.HasPrefix(c.AgentURL, "ws://") && !strings.HasPrefix(c.AgentURL, "wss://") {
		return fmt.Errorf("config: PULSE_AGENT_URL must be a ws:// or wss:// url, got %q", c.AgentURL)
	}
	if c.CaptureQuality < 1 || c.CaptureQuality > 100 {
		return fmt.Errorf("config: PULSE_CAPTURE_QUALITY must be within 1..100")
	}
	if c.CaptureInterval < 100*time.Millisecond {
		c.CaptureInterval = 100 * time.Millisecond
	}
	if c.ReconnectDelay < 100*time.Millisecond {
		c.ReconnectDelay = 100 * time.Millisecond
	}
	if c.ActionTimeout < time.Second {
		c.ActionTimeout = time.Second
	}
	return nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
		slog.Warn("ignoring non-integer setting", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillisOrDefault(key string, defaultMS int) time.Duration {
	return time.Duration(getEnvIntOrDefault(key, defaultMS)) * time.Millisecond
}
