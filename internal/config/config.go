// Package config handles Banter configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds Banter configuration
type Config struct {
	// Database location
	DBPath string

	// Gemini settings
	GeminiAPIKey string
	GeminiModel  string

	// HTTP gateway
	HTTPAddr string

	// Scheduling knobs
	PrimingDelay time.Duration
	GroupGapMin  time.Duration
	GroupGapMax  time.Duration
	TypingMin    time.Duration
	TypingMax    time.Duration
	ReplyMin     time.Duration
	ReplyMax     time.Duration

	// Context windows
	GroupWindow  int
	DirectWindow int

	// Verbose mode for debugging
	Verbose bool
}

// Load loads configuration from environment and defaults
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:       defaultDBPath(),
		GeminiModel:  "gemini-2.5-flash",
		HTTPAddr:     ":8799",
		PrimingDelay: 2 * time.Second,
		GroupGapMin:  3 * time.Second,
		GroupGapMax:  7 * time.Second,
		TypingMin:    2 * time.Second,
		TypingMax:    4 * time.Second,
		ReplyMin:     1500 * time.Millisecond,
		ReplyMax:     3 * time.Second,
		GroupWindow:  15,
		DirectWindow: 10,
	}

	// Environment overrides
	if v := os.Getenv("BANTER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BANTER_GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("BANTER_GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("BANTER_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("BANTER_PRIMING_DELAY"); v != "" {
		cfg.PrimingDelay = parseDurationOrDefault(v, 2*time.Second)
	}
	if v := os.Getenv("BANTER_GROUP_GAP_MIN"); v != "" {
		cfg.GroupGapMin = parseDurationOrDefault(v, 3*time.Second)
	}
	if v := os.Getenv("BANTER_GROUP_GAP_MAX"); v != "" {
		cfg.GroupGapMax = parseDurationOrDefault(v, 7*time.Second)
	}
	if v := os.Getenv("BANTER_TYPING_MIN"); v != "" {
		cfg.TypingMin = parseDurationOrDefault(v, 2*time.Second)
	}
	if v := os.Getenv("BANTER_TYPING_MAX"); v != "" {
		cfg.TypingMax = parseDurationOrDefault(v, 4*time.Second)
	}
	if v := os.Getenv("BANTER_REPLY_MIN"); v != "" {
		cfg.ReplyMin = parseDurationOrDefault(v, 1500*time.Millisecond)
	}
	if v := os.Getenv("BANTER_REPLY_MAX"); v != "" {
		cfg.ReplyMax = parseDurationOrDefault(v, 3*time.Second)
	}
	if v := os.Getenv("BANTER_GROUP_WINDOW"); v != "" {
		cfg.GroupWindow = parseIntOrDefault(v, 15)
	}
	if v := os.Getenv("BANTER_DIRECT_WINDOW"); v != "" {
		cfg.DirectWindow = parseIntOrDefault(v, 10)
	}
	if v := os.Getenv("BANTER_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1"
	}

	if cfg.GroupGapMax < cfg.GroupGapMin {
		return nil, fmt.Errorf("group gap max %v is below min %v", cfg.GroupGapMax, cfg.GroupGapMin)
	}
	if cfg.ReplyMax < cfg.ReplyMin {
		return nil, fmt.Errorf("reply delay max %v is below min %v", cfg.ReplyMax, cfg.ReplyMin)
	}

	return cfg, nil
}

// defaultDBPath returns SQLite in the user config directory
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".banter", "banter.db")
	}
	return filepath.Join(dir, "banter", "banter.db")
}

func parseIntOrDefault(s string, def int) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return def
	}
	return i
}

func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
