package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every runtime setting for the service.
type Config struct {
	Server   ServerConfig
	Billing  BillingConfig
	Wallet   WalletConfig
	Guidance GuidanceConfig
	Speech   SpeechConfig
	Voice    VoiceConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	billing, err := loadBillingConfig()
	if err != nil {
		return nil, err
	}

	wallet, err := loadWalletConfig()
	if err != nil {
		return nil, err
	}

	guidance, err := loadGuidanceConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Billing:  billing,
		Wallet:   wallet,
		Guidance: guidance,
		Speech:   speech,
		Voice:    voice,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// BillingConfig describes session metering.
type BillingConfig struct {
	// DeductionInterval is the period in seconds after which one
	// per-minute charge is applied. 60 in production; tests shrink it.
	DeductionInterval int
	// DefaultRatePerMinute applies when the astrologer profile carries no rate.
	DefaultRatePerMinute float64
}

func loadBillingConfig() (BillingConfig, error) {
	interval := 60
	if override, err := parseOptionalIntEnv("BILLING_DEDUCTION_INTERVAL"); err != nil {
		return BillingConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return BillingConfig{}, fmt.Errorf("BILLING_DEDUCTION_INTERVAL must be positive, got %d", *override)
		}
		interval = *override
	}

	rate := 48.0
	if override, err := parseOptionalFloatEnv("BILLING_RATE_PER_MINUTE"); err != nil {
		return BillingConfig{}, err
	} else if override != nil {
		rate = *override
	}

	return BillingConfig{DeductionInterval: interval, DefaultRatePerMinute: rate}, nil
}

// WalletConfig selects the wallet store backend.
type WalletConfig struct {
	// DatabaseURL selects the Postgres store when set; memory store otherwise.
	DatabaseURL string
	// SignupBalance is credited to wallets created on first access.
	SignupBalance float64
}

func loadWalletConfig() (WalletConfig, error) {
	signup := 0.0
	if override, err := parseOptionalFloatEnv("WALLET_SIGNUP_BALANCE"); err != nil {
		return WalletConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return WalletConfig{}, fmt.Errorf("WALLET_SIGNUP_BALANCE must not be negative")
		}
		signup = *override
	}

	return WalletConfig{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SignupBalance: signup,
	}, nil
}

// GuidanceConfig describes the LLM used for astrologer responses.
type GuidanceConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	HistoryLimit int
}

// Enabled reports whether the required credentials are present.
func (c GuidanceConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadGuidanceConfig() (GuidanceConfig, error) {
	historyLimit := 10
	if override, err := parseOptionalIntEnv("GUIDANCE_HISTORY_LIMIT"); err != nil {
		return GuidanceConfig{}, err
	} else if override != nil {
		if *override < 1 {
			historyLimit = 1
		} else {
			historyLimit = *override
		}
	}

	return GuidanceConfig{
		APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:      getEnvOrDefault("OPENAI_BASE_URL", ""),
		Model:        getEnvOrDefault("GUIDANCE_MODEL", "gpt-4o-mini"),
		HistoryLimit: historyLimit,
	}, nil
}

// SpeechConfig describes the ASR/TTS provider.
type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	TTSVoice string
	Timeout  time.Duration
}

// Enabled reports whether the required credentials are present.
func (c SpeechConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("SPEECH_TIMEOUT"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if apiKey == "" {
		// Fall back to the guidance credentials when no dedicated key exists.
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	return SpeechConfig{
		APIKey:   apiKey,
		BaseURL:  getEnvOrDefault("SPEECH_BASE_URL", ""),
		TTSVoice: getEnvOrDefault("SPEECH_TTS_VOICE", "alloy"),
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// VoiceConfig carries defaults for the realtime voice client.
type VoiceConfig struct {
	ReconnectBase time.Duration
	MaxReconnects int
	PingInterval  time.Duration
}

func loadVoiceConfig() (VoiceConfig, error) {
	baseSeconds := 3
	if override, err := parseOptionalIntEnv("VOICE_RECONNECT_BASE"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return VoiceConfig{}, fmt.Errorf("VOICE_RECONNECT_BASE must be positive, got %d", *override)
		}
		baseSeconds = *override
	}

	maxReconnects := 5
	if override, err := parseOptionalIntEnv("VOICE_MAX_RECONNECTS"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		maxReconnects = *override
	}

	pingSeconds := 30
	if override, err := parseOptionalIntEnv("VOICE_PING_INTERVAL"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		pingSeconds = *override
	}

	return VoiceConfig{
		ReconnectBase: time.Duration(baseSeconds) * time.Second,
		MaxReconnects: maxReconnects,
		PingInterval:  time.Duration(pingSeconds) * time.Second,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
