package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the server. It is loaded once in
// main and injected into the components that need it; nothing reads the
// environment after startup.
type Config struct {
	Port         string
	BaseURL      string
	DatabasePath string
	PDFDir       string

	JWTSecret string
	JWTTTL    time.Duration

	OpenAIKey   string
	GPTModel    string
	DeepgramKey string

	EmailSender  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from a .env file (if present) and the
// environment, applying defaults for everything optional.
func Load() (*Config, error) {
	// Missing .env is fine, the environment alone is enough.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("DATABASE_PATH", "billirae.db")
	v.SetDefault("PDF_DIR", "pdfs")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("GPT_MODEL", "gpt-4")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("EMAIL_SENDER", "noreply@billirae.com")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	cfg := &Config{
		Port:         v.GetString("PORT"),
		BaseURL:      strings.TrimRight(v.GetString("BASE_URL"), "/"),
		DatabasePath: v.GetString("DATABASE_PATH"),
		PDFDir:       v.GetString("PDF_DIR"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTTTL:       v.GetDuration("JWT_TTL"),
		OpenAIKey:    v.GetString("OPENAI_API_KEY"),
		GPTModel:     v.GetString("GPT_MODEL"),
		DeepgramKey:  v.GetString("DEEPGRAM_API_KEY"),
		EmailSender:  v.GetString("EMAIL_SENDER"),
		SMTPHost:     v.GetString("SMTP_SERVER"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogFormat:    v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without. DEEPGRAM_API_KEY
// and the SMTP settings are deliberately optional: without them the matching
// capability reports itself as unavailable instead of failing startup.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: %s must be set", strings.Join(missing, ", "))
	}
	return nil
}
