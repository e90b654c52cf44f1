package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	// Speech-to-text and chat completion credential. May be empty: uploads
	// still succeed and the transcript row is marked failed with an
	// explanatory message instead.
	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`

	// Outbound voice-call service. All four are required before a call can
	// be placed; absence hard-fails call placement.
	VapiBaseURL       string `mapstructure:"VAPI_BASE_URL"`
	VapiPhoneNumberID string `mapstructure:"VAPI_PHONE_NUMBER_ID"`
	VapiPrivateAPIKey string `mapstructure:"VAPI_PRIVATE_API_KEY"`
	VapiWorkflowID    string `mapstructure:"VAPI_WORKFLOW_ID"`

	ResendAPIKey    string `mapstructure:"RESEND_API_KEY"`
	ResendFromEmail string `mapstructure:"RESEND_FROM_EMAIL"`

	// BlobDir is the root directory for stored audio blobs.
	BlobDir string `mapstructure:"BLOB_DIR"`

	// Background job pool sizing.
	JobWorkers   int `mapstructure:"JOB_WORKERS"`
	JobQueueSize int `mapstructure:"JOB_QUEUE_SIZE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("RESEND_FROM_EMAIL", "reports@carevisit.app")
	v.SetDefault("BLOB_DIR", "./data/audio")
	v.SetDefault("JOB_WORKERS", 8)
	v.SetDefault("JOB_QUEUE_SIZE", 256)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_BASE_URL")
	v.BindEnv("VAPI_BASE_URL")
	v.BindEnv("VAPI_PHONE_NUMBER_ID")
	v.BindEnv("VAPI_PRIVATE_API_KEY")
	v.BindEnv("VAPI_WORKFLOW_ID")
	v.BindEnv("RESEND_API_KEY")
	v.BindEnv("RESEND_FROM_EMAIL")
	v.BindEnv("BLOB_DIR")
	v.BindEnv("JOB_WORKERS")
	v.BindEnv("JOB_QUEUE_SIZE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests are authenticated.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TranscriptionConfigured reports whether the speech-to-text credential is
// present. When it is not, uploads still work and transcripts are marked
// failed with a "service not configured" message.
func (c *Config) TranscriptionConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// CallsConfigured reports whether all voice-call settings are present.
func (c *Config) CallsConfigured() bool {
	return c.VapiBaseURL != "" && c.VapiPhoneNumberID != "" &&
		c.VapiPrivateAPIKey != "" && c.VapiWorkflowID != ""
}

// Validate checks that the configuration is safe to run. It is called once at
// startup; components receive the validated struct and never read the
// environment themselves.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_JWKS_URL must be set outside development (current ENV=%q)", c.Env)
	}

	// A partially configured call service fails fast at startup rather than
	// per request.
	if c.VapiBaseURL != "" || c.VapiPhoneNumberID != "" || c.VapiPrivateAPIKey != "" || c.VapiWorkflowID != "" {
		if !c.CallsConfigured() {
			return fmt.Errorf("VAPI_BASE_URL, VAPI_PHONE_NUMBER_ID, VAPI_PRIVATE_API_KEY and VAPI_WORKFLOW_ID must all be set to enable outbound calls")
		}
		if _, err := uuid.Parse(c.VapiPhoneNumberID); err != nil {
			return fmt.Errorf("VAPI_PHONE_NUMBER_ID must be a UUID: %w", err)
		}
	}

	if c.IsProduction() && !c.TranscriptionConfigured() {
		log.Println("WARNING: OPENAI_API_KEY not set; transcription is disabled and transcripts will be marked failed")
	}

	return nil
}
