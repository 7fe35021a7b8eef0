package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Push        PushConfig        `toml:"push"`
	Recorder    RecorderConfig    `toml:"recorder"`
	Notify      NotifyConfig      `toml:"notify"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	AssemblyAI AssemblyAIConfig `toml:"assemblyai"`
	Groq       GroqConfig       `toml:"groq"`
	Resend     ResendConfig     `toml:"resend"`
}

// AssemblyAIConfig contains transcription API credentials.
type AssemblyAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// GroqConfig contains credentials for the OpenAI-compatible Groq endpoint.
type GroqConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// ResendConfig contains email provider credentials.
type ResendConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	From    string `toml:"from"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	PublicURL      string `toml:"public_url"`
	APIKey         string `toml:"api_key"`
	AdminKey       string `toml:"admin_key"`
	CronSecret     string `toml:"cron_secret"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

// StorageConfig points at the object storage REST API holding recordings.
type StorageConfig struct {
	URL    string `toml:"url"`
	Key    string `toml:"key"`
	Bucket string `toml:"bucket"`
}

// PushConfig contains the push notification gateway endpoint.
type PushConfig struct {
	GatewayURL string `toml:"gateway_url"`
	Token      string `toml:"token"`
}

// RecorderConfig contains settings for the recording client.
type RecorderConfig struct {
	APIURL       string `toml:"api_url"`
	UserID       string `toml:"user_id"`
	BackupPath   string `toml:"backup_path"`
	ChunkSeconds int    `toml:"chunk_seconds"`
	InputFormat  string `toml:"input_format"`
	InputDevice  string `toml:"input_device"`
	LogPath      string `toml:"log_path"`
}

// NotifyConfig contains settings for the notification batch job.
type NotifyConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
	AuditLog  string  `toml:"audit_log"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets with values from the environment when they are set.
func (c *Config) ApplyEnv() *Config {
	for env, dst := range map[string]*string{
		"ASSEMBLYAI_API_KEY": &c.Credentials.AssemblyAI.APIKey,
		"GROQ_API_KEY":       &c.Credentials.Groq.APIKey,
		"RESEND_API_KEY":     &c.Credentials.Resend.APIKey,
		"STORAGE_KEY":        &c.Storage.Key,
		"MINUTES_API_KEY":    &c.Server.APIKey,
		"MINUTES_ADMIN_KEY":  &c.Server.AdminKey,
		"CRON_SECRET":        &c.Server.CronSecret,
		"PUSH_GATEWAY_TOKEN": &c.Push.Token,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	return c
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
