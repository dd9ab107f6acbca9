package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendAzure = "azure"
	BackendS3    = "s3"
	BackendLocal = "local"
)

type Config struct {
	Port           string   `yaml:"port"`
	StorageBackend string   `yaml:"storage_backend"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`

	AzureConnectionString string `yaml:"azure_connection_string"`

	S3Endpoint        string `yaml:"s3_endpoint"`
	S3Region          string `yaml:"s3_region"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3PublicBaseURL   string `yaml:"s3_public_base_url"`
	S3PathStyle       bool   `yaml:"s3_path_style"`
	S3PublicPolicy    bool   `yaml:"s3_public_policy"`

	LocalStorageDir    string `yaml:"local_storage_dir"`
	LocalPublicBaseURL string `yaml:"local_public_base_url"`
}

// ConfigurationError reports required configuration missing or invalid at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s", e.Key, e.Reason)
}

func defaults() *Config {
	return &Config{
		Port:            "5000",
		StorageBackend:  BackendAzure,
		AllowedOrigins:  []string{"*"},
		LogLevel:        "info",
		LogFormat:       "console",
		S3Region:        "auto",
		S3PublicPolicy:  true,
		LocalStorageDir: "./data",
	}
}

// Load reads .env files, then an optional YAML file (CONFIG_FILE), then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	// Try to load .env file from project root, then the current directory
	godotenv.Load(filepath.Join("..", ".env"))
	godotenv.Load(".env")

	cfg := defaults()
	if err := cfg.loadFile(getEnv("CONFIG_FILE", "config.yaml")); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	// The local backend is served by this process, so its URLs follow the port.
	if cfg.LocalPublicBaseURL == "" {
		cfg.LocalPublicBaseURL = "http://localhost:" + cfg.Port + "/blobs"
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", c.StorageBackend))
	c.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.AzureConnectionString = getEnv("AZURE_STORAGE_CONNECTION_STRING", c.AzureConnectionString)

	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	c.S3AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3AccessKeyID)
	c.S3SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3SecretAccessKey)
	c.S3PublicBaseURL = getEnv("S3_PUBLIC_BASE_URL", c.S3PublicBaseURL)
	c.S3PathStyle = getEnvBool("S3_PATH_STYLE", c.S3PathStyle)
	c.S3PublicPolicy = getEnvBool("S3_PUBLIC_POLICY", c.S3PublicPolicy)

	c.LocalStorageDir = getEnv("LOCAL_STORAGE_DIR", c.LocalStorageDir)
	c.LocalPublicBaseURL = getEnv("LOCAL_PUBLIC_BASE_URL", c.LocalPublicBaseURL)
}

// Validate checks that the selected storage backend has what it needs.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendAzure:
		if c.AzureConnectionString == "" {
			return &ConfigurationError{Key: "AZURE_STORAGE_CONNECTION_STRING", Reason: "is required"}
		}
	case BackendS3:
		if c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
			return &ConfigurationError{Key: "S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY", Reason: "are required"}
		}
	case BackendLocal:
		if c.LocalStorageDir == "" {
			return &ConfigurationError{Key: "LOCAL_STORAGE_DIR", Reason: "is required"}
		}
	default:
		return &ConfigurationError{
			Key:    "STORAGE_BACKEND",
			Reason: fmt.Sprintf("must be one of %s, %s, %s (got %q)", BackendAzure, BackendS3, BackendLocal, c.StorageBackend),
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
