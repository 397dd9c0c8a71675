package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Authentication modes.
const (
	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
	AuthNone     = "none"
)

// Config holds all application configuration
type Config struct {
	Store    StoreConfig
	Firebase FirebaseConfig
	Auth     AuthConfig
	Server   ServerConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Browse   BrowseConfig

	// SeedDemo loads a handful of demo reviews into an empty store on start.
	SeedDemo bool
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Backend     string
	DatabaseURL string
	Collection  string
}

// FirebaseConfig holds Firebase project settings shared by Firestore and Auth.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode      string
	JWTSecret string
	JWTIssuer string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// BrowseConfig tunes the band and venue list pages.
type BrowseConfig struct {
	Window   int
	PageSize int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.loadStore()
	cfg.loadFirebase()
	cfg.loadAuth()

	if err := cfg.loadServer(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.loadBrowse(); err != nil {
		return nil, fmt.Errorf("load browse config: %w", err)
	}

	cfg.loadCORS()
	cfg.loadLogging()

	seed, err := strconv.ParseBool(getEnvOrDefault("SEED_DEMO", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_DEMO: %w", err)
	}
	cfg.SeedDemo = seed

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadStore() {
	c.Store.Backend = strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendMemory))
	c.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	c.Store.Collection = getEnvOrDefault("REVIEWS_COLLECTION", "reviews")
}

func (c *Config) loadFirebase() {
	c.Firebase.ProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	c.Firebase.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}

func (c *Config) loadAuth() {
	mode := AuthNone
	if c.Firebase.ProjectID != "" {
		mode = AuthFirebase
	}
	c.Auth.Mode = strings.ToLower(getEnvOrDefault("AUTH_MODE", mode))
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = getEnvOrDefault("JWT_ISSUER", "riffrate")
}

func (c *Config) loadServer() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")
	return nil
}

func (c *Config) loadBrowse() error {
	window, err := strconv.Atoi(getEnvOrDefault("REVIEW_WINDOW", "300"))
	if err != nil {
		return fmt.Errorf("invalid REVIEW_WINDOW: %w", err)
	}
	pageSize, err := strconv.Atoi(getEnvOrDefault("PAGE_SIZE", "12"))
	if err != nil {
		return fmt.Errorf("invalid PAGE_SIZE: %w", err)
	}
	c.Browse.Window = window
	c.Browse.PageSize = pageSize
	return nil
}

func (c *Config) loadCORS() {
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		// Vite and CRA dev servers
		c.CORS.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
		return
	}

	var origins []string
	for _, origin := range strings.Split(originsEnv, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.CORS.AllowedOrigins = origins
}

func (c *Config) loadLogging() {
	c.Logging.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	c.Logging.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case BackendFirestore:
		if c.Firebase.ProjectID == "" {
			errors = append(errors, "FIREBASE_PROJECT_ID is required when STORE_BACKEND=firestore")
		}
	default:
		errors = append(errors, "STORE_BACKEND must be one of: memory, postgres, firestore")
	}
	if c.Store.Collection == "" {
		errors = append(errors, "REVIEWS_COLLECTION must not be empty")
	}

	switch c.Auth.Mode {
	case AuthNone:
	case AuthFirebase:
		if c.Firebase.ProjectID == "" {
			errors = append(errors, "FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	case AuthJWT:
		if len(c.Auth.JWTSecret) < 16 {
			errors = append(errors, "JWT_SECRET must be at least 16 characters when AUTH_MODE=jwt")
		}
	default:
		errors = append(errors, "AUTH_MODE must be one of: firebase, jwt, none")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}

	if c.Browse.Window < 1 {
		errors = append(errors, "REVIEW_WINDOW must be positive")
	}
	if c.Browse.PageSize < 1 {
		errors = append(errors, "PAGE_SIZE must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
