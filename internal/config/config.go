package config

import (
	"os"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Email    EmailConfig
	MatchAI  MatchAIConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
}

type EmailConfig struct {
	AWSRegion   string
	FromEmail   string
	FromName    string
	FrontendURL string
}

type MatchAIConfig struct {
	BaseURL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port: getenv("PORT", "3001"),
			Env:  getenv("APP_ENV", "development"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
			RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		},
		Email: EmailConfig{
			AWSRegion:   getenv("AWS_REGION", "eu-west-1"),
			FromEmail:   os.Getenv("SES_FROM_EMAIL"),
			FromName:    getenv("SES_FROM_NAME", "Influenza"),
			FrontendURL: getenv("FRONTEND_URL", "http://localhost:3000"),
		},
		MatchAI: MatchAIConfig{
			BaseURL: getenv("MATCH_AI_URL", "http://localhost:8000"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
	}
}

// IsProduction reports whether the process runs with production settings
// (enables the Secure flag on the refresh cookie).
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
