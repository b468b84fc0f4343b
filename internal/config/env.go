package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads variables from .env and .env.local when present.
// Existing process environment variables are never overwritten.
func LoadEnvFiles(paths ...string) []string {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}
