package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MaxIndexed caps indexed environment lists such as FEED_0_NAME .. FEED_99_NAME.
const MaxIndexed = 100

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotenv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept. An empty path is a no-op.
func LoadDotenv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file %q not found", path)
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Indexed reads numbered groups of variables: for prefix "FEED" and suffixes
// NAME, URL it returns one map per i for FEED_<i>_NAME / FEED_<i>_URL.
// Reading stops at the first index where any suffix is unset.
func Indexed(prefix string, suffixes ...string) []map[string]string {
	var out []map[string]string
	for i := 0; i < MaxIndexed; i++ {
		group := make(map[string]string, len(suffixes))
		for _, sfx := range suffixes {
			v, ok := os.LookupEnv(prefix + "_" + strconv.Itoa(i) + "_" + sfx)
			if !ok {
				return out
			}
			group[sfx] = v
		}
		out = append(out, group)
	}
	return out
}

// Enabled reports whether a BOT_MODULE_<NAME>_ENABLED style flag is on.
// Only "1" and "true" enable.
func Enabled(key string) bool {
	switch os.Getenv(key) {
	case "1", "true":
		return true
	default:
		return false
	}
}
