// Package config assembles run settings from defaults, the environment
// (optionally seeded from a .env file) and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pfrederiksen/callsign-mirror/internal/logger"
)

const (
	DefaultSourceURL = "https://www.ofcom.org.uk/about-ofcom/our-research/opendata"
	DefaultDataDir   = "."
	DefaultPolicy    = "strict"
	DefaultTimeout   = 30 * time.Second
)

// Environment variables read by FromEnv
const (
	EnvDataDir   = "CALLSIGN_MIRROR_DATA_DIR"
	EnvSourceURL = "CALLSIGN_MIRROR_SOURCE_URL"
	EnvOrigin    = "CALLSIGN_MIRROR_ORIGIN"
	EnvPolicy    = "CALLSIGN_MIRROR_POLICY"
)

// Config holds the settings for one run
type Config struct {
	DataDir   string        `validate:"required"`
	SourceURL string        `validate:"required,url"`
	Origin    string        `validate:"omitempty,url"` // derived from SourceURL when empty
	Policy    string        `validate:"oneof=strict best-effort"`
	Timeout   time.Duration `validate:"gt=0"`
	Debug     bool
}

// Default returns the settings used when nothing is overridden
func Default() Config {
	return Config{
		DataDir:   DefaultDataDir,
		SourceURL: DefaultSourceURL,
		Policy:    DefaultPolicy,
		Timeout:   DefaultTimeout,
	}
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding the existing environment. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv overlays environment values onto c
func (c Config) FromEnv(lookup func(string) string) Config {
	if v := strings.TrimSpace(lookup(EnvDataDir)); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(lookup(EnvSourceURL)); v != "" {
		c.SourceURL = v
	}
	if v := strings.TrimSpace(lookup(EnvOrigin)); v != "" {
		c.Origin = v
	}
	if v := strings.TrimSpace(lookup(EnvPolicy)); v != "" {
		c.Policy = strings.ToLower(v)
	}
	if logger.LevelFromEnv(lookup) == logger.LevelDebug {
		c.Debug = true
	}
	return c
}

// Validate checks every field and reports all problems at once
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config error: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("config error: %s", strings.Join(problems, "; "))
}

// BaseOrigin returns Origin, or the scheme and host of SourceURL
func (c Config) BaseOrigin() (string, error) {
	if c.Origin != "" {
		return strings.TrimSuffix(c.Origin, "/"), nil
	}

	u, err := url.Parse(c.SourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("cannot derive origin from source URL %q", c.SourceURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
