// config.go
// ---------
// This file defines the Config structure: where the API lives, where the
// auth token is persisted, how long query results stay fresh and whether
// debug tracing is on.
//
// Values are read from an optional YAML file, then overridden by
// SOURCEWATCH_* environment variables, then completed with defaults.
package sourcewatch

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIHost  = "http://localhost"
	DefaultAPIPort  = 8000
	DefaultCacheTTL = 60 * time.Second
	apiPrefix       = "api/"
)

type Config struct {
	APIHost   string        `yaml:"api_host" env:"SOURCEWATCH_API_HOST"`
	APIPort   int           `yaml:"api_port" env:"SOURCEWATCH_API_PORT"`
	TokenFile string        `yaml:"token_file" env:"SOURCEWATCH_TOKEN_FILE"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"SOURCEWATCH_CACHE_TTL"`
	Debug     bool          `yaml:"debug" env:"SOURCEWATCH_DEBUG"`
}

// LoadConfig reads path (skipped when empty), applies environment overrides
// and defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.APIHost) == "" {
		c.APIHost = DefaultAPIHost
	}
	c.APIHost = strings.TrimRight(c.APIHost, "/")
	if c.APIPort == 0 && !hostHasPort(c.APIHost) {
		c.APIPort = DefaultAPIPort
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if strings.TrimSpace(c.TokenFile) == "" {
		c.TokenFile = defaultTokenFile()
	}
}

// Validate checks the values that would otherwise fail at request time.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIHost)
	if err != nil {
		return fmt.Errorf("api_host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_host %q: scheme must be http or https", c.APIHost)
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("api_port %d out of range", c.APIPort)
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must not be negative")
	}
	return nil
}

// Origin is "{host}:{port}/". The port is left out when it is zero or the
// host already names one.
func (c *Config) Origin() string {
	host := strings.TrimRight(c.APIHost, "/")
	if c.APIPort == 0 || hostHasPort(host) {
		return host + "/"
	}
	return host + ":" + strconv.Itoa(c.APIPort) + "/"
}

func hostHasPort(host string) bool {
	u, err := url.Parse(host)
	return err == nil && u.Port() != ""
}

// BaseURL is the versioned API root every endpoint path is relative to.
func (c *Config) BaseURL() string {
	return c.Origin() + apiPrefix
}

// ExportURL links the downloadable check report of a source. It lives
// outside the versioned API root.
func (c *Config) ExportURL(sourceUUID string) string {
	return c.Origin() + "resources/" + url.PathEscape(sourceUUID) + "/stats/export"
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "sourcewatch", "token.json")
}
