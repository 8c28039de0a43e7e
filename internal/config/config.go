package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/facegraph/internal/database"
)

//go:embed profile.yaml
var defaultProfileYAML []byte

type Config struct {
	Database DatabaseConfig `ignored:"true"`
	Web      WebConfig      `ignored:"true"`
	LogMode  string         `envconfig:"LOG_MODE" default:"development"`

	// ProfilePath points to a YAML file overriding keys of the embedded profile
	ProfilePath string `envconfig:"FACEGRAPH_PROFILE"`

	Profile Profile `ignored:"true"`
}

type DatabaseConfig struct {
	Driver       string `envconfig:"DATABASE_DRIVER" default:"postgres"` // postgres, sqlite or mariadb
	URL          string `envconfig:"DATABASE_URL"`                       // DSN, or file path for sqlite
	MaxOpenConns int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int    `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
}

type WebConfig struct {
	Host           string `envconfig:"WEB_HOST" default:"0.0.0.0"`
	Port           int    `envconfig:"WEB_PORT" default:"8080"`
	AllowedOrigins string `envconfig:"WEB_ALLOWED_ORIGINS"` // comma separated, empty means same-origin only
}

// Profile maps query roles onto sources and holds default query parameters.
type Profile struct {
	Roles    RolesProfile    `yaml:"roles"`
	Defaults DefaultsProfile `yaml:"defaults"`
}

type RolesProfile struct {
	Primary   database.Source `yaml:"primary"`
	Reference database.Source `yaml:"reference"`
	Secondary database.Source `yaml:"secondary"`
	Watchlist database.Source `yaml:"watchlist"`
}

type DefaultsProfile struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MatchThreshold      float64 `yaml:"match_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	DominanceFraction   float64 `yaml:"dominance_fraction"`
	Limit               int     `yaml:"limit"`
	VideoMaxFrames      int     `yaml:"video_max_frames"`
}

// DatabaseRoles converts the profile roles to the store's role mapping.
func (p *Profile) DatabaseRoles() database.Roles {
	return database.Roles{
		Primary:   p.Roles.Primary,
		Reference: p.Roles.Reference,
		Secondary: p.Roles.Secondary,
		Watchlist: p.Roles.Watchlist,
	}
}

// Validate checks that every role names a known source and thresholds are positive.
func (p *Profile) Validate() error {
	roles := map[string]database.Source{
		"primary":   p.Roles.Primary,
		"reference": p.Roles.Reference,
		"secondary": p.Roles.Secondary,
		"watchlist": p.Roles.Watchlist,
	}
	for name, src := range roles {
		if !src.Valid() {
			return fmt.Errorf("profile role %s: unknown source %q", name, src)
		}
	}

	thresholds := map[string]float64{
		"similarity_threshold": p.Defaults.SimilarityThreshold,
		"match_threshold":      p.Defaults.MatchThreshold,
		"confidence_threshold": p.Defaults.ConfidenceThreshold,
		"dominance_fraction":   p.Defaults.DominanceFraction,
	}
	for name, v := range thresholds {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("profile default %s must be positive, got %v", name, v)
		}
	}
	if p.Defaults.Limit <= 0 {
		return fmt.Errorf("profile default limit must be positive, got %d", p.Defaults.Limit)
	}
	if p.Defaults.VideoMaxFrames <= 0 {
		return fmt.Errorf("profile default video_max_frames must be positive, got %d", p.Defaults.VideoMaxFrames)
	}
	return nil
}

// DefaultProfile returns the embedded profile.
func DefaultProfile() Profile {
	var p Profile
	if err := yaml.Unmarshal(defaultProfileYAML, &p); err != nil {
		// embedded file, can only fail on a broken build
		panic("failed to unmarshal embedded profile.yaml: " + err.Error())
	}
	return p
}

// LoadProfile returns the embedded profile with keys from path applied on top.
// An empty path returns the embedded profile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, p.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile %s: %w", path, err)
	}
	// Unmarshalling into the populated struct keeps keys absent from the file.
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Load reads the environment and the profile.
func Load() (*Config, error) {
	var cfg Config
	// Sections are processed one by one so their keys are not prefixed with the field name.
	for _, section := range []any{&cfg, &cfg.Database, &cfg.Web} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	profile, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	cfg.Profile = profile
	return &cfg, nil
}

// Validate checks the database settings needed to open a store.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres", "sqlite", "mariadb":
	default:
		return fmt.Errorf("unsupported database driver %q (want postgres, sqlite or mariadb)", c.Driver)
	}
	if c.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

// Addr returns host:port for the HTTP server.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsProduction() bool {
	return c.LogMode == "production"
}
