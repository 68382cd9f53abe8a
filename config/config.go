// Package config loads catastro settings from defaults, an optional YAML file
// and CATASTRO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/protoarbol/catastro/mapview"
	"github.com/protoarbol/catastro/trees"
)

// Image size profiles.
const (
	ProfileServer  = "server"
	ProfileOffline = "offline"

	ServerMaxImageBytes  = 2 * 1024 * 1024
	OfflineMaxImageBytes = 500000
)

// Store kinds.
const (
	StoreHTTP     = "http"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Store  Store  `mapstructure:"store" yaml:"store"`
	Server Server `mapstructure:"server" yaml:"server"`
	Map    Map    `mapstructure:"map" yaml:"map"`
	Filter Filter `mapstructure:"filter" yaml:"filter"`
	Images Images `mapstructure:"images" yaml:"images"`
	Sync   Sync   `mapstructure:"sync" yaml:"sync"`
	Log    Log    `mapstructure:"log" yaml:"log"`
}

// Store selects the RecordStore backend.
type Store struct {
	Kind        string `mapstructure:"kind" yaml:"kind"`
	URL         string `mapstructure:"url" yaml:"url"`
	Path        string `mapstructure:"path" yaml:"path"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

type Server struct {
	Port         string        `mapstructure:"port" yaml:"port"`
	RequestLimit int64         `mapstructure:"request_limit" yaml:"request_limit"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Heat struct {
	Radius     float64 `mapstructure:"radius" yaml:"radius"`
	Blur       float64 `mapstructure:"blur" yaml:"blur"`
	MaxZoom    float64 `mapstructure:"max_zoom" yaml:"max_zoom"`
	MinOpacity float64 `mapstructure:"min_opacity" yaml:"min_opacity"`
}

type Map struct {
	HeatmapZoomThreshold float64 `mapstructure:"heatmap_zoom_threshold" yaml:"heatmap_zoom_threshold"`
	MinZoom              float64 `mapstructure:"min_zoom" yaml:"min_zoom"`
	MaxZoom              float64 `mapstructure:"max_zoom" yaml:"max_zoom"`
	CenterLat            float64 `mapstructure:"center_lat" yaml:"center_lat"`
	CenterLng            float64 `mapstructure:"center_lng" yaml:"center_lng"`
	Heat                 Heat    `mapstructure:"heat" yaml:"heat"`
}

type Filter struct {
	LegacyHealthFallback bool `mapstructure:"legacy_health_fallback" yaml:"legacy_health_fallback"`
}

// Images bounds uploads. MaxBytes of zero takes the profile default.
type Images struct {
	Profile  string `mapstructure:"profile" yaml:"profile"`
	MaxBytes int    `mapstructure:"max_bytes" yaml:"max_bytes"`
}

type Sync struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SpeciesFallback bool          `mapstructure:"species_fallback" yaml:"species_fallback"`
	RequireAge      bool          `mapstructure:"require_age" yaml:"require_age"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the server profile.
func Default() Config {
	heat := mapview.DefaultHeatOptions()
	return Config{
		Store: Store{Kind: StoreHTTP, URL: "http://localhost:8080/api/arboles", Path: "arboles.json"},
		Server: Server{
			Port:         "8080",
			RequestLimit: 50 << 20,
			Timeout:      60 * time.Second,
		},
		Map: Map{
			HeatmapZoomThreshold: mapview.DefaultHeatmapThreshold,
			MinZoom:              mapview.DefaultMinZoom,
			MaxZoom:              mapview.DefaultMaxZoom,
			CenterLat:            mapview.DefaultCenterLat,
			CenterLng:            mapview.DefaultCenterLng,
			Heat: Heat{
				Radius:     heat.Radius,
				Blur:       heat.Blur,
				MaxZoom:    heat.MaxZoom,
				MinOpacity: heat.MinOpacity,
			},
		},
		Images: Images{Profile: ProfileServer},
		Sync:   Sync{Timeout: 30 * time.Second},
		Log:    Log{Level: "warn", Format: "text"},
	}
}

// Offline returns the profile of the standalone field client: local file
// store, smaller images and the legacy field fallbacks.
func Offline() Config {
	c := Default()
	c.Store.Kind = StoreFile
	c.Images.Profile = ProfileOffline
	c.Filter.LegacyHealthFallback = true
	c.Sync.SpeciesFallback = true
	return c
}

// Load reads configuration. An empty path searches for catastro.yaml in the
// working directory and $HOME/.config/catastro; a missing file is not an
// error. The "profile" key (or CATASTRO_PROFILE) picks the base defaults.
func Load(path string) (Config, error) {
	return LoadFlags(path, nil)
}

// FlagKeys maps command line flag names to the keys they override.
var FlagKeys = map[string]string{
	"profile":      "profile",
	"store":        "store.kind",
	"file":         "store.path",
	"url":          "store.url",
	"database-url": "store.database_url",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// LoadFlags is Load with command line overrides. Flags of fs named in
// FlagKeys win over the file and the environment when set.
func LoadFlags(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}
	v.SetEnvPrefix("CATASTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catastro")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/catastro")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	base := Default()
	if v.GetString("profile") == ProfileOffline {
		base = Offline()
	}
	setDefaults(v, base)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment variables can override
// values that are absent from the file.
func setDefaults(v *viper.Viper, c Config) {
	defaults := map[string]any{
		"store.kind":                    c.Store.Kind,
		"store.url":                     c.Store.URL,
		"store.path":                    c.Store.Path,
		"store.database_url":            c.Store.DatabaseURL,
		"server.port":                   c.Server.Port,
		"server.request_limit":          c.Server.RequestLimit,
		"server.timeout":                c.Server.Timeout,
		"map.heatmap_zoom_threshold":    c.Map.HeatmapZoomThreshold,
		"map.min_zoom":                  c.Map.MinZoom,
		"map.max_zoom":                  c.Map.MaxZoom,
		"map.center_lat":                c.Map.CenterLat,
		"map.center_lng":                c.Map.CenterLng,
		"map.heat.radius":               c.Map.Heat.Radius,
		"map.heat.blur":                 c.Map.Heat.Blur,
		"map.heat.max_zoom":             c.Map.Heat.MaxZoom,
		"map.heat.min_opacity":          c.Map.Heat.MinOpacity,
		"filter.legacy_health_fallback": c.Filter.LegacyHealthFallback,
		"images.profile":                c.Images.Profile,
		"images.max_bytes":              c.Images.MaxBytes,
		"sync.timeout":                  c.Sync.Timeout,
		"sync.species_fallback":         c.Sync.SpeciesFallback,
		"sync.require_age":              c.Sync.RequireAge,
		"log.level":                     c.Log.Level,
		"log.format":                    c.Log.Format,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreHTTP, StoreFile, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("store.kind %q is not one of http, file, sqlite, postgres", c.Store.Kind)
	}
	switch c.Images.Profile {
	case ProfileServer, ProfileOffline:
	default:
		return fmt.Errorf("images.profile %q is not one of server, offline", c.Images.Profile)
	}
	if c.Images.MaxBytes < 0 {
		return errors.New("images.max_bytes must not be negative")
	}
	if c.Map.MinZoom > c.Map.MaxZoom {
		return errors.New("map.min_zoom is greater than map.max_zoom")
	}
	return nil
}

// MaxImageBytes resolves the image bound for the active profile.
func (i Images) MaxImageBytes() int {
	if i.MaxBytes > 0 {
		return i.MaxBytes
	}
	if i.Profile == ProfileOffline {
		return OfflineMaxImageBytes
	}
	return ServerMaxImageBytes
}

// Rules returns the validation rules for record submission.
func (c Config) Rules() trees.Rules {
	return trees.Rules{MaxImageBytes: c.Images.MaxImageBytes(), RequireAge: c.Sync.RequireAge}
}

// MapSettings returns the layer settings for mapview.Build.
func (c Config) MapSettings() mapview.Settings {
	return mapview.Settings{
		Threshold:    c.Map.HeatmapZoomThreshold,
		LegacyHealth: c.Filter.LegacyHealthFallback,
		Heat: mapview.HeatOptions{
			Radius:     c.Map.Heat.Radius,
			Blur:       c.Map.Heat.Blur,
			MaxZoom:    c.Map.Heat.MaxZoom,
			MinOpacity: c.Map.Heat.MinOpacity,
		},
	}
}
