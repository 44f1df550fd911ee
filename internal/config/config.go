// Package config provides configuration management for the Sentinel pipeline.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/paulmach/orb"

	"github.com/rkm/sentinel-pipeline/internal/raster"
	"github.com/rkm/sentinel-pipeline/pkg/footprint"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	CDSE    CDSEConfig    `envPrefix:"CDSE_"`
	Search  SearchConfig  `envPrefix:"SEARCH_"`
	Storage StorageConfig `envPrefix:"STORAGE_"`
	SAR     SARConfig     `envPrefix:"SAR_"`
	Optical OpticalConfig `envPrefix:"OPTICAL_"`
	Vis     VisConfig     `envPrefix:"VIS_"`
	Publish PublishConfig `envPrefix:"PUBLISH_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// CDSEConfig contains Copernicus Data Space Ecosystem client configuration.
type CDSEConfig struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD,unset"`

	AuthURL     string `env:"AUTH_URL" envDefault:"https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"`
	ClientID    string `env:"CLIENT_ID" envDefault:"cdse-public"`
	CatalogURL  string `env:"CATALOG_URL" envDefault:"https://catalogue.dataspace.copernicus.eu/odata/v1"`
	DownloadURL string `env:"DOWNLOAD_URL" envDefault:"https://zipper.dataspace.copernicus.eu/odata/v1"`

	Timeout           time.Duration `env:"TIMEOUT" envDefault:"60s"`
	DownloadTimeout   time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"2h"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"2"`
	ShowProgress      bool          `env:"SHOW_PROGRESS" envDefault:"true"`
}

// SearchConfig contains the product search window.
type SearchConfig struct {
	// AOIBBox is [west, south, east, north] in degrees.
	AOIBBox []float64 `env:"AOI_BBOX" envDefault:"78.30,17.20,78.70,17.60" envSeparator:","`
	Start   time.Time `env:"START" envDefault:"2025-10-15T00:00:00Z"`
	End     time.Time `env:"END" envDefault:"2025-10-27T00:00:00Z"`

	S1ProductType string `env:"S1_PRODUCT_TYPE" envDefault:"GRD"`
	S2ProductType string `env:"S2_PRODUCT_TYPE" envDefault:"S2MSI2A"`

	MaxResults     int     `env:"MAX_RESULTS" envDefault:"100"`
	MinAOICoverage float64 `env:"MIN_AOI_COVERAGE" envDefault:"0"`
}

// StorageConfig contains local directories.
type StorageConfig struct {
	DataDir   string `env:"DATA_DIR" envDefault:"data"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"output"`
}

// SARConfig contains Sentinel-1 processing parameters.
type SARConfig struct {
	Polarization string `env:"POLARIZATION" envDefault:"vh"`

	WindowX    int `env:"WINDOW_X" envDefault:"0"`
	WindowY    int `env:"WINDOW_Y" envDefault:"0"`
	WindowSize int `env:"WINDOW_SIZE" envDefault:"4000"`

	LinearScale float64 `env:"LINEAR_SCALE" envDefault:"10000"`
	LinearFloor float64 `env:"LINEAR_FLOOR" envDefault:"1e-10"`
	DBMin       float64 `env:"DB_MIN" envDefault:"-40"`
	DBMax       float64 `env:"DB_MAX" envDefault:"5"`

	FilterSize int `env:"FILTER_SIZE" envDefault:"5"`

	TextureWindow   int `env:"TEXTURE_WINDOW" envDefault:"7"`
	TextureLevels   int `env:"TEXTURE_LEVELS" envDefault:"64"`
	TextureDistance int `env:"TEXTURE_DISTANCE" envDefault:"1"`

	PatchX    int `env:"PATCH_X" envDefault:"1000"`
	PatchY    int `env:"PATCH_Y" envDefault:"1000"`
	PatchSize int `env:"PATCH_SIZE" envDefault:"200"`
	// PatchLevels quantizes the patch summary independently of the
	// per-pixel texture rasters.
	PatchLevels int `env:"PATCH_LEVELS" envDefault:"256"`
}

// Window returns the read window.
func (s *SARConfig) Window() raster.Window {
	return raster.Square(s.WindowX, s.WindowY, s.WindowSize)
}

// Patch returns the texture patch, relative to the read window.
func (s *SARConfig) Patch() raster.Window {
	return raster.Square(s.PatchX, s.PatchY, s.PatchSize)
}

// OpticalConfig contains Sentinel-2 processing parameters.
type OpticalConfig struct {
	WindowX    int `env:"WINDOW_X" envDefault:"0"`
	WindowY    int `env:"WINDOW_Y" envDefault:"0"`
	WindowSize int `env:"WINDOW_SIZE" envDefault:"4000"`

	ReflectanceScale  float64 `env:"REFLECTANCE_SCALE" envDefault:"10000"`
	ReflectanceOffset float64 `env:"REFLECTANCE_OFFSET" envDefault:"0"`

	CloudClasses []int   `env:"CLOUD_CLASSES" envDefault:"3,8,9,10,11" envSeparator:","`
	InvalidValue float64 `env:"INVALID_VALUE" envDefault:"NaN"`
}

// Window returns the read window on the 10 m grid.
func (o *OpticalConfig) Window() raster.Window {
	return raster.Square(o.WindowX, o.WindowY, o.WindowSize)
}

// VisConfig contains rendering configuration.
type VisConfig struct {
	Downscale int `env:"DOWNSCALE" envDefault:"5"`
}

// PublishConfig contains the optional S3-compatible upload target.
type PublishConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:""`
	Bucket    string `env:"BUCKET" envDefault:""`
	Prefix    string `env:"PREFIX" envDefault:""`
	AccessKey string `env:"ACCESS_KEY" envDefault:""`
	SecretKey string `env:"SECRET_KEY,unset" envDefault:""`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	Region    string `env:"REGION" envDefault:""`
}

// Enabled reports whether outputs should be published.
func (p *PublishConfig) Enabled() bool {
	return p.Endpoint != ""
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	// CDSE
	if c.CDSE.Username == "" || c.CDSE.Password == "" {
		return fmt.Errorf("CDSE username and password are required")
	}

	for name, u := range map[string]string{
		"auth":     c.CDSE.AuthURL,
		"catalog":  c.CDSE.CatalogURL,
		"download": c.CDSE.DownloadURL,
	} {
		if u == "" {
			return fmt.Errorf("CDSE %s URL is required", name)
		}
	}

	if c.CDSE.Timeout <= 0 {
		return fmt.Errorf("CDSE timeout must be positive, got %s", c.CDSE.Timeout)
	}

	if c.CDSE.DownloadTimeout <= 0 {
		return fmt.Errorf("CDSE download timeout must be positive, got %s", c.CDSE.DownloadTimeout)
	}

	if c.CDSE.RequestsPerSecond < 0 {
		return fmt.Errorf("CDSE requests per second must not be negative, got %v", c.CDSE.RequestsPerSecond)
	}

	// Search
	if _, err := c.Search.AOI(); err != nil {
		return fmt.Errorf("invalid AOI: %w", err)
	}

	if !c.Search.Start.Before(c.Search.End) {
		return fmt.Errorf("search start (%s) must be before end (%s)",
			c.Search.Start.Format(time.RFC3339), c.Search.End.Format(time.RFC3339))
	}

	if c.Search.S1ProductType == "" || c.Search.S2ProductType == "" {
		return fmt.Errorf("Sentinel-1 and Sentinel-2 product types are required")
	}

	if c.Search.MaxResults < 1 {
		return fmt.Errorf("max results must be at least 1, got %d", c.Search.MaxResults)
	}

	if c.Search.MinAOICoverage < 0 || c.Search.MinAOICoverage > 100 {
		return fmt.Errorf("minimum AOI coverage must be between 0 and 100, got %v", c.Search.MinAOICoverage)
	}

	// Storage
	if c.Storage.DataDir == "" || c.Storage.OutputDir == "" {
		return fmt.Errorf("data and output directories are required")
	}

	if err := c.SAR.validate(); err != nil {
		return err
	}

	if err := c.Optical.validate(); err != nil {
		return err
	}

	if c.Vis.Downscale < 1 {
		return fmt.Errorf("visualization downscale must be at least 1, got %d", c.Vis.Downscale)
	}

	if c.Publish.Enabled() && c.Publish.Bucket == "" {
		return fmt.Errorf("publish bucket is required when a publish endpoint is set")
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// AOI returns the area of interest as a bound.
func (s *SearchConfig) AOI() (orb.Bound, error) {
	p, err := footprint.FromBBox(s.AOIBBox)
	if err != nil {
		return orb.Bound{}, err
	}
	return p.Bound(), nil
}

func (s *SARConfig) validate() error {
	switch strings.ToLower(s.Polarization) {
	case "vv", "vh", "hh", "hv":
	default:
		return fmt.Errorf("SAR polarization must be one of vv, vh, hh, hv, got %q", s.Polarization)
	}

	if s.WindowX < 0 || s.WindowY < 0 || s.WindowSize < 1 {
		return fmt.Errorf("invalid SAR window %v", s.Window())
	}

	if s.LinearScale <= 0 {
		return fmt.Errorf("SAR linear scale must be positive, got %v", s.LinearScale)
	}

	if s.LinearFloor <= 0 {
		return fmt.Errorf("SAR linear floor must be positive, got %v", s.LinearFloor)
	}

	if s.DBMin >= s.DBMax {
		return fmt.Errorf("SAR dB range [%v, %v] is empty", s.DBMin, s.DBMax)
	}

	if s.FilterSize < 3 || s.FilterSize%2 == 0 {
		return fmt.Errorf("SAR filter size must be odd and at least 3, got %d", s.FilterSize)
	}

	if s.TextureWindow < 3 || s.TextureWindow%2 == 0 {
		return fmt.Errorf("SAR texture window must be odd and at least 3, got %d", s.TextureWindow)
	}

	if s.TextureLevels < 2 || s.TextureLevels > 256 {
		return fmt.Errorf("SAR texture levels must be between 2 and 256, got %d", s.TextureLevels)
	}

	if s.TextureDistance < 1 || s.TextureDistance >= s.TextureWindow {
		return fmt.Errorf("SAR texture distance must be between 1 and %d, got %d", s.TextureWindow-1, s.TextureDistance)
	}

	if s.PatchLevels < 2 || s.PatchLevels > 256 {
		return fmt.Errorf("SAR patch levels must be between 2 and 256, got %d", s.PatchLevels)
	}

	if s.PatchX < 0 || s.PatchY < 0 || s.PatchSize < 2 {
		return fmt.Errorf("invalid SAR texture patch %v", s.Patch())
	}

	return nil
}

func (o *OpticalConfig) validate() error {
	if o.WindowX < 0 || o.WindowY < 0 || o.WindowSize < 1 {
		return fmt.Errorf("invalid optical window %v", o.Window())
	}

	if o.ReflectanceScale <= 0 {
		return fmt.Errorf("optical reflectance scale must be positive, got %v", o.ReflectanceScale)
	}

	for _, c := range o.CloudClasses {
		if c < 0 || c > 11 {
			return fmt.Errorf("cloud class %d is not a scene classification value (0-11)", c)
		}
	}

	return nil
}
