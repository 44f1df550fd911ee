package config

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("CDSE_USERNAME", "user@example.com")
	t.Setenv("CDSE_PASSWORD", "secret")
}

func TestLoad(t *testing.T) {
	setCredentials(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Test defaults
	if cfg.CDSE.ClientID != "cdse-public" {
		t.Errorf("expected default client id cdse-public, got %s", cfg.CDSE.ClientID)
	}

	if cfg.CDSE.CatalogURL != "https://catalogue.dataspace.copernicus.eu/odata/v1" {
		t.Errorf("expected default catalog URL, got %s", cfg.CDSE.CatalogURL)
	}

	if cfg.CDSE.DownloadTimeout != 2*time.Hour {
		t.Errorf("expected default download timeout 2h, got %s", cfg.CDSE.DownloadTimeout)
	}

	aoi, err := cfg.Search.AOI()
	if err != nil {
		t.Fatalf("AOI() failed: %v", err)
	}
	want := orb.Bound{Min: orb.Point{78.30, 17.20}, Max: orb.Point{78.70, 17.60}}
	if aoi != want {
		t.Errorf("expected default AOI %v, got %v", want, aoi)
	}

	if !cfg.Search.Start.Equal(time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected default search start 2025-10-15, got %s", cfg.Search.Start)
	}

	if cfg.SAR.Window().Width != 4000 || cfg.SAR.Polarization != "vh" {
		t.Errorf("expected default SAR window 4000 on vh, got %v on %s", cfg.SAR.Window(), cfg.SAR.Polarization)
	}

	if cfg.SAR.PatchLevels != 256 || cfg.SAR.TextureLevels != 64 {
		t.Errorf("expected patch levels 256 and texture levels 64, got %d and %d", cfg.SAR.PatchLevels, cfg.SAR.TextureLevels)
	}

	if cfg.SAR.FilterSize != 5 {
		t.Errorf("expected default filter size 5, got %d", cfg.SAR.FilterSize)
	}

	if len(cfg.Optical.CloudClasses) != 5 || cfg.Optical.CloudClasses[0] != 3 {
		t.Errorf("expected default cloud classes [3 8 9 10 11], got %v", cfg.Optical.CloudClasses)
	}

	if !math.IsNaN(cfg.Optical.InvalidValue) {
		t.Errorf("expected default invalid value NaN, got %v", cfg.Optical.InvalidValue)
	}

	if cfg.Publish.Enabled() {
		t.Error("publishing should be disabled by default")
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("expected default logging info/text, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("CDSE_USERNAME", "user@example.com")
	t.Setenv("CDSE_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Error("Load() should fail without CDSE_PASSWORD")
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	setCredentials(t)
	t.Setenv("CDSE_TIMEOUT", "15s")
	t.Setenv("SEARCH_AOI_BBOX", "10.0,45.0,10.5,45.5")
	t.Setenv("SEARCH_START", "2024-06-01T00:00:00Z")
	t.Setenv("SEARCH_END", "2024-06-10T00:00:00Z")
	t.Setenv("SEARCH_MIN_AOI_COVERAGE", "50")
	t.Setenv("SAR_POLARIZATION", "VV")
	t.Setenv("SAR_PATCH_SIZE", "64")
	t.Setenv("OPTICAL_CLOUD_CLASSES", "8,9")
	t.Setenv("OPTICAL_INVALID_VALUE", "-9999")
	t.Setenv("PUBLISH_ENDPOINT", "http://localhost:9000")
	t.Setenv("PUBLISH_BUCKET", "outputs")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CDSE.Timeout != 15*time.Second {
		t.Errorf("expected CDSE timeout 15s, got %s", cfg.CDSE.Timeout)
	}

	aoi, _ := cfg.Search.AOI()
	if aoi.Min[0] != 10.0 || aoi.Max[1] != 45.5 {
		t.Errorf("expected custom AOI, got %v", aoi)
	}

	if cfg.Search.End.Sub(cfg.Search.Start) != 9*24*time.Hour {
		t.Errorf("expected a nine day search window, got %s", cfg.Search.End.Sub(cfg.Search.Start))
	}

	if cfg.SAR.Patch().Width != 64 {
		t.Errorf("expected patch size 64, got %v", cfg.SAR.Patch())
	}

	if len(cfg.Optical.CloudClasses) != 2 {
		t.Errorf("expected 2 cloud classes, got %v", cfg.Optical.CloudClasses)
	}

	if cfg.Optical.InvalidValue != -9999 {
		t.Errorf("expected invalid value -9999, got %v", cfg.Optical.InvalidValue)
	}

	if !cfg.Publish.Enabled() || cfg.Publish.Bucket != "outputs" {
		t.Errorf("expected publishing to outputs, got %+v", cfg.Publish)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	setCredentials(t)
	base, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing password", func(c *Config) { c.CDSE.Password = "" }, true},
		{"empty catalog URL", func(c *Config) { c.CDSE.CatalogURL = "" }, true},
		{"zero timeout", func(c *Config) { c.CDSE.Timeout = 0 }, true},
		{"negative rate", func(c *Config) { c.CDSE.RequestsPerSecond = -1 }, true},
		{"short bbox", func(c *Config) { c.Search.AOIBBox = []float64{1, 2, 3} }, true},
		{"inverted bbox", func(c *Config) { c.Search.AOIBBox = []float64{79, 17, 78, 18} }, true},
		{"end before start", func(c *Config) { c.Search.End = c.Search.Start.Add(-time.Hour) }, true},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }, true},
		{"coverage above 100", func(c *Config) { c.Search.MinAOICoverage = 150 }, true},
		{"empty output dir", func(c *Config) { c.Storage.OutputDir = "" }, true},
		{"bad polarization", func(c *Config) { c.SAR.Polarization = "xx" }, true},
		{"upper case polarization", func(c *Config) { c.SAR.Polarization = "VH" }, false},
		{"negative window", func(c *Config) { c.SAR.WindowX = -1 }, true},
		{"even filter", func(c *Config) { c.SAR.FilterSize = 4 }, true},
		{"empty dB range", func(c *Config) { c.SAR.DBMin = 5 }, true},
		{"too many levels", func(c *Config) { c.SAR.TextureLevels = 512 }, true},
		{"distance beyond window", func(c *Config) { c.SAR.TextureDistance = 7 }, true},
		{"too many patch levels", func(c *Config) { c.SAR.PatchLevels = 1024 }, true},
		{"zero reflectance scale", func(c *Config) { c.Optical.ReflectanceScale = 0 }, true},
		{"unknown cloud class", func(c *Config) { c.Optical.CloudClasses = []int{12} }, true},
		{"zero downscale", func(c *Config) { c.Vis.Downscale = 0 }, true},
		{"publish without bucket", func(c *Config) { c.Publish.Endpoint = "http://minio:9000" }, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			cfg.Search.AOIBBox = append([]float64(nil), base.Search.AOIBBox...)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
