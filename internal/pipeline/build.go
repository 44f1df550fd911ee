package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rkm/sentinel-pipeline/internal/cdse"
	"github.com/rkm/sentinel-pipeline/internal/config"
	"github.com/rkm/sentinel-pipeline/internal/gdalio"
	"github.com/rkm/sentinel-pipeline/internal/ingest"
	"github.com/rkm/sentinel-pipeline/internal/optical"
	"github.com/rkm/sentinel-pipeline/internal/publish"
	"github.com/rkm/sentinel-pipeline/internal/render"
	"github.com/rkm/sentinel-pipeline/internal/sar"
)

// New assembles a driver from the configuration.
func New(cfg *config.Config, logger *slog.Logger, runID string) (*Driver, error) {
	aoi, err := cfg.Search.AOI()
	if err != nil {
		return nil, fmt.Errorf("invalid AOI: %w", err)
	}

	client := cdse.NewClient(cdse.Endpoints{
		Auth:     cfg.CDSE.AuthURL,
		Catalog:  cfg.CDSE.CatalogURL,
		Download: cfg.CDSE.DownloadURL,
	}, cfg.CDSE.Timeout).
		WithLogger(logger).
		WithClientID(cfg.CDSE.ClientID).
		WithRateLimit(cfg.CDSE.RequestsPerSecond).
		WithDownloadTimeout(cfg.CDSE.DownloadTimeout)
	if cfg.CDSE.ShowProgress {
		client = client.WithProgress(os.Stderr)
	}

	ingester := ingest.NewIngester(client, ingest.Options{
		Username:       cfg.CDSE.Username,
		Password:       cfg.CDSE.Password,
		AOI:            aoi,
		Start:          cfg.Search.Start,
		End:            cfg.Search.End,
		S1ProductType:  cfg.Search.S1ProductType,
		S2ProductType:  cfg.Search.S2ProductType,
		MaxResults:     cfg.Search.MaxResults,
		MinAOICoverage: cfg.Search.MinAOICoverage,
		DataDir:        cfg.Storage.DataDir,
	}).WithLogger(logger)

	reader := gdalio.NewReader().WithLogger(logger)

	sarStage := sar.NewProcessor(reader, sar.Options{
		Polarization: cfg.SAR.Polarization,
		Window:       cfg.SAR.Window(),
		LinearScale:  cfg.SAR.LinearScale,
		LinearFloor:  cfg.SAR.LinearFloor,
		DBMin:        cfg.SAR.DBMin,
		DBMax:        cfg.SAR.DBMax,
		FilterSize:   cfg.SAR.FilterSize,
		Texture: sar.TextureOptions{
			Window:   cfg.SAR.TextureWindow,
			Levels:   cfg.SAR.TextureLevels,
			Distance: cfg.SAR.TextureDistance,
		},
		Patch:       cfg.SAR.Patch(),
		PatchLevels: cfg.SAR.PatchLevels,
	}).WithLogger(logger)

	opticalStage := optical.NewProcessor(reader, optical.Options{
		Window:            cfg.Optical.Window(),
		ReflectanceScale:  cfg.Optical.ReflectanceScale,
		ReflectanceOffset: cfg.Optical.ReflectanceOffset,
		CloudClasses:      cfg.Optical.CloudClasses,
		Invalid:           cfg.Optical.InvalidValue,
	}).WithLogger(logger)

	renderer := render.NewRenderer(cfg.Vis.Downscale).WithLogger(logger)

	driver := NewDriver(ingester, sarStage, opticalStage, renderer, cfg.Storage.OutputDir).
		WithLogger(logger).
		WithRunID(runID)

	if cfg.Publish.Enabled() {
		pub, err := publish.New(publish.Config{
			Endpoint:  cfg.Publish.Endpoint,
			Bucket:    cfg.Publish.Bucket,
			Prefix:    cfg.Publish.Prefix,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			UseSSL:    cfg.Publish.UseSSL,
			Region:    cfg.Publish.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		driver = driver.WithPublisher(pub.WithLogger(logger))
	}

	return driver, nil
}
