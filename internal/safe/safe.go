// Package safe locates band files inside Sentinel SAFE products, either
// zipped as delivered by the download service or already extracted.
package safe

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// ErrMissingBand is returned when no file in the product matches a band pattern.
var ErrMissingBand = errors.New("band not found in product")

// S1Measurement returns the pattern of the GRD measurement for a polarization.
func S1Measurement(polarization string) string {
	return "*S1*.SAFE/measurement/*" + strings.ToLower(polarization) + "*.tif*"
}

// S2Band returns the pattern of an L2A band image at a resolution,
// e.g. S2Band("R10m", "B04_10m").
func S2Band(resolution, band string) string {
	return "*S2*.SAFE/GRANULE/*/IMG_DATA/" + resolution + "/*" + band + ".jp2"
}

// Product is the listing of a SAFE product.
type Product struct {
	// Path is the zip file or the directory holding the .SAFE folder.
	Path    string
	Entries []string
	zipped  bool
}

// Open lists the files of the product at p.
func Open(p string) (*Product, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
	}

	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open product: %w", err)
	}

	prod := &Product{Path: abs}
	if st.IsDir() {
		err = prod.listDir()
	} else {
		prod.zipped = true
		err = prod.listZip()
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(prod.Entries)
	return prod, nil
}

func (p *Product) listZip() error {
	r, err := zip.OpenReader(p.Path)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", p.Path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		p.Entries = append(p.Entries, strings.TrimPrefix(f.Name, "./"))
	}
	return nil
}

func (p *Product) listDir() error {
	return filepath.WalkDir(p.Path, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.Path, name)
		if err != nil {
			return err
		}
		p.Entries = append(p.Entries, filepath.ToSlash(rel))
		return nil
	})
}

// Name returns the name of the .SAFE folder, or the base name of the
// product path when the listing holds none.
func (p *Product) Name() string {
	for _, e := range p.Entries {
		root, _, _ := strings.Cut(e, "/")
		if strings.HasSuffix(root, ".SAFE") {
			return strings.TrimSuffix(root, ".SAFE")
		}
	}
	return strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
}

// Find returns the first entry, in lexical order, matching pattern.
func (p *Product) Find(pattern string) (string, error) {
	for _, e := range p.Entries {
		ok, err := path.Match(pattern, e)
		if err != nil {
			return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: no entry matches %s in %s", ErrMissingBand, pattern, filepath.Base(p.Path))
}

// RasterPath returns a path to entry that GDAL can open.
func (p *Product) RasterPath(entry string) string {
	if p.zipped {
		return "/vsizip/" + filepath.ToSlash(p.Path) + "/" + entry
	}
	return filepath.Join(p.Path, filepath.FromSlash(entry))
}

// Locate resolves every named pattern to a raster path. All missing bands
// are reported together.
func (p *Product) Locate(patterns map[string]string) (map[string]string, error) {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(patterns))
	var errs error
	for _, name := range names {
		entry, err := p.Find(patterns[name])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out[name] = p.RasterPath(entry)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}
