// Package placement decides where an imported file lands in the target tree.
package placement

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"photons/internal/photons"
)

// maxExifScan bounds how much of a file is read looking for EXIF data.
// Camera raw files keep their IFDs near the start.
const maxExifScan = 8 << 20

// Opener opens a described source file for reading.
type Opener interface {
	Open(path *photons.Path) (io.ReadCloser, error)
}

// CaptureDatePolicy places files by capture date: the EXIF date when the
// file has one, otherwise a date found in the file name, otherwise the
// fallback subfolder. The file name is kept as is.
type CaptureDatePolicy struct {
	opener   Opener
	layout   string
	fallback string
	logger   photons.Logger
}

// NewCaptureDatePolicy returns a policy formatting capture dates with the Go
// time layout (e.g. "2006/2006-01-02"). Forward slashes in layout and
// fallback separate subfolder levels.
func NewCaptureDatePolicy(opener Opener, layout, fallback string, logger photons.Logger) *CaptureDatePolicy {
	return &CaptureDatePolicy{
		opener:   opener,
		layout:   layout,
		fallback: filepath.FromSlash(fallback),
		logger:   logger,
	}
}

func (p *CaptureDatePolicy) PlacementFor(d *photons.Descriptor) photons.Placement {
	placement := photons.Placement{Subfolder: p.fallback, FileName: d.Name()}

	date, source, ok := p.captureDate(d)
	if !ok {
		p.logger.Debug("no capture date, using fallback folder", "path", d.SourcePath(), "folder", p.fallback)
		return placement
	}

	sub := filepath.FromSlash(date.Format(p.layout))
	if !isContained(sub) {
		p.logger.Warn("placement layout produced an unusable folder, using fallback", "folder", sub, "layout", p.layout)
		return placement
	}
	p.logger.Debug("capture date found", "path", d.SourcePath(), "date", date.Format(time.DateOnly), "source", source)
	placement.Subfolder = sub
	return placement
}

func (p *CaptureDatePolicy) captureDate(d *photons.Descriptor) (time.Time, string, bool) {
	t, err := p.exifDate(d.Path())
	if err == nil {
		return t, "exif", true
	}
	p.logger.Debug("no usable exif date", "path", d.SourcePath(), "error", err)

	if t, ok := DateFromFileName(d.Name()); ok {
		return t, "file name", true
	}
	return time.Time{}, "", false
}

// exifDate reads DateTimeOriginal (or DateTime) from the file's EXIF block.
func (p *CaptureDatePolicy) exifDate(path *photons.Path) (t time.Time, err error) {
	f, err := p.opener.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	// goexif panics on some malformed TIFF structures.
	defer func() {
		if r := recover(); r != nil {
			t, err = time.Time{}, fmt.Errorf("decoding exif: %v", r)
		}
	}()

	x, err := exif.Decode(io.LimitReader(f, maxExifScan))
	if err != nil {
		return time.Time{}, err
	}
	t, err = x.DateTime()
	if err != nil {
		return time.Time{}, err
	}
	if t.Year() < 1900 {
		return time.Time{}, fmt.Errorf("implausible exif date %s", t)
	}
	return t, nil
}

// fileNamePatterns recognise dates embedded by common cameras and phones,
// most specific first.
var fileNamePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`DJI_(\d{8})`), "20060102"},           // DJI_20250619224111_0001_D.MP4
	{regexp.MustCompile(`^(\d{8})_C\d+`), "20060102"},         // 20250616_C0416.MP4
	{regexp.MustCompile(`(\d{8})_\d{6}`), "20060102"},         // IMG_20250619_123456.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"}, // 2025-06-19_photo.jpg
}

// DateFromFileName extracts a capture date from a file name.
func DateFromFileName(name string) (time.Time, bool) {
	for _, p := range fileNamePatterns {
		m := p.re.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		if t, err := time.Parse(p.layout, m[1]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isContained reports whether sub is a non-empty relative path that stays inside its root.
func isContained(sub string) bool {
	if sub == "" || filepath.IsAbs(sub) {
		return false
	}
	clean := filepath.Clean(sub)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// Compile-time check that CaptureDatePolicy implements photons.PlacementPolicy
var _ photons.PlacementPolicy = (*CaptureDatePolicy)(nil)
