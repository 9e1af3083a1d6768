package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/ingest"
)

// MirrorResult reports one dataset's mirror outcome.
type MirrorResult struct {
	Name    string
	Updated bool
	Bytes   int64
}

// Mirror downloads manifest datasets that declare a URL.
type Mirror struct {
	downloader Downloader
}

// NewMirror creates a Mirror over a downloader.
func NewMirror(d Downloader) *Mirror {
	return &Mirror{downloader: d}
}

// Sync mirrors every dataset with a URL to its manifest path. Datasets whose
// remote ETag matches the last fetch are skipped. Datasets without a URL are
// skipped entirely; they are maintained by hand.
func (m *Mirror) Sync(ctx context.Context, manifest *ingest.Manifest) ([]MirrorResult, error) {
	var results []MirrorResult

	for _, d := range manifest.Datasets {
		if d.URL == "" {
			continue
		}

		res, err := m.syncDataset(ctx, manifest, d)
		if err != nil {
			return results, eris.Wrapf(err, "fetch: dataset %q", d.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *Mirror) syncDataset(ctx context.Context, manifest *ingest.Manifest, d ingest.Dataset) (MirrorResult, error) {
	target := manifest.Resolve(d.Path)
	etagPath := target + ".etag"

	etag := readETag(etagPath)
	body, newETag, changed, err := m.downloader.DownloadIfChanged(ctx, d.URL, etag)
	if err != nil {
		return MirrorResult{}, err
	}
	if !changed {
		zap.L().Info("fetch: dataset unchanged", zap.String("dataset", d.Name))
		return MirrorResult{Name: d.Name}, nil
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return MirrorResult{}, eris.Wrap(err, "create dataset directory")
	}

	var written int64
	if isZipURL(d.URL) {
		written, err = m.extractArchive(body, target)
	} else {
		written, err = writeFile(body, target)
	}
	if err != nil {
		return MirrorResult{}, err
	}

	if newETag != "" {
		if err := os.WriteFile(etagPath, []byte(newETag), 0o644); err != nil {
			zap.L().Warn("fetch: failed to save etag", zap.String("dataset", d.Name), zap.Error(err))
		}
	}

	zap.L().Info("fetch: dataset mirrored",
		zap.String("dataset", d.Name), zap.Int64("bytes", written))
	return MirrorResult{Name: d.Name, Updated: true, Bytes: written}, nil
}

// extractArchive stages the zip body to a temp file, extracts the bundle next
// to the target, and verifies the target file came out of the archive.
func (m *Mirror) extractArchive(body io.Reader, target string) (int64, error) {
	tmp, err := os.CreateTemp("", "heritage-dataset-*.zip")
	if err != nil {
		return 0, eris.Wrap(err, "create temp archive")
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, eris.Wrap(err, "stage archive")
	}

	extracted, err := ExtractZip(tmp.Name(), filepath.Dir(target))
	if err != nil {
		return 0, err
	}

	for _, p := range extracted {
		if filepath.Clean(p) == filepath.Clean(target) {
			return written, nil
		}
	}
	return 0, eris.Errorf("archive did not contain %s", filepath.Base(target))
}

func writeFile(body io.Reader, target string) (int64, error) {
	file, err := os.Create(target)
	if err != nil {
		return 0, eris.Wrapf(err, "create %s", target)
	}
	defer file.Close()

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrapf(err, "write %s", target)
	}
	return n, nil
}

func readETag(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func isZipURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(filepath.Ext(u.Path), ".zip")
}
