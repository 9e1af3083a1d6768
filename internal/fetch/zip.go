package fetch

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZip extracts every file in the archive to destDir and returns the
// extracted paths. Boundary shapefiles ship as zip bundles (.shp + .shx +
// .dbf + .prj), so the whole set is written out.
func ExtractZip(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: open archive %s", zipPath)
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// FindShapefile returns the single .shp path among extracted files.
func FindShapefile(paths []string) (string, error) {
	var shp []string
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".shp") {
			shp = append(shp, p)
		}
	}
	if len(shp) != 1 {
		return "", eris.Errorf("fetch: expected exactly 1 .shp in archive, got %d", len(shp))
	}
	return shp[0], nil
}

// extractEntry writes one archive member under destDir, or creates the
// directory for directory entries (returning an empty path).
func extractEntry(f *zip.File, destDir string) (string, error) {
	// Zip slip guard.
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("fetch: illegal archive path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "fetch: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "fetch: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "fetch: open archive entry")
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create file")
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "fetch: write file")
	}
	return destPath, nil
}
