package ingest

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// Dataset kinds and formats accepted in a manifest.
const (
	KindListedBuildings   = "listed_buildings"
	KindConservationAreas = "conservation_areas"

	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
)

// Manifest describes the reference datasets to load.
type Manifest struct {
	Datasets []Dataset `yaml:"datasets"`

	// dir is the manifest's directory; relative dataset paths resolve
	// against it.
	dir string
}

// Dataset is one source file in the manifest. URL is optional: when set,
// `datasets fetch` mirrors the remote file to Path before loading.
type Dataset struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url,omitempty"`
}

// LoadManifest reads and validates a dataset manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse manifest %s", path)
	}
	if len(m.Datasets) == 0 {
		return nil, eris.Errorf("ingest: manifest %s lists no datasets", path)
	}

	for _, d := range m.Datasets {
		if d.Kind != KindListedBuildings && d.Kind != KindConservationAreas {
			return nil, eris.Errorf("ingest: dataset %q has unknown kind %q", d.Name, d.Kind)
		}
		if d.Format != FormatGeoJSON && d.Format != FormatShapefile {
			return nil, eris.Errorf("ingest: dataset %q has unknown format %q", d.Name, d.Format)
		}
		if d.Kind == KindListedBuildings && d.Format == FormatShapefile {
			return nil, eris.Errorf("ingest: dataset %q: listed buildings are point records, shapefile not supported", d.Name)
		}
		if d.Path == "" {
			return nil, eris.Errorf("ingest: dataset %q has no path", d.Name)
		}
	}

	m.dir = filepath.Dir(path)
	return &m, nil
}

// Resolve returns the dataset path, resolving relative paths against the
// manifest directory.
func (m *Manifest) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}

// Load reads every dataset in the manifest and returns the combined records.
func (m *Manifest) Load(opts Options) ([]model.ListedBuilding, []model.ConservationArea, error) {
	var buildings []model.ListedBuilding
	var areas []model.ConservationArea

	for _, d := range m.Datasets {
		path := m.Resolve(d.Path)

		switch d.Kind {
		case KindListedBuildings:
			recs, stats, err := LoadListedBuildingsGeoJSON(path, opts)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "ingest: dataset %q", d.Name)
			}
			buildings = append(buildings, recs...)
			zap.L().Debug("ingest: dataset loaded",
				zap.String("dataset", d.Name), zap.Int("records", stats.Loaded))

		case KindConservationAreas:
			var (
				recs  []model.ConservationArea
				stats Stats
				err   error
			)
			if d.Format == FormatShapefile {
				recs, stats, err = LoadConservationAreasShapefile(path, opts)
			} else {
				recs, stats, err = LoadConservationAreasGeoJSON(path, opts)
			}
			if err != nil {
				return nil, nil, eris.Wrapf(err, "ingest: dataset %q", d.Name)
			}
			areas = append(areas, recs...)
			zap.L().Debug("ingest: dataset loaded",
				zap.String("dataset", d.Name), zap.Int("records", stats.Loaded))
		}
	}

	dedupeAreaIDs(areas)
	return buildings, areas, nil
}

// dedupeAreaIDs reassigns colliding area IDs. Per-file sequential IDs can
// collide when the manifest lists multiple boundary sources.
func dedupeAreaIDs(areas []model.ConservationArea) {
	seen := make(map[int64]bool, len(areas))
	var max int64
	for _, a := range areas {
		if a.ID > max {
			max = a.ID
		}
	}
	for i := range areas {
		if seen[areas[i].ID] {
			max++
			areas[i].ID = max
		}
		seen[areas[i].ID] = true
	}
}
