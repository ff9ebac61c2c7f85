package model

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ModelVersion tags scores and the artifact manifest.
const ModelVersion = "kestrel-1.0"

// Artifact file names within the artifact directory. The three gob files are
// the durable output of a training run and must be produced and loaded as a
// set; the manifest ties them together.
const (
	ScalerFile   = "scaler.gob"
	ForestFile   = "forest.gob"
	FeaturesFile = "features.gob"
	ManifestFile = "manifest.json"
)

// ErrArtifactMissing indicates an absent artifact file. This is a fatal
// configuration error: serving must not start without a complete set.
var ErrArtifactMissing = errors.New("artifact missing")

// Manifest ties the artifact triple together. The original pipeline had no
// such tag; it is written alongside the triple and checked at load, and a
// triple without one still loads.
type Manifest struct {
	SchemaVersion int       `json:"schemaVersion"`
	ModelVersion  string    `json:"modelVersion"`
	FeatureCount  int       `json:"featureCount"`
	Trees         int       `json:"trees"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Artifacts is the trained state of the scoring pipeline: fitted scaler,
// fitted classifier, and the exact ordered feature-name list. Immutable
// after load; safe for concurrent use.
type Artifacts struct {
	Scaler       *Scaler
	Forest       *Forest
	FeatureNames []string
	Manifest     *Manifest
}

// Save writes the artifact set to dir, creating it if needed.
func (a *Artifacts) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := writeGob(filepath.Join(dir, ScalerFile), a.Scaler); err != nil {
		return err
	}
	if err := writeGob(filepath.Join(dir, ForestFile), a.Forest); err != nil {
		return err
	}
	if err := writeGob(filepath.Join(dir, FeaturesFile), a.FeatureNames); err != nil {
		return err
	}

	manifest := a.Manifest
	if manifest == nil {
		manifest = &Manifest{
			SchemaVersion: 1,
			ModelVersion:  ModelVersion,
			FeatureCount:  len(a.FeatureNames),
			CreatedAt:     time.Now().UTC(),
		}
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Load reads a complete artifact set from dir. Any missing gob file yields
// ErrArtifactMissing. A manifest, when present, must agree with the feature
// list; a missing manifest is tolerated for triples written before it existed.
func Load(dir string) (*Artifacts, error) {
	a := &Artifacts{}

	if err := readGob(filepath.Join(dir, ScalerFile), &a.Scaler); err != nil {
		return nil, err
	}
	if err := readGob(filepath.Join(dir, ForestFile), &a.Forest); err != nil {
		return nil, err
	}
	if err := readGob(filepath.Join(dir, FeaturesFile), &a.FeatureNames); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(dir, ManifestFile)
	if data, err := os.ReadFile(manifestPath); err == nil {
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
		}
		if m.FeatureCount != len(a.FeatureNames) {
			return nil, fmt.Errorf("manifest declares %d features but feature list has %d: artifact set is inconsistent", m.FeatureCount, len(a.FeatureNames))
		}
		a.Manifest = &m
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if len(a.Scaler.Mean) != len(a.FeatureNames) {
		return nil, fmt.Errorf("scaler fitted on %d features but feature list has %d: artifact set is inconsistent", len(a.Scaler.Mean), len(a.FeatureNames))
	}

	return a, nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s (run the train command first)", ErrArtifactMissing, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// LazyArtifacts loads an artifact set once, on first use. Concurrent first
// access performs a single load; the result is reused for the process
// lifetime.
type LazyArtifacts struct {
	dir  string
	once sync.Once
	a    *Artifacts
	err  error
}

// NewLazy returns a lazy loader for the artifact set in dir.
func NewLazy(dir string) *LazyArtifacts {
	return &LazyArtifacts{dir: dir}
}

// Get returns the loaded artifact set, loading it on first call.
func (l *LazyArtifacts) Get() (*Artifacts, error) {
	l.once.Do(func() {
		l.a, l.err = Load(l.dir)
	})
	return l.a, l.err
}
