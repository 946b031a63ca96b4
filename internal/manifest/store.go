package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

const manifestFileName = "manifest.tal"
const currentAlias = "current"

// Store is the version directory layout rooted at
// <base>/versions/<source>/<dataset>/<version_id>/, with a symbolic
// "current" alias file per (source, dataset) pair and an in-memory
// cache of recently read manifests.
type Store struct {
	base          string
	retentionKeep int
	logger        *slog.Logger
	cache         *lru.Cache[string, *Manifest]
}

// Open returns a Store rooted at base, creating it if necessary.
func Open(base string, retentionKeep int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if retentionKeep <= 0 {
		retentionKeep = 3
	}
	if err := os.MkdirAll(filepath.Join(base, "versions"), 0o755); err != nil {
		return nil, talariaerrors.IOTransientError("create version store root", err)
	}
	cache, err := lru.New[string, *Manifest](64)
	if err != nil {
		return nil, err
	}
	return &Store{base: base, retentionKeep: retentionKeep, logger: logger, cache: cache}, nil
}

func (s *Store) datasetDir(source, dataset string) string {
	return filepath.Join(s.base, "versions", source, dataset)
}

func (s *Store) versionDir(source, dataset, versionID string) string {
	return filepath.Join(s.datasetDir(source, dataset), versionID)
}

func (s *Store) aliasPath(source, dataset, alias string) string {
	return filepath.Join(s.datasetDir(source, dataset), "."+alias+".alias")
}

func (s *Store) cacheKey(source, dataset, versionID string) string {
	return source + "/" + dataset + "@" + versionID
}

// CanonicalVersionID formats t as the default version id used when
// CreateVersion is called without one.
func CanonicalVersionID(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}

// CreateVersion writes m's manifest into a fresh version directory,
// updates the "current" alias, and enforces the retention policy.
// Returns the created Version record.
func (s *Store) CreateVersion(source, dataset string, m *Manifest) (*Version, error) {
	versionID := m.Version
	if versionID == "" {
		versionID = CanonicalVersionID(time.Now())
		m.Version = versionID
	}

	dir := s.versionDir(source, dataset, versionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, talariaerrors.IOTransientError("create version directory", err)
	}

	encoded, err := Encode(m)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	manifestPath := filepath.Join(dir, manifestFileName)
	if err := writeAtomic(manifestPath, encoded); err != nil {
		return nil, err
	}

	if err := s.setAlias(source, dataset, currentAlias, versionID); err != nil {
		return nil, err
	}

	s.cache.Add(s.cacheKey(source, dataset, versionID), m)

	v := &Version{
		ID:           versionID,
		CreatedAt:    m.CreatedAt,
		ManifestPath: manifestPath,
		Size:         int64(len(encoded)),
		ChunkCount:   len(m.ChunkIndex),
		EntryCount:   len(m.ChunkIndex),
	}

	s.logger.Info("version created", "source", source, "dataset", dataset, "version", versionID)

	if err := s.enforceRetention(source, dataset); err != nil {
		s.logger.Warn("retention cleanup failed", "error", err)
	}

	return v, nil
}

func (s *Store) setAlias(source, dataset, alias, versionID string) error {
	return writeAtomic(s.aliasPath(source, dataset, alias), []byte(versionID))
}

// ResolveAlias resolves an alias name (typically "current") to the
// version it currently points at.
func (s *Store) ResolveAlias(source, dataset, name string) (string, error) {
	data, err := os.ReadFile(s.aliasPath(source, dataset, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", talariaerrors.NotFoundError(fmt.Sprintf("alias %q not set for %s/%s", name, source, dataset), err)
		}
		return "", talariaerrors.IOTransientError("read alias", err)
	}
	return string(data), nil
}

// ListOpts filters and orders List results.
type ListOpts struct {
	TaxonomyOnly bool
}

// List returns every version id under (source, dataset), newest-first
// by directory name (version ids are lexicographically time-ordered).
func (s *Store) List(source, dataset string, opts ListOpts) ([]string, error) {
	entries, err := os.ReadDir(s.datasetDir(source, dataset))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, talariaerrors.IOTransientError("list versions", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	if !opts.TaxonomyOnly {
		return ids, nil
	}

	var filtered []string
	for _, id := range ids {
		m, err := s.Load(source, dataset, id)
		if err != nil {
			continue
		}
		if m.TaxonomyVersion != "" {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

// Load reads and decodes the manifest for a specific version id,
// consulting the in-memory cache first.
func (s *Store) Load(source, dataset, versionID string) (*Manifest, error) {
	key := s.cacheKey(source, dataset, versionID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	path := filepath.Join(s.versionDir(source, dataset, versionID), manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, talariaerrors.NotFoundError(fmt.Sprintf("version %s not found", versionID), err)
		}
		return nil, talariaerrors.IOTransientError("read manifest", err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, talariaerrors.CorruptedError("decode manifest", err)
	}
	s.cache.Add(key, m)
	return m, nil
}

// Delete removes a version directory and clears any alias that
// points at it. Chunk garbage collection is handled separately.
func (s *Store) Delete(source, dataset, versionID string) error {
	dir := s.versionDir(source, dataset, versionID)
	if err := os.RemoveAll(dir); err != nil {
		return talariaerrors.IOTransientError("delete version directory", err)
	}

	if current, err := s.ResolveAlias(source, dataset, currentAlias); err == nil && current == versionID {
		_ = os.Remove(s.aliasPath(source, dataset, currentAlias))
	}

	s.cache.Remove(s.cacheKey(source, dataset, versionID))
	return nil
}

// Cleanup deletes all but the newest keepN versions of (source,
// dataset) and returns the deleted id list. It is idempotent: calling
// it again with nothing to prune is a no-op.
func (s *Store) Cleanup(source, dataset string, keepN int) ([]string, error) {
	ids, err := s.List(source, dataset, ListOpts{})
	if err != nil {
		return nil, err
	}
	if len(ids) <= keepN {
		return nil, nil
	}

	toDelete := ids[keepN:]
	var deleted []string
	for _, id := range toDelete {
		if err := s.Delete(source, dataset, id); err != nil {
			return deleted, err
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (s *Store) enforceRetention(source, dataset string) error {
	deleted, err := s.Cleanup(source, dataset, s.retentionKeep)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info("retention cleanup", "source", source, "dataset", dataset, "deleted", deleted)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return talariaerrors.IOTransientError("create parent directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return talariaerrors.IOTransientError("create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return talariaerrors.IOTransientError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return talariaerrors.IOTransientError("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return talariaerrors.IOTransientError("close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return talariaerrors.IOTransientError("rename into place", err)
	}
	return nil
}
