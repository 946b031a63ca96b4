// Package store implements the content-addressed chunk store: chunks
// are written once under a hash-derived fan-out path, compressed in
// this store's native format, and never overwritten — re-putting the
// same bytes is a no-op verified against the existing file's checksum.
// Reads detect and decompress gzip(legacy), zstd, and custom-dictionary
// chunks written by other tools alongside this store's own format.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
	"github.com/talaria-db/talaria/internal/hashing"
)

// Store is a single content-addressed chunk store rooted at a
// directory. One Store instance is constructed per base path; it is
// safe for concurrent use from multiple goroutines.
type Store struct {
	root   string
	logger *slog.Logger
}

// Open returns a Store rooted at dir, creating it if necessary.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", dir, err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// pathFor returns the on-disk path for a chunk hash. It does not create
// the fan-out directory; Put does that before writing.
func (s *Store) pathFor(h hashing.Hash) string {
	dir, name := h.FanoutPath()
	return filepath.Join(s.root, "chunks", dir, name)
}

// Put stores data under its content hash and returns the hash. If a
// chunk with that hash already exists, Put reads, decompresses and
// re-hashes the existing file before returning success — silently accepting
// duplicate writes is fine, but a same-hash/different-content
// collision is a checksum violation, not a duplicate.
func (s *Store) Put(ctx context.Context, data []byte) (hashing.Hash, error) {
	select {
	case <-ctx.Done():
		return hashing.Hash{}, ctx.Err()
	default:
	}

	h := hashing.Sum(data)
	path := s.pathFor(h)

	if _, err := os.Stat(path); err == nil {
		if _, err := s.readAndVerify(path, h); err != nil {
			return hashing.Hash{}, err
		}
		return h, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return hashing.Hash{}, talariaerrors.IOTransientError("create chunk directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return hashing.Hash{}, talariaerrors.IOTransientError("create temp chunk file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	compressed := compressChunk(data)
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return hashing.Hash{}, talariaerrors.IOTransientError("write temp chunk file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return hashing.Hash{}, talariaerrors.IOTransientError("sync temp chunk file", err)
	}
	if err := tmp.Close(); err != nil {
		return hashing.Hash{}, talariaerrors.IOTransientError("close temp chunk file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return hashing.Hash{}, talariaerrors.IOTransientError("rename chunk into place", err)
	}

	s.logger.Debug("chunk stored", "hash", h.String(), "bytes", len(data))
	return h, nil
}

// Get retrieves and decompresses the chunk stored under h, verifying
// its checksum before returning.
func (s *Store) Get(ctx context.Context, h hashing.Hash) ([]byte, error) {
	data, _, err := s.GetFormat(ctx, h)
	return data, err
}

// GetFormat retrieves and decompresses the chunk stored under h like
// Get, additionally reporting the storage format it was detected and
// decoded as.
func (s *Store) GetFormat(ctx context.Context, h hashing.Hash) ([]byte, Format, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
	}

	return s.readAndVerify(s.pathFor(h), h)
}

// readAndVerify reads, decompresses, and checksums the chunk at path,
// returning talariaerrors.NotFoundError/CorruptedError/ChecksumMismatchError
// as appropriate.
func (s *Store) readAndVerify(path string, want hashing.Hash) ([]byte, Format, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, talariaerrors.NotFoundError(fmt.Sprintf("chunk %s not found", want), err)
		}
		return nil, 0, talariaerrors.IOTransientError("read chunk file", err)
	}

	data, format, err := decompressChunk(raw)
	if err != nil {
		return nil, format, talariaerrors.CorruptedError(fmt.Sprintf("chunk %s failed to decompress", want), err)
	}

	got := hashing.Sum(data)
	if got != want {
		return nil, format, talariaerrors.ChecksumMismatchError(
			fmt.Sprintf("chunk %s checksum mismatch: got %s", want, got), nil)
	}
	return data, format, nil
}

// Exists reports whether a chunk with hash h is present, without
// reading or verifying its content.
func (s *Store) Exists(h hashing.Hash) bool {
	_, err := os.Stat(s.pathFor(h))
	return err == nil
}

// Delete removes a chunk. Used only by retention/cleanup, never by
// ordinary ingest paths — the store is otherwise write-once.
func (s *Store) Delete(h hashing.Hash) error {
	err := os.Remove(s.pathFor(h))
	if err != nil && !os.IsNotExist(err) {
		return talariaerrors.IOTransientError("delete chunk file", err)
	}
	return nil
}

// Walk calls fn for every chunk hash currently present in the store.
func (s *Store) Walk(fn func(hashing.Hash) error) error {
	chunksDir := filepath.Join(s.root, "chunks")
	entries, err := os.ReadDir(chunksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, dirEnt := range entries {
		if !dirEnt.IsDir() {
			continue
		}
		sub := filepath.Join(chunksDir, dirEnt.Name())
		files, err := os.ReadDir(sub)
		if err != nil {
			return err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			h, err := hashing.ParseHash(dirEnt.Name() + f.Name())
			if err != nil {
				continue // skip stray non-chunk files (e.g. leftover .tmp-*)
			}
			if err := fn(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// Prune deletes every stored chunk whose hash is not present in live.
// Returns the number of chunks removed.
func (s *Store) Prune(live map[hashing.Hash]bool) (int, error) {
	var toDelete []hashing.Hash
	err := s.Walk(func(h hashing.Hash) error {
		if !live[h] {
			toDelete = append(toDelete, h)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, h := range toDelete {
		if err := s.Delete(h); err != nil {
			return 0, err
		}
	}
	s.logger.Info("chunk store pruned", "removed", len(toDelete))
	return len(toDelete), nil
}
