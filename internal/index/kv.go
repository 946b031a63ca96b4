// Package index provides the embedded ordered key-value layer backing
// accession, taxonomy, and source lookups, plus a bloom filter used to
// short-circuit existence checks ahead of a disk read.
package index

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
	"github.com/talaria-db/talaria/internal/hashing"
)

var (
	bucketAccession = []byte("by_accession")
	bucketTaxon     = []byte("by_taxon")
	bucketDatabase  = []byte("by_database")
	bucketSeen      = []byte("seen_hashes")
)

// Index is the embedded ordered KV store mapping accessions, taxon
// IDs, and source database names to the content hashes of the
// sequence chunks that contain them. It is backed by a single bbolt
// file and guarded by a bloom filter sized for the expected sequence
// count, so that negative lookups for absent sequences almost never
// need to touch disk.
type Index struct {
	db        *bbolt.DB
	bloom     *BloomFilter
	streaming bool
}

// Open opens (creating if necessary) the bbolt database at path and
// builds a bloom filter sized for expectedItems entries at the given
// false-positive rate.
func Open(path string, expectedItems uint64, falsePositiveRate float64) (*Index, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, talariaerrors.IOTransientError("open index database", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAccession, bucketTaxon, bucketDatabase, bucketSeen} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, talariaerrors.CorruptedError("initialize index buckets", err)
	}

	idx := &Index{db: db, bloom: NewBloomFilter(expectedItems, falsePositiveRate)}
	if err := idx.rebuildBloom(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// rebuildBloom populates the in-memory bloom filter from the
// persisted seen-hash bucket, run once at open since bbolt holds no
// filter of its own.
func (idx *Index) rebuildBloom() error {
	return idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSeen)
		return b.ForEach(func(k, v []byte) error {
			h, err := hashing.ParseHash(string(k))
			if err != nil {
				return nil
			}
			idx.bloom.Insert(h)
			return nil
		})
	})
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// SetStreamingMode enables or disables streaming ingest mode. While
// enabled, Put* calls skip the accession/taxon/database buckets and
// touch only the bloom filter (and its seen-hash persistence) — a
// memory-saving mode for initial bulk ingest, where the full lookup
// index can be built in a second pass once the bulk of the data is
// already chunked and stored.
func (idx *Index) SetStreamingMode(enabled bool) {
	idx.streaming = enabled
}

// PutAccession records that accession maps to the chunk hash.
func (idx *Index) PutAccession(accession string, h hashing.Hash) error {
	return idx.put(bucketAccession, []byte(accession), h)
}

// GetAccession returns the chunk hash stored for accession.
func (idx *Index) GetAccession(accession string) (hashing.Hash, bool, error) {
	return idx.get(bucketAccession, []byte(accession))
}

// PutTaxon records that taxon ID maps to the chunk hash. Multiple
// chunks may share a taxon, so the key is taxon ID concatenated with
// the chunk hash, keeping bbolt's ordered iteration grouped by taxon.
func (idx *Index) PutTaxon(taxonID uint32, h hashing.Hash) error {
	return idx.put(bucketTaxon, taxonKey(taxonID, h), h)
}

// TaxonChunks returns every chunk hash recorded under taxonID.
func (idx *Index) TaxonChunks(taxonID uint32) ([]hashing.Hash, error) {
	var out []hashing.Hash
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, taxonID)

	err := idx.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketTaxon).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var h hashing.Hash
			copy(h[:], v)
			out = append(out, h)
		}
		return nil
	})
	return out, err
}

// PutDatabase records that source database name maps to the chunk hash.
func (idx *Index) PutDatabase(name string, h hashing.Hash) error {
	return idx.put(bucketDatabase, databaseKey(name, h), h)
}

// DatabaseChunks returns every chunk hash recorded under a source
// database name.
func (idx *Index) DatabaseChunks(name string) ([]hashing.Hash, error) {
	var out []hashing.Hash
	prefix := append([]byte(name), 0x00)

	err := idx.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketDatabase).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var h hashing.Hash
			copy(h[:], v)
			out = append(out, h)
		}
		return nil
	})
	return out, err
}

// MayContain reports whether h might already be indexed, via the
// bloom filter only; false is a guarantee of absence.
func (idx *Index) MayContain(h hashing.Hash) bool {
	return idx.bloom.MayContain(h)
}

func (idx *Index) put(bucket, key []byte, h hashing.Hash) error {
	if !idx.streaming {
		err := idx.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucket).Put(key, h[:])
		})
		if err != nil {
			return talariaerrors.IOTransientError("write index entry", err)
		}
	}
	idx.bloom.Insert(h)
	return idx.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSeen).Put([]byte(h.String()), []byte{1})
	})
}

func (idx *Index) get(bucket, key []byte) (hashing.Hash, bool, error) {
	var h hashing.Hash
	found := false
	err := idx.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return nil
		}
		found = true
		copy(h[:], v)
		return nil
	})
	if err != nil {
		return hashing.Hash{}, false, talariaerrors.IOTransientError("read index entry", err)
	}
	return h, found, nil
}

func taxonKey(taxonID uint32, h hashing.Hash) []byte {
	key := make([]byte, 4+hashing.Size)
	binary.BigEndian.PutUint32(key, taxonID)
	copy(key[4:], h[:])
	return key
}

func databaseKey(name string, h hashing.Hash) []byte {
	key := make([]byte, 0, len(name)+1+hashing.Size)
	key = append(key, name...)
	key = append(key, 0x00)
	key = append(key, h[:]...)
	return key
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Stats reports per-bucket entry counts, mirroring the summary a
// manifest build step logs after an ingest run.
type Stats struct {
	Accessions int
	Taxa       int
	Databases  int
}

// Stats computes current bucket sizes.
func (idx *Index) Stats() (Stats, error) {
	var s Stats
	err := idx.db.View(func(tx *bbolt.Tx) error {
		s.Accessions = tx.Bucket(bucketAccession).Stats().KeyN
		s.Taxa = tx.Bucket(bucketTaxon).Stats().KeyN
		s.Databases = tx.Bucket(bucketDatabase).Stats().KeyN
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("index: compute stats: %w", err)
	}
	return s, nil
}
