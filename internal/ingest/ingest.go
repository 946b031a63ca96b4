// Package ingest wires the chunker, chunk store, index layer, hashing
// kernel, and manifest/version store into the ingest half of the data
// flow: records in, a registered manifest version out. It is the
// concrete realisation of "chunker produces chunks -> chunk store
// persists bytes by hash -> index layer records mappings -> Merkle
// kernel computes the sequence-root -> manifest is written".
package ingest

import (
	"context"
	"time"

	"github.com/talaria-db/talaria/internal/chunker"
	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/index"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/store"
	"github.com/talaria-db/talaria/internal/taxonomy"
	"github.com/talaria-db/talaria/internal/workerpool"
)

// Engine ingests records for one (source, dataset) pair, producing a
// registered manifest version.
type Engine struct {
	chunker  *chunker.Chunker
	store    *store.Store
	index    *index.Index
	versions *manifest.Store
}

// New returns an ingest engine over the given components.
func New(c *chunker.Chunker, s *store.Store, idx *index.Index, versions *manifest.Store) *Engine {
	return &Engine{chunker: c, store: s, index: idx, versions: versions}
}

// Result summarizes one Ingest call.
type Result struct {
	Version    *manifest.Version
	ChunkCount int
	NewChunks  int
}

// Ingest chunks records, stores each chunk's payload (deduplicating
// against existing content), records accession/taxon/database index
// entries, computes the sequence root, and registers a new manifest
// version for (source, dataset). accessionMap resolves a record's
// taxon when the record itself carries none (see chunker.ResolveTaxon).
func (e *Engine) Ingest(ctx context.Context, source, dataset string, records []chunker.Record, accessionMap map[string]taxonomy.ID, sequenceTime, taxonomyTime time.Time) (*Result, error) {
	chunks, err := e.chunker.Chunk(records, accessionMap)
	if err != nil {
		return nil, err
	}

	entries := make([]manifest.ChunkEntry, len(chunks))
	newChunks := make([]bool, len(chunks))

	err = workerpool.Run(ctx, indices(len(chunks)), func(ctx context.Context, i int) error {
		c := chunks[i]
		payload := encodeChunkPayload(c)

		existed := e.store.Exists(hashing.Sum(payload))
		h, err := e.store.Put(ctx, payload)
		if err != nil {
			return err
		}
		newChunks[i] = !existed

		for _, rec := range c.Records {
			if err := e.index.PutAccession(rec.SequenceID, h); err != nil {
				return err
			}
		}
		for _, taxonID := range c.TaxonIDs {
			if err := e.index.PutTaxon(uint32(taxonID), h); err != nil {
				return err
			}
		}
		if err := e.index.PutDatabase(source+"/"+dataset, h); err != nil {
			return err
		}

		entries[i] = manifest.ChunkEntry{
			Hash:          h,
			TaxonIDs:      c.TaxonIDs,
			SequenceCount: c.SequenceCount,
			Size:          c.TotalSize,
			Format:        store.FormatSnappy,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	leaves := make([]hashing.Hash, len(entries))
	for i, entry := range entries {
		leaves[i] = entry.Hash
	}
	tree := hashing.Build(leaves)

	m := &manifest.Manifest{
		CreatedAt:      time.Now(),
		SequenceTime:   sequenceTime,
		TaxonomyTime:   taxonomyTime,
		SequenceRoot:   tree.Root(),
		SourceDatabase: source + "/" + dataset,
		ChunkIndex:     entries,
	}

	version, err := e.versions.CreateVersion(source, dataset, m)
	if err != nil {
		return nil, err
	}

	newCount := 0
	for _, nc := range newChunks {
		if nc {
			newCount++
		}
	}
	return &Result{Version: version, ChunkCount: len(entries), NewChunks: newCount}, nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
