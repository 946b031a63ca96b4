package manifest

import (
	"fmt"

	"github.com/talaria-db/talaria/internal/hashing"
)

// Validate checks the structural invariants a manifest must hold:
// sequence_root must equal the Merkle root of chunk_index's hashes in
// stored order, and previous_version (if set) must not equal this
// manifest's own version.
func Validate(m *Manifest) error {
	leaves := make([]hashing.Hash, len(m.ChunkIndex))
	for i, e := range m.ChunkIndex {
		leaves[i] = e.Hash
	}
	tree := hashing.Build(leaves)
	if tree.Root() != m.SequenceRoot {
		return fmt.Errorf("manifest: sequence_root %s does not match computed root %s", m.SequenceRoot, tree.Root())
	}

	if m.PreviousVersion != "" && m.PreviousVersion == m.Version {
		return fmt.Errorf("manifest: previous_version must not equal own version %s", m.Version)
	}

	return nil
}
