package hashing

import "sort"

// TaxonNode is one node of a taxonomy tree being folded into a Merkle DAG:
// its own content hash plus the already-computed hashes of its children.
type TaxonNode struct {
	Content  Hash
	Children []Hash
}

// HashTaxonNode combines a node's own content hash with its children's
// hashes into a single node hash. Children are sorted first so that the
// same child set always folds to the same hash regardless of traversal
// order — taxonomy children have no inherent ordering, unlike chunk
// sequences, which are positional.
func HashTaxonNode(node TaxonNode) Hash {
	if len(node.Children) == 0 {
		return node.Content
	}

	sorted := make([]Hash, len(node.Children))
	copy(sorted, node.Children)
	sort.Slice(sorted, func(i, j int) bool {
		return lessHash(sorted[i], sorted[j])
	})

	parts := make([][]byte, 0, len(sorted)+1)
	parts = append(parts, node.Content[:])
	for _, c := range sorted {
		h := c
		parts = append(parts, h[:])
	}
	return SumAll(parts...)
}

func lessHash(a, b Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// BindTemporal produces a cross-time binder hash linking a sequence-DAG
// root and a taxonomy-DAG root recorded at the same manifest version —
// proof that the two roots were published together, not independently
// substitutable.
func BindTemporal(sequenceRoot, taxonomyRoot Hash) Hash {
	return SumAll([]byte("temporal-bind"), sequenceRoot[:], taxonomyRoot[:])
}
