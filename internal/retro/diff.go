package retro

import (
	"fmt"
	"time"

	"github.com/talaria-db/talaria/internal/taxonomy"
)

// ChangeSet is the result of comparing two coordinates' labeled
// sequence sets: sequences added, removed, or reclassified to a
// different taxon. Stable sequences (same id, same taxon) are
// omitted.
type ChangeSet struct {
	Added        []LabeledSequence
	Removed      []LabeledSequence
	Reclassified []Reclassified
}

// Reclassified pairs an id with a taxon before and after. Diff fills
// it with a sequence id and that sequence's taxon; Join fills it with a
// taxon id and that taxon's parent.
type Reclassified struct {
	ID       string
	OldTaxon taxonomy.ID
	NewTaxon taxonomy.ID
}

// Diff reports how the sequence set known at coordA differs from the
// one known at coordB. Both coordinates' sequence sets are supplied
// by the caller (one per coordinate), already scoped to their
// respective manifests.
func (e *Engine) Diff(coordA, coordB Coordinate, seqsA, seqsB []SequenceRecord) (*ChangeSet, error) {
	snapA, err := e.Snapshot(coordA, seqsA, false)
	if err != nil {
		return nil, err
	}
	snapB, err := e.Snapshot(coordB, seqsB, false)
	if err != nil {
		return nil, err
	}

	byID := func(seqs []LabeledSequence) map[string]LabeledSequence {
		m := make(map[string]LabeledSequence, len(seqs))
		for _, s := range seqs {
			m[s.ID] = s
		}
		return m
	}
	a := byID(snapA.Sequences)
	b := byID(snapB.Sequences)

	cs := &ChangeSet{}
	for id, sb := range b {
		sa, existed := a[id]
		if !existed {
			cs.Added = append(cs.Added, sb)
			continue
		}
		if sa.TaxonID != sb.TaxonID {
			cs.Reclassified = append(cs.Reclassified, Reclassified{ID: id, OldTaxon: sa.TaxonID, NewTaxon: sb.TaxonID})
		}
	}
	for id, sa := range a {
		if _, stillPresent := b[id]; !stillPresent {
			cs.Removed = append(cs.Removed, sa)
		}
	}
	return cs, nil
}

// JoinOpts filters a Join query.
type JoinOpts struct {
	MinGroupSize int
	IDFilter     func(id string) bool
}

// Join reports every taxon whose parent changed between the taxonomy
// versions current at refDate and cmpDate, using the evolution log's
// recorded versions rather than a caller-supplied sequence set — it
// answers "which taxa moved", independent of any specific manifest's
// membership. Each result's ID is the taxon id and OldTaxon/NewTaxon
// are its parent before and after; no sequences are looked up.
// MinGroupSize applies to the whole result: fewer matches yield nil.
func (e *Engine) Join(refDate, cmpDate time.Time, opts JoinOpts) []Reclassified {
	refSnap, refMerges, _, refOK := e.evolution.SnapshotAt(refDate)
	cmpSnap, _, _, cmpOK := e.evolution.SnapshotAt(cmpDate)
	if !refOK || !cmpOK {
		return nil
	}

	var out []Reclassified
	for id, rec := range refSnap.Taxa {
		if opts.IDFilter != nil && !opts.IDFilter(idString(id)) {
			continue
		}
		canonical := id
		if target, merged := refMerges[id]; merged {
			canonical = target
		}
		newRec, stillPresent := cmpSnap.Taxa[canonical]
		if !stillPresent {
			continue
		}
		if newRec.ParentID != rec.ParentID {
			out = append(out, Reclassified{ID: idString(id), OldTaxon: rec.ParentID, NewTaxon: newRec.ParentID})
		}
	}

	if opts.MinGroupSize > 0 && len(out) < opts.MinGroupSize {
		return nil
	}
	return out
}

func idString(id taxonomy.ID) string {
	return fmt.Sprintf("%d", id)
}
