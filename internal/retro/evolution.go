package retro

import (
	"time"

	"github.com/talaria-db/talaria/internal/taxonomy"
)

// EntityEventType classifies one entry in an entity's time-ordered
// event log.
type EntityEventType string

const (
	EntityCreated      EntityEventType = "created"
	EntityReclassified EntityEventType = "reclassified"
	EntityDeleted      EntityEventType = "deleted"
)

// EntityEvent is one dated change in a taxon's history.
type EntityEvent struct {
	Time     time.Time
	Type     EntityEventType
	OldTaxon taxonomy.ID
	NewTaxon taxonomy.ID
}

// Evolution produces a time-ordered event log for a specific taxon
// between t0 and t1, built from the taxonomy evolution log's
// per-version history.
func (e *Engine) Evolution(taxonID taxonomy.ID, t0, t1 time.Time) []EntityEvent {
	history := e.evolution.TrackTaxon(taxonID)

	var events []EntityEvent
	var prevParent taxonomy.ID
	havePrev := false

	for _, h := range history {
		if h.Time.Before(t0) || h.Time.After(t1) {
			continue
		}
		switch h.Status {
		case taxonomy.StatusActive:
			if !havePrev {
				events = append(events, EntityEvent{Time: h.Time, Type: EntityCreated, NewTaxon: h.Record.ParentID})
			} else if h.Record.ParentID != prevParent {
				events = append(events, EntityEvent{Time: h.Time, Type: EntityReclassified, OldTaxon: prevParent, NewTaxon: h.Record.ParentID})
			}
			prevParent = h.Record.ParentID
			havePrev = true
		case taxonomy.StatusDeprecated, taxonomy.StatusMerged:
			events = append(events, EntityEvent{Time: h.Time, Type: EntityDeleted, OldTaxon: prevParent})
			havePrev = false
		}
	}
	return events
}

// Transition groups reclassification events by their (old, new)
// parent transition.
type Transition struct {
	OldParent taxonomy.ID
	NewParent taxonomy.ID
	Count     int
	TaxaID    []taxonomy.ID
}

// MassReclassifications groups the evolution log's reclassification
// events occurring between t0 and t1 by (old parent -> new parent)
// transition, returning only groups whose size meets threshold.
func (e *Engine) MassReclassifications(threshold int, t0, t1 time.Time) []Transition {
	refSnap, refMerges, refAt, ok := e.evolution.SnapshotAt(t0)
	if !ok {
		return nil
	}
	cmpSnap, _, cmpAt, ok := e.evolution.SnapshotAt(t1)
	if !ok || !cmpAt.After(refAt) {
		return nil
	}

	type key struct{ old, new taxonomy.ID }
	groups := make(map[key][]taxonomy.ID)

	for id, rec := range refSnap.Taxa {
		canonical := id
		if target, merged := refMerges[id]; merged {
			canonical = target
		}
		newRec, present := cmpSnap.Taxa[canonical]
		if !present || newRec.ParentID == rec.ParentID {
			continue
		}
		k := key{old: rec.ParentID, new: newRec.ParentID}
		groups[k] = append(groups[k], id)
	}

	var out []Transition
	for k, ids := range groups {
		if len(ids) < threshold {
			continue
		}
		out = append(out, Transition{OldParent: k.old, NewParent: k.new, Count: len(ids), TaxaID: ids})
	}
	return out
}
