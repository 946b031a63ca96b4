package taxonomy

import "time"

// TaxonStatus describes a taxon's standing as of a particular snapshot.
type TaxonStatus string

const (
	StatusActive     TaxonStatus = "active"
	StatusMerged     TaxonStatus = "merged"
	StatusDeprecated TaxonStatus = "deprecated"
)

// EventType distinguishes the kinds of change a timeline tracks.
type EventType string

const (
	EventReclassification EventType = "reclassification"
	EventNewTaxa          EventType = "new_taxa"
	EventMerge            EventType = "merge"
)

// TimelineEvent is one dated change recorded while replaying the
// taxonomy's version history.
type TimelineEvent struct {
	Time   time.Time
	Type   EventType
	TaxaID []ID
	Detail string
}

// HistoryEntry records one snapshot's standing for a tracked taxon.
type HistoryEntry struct {
	Time   time.Time
	Status TaxonStatus
	Record Record
}

// versionedSnapshot pairs a taxonomy time with the snapshot recorded at
// it, plus the explicit merge map for that version (old ID -> new ID),
// since a disappearance alone can't distinguish "merged into X" from
// "simply deprecated".
type versionedSnapshot struct {
	at       time.Time
	snapshot *Snapshot
	merges   map[ID]ID
}

// Evolution replays a taxonomy's recorded versions to answer
// "what changed, and why" queries without needing the full manifest
// chain loaded at once.
type Evolution struct {
	versions []versionedSnapshot
}

// NewEvolution creates an empty evolution log.
func NewEvolution() *Evolution {
	return &Evolution{}
}

// AddVersion appends a snapshot recorded at t, with merges describing
// any taxa known to have been folded into another at this version
// (e.g. a species reclassified into a different genus under a new ID).
func (e *Evolution) AddVersion(t time.Time, snapshot *Snapshot, merges map[ID]ID) {
	e.versions = append(e.versions, versionedSnapshot{at: t, snapshot: snapshot, merges: merges})
}

// computeChanges compares two consecutive versions and classifies
// every taxon that disappeared as either merged (present in the merge
// map) or deprecated (vanished with no recorded successor).
func computeChanges(prev, next versionedSnapshot) []TimelineEvent {
	var events []TimelineEvent

	var newlyAdded []ID
	for id := range next.snapshot.Taxa {
		if _, existed := prev.snapshot.Taxa[id]; !existed {
			newlyAdded = append(newlyAdded, id)
		}
	}
	if len(newlyAdded) > 0 {
		events = append(events, TimelineEvent{
			Time:   next.at,
			Type:   EventNewTaxa,
			TaxaID: newlyAdded,
			Detail: "new taxa introduced",
		})
	}

	for id := range prev.snapshot.Taxa {
		if _, stillExists := next.snapshot.Taxa[id]; stillExists {
			continue
		}
		if target, merged := next.merges[id]; merged {
			events = append(events, TimelineEvent{
				Time:   next.at,
				Type:   EventMerge,
				TaxaID: []ID{id, target},
				Detail: "taxon merged into successor",
			})
		} else {
			events = append(events, TimelineEvent{
				Time:   next.at,
				Type:   EventReclassification,
				TaxaID: []ID{id},
				Detail: "taxon deprecated with no recorded successor",
			})
		}
	}

	return events
}

// Timeline replays every recorded version transition in order and
// returns the full sequence of changes.
func (e *Evolution) Timeline() []TimelineEvent {
	var all []TimelineEvent
	for i := 1; i < len(e.versions); i++ {
		all = append(all, computeChanges(e.versions[i-1], e.versions[i])...)
	}
	return all
}

// TrackTaxon returns the history of a single taxon across every
// recorded version: its record (if present), and its inferred status.
func (e *Evolution) TrackTaxon(id ID) []HistoryEntry {
	var history []HistoryEntry
	for i, v := range e.versions {
		rec, present := v.snapshot.Taxa[id]
		status := StatusActive
		if !present {
			if i > 0 {
				if _, merged := v.merges[id]; merged {
					status = StatusMerged
				} else if _, wasPresent := e.versions[i-1].snapshot.Taxa[id]; wasPresent {
					status = StatusDeprecated
				} else {
					continue // never existed as of this version
				}
			} else {
				continue
			}
		}
		history = append(history, HistoryEntry{Time: v.at, Status: status, Record: rec})
	}
	return history
}

// SnapshotAt returns the snapshot and merge map recorded at the
// latest version whose time is at most t, and the version's own time.
// ok is false when no version qualifies.
func (e *Evolution) SnapshotAt(t time.Time) (snapshot *Snapshot, merges map[ID]ID, at time.Time, ok bool) {
	var best *versionedSnapshot
	for i := range e.versions {
		v := &e.versions[i]
		if v.at.After(t) {
			continue
		}
		if best == nil || v.at.After(best.at) {
			best = v
		}
	}
	if best == nil {
		return nil, nil, time.Time{}, false
	}
	return best.snapshot, best.merges, best.at, true
}

// CanonicalTaxon resolves id through the merge chain recorded across
// every version up to and including t, returning the final target a
// chain of merges points at.
func (e *Evolution) CanonicalTaxon(id ID, t time.Time) ID {
	current := id
	for i := range e.versions {
		v := &e.versions[i]
		if v.at.After(t) {
			break
		}
		if target, merged := v.merges[current]; merged {
			current = target
		}
	}
	return current
}

// AffectedTaxa returns every taxon ID that changed status between two
// taxonomy snapshots, regardless of how: added, merged, or deprecated.
func AffectedTaxa(oldSnap, newSnap *Snapshot, merges map[ID]ID) []ID {
	seen := make(map[ID]bool)
	var affected []ID
	add := func(id ID) {
		if !seen[id] {
			seen[id] = true
			affected = append(affected, id)
		}
	}

	for id := range newSnap.Taxa {
		if _, existed := oldSnap.Taxa[id]; !existed {
			add(id)
		}
	}
	for id := range oldSnap.Taxa {
		if _, stillExists := newSnap.Taxa[id]; !stillExists {
			add(id)
			if target, ok := merges[id]; ok {
				add(target)
			}
		}
	}
	return affected
}
