package manifest

// Cost-estimate constants, grounded on talaria-sequoia's differ.rs
// estimate_cost: an average chunk is assumed to be 100KB and a
// download proceeds at 10MB/s. These are an operational heuristic for
// update planning, not a correctness invariant, so they are exposed
// as overridable parameters rather than baked-in.
const (
	DefaultAvgChunkBytes     int64   = 100 * 1024
	DefaultDownloadBytesPerS float64 = 10 * 1024 * 1024
	FullFetchThreshold       float64 = 0.5
)

// CostEstimator carries the tunable constants EstimateCost uses so
// callers can override them from config without touching call sites.
type CostEstimator struct {
	AvgChunkBytes     int64
	DownloadBytesPerS float64
}

// DefaultCostEstimator returns the constants used by the original
// differ's estimate_cost.
func DefaultCostEstimator() CostEstimator {
	return CostEstimator{
		AvgChunkBytes:     DefaultAvgChunkBytes,
		DownloadBytesPerS: DefaultDownloadBytesPerS,
	}
}

// EstimateCost projects the bytes and time needed to apply diff,
// and recommends a full re-download when the changed fraction of the
// chunk set exceeds FullFetchThreshold.
func (c CostEstimator) EstimateCost(diff *Diff, totalOldChunks int) MigrationCost {
	toFetch := len(diff.Added) + len(diff.Modified)
	toRemove := len(diff.Removed)

	estimatedBytes := int64(toFetch) * c.AvgChunkBytes
	var estimatedSeconds float64
	if c.DownloadBytesPerS > 0 {
		estimatedSeconds = float64(estimatedBytes) / c.DownloadBytesPerS
	}

	var pctChanged float64
	if totalOldChunks > 0 {
		pctChanged = float64(len(diff.Added)+len(diff.Removed)+len(diff.Modified)) / float64(totalOldChunks)
	}

	return MigrationCost{
		ChunksToFetch:      toFetch,
		ChunksToRemove:     toRemove,
		EstimatedBytes:     estimatedBytes,
		EstimatedSeconds:   estimatedSeconds,
		PercentChanged:     pctChanged,
		RecommendFullFetch: pctChanged > FullFetchThreshold,
	}
}

// EstimateCost is a package-level convenience using the default
// constants.
func EstimateCost(diff *Diff, totalOldChunks int) MigrationCost {
	return DefaultCostEstimator().EstimateCost(diff, totalOldChunks)
}
