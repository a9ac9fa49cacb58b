package transcript

import (
	"slices"

	"github.com/ethereum-optimism/infra/op-shunit/types"
)

// Merge combines the stdout and stderr fragments of one process into a single
// sequence ordered by capture time. The sort is stable over stdout followed by
// stderr, so equal timestamps keep stdout ahead of stderr and each stream keeps its
// own order. The inputs are not modified.
func Merge(stdout, stderr []types.LogLine) []types.LogLine {
	merged := make([]types.LogLine, 0, len(stdout)+len(stderr))
	merged = append(merged, stdout...)
	merged = append(merged, stderr...)
	slices.SortStableFunc(merged, func(a, b types.LogLine) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return merged
}
