// Package transcript rebuilds a readable, chronological transcript from the
// fragments captured on a script's stdout and stderr.
//
// Fragments from the two streams are first merged by capture time (Merge) and then
// glued back into logical lines (Join). Ordering within one stream is exact. Across
// streams only the capture timestamps are known, so fragments captured at the same
// instant are ordered stdout first; the true interleaving of the two pipes inside the
// kernel is not observable and is not reconstructed.
package transcript
