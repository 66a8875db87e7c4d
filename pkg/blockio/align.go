package blockio

import "github.com/jeremytregunna/ringdb/pkg/codec"

// AlignUp rounds n up to the next multiple of a (a must be a power of two).
// Re-exported from codec for callers that only depend on blockio.
func AlignUp(n uint64, a uint64) uint64 { return codec.AlignUp(n, a) }
