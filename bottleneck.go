// The bottleneck resolver. For each address it reduces the set of
// distinct AS paths to a single ASN: the most distal AS every path
// passes through before the paths diverge toward the origin.

package gobottleneck

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrEmptyPath marks the internal invariant violation of an address
// reaching resolution with an empty AS path. Extraction never inserts
// empty paths, so this must not be swallowed.
var ErrEmptyPath = errors.New("resolved prefix with empty AS path")

// resolveBatch maps every address in the batch to its bottleneck ASN.
// Addresses whose paths disagree on the origin AS are dropped from the
// result, not failed.
func resolveBatch(hm batchMap, log *slog.Logger, stats *runStats) (map[Address]uint32, error) {
	result := make(map[Address]uint32, len(hm))
	for addr, paths := range hm {
		suffix, ok, err := commonSuffix(addr, paths, log)
		if err != nil {
			return nil, err
		}
		if !ok {
			stats.anomalies.Inc()
			continue
		}
		result[addr] = suffix[len(suffix)-1]
	}
	return result, nil
}

// commonSuffix computes the longest run of AS numbers, origin first,
// shared by every path in the set. ok is false when the paths disagree
// on the origin AS; every IP should belong to exactly one AS, so such
// an address is anomalous and gets no bottleneck.
func commonSuffix(addr Address, paths pathSet, log *slog.Logger) ([]uint32, bool, error) {
	sorted := paths.paths()

	// The shortest path is the baseline. The suffix below can only
	// ever be truncated, so the baseline must not be longer than any
	// path it is compared against.
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	if len(sorted[0]) == 0 {
		return nil, false, fmt.Errorf("%w: prefix %s", ErrEmptyPath, addr)
	}

	baseline := reversed(sorted[0])
	for _, path := range sorted[1:] {
		rev := reversed(path)
		if rev[0] != baseline[0] {
			log.Warn("anomalous AS paths for prefix, dropping it",
				"prefix", addr.String(), "paths", fmt.Sprint(sorted))
			return nil, false, nil
		}
		// Index 0 is the origin, already checked. Truncate at the
		// first disagreement; later positions are irrelevant.
		for i := 1; i < len(baseline); i++ {
			if rev[i] != baseline[i] {
				baseline = baseline[:i]
				break
			}
		}
	}
	return baseline, true, nil
}

func reversed(path []uint32) []uint32 {
	rev := make([]uint32, len(path))
	for i, as := range path {
		rev[len(path)-1-i] = as
	}
	return rev
}
