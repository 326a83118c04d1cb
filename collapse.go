// Optional -toponly mode: drop resolved prefixes that are covered by
// another resolved prefix, keeping only the top-level announcements.
//
// The collapse runs per bin. Bins are keyed by the leading address
// byte, so a parent with a mask shorter than 8 bits can span bins and
// will not absorb children living in a different bin.

package gobottleneck

import (
	"net"

	pu "github.com/CSUNetSec/protoparse/util"
	radix "github.com/armon/go-radix"
)

// collapseChildren removes from result every address whose covering
// parent prefix is itself present in result.
func collapseChildren(result map[Address]uint32) {
	byKey := make(map[string]Address, len(result))
	tree := radix.New()
	for addr := range result {
		key := pu.IPToRadixkey(net.IP(addr.IP.AsSlice()), addr.Mask)
		byKey[key] = addr
		tree.Insert(key, nil)
	}

	tree.Walk(func(s string, _ interface{}) bool {
		top := true
		tree.WalkPrefix(s, func(sub string, _ interface{}) bool {
			if top {
				top = false
				return false
			}
			delete(result, byKey[sub])
			return false
		})
		return false
	})
}
