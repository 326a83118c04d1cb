// The optional prefix filter. When a prefix list is configured, only
// resolved addresses contained in one of the listed prefixes make it
// to the output.

package gobottleneck

import (
	"fmt"
	"net"
	"strings"

	pu "github.com/CSUNetSec/protoparse/util"
)

// An AddrFilter reports whether a resolved address should be kept.
type AddrFilter func(Address) bool

// NewPrefixFilter builds a filter from a comma separated prefix list,
// e.g. "1.0.0.0/8,2001::/16". An address passes if it is contained in
// any listed prefix.
func NewPrefixFilter(raw string) (AddrFilter, error) {
	pt := pu.NewPrefixTree()
	for _, pref := range strings.Split(raw, ",") {
		parts := strings.Split(pref, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed prefix string: %s", pref)
		}
		mask, err := pu.MaskStrToUint8(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parsing mask %s: %w", parts[1], err)
		}
		parsedip := net.ParseIP(parts[0])
		if parsedip == nil {
			return nil, fmt.Errorf("malformed IP address: %s", parts[0])
		}
		pt.Add(parsedip, mask)
	}
	return func(a Address) bool {
		return pt.ContainsIPMask(net.IP(a.IP.AsSlice()), a.Mask)
	}, nil
}
