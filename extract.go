// RIB entry extraction: classifying framed MRT records, rebuilding the
// announced address from its on-wire prefix bytes, and pulling one AS
// path out of every per-peer entry.

package gobottleneck

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	bgp "github.com/osrg/gobgp/v3/pkg/packet/bgp"
	mrt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
)

// Address is the exact (ip, mask) pair a RIB record announces. Two
// entries differing only in mask are distinct keys.
type Address struct {
	IP   netip.Addr
	Mask uint8
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.IP, a.Mask)
}

// leadingByte is the bin key: the first octet of the address in its
// own family's byte representation.
func (a Address) leadingByte() byte {
	return a.IP.AsSlice()[0]
}

// A pathSet holds the distinct AS paths seen for one address, keyed by
// full-sequence equality.
type pathSet map[string][]uint32

func pathKey(path []uint32) string {
	key := make([]byte, 4*len(path))
	for i, as := range path {
		binary.BigEndian.PutUint32(key[i*4:], as)
	}
	return string(key)
}

func (ps pathSet) insert(path []uint32) {
	ps[pathKey(path)] = path
}

func (ps pathSet) union(other pathSet) {
	for key, path := range other {
		ps[key] = path
	}
}

func (ps pathSet) paths() [][]uint32 {
	out := make([][]uint32, 0, len(ps))
	for _, path := range ps {
		out = append(out, path)
	}
	return out
}

// A batchMap accumulates the path sets for one leading-byte bin (or,
// for the unsorted cache, the whole address space).
type batchMap map[Address]pathSet

func (hm batchMap) insert(addr Address, path []uint32) {
	ps, ok := hm[addr]
	if !ok {
		ps = make(pathSet)
		hm[addr] = ps
	}
	ps.insert(path)
}

// ribRecord is one classified IPv4/IPv6 unicast RIB record.
type ribRecord struct {
	addr Address
	rib  *mrt.Rib
}

// parseRibRecord classifies one framed MRT record. ok is false for
// record types the pipeline does not care about: the peer index
// table, multicast tables, and anything that is not TABLE_DUMP_V2.
func parseRibRecord(data []byte) (ribRecord, bool, error) {
	var rec ribRecord
	if len(data) < mrt.MRT_COMMON_HEADER_LEN {
		return rec, false, fmt.Errorf("short MRT record: %d bytes", len(data))
	}
	hdr := &mrt.MRTHeader{}
	if err := hdr.DecodeFromBytes(data[:mrt.MRT_COMMON_HEADER_LEN]); err != nil {
		return rec, false, fmt.Errorf("parsing MRT header: %w", err)
	}
	if hdr.Type != mrt.TABLE_DUMPv2 {
		return rec, false, nil
	}
	subtype := mrt.MRTSubTypeTableDumpv2(hdr.SubType)
	if subtype != mrt.RIB_IPV4_UNICAST && subtype != mrt.RIB_IPV6_UNICAST {
		return rec, false, nil
	}

	msg, err := mrt.ParseMRTBody(hdr, data[mrt.MRT_COMMON_HEADER_LEN:])
	if err != nil {
		return rec, false, fmt.Errorf("parsing RIB record: %w", err)
	}
	rib, ok := msg.Body.(*mrt.Rib)
	if !ok {
		return rec, false, fmt.Errorf("unexpected body type %T for RIB subtype", msg.Body)
	}

	switch prefix := rib.Prefix.(type) {
	case *bgp.IPv6AddrPrefix:
		rec.addr, err = reconstructAddr(prefix.Prefix, prefix.Length, true)
	case *bgp.IPAddrPrefix:
		rec.addr, err = reconstructAddr(prefix.Prefix, prefix.Length, false)
	default:
		return rec, false, fmt.Errorf("unexpected prefix type %T", rib.Prefix)
	}
	if err != nil {
		return rec, false, err
	}
	rec.rib = rib
	return rec, true, nil
}

// reconstructAddr right-pads the on-wire prefix bytes with zeros to the
// full address width. TABLE_DUMP_V2 encoders omit trailing zero octets
// of the prefix when the mask is shorter than the address.
func reconstructAddr(prefix []byte, mask uint8, v6 bool) (Address, error) {
	if v6 {
		if len(prefix) > 16 || mask > 128 {
			return Address{}, fmt.Errorf("bad IPv6 prefix: %d bytes, mask %d", len(prefix), mask)
		}
		var buf [16]byte
		copy(buf[:], prefix)
		return Address{IP: netip.AddrFrom16(buf), Mask: mask}, nil
	}
	if len(prefix) > 4 || mask > 32 {
		return Address{}, fmt.Errorf("bad IPv4 prefix: %d bytes, mask %d", len(prefix), mask)
	}
	var buf [4]byte
	copy(buf[:], prefix)
	return Address{IP: netip.AddrFrom4(buf), Mask: mask}, nil
}

// extractASPath returns the ordered AS sequence carried in one
// per-peer entry's attributes, nearest hop first, origin last.
func extractASPath(attrs []bgp.PathAttributeInterface) ([]uint32, error) {
	for _, attr := range attrs {
		asPath, ok := attr.(*bgp.PathAttributeAsPath)
		if !ok {
			continue
		}
		var aslist []uint32
		for _, segment := range asPath.Value {
			aslist = append(aslist, segment.GetAS()...)
		}
		if len(aslist) == 0 {
			return nil, fmt.Errorf("AS_PATH attribute carries no AS numbers")
		}
		return aslist, nil
	}
	return nil, fmt.Errorf("no AS_PATH attribute among %d attributes", len(attrs))
}

// collapsePrepends drops consecutive duplicate AS numbers, so that AS
// prepending does not make otherwise identical paths distinct.
func collapsePrepends(path []uint32) []uint32 {
	if len(path) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(path))
	for _, as := range path {
		if n := len(out); n == 0 || out[n-1] != as {
			out = append(out, as)
		}
	}
	return out
}

// mergeRecord folds every per-peer entry of one RIB record into hm. A
// per-peer extraction failure skips that entry alone; the record and
// the file carry on.
func (l *locator) mergeRecord(rec ribRecord, hm batchMap) {
	for _, entry := range rec.rib.Entries {
		asPath, err := extractASPath(entry.PathAttributes)
		if err != nil {
			l.cfg.stats.pathFailures.Inc()
			l.log.Debug("skipping rib entry", "prefix", rec.addr.String(), "peer", entry.PeerIndex, "error", err)
			continue
		}
		hm.insert(rec.addr, collapsePrepends(asPath))
		l.cfg.stats.entriesMerged.Inc()
	}
}
