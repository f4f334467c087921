package source

import (
	"encoding/binary"
	"net/netip"
)

// NameLen is the fixed capacity of the NUL terminated name buffers carried
// by a raw record.
const NameLen = 64

// Record type tags. Anything else marks the record as corrupted.
const (
	TypeUpdate = 0
	TypeRIB    = 1
)

// Element type tags.
const (
	ElemTypeUnknown      = 0
	ElemTypeRIB          = 1
	ElemTypeAnnouncement = 2
	ElemTypeWithdrawal   = 3
	ElemTypePeerState    = 4
)

// SegASN tags a single-hop path segment. Any other tag is an AS-SET.
const SegASN = 1

// SegSet is the conventional AS-SET tag written by providers.
const SegSet = 2

// RawAddr is the tagged union form of an IP address: an explicit version
// discriminant and 16 bytes of storage, of which IPv4 uses the first 4.
type RawAddr struct {
	Version uint8
	Bytes   [16]byte
}

// RawPrefix is a raw address plus a mask length byte.
type RawPrefix struct {
	Addr    RawAddr
	MaskLen uint8
}

// AddrRaw encodes a into its raw tagged form.
func AddrRaw(a netip.Addr) RawAddr {
	var r RawAddr
	if a.Is4() {
		r.Version = 4
		b := a.As4()
		copy(r.Bytes[:4], b[:])
		return r
	}
	r.Version = 6
	b := a.As16()
	copy(r.Bytes[:], b[:])
	return r
}

// PrefixRaw encodes p into its raw tagged form.
func PrefixRaw(p netip.Prefix) RawPrefix {
	return RawPrefix{Addr: AddrRaw(p.Addr()), MaskLen: uint8(p.Bits())}
}

// RawRecord is one pulled unit of the source sequence, before decoding.
type RawRecord struct {
	Status   Status
	Type     int
	TimeSec  uint32
	TimeUsec uint32

	// Fixed-capacity, NUL terminated name buffers.
	Project   [NameLen]byte
	Collector [NameLen]byte
	Router    [NameLen]byte

	RouterIP RawAddr
}

// SetName copies s into a fixed name buffer, truncating if needed and
// leaving the remainder NUL.
func SetName(dst *[NameLen]byte, s string) {
	*dst = [NameLen]byte{}
	copy(dst[:NameLen-1], s)
}

// RawElement is one undecoded element of a record.
type RawElement struct {
	Type         int
	OrigTimeSec  uint32
	OrigTimeUsec uint32

	PeerIP  RawAddr
	PeerASN uint32

	Prefix  RawPrefix
	NextHop RawAddr

	// ASPath is the inline segment encoding walked by a PathCursor: one
	// tag byte per segment, then either a big-endian uint32 AS number
	// (SegASN) or a big-endian uint16 count followed by that many uint32
	// AS numbers (AS-SET).
	ASPath []byte

	// Communities is packed 4-byte entries: uint16 ASN, uint16 value.
	Communities []byte

	HasOrigin bool
	Origin    int

	HasMED bool
	MED    uint32

	HasLocalPref bool
	LocalPref    uint32

	OldState int
	NewState int
}

// CommunityAt returns the i'th community entry. ok is false past the end of
// the list.
func (e *RawElement) CommunityAt(i int) (asn, value uint16, ok bool) {
	off := i * 4
	if i < 0 || off+4 > len(e.Communities) {
		return 0, 0, false
	}
	asn = binary.BigEndian.Uint16(e.Communities[off:])
	value = binary.BigEndian.Uint16(e.Communities[off+2:])
	return asn, value, true
}

// AppendASN appends a single-hop segment to an AS path buffer.
func AppendASN(buf []byte, asn uint32) []byte {
	buf = append(buf, SegASN)
	return binary.BigEndian.AppendUint32(buf, asn)
}

// AppendASSet appends an AS-SET segment to an AS path buffer, preserving the
// order of asns.
func AppendASSet(buf []byte, asns ...uint32) []byte {
	buf = append(buf, SegSet)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(asns)))
	for _, asn := range asns {
		buf = binary.BigEndian.AppendUint32(buf, asn)
	}
	return buf
}

// AppendCommunity appends one entry to a community buffer.
func AppendCommunity(buf []byte, asn, value uint16) []byte {
	buf = binary.BigEndian.AppendUint16(buf, asn)
	return binary.BigEndian.AppendUint16(buf, value)
}

// RawSegment is one undecoded AS path segment.
type RawSegment struct {
	Type int
	ASN  uint32   // single AS number when Type == SegASN
	Set  []uint32 // AS-SET members otherwise
}

// PathCursor walks the inline segment encoding of an AS path. The zero
// cursor over a buffer starts at the first segment.
type PathCursor struct {
	buf []byte
	off int
}

// Path returns a cursor over the element's AS path.
func (e *RawElement) Path() PathCursor {
	return PathCursor{buf: e.ASPath}
}

// Reset rewinds the cursor to the first segment.
func (c *PathCursor) Reset() { c.off = 0 }

// Next returns the next segment. ok is false at the end of the path; a
// truncated trailing segment also ends the walk.
func (c *PathCursor) Next() (seg RawSegment, ok bool) {
	if c.off >= len(c.buf) {
		return RawSegment{}, false
	}
	seg.Type = int(c.buf[c.off])
	c.off++
	if seg.Type == SegASN {
		if c.off+4 > len(c.buf) {
			c.off = len(c.buf)
			return RawSegment{}, false
		}
		seg.ASN = binary.BigEndian.Uint32(c.buf[c.off:])
		c.off += 4
		return seg, true
	}
	if c.off+2 > len(c.buf) {
		c.off = len(c.buf)
		return RawSegment{}, false
	}
	n := int(binary.BigEndian.Uint16(c.buf[c.off:]))
	c.off += 2
	if c.off+4*n > len(c.buf) {
		c.off = len(c.buf)
		return RawSegment{}, false
	}
	seg.Set = make([]uint32, n)
	for i := 0; i < n; i++ {
		seg.Set[i] = binary.BigEndian.Uint32(c.buf[c.off:])
		c.off += 4
	}
	return seg, true
}
