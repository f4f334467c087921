package stream

import (
	"fmt"
	"net/netip"

	"github.com/tiborschneider/go-routeviews/pkg/models"
	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// decodeElement turns one raw element into an owned models.Element. The
// element's own origin timestamp wins over the record timestamp when it is
// nonzero.
func decodeElement(r *Record, raw *source.RawElement) (*models.Element, error) {
	t := r.Time
	if raw.OrigTimeSec != 0 {
		t = timeFromParts(raw.OrigTimeSec, raw.OrigTimeUsec)
	}

	peerIP, err := decodeAddr(raw.PeerIP)
	if err != nil {
		return nil, err
	}

	elem := &models.Element{
		Time:    t,
		PeerIP:  peerIP,
		PeerASN: raw.PeerASN,
	}

	switch raw.Type {
	case source.ElemTypeRIB, source.ElemTypeAnnouncement:
		update, err := decodeUpdate(raw)
		if err != nil {
			return nil, err
		}
		elem.Update = update
		elem.Kind = models.ElemAnnouncement
		if raw.Type == source.ElemTypeRIB {
			elem.Kind = models.ElemRIB
		}

	case source.ElemTypeWithdrawal:
		prefix, err := decodePrefix(raw.Prefix)
		if err != nil {
			return nil, err
		}
		elem.Kind = models.ElemWithdrawal
		elem.Prefix = prefix

	case source.ElemTypePeerState:
		from, err := decodePeerState(raw.OldState)
		if err != nil {
			return nil, err
		}
		to, err := decodePeerState(raw.NewState)
		if err != nil {
			return nil, err
		}
		elem.Kind = models.ElemPeerState
		elem.OldState = from
		elem.NewState = to

	default:
		return nil, fmt.Errorf("%w: element type tag %d", ErrUnknownElementType, raw.Type)
	}

	return elem, nil
}

func decodeUpdate(raw *source.RawElement) (*models.Update, error) {
	prefix, err := decodePrefix(raw.Prefix)
	if err != nil {
		return nil, err
	}
	nextHop, err := decodeAddr(raw.NextHop)
	if err != nil {
		return nil, err
	}

	update := &models.Update{
		Prefix:      prefix,
		NextHop:     nextHop,
		ASPath:      decodePath(raw),
		Communities: decodeCommunities(raw),
	}

	if raw.HasOrigin {
		origin, err := decodeOrigin(raw.Origin)
		if err != nil {
			return nil, err
		}
		update.Origin = &origin
	}
	if raw.HasMED {
		med := raw.MED
		update.MED = &med
	}
	if raw.HasLocalPref {
		pref := raw.LocalPref
		update.LocalPref = &pref
	}

	return update, nil
}

// decodePath walks the inline segment encoding until the sentinel. A plain
// tag yields a single AS number, every other tag an AS-SET whose members
// keep their encoded order.
func decodePath(raw *source.RawElement) []models.AsSegment {
	cur := raw.Path()
	cur.Reset()

	var path []models.AsSegment
	for {
		seg, ok := cur.Next()
		if !ok {
			return path
		}
		if seg.Type == source.SegASN {
			path = append(path, models.AsSegment{ASN: seg.ASN})
			continue
		}
		set := seg.Set
		if set == nil {
			set = []uint32{}
		}
		path = append(path, models.AsSegment{Set: set})
	}
}

// decodeCommunities reads indexed entries until the sentinel, keeping their
// order.
func decodeCommunities(raw *source.RawElement) []models.Community {
	var communities []models.Community
	for i := 0; ; i++ {
		asn, value, ok := raw.CommunityAt(i)
		if !ok {
			return communities
		}
		communities = append(communities, models.Community{ASN: asn, Value: value})
	}
}

// decodeAddr resolves the tagged union form of an address by its version
// discriminant.
func decodeAddr(a source.RawAddr) (netip.Addr, error) {
	switch a.Version {
	case 4:
		return netip.AddrFrom4([4]byte(a.Bytes[:4])), nil
	case 6:
		return netip.AddrFrom16(a.Bytes), nil
	}
	return netip.Addr{}, fmt.Errorf("%w: version tag %d", ErrInvalidAddress, a.Version)
}

// decodePrefix decodes the address part and bounds the mask length by the
// family bit width.
func decodePrefix(p source.RawPrefix) (netip.Prefix, error) {
	addr, err := decodeAddr(p.Addr)
	if err != nil {
		return netip.Prefix{}, err
	}
	if int(p.MaskLen) > addr.BitLen() {
		return netip.Prefix{}, fmt.Errorf("%w: /%d on %s", ErrInvalidMaskLength, p.MaskLen, addr)
	}
	return netip.PrefixFrom(addr, int(p.MaskLen)), nil
}

// decodePeerState maps the 9 native peer FSM codes onto PeerState.
func decodePeerState(code int) (models.PeerState, error) {
	if code < int(models.PeerStateIdle) || code > int(models.PeerStateUnknown) {
		return 0, fmt.Errorf("%w: code %d", ErrUnknownPeerState, code)
	}
	return models.PeerState(code), nil
}

func decodeOrigin(code int) (models.OriginType, error) {
	switch code {
	case int(models.OriginIGP), int(models.OriginEGP), int(models.OriginIncomplete):
		return models.OriginType(code), nil
	}
	return 0, fmt.Errorf("%w: code %d", ErrUnknownOriginType, code)
}
