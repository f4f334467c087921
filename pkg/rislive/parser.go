package rislive

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// risMessage is the top-level message from RIS Live.
type risMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// risUpdateData is the BGP update data from RIS Live.
type risUpdateData struct {
	Timestamp     float64           `json:"timestamp"`
	Peer          string            `json:"peer"`
	PeerASN       json.RawMessage   `json:"peer_asn"` // Can be string or number
	Host          string            `json:"host"`
	Type          string            `json:"type"`
	Path          []json.RawMessage `json:"path"`
	Origin        string            `json:"origin"`
	MED           *uint32           `json:"med"`
	Community     [][]uint32        `json:"community"`
	Announcements []risAnnouncement `json:"announcements"`
	Withdrawals   []string          `json:"withdrawals"`
}

// risAnnouncement represents announced prefixes sharing one next hop.
type risAnnouncement struct {
	NextHop  string   `json:"next_hop"`
	Prefixes []string `json:"prefixes"`
}

// parsedRecord is one RIS Live message reshaped into the raw record form
// the stream layer decodes.
type parsedRecord struct {
	raw   source.RawRecord
	elems []source.RawElement
}

// parseMessage parses a RIS Live WebSocket message into a raw record with
// its elements. It returns nil for messages that carry no update data
// (e.g. ris_error, rrc_list, OPEN and NOTIFICATION passthrough).
func parseMessage(data []byte) (*parsedRecord, error) {
	var msg risMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != "ris_message" {
		return nil, nil
	}

	var update risUpdateData
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		return nil, fmt.Errorf("unmarshal update data: %w", err)
	}
	if update.Type != "" && update.Type != "UPDATE" {
		return nil, nil
	}

	sec := uint32(update.Timestamp)
	usec := uint32((update.Timestamp - float64(sec)) * 1e6)

	rec := &parsedRecord{}
	rec.raw.Status = source.StatusValid
	rec.raw.Type = source.TypeUpdate
	rec.raw.TimeSec = sec
	rec.raw.TimeUsec = usec
	source.SetName(&rec.raw.Project, "ris")
	source.SetName(&rec.raw.Collector, update.Host)
	rec.raw.RouterIP = source.AddrRaw(netip.IPv4Unspecified())

	peerIP, err := netip.ParseAddr(update.Peer)
	if err != nil {
		return nil, fmt.Errorf("parse peer address %q: %w", update.Peer, err)
	}

	path, err := parsePath(update.Path)
	if err != nil {
		return nil, err
	}
	communities := parseCommunities(update.Community)

	base := source.RawElement{
		OrigTimeSec:  sec,
		OrigTimeUsec: usec,
		PeerIP:       source.AddrRaw(peerIP),
		PeerASN:      parseASN(update.PeerASN),
	}

	for _, ann := range update.Announcements {
		nextHop, err := netip.ParseAddr(ann.NextHop)
		if err != nil {
			return nil, fmt.Errorf("parse next hop %q: %w", ann.NextHop, err)
		}
		for _, p := range ann.Prefixes {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("parse prefix %q: %w", p, err)
			}
			elem := base
			elem.Type = source.ElemTypeAnnouncement
			elem.Prefix = source.PrefixRaw(prefix)
			elem.NextHop = source.AddrRaw(nextHop)
			elem.ASPath = path
			elem.Communities = communities
			applyOrigin(&elem, update.Origin)
			if update.MED != nil {
				elem.HasMED = true
				elem.MED = *update.MED
			}
			rec.elems = append(rec.elems, elem)
		}
	}

	for _, p := range update.Withdrawals {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("parse prefix %q: %w", p, err)
		}
		elem := base
		elem.Type = source.ElemTypeWithdrawal
		elem.Prefix = source.PrefixRaw(prefix)
		rec.elems = append(rec.elems, elem)
	}

	if len(rec.elems) == 0 {
		return nil, nil
	}
	return rec, nil
}

// parseASN parses an ASN that can be either a string or number.
func parseASN(data json.RawMessage) uint32 {
	if len(data) == 0 {
		return 0
	}

	var num uint32
	if err := json.Unmarshal(data, &num); err == nil {
		return num
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		val, _ := strconv.ParseUint(str, 10, 32)
		return uint32(val)
	}

	return 0
}

// parsePath encodes the AS path into the inline segment form, keeping
// nested arrays as AS-SET segments.
// Input can be: [174, 3356, 65001] or [[174], [3356, 65001], 65002]
func parsePath(path []json.RawMessage) ([]byte, error) {
	var buf []byte
	for _, elem := range path {
		var num uint32
		if err := json.Unmarshal(elem, &num); err == nil {
			buf = source.AppendASN(buf, num)
			continue
		}

		var nums []uint32
		if err := json.Unmarshal(elem, &nums); err == nil {
			buf = source.AppendASSet(buf, nums...)
			continue
		}

		return nil, fmt.Errorf("cannot parse path segment %s", elem)
	}
	return buf, nil
}

// parseCommunities packs [ASN, value] tuples into the indexed community
// form, dropping malformed entries.
func parseCommunities(community [][]uint32) []byte {
	var buf []byte
	for _, tuple := range community {
		if len(tuple) != 2 || tuple[0] > 0xffff || tuple[1] > 0xffff {
			continue
		}
		buf = source.AppendCommunity(buf, uint16(tuple[0]), uint16(tuple[1]))
	}
	return buf
}

func applyOrigin(elem *source.RawElement, origin string) {
	switch origin {
	case "igp", "IGP":
		elem.HasOrigin = true
		elem.Origin = 0
	case "egp", "EGP":
		elem.HasOrigin = true
		elem.Origin = 1
	case "incomplete", "INCOMPLETE":
		elem.HasOrigin = true
		elem.Origin = 2
	}
}
