// Package stream decodes a feed of BGP routing records into typed elements.
//
// A Query describes which records to fetch and which filters to apply. Open
// turns it into a Stream over a record source, which yields one decoded
// element at a time:
//
//	q := stream.NewQuery().
//		Collector(stream.RouteViewsAmsix).
//		RecordType(stream.Updates).
//		Interval(stream.Since{Amount: 1, Unit: stream.Hours})
//	s, err := stream.Open(q, factory)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//	for {
//		elem, err := s.Next()
//		if err != nil {
//			log.Fatal(err)
//		}
//		if elem == nil {
//			break
//		}
//		fmt.Println(elem.Time)
//	}
//
// Filters of the same kind combine with OR, filters of different kinds with
// AND: Project(RouteViews) plus Project(RIS) matches records from either
// project, while Project(RouteViews) plus RecordType(Updates) matches only
// update records from RouteViews.
package stream

import (
	"strconv"

	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// RecordType filters by the kind of dump a record came from.
type RecordType int

const (
	// Updates are the individual, more frequent incremental dumps.
	Updates RecordType = iota
	// RIBs are entire routing table dumps.
	RIBs
)

// IPVersion limits a query to one address family.
type IPVersion int

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

// PrefixMatch selects how a prefix filter compares against route prefixes.
type PrefixMatch int

const (
	// PrefixAny matches the exact prefix, a less specific or a more
	// specific one.
	PrefixAny PrefixMatch = iota
	// PrefixExact matches only the exact prefix.
	PrefixExact
	// PrefixLess matches the exact prefix or a less specific one.
	PrefixLess
	// PrefixMore matches the exact prefix or a more specific one.
	PrefixMore
)

// ElementType filters by the kind of element.
type ElementType int

const (
	ElementRIBs ElementType = iota
	ElementWithdrawals
	ElementAnnouncements
	ElementPeerStates
)

type filterEntry struct {
	kind  source.FilterKind
	value string
}

type optionEntry struct {
	iface  string
	option string
	value  string
}

// Query accumulates filters, the time interval and source options for a
// stream. The zero value is an empty query matching everything. Build it
// with the chaining methods and pass it to Open; a Query performs no I/O
// itself.
type Query struct {
	filters      []filterEntry
	interval     FilterInterval
	ribPeriod    uint32
	hasRIBPeriod bool
	options      []optionEntry
}

// NewQuery creates a new, empty query.
func NewQuery() *Query {
	return &Query{}
}

// RecordType keeps only records of the given kind.
func (q *Query) RecordType(t RecordType) *Query {
	v := "updates"
	if t == RIBs {
		v = "ribs"
	}
	return q.add(source.FilterRecordType, v)
}

// Collector keeps only records from the given collector.
func (q *Query) Collector(c Collector) *Query {
	return q.add(source.FilterCollector, string(c))
}

// CollectorName keeps only records from the collector with the given raw
// name, for collectors missing from the catalog.
func (q *Query) CollectorName(name string) *Query {
	return q.add(source.FilterCollector, name)
}

// Project keeps only records from the given project.
func (q *Query) Project(p Project) *Query {
	return q.add(source.FilterProject, string(p))
}

// ASPath keeps only elements whose AS path matches the regular expression.
// `^` anchors the start of the path, `$` the end, and `_` separates adjacent
// AS numbers: `^681_1444_` matches paths starting with AS681 then AS1444.
func (q *Query) ASPath(re string) *Query {
	return q.add(source.FilterASPath, re)
}

// Community keeps only elements carrying a matching community. The value is
// an `ASN:value` pair; either side may be `*` to match anything.
func (q *Query) Community(c string) *Query {
	return q.add(source.FilterCommunity, c)
}

// IPVersion keeps only IPv4 or only IPv6 prefixes.
func (q *Query) IPVersion(v IPVersion) *Query {
	return q.add(source.FilterIPVersion, strconv.Itoa(int(v)))
}

// OriginASN keeps only elements originated by the given AS.
func (q *Query) OriginASN(asn uint32) *Query {
	return q.add(source.FilterOriginASN, strconv.FormatUint(uint64(asn), 10))
}

// PeerASN keeps only elements received from the given peer AS.
func (q *Query) PeerASN(asn uint32) *Query {
	return q.add(source.FilterPeerASN, strconv.FormatUint(uint64(asn), 10))
}

// NotPeerASN drops elements received from the given peer AS.
func (q *Query) NotPeerASN(asn uint32) *Query {
	return q.add(source.FilterNotPeerASN, strconv.FormatUint(uint64(asn), 10))
}

// Prefix keeps only elements about the given IPv4 or IPv6 prefix, compared
// according to kind.
func (q *Query) Prefix(kind PrefixMatch, prefix string) *Query {
	fk := source.FilterPrefixAny
	switch kind {
	case PrefixExact:
		fk = source.FilterPrefixExact
	case PrefixLess:
		fk = source.FilterPrefixLess
	case PrefixMore:
		fk = source.FilterPrefixMore
	}
	return q.add(fk, prefix)
}

// ElementType keeps only elements of the given kind.
func (q *Query) ElementType(t ElementType) *Query {
	v := "ribs"
	switch t {
	case ElementWithdrawals:
		v = "withdrawals"
	case ElementAnnouncements:
		v = "announcements"
	case ElementPeerStates:
		v = "peerstates"
	}
	return q.add(source.FilterElemType, v)
}

// Interval sets the time window of the query. A nil interval leaves the
// query unbounded on both ends.
func (q *Query) Interval(iv FilterInterval) *Query {
	q.interval = iv
	return q
}

// RIBPeriod sets the minimum time between two consecutive RIB files of the
// same collector, in seconds.
func (q *Query) RIBPeriod(secs uint32) *Query {
	q.ribPeriod = secs
	q.hasRIBPeriod = true
	return q
}

// Cache makes the broker interface store fetched dump files under dir.
func (q *Query) Cache(dir string) *Query {
	return q.SetDataInterfaceOption("broker", "cache-dir", dir)
}

// SetDataInterfaceOption sets an option of a named data interface of the
// source.
func (q *Query) SetDataInterfaceOption(iface, option, value string) *Query {
	q.options = append(q.options, optionEntry{iface: iface, option: option, value: value})
	return q
}

// Run opens a stream over a fresh source handle and starts it.
func (q *Query) Run(create source.Factory) (*Stream, error) {
	return Open(q, create)
}

func (q *Query) add(kind source.FilterKind, value string) *Query {
	q.filters = append(q.filters, filterEntry{kind: kind, value: value})
	return q
}
