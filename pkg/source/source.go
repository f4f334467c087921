// Package source defines the contract between a stream and its record
// provider, along with the raw payload forms a provider hands back.
//
// A provider hands out one raw record at a time and one raw element of that
// record at a time. Both are invalidated by the next pull, so callers must
// never retain them; the stream package enforces that discipline and decodes
// the raw forms into owned values.
package source

// Status classifies a record returned by NextRecord.
type Status int

const (
	// StatusValid marks a record that carries decodable data.
	StatusValid Status = iota
	// StatusFilteredSource marks a dump that was filtered out entirely.
	StatusFilteredSource
	// StatusEmptySource marks a dump that contained no records.
	StatusEmptySource
	// StatusCorruptedSource marks a dump that could not be read at all.
	StatusCorruptedSource
	// StatusCorruptedRecord marks a single unreadable record.
	StatusCorruptedRecord
	// StatusUnsupportedRecord marks a record in a format the provider
	// cannot decode.
	StatusUnsupportedRecord
	// StatusOutsideInterval marks a record outside the configured time
	// interval. Not an error: the caller pulls again.
	StatusOutsideInterval
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusFilteredSource:
		return "filtered-source"
	case StatusEmptySource:
		return "empty-source"
	case StatusCorruptedSource:
		return "corrupted-source"
	case StatusCorruptedRecord:
		return "corrupted-record"
	case StatusUnsupportedRecord:
		return "unsupported-record"
	case StatusOutsideInterval:
		return "outside-interval"
	}
	return "unknown"
}

// FilterKind enumerates the filters a provider understands. Filters of the
// same kind combine with OR, filters of different kinds with AND.
type FilterKind int

const (
	FilterRecordType FilterKind = iota
	FilterCollector
	FilterProject
	FilterASPath
	FilterCommunity
	FilterIPVersion
	FilterOriginASN
	FilterPeerASN
	FilterNotPeerASN
	FilterPrefixAny
	FilterPrefixExact
	FilterPrefixLess
	FilterPrefixMore
	FilterElemType
)

func (k FilterKind) String() string {
	switch k {
	case FilterRecordType:
		return "record-type"
	case FilterCollector:
		return "collector"
	case FilterProject:
		return "project"
	case FilterASPath:
		return "aspath"
	case FilterCommunity:
		return "community"
	case FilterIPVersion:
		return "ipversion"
	case FilterOriginASN:
		return "origin-asn"
	case FilterPeerASN:
		return "peer-asn"
	case FilterNotPeerASN:
		return "not-peer-asn"
	case FilterPrefixAny:
		return "prefix-any"
	case FilterPrefixExact:
		return "prefix-exact"
	case FilterPrefixLess:
		return "prefix-less"
	case FilterPrefixMore:
		return "prefix-more"
	case FilterElemType:
		return "elem-type"
	}
	return "unknown"
}

// Source is one provider handle. All configuration calls must happen before
// Start; NextRecord and NextElement drive the pull loop afterwards. A Source
// is single-threaded and blocks the caller on any I/O it performs, possibly
// indefinitely in live mode.
type Source interface {
	// AddFilter registers one filter entry.
	AddFilter(kind FilterKind, value string) error

	// AddIntervalFilter bounds the stream to [start, stop] in epoch
	// seconds. stop == 0 means no upper bound (live mode).
	AddIntervalFilter(start, stop uint32) error

	// AddRecentIntervalFilter bounds the stream to a relative window
	// described like "1 h". With live set, the stream keeps following new
	// records after catching up.
	AddRecentIntervalFilter(descriptor string, live bool) error

	// AddRIBPeriodFilter sets the minimum spacing between two RIB files of
	// the same collector, in seconds.
	AddRIBPeriodFilter(seconds uint32) error

	// InterfaceID resolves a data interface by name.
	InterfaceID(name string) (int, bool)

	// Option resolves an option of a data interface by name.
	Option(iface int, name string) (int, bool)

	// SetOption sets the value of a previously resolved option.
	SetOption(opt int, value string) error

	// Start makes the source begin producing records. No filters or
	// options may be applied afterwards.
	Start() error

	// NextRecord returns the next raw record, or nil at the end of the
	// source. The returned record is only valid until the next call.
	NextRecord() (*RawRecord, error)

	// NextElement returns the next raw element of rec, or nil when the
	// record is exhausted. The returned element is only valid until the
	// next call.
	NextElement(rec *RawRecord) (*RawElement, error)

	// Close releases the handle. No other method may be called afterwards.
	Close() error
}

// Factory creates one unstarted source handle per call.
type Factory func() (Source, error)
