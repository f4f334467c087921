package stream

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/tiborschneider/go-routeviews/pkg/models"
	"github.com/tiborschneider/go-routeviews/pkg/source"
)

type appliedFilter struct {
	kind  source.FilterKind
	value string
}

type appliedInterval struct {
	start uint32
	stop  uint32
}

type appliedRecent struct {
	descriptor string
	live       bool
}

type fakeRecord struct {
	raw   source.RawRecord
	elems []source.RawElement
}

// fakeSource records every configuration call and replays a scripted
// sequence of records.
type fakeSource struct {
	filters    []appliedFilter
	intervals  []appliedInterval
	recents    []appliedRecent
	ribPeriods []uint32
	setOptions map[string]string
	started    bool
	closed     bool

	rejectFilters   bool
	rejectIntervals bool
	rejectRIBPeriod bool
	failStart       bool

	records []*fakeRecord
	idx     int
	cur     *fakeRecord
	elemIdx int
}

func newFakeSource(records ...*fakeRecord) *fakeSource {
	return &fakeSource{
		setOptions: make(map[string]string),
		records:    records,
	}
}

func (f *fakeSource) factory() (source.Source, error) { return f, nil }

func (f *fakeSource) AddFilter(kind source.FilterKind, value string) error {
	if f.rejectFilters {
		return errors.New("rejected")
	}
	f.filters = append(f.filters, appliedFilter{kind: kind, value: value})
	return nil
}

func (f *fakeSource) AddIntervalFilter(start, stop uint32) error {
	if f.rejectIntervals {
		return errors.New("rejected")
	}
	f.intervals = append(f.intervals, appliedInterval{start: start, stop: stop})
	return nil
}

func (f *fakeSource) AddRecentIntervalFilter(descriptor string, live bool) error {
	if f.rejectIntervals {
		return errors.New("rejected")
	}
	f.recents = append(f.recents, appliedRecent{descriptor: descriptor, live: live})
	return nil
}

func (f *fakeSource) AddRIBPeriodFilter(seconds uint32) error {
	if f.rejectRIBPeriod {
		return errors.New("rejected")
	}
	f.ribPeriods = append(f.ribPeriods, seconds)
	return nil
}

func (f *fakeSource) InterfaceID(name string) (int, bool) {
	if name == "broker" {
		return 1, true
	}
	return 0, false
}

func (f *fakeSource) Option(iface int, name string) (int, bool) {
	if iface == 1 && name == "cache-dir" {
		return 1, true
	}
	return 0, false
}

func (f *fakeSource) SetOption(opt int, value string) error {
	f.setOptions["cache-dir"] = value
	return nil
}

func (f *fakeSource) Start() error {
	if f.failStart {
		return errors.New("no")
	}
	f.started = true
	return nil
}

func (f *fakeSource) NextRecord() (*source.RawRecord, error) {
	if f.idx >= len(f.records) {
		return nil, nil
	}
	f.cur = f.records[f.idx]
	f.idx++
	f.elemIdx = 0
	return &f.cur.raw, nil
}

func (f *fakeSource) NextElement(rec *source.RawRecord) (*source.RawElement, error) {
	if f.cur == nil || rec != &f.cur.raw {
		return nil, errors.New("stale record")
	}
	if f.elemIdx >= len(f.cur.elems) {
		return nil, nil
	}
	elem := &f.cur.elems[f.elemIdx]
	f.elemIdx++
	return elem, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func validRecord(recType int, collector string, elems ...source.RawElement) *fakeRecord {
	rec := &fakeRecord{elems: elems}
	rec.raw.Status = source.StatusValid
	rec.raw.Type = recType
	rec.raw.TimeSec = 1705320000
	rec.raw.TimeUsec = 250000
	source.SetName(&rec.raw.Project, "ris")
	source.SetName(&rec.raw.Collector, collector)
	source.SetName(&rec.raw.Router, "router1")
	rec.raw.RouterIP = source.AddrRaw(netip.MustParseAddr("10.0.0.1"))
	return rec
}

func statusRecord(status source.Status) *fakeRecord {
	rec := validRecord(source.TypeUpdate, "rrc00")
	rec.raw.Status = status
	return rec
}

func ribElement(prefix string) source.RawElement {
	return source.RawElement{
		Type:    source.ElemTypeRIB,
		PeerIP:  source.AddrRaw(netip.MustParseAddr("192.0.2.99")),
		PeerASN: 6939,
		Prefix:  source.PrefixRaw(netip.MustParsePrefix(prefix)),
		NextHop: source.AddrRaw(netip.MustParseAddr("192.0.2.1")),
		ASPath:  source.AppendASN(nil, 6939),
	}
}

func TestOpenAppliesFiltersInOrder(t *testing.T) {
	fake := newFakeSource()
	q := NewQuery().
		Collector(RISAmsterdam).
		Collector(RISLondon).
		RecordType(Updates).
		Project(RIS)
	s, err := Open(q, fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	// Two filters of the same kind (OR) and two other kinds (AND) must
	// all reach the source, in insertion order.
	want := []appliedFilter{
		{source.FilterCollector, "rrc00"},
		{source.FilterCollector, "rrc01"},
		{source.FilterRecordType, "updates"},
		{source.FilterProject, "ris"},
	}
	if len(fake.filters) != len(want) {
		t.Fatalf("Expected %d filters, got %d", len(want), len(fake.filters))
	}
	for i, w := range want {
		if fake.filters[i] != w {
			t.Errorf("Filter[%d]: expected %v, got %v", i, w, fake.filters[i])
		}
	}
	if !fake.started {
		t.Error("Expected source to be started")
	}
}

func TestOpenCreateFailed(t *testing.T) {
	_, err := Open(NewQuery(), func() (source.Source, error) {
		return nil, errors.New("no handle")
	})
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("Expected ErrCreateFailed, got %v", err)
	}
}

func TestOpenReleasesHandleOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fakeSource)
		query   func() *Query
		want    error
	}{
		{
			name:    "filter rejected",
			prepare: func(f *fakeSource) { f.rejectFilters = true },
			query:   func() *Query { return NewQuery().Project(RIS) },
			want:    ErrFilterRejected,
		},
		{
			name:    "interval rejected",
			prepare: func(f *fakeSource) { f.rejectIntervals = true },
			query: func() *Query {
				return NewQuery().Interval(Interval{Start: time.Unix(100, 0)})
			},
			want: ErrIntervalRejected,
		},
		{
			name:    "recent interval rejected",
			prepare: func(f *fakeSource) { f.rejectIntervals = true },
			query: func() *Query {
				return NewQuery().Interval(Since{Amount: 1, Unit: Hours})
			},
			want: ErrRecentIntervalRejected,
		},
		{
			name:    "rib period rejected",
			prepare: func(f *fakeSource) { f.rejectRIBPeriod = true },
			query:   func() *Query { return NewQuery().RIBPeriod(3600) },
			want:    ErrRIBPeriodRejected,
		},
		{
			name:    "interface not found",
			prepare: func(f *fakeSource) {},
			query: func() *Query {
				return NewQuery().SetDataInterfaceOption("nope", "cache-dir", "/tmp")
			},
			want: ErrInterfaceNotFound,
		},
		{
			name:    "option not found",
			prepare: func(f *fakeSource) {},
			query: func() *Query {
				return NewQuery().SetDataInterfaceOption("broker", "nope", "/tmp")
			},
			want: ErrInterfaceOptionNotFound,
		},
		{
			name:    "start failed",
			prepare: func(f *fakeSource) { f.failStart = true },
			query:   NewQuery,
			want:    ErrStartFailed,
		},
		{
			name:    "embedded nul",
			prepare: func(f *fakeSource) {},
			query:   func() *Query { return NewQuery().CollectorName("rrc\x0000") },
			want:    ErrEmbeddedNul,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSource()
			tt.prepare(fake)
			_, err := Open(tt.query(), fake.factory)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if !fake.closed {
				t.Error("Expected handle to be released on failure")
			}
		})
	}
}

func TestOpenAppliesInterval(t *testing.T) {
	start := time.Date(2023, 11, 8, 9, 55, 0, 0, time.UTC)
	stop := time.Date(2023, 11, 8, 10, 55, 0, 0, time.UTC)

	fake := newFakeSource()
	_, err := Open(NewQuery().Interval(Interval{Start: start, Stop: stop}), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(fake.intervals) != 1 {
		t.Fatalf("Expected 1 interval, got %d", len(fake.intervals))
	}
	if fake.intervals[0].start != uint32(start.Unix()) {
		t.Errorf("Expected start %d, got %d", start.Unix(), fake.intervals[0].start)
	}
	if fake.intervals[0].stop != uint32(stop.Unix()) {
		t.Errorf("Expected stop %d, got %d", stop.Unix(), fake.intervals[0].stop)
	}
}

func TestOpenLiveIntervalHasNoUpperBound(t *testing.T) {
	fake := newFakeSource()
	_, err := Open(NewQuery().Interval(Interval{Start: time.Unix(1700000000, 0)}), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if fake.intervals[0].stop != 0 {
		t.Errorf("Expected stop sentinel 0, got %d", fake.intervals[0].stop)
	}
}

func TestOpenAppliesRecentInterval(t *testing.T) {
	fake := newFakeSource()
	_, err := Open(NewQuery().Interval(Since{Amount: 1, Unit: Hours, Live: true}), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(fake.recents) != 1 {
		t.Fatalf("Expected 1 recent interval, got %d", len(fake.recents))
	}
	if fake.recents[0].descriptor != "1 h" {
		t.Errorf("Expected descriptor %q, got %q", "1 h", fake.recents[0].descriptor)
	}
	if !fake.recents[0].live {
		t.Error("Expected live flag")
	}
}

func TestOpenWithoutIntervalAppliesNothing(t *testing.T) {
	fake := newFakeSource()
	_, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(fake.intervals) != 0 || len(fake.recents) != 0 {
		t.Error("Expected no interval calls for an open interval")
	}
}

func TestOpenAppliesCacheOption(t *testing.T) {
	fake := newFakeSource()
	_, err := Open(NewQuery().Cache("/tmp/bgp_cache"), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := fake.setOptions["cache-dir"]; got != "/tmp/bgp_cache" {
		t.Errorf("Expected cache-dir /tmp/bgp_cache, got %q", got)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status source.Status
		want   error
	}{
		{"filtered source", source.StatusFilteredSource, ErrSourceUnusable},
		{"empty source", source.StatusEmptySource, ErrSourceUnusable},
		{"corrupted source", source.StatusCorruptedSource, ErrSourceUnusable},
		{"corrupted record", source.StatusCorruptedRecord, ErrRecordCorrupted},
		{"unsupported record", source.StatusUnsupportedRecord, ErrRecordUnsupported},
		{"unknown status", source.Status(99), ErrUnknownRecordStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSource(statusRecord(tt.status))
			s, err := Open(NewQuery(), fake.factory)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if _, err := s.NextRecord(); !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOutsideIntervalIsSkipped(t *testing.T) {
	fake := newFakeSource(
		statusRecord(source.StatusOutsideInterval),
		statusRecord(source.StatusOutsideInterval),
		validRecord(source.TypeUpdate, "rrc00", ribElement("192.0.2.0/24")),
	)
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	elem, err := s.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if elem == nil {
		t.Fatal("Expected an element after skipped records")
	}
	if fake.idx != 3 {
		t.Errorf("Expected 3 pulls from the source, got %d", fake.idx)
	}
}

func TestCorruptedRecordTerminatesIteration(t *testing.T) {
	fake := newFakeSource(
		statusRecord(source.StatusCorruptedRecord),
		validRecord(source.TypeUpdate, "rrc00", ribElement("192.0.2.0/24")),
	)
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := s.Next(); !errors.Is(err, ErrRecordCorrupted) {
		t.Fatalf("Expected ErrRecordCorrupted, got %v", err)
	}

	// The sequence is terminated after the error.
	elem, err := s.Next()
	if err != nil || elem != nil {
		t.Fatalf("Expected terminated sequence, got elem=%v err=%v", elem, err)
	}
}

func TestRecordMetadata(t *testing.T) {
	fake := newFakeSource(validRecord(source.TypeRIB, "route-views.amsix"))
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	rec, err := s.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a record")
	}

	want := time.Unix(1705320000, 250000000).UTC()
	if !rec.Time.Equal(want) {
		t.Errorf("Expected time %v, got %v", want, rec.Time)
	}
	if rec.Project != "ris" {
		t.Errorf("Expected project ris, got %q", rec.Project)
	}
	if rec.Collector != "route-views.amsix" {
		t.Errorf("Expected collector route-views.amsix, got %q", rec.Collector)
	}
	if rec.Router != "router1" {
		t.Errorf("Expected router router1, got %q", rec.Router)
	}
	if rec.RouterIP != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("Expected router IP 10.0.0.1, got %v", rec.RouterIP)
	}
	if !rec.RIB {
		t.Error("Expected a RIB record")
	}
}

func TestRecordBadTypeTag(t *testing.T) {
	rec := validRecord(7, "rrc00")
	fake := newFakeSource(rec)
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.NextRecord(); !errors.Is(err, ErrRecordCorrupted) {
		t.Fatalf("Expected ErrRecordCorrupted, got %v", err)
	}
}

func TestRecordBadNameText(t *testing.T) {
	rec := validRecord(source.TypeUpdate, "rrc00")
	rec.raw.Collector[0] = 0xff
	rec.raw.Collector[1] = 0xfe
	fake := newFakeSource(rec)
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.NextRecord(); !errors.Is(err, ErrInvalidText) {
		t.Fatalf("Expected ErrInvalidText, got %v", err)
	}
}

func TestRecordInvalidatedByNewerPull(t *testing.T) {
	fake := newFakeSource(
		validRecord(source.TypeUpdate, "rrc00", ribElement("192.0.2.0/24")),
		validRecord(source.TypeUpdate, "rrc01", ribElement("198.51.100.0/24")),
	)
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	first, err := s.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord failed: %v", err)
	}
	if _, err := s.NextRecord(); err != nil {
		t.Fatalf("NextRecord failed: %v", err)
	}

	if _, err := first.NextElement(); !errors.Is(err, ErrRecordInvalidated) {
		t.Fatalf("Expected ErrRecordInvalidated, got %v", err)
	}
}

func TestClosedStreamFailsPulls(t *testing.T) {
	fake := newFakeSource(validRecord(source.TypeUpdate, "rrc00"))
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !fake.closed {
		t.Error("Expected source handle to be released")
	}
	if _, err := s.NextRecord(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}

func TestEndToEndRIBStream(t *testing.T) {
	fake := newFakeSource(validRecord(
		source.TypeRIB, "rrc00",
		ribElement("192.0.2.0/24"),
		ribElement("198.51.100.0/24"),
	))
	s, err := Open(NewQuery(), fake.factory)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var got []*models.Element
	for {
		elem, err := s.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if elem == nil {
			break
		}
		got = append(got, elem)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 elements, got %d", len(got))
	}
	wantPrefixes := []string{"192.0.2.0/24", "198.51.100.0/24"}
	for i, elem := range got {
		if elem.Kind != models.ElemRIB {
			t.Errorf("Element[%d]: expected kind rib, got %s", i, elem.Kind)
		}
		if elem.Update.Prefix.String() != wantPrefixes[i] {
			t.Errorf("Element[%d]: expected prefix %s, got %s", i, wantPrefixes[i], elem.Update.Prefix)
		}
		if elem.PeerASN != 6939 {
			t.Errorf("Element[%d]: expected peer ASN 6939, got %d", i, elem.PeerASN)
		}
		// Elements without an origin timestamp inherit the record time.
		if !elem.Time.Equal(time.Unix(1705320000, 250000000).UTC()) {
			t.Errorf("Element[%d]: unexpected time %v", i, elem.Time)
		}
	}

	// Termination is clean and sticky.
	if elem, err := s.Next(); elem != nil || err != nil {
		t.Fatalf("Expected clean termination, got elem=%v err=%v", elem, err)
	}
}
