package stream

import (
	"fmt"
	"strings"

	"github.com/tiborschneider/go-routeviews/pkg/models"
	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// Stream pulls records from a started source and decodes them. A Stream
// owns exactly one source handle and at most one live Record; pulling a new
// record invalidates the previous one. Streams are single-threaded: every
// pull blocks the caller until the source returns, which in live mode can be
// indefinitely. Cancel by calling Close, which unblocks and releases the
// handle.
type Stream struct {
	src source.Source

	// cur is the record currently driving the flattened iteration.
	cur *Record

	// gen counts pulled records. Each Record remembers the generation it
	// was pulled at and refuses to decode once a newer pull happened.
	gen uint64

	done bool
}

// Open creates a source handle via create, applies q to it in insertion
// order and starts it. The handle is released again on every failure path.
func Open(q *Query, create source.Factory) (*Stream, error) {
	src, err := create()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	if src == nil {
		return nil, ErrCreateFailed
	}
	if err := configure(q, src); err != nil {
		src.Close()
		return nil, err
	}
	if err := src.Start(); err != nil {
		src.Close()
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	return &Stream{src: src}, nil
}

func configure(q *Query, src source.Source) error {
	for _, f := range q.filters {
		if err := checkNul(f.value); err != nil {
			return err
		}
		if err := src.AddFilter(f.kind, f.value); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrFilterRejected, f.kind, f.value, err)
		}
	}

	if q.interval != nil {
		if err := q.interval.apply(src); err != nil {
			return err
		}
	}

	if q.hasRIBPeriod {
		if err := src.AddRIBPeriodFilter(q.ribPeriod); err != nil {
			return fmt.Errorf("%w: %v", ErrRIBPeriodRejected, err)
		}
	}

	for _, o := range q.options {
		for _, v := range []string{o.iface, o.option, o.value} {
			if err := checkNul(v); err != nil {
				return err
			}
		}
		iface, ok := src.InterfaceID(o.iface)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInterfaceNotFound, o.iface)
		}
		opt, ok := src.Option(iface, o.option)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInterfaceOptionNotFound, o.option)
		}
		if err := src.SetOption(opt, o.value); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrSetOptionFailed, o.iface, o.option, err)
		}
	}

	return nil
}

func checkNul(v string) error {
	if strings.IndexByte(v, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrEmbeddedNul, v)
	}
	return nil
}

// Close releases the source handle, unblocking any pull in flight inside
// the source. The stream must not be used afterwards.
func (s *Stream) Close() error {
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	s.cur = nil
	s.done = true
	return err
}

// NextRecord returns the next valid record, skipping records the source
// flags as outside the time interval. It returns nil at the end of the
// stream. If the flattened iteration already holds a record, that record is
// handed over instead of pulling a fresh one.
//
// The returned record stays valid only until the next pull from the stream.
func (s *Stream) NextRecord() (*Record, error) {
	if s.cur != nil {
		r := s.cur
		s.cur = nil
		return r, nil
	}
	return s.pullRecord()
}

func (s *Stream) pullRecord() (*Record, error) {
	if s.src == nil {
		return nil, ErrClosed
	}
	for {
		raw, err := s.src.NextRecord()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordPullFailed, err)
		}
		if raw == nil {
			return nil, nil
		}
		switch raw.Status {
		case source.StatusValid:
			s.gen++
			return newRecord(s, raw)
		case source.StatusOutsideInterval:
			// Not an error. Pull again.
			continue
		case source.StatusFilteredSource, source.StatusEmptySource, source.StatusCorruptedSource:
			return nil, ErrSourceUnusable
		case source.StatusCorruptedRecord:
			return nil, ErrRecordCorrupted
		case source.StatusUnsupportedRecord:
			return nil, ErrRecordUnsupported
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownRecordStatus, raw.Status)
		}
	}
}

// Next returns the next decoded element, crossing record boundaries
// transparently. It returns nil, nil at the end of the stream. After a
// non-nil error the stream is terminated and further calls return nil, nil.
func (s *Stream) Next() (*models.Element, error) {
	if s.done {
		return nil, nil
	}
	for {
		if s.cur == nil {
			r, err := s.pullRecord()
			if err != nil {
				s.done = true
				return nil, err
			}
			if r == nil {
				s.done = true
				return nil, nil
			}
			s.cur = r
		}
		elem, err := s.cur.NextElement()
		if err != nil {
			s.done = true
			return nil, err
		}
		if elem == nil {
			// Record exhausted, move on to the next one.
			s.cur = nil
			continue
		}
		return elem, nil
	}
}
