package stream

import (
	"fmt"
	"net/netip"
	"time"
	"unicode/utf8"

	"github.com/tiborschneider/go-routeviews/pkg/models"
	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// Record is a borrowed decode view over one pulled record. Its metadata is
// decoded eagerly; elements are pulled one at a time with NextElement. A
// Record is valid only until the next record is pulled from its stream, and
// fails with ErrRecordInvalidated afterwards.
type Record struct {
	stream *Stream
	raw    *source.RawRecord
	gen    uint64

	Time      time.Time
	Project   string
	Collector string
	Router    string
	RouterIP  netip.Addr

	// RIB marks a table dump record rather than an incremental update.
	RIB bool
}

func newRecord(s *Stream, raw *source.RawRecord) (*Record, error) {
	rib := false
	switch raw.Type {
	case source.TypeUpdate:
	case source.TypeRIB:
		rib = true
	default:
		return nil, fmt.Errorf("%w: record type tag %d", ErrRecordCorrupted, raw.Type)
	}

	project, err := decodeName(raw.Project[:])
	if err != nil {
		return nil, err
	}
	collector, err := decodeName(raw.Collector[:])
	if err != nil {
		return nil, err
	}
	router, err := decodeName(raw.Router[:])
	if err != nil {
		return nil, err
	}
	routerIP, err := decodeAddr(raw.RouterIP)
	if err != nil {
		return nil, err
	}

	return &Record{
		stream:    s,
		raw:       raw,
		gen:       s.gen,
		Time:      timeFromParts(raw.TimeSec, raw.TimeUsec),
		Project:   project,
		Collector: collector,
		Router:    router,
		RouterIP:  routerIP,
		RIB:       rib,
	}, nil
}

// NextElement decodes and returns the record's next element. It returns
// nil, nil when the record is exhausted.
func (r *Record) NextElement() (*models.Element, error) {
	if r.stream == nil || r.stream.src == nil {
		return nil, ErrClosed
	}
	if r.gen != r.stream.gen {
		return nil, ErrRecordInvalidated
	}
	raw, err := r.stream.src.NextElement(r.raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrElementPullFailed, err)
	}
	if raw == nil {
		return nil, nil
	}
	return decodeElement(r, raw)
}

// decodeName extracts the string from a fixed-capacity NUL terminated
// buffer. The content before the first NUL must be valid UTF-8.
func decodeName(buf []byte) (string, error) {
	n := len(buf)
	for i, b := range buf {
		if b == 0 {
			n = i
			break
		}
	}
	if !utf8.Valid(buf[:n]) {
		return "", fmt.Errorf("%w: %q", ErrInvalidText, buf[:n])
	}
	return string(buf[:n]), nil
}

func timeFromParts(sec, usec uint32) time.Time {
	return time.Unix(int64(sec), int64(usec)*1000).UTC()
}
