// Package rislive implements a live record source on top of the RIPE RIS
// Live WebSocket API.
//
// RIS Live only carries incremental updates from RIS collectors, starting
// now: record types other than updates, historical intervals and broker-side
// element filters are rejected when the stream is configured. Collector
// filters turn into subscriptions; element type, peer ASN and IP version
// filters are applied before records are handed out.
package rislive

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// DefaultURL is the WebSocket endpoint for RIS Live.
const DefaultURL = "wss://ris-live.ripe.net/v1/ws/"

const (
	// Connection settings
	initialReconnectDelay = 5 * time.Second
	maxReconnectDelay     = 5 * time.Minute
	reconnectBackoff      = 2.0
	pingInterval          = 30 * time.Second
	connectionTimeout     = 60 * time.Second
	writeTimeout          = 10 * time.Second

	defaultBufferSize = 8192
)

// Data interface and option ids resolved by InterfaceID and Option.
const (
	ifaceRISLive = 1

	optURL        = 1
	optBufferSize = 2
)

// Source streams live BGP updates from RIS Live with automatic reconnection.
// It implements source.Source; create handles with New or Factory and drive
// them through stream.Open.
type Source struct {
	url        string
	bufferSize int

	collectors  []string
	elemTypes   map[int]bool
	peerASNs    map[uint32]bool
	notPeerASNs map[uint32]bool
	ipVersion   int

	started   bool
	records   chan *parsedRecord
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// current record state, owned by the pulling goroutine
	cur     *parsedRecord
	elemIdx int

	// Stats
	messagesReceived uint64
	recordsParsed    uint64
	parseErrors      uint64
	reconnects       uint64
	connected        atomic.Bool
}

// New creates a new, unstarted RIS Live source.
func New() *Source {
	return &Source{
		url:         DefaultURL,
		bufferSize:  defaultBufferSize,
		elemTypes:   make(map[int]bool),
		peerASNs:    make(map[uint32]bool),
		notPeerASNs: make(map[uint32]bool),
		done:        make(chan struct{}),
	}
}

// Factory creates one RIS Live source handle. Pass it to stream.Open.
func Factory() (source.Source, error) {
	return New(), nil
}

// AddFilter registers a filter. Filters RIS Live cannot honor are rejected.
func (s *Source) AddFilter(kind source.FilterKind, value string) error {
	if s.started {
		return errors.New("source already started")
	}
	switch kind {
	case source.FilterProject:
		if value != "ris" {
			return fmt.Errorf("project %q is not served by RIS Live", value)
		}
	case source.FilterCollector:
		s.collectors = append(s.collectors, value)
	case source.FilterRecordType:
		if value != "updates" {
			return fmt.Errorf("record type %q is not available on RIS Live", value)
		}
	case source.FilterElemType:
		switch value {
		case "announcements":
			s.elemTypes[source.ElemTypeAnnouncement] = true
		case "withdrawals":
			s.elemTypes[source.ElemTypeWithdrawal] = true
		default:
			return fmt.Errorf("element type %q is not available on RIS Live", value)
		}
	case source.FilterPeerASN:
		asn, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("peer ASN %q: %w", value, err)
		}
		s.peerASNs[uint32(asn)] = true
	case source.FilterNotPeerASN:
		asn, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("peer ASN %q: %w", value, err)
		}
		s.notPeerASNs[uint32(asn)] = true
	case source.FilterIPVersion:
		switch value {
		case "4":
			s.ipVersion = 4
		case "6":
			s.ipVersion = 6
		default:
			return fmt.Errorf("bad IP version %q", value)
		}
	default:
		return fmt.Errorf("filter %s is not supported by RIS Live", kind)
	}
	return nil
}

// AddIntervalFilter accepts only open-ended intervals: RIS Live cannot
// replay the past, so streaming always begins now and a nonzero stop is
// rejected.
func (s *Source) AddIntervalFilter(start, stop uint32) error {
	if stop != 0 {
		return errors.New("RIS Live cannot replay historical intervals")
	}
	return nil
}

// AddRecentIntervalFilter accepts only live windows; the backlog part of the
// window cannot be replayed and streaming begins now.
func (s *Source) AddRecentIntervalFilter(descriptor string, live bool) error {
	if !live {
		return errors.New("RIS Live only supports live intervals")
	}
	return nil
}

// AddRIBPeriodFilter always fails: RIS Live serves no RIB dumps.
func (s *Source) AddRIBPeriodFilter(seconds uint32) error {
	return errors.New("RIS Live serves no RIB dumps")
}

// InterfaceID resolves the single "rislive" data interface.
func (s *Source) InterfaceID(name string) (int, bool) {
	if name == "rislive" {
		return ifaceRISLive, true
	}
	return 0, false
}

// Option resolves the "url" and "buffer-size" options.
func (s *Source) Option(iface int, name string) (int, bool) {
	if iface != ifaceRISLive {
		return 0, false
	}
	switch name {
	case "url":
		return optURL, true
	case "buffer-size":
		return optBufferSize, true
	}
	return 0, false
}

// SetOption sets a previously resolved option.
func (s *Source) SetOption(opt int, value string) error {
	if s.started {
		return errors.New("source already started")
	}
	switch opt {
	case optURL:
		s.url = value
	case optBufferSize:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("bad buffer size %q", value)
		}
		s.bufferSize = n
	default:
		return fmt.Errorf("unknown option %d", opt)
	}
	return nil
}

// Start begins the WebSocket connection in a goroutine.
func (s *Source) Start() error {
	if s.started {
		return errors.New("source already started")
	}
	s.started = true
	s.records = make(chan *parsedRecord, s.bufferSize)
	s.wg.Add(1)
	go s.runLoop()
	log.Printf("[rislive] source started (collectors=%v)", s.collectors)
	return nil
}

// NextRecord blocks until the next update record arrives. It returns nil
// after Close, or when the connection is permanently gone.
func (s *Source) NextRecord() (*source.RawRecord, error) {
	if !s.started {
		return nil, errors.New("source not started")
	}
	rec, ok := <-s.records
	if !ok {
		return nil, nil
	}
	s.cur = rec
	s.elemIdx = 0
	return &rec.raw, nil
}

// NextElement returns the next element of rec, or nil when exhausted. Only
// the record most recently returned by NextRecord is live.
func (s *Source) NextElement(rec *source.RawRecord) (*source.RawElement, error) {
	if s.cur == nil || rec != &s.cur.raw {
		return nil, errors.New("record was invalidated by a newer pull")
	}
	if s.elemIdx >= len(s.cur.elems) {
		return nil, nil
	}
	elem := &s.cur.elems[s.elemIdx]
	s.elemIdx++
	return elem, nil
}

// Close shuts the source down and unblocks any pending NextRecord. It is
// safe to call from another goroutine to abort a blocked pull, and safe to
// call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

// Stats returns current statistics.
func (s *Source) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected":         s.connected.Load(),
		"messages_received": atomic.LoadUint64(&s.messagesReceived),
		"records_parsed":    atomic.LoadUint64(&s.recordsParsed),
		"parse_errors":      atomic.LoadUint64(&s.parseErrors),
		"reconnects":        atomic.LoadUint64(&s.reconnects),
	}
}

func (s *Source) runLoop() {
	defer s.wg.Done()
	defer close(s.records)

	reconnectDelay := initialReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		err := s.connectAndStream()
		if err != nil {
			atomic.AddUint64(&s.reconnects, 1)
			log.Printf("[rislive] connection error: %v, reconnecting in %v", err, reconnectDelay)
		}

		select {
		case <-s.done:
			return
		case <-time.After(reconnectDelay):
			// Exponential backoff
			reconnectDelay = time.Duration(float64(reconnectDelay) * reconnectBackoff)
			if reconnectDelay > maxReconnectDelay {
				reconnectDelay = maxReconnectDelay
			}
		}
	}
}

func (s *Source) connectAndStream() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: connectionTimeout,
	}

	log.Printf("[rislive] connecting to %s", s.url)
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	// One subscription per collector, or a firehose subscription if the
	// query named none.
	hosts := s.collectors
	if len(hosts) == 0 {
		hosts = []string{""}
	}
	for _, host := range hosts {
		data := map[string]interface{}{"type": "UPDATE"}
		if host != "" {
			data["host"] = host
		}
		subscribeMsg := map[string]interface{}{
			"type": "ris_subscribe",
			"data": data,
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(subscribeMsg); err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	s.connected.Store(true)
	defer s.connected.Store(false)
	log.Printf("[rislive] connected and subscribed")

	conn.SetPongHandler(func(string) error {
		return nil
	})

	// Ping goroutine; also closes the connection on done to unblock
	// ReadMessage.
	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-s.done:
				conn.Close()
				return
			}
		}
	}()
	defer close(pingDone)

	for {
		select {
		case <-s.done:
			return nil
		default:
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			select {
			case <-s.done:
				return nil
			default:
			}
			return fmt.Errorf("read failed: %w", err)
		}

		if messageType != websocket.TextMessage {
			continue
		}

		atomic.AddUint64(&s.messagesReceived, 1)

		rec, err := parseMessage(message)
		if err != nil {
			// Not all messages are updates, this is fine
			if atomic.AddUint64(&s.parseErrors, 1) <= 10 {
				log.Printf("[rislive] parse error: %v", err)
			}
			continue
		}
		if rec == nil {
			continue
		}

		rec.elems = s.filterElems(rec.elems)
		if len(rec.elems) == 0 {
			continue
		}

		atomic.AddUint64(&s.recordsParsed, 1)
		select {
		case s.records <- rec:
		case <-s.done:
			return nil
		}
	}
}

// filterElems applies the element-level filters the subscription could not
// express.
func (s *Source) filterElems(elems []source.RawElement) []source.RawElement {
	kept := elems[:0]
	for i := range elems {
		if s.keepElem(&elems[i]) {
			kept = append(kept, elems[i])
		}
	}
	return kept
}

func (s *Source) keepElem(elem *source.RawElement) bool {
	if len(s.elemTypes) > 0 && !s.elemTypes[elem.Type] {
		return false
	}
	if s.ipVersion != 0 && int(elem.Prefix.Addr.Version) != s.ipVersion {
		return false
	}
	if len(s.peerASNs) > 0 && !s.peerASNs[elem.PeerASN] {
		return false
	}
	if s.notPeerASNs[elem.PeerASN] {
		return false
	}
	return true
}
