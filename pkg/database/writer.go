// Package database provides PostgreSQL batch writing of decoded elements.
package database

import (
	"database/sql"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/tiborschneider/go-routeviews/pkg/models"
)

const (
	batchSize     = 200
	batchInterval = 2 * time.Second
	queueSize     = 10000
)

// ElementWriter handles batch writing of decoded elements to PostgreSQL.
type ElementWriter struct {
	db      *sql.DB
	queue   chan models.Element
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	// Stats
	elementsWritten uint64
	elementsDropped uint64
	batchesWritten  uint64
}

// NewElementWriter creates a new database element writer.
func NewElementWriter(databaseURL string) (*ElementWriter, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Connected to PostgreSQL database")

	return &ElementWriter{
		db:    db,
		queue: make(chan models.Element, queueSize),
		done:  make(chan struct{}),
	}, nil
}

// Start begins the background writer goroutine.
func (w *ElementWriter) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.writerLoop()
	log.Printf("Database element writer started")
}

// Stop gracefully shuts down the writer, flushing remaining elements.
func (w *ElementWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	w.db.Close()
	log.Printf("Database element writer stopped (written=%d, dropped=%d, batches=%d)",
		w.elementsWritten, w.elementsDropped, w.batchesWritten)
}

// Write queues an element for batch writing.
func (w *ElementWriter) Write(elem models.Element) {
	select {
	case w.queue <- elem:
	default:
		// Queue full, drop element
		w.elementsDropped++
		if w.elementsDropped%1000 == 0 {
			log.Printf("Element queue full, dropped %d elements", w.elementsDropped)
		}
	}
}

// Stats returns writer statistics.
func (w *ElementWriter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"elements_written": w.elementsWritten,
		"elements_dropped": w.elementsDropped,
		"batches_written":  w.batchesWritten,
		"queue_len":        len(w.queue),
		"queue_cap":        cap(w.queue),
	}
}

func (w *ElementWriter) writerLoop() {
	defer w.wg.Done()

	batch := make([]models.Element, 0, batchSize)
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case elem := <-w.queue:
			batch = append(batch, elem)
			if len(batch) >= batchSize {
				w.writeBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.writeBatch(batch)
				batch = batch[:0]
			}

		case <-w.done:
			// Flush remaining elements
			close(w.queue)
			for elem := range w.queue {
				batch = append(batch, elem)
				if len(batch) >= batchSize {
					w.writeBatch(batch)
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				w.writeBatch(batch)
			}
			return
		}
	}
}

func (w *ElementWriter) writeBatch(batch []models.Element) {
	if len(batch) == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		log.Printf("Failed to begin transaction: %v", err)
		return
	}
	defer tx.Rollback()

	written := 0
	for i := range batch {
		if w.writeElement(tx, &batch[i]) {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("Failed to commit batch: %v", err)
		return
	}

	w.elementsWritten += uint64(written)
	w.batchesWritten++
}

func (w *ElementWriter) writeElement(tx *sql.Tx, elem *models.Element) bool {
	var prefix, nextHop, asPath, communities interface{}
	var origin, med, localPref interface{}
	var oldState, newState interface{}

	if p, ok := elem.RoutePrefix(); ok {
		prefix = p.String()
	}
	if u := elem.Update; u != nil {
		nextHop = u.NextHop.String()
		asPath = pathString(u.ASPath)
		communities = communityString(u.Communities)
		if u.Origin != nil {
			origin = u.Origin.String()
		}
		if u.MED != nil {
			med = *u.MED
		}
		if u.LocalPref != nil {
			localPref = *u.LocalPref
		}
	}
	if elem.Kind == models.ElemPeerState {
		oldState = elem.OldState.String()
		newState = elem.NewState.String()
	}

	_, err := tx.Exec(`
		INSERT INTO bgp_elements (
			elem_time, elem_kind, peer_asn, peer_ip,
			prefix, next_hop, as_path, communities,
			origin, med, local_pref, old_state, new_state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		elem.Time,
		elem.Kind.String(),
		elem.PeerASN,
		elem.PeerIP.String(),
		prefix,
		nextHop,
		asPath,
		communities,
		origin,
		med,
		localPref,
		oldState,
		newState,
	)

	if err != nil {
		log.Printf("Failed to insert element: %v", err)
		return false
	}

	return true
}

func pathString(path []models.AsSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		parts[i] = seg.String()
	}
	return strings.Join(parts, " ")
}

func communityString(communities []models.Community) string {
	parts := make([]string, len(communities))
	for i, c := range communities {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
