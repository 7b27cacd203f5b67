package history

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// defaultQueueSize is the async writer's buffered queue depth.
const defaultQueueSize = 256

// writeTimeout bounds each background Persist call.
const writeTimeout = 10 * time.Second

// AsyncWriter decouples history persistence from the response path. Enqueue
// never blocks: when the queue is full the record is dropped and counted.
// Persist errors are logged and counted, never surfaced to callers.
type AsyncWriter struct {
	store Store
	queue chan *Record

	dropped   atomic.Int64
	failed    atomic.Int64
	onFailure func()

	wg      sync.WaitGroup
	closing atomic.Bool
}

// NewAsyncWriter starts a writer draining into store.
func NewAsyncWriter(store Store, queueSize int) *AsyncWriter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &AsyncWriter{
		store: store,
		queue: make(chan *Record, queueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// OnFailure registers a hook invoked once per dropped or failed write.
// Must be called before the writer receives traffic.
func (w *AsyncWriter) OnFailure(fn func()) {
	w.onFailure = fn
}

// Enqueue queues a record for persistence and returns immediately. A zero ID
// is filled in; a zero timestamp is set to now.
func (w *AsyncWriter) Enqueue(record *Record) {
	if w.closing.Load() {
		return
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	select {
	case w.queue <- record:
	default:
		w.dropped.Add(1)
		w.noteFailure()
		log.Printf("history: queue full, dropped record for session %s", record.SessionID)
	}
}

// Dropped returns how many records were discarded due to a full queue.
func (w *AsyncWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Failed returns how many Persist calls returned an error.
func (w *AsyncWriter) Failed() int64 {
	return w.failed.Load()
}

// Close stops accepting records, drains the queue, and waits for the
// background writer to finish.
func (w *AsyncWriter) Close() {
	if w.closing.Swap(true) {
		return
	}
	close(w.queue)
	w.wg.Wait()
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	for record := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := w.store.Persist(ctx, record)
		cancel()

		if err != nil {
			w.failed.Add(1)
			w.noteFailure()
			log.Printf("history: persist failed for session %s: %v", record.SessionID, err)
		}
	}
}

func (w *AsyncWriter) noteFailure() {
	if w.onFailure != nil {
		w.onFailure()
	}
}
