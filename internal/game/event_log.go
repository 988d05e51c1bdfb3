package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize     = 1024                   // Circular buffer size
	MaxEventsPerSec     = 1000                   // Global rate limit
	MaxEventsPerMatch   = 20                     // Per-match rate limit per second
	BatchFlushSize      = 64                     // Events per batch write
	BatchFlushInterval  = 250 * time.Millisecond // How often to flush
	MatchLimiterCleanup = 5 * time.Minute        // Cleanup interval for match limiters
)

// EventLog provides bounded, rate-limited replay logging with backpressure.
// One log is shared by every match of a MatchManager, so the buffer takes
// many producers and one writer.
type EventLog struct {
	// Circular buffer, guarded by bufMu
	bufMu    sync.Mutex
	buffer   [EventBufferSize]Event
	writeSeq uint64 // next sequence to assign
	readSeq  uint64 // oldest unread sequence

	// Rate limiting for DoS protection
	globalLimiter *rate.Limiter
	matchLimiters sync.Map // map[string]*matchLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	// Stats for DoS detection and monitoring
	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// matchLimiterEntry tracks per-match rate limiting
type matchLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer goroutine.
// An empty path keeps events in memory only (useful in tests).
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	if !el.running.Load() {
		return
	}
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting
// Returns false if rate limited or the log is not running
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-match rate limit (a forced-advance loop in one match cannot flood the log)
	if event.MatchID != "" {
		if !el.getMatchLimiter(event.MatchID).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.bufMu.Lock()
	if el.writeSeq-el.readSeq >= EventBufferSize {
		// Drop oldest event (rolling window)
		el.readSeq++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	event.Sequence = el.writeSeq
	el.buffer[el.writeSeq%EventBufferSize] = event
	el.writeSeq++
	el.bufMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, matchID string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, matchID, payload))
}

// getMatchLimiter returns/creates a per-match rate limiter
func (el *EventLog) getMatchLimiter(matchID string) *rate.Limiter {
	now := time.Now().UnixNano()

	if entry, ok := el.matchLimiters.Load(matchID); ok {
		e := entry.(*matchLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &matchLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerMatch, MaxEventsPerMatch),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.matchLimiters.LoadOrStore(matchID, entry)
	return actual.(*matchLimiterEntry).limiter
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush drains everything
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes limiters of finished matches
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(MatchLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupMatchLimiters()
		}
	}
}

// cleanupMatchLimiters removes inactive match limiters
func (el *EventLog) cleanupMatchLimiters() {
	cutoff := time.Now().Add(-MatchLimiterCleanup).UnixNano()
	el.matchLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*matchLimiterEntry)
		if entry.lastUsed.Load() < cutoff {
			el.matchLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads available events from circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readSeq < el.writeSeq && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.readSeq%EventBufferSize])
		el.readSeq++
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.file.Write(append(data, '\n'))
	}
}

// Pending returns the number of buffered, unwritten events
func (el *EventLog) Pending() uint64 {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()
	return el.writeSeq - el.readSeq
}

// GetStats returns metrics for DoS monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": el.Pending(),
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events processed
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
