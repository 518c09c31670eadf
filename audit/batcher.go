// audit/batcher.go
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	logger "github.com/gatewarden/gatewarden/logging"
	"github.com/gatewarden/gatewarden/metrics"
	"github.com/gatewarden/gatewarden/model"
)

// Gate answers whether a tenant retains records of a kind at all. Records
// for tenants with retention disabled are discarded before they ever touch
// the buffer.
type Gate interface {
	Enabled(ctx context.Context, orgID string, kind model.LogKind) bool
}

// BatcherConfig carries the buffering and retry tunables.
type BatcherConfig struct {
	BatchSize       int
	MaxBufferSize   int
	FlushInterval   time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffCap time.Duration
	WriteTimeout    time.Duration
}

// BatcherStats is a snapshot of the batcher counters.
type BatcherStats struct {
	Buffered        int    `json:"buffered"`
	Flushed         uint64 `json:"flushed"`
	DroppedOverflow uint64 `json:"dropped_overflow"`
	LostRecords     uint64 `json:"lost_records"`
	Discarded       uint64 `json:"discarded"`
}

// Batcher buffers authorization decisions and flushes them to storage in
// bounded batches, so the hot request path never blocks on an audit write.
//
// The buffer is hard-capped at MaxBufferSize: when writes cannot keep up the
// oldest excess records are dropped and counted. Bounded memory wins over
// zero audit loss. A failed batch write is retried with exponential backoff
// at most MaxRetries times in total, then the batch is dropped and counted
// as lost; retrying forever while new records keep arriving is exactly the
// unbounded-growth failure this component exists to prevent.
type Batcher struct {
	repo Repository
	gate Gate
	cfg  BatcherConfig

	mu  sync.Mutex
	buf []Record

	flushMu sync.Mutex // single flush owner

	flushed         atomic.Uint64
	droppedOverflow atomic.Uint64
	lostRecords     atomic.Uint64
	discarded       atomic.Uint64

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewBatcher(repo Repository, gate Gate, cfg BatcherConfig) *Batcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBufferSize < cfg.BatchSize {
		cfg.MaxBufferSize = 5 * cfg.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Batcher{
		repo: repo,
		gate: gate,
		cfg:  cfg,
		buf:  make([]Record, 0, cfg.BatchSize),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (b *Batcher) Start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

// Record appends a decision to the buffer. It never blocks on storage and
// never fails; at worst the record is discarded (retention disabled) or the
// oldest buffered records are dropped (overflow).
func (b *Batcher) Record(ctx context.Context, rec Record) {
	if b.gate != nil && rec.OrgID != "" && !b.gate.Enabled(ctx, rec.OrgID, rec.Kind) {
		b.discarded.Add(1)
		return
	}

	b.mu.Lock()
	b.buf = append(b.buf, rec)
	if excess := len(b.buf) - b.cfg.MaxBufferSize; excess > 0 {
		// Drop the oldest records first; the newest decision is the one an
		// operator investigating an incident most wants to see.
		b.buf = b.buf[excess:]
		b.droppedOverflow.Add(uint64(excess))
		metrics.AuditDroppedOverflow.Add(float64(excess))
		logger.Warn("Audit buffer overflow, dropping oldest records",
			zap.Int("dropped", excess),
			zap.Int("max_buffer_size", b.cfg.MaxBufferSize))
	}
	size := len(b.buf)
	b.mu.Unlock()

	metrics.AuditBuffered.Set(float64(size))
	if size >= b.cfg.BatchSize {
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}

// Flush synchronously drains the buffer, one bounded batch at a time.
func (b *Batcher) Flush(ctx context.Context) {
	// Single flush owner: a size-triggered flush and the interval tick must
	// never race over the same snapshot.
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for {
		b.mu.Lock()
		n := len(b.buf)
		if n == 0 {
			b.mu.Unlock()
			return
		}
		if n > b.cfg.BatchSize {
			n = b.cfg.BatchSize
		}
		batch := make([]Record, n)
		copy(batch, b.buf[:n])
		b.buf = b.buf[n:]
		metrics.AuditBuffered.Set(float64(len(b.buf)))
		b.mu.Unlock()

		if err := b.writeWithRetry(ctx, batch); err != nil {
			b.lostRecords.Add(uint64(len(batch)))
			metrics.AuditLostRecords.Add(float64(len(batch)))
			logger.Error("Dropping audit batch after exhausting retries",
				zap.Error(err),
				zap.Int("records", len(batch)))
			continue
		}
		b.flushed.Add(uint64(len(batch)))
		metrics.AuditFlushedTotal.Add(float64(len(batch)))
	}
}

// Shutdown stops the flush loop and drains everything still buffered. This
// is the one place a blocking storage write on the caller's goroutine is
// acceptable.
func (b *Batcher) Shutdown(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.done) })
	b.wg.Wait()
	b.Flush(ctx)
}

// Stats returns a snapshot of the batcher counters.
func (b *Batcher) Stats() BatcherStats {
	b.mu.Lock()
	buffered := len(b.buf)
	b.mu.Unlock()
	return BatcherStats{
		Buffered:        buffered,
		Flushed:         b.flushed.Load(),
		DroppedOverflow: b.droppedOverflow.Load(),
		LostRecords:     b.lostRecords.Load(),
		Discarded:       b.discarded.Load(),
	}
}

func (b *Batcher) run() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.flushSupervised()
		case <-b.wake:
			b.flushSupervised()
		}
	}
}

// flushSupervised keeps a panic in a flush from killing the scheduling loop.
func (b *Batcher) flushSupervised() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Audit flush panicked", zap.Any("panic", r))
		}
	}()
	b.Flush(context.Background())
}

func (b *Batcher) writeWithRetry(ctx context.Context, batch []Record) error {
	backoff := b.cfg.RetryBackoff
	var err error
	for attempt := 1; attempt <= b.cfg.MaxRetries; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, b.cfg.WriteTimeout)
		err = b.repo.BulkInsert(wctx, batch)
		cancel()
		if err == nil {
			return nil
		}
		metrics.AuditFlushFailures.Inc()
		logger.Warn("Audit batch write failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", b.cfg.MaxRetries),
			zap.Int("records", len(batch)))
		if attempt == b.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > b.cfg.RetryBackoffCap {
			backoff = b.cfg.RetryBackoffCap
		}
	}
	return err
}
