package activity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trezcool/shule/core"
)

const persistTimeout = 5 * time.Second

// Recorder persists Log entries in the background. Record never blocks and never fails:
// entries that cannot be buffered or saved are logged and dropped.
type Recorder struct {
	repo   Repository
	logger core.Logger

	entries chan Log
	pending int64 // buffered or being saved
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts conf.Activity.Workers goroutines draining a buffer of conf.Activity.BufferSize entries.
func NewRecorder(repo Repository, logger core.Logger, conf *core.Config) *Recorder {
	workers := conf.Activity.Workers
	if workers <= 0 {
		workers = 1
	}
	size := conf.Activity.BufferSize
	if size < 0 {
		size = 0
	}

	r := &Recorder{
		repo:    repo,
		logger:  logger,
		entries: make(chan Log, size),
	}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}
	return r
}

func (r *Recorder) Record(description, actor string) {
	l := Log{Description: description, Actor: actor, CreatedAt: time.Now().UTC()}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn(fmt.Sprintf("activity recorder closed; dropping %q", description))
		return
	}

	atomic.AddInt64(&r.pending, 1)
	select {
	case r.entries <- l:
	default:
		atomic.AddInt64(&r.pending, -1)
		r.logger.Warn(fmt.Sprintf("activity buffer full; dropping %q", description))
	}
}

func (r *Recorder) work() {
	defer r.wg.Done()
	for l := range r.entries {
		r.persist(l)
		atomic.AddInt64(&r.pending, -1)
	}
}

func (r *Recorder) persist(l Log) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := r.repo.CreateLog(ctx, l); err != nil {
		r.logger.Error(fmt.Sprintf("recording activity %q: %v", l.Description, err), err)
	}
}

// Flush waits until every entry recorded so far has been handled, or ctx is done.
func (r *Recorder) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for atomic.LoadInt64(&r.pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops accepting entries and waits for the buffered ones to be saved, or ctx to be done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
