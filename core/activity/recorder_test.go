package activity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

type memRepo struct {
	mu    sync.Mutex
	logs  []Log
	err   error
	delay time.Duration
}

func (r *memRepo) CreateLog(_ context.Context, l Log, _ ...core.DBExecutor) (Log, error) {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Log{}, r.err
	}
	l.ID = fmt.Sprint(len(r.logs) + 1)
	r.logs = append(r.logs, l)
	return l, nil
}

func (r *memRepo) QueryLogs(_ context.Context, limit int, _ ...core.DBExecutor) ([]Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := append([]Log(nil), r.logs...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *memRepo) descriptions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		res = append(res, l.Description)
	}
	return res
}

type nopLogger struct {
	mu    sync.Mutex
	warns int
	errs  int
}

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Warn(string, ...interface{}) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}
func (l *nopLogger) Error(string, ...interface{}) {
	l.mu.Lock()
	l.errs++
	l.mu.Unlock()
}
func (l *nopLogger) Fatal(string, ...interface{}) {}

func newConf(workers, size int) *core.Config {
	conf := &core.Config{}
	conf.Activity.Workers = workers
	conf.Activity.BufferSize = size
	return conf
}

func TestRecorder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo := &memRepo{}
	logger := &nopLogger{}
	r := NewRecorder(repo, logger, newConf(3, 100))

	want := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		d := fmt.Sprintf("entry %d", i)
		want = append(want, d)
		r.Record(d, "admin")
	}
	require.NoError(t, r.Flush(ctx))
	assert.ElementsMatch(t, want, repo.descriptions())

	require.NoError(t, r.Close(ctx))
	r.Record("too late", "admin")
	assert.Len(t, repo.descriptions(), 30)
	assert.Equal(t, 1, logger.warns)

	// closing twice is fine
	assert.NoError(t, r.Close(ctx))
}

func TestRecorder_storeFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo := &memRepo{err: errors.New("db down")}
	logger := &nopLogger{}
	r := NewRecorder(repo, logger, newConf(1, 10))

	r.Record("Added subject Maths", "admin")
	require.NoError(t, r.Flush(ctx))
	assert.Empty(t, repo.descriptions())
	assert.Equal(t, 1, logger.errs)
	require.NoError(t, r.Close(ctx))
}

func TestRecorder_bufferFull(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo := &memRepo{delay: 50 * time.Millisecond}
	logger := &nopLogger{}
	r := NewRecorder(repo, logger, newConf(1, 1))

	start := time.Now()
	for i := 0; i < 10; i++ {
		r.Record(fmt.Sprintf("entry %d", i), "admin")
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Record must not block")

	require.NoError(t, r.Close(ctx))
	saved := len(repo.descriptions())
	assert.GreaterOrEqual(t, saved, 1)
	assert.Equal(t, 10, saved+logger.warns)
}

func TestRecorder_flushTimeout(t *testing.T) {
	repo := &memRepo{delay: 200 * time.Millisecond}
	r := NewRecorder(repo, &nopLogger{}, newConf(1, 10))
	r.Record("slow", "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, r.Flush(ctx))

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"slow"}, repo.descriptions())
}

func TestService_Recent(t *testing.T) {
	repo := &memRepo{}
	now := time.Now().UTC()
	for i := 0; i < DefaultLimit+5; i++ {
		_, _ = repo.CreateLog(context.Background(), Log{Description: fmt.Sprint(i), CreatedAt: now.Add(time.Duration(i) * time.Second)})
	}
	svc := NewService(repo)

	logs, err := svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, DefaultLimit)
	assert.Equal(t, fmt.Sprint(DefaultLimit+4), logs[0].Description)

	logs, err = svc.Recent(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
