package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/quotation-intake/internal/ingest"
)

// ants starts a package-level default pool in init; its janitor goroutines
// live for the whole test binary.
var ignoreAntsDefaultPool = []goleak.Option{
	goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
	goleak.IgnoreAnyFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, ignoreAntsDefaultPool...)
}

type countingRunner struct {
	passes atomic.Int32
	block  chan struct{}
}

func (r *countingRunner) RunPass(ctx context.Context) ingest.PassReport {
	n := r.passes.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return ingest.PassReport{PassID: string(rune('0' + n))}
}

func TestPassQueue_TriggerRunsPass(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreAntsDefaultPool...)

	reports := make(chan ingest.PassReport, 1)
	runner := &countingRunner{}
	q := NewPassQueue(runner, nil, WithWorkers(1), WithReportHook(func(r ingest.PassReport) { reports <- r }))

	require.True(t, q.Enqueue("manual"))
	select {
	case r := <-reports:
		assert.NotEmpty(t, r.PassID)
	case <-time.After(5 * time.Second):
		t.Fatal("pass never ran")
	}

	q.Shutdown(context.Background())
	assert.False(t, q.Enqueue("late"))
	assert.EqualValues(t, 1, runner.passes.Load())
}

func TestPassQueue_FullQueueDrops(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreAntsDefaultPool...)

	runner := &countingRunner{block: make(chan struct{})}
	q := NewPassQueue(runner, nil, WithWorkers(1), WithQueueSize(1))

	require.True(t, q.Enqueue("a"))
	require.Eventually(t, func() bool { return runner.passes.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.True(t, q.Enqueue("b"), "one slot in the buffer")
	assert.False(t, q.Enqueue("c"), "buffer full, dropped")

	close(runner.block)
	q.Shutdown(context.Background())
	assert.EqualValues(t, 2, runner.passes.Load())
}

func TestPassQueue_ShutdownDeadlineCancelsRunningPass(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreAntsDefaultPool...)

	runner := &countingRunner{block: make(chan struct{})}
	q := NewPassQueue(runner, nil, WithWorkers(1))
	require.True(t, q.Enqueue("a"))
	require.Eventually(t, func() bool { return runner.passes.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Shutdown(ctx)
}

func TestPassQueue_PassTimeoutCancelsPass(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreAntsDefaultPool...)

	reports := make(chan ingest.PassReport, 1)
	runner := &countingRunner{block: make(chan struct{})}
	q := NewPassQueue(runner, nil,
		WithWorkers(1),
		WithPassTimeout(20*time.Millisecond),
		WithReportHook(func(r ingest.PassReport) { reports <- r }),
	)

	require.True(t, q.Enqueue("slow"))
	select {
	case <-reports:
	case <-time.After(5 * time.Second):
		t.Fatal("pass was not cut short")
	}
	q.Shutdown(context.Background())
}

func TestSchedule_StartTickAndWatch(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreAntsDefaultPool...)

	runner := &countingRunner{}
	q := NewPassQueue(runner, nil, WithWorkers(1), WithQueueSize(8))

	extra := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Schedule(ctx, q, time.Hour, extra, nil)
	}()

	require.Eventually(t, func() bool { return runner.passes.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	extra <- struct{}{}
	require.Eventually(t, func() bool { return runner.passes.Load() == 2 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	q.Shutdown(context.Background())
}
