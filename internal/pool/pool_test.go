package pool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var allKinds = []Kind{Process, Thread, Event, Serial}

func newPool(t *testing.T, kind Kind, size int) *Pool {
	t.Helper()
	p, err := New(kind, size)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func value(v any, delay time.Duration) *task.Task {
	return task.New(func(ctx context.Context, _ task.Args) (any, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return v, nil
	}, task.Args{})
}

func failing(desc string, err error) *task.Task {
	t := task.New(func(context.Context, task.Args) (any, error) { return nil, err }, task.Args{})
	t.Description = desc
	return t
}

func TestResultsFollowSubmissionOrder(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 4)
			tasks := []*task.Task{
				value("a", 40*time.Millisecond),
				value("b", 20*time.Millisecond),
				value("c", 0),
			}
			res, err := p.Runner(t.Context(), tasks)
			require.NoError(t, err)
			require.Equal(t, []any{"a", "b", "c"}, res)
		})
	}
}

func TestCurrentTasksAreSkipped(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.yaml")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, nil, 0o600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, past, past))
	require.NoError(t, os.WriteFile(out, nil, 0o600))

	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 2)
			var ran atomic.Int32
			current := task.New(func(context.Context, task.Args) (any, error) {
				ran.Add(1)
				return "current", nil
			}, task.Args{})
			current.Target = []string{out}
			current.Dependency = []string{src}

			res, err := p.Runner(t.Context(), []*task.Task{current, value("stale", 0)})
			require.NoError(t, err)
			require.Equal(t, []any{"stale"}, res)
			require.Zero(t, ran.Load())
		})
	}
}

func TestEveryFailureIsReported(t *testing.T) {
	errA := errors.New("a broke")
	errB := errors.New("b broke")
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 3)
			var finished atomic.Bool
			slow := task.New(func(context.Context, task.Args) (any, error) {
				time.Sleep(30 * time.Millisecond)
				finished.Store(true)
				return "slow", nil
			}, task.Args{})

			_, err := p.Runner(t.Context(), []*task.Task{failing("first", errA), slow, failing("second", errB)})
			require.Error(t, err)
			require.True(t, finished.Load())
			require.ErrorIs(t, err, errA)
			require.ErrorIs(t, err, errB)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryPool))

			var re *ResultsError
			require.ErrorAs(t, err, &re)
			require.Len(t, re.Failures, 2)
			require.Equal(t, "first", re.Failures[0].Description)
			require.Equal(t, "second", re.Failures[1].Description)
			require.Contains(t, err.Error(), "2 tasks failed")
		})
	}
}

func TestIgnoredFailuresAreRecorded(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 2)
			bad := failing("optional", errors.New("nope"))
			bad.IgnoreErrors = true

			res, err := p.Runner(t.Context(), []*task.Task{value(1, 0), bad, value(3, 0)})
			require.NoError(t, err)
			require.Equal(t, []any{1, nil, 3}, res)

			report := p.LastReport()
			require.Len(t, report, 1)
			require.True(t, report[0].Ignored)
			require.Equal(t, "optional", report[0].Description)

			_, err = p.Runner(t.Context(), []*task.Task{value(1, 0)})
			require.NoError(t, err)
			require.Empty(t, p.LastReport())
		})
	}
}

func TestPanicsBecomeFailures(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 2)
			boom := task.New(func(context.Context, task.Args) (any, error) { panic("boom") }, task.Args{})
			_, err := p.Runner(t.Context(), []*task.Task{boom, value("ok", 0)})
			require.ErrorIs(t, err, ErrPanic)
		})
	}
}

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) step(name string, delay time.Duration) *task.Task {
	t := task.New(func(context.Context, task.Args) (any, error) {
		time.Sleep(delay)
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return name, nil
	}, task.Args{})
	t.Description = name
	return t
}

func (r *recorder) indexOf(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestFinalizersRunAfterParent(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 4)
			r := &recorder{}
			parent := r.step("parent", 0)
			parent.AddFinalizer(r.step("fin-slow", 30*time.Millisecond))
			parent.AddFinalizer(r.step("fin-fast", 0))
			parent.SetFinal(r.step("final", 0))
			other := r.step("other", 10*time.Millisecond)

			res, err := p.Runner(t.Context(), []*task.Task{parent, other})
			require.NoError(t, err)
			require.Len(t, res, 5)
			require.Equal(t, "parent", res[0])
			require.Contains(t, res, "final")
			require.Contains(t, res, "other")

			require.Less(t, r.indexOf("parent"), r.indexOf("fin-slow"))
			require.Less(t, r.indexOf("parent"), r.indexOf("fin-fast"))
			require.Less(t, r.indexOf("fin-slow"), r.indexOf("final"))
			require.Less(t, r.indexOf("fin-fast"), r.indexOf("final"))
		})
	}
}

func TestConcurrentFinalizersDispatchBeforeSiblingsFinish(t *testing.T) {
	p := newPool(t, Thread, 4)
	r := &recorder{}
	parent := r.step("parent", 0)
	parent.AddFinalizer(r.step("finalizer", 0))
	slow := r.step("slow", 50*time.Millisecond)

	res, err := p.Runner(t.Context(), []*task.Task{parent, slow})
	require.NoError(t, err)
	require.Equal(t, []any{"parent", "slow", "finalizer"}, res)
	require.Less(t, r.indexOf("finalizer"), r.indexOf("slow"))
}

func TestSerialFinalizersAreDepthFirst(t *testing.T) {
	p := newPool(t, Serial, 0)
	r := &recorder{}
	first := r.step("first", 0)
	a := first.AddFinalizer(r.step("a", 0))
	a.AddFinalizer(r.step("a.1", 0))
	first.AddFinalizer(r.step("b", 0))
	first.SetFinal(r.step("final", 0))
	second := r.step("second", 0)

	res, err := p.Runner(t.Context(), []*task.Task{first, second})
	require.NoError(t, err)
	want := []any{"first", "a", "a.1", "b", "final", "second"}
	require.Equal(t, want, res)
	require.Equal(t, []string{"first", "a", "a.1", "b", "final", "second"}, r.order)
}

func TestFinalizersSkippedWhenParentFails(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 2)
			r := &recorder{}
			parent := failing("parent", errors.New("broken"))
			parent.IgnoreErrors = true
			parent.AddFinalizer(r.step("finalizer", 0))
			parent.SetFinal(r.step("final", 0))

			res, err := p.Runner(t.Context(), []*task.Task{parent})
			require.NoError(t, err)
			require.Equal(t, []any{nil}, res)
			require.Empty(t, r.order)
		})
	}
}

func TestFinalSkippedWhenSiblingFails(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 2)
			r := &recorder{}
			parent := r.step("parent", 0)
			parent.AddFinalizer(failing("bad finalizer", errors.New("broken")))
			parent.AddFinalizer(r.step("sibling", 0))
			parent.SetFinal(r.step("final", 0))

			_, err := p.Runner(t.Context(), []*task.Task{parent})
			require.Error(t, err)
			require.Contains(t, err.Error(), "bad finalizer")
			require.NotEqual(t, -1, r.indexOf("sibling"))
			require.Equal(t, -1, r.indexOf("final"))
		})
	}
}

func TestIgnoredFinalizerFailureKeepsSiblings(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 2)
			r := &recorder{}
			parent := r.step("parent", 0)
			optional := failing("optional finalizer", errors.New("nope"))
			optional.IgnoreErrors = true
			parent.AddFinalizer(optional)
			parent.AddFinalizer(r.step("sibling", 0))
			parent.SetFinal(r.step("final", 0))

			res, err := p.Runner(t.Context(), []*task.Task{parent})
			require.NoError(t, err)
			require.Equal(t, []any{"parent", nil, "sibling", "final"}, res)

			report := p.LastReport()
			require.Len(t, report, 1)
			require.True(t, report[0].Ignored)
			require.Equal(t, "optional finalizer", report[0].Description)
			require.Equal(t, 1, report[0].Index)
		})
	}
}

func TestCloseDuringRunAbandonsFinalizers(t *testing.T) {
	p, err := New(Thread, 1)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	parent := task.New(func(context.Context, task.Args) (any, error) {
		close(started)
		<-release
		return "parent", nil
	}, task.Args{})
	parent.AddFinalizer(value("finalizer", 0))

	returned := make(chan error, 1)
	go func() {
		_, err := p.Runner(context.Background(), []*task.Task{parent})
		returned <- err
	}()

	<-started
	closed := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closed)
	}()
	require.Eventually(t, p.isClosed, time.Second, 5*time.Millisecond)
	close(release)

	select {
	case err := <-returned:
		if err != nil {
			require.ErrorIs(t, err, ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Runner did not return after Close")
	}
	<-closed
}

func TestMapTaskFansOut(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newPool(t, kind, 3)
			square := func(_ context.Context, item any) (any, error) {
				n := item.(int)
				return n * n, nil
			}
			res, err := p.Runner(t.Context(), []*task.Task{task.NewMapTask(square, []any{1, 2, 3, 4})})
			require.NoError(t, err)
			require.Equal(t, []any{[]any{1, 4, 9, 16}}, res)

			boom := errors.New("item failed")
			bad := task.NewMapTask(func(_ context.Context, item any) (any, error) {
				if item.(int) == 2 {
					return nil, boom
				}
				return item, nil
			}, []any{1, 2, 3})
			_, err = p.Runner(t.Context(), []*task.Task{bad})
			require.ErrorIs(t, err, boom)
		})
	}
}

func TestInvalidTasksRejectedBeforeDispatch(t *testing.T) {
	p := newPool(t, Thread, 2)
	var ran atomic.Bool
	ok := task.New(func(context.Context, task.Args) (any, error) {
		ran.Store(true)
		return nil, nil
	}, task.Args{})

	_, err := p.Runner(t.Context(), []*task.Task{ok, {Description: "no job"}})
	require.ErrorIs(t, err, task.ErrNoJob)
	require.False(t, ran.Load())

	_, err = p.Runner(t.Context(), []*task.Task{nil})
	require.Error(t, err)
}

func TestCanceledContextAbandonsBacklog(t *testing.T) {
	p := newPool(t, Process, 1)
	ctx, cancel := context.WithCancel(t.Context())
	blocker := task.New(func(ctx context.Context, _ task.Args) (any, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}, task.Args{})

	_, err := p.Runner(ctx, []*task.Task{blocker, value("never", 0), value("never", 0)})
	require.ErrorIs(t, err, context.Canceled)
	var re *ResultsError
	require.ErrorAs(t, err, &re)
	require.Len(t, re.Failures, 3)
}

func TestClosedPool(t *testing.T) {
	p, err := New(Thread, 2)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Runner(t.Context(), []*task.Task{value(1, 0)})
	require.ErrorIs(t, err, ErrClosed)
}

func TestNewValidatesKind(t *testing.T) {
	_, err := New("gevent", 2)
	require.ErrorIs(t, err, ErrUnknownKind)

	p := newPool(t, Serial, 8)
	require.Equal(t, 1, p.Size())
	p = newPool(t, Process, 0)
	require.Equal(t, DefaultSize(Process), p.Size())
}
