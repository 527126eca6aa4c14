// Package loop implements the single-threaded host loop the engine runs on.
//
// Every piece of engine work (mutation delivery, pointer activation,
// reconciliation ticks, settings broadcasts) is a task. Tasks run one at a
// time on the goroutine that called Run, in the order they were posted, so
// state touched only from tasks needs no locking.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("loop is closed")

// DefaultQueueSize is the task buffer used by New.
const DefaultQueueSize = 256

// Loop is a cooperative task queue.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	closed  chan struct{}
	once    sync.Once
	tasks   sync.WaitGroup
}

// New creates a loop. It does not run tasks until Run is called.
func New() *Loop {
	return &Loop{
		pending: make([]func(), 0, DefaultQueueSize),
		wake:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Post queues fn for a later turn. It never blocks and returns false once
// the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	select {
	case <-l.closed:
		l.mu.Unlock()
		return false
	default:
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits until it has run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		// A closed loop may still have run fn before stopping.
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Run executes tasks until ctx is cancelled or Close is called.
// Tasks still queued when the loop stops are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case <-l.wake:
		}

		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.closed:
				return nil
			default:
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

// Close stops the loop and every recurring task. It is safe to call more
// than once.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		close(l.closed)
		l.pending = nil
		l.mu.Unlock()
	})
	l.tasks.Wait()
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.closed
}

// Task is a recurring task created by Every.
type Task struct {
	stop chan struct{}
	once sync.Once
}

// Cancel stops the task. Ticks already posted may still run.
func (t *Task) Cancel() {
	t.once.Do(func() { close(t.stop) })
}

// Every posts fn once per interval until the task is cancelled or the loop
// closes. A tick is skipped while the previous one is still queued, so a
// slow turn never builds a backlog.
func (l *Loop) Every(interval time.Duration, fn func()) *Task {
	t := &Task{stop: make(chan struct{})}
	if interval <= 0 {
		t.Cancel()
		return t
	}
	l.mu.Lock()
	select {
	case <-l.closed:
		l.mu.Unlock()
		t.Cancel()
		return t
	default:
	}
	l.tasks.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.tasks.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var inFlight sync.Mutex
		queued := false
		for {
			select {
			case <-t.stop:
				return
			case <-l.closed:
				return
			case <-ticker.C:
			}

			inFlight.Lock()
			if queued {
				inFlight.Unlock()
				continue
			}
			queued = true
			inFlight.Unlock()

			posted := l.Post(func() {
				inFlight.Lock()
				queued = false
				inFlight.Unlock()
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			})
			if !posted {
				return
			}
		}
	}()
	return t
}
