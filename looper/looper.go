// Package looper provides a dedicated goroutine that runs tasks one at a
// time, in the manner of a capture thread owned by a camera framework.
//
// Tasks can be queued at the back or at the front of the queue. InvokeAtFront
// is a rendezvous: the caller waits until the task has run on the looper.
//
//	l := looper.New("capture")
//	defer l.Quit()
//
//	err := l.InvokeAtFront(ctx, func() error {
//	    return hook.Init(helper)
//	})
//
// A task must never invoke its own looper synchronously; it would wait for
// itself forever.
package looper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQuit is returned when posting to, or waiting on, a looper that has quit.
	ErrQuit = errors.New("looper has quit")

	// ErrTaskPanic is returned by InvokeAtFront when the task panicked.
	ErrTaskPanic = errors.New("looper task panicked")

	// ErrNilTask is returned when a nil task is posted.
	ErrNilTask = errors.New("task cannot be nil")
)

type task struct {
	run       func() error
	result    chan error // nil for fire-and-forget tasks
	cancelled bool
}

// Looper runs posted tasks serially on its own goroutine.
type Looper struct {
	name string

	mu    sync.Mutex
	cond  *sync.Cond
	queue []*task
	quit  bool

	done chan struct{}
}

// New starts a looper goroutine.
func New(name string) *Looper {
	l := &Looper{
		name: name,
		done: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)

	logrus.WithFields(logrus.Fields{
		"function": "looper.New",
		"name":     name,
	}).Debug("Starting looper")

	go l.loop()
	return l
}

// Name returns the looper name.
func (l *Looper) Name() string {
	return l.name
}

// Post queues fn behind all pending tasks.
func (l *Looper) Post(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	return l.enqueue(&task{run: func() error { fn(); return nil }}, false)
}

// PostAtFront queues fn ahead of all pending tasks.
func (l *Looper) PostAtFront(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	return l.enqueue(&task{run: func() error { fn(); return nil }}, true)
}

// InvokeAtFront runs fn ahead of all pending tasks and waits for it.
//
// If ctx ends while fn is still queued, fn is dropped and the context error
// is returned. If fn has already started, InvokeAtFront returns the context
// error without waiting and fn's result is discarded.
func (l *Looper) InvokeAtFront(ctx context.Context, fn func() error) error {
	if fn == nil {
		return ErrNilTask
	}

	t := &task{run: fn, result: make(chan error, 1)}
	if err := l.enqueue(t, true); err != nil {
		return err
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		l.mu.Lock()
		t.cancelled = true
		l.mu.Unlock()

		// fn may have finished while ctx was ending.
		select {
		case err := <-t.result:
			return err
		default:
		}

		logrus.WithFields(logrus.Fields{
			"function": "Looper.InvokeAtFront",
			"name":     l.name,
			"error":    ctx.Err().Error(),
		}).Warn("Gave up waiting for looper task")
		return fmt.Errorf("invoke on looper %q: %w", l.name, ctx.Err())
	}
}

// InvokeAtFrontUninterruptibly runs fn ahead of all pending tasks and waits
// for it with no time limit.
func (l *Looper) InvokeAtFrontUninterruptibly(fn func() error) error {
	return l.InvokeAtFront(context.Background(), fn)
}

// Quit stops the looper once the running task, if any, returns. Pending
// tasks are dropped and their waiters receive ErrQuit. Quit is idempotent and
// does not wait; use Done to wait for the goroutine to exit.
func (l *Looper) Quit() {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return
	}
	l.quit = true
	pending := l.queue
	l.queue = nil
	l.cond.Broadcast()
	l.mu.Unlock()

	for _, t := range pending {
		if t.result != nil {
			t.result <- ErrQuit
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Looper.Quit",
		"name":     l.name,
		"dropped":  len(pending),
	}).Debug("Looper quit requested")
}

// Done is closed once the looper goroutine has exited.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued tasks.
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Looper) enqueue(t *task, front bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.quit {
		return ErrQuit
	}
	if front {
		l.queue = append([]*task{t}, l.queue...)
	} else {
		l.queue = append(l.queue, t)
	}
	l.cond.Signal()
	return nil
}

// next blocks until a runnable task is queued. It returns nil once the
// looper has quit.
func (l *Looper) next() *task {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		for len(l.queue) == 0 && !l.quit {
			l.cond.Wait()
		}
		if l.quit {
			return nil
		}
		t := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		if !t.cancelled {
			return t
		}
	}
}

func (l *Looper) loop() {
	defer close(l.done)
	for {
		t := l.next()
		if t == nil {
			return
		}
		err := l.run(t)
		if t.result != nil {
			t.result <- err
		}
	}
}

func (l *Looper) run(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Looper.run",
				"name":     l.name,
				"panic":    fmt.Sprint(r),
			}).Error("Looper task panicked")
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return t.run()
}
