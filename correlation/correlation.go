// Package correlation matches controller replies to the requests awaiting them.
//
// Each outstanding request registers a Waiter under the correlation key its
// reply will carry. Several requests may share a key (for example three reads
// of the same signal); their waiters are queued and resolved in FIFO order.
// A reply with no waiter is unsolicited and is reported to the caller, never
// buffered for a later request.
package correlation

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/internal/queue"
)

// ErrUnsolicitedReply indicates a reply whose key has no waiter.
var ErrUnsolicitedReply = errors.New("unsolicited reply")

// ErrClosed is the failure given to waiters registered after FailAll.
var ErrClosed = errors.New("correlation engine closed")

// Waiter is a single pending request. It is resolved exactly once, either with
// a reply message or with an error.
type Waiter struct {
	key  string
	done chan struct{}
	once sync.Once

	msg flexmsg.Message
	err error
}

func newWaiter(key string) *Waiter {
	return &Waiter{key: key, done: make(chan struct{})}
}

// Key returns the correlation key the waiter was registered under.
func (w *Waiter) Key() string {
	return w.key
}

// Done returns a channel closed when the waiter is resolved.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

// Result returns the reply or the failure. It must only be called after Done is closed.
func (w *Waiter) Result() (flexmsg.Message, error) {
	return w.msg, w.err
}

func (w *Waiter) resolve(msg flexmsg.Message, err error) bool {
	resolved := false
	w.once.Do(func() {
		w.msg, w.err = msg, err
		resolved = true
		close(w.done)
	})

	return resolved
}

type failer interface {
	Err() error
}

// Engine holds the pending waiters of one connection, grouped by key.
type Engine struct {
	pending  *xsync.MapOf[string, *queue.Queue[*Waiter]]
	count    atomic.Int64
	closeErr atomic.Pointer[error]
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{pending: xsync.NewMapOf[string, *queue.Queue[*Waiter]]()}
}

// Register appends a new waiter to the queue of key.
//
// After FailAll the returned waiter is already failed.
func (e *Engine) Register(key string) *Waiter {
	w := newWaiter(key)

	e.pending.Compute(key, func(q *queue.Queue[*Waiter], loaded bool) (*queue.Queue[*Waiter], bool) {
		if !loaded {
			q = queue.New[*Waiter](1)
		}
		q.Enqueue(w)

		return q, false
	})
	e.count.Add(1)

	// FailAll may have drained the map before the insert above
	if e.Closed() && e.Retire(w) {
		w.resolve(nil, e.failure())
	}

	return w
}

// Dispatch resolves the oldest waiter registered under the key of msg.
//
// A message exposing a non-nil Err, such as a failed command result, fails the
// waiter with that error. ErrUnsolicitedReply is returned when no waiter
// exists; msg is dropped in that case.
func (e *Engine) Dispatch(msg flexmsg.Keyed) error {
	key := msg.Key()

	var w *Waiter
	e.pending.Compute(key, func(q *queue.Queue[*Waiter], loaded bool) (*queue.Queue[*Waiter], bool) {
		if !loaded {
			return nil, true
		}

		w, _ = q.Dequeue()

		return q, q.IsEmpty()
	})

	if w == nil {
		return fmt.Errorf("%w: %s", ErrUnsolicitedReply, key)
	}
	e.count.Add(-1)

	var err error
	if f, ok := msg.(failer); ok {
		err = f.Err()
	}
	w.resolve(msg, err)

	return nil
}

// Retire removes w from its queue without resolving it, typically after the
// caller gave up waiting. It returns false if w was no longer queued, meaning
// a reply or failure already claimed it.
func (e *Engine) Retire(w *Waiter) bool {
	removed := false
	e.pending.Compute(w.key, func(q *queue.Queue[*Waiter], loaded bool) (*queue.Queue[*Waiter], bool) {
		if !loaded {
			return nil, true
		}

		removed = q.Remove(w)

		return q, q.IsEmpty()
	})

	if removed {
		e.count.Add(-1)
	}

	return removed
}

// FailAll fails every pending waiter with err and makes later registrations
// fail immediately. Only the first call takes effect.
func (e *Engine) FailAll(err error) {
	if err == nil {
		err = ErrClosed
	}
	if !e.closeErr.CompareAndSwap(nil, &err) {
		return
	}

	var waiters []*Waiter
	e.pending.Range(func(key string, _ *queue.Queue[*Waiter]) bool {
		e.pending.Compute(key, func(q *queue.Queue[*Waiter], loaded bool) (*queue.Queue[*Waiter], bool) {
			if loaded {
				waiters = append(waiters, q.Drain()...)
			}

			return nil, true
		})

		return true
	})

	for _, w := range waiters {
		e.count.Add(-1)
		w.resolve(nil, err)
	}
}

// Pending returns the number of unresolved waiters.
func (e *Engine) Pending() int {
	return int(e.count.Load())
}

// Closed reports whether FailAll has been called.
func (e *Engine) Closed() bool {
	return e.closeErr.Load() != nil
}

func (e *Engine) failure() error {
	if p := e.closeErr.Load(); p != nil {
		return *p
	}

	return ErrClosed
}
