// Package task manages the goroutines that serve a controller connection.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-flexgui/logger"
)

// TaskFunc performs one iteration of a task. It returns true to keep running,
// false to stop the goroutine.
type TaskFunc func() bool

// TaskCancelFunc is called when a task goroutine exits.
type TaskCancelFunc func()

// Manager runs named task goroutines bound to a cancelable context.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.StartReceiver("receiverTask", readOneFrame, onConnLost)
//	...
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
}

// NewManager creates a Manager whose tasks stop when ctx is done or Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by all tasks of the manager.
func (mgr *Manager) Context() context.Context {
	return mgr.ctx
}

// Start runs taskFunc in a loop on a new goroutine until it returns false or
// the manager is stopped.
func (mgr *Manager) Start(name string, taskFunc TaskFunc) error {
	return mgr.StartReceiver(name, taskFunc, nil)
}

// StartReceiver is like Start, and calls cancelFunc when the goroutine exits
// for any reason.
func (mgr *Manager) StartReceiver(name string, taskFunc TaskFunc, cancelFunc TaskCancelFunc) error {
	mgr.logger.Debug("start task", "name", name)

	select {
	case <-mgr.ctx.Done():
		return fmt.Errorf("task manager already stopped, can't start %s", name)
	default:
	}

	started := make(chan struct{})

	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		close(started)

		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
		}()

		if cancelFunc != nil {
			defer mgr.callWithRecover(name, cancelFunc)
		}

		mgr.runTaskLoop(name, taskFunc)
	}()

	<-started

	return nil
}

// Go runs fn once on a new goroutine tracked by the manager.
func (mgr *Manager) Go(name string, fn func(ctx context.Context)) {
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer mgr.wg.Done()
		defer mgr.count.Add(-1)

		mgr.callWithRecover(name, func() { fn(mgr.ctx) })
	}()
}

// Stop signals all tasks to terminate.
func (mgr *Manager) Stop() {
	mgr.cancel()
}

// Wait blocks until every task has terminated.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// WaitTimeout waits for every task to terminate up to timeout.
// It returns false if tasks are still running when the timeout elapses.
func (mgr *Manager) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// TaskCount returns the number of running task goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) runTaskLoop(name string, taskFunc TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		select {
		case <-mgr.ctx.Done():
			return
		default:
			if !taskFunc() {
				return
			}
		}
	}
}

func (mgr *Manager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	fn()
}
