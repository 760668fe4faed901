// Package task provides lifecycle management for the long-running goroutines
// of the bridge server (accept loop, periodic stats reporting).
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visagate/visagate/internal/pool"
	"github.com/visagate/visagate/logger"
)

// startTimeout bounds the handshake between a Start call and its goroutine
// becoming runnable.
const startTimeout = 5 * time.Second

// Func is the body of a managed task. It is called repeatedly and keeps
// running for as long as it returns true.
type Func func() bool

// CancelFunc runs after a task started with StartWithCancel has exited,
// whatever the reason for the exit.
type CancelFunc func()

// Manager supervises named task goroutines.
//
// A task runs until its Func reports done, the managing context is
// cancelled, or it panics. Stop cancels every task at once; Wait blocks
// until they have exited and then re-arms the manager, so a reopened
// server can start tasks again on the same Manager.
type Manager struct {
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	ctxMu   sync.RWMutex // guards ctx and cancel across Wait rebuilds
	spawnMu sync.RWMutex // write-locked by Wait so spawns cannot race the rebuild
	wg      sync.WaitGroup
	active  atomic.Int32
	tickers sync.Map // interval task name -> *time.Ticker
	logger  logger.Logger
}

// NewManager returns a Manager whose tasks are bound to the lifetime of ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{parent: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// current returns the context governing running tasks. Its identity changes
// whenever Wait re-arms the manager, so task loops fetch it every iteration
// instead of capturing it once at spawn time.
func (mgr *Manager) current() context.Context {
	mgr.ctxMu.RLock()
	defer mgr.ctxMu.RUnlock()

	return mgr.ctx
}

// Start launches fn under the given name. It returns once the goroutine is
// running, or an error if the manager has already been stopped.
func (mgr *Manager) Start(name string, fn Func) error {
	mgr.logger.Debug("starting task", "name", name)

	return mgr.spawn(name, func() {
		mgr.run(name, fn)
	})
}

// StartWithCancel is Start with a cleanup hook: cancelFn runs when the task
// exits, no matter what made it exit.
func (mgr *Manager) StartWithCancel(name string, fn Func, cancelFn CancelFunc) error {
	mgr.logger.Debug("starting task", "name", name)

	return mgr.spawn(name, func() {
		if cancelFn != nil {
			defer cancelFn()
		}

		mgr.run(name, fn)
	})
}

// StartInterval schedules fn every interval under the given name. With runNow
// set, the first call happens immediately instead of one interval in. The
// returned ticker is owned by the manager and stopped on Stop or StopInterval.
//
// Only one interval task per name may be live at a time.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) (*time.Ticker, error) {
	mgr.logger.Debug("starting interval task", "name", name, "interval", interval)

	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, dup := mgr.tickers.LoadOrStore(name, ticker); dup {
		ticker.Stop()
		return nil, fmt.Errorf("interval task %s already running", name)
	}

	retire := func() {
		mgr.tickers.Delete(name)
		ticker.Stop()
	}

	if runNow && !mgr.call(name, fn) {
		retire()
		return ticker, nil
	}

	err := mgr.spawn(name, func() {
		defer retire()

		for {
			select {
			case <-mgr.current().Done():
				return
			case <-ticker.C:
				if !mgr.call(name, fn) {
					return
				}
			}
		}
	})
	if err != nil {
		retire()
		return nil, err
	}

	return ticker, nil
}

// StopInterval retires the named interval task without shutting down the
// rest of the manager.
func (mgr *Manager) StopInterval(name string) error {
	val, ok := mgr.tickers.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("no interval task named %s", name)
	}

	if ticker, ok := val.(*time.Ticker); ok {
		ticker.Stop()
	}

	return nil
}

// Stop halts every interval ticker and cancels the manager context,
// signalling all tasks to exit. Use Wait to block until they have.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, val any) bool {
		if ticker, ok := val.(*time.Ticker); ok {
			ticker.Stop()
		}

		return true
	})

	mgr.ctxMu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.ctxMu.Unlock()
}

// Wait blocks until every task goroutine has exited, then rebuilds the
// manager context from the parent so tasks can be started again.
func (mgr *Manager) Wait() {
	mgr.spawnMu.Lock()
	defer mgr.spawnMu.Unlock()

	mgr.wg.Wait()

	mgr.ctxMu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.parent)
	mgr.ctxMu.Unlock()
}

// TaskCount reports how many task goroutines are currently live.
func (mgr *Manager) TaskCount() int {
	return int(mgr.active.Load())
}

// spawn runs body on a tracked goroutine and waits for it to come up.
// Holding spawnMu read-side across the WaitGroup.Add keeps the Add from
// racing a concurrent Wait.
func (mgr *Manager) spawn(name string, body func()) error {
	ctx := mgr.current()
	if ctx.Err() != nil {
		return fmt.Errorf("start %s: manager already stopped", name)
	}

	ready := make(chan struct{})

	mgr.spawnMu.RLock()
	mgr.wg.Add(1)

	go func() {
		defer mgr.wg.Done()

		mgr.active.Add(1)
		close(ready)

		defer func() {
			mgr.active.Add(-1)
			mgr.logger.Debug("task exited", "name", name, "active", mgr.TaskCount())
		}()

		body()
	}()
	mgr.spawnMu.RUnlock()

	timer := pool.AcquireTimer(startTimeout)
	defer pool.ReleaseTimer(timer)

	select {
	case <-ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("task %s took longer than %v to start", name, startTimeout)
	case <-ctx.Done():
		return fmt.Errorf("manager stopped while starting %s", name)
	}
}

// run drives fn until it reports done or the manager context is cancelled.
func (mgr *Manager) run(name string, fn Func) {
	for {
		select {
		case <-mgr.current().Done():
			return
		default:
		}

		if !mgr.call(name, fn) {
			return
		}
	}
}

// call shields the manager from panics in task functions. A panicking task
// is logged and treated as finished.
func (mgr *Manager) call(name string, fn Func) (again bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task panicked", "name", name, "panic", r)
		}
	}()

	return fn()
}
