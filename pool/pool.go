// Package pool runs periodic callbacks on a fixed set of worker goroutines.
// Each worker owns its own tasks and timer; callbacks scheduled on the same
// worker never run concurrently with each other.
package pool

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Pool distributes scheduled callbacks round-robin over its workers.
	Pool struct {
		workers []*worker
		next    atomic.Uint32
		ids     atomic.Uint64
		wg      sync.WaitGroup
		mutex   sync.RWMutex // guards closed against sends on closed channels
		closed  bool
		logger  *slog.Logger
	}

	// Task returns false to unschedule itself.
	Task func() bool

	worker struct {
		commands chan command
		tasks    map[uint64]*entry
		logger   *slog.Logger
	}

	entry struct {
		interval time.Duration
		due      time.Time
		task     Task
	}

	command struct {
		id  uint64
		add *entry
	}
)

var ErrClosed = errors.New("pool is closed")

const idleWait = time.Hour

func New(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{logger: logger}
	for i := 0; i < workers; i++ {
		w := &worker{commands: make(chan command, 64), tasks: map[uint64]*entry{}, logger: logger.With("worker", i)}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	return p
}

// Schedule calls task every interval on one of the workers until task returns
// false or cancel is called. A zero interval runs the task once, as soon as
// possible. Cancel is safe to call more than once and after Close.
func (p *Pool) Schedule(interval time.Duration, task Task) (cancel func(), err error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.closed {
		return func() {}, ErrClosed
	}
	w := p.workers[int(p.next.Add(1)-1)%len(p.workers)]
	id := p.ids.Add(1)
	w.commands <- command{id: id, add: &entry{interval: interval, due: time.Now().Add(interval), task: task}}
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mutex.RLock()
			defer p.mutex.RUnlock()
			if !p.closed {
				w.commands <- command{id: id}
			}
		})
	}, nil
}

// Go runs task once on a worker.
func (p *Pool) Go(task func()) error {
	_, err := p.Schedule(0, func() bool { task(); return false })
	return err
}

// Close stops all workers and waits for running callbacks to return. Must not
// be called from a task.
func (p *Pool) Close() {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return
	}
	p.closed = true
	for _, w := range p.workers {
		close(w.commands)
	}
	p.mutex.Unlock()
	p.wg.Wait()
}

func (w *worker) run() {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()
	for {
		select {
		case c, ok := <-w.commands:
			if !ok {
				return
			}
			if c.add != nil {
				w.tasks[c.id] = c.add
			} else {
				delete(w.tasks, c.id)
			}
		case <-timer.C:
		}
		now := time.Now()
		for id, e := range w.tasks {
			if now.Before(e.due) {
				continue
			}
			if !w.call(e.task) || e.interval <= 0 {
				delete(w.tasks, id)
				continue
			}
			e.due = e.due.Add(e.interval)
			if e.due.Before(now) {
				e.due = now.Add(e.interval)
			}
		}
		wait := idleWait
		now = time.Now()
		for _, e := range w.tasks {
			if d := e.due.Sub(now); d < wait {
				wait = max(d, 0)
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
	}
}

func (w *worker) call(task Task) (again bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("pool: task panicked", "panic", r)
			again = false
		}
	}()
	return task()
}
