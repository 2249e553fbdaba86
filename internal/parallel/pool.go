package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs dispatch groups on a fixed set of goroutines.
//
// Groups are dealt round-robin onto per-worker queues. A worker whose queue
// is empty steals from the others before blocking, so one slow group does
// not stall a stage while other workers idle.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool of n workers. If n is 0 or negative,
// GOMAXPROCS is used.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{
		workers: n,
		queues:  make([]chan func(), n),
		done:    make(chan struct{}),
	}
	depth := max(n*4, 8)
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}

	p.running.Store(true)
	p.wg.Add(n)
	for i := range n {
		go p.loop(i)
	}
	return p
}

// loop is the body of worker id. On shutdown it runs what is left in its
// own queue so no submitted group is lost.
func (p *WorkerPool) loop(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		fn, ok := p.next(id, own)
		if !ok {
			for {
				select {
				case fn := <-own:
					fn()
				default:
					return
				}
			}
		}
		fn()
	}
}

// next returns the next group for worker id: its own queue first, then a
// stolen group, then whatever arrives on its queue. ok is false once the
// pool is closing.
func (p *WorkerPool) next(id int, own chan func()) (fn func(), ok bool) {
	select {
	case <-p.done:
		return nil, false
	case fn := <-own:
		return fn, true
	default:
	}

	for i := 1; i < p.workers; i++ {
		select {
		case fn := <-p.queues[(id+i)%p.workers]:
			return fn, true
		default:
		}
	}

	select {
	case <-p.done:
		return nil, false
	case fn := <-own:
		return fn, true
	}
}

// ExecuteAll runs every function in work and returns when all have
// finished. Returning is the barrier between pipeline stages: every write
// made by work happens before ExecuteAll returns. After Close it does
// nothing.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 || !p.running.Load() {
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(work))
	for i, fn := range work {
		task := func() {
			defer pending.Done()
			fn()
		}
		select {
		case p.queues[i%p.workers] <- task:
		case <-p.done:
			pending.Done()
		}
	}
	pending.Wait()
}

// Close stops the pool after the queued groups have run. It is safe to call
// more than once.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }
