package threading

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gookit/slog"
	"golang.org/x/sync/errgroup"
)

// Queue is an unbounded FIFO shared by one producer side and many consumers.
// Put never blocks. Get blocks until an item is available or ctx is done.
// Consumers call Done once per item they took, Idle is closed while nothing
// is queued or in flight.
type Queue[T any] struct {
	mu         sync.Mutex
	items      []T
	ready      chan struct{}
	idle       chan struct{}
	added      int
	unfinished int
}

func NewQueue[T any]() *Queue[T] {
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		idle:  idle,
	}
}

func (self *Queue[T]) Put(item T) {
	self.mu.Lock()
	self.items = append(self.items, item)
	if self.unfinished == 0 {
		self.idle = make(chan struct{})
	}
	self.unfinished++
	self.added++
	self.mu.Unlock()
	self.wakeup()
}

func (self *Queue[T]) wakeup() {
	select {
	case self.ready <- struct{}{}:
	default:
	}
}

func (self *Queue[T]) Get(ctx context.Context) (item T, err error) {
	for {
		self.mu.Lock()
		if len(self.items) > 0 {
			item = self.items[0]
			var zero T
			self.items[0] = zero
			self.items = self.items[1:]
			more := len(self.items) > 0
			self.mu.Unlock()
			//pass the wakeup on to the next waiting consumer
			if more {
				self.wakeup()
			}
			return item, nil
		}
		self.mu.Unlock()

		select {
		case <-self.ready:
		case <-ctx.Done():
			return item, ctx.Err()
		}
	}
}

// Done marks one taken item as resolved.
func (self *Queue[T]) Done() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.unfinished <= 0 {
		panic("threading: Queue.Done called more times than items were put")
	}
	self.unfinished--
	if self.unfinished == 0 {
		close(self.idle)
	}
}

func (self *Queue[T]) Idle() <-chan struct{} {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.idle
}

// Len is the number of items still waiting to be taken.
func (self *Queue[T]) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.items)
}

func (self *Queue[T]) Empty() bool {
	return self.Len() == 0
}

// Unfinished is the number of items queued or taken but not yet Done.
func (self *Queue[T]) Unfinished() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.unfinished
}

func (self *Queue[T]) Added() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.added
}

type Worker struct {
	Id   int
	done chan struct{}
	err  error
}

func (self *Worker) Alive() bool {
	select {
	case <-self.done:
		return false
	default:
		return true
	}
}

// Err is only meaningful once the worker is dead.
func (self *Worker) Err() error {
	if self.Alive() {
		return nil
	}
	return self.err
}

// Pool runs a fixed number of workers until Stop or until one of them fails.
type Pool struct {
	Size    int
	Workers []*Worker
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewPool(workerNum int) *Pool {
	if workerNum <= 0 {
		panic("workerNum must > 0")
	}
	return &Pool{Size: workerNum}
}

func (self *Pool) Start(ctx context.Context, fn func(ctx context.Context, id int) error) {
	slog.Infof("Launching %d worker processes", self.Size)
	ctx, self.cancel = context.WithCancel(ctx)
	self.group, self.ctx = errgroup.WithContext(ctx)
	for i := 0; i < self.Size; i++ {
		w := &Worker{Id: i, done: make(chan struct{})}
		self.Workers = append(self.Workers, w)
		self.group.Go(func() error {
			return self.run(w, fn)
		})
	}
}

func (self *Pool) run(w *Worker, fn func(ctx context.Context, id int) error) (err error) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panic: %v", w.Id, r)
		}
		w.err = err
	}()
	slog.Infof("Starting worker %d ...", w.Id)
	return fn(self.ctx, w.Id)
}

// Context is cancelled together with the workers. Work done on behalf of the
// pool outside of it should use this context.
func (self *Pool) Context() context.Context {
	return self.ctx
}

// Failed is closed as soon as a worker returns an error or the pool is stopped.
func (self *Pool) Failed() <-chan struct{} {
	return self.ctx.Done()
}

func (self *Pool) Alive() bool {
	return len(self.Dead()) == 0
}

// Dead returns the workers that have exited.
func (self *Pool) Dead() []*Worker {
	var dead []*Worker
	for _, w := range self.Workers {
		if !w.Alive() {
			dead = append(dead, w)
		}
	}
	return dead
}

// Liveness reports one flag per worker, indexed by id.
func (self *Pool) Liveness() []bool {
	res := make([]bool, len(self.Workers))
	for i, w := range self.Workers {
		res[i] = w.Alive()
	}
	return res
}

// Stop cancels every worker and waits for all of them. It returns the first
// worker error that was not caused by the cancellation itself.
func (self *Pool) Stop() error {
	if self.group == nil {
		return nil
	}
	self.cancel()
	err := self.group.Wait()
	slog.Infof("Stopped %d worker processes", self.Size)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
