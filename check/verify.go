package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/slog"

	"pgCheck/model"
	"pgCheck/threading"
	"pgCheck/util"
)

// Verifier dumps every table of every database to a discard sink with a
// fixed pool of workers and fails the whole run on the first hard error.
// There is no snapshot: tables dropped after listing are only warned about.
type Verifier struct {
	Options *model.Options
	Catalog model.Catalog
	Dumper  model.Dumper
	Queue   *threading.Queue[model.Job]
	Pool    *threading.Pool
	Run     *model.ValidationRun

	states    []atomic.Int32
	succeeded atomic.Int64
	vanished  atomic.Int64
	failed    atomic.Int64
}

func NewVerifier(opt *model.Options, catalog model.Catalog, dumper model.Dumper) *Verifier {
	return &Verifier{
		Options: opt,
		Catalog: catalog,
		Dumper:  dumper,
		Queue:   threading.NewQueue[model.Job](),
		Pool:    threading.NewPool(opt.Jobs),
		Run:     &model.ValidationRun{RunId: uuid.NewString()},
		states:  make([]atomic.Int32, opt.Jobs),
	}
}

func (self *Verifier) Start(ctx context.Context) (err error) {
	self.Run.Started = time.Now()
	defer util.TimeCost()(fmt.Sprintf("[run %s] verify finished", self.Run.RunId))
	slog.Infof("[run %s] Args: %s", self.Run.RunId, self.Options)

	defer func() {
		self.Run.Liveness = self.Pool.Liveness()
		stopErr := self.Pool.Stop()
		if err == nil && stopErr != nil {
			err = fmt.Errorf("%w -> %w", ErrWorkerDied, stopErr)
		}
		self.settle(err)
	}()

	dbs, err := self.selectDatabases(ctx)
	if err != nil {
		return err
	}
	self.Run.Databases = dbs

	self.Pool.Start(ctx, self.work)

	//schema dumps and listings die with the pool
	pctx := self.Pool.Context()
	for _, db := range dbs {
		if err := self.poolErr(ctx); err != nil {
			return err
		}
		if err := self.verifySchema(pctx, db); err != nil {
			return self.firstErr(ctx, err)
		}
		if err := self.poolErr(ctx); err != nil {
			return err
		}
		if err := self.addTables(pctx, db); err != nil {
			return self.firstErr(ctx, err)
		}
	}

	if self.Run.Enqueued == 0 {
		slog.Errorf("No tables found to be dumped!")
		return ErrNoTables
	}

	return self.wait(ctx)
}

func (self *Verifier) selectDatabases(ctx context.Context) ([]string, error) {
	dbs, err := self.Catalog.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("selectDatabases -> %w", err)
	}
	if self.Options.Db != "" {
		if !util.InSlice(self.Options.Db, dbs) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, self.Options.Db)
		}
		dbs = []string{self.Options.Db}
	}
	if len(dbs) == 0 {
		return nil, ErrNoDatabases
	}
	return dbs, nil
}

func (self *Verifier) verifySchema(ctx context.Context, db string) error {
	slog.Infof("Dumping schema with pg_dump --schema-only for %s", db)
	res := self.Dumper.DumpSchema(ctx, db)
	if ctx.Err() != nil {
		return fmt.Errorf("%w -> %w", ErrInterrupted, ctx.Err())
	}
	if res.ExitStatus != 0 || res.Err != nil {
		slog.Errorf("Failed to verify schema for DB %s: %s", db, res.Error())
		return fmt.Errorf("%w for DB %s: %s", ErrSchemaInvalid, db, res.Error())
	}
	return nil
}

func (self *Verifier) addTables(ctx context.Context, db string) error {
	slog.Infof("Processing DB %s", db)
	tables, err := self.Catalog.ListTables(ctx, db)
	if err != nil {
		return fmt.Errorf("addTables -> %w", err)
	}
	for _, tb := range tables {
		self.Queue.Put(model.Job{DbName: db, TbName: tb})
	}
	self.Run.Enqueued += len(tables)
	slog.Infof("Added %d tables to the queue", len(tables))
	return nil
}

// poolErr reports a worker failure that happened while databases were still
// being enqueued.
func (self *Verifier) poolErr(ctx context.Context) error {
	select {
	case <-self.Pool.Failed():
		return self.failure(ctx)
	default:
		return nil
	}
}

// firstErr prefers a worker failure over err, which may only be the
// cancellation that failure caused.
func (self *Verifier) firstErr(ctx context.Context, err error) error {
	if perr := self.poolErr(ctx); perr != nil {
		return perr
	}
	return err
}

func (self *Verifier) wait(ctx context.Context) error {
	slog.Infof("Waiting for %d tables to be pg_dumped...", self.Run.Enqueued)
	liveness := time.NewTicker(self.Options.LivenessInterval)
	defer liveness.Stop()
	progress := time.NewTicker(self.Options.ProgressInterval)
	defer progress.Stop()

	idle := self.Queue.Idle()
	for {
		select {
		case <-idle:
			return self.checkLiveness()
		case <-self.Pool.Failed():
			return self.failure(ctx)
		case <-liveness.C:
			if err := self.checkLiveness(); err != nil {
				return err
			}
		case <-progress.C:
			slog.Infof("%d tables in the queue... (%s)", self.Queue.Len(), self.describeWorkers())
		case <-ctx.Done():
			return fmt.Errorf("%w -> %w", ErrInterrupted, ctx.Err())
		}
	}
}

func (self *Verifier) failure(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w -> %w", ErrInterrupted, ctx.Err())
	}
	if err := self.checkLiveness(); err != nil {
		return err
	}
	return ErrWorkerDied
}

func (self *Verifier) checkLiveness() error {
	dead := self.Pool.Dead()
	if len(dead) == 0 {
		return nil
	}
	slog.Errorf("Not all worker processes are alive. Exiting")
	//workers cancelled because of another failure are reported last
	var cancelled *threading.Worker
	for _, w := range dead {
		werr := w.Err()
		switch {
		case werr == nil:
		case errors.Is(werr, context.Canceled):
			if cancelled == nil {
				cancelled = w
			}
		default:
			return fmt.Errorf("%w: worker %d -> %w", ErrWorkerDied, w.Id, werr)
		}
	}
	if cancelled != nil {
		return fmt.Errorf("%w: worker %d -> %w", ErrWorkerDied, cancelled.Id, cancelled.Err())
	}
	return fmt.Errorf("%w: worker %d exited", ErrWorkerDied, dead[0].Id)
}

func (self *Verifier) describeWorkers() string {
	counts := map[model.WorkerState]int{}
	for i := range self.states {
		counts[model.WorkerState(self.states[i].Load())]++
	}
	parts := []string{}
	for _, st := range []model.WorkerState{model.WorkerDumping, model.WorkerDequeuing, model.WorkerIdle, model.WorkerTerminated} {
		if counts[st] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[st], st))
		}
	}
	return "workers: " + strings.Join(parts, ", ")
}

func (self *Verifier) settle(err error) {
	self.Run.QueueSize = self.Queue.Len()
	self.Run.Succeeded = int(self.succeeded.Load())
	self.Run.Vanished = int(self.vanished.Load())
	self.Run.Failed = int(self.failed.Load())
	if err != nil {
		self.Run.Verdict = model.VerdictFailed
		slog.Error(self.Run.GetLog())
		return
	}
	self.Run.Verdict = model.VerdictSucceeded
	slog.Info(self.Run.GetLog())
	slog.Info("Done. No errors encountered")
}
