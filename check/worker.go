package check

import (
	"context"
	"fmt"

	"github.com/gookit/slog"

	"pgCheck/model"
)

// work is the loop of one verify worker. It only returns on a hard dump
// failure or when the pool is stopped. Jobs are acknowledged on the queue
// only once resolved, so a failing job never makes the queue look drained.
func (self *Verifier) work(ctx context.Context, id int) error {
	defer self.setState(id, model.WorkerTerminated)
	for {
		self.setState(id, model.WorkerDequeuing)
		job, err := self.Queue.Get(ctx)
		if err != nil {
			return err
		}

		self.setState(id, model.WorkerDumping)
		if err := self.dumpTable(ctx, id, job); err != nil {
			return err
		}
		self.setState(id, model.WorkerIdle)
		self.Queue.Done()
	}
}

func (self *Verifier) setState(id int, st model.WorkerState) {
	if id >= 0 && id < len(self.states) {
		self.states[id].Store(int32(st))
	}
}

func (self *Verifier) dumpTable(ctx context.Context, id int, job model.Job) error {
	slog.Tracef("[worker %d] pg_dump %s", id, job)
	res := self.Dumper.DumpTable(ctx, job)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	switch res.Classify() {
	case model.OutcomeSuccess:
		self.succeeded.Add(1)
		slog.Tracef("[worker %d] %s OK", id, job)
	case model.OutcomeSoftFailure:
		self.vanished.Add(1)
		slog.Warnf("Table %s could not be found [%s]", job.TbName, job.DbName)
	default:
		self.failed.Add(1)
		slog.Errorf("Failed to dump contents of table %s [%s]: %s", job.TbName, job.DbName, res.Error())
		return fmt.Errorf("%w %s [%s]: %s", ErrHardFailure, job.TbName, job.DbName, res.Error())
	}
	return nil
}
