package check

import (
	"context"
	"fmt"
	"time"

	"github.com/gookit/slog"

	"pgCheck/model"
	"pgCheck/util"
)

// Snapshots failing this many times end the run.
const ActivityErrorLimit = 10

// ActivityMonitor stores pg_stat_activity snapshots at a fixed interval for
// a fixed duration.
type ActivityMonitor struct {
	Options    *model.ActivityOptions
	Store      model.SnapshotStore
	ErrorLimit int
	Snapshots  int
	Errors     int
}

func NewActivityMonitor(opt *model.ActivityOptions, store model.SnapshotStore) *ActivityMonitor {
	return &ActivityMonitor{Options: opt, Store: store, ErrorLimit: ActivityErrorLimit}
}

func (self *ActivityMonitor) prepare(ctx context.Context) error {
	slog.Info("checking connection / superuser rights to DB...")
	super, err := self.Store.IsSuperuser(ctx)
	if err != nil {
		return err
	}
	if !super {
		return ErrNotSuperuser
	}
	slog.Info("connection / user rights OK")

	table := self.Options.Table
	slog.Infof("creating the snapshot storage table %q...", table)
	exists, err := self.Store.CreateTable(ctx, table, self.Options.Unlogged)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if !self.Options.Truncate {
		return fmt.Errorf(`%w: table "%s" already exists! use the "--truncate" flag to clean it automatically`, ErrTableExists, table)
	}
	slog.Info("table already exist - truncating...")
	return self.Store.TruncateTable(ctx, table)
}

func (self *ActivityMonitor) Start(ctx context.Context) error {
	defer util.TimeCost()(fmt.Sprintf("snapshots of pg_stat_activity stored in %s", self.Options.Table))
	if err := self.prepare(ctx); err != nil {
		return err
	}

	deadline := time.NewTimer(self.Options.Duration)
	defer deadline.Stop()
	ticker := time.NewTicker(self.Options.Interval)
	defer ticker.Stop()

	if err := self.snapshot(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-deadline.C:
			slog.Infof("reached --duration. stopping after %d snapshots", self.Snapshots)
			return nil
		case <-ticker.C:
			if err := self.snapshot(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return fmt.Errorf("%w -> %w", ErrInterrupted, ctx.Err())
		}
	}
}

func (self *ActivityMonitor) snapshot(ctx context.Context) error {
	err := self.Store.Snapshot(ctx, self.Options.Table)
	if err == nil {
		self.Snapshots++
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w -> %w", ErrInterrupted, ctx.Err())
	}
	self.Errors++
	slog.Warnf("failed to store pg_stat_activity snapshot: %s", err)
	if self.Errors >= self.ErrorLimit {
		return fmt.Errorf("%w: %d errors, last error was -> %w", ErrErrorLimit, self.ErrorLimit, err)
	}
	return nil
}
