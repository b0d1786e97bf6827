package model

import "context"

// Catalog lists what a verify run has to dump.
type Catalog interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, dbname string) ([]string, error)
}

type Dumper interface {
	DumpSchema(ctx context.Context, dbname string) DumpOutcome
	DumpTable(ctx context.Context, job Job) DumpOutcome
}

// Database is one side of a row count comparison.
type Database interface {
	GetTables(ctx context.Context) ([]string, error)
	CountRows(ctx context.Context, tb string) (int64, error)
	Close()
}

// SnapshotStore keeps pg_stat_activity snapshots in a table of the monitored database.
type SnapshotStore interface {
	IsSuperuser(ctx context.Context) (bool, error)
	CreateTable(ctx context.Context, table string, unlogged bool) (exists bool, err error)
	TruncateTable(ctx context.Context, table string) error
	Snapshot(ctx context.Context, table string) error
	Close()
}
