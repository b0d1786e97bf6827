package check

import "errors"

var (
	ErrNoDatabases      = errors.New("no databases found")
	ErrDatabaseNotFound = errors.New("DB not found")
	ErrSchemaInvalid    = errors.New("failed to verify schema")
	ErrNoTables         = errors.New("no tables found to be dumped")
	ErrHardFailure      = errors.New("failed to dump contents of table")
	ErrWorkerDied       = errors.New("not all worker processes are alive")
	ErrInterrupted      = errors.New("run interrupted")
	ErrRowCountMismatch = errors.New("row counts do not match")
	ErrNotSuperuser     = errors.New("--username should be superuser!")
	ErrTableExists      = errors.New("snapshot storage table already exists")
	ErrErrorLimit       = errors.New("snapshot error limit reached")
)
