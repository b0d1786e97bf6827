package pgsql

import (
	"context"
	"fmt"

	"pgCheck/util"
)

const sqlAllTables = `select quote_ident(nspname)||'.'||quote_ident(relname)
from pg_class c
join pg_namespace n on n.oid = c.relnamespace
where relkind = 'r'
and not nspname like any(array[E'pg\\_%', 'information_schema'])
order by 1`

// Database is one side of a pgsql row count comparison.
type Database struct {
	Conn *util.PgsqlDb
}

func newDatabaseConn(host string, port int, user, password, dbname, sslmode string, parallel int) *util.PgsqlDb {
	return &util.PgsqlDb{Host: host, Port: port, User: user, Password: password, Database: dbname, SslMode: sslmode, MaxConns: parallel}
}

func NewDatabase(ctx context.Context, host string, port int, user, password, dbname, sslmode string, parallel int) (*Database, error) {
	conn := newDatabaseConn(host, port, user, password, dbname, sslmode, parallel)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("NewDatabase -> %w", err)
	}
	return &Database{Conn: conn}, nil
}

func (self *Database) GetTables(ctx context.Context) ([]string, error) {
	tables, err := self.Conn.QueryReturnColumn(ctx, sqlAllTables)
	if err != nil {
		return nil, fmt.Errorf("GetTables -> %w", err)
	}
	return tables, nil
}

// CountRows expects tb as returned by GetTables, already quoted. Child tables
// are not counted.
func (self *Database) CountRows(ctx context.Context, tb string) (int64, error) {
	cnt, err := util.QueryReturnCount(ctx, self.Conn.ConnPool, "select count(*) from only "+tb)
	if err != nil {
		return 0, fmt.Errorf("CountRows(%s) -> %w", tb, err)
	}
	return cnt, nil
}

func (self *Database) Close() {
	self.Conn.Close()
}
