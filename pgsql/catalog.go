package pgsql

import (
	"context"
	"fmt"

	"github.com/gookit/slog"

	"pgCheck/model"
	"pgCheck/util"
)

const sqlDatabases = `select datname from pg_database where not datistemplate and datallowconn order by datname`

// Persistent ordinary tables outside the system schemas, biggest first so
// the heaviest dumps start early.
const sqlTables = `select quote_ident(nspname)||'.'||quote_ident(relname) as tbl
from pg_class c
join pg_namespace n on n.oid = c.relnamespace
where relkind = 'r'
and relpersistence = 'p'
and not nspname like any(array['information_schema', E'pg\\_%'])
order by relpages desc`

// Catalog connects to the server once per query with a short lived pool.
type Catalog struct {
	Host     string
	Port     int
	User     string
	Password string
	SslMode  string
}

func NewCatalog(opt *model.Options) *Catalog {
	return &Catalog{
		Host:     opt.Host,
		Port:     opt.Port,
		User:     opt.User,
		Password: opt.Password,
		SslMode:  opt.SslMode,
	}
}

func (self *Catalog) conn(ctx context.Context, dbname string) (*util.PgsqlDb, error) {
	db := &util.PgsqlDb{
		Host:     self.Host,
		Port:     self.Port,
		User:     self.User,
		Password: self.Password,
		Database: dbname,
		SslMode:  self.SslMode,
		MaxConns: 1,
	}
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (self *Catalog) ListDatabases(ctx context.Context) ([]string, error) {
	db, err := self.conn(ctx, "template1")
	if err != nil {
		return nil, fmt.Errorf("ListDatabases -> %w", err)
	}
	defer db.Close()

	dbs, err := db.QueryReturnColumn(ctx, sqlDatabases)
	if err != nil {
		return nil, fmt.Errorf("ListDatabases -> %w", err)
	}
	slog.Infof("dbs found: %v", dbs)
	return dbs, nil
}

func (self *Catalog) ListTables(ctx context.Context, dbname string) ([]string, error) {
	db, err := self.conn(ctx, dbname)
	if err != nil {
		return nil, fmt.Errorf("ListTables -> %w", err)
	}
	defer db.Close()

	tables, err := db.QueryReturnColumn(ctx, sqlTables)
	if err != nil {
		return nil, fmt.Errorf("ListTables(%s) -> %w", dbname, err)
	}
	return tables, nil
}
