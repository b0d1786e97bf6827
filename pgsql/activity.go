package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"pgCheck/model"
	"pgCheck/util"
)

const sqlSnapshotColumns = `
  now() as snap_time,
  pid,
  usename,
  application_name,
  client_addr,
  client_port,
  backend_start,
  xact_start,
  query_start,
  state_change,
  wait_event_type,
  wait_event,
  state,`

const sqlCreateSnapshotTable = `create %s table %s as
select` + sqlSnapshotColumns + `
  ltrim(regexp_replace(query, E'[ \\t\\n\\r]+' , ' ', 'g'))::varchar(250) as query
from
  pg_stat_activity
where
  false`

const sqlInsertSnapshot = `insert into %s
select` + sqlSnapshotColumns + `
  case
    when state != 'idle' then
      ltrim(regexp_replace(query, E'[ \\t\\n\\r]+' , ' ', 'g'))::varchar(250)
    else
      null
  end as query
from
  pg_stat_activity
where
  datname = current_database()
  and pid != pg_backend_pid()
  and backend_type = 'client backend'`

// duplicate_table
const errDuplicateTable = pq.ErrorCode("42P07")

// QuoteTableName quotes a possibly schema qualified table name.
func QuoteTableName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// ActivityStore writes pg_stat_activity snapshots into the monitored database.
type ActivityStore struct {
	Conn *util.PgsqlDb
}

func NewActivityStore(ctx context.Context, opt *model.ActivityOptions) (*ActivityStore, error) {
	conn := &util.PgsqlDb{
		Host:     opt.Host,
		Port:     opt.Port,
		User:     opt.User,
		Password: opt.Password,
		Database: opt.Db,
		SslMode:  opt.SslMode,
		MaxConns: 1,
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("NewActivityStore -> %w", err)
	}
	return &ActivityStore{Conn: conn}, nil
}

func (self *ActivityStore) IsSuperuser(ctx context.Context) (bool, error) {
	var rolsuper bool
	err := self.Conn.ConnPool.QueryRowContext(ctx, "select rolsuper from pg_roles where rolname = session_user").Scan(&rolsuper)
	if err != nil {
		return false, fmt.Errorf("IsSuperuser -> %w", err)
	}
	return rolsuper, nil
}

func (self *ActivityStore) CreateTable(ctx context.Context, table string, unlogged bool) (bool, error) {
	kind := ""
	if unlogged {
		kind = "unlogged"
	}
	err := self.Conn.Exec(ctx, fmt.Sprintf(sqlCreateSnapshotTable, kind, QuoteTableName(table)))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == errDuplicateTable {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("CreateTable(%s) -> %w", table, err)
	}
	return false, nil
}

func (self *ActivityStore) TruncateTable(ctx context.Context, table string) error {
	if err := self.Conn.Exec(ctx, "truncate table "+QuoteTableName(table)); err != nil {
		return fmt.Errorf("TruncateTable(%s) -> %w", table, err)
	}
	return nil
}

func (self *ActivityStore) Snapshot(ctx context.Context, table string) error {
	return self.Conn.Exec(ctx, fmt.Sprintf(sqlInsertSnapshot, QuoteTableName(table)))
}

func (self *ActivityStore) Close() {
	self.Conn.Close()
}
