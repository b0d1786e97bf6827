package mysql

import (
	"context"
	"fmt"

	"pgCheck/util"
)

// Database is one side of a mysql/tidb/doris row count comparison.
type Database struct {
	Conn *util.MysqlDb
}

func NewDatabase(ctx context.Context, host string, port int, user, password, dbname string) (*Database, error) {
	conn := &util.MysqlDb{Host: host, Port: port, User: user, Password: password, Database: dbname}
	if err := conn.Init(ctx); err != nil {
		return nil, fmt.Errorf("NewDatabase -> %w", err)
	}
	return &Database{Conn: conn}, nil
}

func (self *Database) GetTables(ctx context.Context) ([]string, error) {
	rows, err := self.Conn.QueryReturnList(ctx, "show full tables where Table_type = 'BASE TABLE'")
	if err != nil {
		return nil, fmt.Errorf("GetTables -> %w", err)
	}
	tables := make([]string, 0, len(rows))
	for _, v := range rows {
		tables = append(tables, v[0])
	}
	return tables, nil
}

func countSql(tb string) string {
	return "select count(*) from " + util.EncloseStr(tb, "`")
}

func (self *Database) CountRows(ctx context.Context, tb string) (int64, error) {
	cnt, err := util.QueryReturnCount(ctx, self.Conn.ConnPool, countSql(tb))
	if err != nil {
		return 0, fmt.Errorf("CountRows(%s) -> %w", tb, err)
	}
	return cnt, nil
}

func (self *Database) Close() {
	self.Conn.Close()
}
