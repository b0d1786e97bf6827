package mssql

import (
	"context"
	"fmt"
	"strings"

	"pgCheck/util"
)

const sqlTables = `SELECT TABLE_SCHEMA + '.' + TABLE_NAME as tb_name FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY 1`

// Database is one side of a sql server row count comparison.
type Database struct {
	Conn *util.MssqlDb
}

func NewDatabase(ctx context.Context, host string, port int, user, password, dbname string) (*Database, error) {
	conn := &util.MssqlDb{Host: host, Port: port, User: user, Password: password, Database: dbname}
	if err := conn.Init(ctx); err != nil {
		return nil, fmt.Errorf("NewDatabase -> %w", err)
	}
	return &Database{Conn: conn}, nil
}

func (self *Database) GetTables(ctx context.Context) ([]string, error) {
	tables, err := util.QueryReturnColumn(ctx, self.Conn.ConnPool, sqlTables)
	if err != nil {
		return nil, fmt.Errorf("GetTables -> %w", err)
	}
	return tables, nil
}

// QuoteTableName turns schema.table into [schema].[table].
func QuoteTableName(tb string) string {
	schema, name, found := strings.Cut(tb, ".")
	if !found {
		return quote(tb)
	}
	return quote(schema) + "." + quote(name)
}

func quote(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func (self *Database) CountRows(ctx context.Context, tb string) (int64, error) {
	cnt, err := util.QueryReturnCount(ctx, self.Conn.ConnPool, "SELECT COUNT_BIG(*) FROM "+QuoteTableName(tb))
	if err != nil {
		return 0, fmt.Errorf("CountRows(%s) -> %w", tb, err)
	}
	return cnt, nil
}

func (self *Database) Close() {
	self.Conn.Close()
}
