package util

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gookit/slog"
)

type MysqlDb struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	ConnPool *sql.DB
}

func (self *MysqlDb) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = self.User
	cfg.Passwd = self.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(self.Host, strconv.Itoa(self.Port))
	cfg.DBName = self.Database
	cfg.Timeout = 5 * time.Second
	return cfg.FormatDSN()
}

func (self *MysqlDb) Init(ctx context.Context) error {
	db, err := sql.Open("mysql", self.DSN())
	if err != nil {
		return fmt.Errorf("MysqlDb.Init(%s) -> %w", self.Database, err)
	}
	SetPool(db, 64, time.Second*3600)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("MysqlDb.Init(%s:%d/%s) -> %w", self.Host, self.Port, self.Database, err)
	}
	self.ConnPool = db
	return nil
}

func (self *MysqlDb) QueryReturnList(ctx context.Context, sqlText string, args ...any) ([][]string, error) {
	return QueryReturnList(ctx, self.ConnPool, sqlText, args...)
}

func (self *MysqlDb) Close() {
	if self.ConnPool == nil {
		return
	}
	if err := self.ConnPool.Close(); err != nil {
		slog.Errorf("failed to close db connection: %s", err)
	}
}
