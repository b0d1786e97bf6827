package util

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/gookit/slog"
)

type MssqlDb struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	ConnPool *sql.DB
}

func (self *MssqlDb) DSN() string {
	query := url.Values{}
	query.Add("database", self.Database)
	query.Add("encrypt", "disable")
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(self.User, self.Password),
		Host:     self.Host + ":" + strconv.Itoa(self.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (self *MssqlDb) Init(ctx context.Context) error {
	db, err := sql.Open("sqlserver", self.DSN())
	if err != nil {
		return fmt.Errorf("MssqlDb.Init(%s) -> %w", self.Database, err)
	}
	SetPool(db, 64, time.Second*3600)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("MssqlDb.Init(%s:%d/%s) -> %w", self.Host, self.Port, self.Database, err)
	}
	self.ConnPool = db
	return nil
}

func (self *MssqlDb) Close() {
	if self.ConnPool == nil {
		return
	}
	if err := self.ConnPool.Close(); err != nil {
		slog.Errorf("failed to close db connection: %s", err)
	}
}
