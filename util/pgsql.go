package util

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/slog"
	_ "github.com/lib/pq"
)

type PgsqlDb struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SslMode  string
	MaxConns int
	ConnPool *sql.DB
}

// pgConnValue quotes a value for a libpq key=value connection string.
func pgConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// DSN leaves the password out when none is set so that PGPASSWORD or
// ~/.pgpass are used.
func (self *PgsqlDb) DSN() string {
	parts := []string{
		"host=" + pgConnValue(self.Host),
		fmt.Sprintf("port=%d", self.Port),
		"user=" + pgConnValue(self.User),
		"dbname=" + pgConnValue(self.Database),
	}
	if self.Password != "" {
		parts = append(parts, "password="+pgConnValue(self.Password))
	}
	sslmode := self.SslMode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts = append(parts, "sslmode="+sslmode, "application_name=pgCheck")
	return strings.Join(parts, " ")
}

func (self *PgsqlDb) Init() error {
	db, err := sql.Open("postgres", self.DSN())
	if err != nil {
		return fmt.Errorf("PgsqlDb.Init(%s) -> %w", self.Database, err)
	}
	maxConns := self.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	SetPool(db, maxConns, time.Second*60)
	self.ConnPool = db
	return nil
}

// Connect opens the pool and checks the server is reachable.
func (self *PgsqlDb) Connect(ctx context.Context) error {
	if err := self.Init(); err != nil {
		return err
	}
	if err := self.ConnPool.PingContext(ctx); err != nil {
		self.Close()
		return fmt.Errorf("PgsqlDb.Connect(%s:%d/%s) -> %w", self.Host, self.Port, self.Database, err)
	}
	return nil
}

func (self *PgsqlDb) QueryReturnColumn(ctx context.Context, sqlText string, args ...any) ([]string, error) {
	return QueryReturnColumn(ctx, self.ConnPool, sqlText, args...)
}

func (self *PgsqlDb) Exec(ctx context.Context, sqlText string, args ...any) error {
	_, err := self.ConnPool.ExecContext(ctx, sqlText, args...)
	return err
}

func (self *PgsqlDb) Close() {
	if self.ConnPool == nil {
		return
	}
	if err := self.ConnPool.Close(); err != nil {
		slog.Errorf("failed to close db connection: %s", err)
	}
}
