package pgsql

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgCheck/model"
	"pgCheck/util"
)

// liveOptions reads PGCHECK_TEST_DSN, eq: postgres://postgres:pw@127.0.0.1:5432/postgres
func liveOptions(t *testing.T) *model.Options {
	dsn := os.Getenv("PGCHECK_TEST_DSN")
	if dsn == "" {
		t.Skip("PGCHECK_TEST_DSN is not set")
	}
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	port := model.DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}
	password, _ := u.User.Password()
	db := u.Path
	if len(db) > 0 && db[0] == '/' {
		db = db[1:]
	}
	if db == "" {
		db = "postgres"
	}
	return &model.Options{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		Db:       db,
		SslMode:  model.DefaultSslMode,
	}
}

func liveExec(t *testing.T, opt *model.Options, sqlText string) {
	conn := &util.PgsqlDb{Host: opt.Host, Port: opt.Port, User: opt.User, Password: opt.Password, Database: opt.Db, MaxConns: 1}
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()
	require.NoError(t, conn.Exec(context.Background(), sqlText))
}

func TestLiveCatalog(t *testing.T) {
	opt := liveOptions(t)
	ctx := context.Background()
	liveExec(t, opt, "drop table if exists pgcheck_live_t1; create table pgcheck_live_t1 (id int); insert into pgcheck_live_t1 select generate_series(1, 10)")
	defer liveExec(t, opt, "drop table if exists pgcheck_live_t1")

	catalog := NewCatalog(opt)
	dbs, err := catalog.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, opt.Db)
	assert.NotContains(t, dbs, "template0")

	tables, err := catalog.ListTables(ctx, opt.Db)
	require.NoError(t, err)
	assert.Contains(t, tables, "public.pgcheck_live_t1")

	db, err := NewDatabase(ctx, opt.Host, opt.Port, opt.User, opt.Password, opt.Db, opt.SslMode, 2)
	require.NoError(t, err)
	defer db.Close()
	cnt, err := db.CountRows(ctx, "public.pgcheck_live_t1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), cnt)
}

func TestLiveActivityStore(t *testing.T) {
	opt := liveOptions(t)
	ctx := context.Background()
	table := "public.pgcheck_live_activity"
	liveExec(t, opt, "drop table if exists "+table)
	defer liveExec(t, opt, "drop table if exists "+table)

	store, err := NewActivityStore(ctx, &model.ActivityOptions{
		Host: opt.Host, Port: opt.Port, User: opt.User, Password: opt.Password, Db: opt.Db, SslMode: opt.SslMode,
	})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.IsSuperuser(ctx)
	require.NoError(t, err)

	exists, err := store.CreateTable(ctx, table, true)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.CreateTable(ctx, table, true)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Snapshot(ctx, table))
	require.NoError(t, store.TruncateTable(ctx, table))
}
