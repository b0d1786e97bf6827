package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pg_dump"), []byte("#!/bin/sh\n"), 0755))
	return dir
}

func TestOptionsInit(t *testing.T) {
	dir := fakeBinDir(t)
	opt := &Options{BinDir: dir, Host: "/var/run/postgresql", User: "postgres"}
	require.NoError(t, opt.Init())
	assert.Equal(t, DefaultPort, opt.Port)
	assert.Equal(t, DefaultJobs(), opt.Jobs)
	assert.Equal(t, DefaultSslMode, opt.SslMode)
	assert.Equal(t, DefaultLivenessInterval, opt.LivenessInterval)
	assert.Equal(t, DefaultProgressInterval, opt.ProgressInterval)
	assert.Equal(t, filepath.Join(dir, "pg_dump"), opt.PgDump)
	assert.GreaterOrEqual(t, opt.Jobs, 1)
}

func TestOptionsInitErrors(t *testing.T) {
	dir := fakeBinDir(t)
	t.Setenv("USER", "")

	assert.ErrorContains(t, (&Options{Host: "h", User: "u"}).Init(), "bindir is required")
	assert.ErrorContains(t, (&Options{BinDir: dir, User: "u"}).Init(), "host is required")
	assert.ErrorContains(t, (&Options{BinDir: dir, Host: "h", User: "u", Port: 70000}).Init(), "invalid port")
	assert.ErrorContains(t, (&Options{BinDir: dir, Host: "h"}).Init(), "username is required")
	assert.ErrorContains(t, (&Options{BinDir: t.TempDir(), Host: "h", User: "u"}).Init(), "Invalid BINDIR! Could not find pg_dump in")
}

func TestOptionsStringHidesPassword(t *testing.T) {
	opt := &Options{BinDir: "/usr/bin", Host: "h", Port: 5432, User: "u", Password: "secret"}
	assert.NotContains(t, opt.String(), "secret")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgcheck.yaml")
	text := `
bindir: /usr/lib/postgresql/16/bin
host: 10.0.0.5
port: 5433
username: checker
jobs: 6
livenessInterval: 2s
progressInterval: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	opt, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/postgresql/16/bin", opt.BinDir)
	assert.Equal(t, "10.0.0.5", opt.Host)
	assert.Equal(t, 5433, opt.Port)
	assert.Equal(t, "checker", opt.User)
	assert.Equal(t, 6, opt.Jobs)
	assert.Equal(t, 2*time.Second, opt.LivenessInterval)
	assert.Equal(t, time.Minute, opt.ProgressInterval)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := SplitHostPort("10.0.0.1:3306")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", host)
	assert.Equal(t, 3306, port)

	for _, addr := range []string{"", "10.0.0.1", ":3306", "h:0", "h:x", "h:70000"} {
		_, _, err := SplitHostPort(addr)
		assert.Error(t, err, addr)
	}
}

func TestCountOptionsInit(t *testing.T) {
	opt := &CountOptions{
		Engine:     "pgsql",
		Source:     "10.0.0.1:5432",
		Target:     "10.0.0.2:5433",
		User:       "admin",
		Password:   "pw",
		Db:         "app, crm:crm_new",
		Tables:     "public.a,public.b",
		SkipTables: "public.b",
	}
	require.NoError(t, opt.Init())
	assert.Equal(t, "10.0.0.1", opt.SourceHost)
	assert.Equal(t, 5433, opt.TargetPort)
	assert.Equal(t, [][2]string{{"app", "app"}, {"crm", "crm_new"}}, opt.DbGroupList)
	assert.Equal(t, []string{"public.a", "public.b"}, opt.TableList)
	assert.Equal(t, []string{"public.b"}, opt.SkipTableList)
	assert.Equal(t, "admin", opt.TargetUser)
	assert.Equal(t, "pw", opt.TargetPassword)
	assert.Equal(t, 1, opt.Parallel)
	assert.Equal(t, DefaultSslMode, opt.SslMode)

	bad := &CountOptions{Source: "h:1", Target: "h:2", User: "u", Db: "a:b:c"}
	assert.ErrorContains(t, bad.Init(), "invalid db group")
	bad = &CountOptions{Source: "h:1", Target: "h:2", User: "u", Db: " , "}
	assert.ErrorContains(t, bad.Init(), "invalid db")
	bad = &CountOptions{Source: "h", Target: "h:2", User: "u", Db: "a"}
	assert.ErrorContains(t, bad.Init(), "source")
}

func TestActivityOptionsInit(t *testing.T) {
	opt := &ActivityOptions{User: "postgres", Table: "public.snap", Interval: time.Second, Duration: time.Minute}
	require.NoError(t, opt.Init())
	assert.Equal(t, "localhost", opt.Host)
	assert.Equal(t, DefaultPort, opt.Port)
	assert.Equal(t, "postgres", opt.Db)

	assert.Error(t, (&ActivityOptions{User: "u", Interval: time.Second, Duration: time.Minute}).Init())
	assert.Error(t, (&ActivityOptions{User: "u", Table: "t", Duration: time.Minute}).Init())
	assert.Error(t, (&ActivityOptions{User: "u", Table: "t", Interval: time.Second}).Init())
}
