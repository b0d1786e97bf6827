package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort             = 5432
	DefaultSslMode          = "disable"
	DefaultLivenessInterval = 5 * time.Second
	DefaultProgressInterval = 60 * time.Second
)

// DefaultJobs is half the available CPUs, at least one.
func DefaultJobs() int {
	return max(runtime.NumCPU()/2, 1)
}

// Options configure a verify run. Values may come from a YAML file and are
// overridden by command line flags.
type Options struct {
	BinDir           string        `yaml:"bindir"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Db               string        `yaml:"dbname"`
	Jobs             int           `yaml:"jobs"`
	Quiet            bool          `yaml:"quiet"`
	SslMode          string        `yaml:"sslmode"`
	LivenessInterval time.Duration `yaml:"livenessInterval"`
	ProgressInterval time.Duration `yaml:"progressInterval"`
	PgDump           string        `yaml:"-"`
}

func LoadConfigFile(filename string) (*Options, error) {
	opt := &Options{}
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("LoadConfigFile -> %w", err)
	}
	if err := yaml.Unmarshal(buf, opt); err != nil {
		return nil, fmt.Errorf("LoadConfigFile(%s) -> %w", filename, err)
	}
	return opt, nil
}

func (self *Options) Init() error {
	if self.BinDir == "" {
		return errors.New("bindir is required")
	}
	if self.Host == "" {
		return errors.New("host is required")
	}
	if self.Port == 0 {
		self.Port = DefaultPort
	}
	if self.Port < 0 || self.Port > 65535 {
		return fmt.Errorf("invalid port: %d", self.Port)
	}
	if self.User == "" {
		self.User = os.Getenv("USER")
	}
	if self.User == "" {
		return errors.New("username is required")
	}
	if self.Jobs <= 0 {
		self.Jobs = DefaultJobs()
	}
	if self.SslMode == "" {
		self.SslMode = DefaultSslMode
	}
	if self.LivenessInterval <= 0 {
		self.LivenessInterval = DefaultLivenessInterval
	}
	if self.ProgressInterval <= 0 {
		self.ProgressInterval = DefaultProgressInterval
	}

	self.PgDump = filepath.Join(self.BinDir, "pg_dump")
	st, err := os.Stat(self.PgDump)
	if err != nil || st.IsDir() {
		return fmt.Errorf("Invalid BINDIR! Could not find pg_dump in %s", self.BinDir)
	}
	return nil
}

// String never prints the password.
func (self *Options) String() string {
	return fmt.Sprintf("bindir=%s host=%s port=%d user=%s dbname=%q jobs=%d quiet=%t sslmode=%s liveness=%s progress=%s",
		self.BinDir, self.Host, self.Port, self.User, self.Db, self.Jobs, self.Quiet, self.SslMode, self.LivenessInterval, self.ProgressInterval)
}

// CountOptions configure a row count comparison between two instances of the same engine.
type CountOptions struct {
	Engine         string
	Source         string
	Target         string
	User           string
	Password       string
	TargetUser     string
	TargetPassword string
	Db             string
	Tables         string
	SkipTables     string
	Report         string
	SslMode        string
	SourceHost     string
	SourcePort     int
	TargetHost     string
	TargetPort     int
	DbGroupList    [][2]string
	TableList      []string
	SkipTableList  []string
	Parallel       int
}

func SplitHostPort(addr string) (string, int, error) {
	s := strings.Split(addr, ":")
	if len(s) != 2 || s[0] == "" {
		return "", 0, fmt.Errorf("invalid address %q (expected host:port)", addr)
	}
	port, err := strconv.ParseUint(s[1], 10, 16)
	if err != nil || port == 0 {
		return "", 0, fmt.Errorf("invalid port in address %q", addr)
	}
	return s[0], int(port), nil
}

func SplitList(text string) []string {
	var list []string
	for _, v := range strings.Split(text, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func (self *CountOptions) Init() (err error) {
	self.SourceHost, self.SourcePort, err = SplitHostPort(self.Source)
	if err != nil {
		return fmt.Errorf("source -> %w", err)
	}
	self.TargetHost, self.TargetPort, err = SplitHostPort(self.Target)
	if err != nil {
		return fmt.Errorf("target -> %w", err)
	}

	if self.User == "" {
		self.User = os.Getenv("USER")
	}
	if self.User == "" {
		return errors.New("user is required")
	}
	if self.TargetUser == "" {
		self.TargetUser = self.User
	}
	if self.TargetPassword == "" {
		self.TargetPassword = self.Password
	}

	//db1,db2 or db1:db01,db2:db02
	dbList := SplitList(self.Db)
	if len(dbList) == 0 {
		return fmt.Errorf("invalid db: %q", self.Db)
	}
	self.DbGroupList = nil
	for _, dbstr := range dbList {
		var dbgroup [2]string
		g := strings.Split(dbstr, ":")
		switch len(g) {
		case 1:
			dbgroup[0], dbgroup[1] = g[0], g[0]
		case 2:
			dbgroup[0], dbgroup[1] = g[0], g[1]
		default:
			return fmt.Errorf("invalid db group: %q", dbstr)
		}
		self.DbGroupList = append(self.DbGroupList, dbgroup)
	}

	self.TableList = SplitList(self.Tables)
	self.SkipTableList = SplitList(self.SkipTables)

	if self.Parallel <= 0 {
		self.Parallel = 1
	}
	if self.SslMode == "" {
		self.SslMode = DefaultSslMode
	}
	return nil
}

// ActivityOptions drive one pg_stat_activity snapshot run.
type ActivityOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Db       string
	SslMode  string
	Table    string
	Interval time.Duration
	Duration time.Duration
	Truncate bool
	Unlogged bool
}

func (self *ActivityOptions) Init() error {
	if self.Host == "" {
		self.Host = "localhost"
	}
	if self.Port == 0 {
		self.Port = DefaultPort
	}
	if self.User == "" {
		self.User = os.Getenv("USER")
	}
	if self.User == "" {
		return errors.New("username is required")
	}
	if self.Db == "" {
		self.Db = self.User
	}
	if self.SslMode == "" {
		self.SslMode = DefaultSslMode
	}
	if self.Table == "" {
		return errors.New("snapshot-storage-table is required")
	}
	if self.Interval <= 0 {
		return fmt.Errorf("invalid interval: %s", self.Interval)
	}
	if self.Duration <= 0 {
		return fmt.Errorf("invalid duration: %s", self.Duration)
	}
	return nil
}
