package pgsql

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/gookit/slog"

	"pgCheck/model"
)

// Dumper runs pg_dump with its output thrown away. Only the exit status and
// stderr are kept.
type Dumper struct {
	PgDump   string
	Host     string
	Port     int
	User     string
	Password string
}

func NewDumper(opt *model.Options) *Dumper {
	return &Dumper{
		PgDump:   opt.PgDump,
		Host:     opt.Host,
		Port:     opt.Port,
		User:     opt.User,
		Password: opt.Password,
	}
}

func (self *Dumper) baseArgs() []string {
	return []string{"-h", self.Host, "-p", strconv.Itoa(self.Port), "-U", self.User, "-w"}
}

// Args builds the argument vector. An empty table means a schema-only dump
// of the whole database.
func (self *Dumper) Args(dbname, table string) []string {
	args := self.baseArgs()
	if table == "" {
		args = append(args, "--schema-only")
	} else {
		args = append(args, "-t", table)
	}
	return append(args, dbname)
}

func (self *Dumper) DumpSchema(ctx context.Context, dbname string) model.DumpOutcome {
	return self.run(ctx, self.Args(dbname, ""))
}

func (self *Dumper) DumpTable(ctx context.Context, job model.Job) model.DumpOutcome {
	return self.run(ctx, self.Args(job.DbName, job.TbName))
}

func (self *Dumper) run(ctx context.Context, args []string) model.DumpOutcome {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, self.PgDump, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()
	if self.Password != "" {
		cmd.Env = append(cmd.Env, "PGPASSWORD="+self.Password)
	}

	slog.Tracef("Executing %s %v", self.PgDump, args)
	err := cmd.Run()
	res := model.DumpOutcome{Output: stderr.String()}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		res.ExitStatus = exitErr.ExitCode()
		return res
	}
	//not started, or killed by a signal
	res.ExitStatus = -1
	res.Err = err
	return res
}
