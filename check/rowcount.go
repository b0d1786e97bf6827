package check

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gookit/slog"

	"pgCheck/model"
	"pgCheck/mongo"
	"pgCheck/mssql"
	"pgCheck/mysql"
	"pgCheck/pgsql"
	"pgCheck/threading"
	"pgCheck/util"
)

var Engines = []string{"pgsql", "mysql", "mongo", "mssql"}

// OpenFunc opens one side of a comparison.
type OpenFunc func(ctx context.Context, host string, port int, user, password, dbname string) (model.Database, error)

func OpenDatabase(engine string, parallel int, sslmode string) (OpenFunc, error) {
	switch engine {
	case "pgsql":
		return func(ctx context.Context, host string, port int, user, password, dbname string) (model.Database, error) {
			return pgsql.NewDatabase(ctx, host, port, user, password, dbname, sslmode, parallel)
		}, nil
	case "mysql":
		return func(ctx context.Context, host string, port int, user, password, dbname string) (model.Database, error) {
			return mysql.NewDatabase(ctx, host, port, user, password, dbname)
		}, nil
	case "mongo":
		return func(ctx context.Context, host string, port int, user, password, dbname string) (model.Database, error) {
			return mongo.NewDatabase(ctx, host, port, user, password, dbname)
		}, nil
	case "mssql":
		return func(ctx context.Context, host string, port int, user, password, dbname string) (model.Database, error) {
			return mssql.NewDatabase(ctx, host, port, user, password, dbname)
		}, nil
	}
	return nil, fmt.Errorf("unknown engine: %s", engine)
}

// Counter compares table row counts between a source and a target instance.
type Counter struct {
	Options *model.CountOptions
	Open    OpenFunc
}

func NewCounter(opt *model.CountOptions) (*Counter, error) {
	open, err := OpenDatabase(opt.Engine, opt.Parallel, opt.SslMode)
	if err != nil {
		return nil, err
	}
	return &Counter{Options: opt, Open: open}, nil
}

// DatabaseReport is the outcome of comparing one database group.
type DatabaseReport struct {
	DbGroup [2]string
	Tables  *model.TableInfo
	Results []*model.Result
}

func (self *DatabaseReport) Failures() (diff, unknown int) {
	for _, res := range self.Results {
		switch res.Status {
		case 1:
		case 0:
			diff++
		default:
			unknown++
		}
	}
	return
}

func (self *Counter) Start(ctx context.Context) error {
	defer util.TimeCost()("row count comparison finished")
	var diff, unknown, missing int
	var reports []*DatabaseReport
	for _, dbgroup := range self.Options.DbGroupList {
		report, err := self.CheckDatabase(ctx, dbgroup)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		d, u := report.Failures()
		diff += d
		unknown += u
		missing += len(report.Tables.SourceMore) + len(report.Tables.TargetMore)
	}

	if self.Options.Report != "" {
		if err := util.WriteFile(self.Options.Report, FormatReport(reports)); err != nil {
			return err
		}
		slog.Infof("Report: %s", self.Options.Report)
	}

	if diff+unknown+missing > 0 {
		return fmt.Errorf("%w: %d different, %d failed, %d missing on one side", ErrRowCountMismatch, diff, unknown, missing)
	}
	return nil
}

func (self *Counter) filter(tables []string) []string {
	res := make([]string, 0, len(tables))
	for _, tb := range tables {
		if len(self.Options.TableList) > 0 && !util.InSlice(tb, self.Options.TableList) {
			continue
		}
		if util.InSlice(tb, self.Options.SkipTableList) {
			continue
		}
		res = append(res, tb)
	}
	return res
}

func (self *Counter) CheckDatabase(ctx context.Context, dbgroup [2]string) (*DatabaseReport, error) {
	defer util.TimeCost()(fmt.Sprintf("[%s:%s] database row counts compared", dbgroup[0], dbgroup[1]))
	opt := self.Options

	source, err := self.Open(ctx, opt.SourceHost, opt.SourcePort, opt.User, opt.Password, dbgroup[0])
	if err != nil {
		return nil, fmt.Errorf("[%s] source -> %w", dbgroup[0], err)
	}
	defer source.Close()
	target, err := self.Open(ctx, opt.TargetHost, opt.TargetPort, opt.TargetUser, opt.TargetPassword, dbgroup[1])
	if err != nil {
		return nil, fmt.Errorf("[%s] target -> %w", dbgroup[1], err)
	}
	defer target.Close()

	slog.Infof("[%s:%s] getting list of tables ...", dbgroup[0], dbgroup[1])
	sourceTables, err := source.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("[%s] source -> %w", dbgroup[0], err)
	}
	targetTables, err := target.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("[%s] target -> %w", dbgroup[1], err)
	}

	info := &model.TableInfo{
		Source: self.filter(sourceTables),
		Target: self.filter(targetTables),
		Skip:   opt.SkipTableList,
	}
	info.SourceMore = util.Subtract(info.Source, info.Target)
	info.TargetMore = util.Subtract(info.Target, info.Source)
	info.ToCheck = util.Subtract(info.Source, info.SourceMore)
	slog.Infof("[%s:%s] found %d source tables, %d target tables, %d in common", dbgroup[0], dbgroup[1], len(info.Source), len(info.Target), len(info.ToCheck))

	report := &DatabaseReport{DbGroup: dbgroup, Tables: info}
	for _, tb := range util.Subtract(self.filter(opt.TableList), append(append([]string{}, sourceTables...), targetTables...)) {
		report.Results = append(report.Results, &model.Result{DbName: dbgroup[1], TbName: tb, Status: -1, Message: "table not found on either side"})
	}
	for _, tb := range info.SourceMore {
		slog.Errorf("[%s.%s] table is missing on the target", dbgroup[1], tb)
	}
	for _, tb := range info.TargetMore {
		slog.Errorf("[%s.%s] table is missing on the source", dbgroup[0], tb)
	}

	results, err := self.countTables(ctx, dbgroup, source, target, info.ToCheck)
	if err != nil {
		return nil, err
	}
	report.Results = append(report.Results, results...)
	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].TbName < report.Results[j].TbName })
	return report, nil
}

func (self *Counter) countTables(ctx context.Context, dbgroup [2]string, source, target model.Database, tables []string) ([]*model.Result, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	var mu sync.Mutex
	results := make([]*model.Result, 0, len(tables))

	queue := threading.NewQueue[string]()
	for _, tb := range tables {
		queue.Put(tb)
	}
	pool := threading.NewPool(min(self.Options.Parallel, len(tables)))
	pool.Start(ctx, func(ctx context.Context, id int) error {
		for {
			tb, err := queue.Get(ctx)
			if err != nil {
				return err
			}
			res := CountTable(ctx, dbgroup, source, target, tb)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			queue.Done()
		}
	})

	var err error
	select {
	case <-queue.Idle():
	case <-ctx.Done():
		err = fmt.Errorf("%w -> %w", ErrInterrupted, ctx.Err())
	}
	if stopErr := pool.Stop(); err == nil && stopErr != nil {
		err = stopErr
	}
	return results, err
}

// CountTable counts one table on both sides at the same time.
func CountTable(ctx context.Context, dbgroup [2]string, source, target model.Database, tb string) *model.Result {
	t := time.Now()
	res := &model.Result{DbName: dbgroup[1], TbName: tb}
	var serr, terr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.SourceRows, serr = source.CountRows(ctx, tb)
	}()
	go func() {
		defer wg.Done()
		res.TargetRows, terr = target.CountRows(ctx, tb)
	}()
	wg.Wait()
	res.ExecuteSeconds = int(time.Since(t).Seconds())

	switch {
	case serr != nil || terr != nil:
		res.Status = -1
		msgs := []string{}
		for _, e := range []error{serr, terr} {
			if e != nil {
				msgs = append(msgs, e.Error())
			}
		}
		res.Message = strings.Join(msgs, "; ")
		slog.Errorf("%s %s", res.GetShortLog(), res.Message)
	case res.SourceRows == res.TargetRows:
		res.Status = 1
		slog.Info(res.GetShortLog())
	default:
		res.Status = 0
		slog.Warn(res.GetShortLog())
	}
	return res
}

func FormatReport(reports []*DatabaseReport) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"SourceDb", "TargetDb", "TableName", "Result", "ExecuteSeconds", "SourceRows", "TargetRows", "Error"})
	for _, report := range reports {
		for _, res := range report.Results {
			_ = w.Write([]string{report.DbGroup[0], report.DbGroup[1], res.TbName, res.StatusText(), strconv.Itoa(res.ExecuteSeconds),
				strconv.FormatInt(res.SourceRows, 10), strconv.FormatInt(res.TargetRows, 10), res.Message})
		}
		for _, tb := range report.Tables.SourceMore {
			_ = w.Write([]string{report.DbGroup[0], report.DbGroup[1], tb, "unknown", "0", "0", "0", "missing on target"})
		}
		for _, tb := range report.Tables.TargetMore {
			_ = w.Write([]string{report.DbGroup[0], report.DbGroup[1], tb, "unknown", "0", "0", "0", "missing on source"})
		}
	}
	w.Flush()
	return buf.String()
}
