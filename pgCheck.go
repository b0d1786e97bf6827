package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/slog"
	"github.com/urfave/cli/v2"

	"pgCheck/check"
	"pgCheck/model"
	"pgCheck/pgsql"
)

func version() {
	text := `
####################################################################################################
#  Name        :  pgCheck
#  Description :  Dump every table of a PostgreSQL server to /dev/null in parallel to validate the
#                 data files (meant for replicas where parallel pg_dump is not available), compare
#                 row counts between two instances, and store pg_stat_activity snapshots.
#                 NB! Integrity is still not fully guaranteed with this approach (no snapshot, no
#                 constraint/index validation).
#  Updates     :
#      Version     What
#      --------    ---------------------------------------------------------------------------------
#      v1.0        verify: parallel pg_dump of all tables to a discard sink
#      v1.1        rowcount: pgsql/mysql/mongo/mssql row count comparison
#      v1.2        activity: pg_stat_activity snapshots
####################################################################################################
`
	fmt.Println(text)
}

func configureLog(quiet bool) {
	slog.Configure(func(logger *slog.SugaredLogger) {
		f := logger.Formatter.(*slog.TextFormatter)
		f.EnableColor = false
		switch {
		case quiet:
			logger.Level = slog.ErrorLevel
		case os.Getenv("PGCHECK_TRACE") != "":
			logger.Level = slog.TraceLevel
		default:
			logger.Level = slog.InfoLevel
		}
	})
}

// GetVerifyOptions merges the optional YAML config file with the flags.
// A flag given on the command line always wins over the file.
func GetVerifyOptions(ctx *cli.Context) (*model.Options, error) {
	opt := &model.Options{}
	if path := ctx.String("config"); path != "" {
		var err error
		opt, err = model.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
	}

	setString := func(name string, dst *string) {
		if ctx.IsSet(name) || *dst == "" {
			*dst = ctx.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if ctx.IsSet(name) || *dst == 0 {
			*dst = ctx.Int(name)
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if ctx.IsSet(name) || *dst == 0 {
			*dst = ctx.Duration(name)
		}
	}

	setString("bindir", &opt.BinDir)
	setString("host", &opt.Host)
	setInt("port", &opt.Port)
	setString("username", &opt.User)
	setString("password", &opt.Password)
	setString("dbname", &opt.Db)
	setInt("jobs", &opt.Jobs)
	setString("sslmode", &opt.SslMode)
	setDuration("liveness-interval", &opt.LivenessInterval)
	setDuration("progress-interval", &opt.ProgressInterval)
	if ctx.IsSet("quiet") {
		opt.Quiet = ctx.Bool("quiet")
	}

	if err := opt.Init(); err != nil {
		return nil, err
	}
	return opt, nil
}

func GetCountOptions(ctx *cli.Context, engine string) (*model.CountOptions, error) {
	opt := &model.CountOptions{
		Engine:         engine,
		Source:         ctx.String("source"),
		Target:         ctx.String("target"),
		User:           ctx.String("user"),
		Password:       ctx.String("password"),
		TargetUser:     ctx.String("target-user"),
		TargetPassword: ctx.String("target-password"),
		Db:             ctx.String("db"),
		Tables:         ctx.String("tables"),
		SkipTables:     ctx.String("skip-tables"),
		Report:         ctx.String("report"),
		SslMode:        ctx.String("sslmode"),
		Parallel:       ctx.Int("parallel"),
	}
	if err := opt.Init(); err != nil {
		return nil, err
	}
	return opt, nil
}

func GetActivityOptions(ctx *cli.Context) (*model.ActivityOptions, error) {
	opt := &model.ActivityOptions{
		Host:     ctx.String("host"),
		Port:     ctx.Int("port"),
		User:     ctx.String("username"),
		Password: ctx.String("password"),
		Db:       ctx.String("dbname"),
		SslMode:  ctx.String("sslmode"),
		Table:    ctx.String("snapshot-storage-table"),
		Interval: time.Duration(ctx.Int("interval-ms")) * time.Millisecond,
		Duration: time.Duration(ctx.Int("duration-s")) * time.Second,
		Truncate: ctx.Bool("truncate"),
		Unlogged: ctx.Bool("unlogged"),
	}
	if err := opt.Init(); err != nil {
		return nil, err
	}
	return opt, nil
}

func runVerify(ctx *cli.Context) error {
	configureLog(ctx.Bool("quiet"))
	opt, err := GetVerifyOptions(ctx)
	if err != nil {
		return err
	}
	configureLog(opt.Quiet)

	v := check.NewVerifier(opt, pgsql.NewCatalog(opt), pgsql.NewDumper(opt))
	return v.Start(ctx.Context)
}

func runCount(engine string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		configureLog(ctx.Bool("quiet"))
		opt, err := GetCountOptions(ctx, engine)
		if err != nil {
			return err
		}
		c, err := check.NewCounter(opt)
		if err != nil {
			return err
		}
		return c.Start(ctx.Context)
	}
}

func runActivity(ctx *cli.Context) error {
	configureLog(ctx.Bool("quiet"))
	opt, err := GetActivityOptions(ctx)
	if err != nil {
		return err
	}
	store, err := pgsql.NewActivityStore(ctx.Context, opt)
	if err != nil {
		return err
	}
	defer store.Close()
	return check.NewActivityMonitor(opt, store).Start(ctx.Context)
}

func countFlags(engine string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "source", Aliases: []string{"S"}, Required: true, Usage: fmt.Sprintf("The host and port of the source %s instance, eq: 10.0.0.201:5432", engine)},
		&cli.StringFlag{Name: "target", Aliases: []string{"T"}, Required: true, Usage: fmt.Sprintf("The host and port of the target %s instance, eq: 10.0.0.202:5432", engine)},
		&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Login user, defaults to $USER"},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Login password"},
		&cli.StringFlag{Name: "target-user", Usage: "Login user of the target, defaults to --user"},
		&cli.StringFlag{Name: "target-password", Usage: "Login password of the target, defaults to --password"},
		&cli.StringFlag{Name: "db", Aliases: []string{"d"}, Required: true, Usage: "dbname, eq: db1,db2 or db1:db01,db2:db02 (use a colon when the source and target names differ)"},
		&cli.StringFlag{Name: "tables", Aliases: []string{"t"}, Usage: "Only these tables, eq: public.users,public.orders"},
		&cli.StringFlag{Name: "skip-tables", Usage: "Skip these tables"},
		&cli.IntFlag{Name: "parallel", Aliases: []string{"P"}, Value: 2, Usage: "Parallel"},
		&cli.StringFlag{Name: "report", Usage: "Write the results to this CSV file"},
		&cli.StringFlag{Name: "sslmode", Value: model.DefaultSslMode, Usage: "sslmode of the pgsql connections"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Errors only"},
	}
}

func verifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file, flags override its values"},
		&cli.StringFlag{Name: "bindir", Aliases: []string{"b"}, Usage: "Postgres binaries folder (required)"},
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Usage: "PG host. IP or unix socket (required)"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: model.DefaultPort, Usage: "PG port"},
		&cli.StringFlag{Name: "username", Aliases: []string{"U"}, Usage: "PG user, defaults to $USER"},
		&cli.StringFlag{Name: "password", EnvVars: []string{"PGPASSWORD"}, Usage: "PG password, ~/.pgpass is used when empty"},
		&cli.StringFlag{Name: "dbname", Aliases: []string{"d"}, Usage: "Test only a single DB"},
		&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: model.DefaultJobs(), Usage: "Max parallel processes to use. Default is count of CPUs/2"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only errors"},
		&cli.StringFlag{Name: "sslmode", Value: model.DefaultSslMode, Usage: "sslmode of the catalog connections"},
		&cli.DurationFlag{Name: "liveness-interval", Value: model.DefaultLivenessInterval, Usage: "How often worker liveness is checked"},
		&cli.DurationFlag{Name: "progress-interval", Value: model.DefaultProgressInterval, Usage: "How often the queue size is reported"},
	}
}

func activityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Value: "localhost", Usage: "DB hostname"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: model.DefaultPort, Usage: "DB port"},
		&cli.StringFlag{Name: "username", Aliases: []string{"U"}, Usage: "DB Username, should be a superuser"},
		&cli.StringFlag{Name: "password", EnvVars: []string{"PGPASSWORD"}, Usage: "DB password"},
		&cli.StringFlag{Name: "dbname", Aliases: []string{"d"}, Usage: "DB name"},
		&cli.StringFlag{Name: "sslmode", Value: model.DefaultSslMode, Usage: "sslmode"},
		&cli.IntFlag{Name: "interval-ms", Required: true, Usage: "pg_stat_activity snapshot interval in ms"},
		&cli.IntFlag{Name: "duration-s", Required: true, Usage: "How long to gather pg_stat_activity snapshots"},
		&cli.StringFlag{Name: "snapshot-storage-table", Required: true, Usage: "Table name where pg_stat_activity snapshot data will be stored"},
		&cli.BoolFlag{Name: "truncate", Usage: "Truncate the snapshot data table if it already exists"},
		&cli.BoolFlag{Name: "unlogged", Usage: "Create the snapshot storage table as an unlogged table, producing no extra WAL"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Errors only"},
	}
}

func main() {
	configureLog(false)

	countCommands := []*cli.Command{}
	for _, engine := range check.Engines {
		countCommands = append(countCommands, &cli.Command{
			Name:   engine,
			Usage:  fmt.Sprintf("compare table row counts between two %s instances", engine),
			Flags:  countFlags(engine),
			Action: runCount(engine),
		})
	}

	app := &cli.App{
		Name:  "pgCheck",
		Usage: "PostgreSQL data file integrity tools",
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print the version banner",
				Action: func(ctx *cli.Context) error {
					version()
					return nil
				},
			},
			{
				Name:   "verify",
				Usage:  "dump all dbs/tables to /dev/null in parallel to validate data file integrity",
				Flags:  verifyFlags(),
				Action: runVerify,
			},
			{
				Name:        "rowcount",
				Usage:       "compare table row counts between two instances",
				Subcommands: countCommands,
			},
			{
				Name:   "activity",
				Usage:  "store snapshots of pg_stat_activity in the monitored DB",
				Flags:  activityFlags(),
				Action: runActivity,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error(err)
		os.Exit(1)
	}
}
