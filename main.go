package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

const maxWebSocketClients = 20

type options struct {
	out           string
	extraFile     string
	groupSuffix   string
	numSummary    int
	interval      float64
	limit         int
	delay         int
	ignore        []string
	user          string
	password      string
	host          string
	port          int
	socket        string
	dbPath        string
	retentionDays int
	httpAddr      string
	logFile       string
	verbose       bool
	version       bool
	help          bool

	usage func(w io.Writer)
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("query_stat", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&opts.out, "out", "o", "", "Write raw queries to this file")
	fs.StringVarP(&opts.extraFile, "defaults-extra-file", "e", "", "Read MySQL option file in addition to ~/.my.cnf")
	fs.StringVarP(&opts.groupSuffix, "defaults-group-suffix", "s", "", "Also read [client<suffix>] from option files")
	fs.IntVarP(&opts.numSummary, "num-summary", "n", 10, "How many queries to show in each summary")
	fs.Float64VarP(&opts.interval, "interval", "i", 1.0, "Seconds between two samples")
	fs.IntVarP(&opts.limit, "limit", "l", 0, "Summarize the last N samples only (0 = since start)")
	fs.IntVarP(&opts.delay, "delay", "d", 1, "Show the summary every N samples")
	fs.StringArrayVar(&opts.ignore, "ignore", nil, "Skip queries matching this glob (repeatable)")
	fs.StringVarP(&opts.user, "user", "u", "", "MySQL user")
	fs.StringVarP(&opts.password, "password", "p", "", "MySQL password")
	fs.StringVarP(&opts.host, "host", "h", "", "MySQL host or socket path")
	fs.IntVarP(&opts.port, "port", "P", 0, "MySQL port")
	fs.StringVar(&opts.socket, "socket", "", "MySQL unix socket")
	fs.StringVar(&opts.dbPath, "db", "", "Store samples in this SQLite database")
	fs.IntVar(&opts.retentionDays, "db-retention-days", 7, "Delete stored samples older than N days at startup (0 = keep)")
	fs.StringVar(&opts.httpAddr, "http", "", "Serve the live API on this address, e.g. localhost:3002")
	fs.StringVar(&opts.logFile, "log-file", "query_stat.log", "Application log file (empty = stderr only)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&opts.version, "version", false, "Show version information and exit")
	fs.BoolVarP(&opts.help, "help", "?", false, "Show this help and exit")

	opts.usage = func(w io.Writer) {
		fmt.Fprintln(w, "Usage: query_stat [options]")
		fmt.Fprint(w, fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.help || opts.version {
		return opts, nil
	}

	switch {
	case opts.interval <= 0:
		return nil, errors.New("interval must be positive")
	case opts.numSummary <= 0:
		return nil, errors.New("num-summary must be positive")
	case opts.limit < 0:
		return nil, errors.New("limit must not be negative")
	case opts.delay < 1:
		return nil, errors.New("delay must be at least 1")
	case opts.port < 0:
		return nil, errors.New("port must not be negative")
	}
	return opts, nil
}

func (o *options) profilerConfig() ProfilerConfig {
	return ProfilerConfig{
		NumSummary: o.numSummary,
		Limit:      o.limit,
		Interval:   time.Duration(o.interval * float64(time.Second)),
		Delay:      o.delay,
		Verbose:    o.verbose,
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.help {
		opts.usage(os.Stdout)
		return nil
	}
	if opts.version {
		return showVersion(os.Stdout)
	}

	logCloser := setupLogging(opts.logFile)
	defer logCloser.Close()

	log.Println("=== MySQL Query Statistics ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := LoadMyCnf(DefaultOptionFiles(opts.extraFile), opts.groupSuffix)
	if err != nil {
		return err
	}
	conn.Override(opts.user, opts.password, opts.host, opts.port, opts.socket)
	log.Printf("=== Connecting to %s ===\n", conn)

	source, err := OpenMySQLProcessList(ctx, conn.DSN(), opts.verbose)
	if err != nil {
		return err
	}
	defer source.Close()

	filter, err := NewQueryFilter(opts.ignore)
	if err != nil {
		return fmt.Errorf("--ignore: %w", err)
	}

	var sinks []RawLogSink
	if opts.out != "" {
		textLog, err := CreateTextRawLog(opts.out)
		if err != nil {
			return err
		}
		sinks = append(sinks, textLog)
	}
	var store *SampleStore
	if opts.dbPath != "" {
		store, err = OpenSampleStore(opts.dbPath, opts.verbose)
		if err != nil {
			for _, sink := range sinks {
				sink.Close(nil)
			}
			return err
		}
		if opts.retentionDays > 0 {
			if deleted, err := store.CleanupOldSamples(opts.retentionDays); err != nil {
				log.Printf("Error cleaning up old samples: %v\n", err)
			} else if deleted > 0 {
				log.Printf("Deleted %d samples older than %d days\n", deleted, opts.retentionDays)
				if err := store.VacuumDatabase(); err != nil {
					log.Printf("Error vacuuming database: %v\n", err)
				}
			}
		}
		sinks = append(sinks, store)
	}

	profiler := NewProfiler(opts.profilerConfig(), source, filter, os.Stdout, combineRawLogs(sinks...))

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			log.Println("=== Shutting down ===")
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.httpAddr != "" {
		hub := NewHub(maxWebSocketClients)
		go hub.Run(ctx)
		profiler.AddPublisher(hub)

		app := newHTTPApp(profiler, hub, store)
		go startHTTPServer(opts.httpAddr, app)
		defer func() {
			if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
				log.Printf("Error shutting down HTTP server: %v\n", err)
			}
		}()
	}

	log.Println("=== Sampling, press Ctrl-C to stop ===")
	err = profiler.Run(ctx)
	log.Printf("Memory: %s\n", GetMemoryStatsString())
	return err
}
