package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketlab/internal/calendar"
	"marketlab/internal/config"
	"marketlab/internal/domain"
	"marketlab/internal/fetch"
	"marketlab/internal/gaps"
	"marketlab/internal/orchestrator"
	"marketlab/internal/scheduler"
	"marketlab/internal/store"
	"marketlab/internal/util"
)

// Exit codes: 0 all symbols succeeded, 1 one or more symbols failed,
// 2 batch-level failure (config, store, calendar).
const (
	exitOK      = 0
	exitPartial = 1
	exitFailed  = 2
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: marketlab <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run        Run the daily batch for one date\n")
		fmt.Fprintf(os.Stderr, "  backfill   Run the batch over a date range\n")
		fmt.Fprintf(os.Stderr, "  gaps       Report missing trading days per symbol\n")
		fmt.Fprintf(os.Stderr, "  plan       Turn the gap report into a backfill plan\n")
		fmt.Fprintf(os.Stderr, "  schedule   Run the daily batch on a cron schedule\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(exitFailed)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = cmdRun(os.Args[2:])
	case "backfill":
		code = cmdBackfill(os.Args[2:])
	case "gaps":
		code = cmdGaps(os.Args[2:])
	case "plan":
		code = cmdPlan(os.Args[2:])
	case "schedule":
		code = cmdSchedule(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		code = exitFailed
	}
	os.Exit(code)
}

// app bundles the wired collaborators every subcommand needs.
type app struct {
	cfg  *config.Config
	cal  *calendar.Calendar
	bars *store.ParquetStore
	db   *store.SQLiteStore
	orch *orchestrator.Orchestrator
}

func (a *app) close() {
	a.db.Close()
}

func newApp(cfgPath string) (*app, error) {
	if p := os.Getenv("MARKETLAB_CONFIG"); p != "" && cfgPath == defaultConfigPath {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	cal, err := calendar.New(calendar.Market(cfg.Market.Calendar))
	if err != nil {
		return nil, err
	}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	bars := store.NewParquetStore(cfg.Storage.DataDir)

	fetcher := fetch.NewAlpacaFetcher(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Fetch.RateLimitPerMin,
	)

	orch := orchestrator.New(orchestrator.Options{
		Config:   cfg,
		Logger:   logger,
		Calendar: cal,
		Fetcher:  fetcher,
		Bars:     bars,
		Results:  db,
		Recs:     db,
		Runs:     db,
		Catalog:  db,
	})

	return &app{cfg: cfg, cal: cal, bars: bars, db: db, orch: orch}, nil
}

const defaultConfigPath = "config/marketlab.yaml"

func splitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(strings.ToUpper(sym)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return domain.Day(t), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func summaryExitCode(summaries ...domain.RunSummary) int {
	for _, s := range summaries {
		if !s.AllSucceeded() {
			return exitPartial
		}
	}
	return exitOK
}

func printSummary(s *domain.RunSummary) {
	fmt.Printf("%s: %d/%d symbols succeeded\n",
		s.RunDate.Format(domain.DateFormat), s.SymbolsSucceeded, s.SymbolsAttempted)
	for _, e := range s.Errors {
		fmt.Printf("  %s: %s\n", e.Symbol, e.Reason)
	}
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config file path")
	dateStr := fs.String("date", "", "run date (YYYY-MM-DD, default today)")
	symbolsStr := fs.String("symbols", "", "comma-separated symbol override")
	dryRun := fs.Bool("dry-run", false, "run all steps without persisting")
	force := fs.Bool("force", false, "bypass trading-day gate and re-derive existing results")
	fs.Parse(args)

	date := domain.Day(time.Now().UTC())
	if *dateStr != "" {
		var err error
		if date, err = parseDay(*dateStr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailed
		}
	}

	a, err := newApp(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := a.orch.RunForDate(ctx, date, orchestrator.RunOptions{
		Symbols: splitSymbols(*symbolsStr),
		DryRun:  *dryRun,
		Force:   *force,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	printSummary(summary)
	return summaryExitCode(*summary)
}

func cmdBackfill(args []string) int {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config file path")
	startStr := fs.String("start", "", "start date (YYYY-MM-DD, required)")
	endStr := fs.String("end", "", "end date (YYYY-MM-DD, required)")
	symbolsStr := fs.String("symbols", "", "comma-separated symbol override")
	dryRun := fs.Bool("dry-run", false, "run all steps without persisting")
	force := fs.Bool("force", false, "re-derive existing results")
	fs.Parse(args)

	if *startStr == "" || *endStr == "" {
		fmt.Fprintln(os.Stderr, "backfill requires -start and -end")
		return exitFailed
	}
	start, err := parseDay(*startStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	end, err := parseDay(*endStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	a, err := newApp(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	summaries, err := a.orch.RunForRange(ctx, start, end, orchestrator.RunOptions{
		Symbols: splitSymbols(*symbolsStr),
		DryRun:  *dryRun,
		Force:   *force,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	for i := range summaries {
		printSummary(&summaries[i])
	}
	return summaryExitCode(summaries...)
}

// detectGaps resolves the symbol set and date range, then runs detection.
func detectGaps(ctx context.Context, a *app, symbolsStr, startStr, endStr string) ([]domain.DataGap, error) {
	symbols := splitSymbols(symbolsStr)
	if len(symbols) == 0 {
		symbols = a.cfg.Market.Symbols
	}

	end := domain.Day(time.Now().UTC())
	start := end.AddDate(0, 0, -a.cfg.Market.HistoryDays)
	var err error
	if startStr != "" {
		if start, err = parseDay(startStr); err != nil {
			return nil, err
		}
	}
	if endStr != "" {
		if end, err = parseDay(endStr); err != nil {
			return nil, err
		}
	}

	detector := gaps.NewDetector(a.cal, a.bars)
	return detector.DetectAll(ctx, symbols, start, end)
}

func cmdGaps(args []string) int {
	fs := flag.NewFlagSet("gaps", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config file path")
	symbolsStr := fs.String("symbols", "", "comma-separated symbol override")
	startStr := fs.String("start", "", "range start (YYYY-MM-DD, default history window)")
	endStr := fs.String("end", "", "range end (YYYY-MM-DD, default today)")
	fs.Parse(args)

	a, err := newApp(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := detectGaps(ctx, a, *symbolsStr, *startStr, *endStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	if len(report) == 0 {
		fmt.Println("no gaps")
		return exitOK
	}
	for _, g := range report {
		fmt.Printf("%s  %s .. %s  (%d trading days)\n",
			g.Symbol,
			g.StartDate.Format(domain.DateFormat),
			g.EndDate.Format(domain.DateFormat),
			g.DayCount,
		)
	}
	return exitOK
}

func cmdPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config file path")
	symbolsStr := fs.String("symbols", "", "comma-separated symbol override")
	startStr := fs.String("start", "", "range start (YYYY-MM-DD, default history window)")
	endStr := fs.String("end", "", "range end (YYYY-MM-DD, default today)")
	execute := fs.Bool("execute", false, "execute the plan instead of printing it")
	fs.Parse(args)

	a, err := newApp(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := detectGaps(ctx, a, *symbolsStr, *startStr, *endStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	plan := gaps.Plan(report)

	if len(plan) == 0 {
		fmt.Println("nothing to backfill")
		return exitOK
	}
	for _, req := range plan {
		fmt.Printf("backfill %s  %s .. %s\n",
			req.Symbol,
			req.Start.Format(domain.DateFormat),
			req.End.Format(domain.DateFormat),
		)
	}
	if !*execute {
		return exitOK
	}

	summaries, err := a.orch.Repair(ctx, plan, orchestrator.RunOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	for i := range summaries {
		printSummary(&summaries[i])
	}
	return summaryExitCode(summaries...)
}

func cmdSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config file path")
	runOnStart := fs.Bool("run-on-start", false, "run the daily batch immediately, then follow the schedule")
	fs.Parse(args)

	a, err := newApp(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	sched := scheduler.New(ctx, a.orch, util.NewLogger(a.cfg.Logging.Level))
	if err := sched.Register(a.cfg.Scheduler.CronSpec); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	if *runOnStart {
		sched.RunNow()
	}
	sched.Start()
	<-ctx.Done()
	sched.Stop()
	return exitOK
}
