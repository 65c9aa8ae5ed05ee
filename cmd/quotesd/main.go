package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/common"
	"github.com/joseph-ayodele/quotation-intake/internal/core/async"
	"github.com/joseph-ayodele/quotation-intake/internal/export"
	"github.com/joseph-ayodele/quotation-intake/internal/ingest"
	"github.com/joseph-ayodele/quotation-intake/internal/lock"
	"github.com/joseph-ayodele/quotation-intake/internal/mail/maildrop"
	"github.com/joseph-ayodele/quotation-intake/internal/server"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "quotesd",
		Usage: "Ingest quotation attachments from email and submit them downstream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"QUOTESD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
				Value: "json",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run passes on an interval and serve gRPC health",
				Action: runCommand,
			},
			{
				Name:   "once",
				Usage:  "Run a single pass and print its report",
				Action: onceCommand,
			},
			{
				Name:   "export",
				Usage:  "Write processed quotations to an XLSX workbook",
				Action: exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output .xlsx path", Required: true},
					&cli.StringFlag{Name: "from", Usage: "First day, YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "Last day, YYYY-MM-DD"},
				},
			},
			{
				Name:  "locks",
				Usage: "Inspect and clear work item locks",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "Show held locks",
						Action: locksListCommand,
					},
					{
						Name:      "release",
						Usage:     "Clear the lock of a work item left behind by a dead holder",
						ArgsUsage: "<item-id>",
						Action:    locksReleaseCommand,
					},
				},
			},
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

// setup installs the logger and loads config for every command.
func setup(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if c.String("log-format") == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := common.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	cfg.LogLevel = strings.ToLower(c.String("log-level"))
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *common.Config {
	if cfg, ok := c.App.Metadata[configKey].(*common.Config); ok {
		return cfg
	}
	return common.DefaultConfig()
}

func runCommand(c *cli.Context) error {
	logger := slog.Default()
	cfg := configFrom(c)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comp, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comp.Close()

	health := server.NewHealth(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	served := make(chan error, 1)
	go func() { served <- health.Serve(ctx, lis) }()

	queue := async.NewPassQueue(comp.coord, logger,
		async.WithWorkers(cfg.Scheduler.Workers),
		async.WithQueueSize(cfg.Scheduler.QueueSize),
		async.WithPassTimeout(cfg.Scheduler.PassTimeout),
		async.WithReportHook(health.Observe),
	)

	var extra <-chan struct{}
	if comp.maildrop != nil && cfg.Mail.Maildrop.Watch {
		extra, err = maildrop.Watch(ctx, comp.maildrop.InboxDir(), 500*time.Millisecond, logger)
		if err != nil {
			logger.Warn("maildrop.watch.disabled", "error", err)
		}
	}

	async.Schedule(ctx, queue, cfg.Scheduler.Interval, extra, logger)

	logger.Info("quotesd.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	if err := <-served; err != nil {
		logger.Error("grpc.serve.error", "error", err)
	}
	return nil
}

func onceCommand(c *cli.Context) error {
	cfg := configFrom(c)
	comp, err := build(c.Context, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer comp.Close()

	report := comp.coord.RunPass(c.Context)
	printReport(c.App.Writer, report)
	if !report.Healthy() {
		return cli.Exit(fmt.Sprintf("stage failed: %v", report.StageErr), 1)
	}
	return nil
}

func printReport(w io.Writer, r ingest.PassReport) {
	fmt.Fprintf(w, "pass %s  %s\n", r.PassID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "fetched=%d duplicates=%d skipped=%d staged=%d attachments=%d checkpoint=%s\n",
		r.Stage.Fetched, r.Stage.Duplicates, r.Stage.Skipped, r.Stage.Staged, r.Stage.Attachments,
		r.Checkpoint.UTC().Format(time.RFC3339))
	if r.StageErr != nil {
		fmt.Fprintf(w, "stage error: %v\n", r.StageErr)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tOUTCOME\tFILES\tQUOTATIONS\tERROR")
	for _, it := range r.Items {
		errText := ""
		if it.Err != nil {
			errText = it.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", it.ItemID, it.Outcome, it.Files, it.Quotations, errText)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "processed=%d pending_review=%d failed=%d\n",
		r.Count(constants.OutcomeProcessed), r.Count(constants.OutcomeNoValidResults), r.Count(constants.OutcomeFailed))
}

func parseDay(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return &t, nil
}

func exportCommand(c *cli.Context) error {
	logger := slog.Default()
	from, err := parseDay(c.String("from"))
	if err != nil {
		return err
	}
	to, err := parseDay(c.String("to"))
	if err != nil {
		return err
	}

	store, err := openStore(configFrom(c), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	buf, err := export.NewService(store, logger).ExportXLSX(c.Context, from, to)
	if err != nil {
		return err
	}
	out := c.String("out")
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%d bytes)\n", out, len(buf))
	return nil
}

func locksListCommand(c *cli.Context) error {
	logger := slog.Default()
	store, err := openStore(configFrom(c), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := lock.NewManager(store, logger).List(c.Context)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tOWNER\tACQUIRED\tAGE")
	for _, in := range infos {
		acquired, age := "-", "-"
		if !in.AcquiredAt.IsZero() {
			acquired = in.AcquiredAt.UTC().Format(time.RFC3339)
			age = time.Since(in.AcquiredAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", in.ItemID, in.Owner, acquired, age)
	}
	return tw.Flush()
}

func locksReleaseCommand(c *cli.Context) error {
	itemID := strings.TrimSpace(c.Args().First())
	if itemID == "" {
		return cli.Exit("item id is required", 2)
	}
	logger := slog.Default()
	store, err := openStore(configFrom(c), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := lock.NewManager(store, logger).Release(c.Context, itemID); err != nil {
		return err
	}
	logger.Warn("lock.released.manual", "item_id", itemID)
	fmt.Fprintf(c.App.Writer, "released %s\n", itemID)
	return nil
}
