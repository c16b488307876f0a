package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tariffsync/tariff-service/internal/amber"
	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/http/ratelimit"
	"github.com/tariffsync/tariff-service/internal/storage"
	"github.com/tariffsync/tariff-service/internal/syncer"
	"github.com/tariffsync/tariff-service/internal/tesla"
)

var syncCmd = &cobra.Command{
	Use:   "sync [target...]",
	Short: "Run one sync cycle for configured targets",
	Long: `Run one sync cycle for the named targets, or every configured target
when none are named. The document is published only when its fingerprint
differs from the last one published for the target.`,
	Example: `  tariff-sync sync
  tariff-sync sync home`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	defer database.Close()
	ctx := cmd.Context()

	targets, err := syncer.TargetsFrom(cfg.Sync.Targets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no sync targets configured")
	}
	opts, err := syncer.OptionsFrom(cfg)
	if err != nil {
		return err
	}
	archive, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		return err
	}

	var locker syncer.Locker = syncer.NoopLocker{}
	if cfg.Redis.URL != "" {
		rl, err := syncer.NewRedisLocker(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix, *logger)
		if err != nil {
			return err
		}
		defer rl.Close()
		locker = rl
	}

	rl := ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		MaxRetries:        cfg.RateLimit.MaxRetries,
		InitialBackoffMs:  cfg.RateLimit.InitialBackoffMs,
		MaxBackoffMs:      cfg.RateLimit.MaxBackoffMs,
	}
	svc := syncer.NewService(
		targets,
		amber.NewClient(cfg.Amber, rl, *logger),
		tesla.NewClient(cfg.Tesla, rl, *logger),
		database.NewStore(database.Pool()),
		archive,
		locker,
		opts,
		*logger,
	)

	var results []syncer.Result
	if len(args) == 0 {
		results = svc.RunAll(ctx)
	} else {
		for _, name := range args {
			run, err := svc.Run(ctx, name)
			results = append(results, syncer.Result{Target: name, Run: run, Err: err})
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTATUS\tFINGERPRINT\tERROR")
	failed := 0
	for _, r := range results {
		status, fp, msg := "-", "-", ""
		if r.Run != nil {
			status = r.Run.Status
			if r.Run.Fingerprint != nil {
				fp = (*r.Run.Fingerprint)[:12]
			}
		}
		if r.Err != nil {
			failed++
			msg = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Target, status, fp, msg)
	}
	w.Flush()

	if failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed", failed, len(results))
	}
	return nil
}
