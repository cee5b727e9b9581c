package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/vicfd/rsamanager/internal/vault"
)

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run regenerate on the RSAMANAGER_SCHEDULE cron expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup()
			if err != nil {
				return err
			}
			defer env.close()

			return runSchedule(ctx, env.cfg.Schedule, func(ctx context.Context) {
				_, err := env.regenerate(ctx)
				switch {
				case isLocked(err):
					log.Printf("Scheduled rotation skipped: %v", err)
				case err != nil:
					log.Printf("Scheduled rotation failed: %v", err)
				}
			})
		},
	}
}

// runSchedule runs job on the cron expression expr until ctx is cancelled.
// A tick that fires while the previous job is still running is skipped; the
// vault lock covers runs started by other processes.
func runSchedule(ctx context.Context, expr string, job func(context.Context)) error {
	if expr == "" {
		return errors.New("RSAMANAGER_SCHEDULE is not set")
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	c.Schedule(sched, cron.FuncJob(func() { job(ctx) }))
	c.Start()
	log.Printf("Rotation scheduled (%s), next run at %s", expr, sched.Next(time.Now()).Format("2006-01-02 15:04:05"))

	<-ctx.Done()
	log.Printf("Stopping scheduler, waiting for a running rotation to finish")
	<-c.Stop().Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// isLocked reports whether err means another run holds the vault.
func isLocked(err error) bool {
	return errors.Is(err, vault.ErrLocked)
}
