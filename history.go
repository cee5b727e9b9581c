package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vicfd/rsamanager/internal/audit"
	"github.com/vicfd/rsamanager/internal/config"
	"github.com/vicfd/rsamanager/internal/database"
	"github.com/vicfd/rsamanager/internal/logutil"
	"github.com/vicfd/rsamanager/internal/vault"
)

const historyLimit = 50

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [host]",
		Short: "Show the latest stored rotation records, optionally for one host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := audit.QueryOptions{Limit: historyLimit}
			if len(args) == 1 {
				if err := vault.CheckHost(args[0]); err != nil {
					return err
				}
				opts.Host = args[0]
			}

			config.Load()
			if err := database.Init(config.Cfg.DatabasePath); err != nil {
				return fmt.Errorf("audit database: %w", err)
			}
			defer database.Close()

			return printHistory(cmd.OutOrStdout(), audit.NewAuditor(database.DB, config.Cfg.AuditRetentionDays), opts)
		},
	}
}

// printHistory writes one line per stored record matching opts, newest first.
func printHistory(w io.Writer, a *audit.Auditor, opts audit.QueryOptions) error {
	records, err := a.Query(opts)
	if err != nil {
		return fmt.Errorf("query audit records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "no rotation records")
		return nil
	}
	for _, r := range records {
		comment := r.Outcome
		if r.Details != "" {
			comment += " - " + logutil.SanitizeForLog(r.Details)
		}
		fmt.Fprintf(w, "%s  %-16s  %-30s  %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.RunTag, r.Host, comment)
	}
	return nil
}
