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

	"github.com/spf13/cobra"
	"github.com/vicfd/rsamanager/internal/audit"
	"github.com/vicfd/rsamanager/internal/config"
	"github.com/vicfd/rsamanager/internal/database"
	"github.com/vicfd/rsamanager/internal/logging"
	"github.com/vicfd/rsamanager/internal/remoteexec"
	"github.com/vicfd/rsamanager/internal/rotation"
	"github.com/vicfd/rsamanager/internal/sshkeys"
	"github.com/vicfd/rsamanager/internal/vault"
)

// hostnameFunc resolves the control node's name for the scope lookup.
// Tests override it.
var hostnameFunc = os.Hostname

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rsamanager",
		Short:         "Rotate the RSA keys used to reach managed hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("the option can't be empty, run 'rsamanager help'")
			}
			return fmt.Errorf("option '%s' does not exist, run 'rsamanager help'", args[0])
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetHelpCommand(helpCmd())
	cmd.AddCommand(regenerateCmd())
	cmd.AddCommand(scheduleCmd())
	cmd.AddCommand(historyCmd())
	return cmd
}

func helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "List available commands",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printCommandList(cmd.OutOrStdout(), cmd.Root())
		},
	}
}

func printCommandList(w io.Writer, root *cobra.Command) {
	fmt.Fprintln(w, "--------------------")
	fmt.Fprintln(w, "command list:")
	for _, c := range root.Commands() {
		if c.Name() == "help" || c.Hidden {
			continue
		}
		fmt.Fprintf(w, "%-12s %s\n", c.Name(), c.Short)
	}
	fmt.Fprintln(w, "--------------------")
}

func regenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Rotate the key of every host in scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup()
			if err != nil {
				return err
			}
			defer env.close()

			_, err = env.regenerate(ctx)
			return err
		},
	}
}

// environment holds everything a rotation needs, built once per process.
type environment struct {
	cfg     config.Settings
	rotator *rotation.Rotator
	auditor *audit.Auditor
}

// setup loads configuration and wires the rotation components. A vault that
// cannot be created is fatal; an unavailable audit database only disables the
// database copy of the audit trail.
func setup() (*environment, error) {
	config.Load()
	cfg := config.Cfg
	logging.Init(cfg.LogDir)

	v := vault.New(cfg.VaultDir)
	if err := v.Bootstrap(); err != nil {
		logging.Close()
		return nil, fmt.Errorf("vault init: %w", err)
	}

	env := &environment{cfg: cfg}
	if err := database.Init(cfg.DatabasePath); err != nil {
		log.Printf("WARNING: audit database unavailable, writing CSV only: %v", err)
	} else {
		env.auditor = audit.NewAuditor(database.DB, cfg.AuditRetentionDays)
		if _, err := env.auditor.PurgeOlderThan(0); err != nil {
			log.Printf("WARNING: audit purge failed: %v", err)
		}
	}

	engine := remoteexec.NewAnsibleEngine(cfg.AnsibleBinary, cfg.AnsibleInventory, cfg.AnsiblePlaybookDir)
	engine.TempDir = cfg.ScratchDir
	env.rotator = rotation.NewRotator(
		v,
		sshkeys.NewForge(v),
		remoteexec.NewAdapter(engine, v, cfg.DefaultUser),
		&audit.Logger{Dir: cfg.LogDir, Store: env.auditor},
		rotation.Options{
			SSHConfigPath: cfg.SSHConfigPath,
			DefaultUser:   cfg.DefaultUser,
			MaxAttempts:   cfg.MaxAttempts,
		},
	)

	log.Printf("Config: VaultDir=%s, ScopeFile=%s, MaxAttempts=%d, Ansible=%s",
		cfg.VaultDir, cfg.ScopeFile, cfg.MaxAttempts, cfg.AnsibleBinary)
	return env, nil
}

func (e *environment) close() {
	if err := database.Close(); err != nil {
		log.Printf("WARNING: close database: %v", err)
	}
	logging.Close()
}

// regenerate resolves the scope for this node and runs one rotation.
func (e *environment) regenerate(ctx context.Context) (*rotation.Report, error) {
	node, err := hostnameFunc()
	if err != nil {
		return nil, fmt.Errorf("resolve node name: %w", err)
	}
	hosts, err := config.LoadScope(e.cfg.ScopeFile, node)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		log.Printf("No hosts in scope for node %s", node)
	}

	report, err := e.rotator.Regenerate(ctx, hosts)
	if err != nil {
		return report, fmt.Errorf("regenerate: %w", err)
	}
	return report, nil
}
