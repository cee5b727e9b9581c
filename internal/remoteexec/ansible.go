package remoteexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vicfd/rsamanager/internal/vault"
)

// inventoryGroup is the group every target is placed in; the playbooks run
// against it.
const inventoryGroup = "scope"

// runFunc executes a command and returns its stdout. It is a field on
// AnsibleEngine so tests can replay captured output without ansible.
type runFunc func(ctx context.Context, name string, args, env []string) ([]byte, error)

// AnsibleEngine runs one ansible-playbook process per Execute call.
type AnsibleEngine struct {
	// Binary is the ansible-playbook executable.
	Binary string
	// Inventory is the static inventory holding connection settings for all
	// hosts. The generated scope inventory is layered on top of it.
	Inventory string
	// PlaybookDir holds the playbooks named by Operation.Playbook.
	PlaybookDir string
	// TempDir is where scope inventories are written; "" means os.TempDir.
	TempDir string

	run runFunc
}

// NewAnsibleEngine returns an engine invoking binary with the given static
// inventory and playbook directory.
func NewAnsibleEngine(binary, inventory, playbookDir string) *AnsibleEngine {
	return &AnsibleEngine{
		Binary:      binary,
		Inventory:   inventory,
		PlaybookDir: playbookDir,
		run:         runCommand,
	}
}

// Execute writes the scope inventory, runs the playbook for op and parses
// the PLAY RECAP. A non-zero exit status is expected whenever some host
// fails, so it only matters when no recap could be read.
func (e *AnsibleEngine) Execute(ctx context.Context, op Operation, targets []Target) ([]HostSummary, error) {
	playbook := op.Playbook()
	if playbook == "" {
		return nil, fmt.Errorf("no playbook for %s", op)
	}
	for _, t := range targets {
		if err := vault.CheckHost(t.Host); err != nil {
			return nil, fmt.Errorf("scope inventory: %w", err)
		}
	}

	scopePath, err := e.writeInventory(targets)
	if err != nil {
		return nil, err
	}
	defer os.Remove(scopePath)

	args := make([]string, 0, 5)
	if e.Inventory != "" {
		args = append(args, "-i", e.Inventory)
	}
	args = append(args, "-i", scopePath, filepath.Join(e.PlaybookDir, playbook))

	run := e.run
	if run == nil {
		run = runCommand
	}
	stdout, runErr := run(ctx, e.Binary, args, []string{"ANSIBLE_NOCOLOR=1", "ANSIBLE_FORCE_COLOR=0"})

	summaries, parseErr := ParseRecap(string(stdout))
	if parseErr != nil {
		if runErr != nil {
			return nil, fmt.Errorf("run %s: %w (%v)", playbook, runErr, parseErr)
		}
		return nil, fmt.Errorf("run %s: %w", playbook, parseErr)
	}
	if runErr != nil {
		log.Printf("[remoteexec] %s exited with error, using recap anyway: %v", playbook, runErr)
	}
	return summaries, nil
}

func (e *AnsibleEngine) writeInventory(targets []Target) (string, error) {
	f, err := os.CreateTemp(e.TempDir, "rsamanager-scope-*.ini")
	if err != nil {
		return "", fmt.Errorf("create scope inventory: %w", err)
	}
	if _, err := f.WriteString(RenderInventory(targets)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write scope inventory: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close scope inventory: %w", err)
	}
	return f.Name(), nil
}

// RenderInventory renders targets as an INI inventory with a single group.
// Host variables are written in key order; values containing whitespace,
// quotes or comment characters are quoted. Host names are written as given,
// so callers pass names accepted by vault.CheckHost.
func RenderInventory(targets []Target) string {
	var b strings.Builder
	b.WriteString("[" + inventoryGroup + "]\n")
	for _, t := range targets {
		b.WriteString(t.Host)
		keys := make([]string, 0, len(t.Vars))
		for k := range t.Vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(" " + k + "=" + quoteVar(t.Vars[k]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func quoteVar(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\r\n\"'#;") {
		return strconv.Quote(v)
	}
	return v
}

func runCommand(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(lastLine(stderr.String())))
		}
	}
	return stdout.Bytes(), err
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
