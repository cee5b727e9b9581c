package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vicfd/rsamanager/internal/audit"
	"github.com/vicfd/rsamanager/internal/database"
	"github.com/vicfd/rsamanager/internal/remoteexec"
	"github.com/vicfd/rsamanager/internal/vault"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUnknownOption(t *testing.T) {
	_, err := execute(t, "rotate")
	if err == nil || !strings.Contains(err.Error(), "option 'rotate' does not exist") {
		t.Fatalf("expected unrecognized option error, got %v", err)
	}
}

func TestEmptyOption(t *testing.T) {
	_, err := execute(t)
	if err == nil || !strings.Contains(err.Error(), "can't be empty") {
		t.Fatalf("expected empty option error, got %v", err)
	}
}

func TestHelpListsCommands(t *testing.T) {
	out, err := execute(t, "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"command list:", "regenerate", "schedule", "history"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "completion") {
		t.Errorf("help output should not list completion:\n%s", out)
	}
}

func TestRegenerateRejectsArguments(t *testing.T) {
	if _, err := execute(t, "regenerate", "web-01"); err == nil {
		t.Fatal("regenerate takes no arguments")
	}
}

// --- Schedule ---

func TestRunScheduleRequiresSpec(t *testing.T) {
	if err := runSchedule(context.Background(), "", func(context.Context) {}); err == nil {
		t.Fatal("expected error for empty schedule")
	}
	if err := runSchedule(context.Background(), "every tuesday", func(context.Context) {}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRunScheduleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runs atomic.Int32
	if err := runSchedule(ctx, "@every 1h", func(context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("runSchedule() error: %v", err)
	}
	if runs.Load() != 0 {
		t.Errorf("job should not have run, ran %d times", runs.Load())
	}
}

func TestIsLocked(t *testing.T) {
	if isLocked(nil) {
		t.Error("nil is not a lock error")
	}
	if !isLocked(vault.ErrLocked) {
		t.Error("ErrLocked should be detected")
	}
}

// --- End to end ---

const fakeAnsible = `#!/bin/sh
for a in "$@"; do
  case "$a" in
    */rsamanager-scope-*) echo "# $a" >> "$FAKE_ANSIBLE_LOG"; cat "$a" >> "$FAKE_ANSIBLE_LOG" ;;
  esac
done
echo "PLAY [scope] *******************************************************"
echo
echo "PLAY RECAP *********************************************************"
echo "web-01                     : ok=2    changed=1    unreachable=0    failed=0    skipped=0    rescued=0    ignored=0"
echo "db-01                      : ok=0    changed=0    unreachable=1    failed=0    skipped=0    rescued=0    ignored=0"
exit 4
`

func TestRegenerateEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as ansible-playbook")
	}

	root := t.TempDir()
	ansible := filepath.Join(root, "ansible-playbook")
	if err := os.WriteFile(ansible, []byte(fakeAnsible), 0755); err != nil {
		t.Fatal(err)
	}
	scope := filepath.Join(root, "scope.yaml")
	if err := os.WriteFile(scope, []byte("control-01:\n  - web-01\n  - db-01\nother-node:\n  - mail-01\n"), 0644); err != nil {
		t.Fatal(err)
	}

	vaultDir := filepath.Join(root, "ssh")
	logDir := filepath.Join(root, "log")
	scratch := filepath.Join(root, "scratch")
	if err := os.Mkdir(scratch, 0700); err != nil {
		t.Fatal(err)
	}
	inventoryLog := filepath.Join(root, "inventories.log")
	t.Setenv("FAKE_ANSIBLE_LOG", inventoryLog)
	t.Setenv("RSAMANAGER_SCRATCH_DIR", scratch)
	t.Setenv("RSAMANAGER_VAULT_DIR", vaultDir)
	t.Setenv("RSAMANAGER_SSH_CONFIG", filepath.Join(root, "ssh", "config"))
	t.Setenv("RSAMANAGER_ANSIBLE_BINARY", ansible)
	t.Setenv("RSAMANAGER_ANSIBLE_INVENTORY", "")
	t.Setenv("RSAMANAGER_ANSIBLE_PLAYBOOK_DIR", filepath.Join(root, "playbook"))
	t.Setenv("RSAMANAGER_SCOPE_FILE", scope)
	t.Setenv("RSAMANAGER_LOG_DIR", logDir)
	t.Setenv("RSAMANAGER_DATABASE_PATH", filepath.Join(logDir, "rsamanager.db"))
	t.Setenv("RSAMANAGER_MAX_ATTEMPTS", "2")

	orig := hostnameFunc
	hostnameFunc = func() (string, error) { return "control-01", nil }
	t.Cleanup(func() { hostnameFunc = orig })

	env, err := setup()
	if err != nil {
		t.Fatalf("setup() error: %v", err)
	}
	defer env.close()

	report, err := env.regenerate(context.Background())
	if err != nil {
		t.Fatalf("regenerate() error: %v", err)
	}

	got := map[string]audit.Outcome{}
	for _, r := range report.Records {
		got[r.Host] = r.Outcome
	}
	if got["web-01"] != audit.OutcomeNoPriorKey || got["db-01"] != audit.OutcomeNotUpdated || len(got) != 2 {
		t.Errorf("outcomes: %v", got)
	}

	v := vault.New(vaultDir)
	if _, err := os.Stat(v.PrivatePath("web-01", vault.StageLive)); err != nil {
		t.Errorf("web-01 key not promoted: %v", err)
	}
	if _, err := os.Stat(v.PrivatePath("db-01", vault.StageNew)); err != nil {
		t.Errorf("db-01 key should stay in new: %v", err)
	}
	if _, err := os.Stat(report.CSVPath); err != nil {
		t.Errorf("audit csv missing: %v", err)
	}

	stored, err := env.auditor.Query(audit.QueryOptions{RunID: report.RunID})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 stored records, got %d", len(stored))
	}

	// Scope inventories are written to the scratch dir and removed afterwards.
	seen, err := os.ReadFile(inventoryLog)
	if err != nil {
		t.Fatalf("fake ansible never saw a scope inventory: %v", err)
	}
	if !strings.Contains(string(seen), "# "+filepath.Join(scratch, "rsamanager-scope-")) {
		t.Errorf("scope inventory not in scratch dir:\n%s", seen)
	}
	if entries, _ := os.ReadDir(scratch); len(entries) != 0 {
		t.Errorf("scope inventories left behind: %v", entries)
	}
	// The verify phase logs in with the new key only.
	verifyLine := "web-01 ansible_ssh_args=" + strconv.Quote(remoteexec.IsolatedSSHArgs) +
		" ansible_ssh_private_key_file=" + v.PrivatePath("web-01", vault.StageNew) + " ansible_user=ansible"
	if !strings.Contains(string(seen), verifyLine) {
		t.Errorf("verify inventory line %q not found in:\n%s", verifyLine, seen)
	}
}

// --- History ---

func TestPrintHistory(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "rsamanager.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	a := audit.NewAuditor(db, 0)

	var out bytes.Buffer
	if err := printHistory(&out, a, audit.QueryOptions{}); err != nil {
		t.Fatalf("printHistory() error: %v", err)
	}
	if !strings.Contains(out.String(), "no rotation records") {
		t.Errorf("empty history output: %q", out.String())
	}

	run := audit.RunInfo{ID: "run-1", Tag: "20261019120000"}
	records := []audit.Record{
		audit.NewRecord("web-01", audit.Flags{Installed: true, Verified: true}, ""),
		audit.NewRecord("db-01", audit.Flags{}, "generate key: entropy\nexhausted"),
	}
	if err := a.Store(run, records); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	out.Reset()
	if err := printHistory(&out, a, audit.QueryOptions{Host: "db-01"}); err != nil {
		t.Fatalf("printHistory() error: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "web-01") {
		t.Errorf("host filter ignored:\n%s", got)
	}
	if !strings.Contains(got, "20261019120000") || !strings.Contains(got, "not-updated - generate key: entropy exhausted") {
		t.Errorf("history line:\n%s", got)
	}
	if strings.Count(got, "\n") != 1 {
		t.Errorf("expected a single line, got:\n%s", got)
	}
}

func TestHistoryRejectsInvalidHost(t *testing.T) {
	if _, err := execute(t, "history", "web-01 x=1"); err == nil || !strings.Contains(err.Error(), "invalid host") {
		t.Fatalf("expected invalid host error, got %v", err)
	}
	if _, err := execute(t, "history", "a", "b"); err == nil {
		t.Fatal("history takes at most one host")
	}
}
