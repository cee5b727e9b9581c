package sshconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStanza(t *testing.T) {
	got := Stanza("web-01", "ansible", "/home/op/.ssh/live/web-01")
	want := "# config to web-01\n\tHost web-01\n\tHostName web-01\n\tUser ansible\n\tIdentityFile /home/op/.ssh/live/web-01"
	if got != want {
		t.Errorf("Stanza() =\n%q\nwant\n%q", got, want)
	}
}

func TestEnsureStanzaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ssh", "config")

	changed, err := EnsureStanza(path, "web-01", "ansible", "/v/live/web-01")
	if err != nil {
		t.Fatalf("first EnsureStanza() error: %v", err)
	}
	if !changed {
		t.Error("first EnsureStanza() should report a change")
	}

	changed, err = EnsureStanza(path, "web-01", "ansible", "/v/live/web-01")
	if err != nil {
		t.Fatalf("second EnsureStanza() error: %v", err)
	}
	if changed {
		t.Error("second EnsureStanza() should not change the file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if n := strings.Count(string(data), "# config to web-01"); n != 1 {
		t.Errorf("expected exactly one stanza, found %d:\n%s", n, data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions: got %o, want 0600", perm)
	}
}

func TestEnsureStanzaKeepsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	existing := "Host bastion\n\tUser admin"
	if err := os.WriteFile(path, []byte(existing), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := EnsureStanza(path, "web-01", "ansible", "/v/live/web-01"); err != nil {
		t.Fatalf("EnsureStanza() error: %v", err)
	}
	if _, err := EnsureStanza(path, "db-01", "ansible", "/v/live/db-01"); err != nil {
		t.Fatalf("EnsureStanza() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	got := string(data)
	if !strings.HasPrefix(got, existing+"\n# config to web-01\n") {
		t.Errorf("existing content not preserved or separator missing:\n%s", got)
	}
	if !strings.Contains(got, Stanza("db-01", "ansible", "/v/live/db-01")+"\n") {
		t.Errorf("second stanza missing:\n%s", got)
	}
}

func TestEnsureStanzaDifferentUserAppendsAgain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	if _, err := EnsureStanza(path, "web-01", "ansible", "/v/live/web-01"); err != nil {
		t.Fatalf("EnsureStanza() error: %v", err)
	}
	changed, err := EnsureStanza(path, "web-01", "deploy", "/v/live/web-01")
	if err != nil {
		t.Fatalf("EnsureStanza() error: %v", err)
	}
	if !changed {
		t.Error("a different rendered block is not an exact match and should be appended")
	}
}
