package remoteexec

import (
	"errors"
	"testing"
)

const sampleOutput = `
PLAY [scope] *******************************************************************

TASK [Gathering Facts] *********************************************************
ok: [web-01.example.com]
fatal: [db-01.example.com]: UNREACHABLE! => {"changed": false, "msg": "Failed to connect to the host via ssh", "unreachable": true}
fatal: [cache-01.example.com]: FAILED! => {"msg": "authorized_key failed"}

TASK [Add new public key] ******************************************************
changed: [web-01.example.com]

PLAY RECAP *********************************************************************
cache-01.example.com       : ok=1    changed=0    unreachable=0    failed=1    skipped=0    rescued=0    ignored=0
db-01.example.com          : ok=0    changed=0    unreachable=1    failed=0    skipped=0    rescued=0    ignored=0
web-01.example.com         : ok=2    changed=1    unreachable=0    failed=0    skipped=0    rescued=0    ignored=0
`

func TestParseRecap(t *testing.T) {
	summaries, err := ParseRecap(sampleOutput)
	if err != nil {
		t.Fatalf("ParseRecap() error: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d: %+v", len(summaries), summaries)
	}

	byHost := make(map[string]HostSummary)
	for _, s := range summaries {
		byHost[s.Host] = s
	}

	web := byHost["web-01.example.com"]
	if web.OK != 2 || web.Changed != 1 || web.Unreachable != 0 || web.Failed != 0 {
		t.Errorf("web-01 counters: %+v", web)
	}
	if !web.Succeeded() {
		t.Error("web-01 should have succeeded")
	}
	if byHost["db-01.example.com"].Succeeded() {
		t.Error("db-01 is unreachable and must not succeed")
	}
	if byHost["cache-01.example.com"].Succeeded() {
		t.Error("cache-01 has a failed task and must not succeed")
	}
}

func TestParseRecapNoHeader(t *testing.T) {
	_, err := ParseRecap("ERROR! the playbook could not be found\n")
	if !errors.Is(err, ErrNoRecap) {
		t.Fatalf("expected ErrNoRecap, got %v", err)
	}
	if _, err := ParseRecap(""); !errors.Is(err, ErrNoRecap) {
		t.Fatalf("expected ErrNoRecap for empty output, got %v", err)
	}
}

func TestParseRecapHeaderWithoutHosts(t *testing.T) {
	summaries, err := ParseRecap("PLAY RECAP ****\n\nsome trailing noise\n")
	if err != nil {
		t.Fatalf("ParseRecap() error: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected no summaries, got %+v", summaries)
	}
}

func TestParseRecapIgnoresLinesBeforeHeader(t *testing.T) {
	out := "stray : ok=1 changed=0 unreachable=0 failed=0 skipped=0 rescued=0 ignored=0\n" +
		"PLAY RECAP ***\n" +
		"web-01 : ok=1 changed=0 unreachable=0 failed=0 skipped=0 rescued=0 ignored=0\n"

	summaries, err := ParseRecap(out)
	if err != nil {
		t.Fatalf("ParseRecap() error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Host != "web-01" {
		t.Errorf("expected only web-01, got %+v", summaries)
	}
}

func TestParseRecapDuplicateHostLastWins(t *testing.T) {
	out := "PLAY RECAP ***\n" +
		"web-01 : ok=0 changed=0 unreachable=1 failed=0 skipped=0 rescued=0 ignored=0\n" +
		"web-01 : ok=3 changed=0 unreachable=0 failed=0 skipped=0 rescued=0 ignored=0\n"

	summaries, err := ParseRecap(out)
	if err != nil {
		t.Fatalf("ParseRecap() error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if !summaries[0].Succeeded() || summaries[0].OK != 3 {
		t.Errorf("expected last line to win, got %+v", summaries[0])
	}
}

func TestHostSummarySucceeded(t *testing.T) {
	tests := []struct {
		name string
		s    HostSummary
		want bool
	}{
		{"clean", HostSummary{OK: 2, Changed: 1}, true},
		{"nothing ran", HostSummary{}, true},
		{"skipped and ignored do not matter", HostSummary{Skipped: 3, Ignored: 1, Rescued: 1}, true},
		{"unreachable", HostSummary{OK: 1, Unreachable: 1}, false},
		{"failed", HostSummary{OK: 5, Failed: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}
