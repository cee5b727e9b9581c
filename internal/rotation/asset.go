package rotation

import (
	"fmt"
	"strings"

	"github.com/vicfd/rsamanager/internal/audit"
)

// State is a host's position in the rotation lifecycle. States are ordered;
// a host only ever moves forward within one run.
type State int

const (
	StatePending State = iota
	StateInstalled
	StateVerified
	StateOldRemoved
	StateOldRetainedArchived
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInstalled:
		return "installed"
	case StateVerified:
		return "verified"
	case StateOldRemoved:
		return "old-removed"
	case StateOldRetainedArchived:
		return "old-retained-archived"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Asset is the per-run record of one host.
type Asset struct {
	Host string

	Installed     bool
	Verified      bool
	OldKeyExisted bool
	OldKeyRemoved bool

	// Local bookkeeping, not part of the audit flag vector.
	Forged      bool
	Fingerprint string
	Archived    bool
	Promoted    bool

	// Errs collects host-scoped failures (vault, forge, ssh config).
	Errs []error

	observed bool
}

// State derives the lifecycle state from the flag vector.
func (a *Asset) State() State {
	switch {
	case !a.Installed:
		return StatePending
	case !a.Verified:
		return StateInstalled
	case !a.observed || !a.OldKeyExisted:
		return StateVerified
	case a.OldKeyRemoved:
		return StateOldRemoved
	default:
		return StateOldRetainedArchived
	}
}

// Flags returns the audit flag vector.
func (a *Asset) Flags() audit.Flags {
	return audit.Flags{
		Installed:     a.Installed,
		Verified:      a.Verified,
		OldKeyExisted: a.OldKeyExisted,
		OldKeyRemoved: a.OldKeyRemoved,
	}
}

// Details renders recorded failures for the audit comment.
func (a *Asset) Details() string {
	if len(a.Errs) == 0 {
		return ""
	}
	parts := make([]string, len(a.Errs))
	for i, err := range a.Errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// Tracker holds the assets of one run and applies the transition rules.
// Transitions that would skip a state are ignored, which keeps
// verified ⇒ installed and oldKeyRemoved ⇒ verified true by construction.
type Tracker struct {
	order  []string
	assets map[string]*Asset
}

// NewTracker returns a tracker with one Pending asset per distinct host,
// keeping first-seen order.
func NewTracker(hosts []string) *Tracker {
	t := &Tracker{assets: make(map[string]*Asset, len(hosts))}
	for _, h := range hosts {
		if _, ok := t.assets[h]; ok {
			continue
		}
		t.order = append(t.order, h)
		t.assets[h] = &Asset{Host: h}
	}
	return t
}

// Hosts returns every tracked host in order.
func (t *Tracker) Hosts() []string {
	return append([]string(nil), t.order...)
}

// Get returns the asset of host, or nil.
func (t *Tracker) Get(host string) *Asset {
	return t.assets[host]
}

// Assets returns every asset in order.
func (t *Tracker) Assets() []*Asset {
	out := make([]*Asset, len(t.order))
	for i, h := range t.order {
		out[i] = t.assets[h]
	}
	return out
}

// Select returns the hosts, in order, whose asset satisfies keep.
func (t *Tracker) Select(keep func(*Asset) bool) []string {
	var out []string
	for _, h := range t.order {
		if keep(t.assets[h]) {
			out = append(out, h)
		}
	}
	return out
}

// ApplyInstall marks converged hosts as installed.
func (t *Tracker) ApplyInstall(converged map[string]bool) {
	for h, ok := range converged {
		if a := t.assets[h]; a != nil && ok {
			a.Installed = true
		}
	}
}

// ApplyVerify marks converged hosts as verified. Hosts that were never
// installed are left alone.
func (t *Tracker) ApplyVerify(converged map[string]bool) {
	for h, ok := range converged {
		if a := t.assets[h]; a != nil && ok && a.Installed {
			a.Verified = true
		}
	}
}

// ObserveOldKey records whether a verified host had a prior key. It is
// recorded once; later calls are ignored.
func (t *Tracker) ObserveOldKey(host string, existed bool) {
	a := t.assets[host]
	if a == nil || a.observed || !a.Verified {
		return
	}
	a.observed = true
	a.OldKeyExisted = existed
}

// ApplyRemove marks converged hosts as having their prior key removed. Only
// verified hosts that had a prior key qualify.
func (t *Tracker) ApplyRemove(converged map[string]bool) {
	for h, ok := range converged {
		if a := t.assets[h]; a != nil && ok && a.Verified && a.OldKeyExisted {
			a.OldKeyRemoved = true
		}
	}
}

// Fail records a host-scoped failure.
func (t *Tracker) Fail(host string, err error) {
	if a := t.assets[host]; a != nil && err != nil {
		a.Errs = append(a.Errs, err)
	}
}
