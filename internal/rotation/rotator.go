// Package rotation drives one key rotation run: forge a key pair per host,
// install it, verify it, remove the prior key and promote the new pair
// through the vault stages, then write the audit trail.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/docker/go-units"
	"github.com/vicfd/rsamanager/internal/audit"
	"github.com/vicfd/rsamanager/internal/logutil"
	"github.com/vicfd/rsamanager/internal/remoteexec"
	"github.com/vicfd/rsamanager/internal/sshconfig"
	"github.com/vicfd/rsamanager/internal/sshkeys"
	"github.com/vicfd/rsamanager/internal/vault"
)

// KeyForge writes a fresh key pair for a host into the new stage.
// *sshkeys.Forge satisfies it.
type KeyForge interface {
	Generate(host string) (sshkeys.KeyPairFiles, error)
}

// AuditWriter persists the audit trail of a run and returns the audit file
// path. *audit.Logger satisfies it.
type AuditWriter interface {
	Write(run audit.RunInfo, records []audit.Record) (string, error)
}

// Options tunes a Rotator.
type Options struct {
	// SSHConfigPath is the local ssh client config that receives one stanza
	// per host. Empty disables stanza maintenance.
	SSHConfigPath string
	// DefaultUser is the remote login written into each stanza.
	DefaultUser string
	// MaxAttempts is the attempt budget shared by install, verify and remove.
	MaxAttempts int
}

// Rotator runs rotations against one vault.
type Rotator struct {
	vault  *vault.Vault
	forge  KeyForge
	runner PhaseRunner
	audit  AuditWriter
	opts   Options

	now func() time.Time
}

// NewRotator wires a Rotator. MaxAttempts below 1 is raised to 1.
func NewRotator(v *vault.Vault, forge KeyForge, runner PhaseRunner, aw AuditWriter, opts Options) *Rotator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Rotator{
		vault:  v,
		forge:  forge,
		runner: runner,
		audit:  aw,
		opts:   opts,
		now:    time.Now,
	}
}

// Report summarizes a finished run.
type Report struct {
	RunID    string
	Tag      string
	CSVPath  string
	Assets   []*Asset
	Records  []audit.Record
	Duration time.Duration
}

// Counts tallies records per outcome label.
func (r *Report) Counts() map[audit.Outcome]int {
	counts := make(map[audit.Outcome]int)
	for _, rec := range r.Records {
		counts[rec.Outcome]++
	}
	return counts
}

// Completed counts records with a completed-* label.
func (r *Report) Completed() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Outcome.Completed() {
			n++
		}
	}
	return n
}

// Unpromoted returns the verified hosts whose new key did not reach the live
// stage.
func (r *Report) Unpromoted() []string {
	var hosts []string
	for _, a := range r.Assets {
		if a.Verified && !a.Promoted {
			hosts = append(hosts, a.Host)
		}
	}
	return hosts
}

// Regenerate rotates the key pair of every host. Hosts are processed phase
// by phase: install, verify, remove, then local promotion. Per-host
// failures never abort the run; they end up in the audit trail. An error is
// returned only when the run could not start (vault locked) or the audit
// file could not be written.
func (r *Rotator) Regenerate(ctx context.Context, hosts []string) (*Report, error) {
	lock, err := r.vault.Lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("[rotation] release vault lock: %v", err)
		}
	}()

	run := NewRun(hosts, r.now())
	t := run.Tracker
	log.Printf("[rotation] run %s (%s) started for %d hosts", run.ID, run.Tag, len(t.Hosts()))

	log.Printf("[rotation] creating rsa key and checking ssh configuration")
	for _, a := range t.Assets() {
		r.prepare(t, a)
	}

	log.Printf("[rotation] sending rsa key")
	t.ApplyInstall(Converge(ctx, r.runner, remoteexec.Install,
		t.Select(func(a *Asset) bool { return a.Forged }), r.opts.MaxAttempts))

	log.Printf("[rotation] checking rsa key")
	t.ApplyVerify(Converge(ctx, r.runner, remoteexec.Verify,
		t.Select(func(a *Asset) bool { return a.Installed }), r.opts.MaxAttempts))

	for _, h := range t.Select(func(a *Asset) bool { return a.Verified }) {
		t.ObserveOldKey(h, r.vault.PairExists(h, vault.StageBackup))
	}

	log.Printf("[rotation] deleting rsa key")
	t.ApplyRemove(Converge(ctx, r.runner, remoteexec.Remove,
		t.Select(func(a *Asset) bool { return a.Verified && a.OldKeyExisted }), r.opts.MaxAttempts))

	log.Printf("[rotation] reorder keys locally")
	for _, a := range t.Assets() {
		if !a.Verified {
			if a.Forged {
				log.Printf("[rotation] %s not verified (%s), new key left in %s for inspection",
					logutil.SanitizeForLog(a.Host), a.State(), r.vault.Dir(vault.StageNew))
			}
			continue
		}
		r.retireOldKey(t, a, run.Tag)
		r.promote(t, a)
	}

	log.Printf("[rotation] creating logs")
	records := run.Records()
	report := &Report{
		RunID:   run.ID,
		Tag:     run.Tag,
		Assets:  t.Assets(),
		Records: records,
	}
	path, err := r.audit.Write(run.Info(), records)
	report.Duration = r.now().Sub(run.Started)
	if err != nil {
		return report, fmt.Errorf("write audit trail: %w", err)
	}
	report.CSVPath = path
	log.Printf("[rotation] log created: %s", path)

	counts := report.Counts()
	log.Printf("[rotation] run %s finished in %s: %d completed, %d double-check-failed, %d not-updated",
		run.Tag, units.HumanDuration(report.Duration), report.Completed(),
		counts[audit.OutcomeDoubleCheckFailed], counts[audit.OutcomeNotUpdated])
	if hosts := report.Unpromoted(); len(hosts) > 0 {
		log.Printf("[rotation] WARNING: verified but not promoted, vault needs inspection: %s", logutil.SanitizeAll(hosts))
	}
	return report, nil
}

// prepare validates the host, makes sure the ssh config knows how to reach it
// with its live key and forges the new pair.
func (r *Rotator) prepare(t *Tracker, a *Asset) {
	if err := vault.CheckHost(a.Host); err != nil {
		t.Fail(a.Host, err)
		log.Printf("[rotation] skipping host: %v", err)
		return
	}

	if r.opts.SSHConfigPath != "" {
		identity := r.vault.PrivatePath(a.Host, vault.StageLive)
		if _, err := sshconfig.EnsureStanza(r.opts.SSHConfigPath, a.Host, r.opts.DefaultUser, identity); err != nil {
			t.Fail(a.Host, fmt.Errorf("ssh config: %w", err))
			log.Printf("[rotation] %s: ssh config: %v", logutil.SanitizeForLog(a.Host), err)
		}
	}

	files, err := r.forge.Generate(a.Host)
	if err != nil {
		t.Fail(a.Host, fmt.Errorf("generate key: %w", err))
		log.Printf("[rotation] %s: generate key: %v", logutil.SanitizeForLog(a.Host), err)
		return
	}
	a.Forged = true
	a.Fingerprint = files.Fingerprint
}

// retireOldKey clears the backup slot of a verified host. A prior key the
// remote side confirmed removing is deleted; any other prior key is archived
// under the run tag.
func (r *Rotator) retireOldKey(t *Tracker, a *Asset, tag string) {
	if !a.OldKeyExisted {
		return
	}
	if a.OldKeyRemoved {
		if err := r.vault.DeletePair(a.Host, vault.StageBackup); err != nil {
			t.Fail(a.Host, err)
			log.Printf("[rotation] %s: %v", logutil.SanitizeForLog(a.Host), err)
		}
		return
	}
	path, err := r.vault.ArchivePair(a.Host, vault.StageBackup, tag)
	if err != nil {
		t.Fail(a.Host, fmt.Errorf("archive prior key: %w", err))
		log.Printf("[rotation] %s: archive prior key: %v", logutil.SanitizeForLog(a.Host), err)
		return
	}
	a.Archived = true
	log.Printf("[rotation] %s: prior key archived as %s", logutil.SanitizeForLog(a.Host), path)
}

// promotionFailed leads the audit detail of a verified host whose new key
// never reached the live stage.
const promotionFailed = "PROMOTION FAILED, new key not live"

// promote moves live to backup and new to live. A host without a live pair
// skips the first move. New is never moved over an occupied live slot. When
// the forge reported a fingerprint, the promoted public key must match it.
func (r *Rotator) promote(t *Tracker, a *Asset) {
	err := r.vault.MovePair(a.Host, vault.StageLive, vault.StageBackup)
	if err != nil && !errors.Is(err, vault.ErrNotFound) {
		t.Fail(a.Host, fmt.Errorf("%s: %w", promotionFailed, err))
		log.Printf("[rotation] %s: promotion stopped, vault needs inspection: %v", logutil.SanitizeForLog(a.Host), err)
		return
	}
	if err := r.vault.MovePair(a.Host, vault.StageNew, vault.StageLive); err != nil {
		t.Fail(a.Host, fmt.Errorf("%s: %w", promotionFailed, err))
		log.Printf("[rotation] %s: promotion incomplete, vault needs inspection: %v", logutil.SanitizeForLog(a.Host), err)
		return
	}
	a.Promoted = true

	if a.Fingerprint == "" {
		return
	}
	if err := sshkeys.VerifyFingerprint(r.vault.PublicPath(a.Host, vault.StageLive), a.Fingerprint); err != nil {
		t.Fail(a.Host, fmt.Errorf("live key check: %w", err))
		log.Printf("[rotation] %s: live key check: %v", logutil.SanitizeForLog(a.Host), err)
	}
}
