package remoteexec

import (
	"context"
	"log"

	"github.com/vicfd/rsamanager/internal/logutil"
	"github.com/vicfd/rsamanager/internal/vault"
)

// Host variables understood by the playbooks.
const (
	varKeyFile        = "rsa_key_file"
	varPrivateKeyFile = "ansible_ssh_private_key_file"
	varSSHArgs        = "ansible_ssh_args"
	varUser           = "ansible_user"
)

// IsolatedSSHArgs replaces ansible's default ssh arguments for phases that log
// in with the new key. The user ssh config (and the live IdentityFile it
// names) is ignored, only the key passed by ansible is offered and no
// multiplexed master from an earlier phase is reused.
const IsolatedSSHArgs = "-F /dev/null -o IdentitiesOnly=yes -o IdentityAgent=none " +
	"-o ControlMaster=no -o ControlPath=none -o PasswordAuthentication=no " +
	"-o KbdInteractiveAuthentication=no"

// Adapter turns a phase request for a set of hosts into one engine call and
// reduces the engine's counters to a per-host Outcome.
type Adapter struct {
	engine Engine
	vault  *vault.Vault
	user   string
}

// NewAdapter returns an Adapter resolving key paths from v. user is the
// remote login for phases that bypass the ssh config; "" leaves it to the
// static inventory.
func NewAdapter(engine Engine, v *vault.Vault, user string) *Adapter {
	return &Adapter{engine: engine, vault: v, user: user}
}

// RunPhase runs op once against hosts. The result holds an entry for every
// targeted host the engine reported on; unreported hosts are absent, which
// callers treat the same as Pending. Engine failures are logged and yield an
// empty result.
func (a *Adapter) RunPhase(ctx context.Context, op Operation, hosts []string) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(hosts))
	if len(hosts) == 0 {
		return outcomes
	}

	summaries, err := a.engine.Execute(ctx, op, a.Targets(op, hosts))
	if err != nil {
		log.Printf("[remoteexec] %s: no outcomes this attempt: %v", op, err)
		return outcomes
	}

	targeted := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		targeted[h] = true
	}
	for _, s := range summaries {
		if !targeted[s.Host] {
			log.Printf("[remoteexec] %s: ignoring untargeted host %s in report", op, logutil.SanitizeForLog(s.Host))
			continue
		}
		if s.Succeeded() {
			outcomes[s.Host] = Success
		} else {
			outcomes[s.Host] = Pending
		}
	}
	return outcomes
}

// Targets builds the engine targets for op, attaching the key files each
// playbook needs. Verify and Remove authenticate with the new key alone.
func (a *Adapter) Targets(op Operation, hosts []string) []Target {
	targets := make([]Target, 0, len(hosts))
	for _, h := range hosts {
		vars := make(map[string]string, 4)
		switch op {
		case Install:
			vars[varKeyFile] = a.vault.PublicPath(h, vault.StageNew)
		case Verify:
			a.isolate(vars, h)
		case Remove:
			a.isolate(vars, h)
			vars[varKeyFile] = a.vault.PublicPath(h, vault.StageBackup)
		}
		targets = append(targets, Target{Host: h, Vars: vars})
	}
	return targets
}

func (a *Adapter) isolate(vars map[string]string, host string) {
	vars[varPrivateKeyFile] = a.vault.PrivatePath(host, vault.StageNew)
	vars[varSSHArgs] = IsolatedSSHArgs
	if a.user != "" {
		vars[varUser] = a.user
	}
}
