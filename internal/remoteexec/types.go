package remoteexec

import (
	"context"
	"fmt"
)

// Operation is the kind of work one phase asks the engine to perform.
type Operation int

const (
	// Install adds the host's new public key to its authorized keys.
	Install Operation = iota
	// Verify logs in with the host's new private key.
	Verify
	// Remove logs in with the new private key and deletes the previous
	// public key from the authorized keys.
	Remove
)

func (op Operation) String() string {
	switch op {
	case Install:
		return "install"
	case Verify:
		return "verify"
	case Remove:
		return "remove"
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// Playbook returns the playbook file implementing op.
func (op Operation) Playbook() string {
	switch op {
	case Install:
		return "ssh_key_add.yml"
	case Verify:
		return "ssh_key_check_new.yml"
	case Remove:
		return "ssh_key_delete.yml"
	}
	return ""
}

// Target is one host handed to the engine, with the per-host parameters the
// operation needs.
type Target struct {
	Host string
	Vars map[string]string
}

// HostSummary holds the engine's counters for one host after an invocation.
type HostSummary struct {
	Host        string
	OK          int
	Changed     int
	Unreachable int
	Failed      int
	Skipped     int
	Rescued     int
	Ignored     int
}

// Succeeded reports whether the host finished without being unreachable and
// without failed tasks. The other counters do not matter.
func (s HostSummary) Succeeded() bool {
	return s.Unreachable == 0 && s.Failed == 0
}

// Engine performs one operation against a set of targets and reports the
// per-host counters. Hosts the engine did not report on are simply absent.
type Engine interface {
	Execute(ctx context.Context, op Operation, targets []Target) ([]HostSummary, error)
}

// Outcome is the result of one phase attempt for one host.
type Outcome int

const (
	// Pending means the host has to be retried.
	Pending Outcome = iota
	// Success means the host completed the phase.
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "pending"
}
