// Package remoteexec drives the remote-execution engine that installs,
// verifies and removes keys on hosts.
//
// The rest of the program only sees typed results: an [Engine] takes an
// [Operation] and a list of [Target]s and returns one [HostSummary] per host,
// and [Adapter.RunPhase] reduces those to an [Outcome] per host. Everything
// engine-specific, including rendering the inventory and scraping the
// engine's report, stays inside the engine implementation.
//
// [AnsibleEngine] runs ansible-playbook. Targets are written to a private
// temporary INI inventory for the duration of one invocation, and the
// per-host counters are read from the PLAY RECAP block of its stdout.
//
// A host succeeds when its unreachable and failed counters are both zero.
// Anything else, including a host missing from the report or a report that
// cannot be found at all, leaves the host pending so that the caller retries
// it. Engine noise never aborts a run.
package remoteexec
