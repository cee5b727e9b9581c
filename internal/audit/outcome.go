package audit

// Outcome is the terminal label of one host after a run.
type Outcome string

const (
	// OutcomeNotUpdated: the new key was never installed.
	OutcomeNotUpdated Outcome = "not-updated"
	// OutcomeDoubleCheckFailed: installed, but logging in with the new key never worked.
	OutcomeDoubleCheckFailed Outcome = "double-check-failed"
	// OutcomeNoPriorKey: verified and promoted; there was no previous key to remove.
	OutcomeNoPriorKey Outcome = "completed-no-prior-key"
	// OutcomePriorKeyRemoved: verified, previous key removed from the host.
	OutcomePriorKeyRemoved Outcome = "completed-prior-key-removed"
	// OutcomePriorKeyArchived: verified, previous key could not be removed and
	// was moved to the archive stage.
	OutcomePriorKeyArchived Outcome = "completed-prior-key-archived"
)

// Flags is a host's state vector at the end of a run.
type Flags struct {
	Installed     bool
	Verified      bool
	OldKeyExisted bool
	OldKeyRemoved bool
}

// Classify maps a state vector to its terminal label.
func Classify(f Flags) Outcome {
	switch {
	case !f.Installed:
		return OutcomeNotUpdated
	case !f.Verified:
		return OutcomeDoubleCheckFailed
	case !f.OldKeyExisted:
		return OutcomeNoPriorKey
	case f.OldKeyRemoved:
		return OutcomePriorKeyRemoved
	default:
		return OutcomePriorKeyArchived
	}
}

// Completed reports whether the new key was verified and the prior key dealt
// with. It says nothing about the local promotion: a completed host whose
// promotion failed carries the failure in Record.Details.
func (o Outcome) Completed() bool {
	switch o {
	case OutcomeNoPriorKey, OutcomePriorKeyRemoved, OutcomePriorKeyArchived:
		return true
	}
	return false
}

// Record is the audit row for one host.
type Record struct {
	Host string
	Flags
	Outcome Outcome
	// Details holds host-scoped problems (vault errors) for manual follow-up.
	Details string
}

// NewRecord builds the record for host, deriving the outcome from flags.
func NewRecord(host string, flags Flags, details string) Record {
	return Record{Host: host, Flags: flags, Outcome: Classify(flags), Details: details}
}

// Comment renders the CSV comment column.
func (r Record) Comment() string {
	if r.Details == "" {
		return string(r.Outcome)
	}
	return string(r.Outcome) + " - " + r.Details
}

// RunInfo identifies the run a set of records belongs to.
type RunInfo struct {
	ID  string
	Tag string
}
