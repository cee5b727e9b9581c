package rotation

import (
	"time"

	"github.com/google/uuid"
	"github.com/vicfd/rsamanager/internal/audit"
)

// TagLayout formats run tags. The tag names the audit file and prefixes
// archived key pairs.
const TagLayout = "20060102150405"

// Run is the context of one rotation. Every run gets a fresh tracker.
type Run struct {
	ID      string
	Tag     string
	Started time.Time
	Tracker *Tracker
}

// NewRun starts a run over hosts at now.
func NewRun(hosts []string, now time.Time) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Tag:     now.Format(TagLayout),
		Started: now,
		Tracker: NewTracker(hosts),
	}
}

// Info identifies the run in the audit trail.
func (r *Run) Info() audit.RunInfo {
	return audit.RunInfo{ID: r.ID, Tag: r.Tag}
}

// Records builds the audit records of every tracked host.
func (r *Run) Records() []audit.Record {
	assets := r.Tracker.Assets()
	records := make([]audit.Record, len(assets))
	for i, a := range assets {
		records[i] = audit.NewRecord(a.Host, a.Flags(), a.Details())
	}
	return records
}
