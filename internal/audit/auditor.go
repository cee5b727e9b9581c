package audit

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vicfd/rsamanager/internal/database"
	"github.com/vicfd/rsamanager/internal/logutil"
	"gorm.io/gorm"
)

// DefaultRetentionDays is the default number of days to keep stored records.
const DefaultRetentionDays = 365

// Auditor stores audit records in the database.
type Auditor struct {
	mu            sync.RWMutex
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time // injectable clock for testing
}

// NewAuditor creates an Auditor writing to db. If retentionDays is 0,
// DefaultRetentionDays is used.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{
		db:            db,
		retentionDays: retentionDays,
		nowFn:         time.Now,
	}
}

// Store writes all records of one run in a single transaction.
func (a *Auditor) Store(run RunInfo, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]database.RotationRecord, len(records))
	for i, r := range records {
		rows[i] = database.RotationRecord{
			RunID:         run.ID,
			RunTag:        run.Tag,
			Host:          r.Host,
			Installed:     r.Installed,
			Verified:      r.Verified,
			OldKeyExisted: r.OldKeyExisted,
			OldKeyRemoved: r.OldKeyRemoved,
			Outcome:       string(r.Outcome),
			Details:       r.Details,
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("store audit records: %w", err)
	}
	return nil
}

// QueryOptions specifies filters for retrieving stored records.
type QueryOptions struct {
	RunID   string
	Host    string
	Outcome Outcome
	Since   *time.Time
	Limit   int
}

// Query returns stored records matching opts, newest first.
func (a *Auditor) Query(opts QueryOptions) ([]database.RotationRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	tx := a.db.Model(&database.RotationRecord{})
	if opts.RunID != "" {
		tx = tx.Where("run_id = ?", opts.RunID)
	}
	if opts.Host != "" {
		tx = tx.Where("host = ?", opts.Host)
	}
	if opts.Outcome != "" {
		tx = tx.Where("outcome = ?", string(opts.Outcome))
	}
	if opts.Since != nil {
		tx = tx.Where("created_at >= ?", *opts.Since)
	}

	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}

	var records []database.RotationRecord
	if err := tx.Order("created_at DESC, id DESC").Limit(opts.Limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// PurgeOlderThan removes records older than days (the configured retention
// when days is 0) and returns how many were deleted.
func (a *Auditor) PurgeOlderThan(days int) (int64, error) {
	if days <= 0 {
		days = a.retentionDays
	}
	cutoff := a.nowFn().AddDate(0, 0, -days)

	a.mu.Lock()
	defer a.mu.Unlock()
	result := a.db.Where("created_at < ?", cutoff).Delete(&database.RotationRecord{})
	if result.Error != nil {
		log.Printf("[audit] purge failed: %v", result.Error)
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[audit] purged %d audit records older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

// RetentionDays returns the configured retention period.
func (a *Auditor) RetentionDays() int {
	return a.retentionDays
}

// SetNowFunc sets the clock function used for testing.
func (a *Auditor) SetNowFunc(fn func() time.Time) {
	a.nowFn = fn
}

// Logger emits the audit trail of a run: log lines, the CSV file and, when a
// store is configured, database rows.
type Logger struct {
	Dir   string
	Store *Auditor
}

// Write records a run. The CSV is written first; a store failure is logged
// and does not fail the call since the CSV is the audit file of record.
func (l *Logger) Write(run RunInfo, records []Record) (string, error) {
	for _, r := range records {
		log.Printf("[audit] run=%s host=%s outcome=%s installed=%t verified=%t old_existed=%t old_removed=%t",
			run.Tag, logutil.SanitizeForLog(r.Host), r.Outcome,
			r.Installed, r.Verified, r.OldKeyExisted, r.OldKeyRemoved)
		if r.Details != "" {
			log.Printf("[audit] host=%s needs attention: %s", logutil.SanitizeForLog(r.Host), logutil.SanitizeForLog(r.Details))
		}
	}

	path, err := WriteCSV(l.Dir, run.Tag, records)
	if err != nil {
		return "", err
	}

	if l.Store != nil {
		if err := l.Store.Store(run, records); err != nil {
			log.Printf("[audit] %v", err)
		}
	}
	return path, nil
}
