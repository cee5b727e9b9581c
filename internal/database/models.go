package database

import "time"

// RotationRecord is the stored copy of one audit row: a host's final state
// after one rotation run.
type RotationRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string    `gorm:"index;not null;size:36" json:"run_id"`
	RunTag        string    `gorm:"not null;size:14" json:"run_tag"` // yyyymmddhhmmss, matches the CSV and archive names
	Host          string    `gorm:"index;not null" json:"host"`
	Installed     bool      `gorm:"not null;default:false" json:"installed"`
	Verified      bool      `gorm:"not null;default:false" json:"verified"`
	OldKeyExisted bool      `gorm:"not null;default:false" json:"old_key_existed"`
	OldKeyRemoved bool      `gorm:"not null;default:false" json:"old_key_removed"`
	Outcome       string    `gorm:"index;not null;size:32" json:"outcome"`
	Details       string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
