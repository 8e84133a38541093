package directory

import (
	"fmt"
	"strings"
	"time"
)

// EntryKind distinguishes the two card source types.
type EntryKind string

const (
	KindRecord   EntryKind = "record"
	KindActivity EntryKind = "activity"
)

// NewEntryKind validates raw input and returns an EntryKind.
func NewEntryKind(rawInput string) (EntryKind, error) {
	switch EntryKind(strings.ToLower(strings.TrimSpace(rawInput))) {
	case KindRecord:
		return KindRecord, nil
	case KindActivity:
		return KindActivity, nil
	default:
		return "", fmt.Errorf("unknown entry kind %q", rawInput)
	}
}

// Entry is one searchable external record or activity.
type Entry struct {
	EntryID     string    `gorm:"column:entry_id;primaryKey;size:190;not null"`
	Kind        EntryKind `gorm:"column:kind;primaryKey;size:32;not null"`
	DisplayName string    `gorm:"column:display_name;size:320;not null;index"`
	Subtitle    string    `gorm:"column:subtitle;size:320"`
	Icon        string    `gorm:"column:icon;size:64"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing directory entries.
func (Entry) TableName() string {
	return "directory_entries"
}

// Summary is the read-only projection embedded into record and activity
// cards. Once embedded it syncs like any other object field.
type Summary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Subtitle    string `json:"subtitle,omitempty"`
	Icon        string `json:"icon,omitempty"`
}
