package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionType constrains which scan directions a check-in token accepts.
type SessionType string

const (
	SessionTypeCheckIn  SessionType = "checkin"
	SessionTypeCheckOut SessionType = "checkout"
	SessionTypeBoth     SessionType = "both"
)

// Allows reports whether the session accepts the given scan direction.
func (s SessionType) Allows(scan ScanType) bool {
	switch s {
	case SessionTypeBoth:
		return true
	case SessionTypeCheckIn:
		return scan == ScanTypeCheckIn
	case SessionTypeCheckOut:
		return scan == ScanTypeCheckOut
	default:
		return false
	}
}

// CheckInToken is the time-boxed, usage-limited credential a trainer opens for
// a class. The primary key is the token text itself (32 random bytes,
// base64url), so lookups are exact-match on the scanned payload and ids are
// never reused. UsageCount must always equal the number of scan rows.
type CheckInToken struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	ClassID     string         `gorm:"type:uuid;not null;index" json:"class_id"`
	IssuedBy    string         `gorm:"type:uuid;not null" json:"issued_by"`
	SessionType SessionType    `gorm:"not null;default:checkin" json:"session_type"`
	IssuedAt    time.Time      `gorm:"not null" json:"issued_at"`
	ExpiresAt   time.Time      `gorm:"not null;index" json:"expires_at"`
	Active      bool           `gorm:"not null;default:true" json:"active"`
	UsageCount  int            `gorm:"not null;default:0" json:"usage_count"`
	MaxUsage    int            `gorm:"not null" json:"max_usage"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Class *GymClass    `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"class,omitempty"`
	Scans []ScanRecord `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE" json:"scans,omitempty"`
}

// RemainingUsage is derived from the usage counter, never stored.
func (t *CheckInToken) RemainingUsage() int {
	if t == nil {
		return 0
	}
	remaining := t.MaxUsage - t.UsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
