package models

import "time"

// WaitlistEntry is one member waiting for a seat in a class. The
// auto-incrementing primary key fixes insertion order, so promotion can order
// by added_at with the id as a deterministic tie-break.
type WaitlistEntry struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassID  string    `gorm:"type:uuid;not null;index" json:"class_id"`
	MemberID string    `gorm:"type:uuid;not null;index" json:"member_id"`
	AddedAt  time.Time `gorm:"not null;index" json:"added_at"`
}
