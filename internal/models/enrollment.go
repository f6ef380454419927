package models

import "time"

// EnrollmentStatus represents the lifecycle of a roster entry.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// Enrollment is a roster entry: one member's confirmed (or cancelled) seat in
// a class. Cancelled rows are kept for attendance history rather than deleted.
type Enrollment struct {
	BaseModel

	ClassID    string           `gorm:"type:uuid;not null;index:idx_enrollment_class_member" json:"class_id"`
	MemberID   string           `gorm:"type:uuid;not null;index:idx_enrollment_class_member" json:"member_id"`
	Status     EnrollmentStatus `gorm:"not null;default:enrolled;index" json:"status"`
	EnrolledAt time.Time        `gorm:"not null" json:"enrolled_at"`
	// Promoted marks seats gained through waitlist promotion rather than a direct booking.
	Promoted bool `gorm:"default:false" json:"promoted"`
}

// IsActive reports whether the entry currently occupies a seat.
func (e *Enrollment) IsActive() bool {
	return e != nil && e.Status == EnrollmentStatusEnrolled
}
