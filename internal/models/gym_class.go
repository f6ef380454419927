package models

import "time"

// GymClass is a bookable class session with a fixed seat capacity.
// Roster and waitlist rows reference the class and mutate only through the
// enrollment service; the class row itself doubles as the per-class lock
// anchor for those mutations.
type GymClass struct {
	BaseModel

	Name      string    `gorm:"not null" json:"name"`
	TrainerID string    `gorm:"type:uuid;index" json:"trainer_id"`
	Capacity  int       `gorm:"not null" json:"capacity"`
	StartsAt  time.Time `gorm:"index" json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Location  string    `json:"location"`

	Enrollments []Enrollment    `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	Waitlist    []WaitlistEntry `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"waitlist,omitempty"`
}
