package models

// Member represents a gym member referenced by rosters, waitlists, and scans.
// Account management (registration, billing, profile) lives outside this
// service; only the identity and display fields are persisted here.
type Member struct {
	BaseModel

	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`
}
