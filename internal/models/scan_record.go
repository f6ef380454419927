package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScanType is the direction of a single scan.
type ScanType string

const (
	ScanTypeCheckIn  ScanType = "checkin"
	ScanTypeCheckOut ScanType = "checkout"
)

// GeoPoint is the optional device location attached to a scan.
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// ScanRecord is one accepted redemption of a check-in token. Records are
// append-only; a (token, member, checkin) combination appears at most once,
// enforced inside the scan transaction rather than by a schema constraint so
// checkout retries stay harmless.
type ScanRecord struct {
	BaseModel

	TokenID   string         `gorm:"not null;index:idx_scan_token_member" json:"token_id"`
	MemberID  string         `gorm:"type:uuid;not null;index:idx_scan_token_member" json:"member_id"`
	ScanType  ScanType       `gorm:"not null" json:"scan_type"`
	ScannedAt time.Time      `gorm:"not null;index" json:"scanned_at"`
	Location  datatypes.JSON `json:"location,omitempty"`
}
