package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/models"
)

// openServiceTestDB opens a per-test in-memory database. A single connection
// keeps concurrent transactions serialised the way sqlite expects.
func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.GymClass{},
		&models.Enrollment{},
		&models.WaitlistEntry{},
		&models.CheckInToken{},
		&models.ScanRecord{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createTestClass(t *testing.T, db *gorm.DB, name string, capacity int) *models.GymClass {
	t.Helper()

	class := &models.GymClass{
		Name:     name,
		Capacity: capacity,
		StartsAt: time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(class).Error)
	return class
}

func newMemberID() string {
	return uuid.NewString()
}

func enrollMember(t *testing.T, svc *EnrollmentService, classID, memberID string) {
	t.Helper()

	result, err := svc.Enroll(context.Background(), classID, memberID)
	require.NoError(t, err)
	require.Equal(t, SeatStatusEnrolled, result.Status)
}

// stubNotifier records promotion notifications.
type stubNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *stubNotifier) NotifyPromotion(_ context.Context, classID, memberID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, classID+":"+memberID)
	return n.err
}

func (n *stubNotifier) promoted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// stubPublisher records occupancy snapshots.
type stubPublisher struct {
	mu        sync.Mutex
	snapshots []occupancySnapshot
}

type occupancySnapshot struct {
	classID    string
	enrolled   int
	capacity   int
	waitlisted int
}

func (p *stubPublisher) PublishOccupancy(classID string, enrolled, capacity, waitlisted int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, occupancySnapshot{classID, enrolled, capacity, waitlisted})
}

func (p *stubPublisher) last() (occupancySnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return occupancySnapshot{}, false
	}
	return p.snapshots[len(p.snapshots)-1], true
}
