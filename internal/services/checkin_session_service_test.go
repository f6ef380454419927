package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymstack/internal/models"
)

func TestOpenSessionDefaults(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)
	current := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	svc, err := NewCheckInSessionService(db, WithSessionClock(func() time.Time { return current }))
	require.NoError(t, err)

	token, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:  class.ID,
		IssuedBy: newMemberID(),
	})
	require.NoError(t, err)

	require.Equal(t, models.SessionTypeCheckIn, token.SessionType)
	require.Equal(t, current, token.IssuedAt)
	require.Equal(t, current.Add(2*time.Hour), token.ExpiresAt)
	require.True(t, token.Active)
	require.Zero(t, token.UsageCount)
	require.Equal(t, 100, token.MaxUsage)

	decoded, err := base64.RawURLEncoding.DecodeString(token.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(decoded), 32)
}

func TestOpenSessionInvalidClass(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewCheckInSessionService(db)
	require.NoError(t, err)

	_, err = svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:  "missing",
		IssuedBy: newMemberID(),
	})
	require.ErrorIs(t, err, ErrInvalidClass)
}

func TestOpenSessionOverrides(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)
	current := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	svc, err := NewCheckInSessionService(db, WithSessionClock(func() time.Time { return current }))
	require.NoError(t, err)

	token, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:     class.ID,
		IssuedBy:    newMemberID(),
		SessionType: models.SessionTypeBoth,
		MaxUsage:    5,
		TTL:         30 * time.Minute,
		Metadata:    map[string]any{"room": "A"},
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionTypeBoth, token.SessionType)
	require.Equal(t, 5, token.MaxUsage)
	require.Equal(t, current.Add(30*time.Minute), token.ExpiresAt)
	require.NotEmpty(t, token.Metadata)
}

func TestTokenBytesClampedToEntropyFloor(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)

	svc, err := NewCheckInSessionService(db, WithTokenBytes(4))
	require.NoError(t, err)

	token, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:  class.ID,
		IssuedBy: newMemberID(),
	})
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(token.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(decoded), 32)

	long, err := NewCheckInSessionService(db, WithTokenBytes(48))
	require.NoError(t, err)
	require.Equal(t, 48, long.tokenBytes)
}

func TestOpenSessionRejectsUnknownType(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)

	svc, err := NewCheckInSessionService(db)
	require.NoError(t, err)

	_, err = svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:     class.ID,
		IssuedBy:    newMemberID(),
		SessionType: "sideways",
	})
	require.Error(t, err)
}

func TestCloseSessionIdempotent(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)

	svc, err := NewCheckInSessionService(db)
	require.NoError(t, err)

	token, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:  class.ID,
		IssuedBy: newMemberID(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.CloseSession(context.Background(), token.ID))
	require.NoError(t, svc.CloseSession(context.Background(), token.ID))
	require.NoError(t, svc.CloseSession(context.Background(), "unknown-token"))

	got, err := svc.GetSession(context.Background(), token.ID)
	require.NoError(t, err)
	require.False(t, got.Active)
}

func TestIsUsable(t *testing.T) {
	current := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)
	db := openServiceTestDB(t)
	svc, err := NewCheckInSessionService(db, WithSessionClock(func() time.Time { return current }))
	require.NoError(t, err)

	token := &models.CheckInToken{
		Active:    true,
		ExpiresAt: current.Add(time.Hour),
		MaxUsage:  2,
	}
	require.True(t, svc.IsUsable(token))

	token.UsageCount = 2
	require.False(t, svc.IsUsable(token))

	token.UsageCount = 0
	token.Active = false
	require.False(t, svc.IsUsable(token))

	token.Active = true
	current = current.Add(2 * time.Hour)
	require.False(t, svc.IsUsable(token))

	require.False(t, svc.IsUsable(nil))
}

func TestGetSessionNotFound(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewCheckInSessionService(db)
	require.NoError(t, err)

	_, err = svc.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionStats(t *testing.T) {
	svc := &CheckInSessionService{}

	memberA := newMemberID()
	memberB := newMemberID()
	token := &models.CheckInToken{
		MaxUsage:   10,
		UsageCount: 3,
		Scans: []models.ScanRecord{
			{MemberID: memberA, ScanType: models.ScanTypeCheckIn},
			{MemberID: memberB, ScanType: models.ScanTypeCheckIn},
			{MemberID: memberA, ScanType: models.ScanTypeCheckOut},
		},
	}

	stats := svc.Stats(token)
	require.Equal(t, 3, stats.TotalScans)
	require.Equal(t, 2, stats.CheckIns)
	require.Equal(t, 1, stats.CheckOuts)
	require.Equal(t, 2, stats.UniqueMembers)
	require.Equal(t, 7, stats.RemainingUsage)
}

func TestQRCode(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)

	svc, err := NewCheckInSessionService(db)
	require.NoError(t, err)

	token, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID:  class.ID,
		IssuedBy: newMemberID(),
	})
	require.NoError(t, err)

	png, err := svc.QRCode(context.Background(), token.ID, 0)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])

	_, err = svc.QRCode(context.Background(), "missing", 0)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCleanupExpired(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Crossfit", 20)
	current := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	svc, err := NewCheckInSessionService(db, WithSessionClock(func() time.Time { return current }))
	require.NoError(t, err)

	expired, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID: class.ID, IssuedBy: newMemberID(), TTL: time.Minute,
	})
	require.NoError(t, err)

	closed, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID: class.ID, IssuedBy: newMemberID(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.CloseSession(context.Background(), closed.ID))

	live, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID: class.ID, IssuedBy: newMemberID(),
	})
	require.NoError(t, err)

	// Exhausted but unexpired tokens must stay observable so scans fail with
	// the exhausted kind rather than "not found".
	exhausted, err := svc.OpenSession(context.Background(), OpenSessionInput{
		ClassID: class.ID, IssuedBy: newMemberID(), MaxUsage: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.CheckInToken{}).
		Where("id = ?", exhausted.ID).
		Update("usage_count", 1).Error)

	current = current.Add(5 * time.Minute)

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	_, err = svc.GetSession(context.Background(), expired.ID)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.GetSession(context.Background(), closed.ID)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.GetSession(context.Background(), live.ID)
	require.NoError(t, err)
	_, err = svc.GetSession(context.Background(), exhausted.ID)
	require.NoError(t, err)
}
