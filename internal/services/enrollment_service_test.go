package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymstack/internal/models"
)

func TestEnrollUntilFullThenWaitlist(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 2)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	first, err := svc.Enroll(context.Background(), class.ID, newMemberID())
	require.NoError(t, err)
	require.Equal(t, SeatStatusEnrolled, first.Status)
	require.NotNil(t, first.Enrollment)

	second, err := svc.Enroll(context.Background(), class.ID, newMemberID())
	require.NoError(t, err)
	require.Equal(t, SeatStatusEnrolled, second.Status)

	third, err := svc.Enroll(context.Background(), class.ID, newMemberID())
	require.NoError(t, err)
	require.Equal(t, SeatStatusWaitlisted, third.Status)
	require.Equal(t, 1, third.Position)

	fourth, err := svc.Enroll(context.Background(), class.ID, newMemberID())
	require.NoError(t, err)
	require.Equal(t, SeatStatusWaitlisted, fourth.Status)
	require.Equal(t, 2, fourth.Position)

	count, err := svc.ActiveCount(context.Background(), class.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestEnrollAlreadyEnrolled(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 5)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	member := newMemberID()
	enrollMember(t, svc, class.ID, member)

	_, err = svc.Enroll(context.Background(), class.ID, member)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestEnrollWhileWaitlistedKeepsPosition(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 1)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	enrollMember(t, svc, class.ID, newMemberID())

	member := newMemberID()
	queued, err := svc.Enroll(context.Background(), class.ID, member)
	require.NoError(t, err)
	require.Equal(t, SeatStatusWaitlisted, queued.Status)
	require.Equal(t, 1, queued.Position)

	again, err := svc.Enroll(context.Background(), class.ID, member)
	require.NoError(t, err)
	require.Equal(t, SeatStatusWaitlisted, again.Status)
	require.Equal(t, 1, again.Position)

	waitlist, err := svc.Waitlist(context.Background(), class.ID)
	require.NoError(t, err)
	require.Len(t, waitlist, 1)
}

func TestEnrollClassNotFound(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "missing", newMemberID())
	require.ErrorIs(t, err, ErrClassNotFound)

	_, err = svc.Cancel(context.Background(), "missing", newMemberID())
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestCancelPromotesFIFO(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 1)
	current := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	notifier := &stubNotifier{}
	svc, err := NewEnrollmentService(db,
		WithEnrollmentClock(func() time.Time { return current }),
		WithNotifier(notifier),
	)
	require.NoError(t, err)

	seated := newMemberID()
	memberA := newMemberID()
	memberB := newMemberID()

	enrollMember(t, svc, class.ID, seated)

	resA, err := svc.Enroll(context.Background(), class.ID, memberA)
	require.NoError(t, err)
	require.Equal(t, SeatStatusWaitlisted, resA.Status)

	current = current.Add(time.Minute)
	resB, err := svc.Enroll(context.Background(), class.ID, memberB)
	require.NoError(t, err)
	require.Equal(t, SeatStatusWaitlisted, resB.Status)

	current = current.Add(time.Hour)
	cancel, err := svc.Cancel(context.Background(), class.ID, seated)
	require.NoError(t, err)
	require.NotNil(t, cancel.Promoted)
	require.Equal(t, memberA, cancel.Promoted.MemberID)
	require.True(t, cancel.Promoted.Promoted)
	// The promoted seat carries a fresh enrolled timestamp, not the join time.
	require.Equal(t, current, cancel.Promoted.EnrolledAt)

	require.Equal(t, []string{class.ID + ":" + memberA}, notifier.promoted())

	waitlist, err := svc.Waitlist(context.Background(), class.ID)
	require.NoError(t, err)
	require.Len(t, waitlist, 1)
	require.Equal(t, memberB, waitlist[0].MemberID)

	enrolled, err := svc.IsEnrolled(context.Background(), class.ID, memberA)
	require.NoError(t, err)
	require.True(t, enrolled)
}

func TestCancelPromotesAtMostOne(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 1)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	seated := newMemberID()
	enrollMember(t, svc, class.ID, seated)

	for i := 0; i < 3; i++ {
		_, err := svc.Enroll(context.Background(), class.ID, newMemberID())
		require.NoError(t, err)
	}

	cancel, err := svc.Cancel(context.Background(), class.ID, seated)
	require.NoError(t, err)
	require.NotNil(t, cancel.Promoted)

	count, err := svc.ActiveCount(context.Background(), class.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	waitlist, err := svc.Waitlist(context.Background(), class.ID)
	require.NoError(t, err)
	require.Len(t, waitlist, 2)
}

func TestCancelIsIdempotent(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 2)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	// Cancelling a member who never enrolled is a no-op.
	result, err := svc.Cancel(context.Background(), class.ID, newMemberID())
	require.NoError(t, err)
	require.Nil(t, result.Promoted)

	member := newMemberID()
	enrollMember(t, svc, class.ID, member)

	_, err = svc.Cancel(context.Background(), class.ID, member)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), class.ID, member)
	require.NoError(t, err)

	enrolled, err := svc.IsEnrolled(context.Background(), class.ID, member)
	require.NoError(t, err)
	require.False(t, enrolled)
}

func TestCancelRemovesWaitlistEntry(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 1)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	enrollMember(t, svc, class.ID, newMemberID())

	queued := newMemberID()
	_, err = svc.Enroll(context.Background(), class.ID, queued)
	require.NoError(t, err)

	cancel, err := svc.Cancel(context.Background(), class.ID, queued)
	require.NoError(t, err)
	// Leaving the waitlist frees no seat, so nobody is promoted.
	require.Nil(t, cancel.Promoted)

	waitlist, err := svc.Waitlist(context.Background(), class.ID)
	require.NoError(t, err)
	require.Empty(t, waitlist)
}

func TestMemberNeverInRosterAndWaitlist(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 1)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	seated := newMemberID()
	waiting := newMemberID()
	enrollMember(t, svc, class.ID, seated)

	_, err = svc.Enroll(context.Background(), class.ID, waiting)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), class.ID, seated)
	require.NoError(t, err)

	// After promotion the member must hold a seat and no waitlist entry.
	var waitlistCount int64
	require.NoError(t, db.Model(&models.WaitlistEntry{}).
		Where("class_id = ? AND member_id = ?", class.ID, waiting).
		Count(&waitlistCount).Error)
	require.Zero(t, waitlistCount)

	enrolled, err := svc.IsEnrolled(context.Background(), class.ID, waiting)
	require.NoError(t, err)
	require.True(t, enrolled)
}

func TestConcurrentEnrollRespectsCapacity(t *testing.T) {
	db := openServiceTestDB(t)
	const capacity = 3
	const contenders = 8
	class := createTestClass(t, db, "Yoga", capacity)

	svc, err := NewEnrollmentService(db)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*EnrollmentResult, contenders)
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = svc.Enroll(context.Background(), class.ID, fmt.Sprintf("member-%02d", idx))
		}(i)
	}
	wg.Wait()

	var enrolled, waitlisted int
	for i := 0; i < contenders; i++ {
		require.NoError(t, errs[i])
		switch results[i].Status {
		case SeatStatusEnrolled:
			enrolled++
		case SeatStatusWaitlisted:
			waitlisted++
		}
	}
	require.Equal(t, capacity, enrolled)
	require.Equal(t, contenders-capacity, waitlisted)

	count, err := svc.ActiveCount(context.Background(), class.ID)
	require.NoError(t, err)
	require.Equal(t, int64(capacity), count)
}

func TestEnrollPublishesOccupancy(t *testing.T) {
	db := openServiceTestDB(t)
	class := createTestClass(t, db, "Yoga", 2)

	publisher := &stubPublisher{}
	svc, err := NewEnrollmentService(db, WithOccupancyPublisher(publisher))
	require.NoError(t, err)

	enrollMember(t, svc, class.ID, newMemberID())

	snapshot, ok := publisher.last()
	require.True(t, ok)
	require.Equal(t, class.ID, snapshot.classID)
	require.Equal(t, 1, snapshot.enrolled)
	require.Equal(t, 2, snapshot.capacity)
	require.Zero(t, snapshot.waitlisted)
}
