package vacation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vacation-engine/vacation"
	"github.com/warp/vacation-engine/vacation/store"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2025, time.February, 3, 9, 30, 0, 0, time.UTC)

func newTestManager(t *testing.T, s vacation.Store, opts ...vacation.Option) *vacation.Manager {
	t.Helper()
	seq := 0
	base := []vacation.Option{
		vacation.WithClock(func() time.Time { return fixedNow }),
		vacation.WithLogger(zaptest.NewLogger(t)),
		vacation.WithIDGenerator(func() vacation.RequestID {
			seq++
			return vacation.RequestID(fmt.Sprintf("req-%d", seq))
		}),
	}
	return vacation.NewManager(s, append(base, opts...)...)
}

func march(day int) time.Time { return vacation.NewDate(2025, time.March, day) }

func createRequest(t *testing.T, m *vacation.Manager, emp vacation.EmployeeID, start, end time.Time) vacation.Request {
	t.Helper()
	r, err := m.Create(context.Background(), vacation.CreateInput{
		EmployeeID: emp,
		StartDate:  start,
		EndDate:    end,
		Period:     2025,
	})
	require.NoError(t, err)
	return r
}

func usedDays(t *testing.T, m *vacation.Manager, emp vacation.EmployeeID) string {
	t.Helper()
	b, err := m.Ledger().Balance(context.Background(), emp, 2025)
	require.NoError(t, err)
	return b.UsedDays.String()
}

// =============================================================================
// CREATE
// =============================================================================

func TestManager_Create_ComputesDaysAndDefaults(t *testing.T) {
	// GIVEN: A veteran employee
	m := newTestManager(t, newTestStore(t, veteran))

	// WHEN: Requesting March 10 to March 14
	r := createRequest(t, m, veteran.ID, march(10), march(14))

	// THEN: Five days, pending, annual, submitted now
	assert.Equal(t, vacation.RequestID("req-1"), r.ID)
	assert.Equal(t, 5, r.RequestedDays)
	assert.Equal(t, vacation.StatusPending, r.Status)
	assert.Equal(t, vacation.ReasonAnnual, r.Reason)
	assert.Equal(t, fixedNow, r.SubmittedAt)
	assert.Nil(t, r.ApprovedAt)

	// AND: Balance untouched
	assert.Equal(t, "0", usedDays(t, m, veteran.ID))
}

func TestManager_Create_SingleDay(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))

	r := createRequest(t, m, veteran.ID, march(10), march(10))

	assert.Equal(t, 1, r.RequestedDays)
}

func TestManager_Create_EndBeforeStart(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))

	_, err := m.Create(context.Background(), vacation.CreateInput{
		EmployeeID: veteran.ID,
		StartDate:  march(14),
		EndDate:    march(10),
		Period:     2025,
	})

	assert.ErrorIs(t, err, vacation.ErrInvalidDateRange)
}

func TestManager_Create_Validation(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))
	valid := vacation.CreateInput{
		EmployeeID: veteran.ID,
		StartDate:  march(10),
		EndDate:    march(14),
		Period:     2025,
	}

	tests := []struct {
		name   string
		mutate func(in *vacation.CreateInput)
		field  string
	}{
		{"missing employee", func(in *vacation.CreateInput) { in.EmployeeID = "" }, "employee_id"},
		{"missing start", func(in *vacation.CreateInput) { in.StartDate = time.Time{} }, "start_date"},
		{"missing end", func(in *vacation.CreateInput) { in.EndDate = time.Time{} }, "end_date"},
		{"missing period", func(in *vacation.CreateInput) { in.Period = 0 }, "period"},
		{"unknown reason", func(in *vacation.CreateInput) { in.Reason = "sabbatical" }, "reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			_, err := m.Create(context.Background(), in)

			require.ErrorIs(t, err, vacation.ErrValidation)
			var verr *vacation.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestManager_Create_UnknownEmployee(t *testing.T) {
	m := newTestManager(t, newTestStore(t))

	_, err := m.Create(context.Background(), vacation.CreateInput{
		EmployeeID: "ghost",
		StartDate:  march(10),
		EndDate:    march(14),
		Period:     2025,
	})

	assert.ErrorIs(t, err, vacation.ErrNotFound)
}

func TestManager_Create_AvailabilityPolicy(t *testing.T) {
	in := vacation.CreateInput{
		EmployeeID: junior.ID,
		StartDate:  march(1),
		EndDate:    march(20), // 20 days, junior has 14
		Period:     2025,
	}

	t.Run("enforced by default", func(t *testing.T) {
		m := newTestManager(t, newTestStore(t, junior))

		_, err := m.Create(context.Background(), in)

		assert.ErrorIs(t, err, vacation.ErrInsufficientBalance)
	})

	t.Run("disabled", func(t *testing.T) {
		m := newTestManager(t, newTestStore(t, junior),
			vacation.WithPolicy(vacation.Policy{EnforceAvailabilityOnCreate: false}))

		r, err := m.Create(context.Background(), in)

		require.NoError(t, err)
		assert.Equal(t, 20, r.RequestedDays)
	})
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

func TestManager_Approve_DebitsBalance(t *testing.T) {
	// GIVEN: A 5-day request against {total:21, used:0}
	m := newTestManager(t, newTestStore(t, veteran))
	r := createRequest(t, m, veteran.ID, march(10), march(14))

	// WHEN: Approving
	approved, err := m.Approve(context.Background(), r.ID)
	require.NoError(t, err)

	// THEN: Approved with timestamp, balance {21, 5}, 16 available
	assert.Equal(t, vacation.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, fixedNow, *approved.ApprovedAt)

	b, err := m.Ledger().Balance(context.Background(), veteran.ID, 2025)
	require.NoError(t, err)
	assert.True(t, days("21").Equal(b.TotalDays))
	assert.True(t, days("5").Equal(b.UsedDays))
	assert.True(t, days("16").Equal(b.AvailableDays()))

	stored, err := m.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusApproved, stored.Status)
}

func TestManager_Approve_InsufficientLeavesRequestPending(t *testing.T) {
	// GIVEN: {total:14, used:10} and a 10-day request
	s := newTestStore(t, junior)
	seedBalance(t, s, junior.ID, 2025, "14", "10")
	m := newTestManager(t, s, vacation.WithPolicy(vacation.Policy{EnforceAvailabilityOnCreate: false}))
	r := createRequest(t, m, junior.ID, march(1), march(10))
	require.Equal(t, 10, r.RequestedDays)

	// WHEN: Approving
	_, err := m.Approve(context.Background(), r.ID)

	// THEN: InsufficientBalance, still pending, used still 10
	require.ErrorIs(t, err, vacation.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "requested 10, available 4")

	stored, err := m.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusPending, stored.Status)
	assert.Nil(t, stored.ApprovedAt)
	assert.Equal(t, "10", usedDays(t, m, junior.ID))
}

func TestManager_Reject_LeavesBalanceUnchanged(t *testing.T) {
	// GIVEN: 3 days already used and a pending request
	s := newTestStore(t, veteran)
	seedBalance(t, s, veteran.ID, 2025, "21", "3")
	m := newTestManager(t, s)
	r := createRequest(t, m, veteran.ID, march(10), march(14))

	// WHEN: Rejecting
	rejected, err := m.Reject(context.Background(), r.ID)
	require.NoError(t, err)

	// THEN: Rejected, used still 3, no movement
	assert.Equal(t, vacation.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedAt)
	assert.Equal(t, "3", usedDays(t, m, veteran.ID))

	movements, err := m.Ledger().Movements(context.Background(), veteran.ID, 2025)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestManager_TerminalStatesRejectTransitions(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))
	ctx := context.Background()

	approved := createRequest(t, m, veteran.ID, march(3), march(4))
	_, err := m.Approve(ctx, approved.ID)
	require.NoError(t, err)

	rejected := createRequest(t, m, veteran.ID, march(10), march(11))
	_, err = m.Reject(ctx, rejected.ID)
	require.NoError(t, err)

	_, err = m.Approve(ctx, approved.ID)
	assert.ErrorIs(t, err, vacation.ErrInvalidTransition)
	_, err = m.Reject(ctx, approved.ID)
	assert.ErrorIs(t, err, vacation.ErrInvalidTransition)
	_, err = m.Approve(ctx, rejected.ID)
	assert.ErrorIs(t, err, vacation.ErrInvalidTransition)

	var terr *vacation.InvalidTransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, vacation.StatusRejected, terr.From)

	// Approving twice debited only once
	assert.Equal(t, "2", usedDays(t, m, veteran.ID))
}

func TestManager_UnknownRequest(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))
	ctx := context.Background()

	_, err := m.Approve(ctx, "nope")
	assert.ErrorIs(t, err, vacation.ErrNotFound)
	_, err = m.Reject(ctx, "nope")
	assert.ErrorIs(t, err, vacation.ErrNotFound)
	_, err = m.Get(ctx, "nope")
	assert.ErrorIs(t, err, vacation.ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "nope"), vacation.ErrNotFound)
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestManager_Update_RecomputesDays(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))
	r := createRequest(t, m, veteran.ID, march(10), march(14))

	end := march(20)
	notes := "extended"
	updated, err := m.Update(context.Background(), r.ID, vacation.UpdateInput{
		EndDate:      &end,
		Observations: &notes,
	})

	require.NoError(t, err)
	assert.Equal(t, 11, updated.RequestedDays)
	assert.Equal(t, "extended", updated.Observations)
	assert.Equal(t, vacation.StatusPending, updated.Status)
}

func TestManager_Update_EmptyReasonDefaultsToAnnual(t *testing.T) {
	// GIVEN: A pending request filed as carryover
	m := newTestManager(t, newTestStore(t, veteran))
	r, err := m.Create(context.Background(), vacation.CreateInput{
		EmployeeID: veteran.ID,
		StartDate:  march(10),
		EndDate:    march(14),
		Period:     2025,
		Reason:     vacation.ReasonCarryover,
	})
	require.NoError(t, err)

	// WHEN: Clearing the reason
	empty := vacation.Reason("")
	updated, err := m.Update(context.Background(), r.ID, vacation.UpdateInput{Reason: &empty})

	// THEN: It falls back to annual, as on create
	require.NoError(t, err)
	assert.Equal(t, vacation.ReasonAnnual, updated.Reason)
}

func TestManager_Update_RevalidatesAvailability(t *testing.T) {
	m := newTestManager(t, newTestStore(t, junior))
	r := createRequest(t, m, junior.ID, march(10), march(14))

	end := march(31)
	_, err := m.Update(context.Background(), r.ID, vacation.UpdateInput{EndDate: &end})

	assert.ErrorIs(t, err, vacation.ErrInsufficientBalance)
	stored, err := m.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.RequestedDays)
}

func TestManager_Update_OnlyWhilePending(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))
	r := createRequest(t, m, veteran.ID, march(10), march(14))
	_, err := m.Approve(context.Background(), r.ID)
	require.NoError(t, err)

	end := march(12)
	_, err = m.Update(context.Background(), r.ID, vacation.UpdateInput{EndDate: &end})

	assert.ErrorIs(t, err, vacation.ErrInvalidTransition)
}

func TestManager_Delete_ApprovedCreditsBack(t *testing.T) {
	// GIVEN: An approved 5-day request
	m := newTestManager(t, newTestStore(t, veteran))
	ctx := context.Background()
	r := createRequest(t, m, veteran.ID, march(10), march(14))
	_, err := m.Approve(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "5", usedDays(t, m, veteran.ID))

	// WHEN: Deleting it
	require.NoError(t, m.Delete(ctx, r.ID))

	// THEN: Days returned, request gone, debit and credit recorded
	assert.Equal(t, "0", usedDays(t, m, veteran.ID))
	_, err = m.Get(ctx, r.ID)
	assert.ErrorIs(t, err, vacation.ErrNotFound)

	movements, err := m.Ledger().Movements(ctx, veteran.ID, 2025)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, vacation.MovementDebit, movements[0].Kind)
	assert.Equal(t, vacation.MovementCredit, movements[1].Kind)
}

func TestManager_Delete_PendingLeavesLedgerAlone(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran))
	ctx := context.Background()
	r := createRequest(t, m, veteran.ID, march(10), march(14))

	require.NoError(t, m.Delete(ctx, r.ID))

	movements, err := m.Ledger().Movements(ctx, veteran.ID, 2025)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestManager_List_Filters(t *testing.T) {
	m := newTestManager(t, newTestStore(t, veteran, junior))
	ctx := context.Background()

	a := createRequest(t, m, veteran.ID, march(10), march(11))
	createRequest(t, m, veteran.ID, march(3), march(4))
	createRequest(t, m, junior.ID, march(5), march(6))
	_, err := m.Approve(ctx, a.ID)
	require.NoError(t, err)

	mine, err := m.List(ctx, vacation.RequestFilter{EmployeeID: veteran.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].StartDate.Before(mine[1].StartDate))

	pending, err := m.List(ctx, vacation.RequestFilter{Status: vacation.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	otherYear, err := m.List(ctx, vacation.RequestFilter{Year: 2024})
	require.NoError(t, err)
	assert.Empty(t, otherYear)
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestManager_ConcurrentApprovals_OnlyOneFits(t *testing.T) {
	// GIVEN: 14 available and two 10-day requests
	m := newTestManager(t, newTestStore(t, junior))
	first := createRequest(t, m, junior.ID, march(1), march(10))
	second := createRequest(t, m, junior.ID, march(15), march(24))

	// WHEN: Approving both at the same time
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []vacation.RequestID{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id vacation.RequestID) {
			defer wg.Done()
			_, errs[i] = m.Approve(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	// THEN: Exactly one success and one InsufficientBalance
	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, vacation.ErrInsufficientBalance):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, "10", usedDays(t, m, junior.ID))
}

func TestManager_UsedNeverExceedsTotal(t *testing.T) {
	// GIVEN: 21 days and a stream of 3-day requests, every third rejected
	m := newTestManager(t, newTestStore(t, veteran),
		vacation.WithPolicy(vacation.Policy{EnforceAvailabilityOnCreate: false}))
	ctx := context.Background()

	start := vacation.NewDate(2025, time.January, 6)
	for i := 0; i < 12; i++ {
		r := createRequest(t, m, veteran.ID, start, start.AddDate(0, 0, 2))
		start = start.AddDate(0, 0, 7)

		if i%3 == 2 {
			_, err := m.Reject(ctx, r.ID)
			require.NoError(t, err)
		} else if _, err := m.Approve(ctx, r.ID); err != nil {
			require.ErrorIs(t, err, vacation.ErrInsufficientBalance)
		}

		b, err := m.Ledger().Balance(ctx, veteran.ID, 2025)
		require.NoError(t, err)
		require.False(t, b.UsedDays.GreaterThan(b.TotalDays), "used %s > total %s", b.UsedDays, b.TotalDays)
	}

	// 7 approvals of 3 days fill 21 exactly
	assert.Equal(t, "21", usedDays(t, m, veteran.ID))
}

// =============================================================================
// STORAGE FAILURES
// =============================================================================

// failingStore fails UpdateRequest inside transactions.
type failingStore struct {
	*store.Memory
	err error
}

func (f *failingStore) WithTx(ctx context.Context, fn func(vacation.Store) error) error {
	return f.Memory.WithTx(ctx, func(s vacation.Store) error {
		return fn(failingView{Store: s, err: f.err})
	})
}

type failingView struct {
	vacation.Store
	err error
}

func (v failingView) UpdateRequest(context.Context, vacation.Request) error { return v.err }

func TestManager_Approve_StorageFailureRollsBack(t *testing.T) {
	// GIVEN: A store whose request update fails after the debit was written
	mem := newTestStore(t, veteran)
	m := newTestManager(t, &failingStore{Memory: mem, err: errors.New("disk I/O error")})
	r := createRequest(t, m, veteran.ID, march(10), march(14))

	// WHEN: Approving
	_, err := m.Approve(context.Background(), r.ID)

	// THEN: StorageFailure wrapping the cause
	require.ErrorIs(t, err, vacation.ErrStorageFailure)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.False(t, vacation.IsClientError(err))

	// AND: Nothing from the transaction survived
	stored, err := mem.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusPending, stored.Status)

	row, err := mem.GetBalance(context.Background(), veteran.ID, 2025)
	require.NoError(t, err)
	assert.Nil(t, row)
	movements, err := mem.ListMovements(context.Background(), veteran.ID, 2025)
	require.NoError(t, err)
	assert.Empty(t, movements)
}
