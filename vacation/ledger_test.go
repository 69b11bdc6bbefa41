package vacation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vacation-engine/vacation"
	"github.com/warp/vacation-engine/vacation/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Hired 2018-01-01: 7 years at the end of 2025, so 21 days.
var veteran = vacation.Employee{
	ID:       "emp-veteran",
	Name:     "Vera Veteran",
	DNI:      "20123456",
	HireDate: vacation.NewDate(2018, time.January, 1),
}

// Hired 2023-03-01: under 5 years at the end of 2025, so 14 days.
var junior = vacation.Employee{
	ID:       "emp-junior",
	Name:     "Julio Junior",
	DNI:      "40123456",
	HireDate: vacation.NewDate(2023, time.March, 1),
}

func newTestStore(t *testing.T, employees ...vacation.Employee) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	for _, e := range employees {
		require.NoError(t, s.SaveEmployee(context.Background(), e))
	}
	return s
}

func seedBalance(t *testing.T, s vacation.Store, emp vacation.EmployeeID, year int, total, used string) {
	t.Helper()
	require.NoError(t, s.UpsertBalance(context.Background(), vacation.Balance{
		EmployeeID: emp,
		Year:       year,
		TotalDays:  days(total),
		UsedDays:   days(used),
	}))
}

// =============================================================================
// BALANCE
// =============================================================================

func TestLedger_Balance_SynthesizedAndNotPersisted(t *testing.T) {
	// GIVEN: An employee with no balance row
	s := newTestStore(t, veteran)
	ledger := vacation.NewLedger(s)
	ctx := context.Background()

	// WHEN: Reading the balance twice
	first, err := ledger.Balance(ctx, veteran.ID, 2025)
	require.NoError(t, err)
	second, err := ledger.Balance(ctx, veteran.ID, 2025)
	require.NoError(t, err)

	// THEN: Identical synthesized values
	assert.Equal(t, first, second)
	assert.True(t, days("21").Equal(first.TotalDays))
	assert.True(t, first.UsedDays.IsZero())
	assert.True(t, days("21").Equal(first.AvailableDays()))
	assert.False(t, first.Persisted)

	// AND: Nothing was written
	row, err := s.GetBalance(ctx, veteran.ID, 2025)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestLedger_Balance_UnknownEmployee(t *testing.T) {
	ledger := vacation.NewLedger(newTestStore(t))

	_, err := ledger.Balance(context.Background(), "ghost", 2025)

	assert.ErrorIs(t, err, vacation.ErrNotFound)
}

func TestLedger_Balance_InvalidKey(t *testing.T) {
	ledger := vacation.NewLedger(newTestStore(t, veteran))

	_, err := ledger.Balance(context.Background(), "", 2025)
	assert.ErrorIs(t, err, vacation.ErrValidation)

	_, err = ledger.Balance(context.Background(), veteran.ID, 0)
	assert.ErrorIs(t, err, vacation.ErrValidation)
}

// =============================================================================
// DEBIT / CREDIT
// =============================================================================

func TestLedger_Debit_PersistsAndRecordsMovement(t *testing.T) {
	// GIVEN: A synthesized balance of 21 days
	s := newTestStore(t, veteran)
	ledger := vacation.NewLedger(s)
	ctx := context.Background()

	// WHEN: Debiting 5 days
	b, err := ledger.Debit(ctx, veteran.ID, 2025, days("5"), "req-1")
	require.NoError(t, err)

	// THEN: Row persisted with 5 used, 16 available
	assert.True(t, days("5").Equal(b.UsedDays))
	assert.True(t, days("16").Equal(b.AvailableDays()))

	row, err := s.GetBalance(ctx, veteran.ID, 2025)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, days("21").Equal(row.TotalDays))
	assert.True(t, days("5").Equal(row.UsedDays))

	// AND: One debit movement
	movements, err := ledger.Movements(ctx, veteran.ID, 2025)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, vacation.MovementDebit, movements[0].Kind)
	assert.True(t, days("5").Equal(movements[0].Days))
	assert.Equal(t, vacation.RequestID("req-1"), movements[0].RequestID)
}

func TestLedger_Debit_Insufficient(t *testing.T) {
	// GIVEN: {total:14, used:10}
	s := newTestStore(t, junior)
	seedBalance(t, s, junior.ID, 2025, "14", "10")
	ledger := vacation.NewLedger(s)
	ctx := context.Background()

	// WHEN: Debiting 10 days
	_, err := ledger.Debit(ctx, junior.ID, 2025, days("10"), "req-1")

	// THEN: InsufficientBalance with the figures
	require.ErrorIs(t, err, vacation.ErrInsufficientBalance)
	var short *vacation.InsufficientBalanceError
	require.True(t, errors.As(err, &short))
	assert.True(t, days("10").Equal(short.Requested))
	assert.True(t, days("4").Equal(short.Available))
	assert.Equal(t, "exceeds available days: requested 10, available 4", err.Error())

	// AND: Balance unchanged, no movement
	row, err := s.GetBalance(ctx, junior.ID, 2025)
	require.NoError(t, err)
	assert.True(t, days("10").Equal(row.UsedDays))
	movements, err := ledger.Movements(ctx, junior.ID, 2025)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestLedger_Debit_ExactlyAvailable(t *testing.T) {
	s := newTestStore(t, junior)
	seedBalance(t, s, junior.ID, 2025, "14", "10")
	ledger := vacation.NewLedger(s)

	b, err := ledger.Debit(context.Background(), junior.ID, 2025, days("4"), "req-1")

	require.NoError(t, err)
	assert.True(t, b.AvailableDays().IsZero())
}

func TestLedger_Debit_RejectsNonPositiveDays(t *testing.T) {
	ledger := vacation.NewLedger(newTestStore(t, veteran))

	_, err := ledger.Debit(context.Background(), veteran.ID, 2025, days("0"), "req-1")
	assert.ErrorIs(t, err, vacation.ErrValidation)

	_, err = ledger.Credit(context.Background(), veteran.ID, 2025, days("-1"), "req-1")
	assert.ErrorIs(t, err, vacation.ErrValidation)
}

func TestLedger_Credit_FloorsAtZero(t *testing.T) {
	// GIVEN: 3 days used
	s := newTestStore(t, junior)
	seedBalance(t, s, junior.ID, 2025, "14", "3")
	ledger := vacation.NewLedger(s)
	ctx := context.Background()

	// WHEN: Crediting 5 days
	b, err := ledger.Credit(ctx, junior.ID, 2025, days("5"), "req-1")
	require.NoError(t, err)

	// THEN: Used is zero, and the movement records what was actually credited
	assert.True(t, b.UsedDays.IsZero())
	assert.True(t, days("14").Equal(b.AvailableDays()))

	movements, err := ledger.Movements(ctx, junior.ID, 2025)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, vacation.MovementCredit, movements[0].Kind)
	assert.True(t, days("3").Equal(movements[0].Days))
}
