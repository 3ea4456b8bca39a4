//go:build unit

package loan_test

import (
	"strings"
	"testing"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name   string
	mutate func(*builder.LoanBuilder)
	errIs  error
}

func runCases(t *testing.T, cases []testCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := builder.NewLoanBuilder()
			tc.mutate(b)
			actual, err := b.BuildDomain()
			if tc.errIs != nil {
				require.ErrorIs(t, err, tc.errIs)
				assert.Nil(t, actual)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, actual)
		})
	}
}

func TestNewLoan(t *testing.T) {
	t.Run("basic success case", func(t *testing.T) {
		actual, err := builder.NewLoanBuilder().BuildDomain()
		require.NoError(t, err)
		require.NotNil(t, actual)

		assert.NotEqual(t, uuid.Nil, actual.ID())
		assert.Equal(t, "book-001", actual.BookID())
		assert.Equal(t, "user-001", actual.UserID())
		assert.Equal(t, "Ana García", actual.UserName())
		assert.Equal(t, loan.StatusActive, actual.Status())
		assert.Equal(t, builder.DefaultLoanDate, actual.LoanDate())
		assert.Nil(t, actual.ReturnDate())
		assert.Nil(t, actual.FailureReason())
	})

	t.Run("field validation", func(t *testing.T) {
		runCases(t, []testCase{
			{
				name:   "empty book id",
				mutate: func(b *builder.LoanBuilder) { b.WithBookID("") },
				errIs:  loan.ErrEmptyBookID,
			},
			{
				name:   "empty user id",
				mutate: func(b *builder.LoanBuilder) { b.WithUserID("") },
				errIs:  loan.ErrEmptyUserID,
			},
			{
				name:   "empty user name",
				mutate: func(b *builder.LoanBuilder) { b.WithUserName("") },
				errIs:  loan.ErrEmptyUserName,
			},
			{
				name:   "pending is a valid initial status",
				mutate: func(b *builder.LoanBuilder) { b.WithStatus(loan.StatusPending) },
			},
			{
				name:   "returned is not a valid initial status",
				mutate: func(b *builder.LoanBuilder) { b.WithStatus(loan.StatusReturned) },
				errIs:  loan.ErrInvalidStatus,
			},
			{
				name:   "failed is not a valid initial status",
				mutate: func(b *builder.LoanBuilder) { b.WithStatus(loan.StatusFailed) },
				errIs:  loan.ErrInvalidStatus,
			},
		})
	})
}

func TestLoanTransitions(t *testing.T) {
	now := builder.DefaultLoanDate.Add(24 * time.Hour)

	t.Run("confirm pending loan", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusPending).BuildSeed()
		require.NoError(t, l.Confirm())
		assert.Equal(t, loan.StatusActive, l.Status())
	})

	t.Run("confirm active loan is a no-op", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusActive).BuildSeed()
		require.NoError(t, l.Confirm())
		assert.Equal(t, loan.StatusActive, l.Status())
	})

	t.Run("confirm returned loan fails", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusReturned).WithReturnDate(now).BuildSeed()
		require.ErrorIs(t, l.Confirm(), loan.ErrNotConfirmable)
	})

	t.Run("reject pending loan records reason", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusPending).BuildSeed()
		require.NoError(t, l.Reject("libro no disponible"))
		assert.Equal(t, loan.StatusFailed, l.Status())
		require.NotNil(t, l.FailureReason())
		assert.Equal(t, "libro no disponible", *l.FailureReason())
	})

	t.Run("reject failed loan is a no-op", func(t *testing.T) {
		l := builder.NewLoanBuilder().
			WithStatus(loan.StatusFailed).
			WithFailureReason("primera razón").
			BuildSeed()
		require.NoError(t, l.Reject("segunda razón"))
		require.NotNil(t, l.FailureReason())
		assert.Equal(t, "primera razón", *l.FailureReason())
	})

	t.Run("reject truncates oversized reason", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusPending).BuildSeed()
		require.NoError(t, l.Reject(strings.Repeat("x", loan.MaxFailureReasonLength+100)))
		require.NotNil(t, l.FailureReason())
		assert.Len(t, *l.FailureReason(), loan.MaxFailureReasonLength)
	})

	t.Run("reject returned loan fails", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusReturned).WithReturnDate(now).BuildSeed()
		require.ErrorIs(t, l.Reject("tarde"), loan.ErrNotRejectable)
	})

	t.Run("return active loan", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusActive).BuildSeed()
		require.NoError(t, l.Return(now))
		assert.Equal(t, loan.StatusReturned, l.Status())
		require.NotNil(t, l.ReturnDate())
		assert.Equal(t, now, *l.ReturnDate())
	})

	t.Run("return already returned loan", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusReturned).WithReturnDate(now).BuildSeed()
		require.ErrorIs(t, l.Return(now), loan.ErrAlreadyReturned)
	})

	t.Run("return pending loan", func(t *testing.T) {
		l := builder.NewLoanBuilder().WithStatus(loan.StatusPending).BuildSeed()
		require.ErrorIs(t, l.Return(now), loan.ErrNotReturnable)
	})
}

func TestStatus(t *testing.T) {
	assert.True(t, loan.StatusReturned.IsTerminal())
	assert.True(t, loan.StatusFailed.IsTerminal())
	assert.False(t, loan.StatusPending.IsTerminal())
	assert.False(t, loan.StatusActive.IsTerminal())

	assert.True(t, loan.StatusActive.Valid())
	assert.False(t, loan.Status("lost").Valid())
}
