//go:build unit

package queries_test

import (
	"context"
	"testing"
	"time"

	"loans-service/internal/domain/loan"
	"loans-service/internal/pkg/errs"
	"loans-service/internal/usecase/queries"
	"loans-service/tests/common/builder"
	"loans-service/tests/common/fake"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanQueries(t *testing.T) {
	ctx := context.Background()

	store := fake.NewLoanStore()
	older := builder.NewLoanBuilder().
		WithStatus(loan.StatusActive).
		WithLoanDate(builder.DefaultLoanDate).
		BuildSeed()
	newer := builder.NewLoanBuilder().
		WithStatus(loan.StatusPending).
		WithLoanDate(builder.DefaultLoanDate.Add(time.Hour)).
		BuildSeed()
	store.Seed(older)
	store.Seed(newer)

	q := queries.NewLoanQueries(store)

	t.Run("list all returns newest first", func(t *testing.T) {
		loans, err := q.ListAll(ctx)
		require.NoError(t, err)

		got := make([]uuid.UUID, len(loans))
		for i, l := range loans {
			got[i] = l.ID()
		}
		want := []uuid.UUID{newer.ID(), older.ID()}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("loan order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("list active filters by status", func(t *testing.T) {
		loans, err := q.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, older.ID(), loans[0].ID())
	})

	t.Run("list pending filters by status", func(t *testing.T) {
		loans, err := q.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, newer.ID(), loans[0].ID())
	})

	t.Run("get by id", func(t *testing.T) {
		l, err := q.GetByID(ctx, older.ID())
		require.NoError(t, err)
		assert.Equal(t, older.BookID(), l.BookID())
	})

	t.Run("get unknown id", func(t *testing.T) {
		_, err := q.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, errs.ErrLoanNotFound)
	})
}
