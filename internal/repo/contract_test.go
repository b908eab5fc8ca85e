package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/smart-todo/internal/model"
)

// runContract exercises behaviour every TodoRepository backend must share.
func runContract(t *testing.T, newRepo func(t *testing.T) TodoRepository) {
	ctx := context.Background()

	t.Run("create appends in order", func(t *testing.T) {
		r := newRepo(t)
		a, err := r.Create(ctx, "alice", "first")
		require.NoError(t, err)
		b, err := r.Create(ctx, "alice", "second")
		require.NoError(t, err)
		_, err = r.Create(ctx, "bob", "other user")
		require.NoError(t, err)

		assert.NotZero(t, a.ID)
		assert.Equal(t, 0, a.Order)
		assert.Equal(t, 1, b.Order)
		assert.False(t, a.Completed)
		assert.Nil(t, a.Suggestions)

		todos, err := r.List(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID}, model.IDs(todos))

		n, err := r.Count(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("get missing", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Get(ctx, 99999)
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("set completed and suggestions", func(t *testing.T) {
		r := newRepo(t)
		todo, err := r.Create(ctx, "alice", "plan party")
		require.NoError(t, err)

		updated, err := r.SetCompleted(ctx, todo.ID, true)
		require.NoError(t, err)
		assert.True(t, updated.Completed)

		updated, err = r.SetSuggestions(ctx, todo.ID, []string{"Send invitations", "Order a cake"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Send invitations", "Order a cake"}, updated.Suggestions)

		got, err := r.Get(ctx, todo.ID)
		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.Equal(t, []string{"Send invitations", "Order a cake"}, got.Suggestions)

		_, err = r.SetCompleted(ctx, 99999, true)
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		r := newRepo(t)
		todo, err := r.Create(ctx, "alice", "to delete")
		require.NoError(t, err)

		require.NoError(t, r.Delete(ctx, todo.ID))
		assert.ErrorIs(t, r.Delete(ctx, todo.ID), ErrorNotFound)
	})

	t.Run("reorder assigns positions", func(t *testing.T) {
		r := newRepo(t)
		var ids []int64
		for _, text := range []string{"a", "b", "c", "d"} {
			todo, err := r.Create(ctx, "alice", text)
			require.NoError(t, err)
			ids = append(ids, todo.ID)
		}

		want := []int64{ids[2], ids[0], ids[3], ids[1]}
		todos, err := r.Reorder(ctx, "alice", want)
		require.NoError(t, err)
		assert.Equal(t, want, model.IDs(todos))
		for i, todo := range todos {
			assert.Equal(t, i, todo.Order)
		}

		listed, err := r.List(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, want, model.IDs(listed))
	})

	t.Run("reorder rejects foreign ids atomically", func(t *testing.T) {
		r := newRepo(t)
		a, err := r.Create(ctx, "alice", "mine")
		require.NoError(t, err)
		b, err := r.Create(ctx, "alice", "mine too")
		require.NoError(t, err)
		foreign, err := r.Create(ctx, "mallory", "not yours")
		require.NoError(t, err)

		_, err = r.Reorder(ctx, "alice", []int64{b.ID, foreign.ID, a.ID})
		assert.ErrorIs(t, err, ErrorForbidden)

		_, err = r.Reorder(ctx, "alice", []int64{b.ID, 424242})
		assert.ErrorIs(t, err, ErrorForbidden)

		listed, err := r.List(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID}, model.IDs(listed), "order must be untouched")

		other, err := r.Get(ctx, foreign.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, other.Order)
	})

	t.Run("reorder rejects duplicates", func(t *testing.T) {
		r := newRepo(t)
		a, err := r.Create(ctx, "alice", "x")
		require.NoError(t, err)

		_, err = r.Reorder(ctx, "alice", []int64{a.ID, a.ID})
		assert.ErrorIs(t, err, ErrorConflict)
	})

	t.Run("feature usage is recorded once", func(t *testing.T) {
		r := newRepo(t)
		first, err := r.RecordFeatureUsage(ctx, "alice", model.FeatureCreateFromImage)
		require.NoError(t, err)
		second, err := r.RecordFeatureUsage(ctx, "alice", model.FeatureCreateFromImage)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		_, err = r.RecordFeatureUsage(ctx, "alice", model.FeaturePrioritize)
		require.NoError(t, err)

		usage, err := r.ListFeatureUsage(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, usage, 2)

		usage, err = r.ListFeatureUsage(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, usage)
	})

	t.Run("suggestion jobs lifecycle", func(t *testing.T) {
		r := newRepo(t)
		todo, err := r.Create(ctx, "alice", "Plan a birthday party")
		require.NoError(t, err)

		job, err := r.QueueSuggestionJob(ctx, todo.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "Plan a birthday party", job.Text)

		again, err := r.QueueSuggestionJob(ctx, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, again.ID, "queueing twice keeps one job")

		claimed, err := r.ClaimSuggestionJob(ctx)
		require.NoError(t, err)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, todo.ID, claimed.TodoID)

		_, err = r.ClaimSuggestionJob(ctx)
		assert.ErrorIs(t, err, ErrorNotFound, "processing jobs are not claimable")

		require.NoError(t, r.ReleaseSuggestionJob(ctx, claimed))
		claimed, err = r.ClaimSuggestionJob(ctx)
		require.NoError(t, err)

		require.NoError(t, r.CompleteSuggestionJob(ctx, claimed, []string{"Send invitations"}))
		got, err := r.Get(ctx, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Send invitations"}, got.Suggestions)

		_, err = r.ClaimSuggestionJob(ctx)
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("queue job for missing todo", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.QueueSuggestionJob(ctx, 99999)
		assert.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("concurrent claims never share a job", func(t *testing.T) {
		r := newRepo(t)
		for i := 0; i < 5; i++ {
			todo, err := r.Create(ctx, "alice", "job")
			require.NoError(t, err)
			_, err = r.QueueSuggestionJob(ctx, todo.ID)
			require.NoError(t, err)
		}

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			claimed = map[string]int{}
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				job, err := r.ClaimSuggestionJob(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, 5)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %s claimed more than once", id)
		}
	})
}
