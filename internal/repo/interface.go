package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/smart-todo/internal/model"
)

var (
	ErrorNotFound  = errors.New("not found")
	ErrorConflict  = errors.New("conflict")
	ErrorForbidden = errors.New("forbidden")
)

// TodoRepository определяет интерфейс для работы с задачами
type TodoRepository interface {
	Create(ctx context.Context, userID, text string) (model.Todo, error)
	Get(ctx context.Context, id int64) (model.Todo, error)
	List(ctx context.Context, userID string) ([]model.Todo, error)
	Count(ctx context.Context, userID string) (int, error)
	SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error)
	SetSuggestions(ctx context.Context, id int64, suggestions []string) (model.Todo, error)
	Delete(ctx context.Context, id int64) error

	// Reorder assigns order = position to every id in one transaction.
	// Any id not owned by userID fails the whole batch with ErrorForbidden.
	Reorder(ctx context.Context, userID string, ids []int64) ([]model.Todo, error)

	RecordFeatureUsage(ctx context.Context, userID, feature string) (model.FeatureUsage, error)
	ListFeatureUsage(ctx context.Context, userID string) ([]model.FeatureUsage, error)

	SuggestionQueue
}

// SuggestionQueue is the job table drained by the worker pool.
type SuggestionQueue interface {
	QueueSuggestionJob(ctx context.Context, todoID int64) (model.SuggestionJob, error)
	ClaimSuggestionJob(ctx context.Context) (model.SuggestionJob, error)
	CompleteSuggestionJob(ctx context.Context, job model.SuggestionJob, suggestions []string) error
	ReleaseSuggestionJob(ctx context.Context, job model.SuggestionJob) error
}

func checkBatch(ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return ErrorConflict
		}
		seen[id] = struct{}{}
	}
	return nil
}
