package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/repo"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("not authorized")
	ErrLimitReached = errors.New("anonymous todo limit reached")
	ErrFeatureUsed  = errors.New("feature already used")
)

const MaxTextLength = 500

type TodoService struct {
	repo           repo.TodoRepository
	anonymousLimit int
}

func NewTodoService(repo repo.TodoRepository, anonymousLimit int) *TodoService {
	return &TodoService{repo: repo, anonymousLimit: anonymousLimit}
}

func (s *TodoService) List(ctx context.Context, user model.User) ([]model.Todo, error) {
	return s.repo.List(ctx, user.ID)
}

func (s *TodoService) Add(ctx context.Context, user model.User, text string) (model.Todo, error) {
	text, err := s.validateText(text)
	if err != nil { // Валидация текста задачи
		return model.Todo{}, err
	}

	if user.Anonymous { // Анонимам доступно ограниченное число задач
		count, err := s.repo.Count(ctx, user.ID)
		if err != nil {
			return model.Todo{}, err
		}
		if count >= s.anonymousLimit {
			return model.Todo{}, fmt.Errorf("%w: anonymous users can only add %d todos, please log in to add more",
				ErrLimitReached, s.anonymousLimit)
		}
	}

	return s.repo.Create(ctx, user.ID, text)
}

// AddMany adds texts in order and stops at the first failure, returning the
// todos created so far.
func (s *TodoService) AddMany(ctx context.Context, user model.User, texts []string) ([]model.Todo, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no todos given", ErrValidation)
	}

	created := make([]model.Todo, 0, len(texts))
	for _, text := range texts {
		todo, err := s.Add(ctx, user, text)
		if err != nil {
			return created, err
		}
		created = append(created, todo)
	}
	return created, nil
}

func (s *TodoService) Toggle(ctx context.Context, user model.User, id int64) (model.Todo, error) {
	todo, err := s.owned(ctx, user, id)
	if err != nil {
		return model.Todo{}, err
	}
	return s.repo.SetCompleted(ctx, id, !todo.Completed)
}

func (s *TodoService) Delete(ctx context.Context, user model.User, id int64) error {
	if _, err := s.owned(ctx, user, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *TodoService) Get(ctx context.Context, user model.User, id int64) (model.Todo, error) {
	return s.owned(ctx, user, id)
}

func (s *TodoService) SetSuggestions(ctx context.Context, user model.User, id int64, suggestions []string) (model.Todo, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return model.Todo{}, err
	}

	cleaned := make([]string, 0, len(suggestions))
	for _, sg := range suggestions {
		if sg = strings.TrimSpace(sg); sg != "" {
			cleaned = append(cleaned, sg)
		}
	}
	return s.repo.SetSuggestions(ctx, id, cleaned)
}

// RequestSuggestions queues background generation of subtasks.
func (s *TodoService) RequestSuggestions(ctx context.Context, user model.User, id int64) (model.SuggestionJob, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return model.SuggestionJob{}, err
	}
	return s.repo.QueueSuggestionJob(ctx, id)
}

// Reorder replaces the display order of the user's todos with ids.
func (s *TodoService) Reorder(ctx context.Context, user model.User, ids []int64) ([]model.Todo, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty order", ErrValidation)
	}

	todos, err := s.repo.Reorder(ctx, user.ID, ids)
	switch {
	case errors.Is(err, repo.ErrorForbidden):
		return nil, ErrForbidden
	case errors.Is(err, repo.ErrorConflict):
		return nil, fmt.Errorf("%w: duplicate ids in order", ErrValidation)
	}
	return todos, err
}

func (s *TodoService) FeatureUsage(ctx context.Context, user model.User) ([]model.FeatureUsage, error) {
	return s.repo.ListFeatureUsage(ctx, user.ID)
}

func (s *TodoService) RecordFeatureUsage(ctx context.Context, user model.User, feature string) (model.FeatureUsage, error) {
	if strings.TrimSpace(feature) == "" {
		return model.FeatureUsage{}, fmt.Errorf("%w: feature is required", ErrValidation)
	}
	return s.repo.RecordFeatureUsage(ctx, user.ID, feature)
}

func (s *TodoService) owned(ctx context.Context, user model.User, id int64) (model.Todo, error) {
	todo, err := s.repo.Get(ctx, id)
	if err != nil {
		return todo, err
	}
	if todo.UserID != user.ID {
		return model.Todo{}, ErrForbidden
	}
	return todo, nil
}

func (s *TodoService) validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is required", ErrValidation)
	}
	if len(text) > MaxTextLength {
		return "", fmt.Errorf("%w: text longer than %d bytes", ErrValidation, MaxTextLength)
	}
	return text, nil
}
