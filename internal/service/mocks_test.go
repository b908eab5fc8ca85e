package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/BuzzLyutic/smart-todo/internal/ai"
	"github.com/BuzzLyutic/smart-todo/internal/model"
)

// MockTodoRepository - мок репозитория
type MockTodoRepository struct {
	mock.Mock
}

func (m *MockTodoRepository) Create(ctx context.Context, userID, text string) (model.Todo, error) {
	args := m.Called(ctx, userID, text)
	return args.Get(0).(model.Todo), args.Error(1)
}

func (m *MockTodoRepository) Get(ctx context.Context, id int64) (model.Todo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Todo), args.Error(1)
}

func (m *MockTodoRepository) List(ctx context.Context, userID string) ([]model.Todo, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Todo), args.Error(1)
}

func (m *MockTodoRepository) Count(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockTodoRepository) SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error) {
	args := m.Called(ctx, id, completed)
	return args.Get(0).(model.Todo), args.Error(1)
}

func (m *MockTodoRepository) SetSuggestions(ctx context.Context, id int64, suggestions []string) (model.Todo, error) {
	args := m.Called(ctx, id, suggestions)
	return args.Get(0).(model.Todo), args.Error(1)
}

func (m *MockTodoRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTodoRepository) Reorder(ctx context.Context, userID string, ids []int64) ([]model.Todo, error) {
	args := m.Called(ctx, userID, ids)
	todos, _ := args.Get(0).([]model.Todo)
	return todos, args.Error(1)
}

func (m *MockTodoRepository) RecordFeatureUsage(ctx context.Context, userID, feature string) (model.FeatureUsage, error) {
	args := m.Called(ctx, userID, feature)
	return args.Get(0).(model.FeatureUsage), args.Error(1)
}

func (m *MockTodoRepository) ListFeatureUsage(ctx context.Context, userID string) ([]model.FeatureUsage, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.FeatureUsage), args.Error(1)
}

func (m *MockTodoRepository) QueueSuggestionJob(ctx context.Context, todoID int64) (model.SuggestionJob, error) {
	args := m.Called(ctx, todoID)
	return args.Get(0).(model.SuggestionJob), args.Error(1)
}

func (m *MockTodoRepository) ClaimSuggestionJob(ctx context.Context) (model.SuggestionJob, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.SuggestionJob), args.Error(1)
}

func (m *MockTodoRepository) CompleteSuggestionJob(ctx context.Context, job model.SuggestionJob, suggestions []string) error {
	args := m.Called(ctx, job, suggestions)
	return args.Error(0)
}

func (m *MockTodoRepository) ReleaseSuggestionJob(ctx context.Context, job model.SuggestionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req ai.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
