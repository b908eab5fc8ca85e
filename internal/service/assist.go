package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/ai"
	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/repo"
)

type Prioritized struct {
	Text    string   `json:"prioritized"`
	Ordered []string `json:"ordered"`
}

// AssistService wraps the generative helpers: subtasks, prioritization,
// pep talks and todo extraction from images.
type AssistService struct {
	gen    ai.Generator
	repo   repo.TodoRepository
	logger *zap.Logger
}

func NewAssistService(gen ai.Generator, repo repo.TodoRepository, logger *zap.Logger) *AssistService {
	return &AssistService{gen: gen, repo: repo, logger: logger}
}

func (s *AssistService) Suggest(ctx context.Context, task string) ([]string, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("%w: task description is required", ErrValidation)
	}

	text, err := s.gen.Generate(ctx, ai.Request{Prompt: ai.SuggestPrompt(task)})
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	suggestions := ai.ParseSuggestions(text)
	s.logger.Debug("generated suggestions", zap.String("task", task), zap.Int("count", len(suggestions)))
	return suggestions, nil
}

func (s *AssistService) Prioritize(ctx context.Context, user model.User, todos []string) (Prioritized, error) {
	items := make([]string, 0, len(todos))
	for _, t := range todos {
		if t = strings.TrimSpace(t); t != "" {
			items = append(items, t)
		}
	}
	if len(items) == 0 {
		return Prioritized{}, fmt.Errorf("%w: a non-empty list of todos is required", ErrValidation)
	}

	text, err := s.gen.Generate(ctx, ai.Request{Prompt: ai.PrioritizePrompt(items)})
	if err != nil {
		return Prioritized{}, fmt.Errorf("prioritize: %w", err)
	}
	s.record(ctx, user, model.FeaturePrioritize)

	clean := ai.Clean(text)
	return Prioritized{Text: clean, Ordered: ai.ExtractOrdered(clean)}, nil
}

func (s *AssistService) PepTalk(ctx context.Context, user model.User, task string) (string, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return "", fmt.Errorf("%w: todo text is required", ErrValidation)
	}

	text, err := s.gen.Generate(ctx, ai.Request{Prompt: ai.PepTalkPrompt(task)})
	if err != nil {
		return "", fmt.Errorf("pep talk: %w", err)
	}
	s.record(ctx, user, model.FeaturePepTalk)
	return strings.TrimSpace(ai.Clean(text)), nil
}

// ExtractFromImage returns the todo lines found in an image. Anonymous users
// get one extraction.
func (s *AssistService) ExtractFromImage(ctx context.Context, user model.User, image []byte, mime string) ([]string, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: no image uploaded", ErrValidation)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrValidation, mime)
	}

	if user.Anonymous {
		used, err := s.hasUsed(ctx, user, model.FeatureCreateFromImage)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, fmt.Errorf("%w: anonymous users can only use create from image once, please log in", ErrFeatureUsed)
		}
	}

	text, err := s.gen.Generate(ctx, ai.Request{Prompt: ai.ImagePrompt, Image: image, ImageMIME: mime})
	if err != nil {
		return nil, fmt.Errorf("extract todos: %w", err)
	}
	s.record(ctx, user, model.FeatureCreateFromImage)
	return ai.ParseLines(text), nil
}

func (s *AssistService) hasUsed(ctx context.Context, user model.User, feature string) (bool, error) {
	usage, err := s.repo.ListFeatureUsage(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, u := range usage {
		if u.Feature == feature {
			return true, nil
		}
	}
	return false, nil
}

// record is best effort: a failed usage write must not fail the feature.
func (s *AssistService) record(ctx context.Context, user model.User, feature string) {
	if _, err := s.repo.RecordFeatureUsage(ctx, user.ID, feature); err != nil {
		s.logger.Warn("record feature usage",
			zap.String("user_id", user.ID),
			zap.String("feature", feature),
			zap.Error(err),
		)
	}
}
