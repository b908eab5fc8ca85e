package model

import (
	"sort"
	"time"
)

type Todo struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Text        string    `json:"text"`
	Completed   bool      `json:"completed"`
	Order       int       `json:"order"`
	Suggestions []string  `json:"suggestion"` // nil (null) пока AI не сгенерировал подзадачи
	CreatedAt   time.Time `json:"createdAt"`
}

type FeatureUsage struct {
	ID      int64     `json:"id"`
	UserID  string    `json:"userId"`
	Feature string    `json:"feature"`
	UsedAt  time.Time `json:"usedAt"`
}

// User is the caller identity attached to a request.
type User struct {
	ID        string
	Anonymous bool
}

const (
	FeatureCreateFromImage = "create_from_image"
	FeaturePrioritize      = "prioritize"
	FeaturePepTalk         = "pep_talk"
)

// SuggestionJob is a queued request to generate subtasks for one todo.
type SuggestionJob struct {
	ID     string `json:"id"`
	TodoID int64  `json:"todoId"`
	Text   string `json:"text"`
}

// SortTodos sorts by display order, ties broken by id ascending.
func SortTodos(todos []Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].Order != todos[j].Order {
			return todos[i].Order < todos[j].Order
		}
		return todos[i].ID < todos[j].ID
	})
}

func IDs(todos []Todo) []int64 {
	ids := make([]int64, len(todos))
	for i, t := range todos {
		ids[i] = t.ID
	}
	return ids
}
