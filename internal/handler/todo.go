package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/service"
	"github.com/BuzzLyutic/smart-todo/pkg/respond"
)

type TodoHandler struct {
	todos  *service.TodoService
	assist *service.AssistService
	logger *zap.Logger
}

func NewTodoHandler(todos *service.TodoService, assist *service.AssistService, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{
		todos:  todos,
		assist: assist,
		logger: logger,
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type suggestionsRequest struct {
	Suggestions []string `json:"suggestions"`
}

type orderRequest struct {
	IDs []int64 `json:"ids"`
}

type featureRequest struct {
	Feature string `json:"feature"`
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context(), currentUser(r))
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, todos)
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	todo, err := h.todos.Add(r.Context(), currentUser(r), req.Text)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/todos/%d", todo.ID))
	respond.JSON(w, r, http.StatusCreated, todo)
}

// CreateBatch добавляет несколько задач; при ошибке возвращает уже созданные
func (h *TodoHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.todos.AddMany(r.Context(), currentUser(r), req.Texts)
	if err != nil && len(created) == 0 {
		handleErrors(h.logger, w, r, err)
		return
	}
	if err != nil {
		h.logger.Info("batch create stopped early",
			zap.Int("created", len(created)),
			zap.Int("requested", len(req.Texts)),
			zap.Error(err),
		)
		respond.JSON(w, r, http.StatusMultiStatus, map[string]interface{}{
			"todos": created,
			"error": err.Error(),
		})
		return
	}
	respond.JSON(w, r, http.StatusCreated, map[string]interface{}{"todos": created})
}

func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	todo, err := h.todos.Toggle(r.Context(), currentUser(r), id)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, todo)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	if err := h.todos.Delete(r.Context(), currentUser(r), id); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) SetSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	var req suggestionsRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	todo, err := h.todos.SetSuggestions(r.Context(), currentUser(r), id, req.Suggestions)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, todo)
}

// GenerateSuggestions запрашивает подзадачи у AI. С ?async=true задача уходит
// в очередь воркеров и ответ 202.
func (h *TodoHandler) GenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	user := currentUser(r)

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		job, err := h.todos.RequestSuggestions(r.Context(), user, id)
		if err != nil {
			handleErrors(h.logger, w, r, err)
			return
		}
		respond.JSON(w, r, http.StatusAccepted, job)
		return
	}

	todo, err := h.todos.Get(r.Context(), user, id)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	suggestions, err := h.assist.Suggest(r.Context(), todo.Text)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	todo, err = h.todos.SetSuggestions(r.Context(), user, id, suggestions)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, todo)
}

func (h *TodoHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	todos, err := h.todos.Reorder(r.Context(), currentUser(r), req.IDs)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, todos)
}

func (h *TodoHandler) FeatureUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.todos.FeatureUsage(r.Context(), currentUser(r))
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, usage)
}

func (h *TodoHandler) RecordFeatureUsage(w http.ResponseWriter, r *http.Request) {
	var req featureRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	usage, err := h.todos.RecordFeatureUsage(r.Context(), currentUser(r), req.Feature)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, usage)
}
