package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/ai"
	"github.com/BuzzLyutic/smart-todo/internal/middleware"
	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/repo"
	"github.com/BuzzLyutic/smart-todo/internal/service"
)

type generatorFunc func(ctx context.Context, req ai.Request) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req ai.Request) (string, error) {
	return f(ctx, req)
}

// scripted отвечает в зависимости от типа запроса
func scripted() ai.Generator {
	return generatorFunc(func(_ context.Context, req ai.Request) (string, error) {
		switch {
		case len(req.Image) > 0:
			return "Buy milk\n\nCall mom\n", nil
		case strings.Contains(req.Prompt, "Prioritized List:"):
			return "1. **Pay rent** asap. It is due.\n2. Walk the dog!\n\n\n\nDone.", nil
		case strings.Contains(req.Prompt, "pep talk"):
			return "You **can** do it!", nil
		default:
			return "- Step one\n- Step two\n\n- Step three", nil
		}
	})
}

type testEnv struct {
	router http.Handler
	repo   *repo.SQLiteRepo
}

func setup(t *testing.T, gen ai.Generator) testEnv {
	t.Helper()
	r, err := repo.NewSQLiteRepo(filepath.Join(t.TempDir(), "handler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	logger := zap.NewNop()
	todos := service.NewTodoService(r, 3)
	assist := service.NewAssistService(gen, r, logger)

	router := NewRouter(
		NewTodoHandler(todos, assist, logger),
		NewAssistHandler(assist, logger),
		logger,
	)
	return testEnv{router: router, repo: r}
}

func (e testEnv) do(t *testing.T, method, path string, user model.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if user.ID != "" {
		req.Header.Set(middleware.HeaderUserID, user.ID)
	}
	if user.Anonymous {
		req.Header.Set(middleware.HeaderAnonymous, "true")
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

var (
	alice = model.User{ID: "alice"}
	bob   = model.User{ID: "bob"}
	guest = model.User{ID: "guest-1", Anonymous: true}
)

func TestHealth(t *testing.T) {
	env := setup(t, scripted())

	w := env.do(t, http.MethodGet, "/health", model.User{}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAPI_RequiresIdentity(t *testing.T) {
	env := setup(t, scripted())

	w := env.do(t, http.MethodGet, "/api/todos", model.User{}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTodoHandler_Lifecycle(t *testing.T) {
	env := setup(t, scripted())

	w := env.do(t, http.MethodPost, "/api/todos", alice, map[string]string{"text": "  Buy milk "})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[model.Todo](t, w)
	assert.Equal(t, "Buy milk", created.Text)
	assert.Equal(t, fmt.Sprintf("/api/todos/%d", created.ID), w.Header().Get("Location"))

	w = env.do(t, http.MethodPatch, fmt.Sprintf("/api/todos/%d/toggle", created.ID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.Todo](t, w).Completed)

	w = env.do(t, http.MethodGet, "/api/todos", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Todo](t, w), 1)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/todos/%d", created.ID), alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/todos", alice, nil)
	assert.Empty(t, decode[[]model.Todo](t, w))
}

func TestTodoHandler_Errors(t *testing.T) {
	env := setup(t, scripted())
	todo, err := env.repo.Create(context.Background(), alice.ID, "Secret plan")
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		user     model.User
		body     interface{}
		wantCode int
	}{
		{"empty text", http.MethodPost, "/api/todos", alice, map[string]string{"text": "   "}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/todos", alice, map[string]string{"title": "x"}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/todos", alice, nil, http.StatusBadRequest},
		{"bad id", http.MethodPatch, "/api/todos/abc/toggle", alice, nil, http.StatusBadRequest},
		{"missing todo", http.MethodPatch, "/api/todos/9999/toggle", alice, nil, http.StatusNotFound},
		{"foreign toggle", http.MethodPatch, fmt.Sprintf("/api/todos/%d/toggle", todo.ID), bob, nil, http.StatusForbidden},
		{"foreign delete", http.MethodDelete, fmt.Sprintf("/api/todos/%d", todo.ID), bob, nil, http.StatusForbidden},
		{"foreign suggestions", http.MethodPut, fmt.Sprintf("/api/todos/%d/suggestions", todo.ID), bob,
			map[string][]string{"suggestions": {"peek"}}, http.StatusForbidden},
		{"empty order", http.MethodPut, "/api/todos/order", alice, map[string][]int64{"ids": {}}, http.StatusBadRequest},
		{"duplicate order", http.MethodPut, "/api/todos/order", alice,
			map[string][]int64{"ids": {todo.ID, todo.ID}}, http.StatusBadRequest},
		{"foreign order", http.MethodPut, "/api/todos/order", bob, map[string][]int64{"ids": {todo.ID}}, http.StatusForbidden},
		{"empty feature", http.MethodPost, "/api/features", alice, map[string]string{"feature": ""}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	// Ничего из отклонённого не изменило задачу
	got, err := env.repo.Get(context.Background(), todo.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.Suggestions)
}

func TestTodoHandler_AnonymousLimit(t *testing.T) {
	env := setup(t, scripted())

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/todos", guest, map[string]string{"text": fmt.Sprintf("todo %d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodPost, "/api/todos", guest, map[string]string{"text": "one too many"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "please log in")
}

func TestTodoHandler_CreateBatch(t *testing.T) {
	env := setup(t, scripted())

	t.Run("all created", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/todos/batch", alice, map[string][]string{"texts": {"a", "b"}})
		require.Equal(t, http.StatusCreated, w.Code)
		body := decode[struct {
			Todos []model.Todo `json:"todos"`
		}](t, w)
		assert.Len(t, body.Todos, 2)
	})

	t.Run("stops at anonymous limit", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/todos/batch", guest, map[string][]string{"texts": {"1", "2", "3", "4", "5"}})
		require.Equal(t, http.StatusMultiStatus, w.Code)
		body := decode[struct {
			Todos []model.Todo `json:"todos"`
			Error string       `json:"error"`
		}](t, w)
		assert.Len(t, body.Todos, 3)
		assert.NotEmpty(t, body.Error)
	})

	t.Run("nothing created", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/todos/batch", guest, map[string][]string{"texts": {"6"}})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestTodoHandler_Reorder(t *testing.T) {
	env := setup(t, scripted())
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"first", "second", "third"} {
		todo, err := env.repo.Create(ctx, alice.ID, text)
		require.NoError(t, err)
		ids = append(ids, todo.ID)
	}

	w := env.do(t, http.MethodPut, "/api/todos/order", alice, map[string][]int64{"ids": {ids[2], ids[0], ids[1]}})
	require.Equal(t, http.StatusOK, w.Code)

	todos := decode[[]model.Todo](t, w)
	require.Len(t, todos, 3)
	assert.Equal(t, []int64{ids[2], ids[0], ids[1]}, model.IDs(todos))
	for i, todo := range todos {
		assert.Equal(t, i, todo.Order)
	}
}

func TestTodoHandler_Suggestions(t *testing.T) {
	env := setup(t, scripted())
	todo, err := env.repo.Create(context.Background(), alice.ID, "Plan a birthday party")
	require.NoError(t, err)
	path := fmt.Sprintf("/api/todos/%d/suggestions", todo.ID)

	t.Run("set manually", func(t *testing.T) {
		w := env.do(t, http.MethodPut, path, alice, map[string][]string{"suggestions": {" Invite ", "", "Cake"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"Invite", "Cake"}, decode[model.Todo](t, w).Suggestions)
	})

	t.Run("generate now", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path, alice, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"Step one", "Step two", "Step three"}, decode[model.Todo](t, w).Suggestions)
	})

	t.Run("queue", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"?async=true", alice, nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		job := decode[model.SuggestionJob](t, w)
		assert.Equal(t, todo.ID, job.TodoID)
		assert.NotEmpty(t, job.ID)
	})
}

func TestTodoHandler_FeatureUsage(t *testing.T) {
	env := setup(t, scripted())

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/features", alice, map[string]string{"feature": model.FeatureCreateFromImage})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/features", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	usage := decode[[]model.FeatureUsage](t, w)
	require.Len(t, usage, 1)
	assert.Equal(t, model.FeatureCreateFromImage, usage[0].Feature)
}

func TestAssistHandler_Suggest(t *testing.T) {
	env := setup(t, scripted())

	w := env.do(t, http.MethodPost, "/api/ai/suggest", alice, map[string]string{"task": "Plan a party"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"suggestions":["Step one","Step two","Step three"]}`, w.Body.String())
}

func TestAssistHandler_Prioritize(t *testing.T) {
	env := setup(t, scripted())

	w := env.do(t, http.MethodPost, "/api/ai/prioritize", alice, map[string][]string{"todos": {"Walk the dog", "Pay rent"}})

	require.Equal(t, http.StatusOK, w.Code)
	got := decode[service.Prioritized](t, w)
	assert.NotContains(t, got.Text, "*")
	assert.NotContains(t, got.Text, "\n\n\n")
	assert.Equal(t, []string{"Pay rent asap", "Walk the dog"}, got.Ordered)

	w = env.do(t, http.MethodPost, "/api/ai/prioritize", alice, map[string][]string{"todos": {}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssistHandler_PepTalk(t *testing.T) {
	env := setup(t, scripted())

	w := env.do(t, http.MethodPost, "/api/ai/pep-talk", alice, map[string]string{"text": "Run a marathon"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pepTalk":"You can do it!"}`, w.Body.String())
}

func TestAssistHandler_NotConfigured(t *testing.T) {
	env := setup(t, ai.Unconfigured{})

	w := env.do(t, http.MethodPost, "/api/ai/suggest", alice, map[string]string{"task": "Plan a party"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func imageRequest(t *testing.T, user model.User, field, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="list.png"`, field))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/create-from-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.HeaderUserID, user.ID)
	if user.Anonymous {
		req.Header.Set(middleware.HeaderAnonymous, "true")
	}
	return req
}

func TestAssistHandler_CreateFromImage(t *testing.T) {
	env := setup(t, scripted())
	png := []byte("\x89PNG\r\n\x1a\nfake")

	t.Run("extracts todos", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, imageRequest(t, guest, "image", "image/png", png))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"todos":["Buy milk","Call mom"]}`, w.Body.String())
	})

	t.Run("anonymous users get one extraction", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, imageRequest(t, guest, "image", "image/png", png))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("registered users are not limited", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, imageRequest(t, alice, "image", "image/png", png))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("content type is sniffed", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, imageRequest(t, alice, "image", "application/octet-stream", png))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not an image", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, imageRequest(t, alice, "image", "text/plain", []byte("hello")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing field", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, imageRequest(t, alice, "file", "image/png", png))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
