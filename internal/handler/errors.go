package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/ai"
	"github.com/BuzzLyutic/smart-todo/internal/middleware"
	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/repo"
	"github.com/BuzzLyutic/smart-todo/internal/service"
	"github.com/BuzzLyutic/smart-todo/pkg/respond"
)

var errBadID = errors.New("invalid todo id")

func handleErrors(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden), errors.Is(err, repo.ErrorForbidden):
		respond.Error(w, r, http.StatusForbidden, "not authorized")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation), errors.Is(err, errBadID):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLimitReached), errors.Is(err, service.ErrFeatureUsed):
		respond.Error(w, r, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ai.ErrNotConfigured):
		respond.Error(w, r, http.StatusServiceUnavailable, "ai assistant is not configured")
	default:
		logger.Error("internal error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

func todoID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// Identity middleware всегда стоит перед хэндлерами, пустой User не ожидается
func currentUser(r *http.Request) model.User {
	u, _ := middleware.UserFrom(r.Context())
	return u
}
