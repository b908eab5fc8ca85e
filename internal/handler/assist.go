package handler

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/service"
	"github.com/BuzzLyutic/smart-todo/pkg/respond"
)

// MaxImageBytes caps uploads to create-from-image.
const MaxImageBytes = 10 << 20

type AssistHandler struct {
	assist *service.AssistService
	logger *zap.Logger
}

func NewAssistHandler(assist *service.AssistService, logger *zap.Logger) *AssistHandler {
	return &AssistHandler{
		assist: assist,
		logger: logger,
	}
}

type suggestRequest struct {
	Task string `json:"task"`
}

type prioritizeRequest struct {
	Todos []string `json:"todos"`
}

func (h *AssistHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	suggestions, err := h.assist.Suggest(r.Context(), req.Task)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

func (h *AssistHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	var req prioritizeRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.assist.Prioritize(r.Context(), currentUser(r), req.Todos)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, result)
}

func (h *AssistHandler) PepTalk(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	talk, err := h.assist.PepTalk(r.Context(), currentUser(r), req.Text)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]string{"pepTalk": talk})
}

// CreateFromImage принимает multipart поле "image" и возвращает найденные задачи
func (h *AssistHandler) CreateFromImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respond.Error(w, r, http.StatusBadRequest, "no image uploaded")
			return
		}
		respond.Error(w, r, http.StatusBadRequest, "invalid image upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "failed to read image")
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	todos, err := h.assist.ExtractFromImage(r.Context(), currentUser(r), data, mime)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string][]string{"todos": todos})
}
