package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
)

// Handler exposes the /admin JSON endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	todos, err := h.svc.ListAllTasks(r.Context(), id)
	if err != nil {
		h.writeError(w, "admin list todos", err)
		return
	}
	h.writeJSON(w, http.StatusOK, todos)
}

func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	taskID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || taskID <= 0 {
		h.writeError(w, "admin delete todo", apperr.Validationf("todo id must be a positive integer"))
		return
	}
	if _, err := h.svc.DeleteAny(r.Context(), id, taskID); err != nil {
		h.writeError(w, "admin delete todo", err)
		return
	}
	h.logger.Infow("todo deleted by admin", "todo_id", taskID, "admin_id", id.UserID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted successfully"})
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Warnw(msg, "err", err)
	} else {
		h.logger.Debugw(msg, "err", err)
	}
	h.writeJSON(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
