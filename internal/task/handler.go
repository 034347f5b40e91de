package task

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/web"
)

// Handler serves the /todos HTML pages for the signed-in owner.
type Handler struct {
	svc    *Service
	views  *web.Renderer
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, views *web.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, views: views, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	todos, err := h.svc.ListForOwner(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, "list todos", err)
		return
	}
	h.render(w, http.StatusOK, "home", web.PageData{Title: "Todos", User: &id, Todos: todos})
}

func (h *Handler) AddPage(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	h.render(w, http.StatusOK, "add-todo", web.PageData{Title: "Add todo", User: &id})
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	title, description, priority, err := parseForm(r)
	if err == nil {
		_, err = h.svc.Create(r.Context(), id.UserID, title, description, priority)
	}
	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusUnprocessableEntity {
			h.render(w, http.StatusUnprocessableEntity, "add-todo", web.PageData{Title: "Add todo", User: &id, Msg: apperr.PublicMessage(err)})
			return
		}
		h.fail(w, "create todo", err)
		return
	}
	http.Redirect(w, r, "/todos/", http.StatusFound)
}

func (h *Handler) EditPage(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	t, err := h.owned(r.Context(), r, id)
	if err != nil {
		h.fail(w, "load todo", err)
		return
	}
	h.render(w, http.StatusOK, "edit-todo", web.PageData{Title: "Edit todo", User: &id, Todo: t})
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	t, err := h.owned(r.Context(), r, id)
	if err != nil {
		h.fail(w, "load todo", err)
		return
	}
	title, description, priority, err := parseForm(r)
	if err == nil {
		_, err = h.svc.Update(r.Context(), t.ID, title, description, priority)
	}
	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusUnprocessableEntity {
			h.render(w, http.StatusUnprocessableEntity, "edit-todo", web.PageData{Title: "Edit todo", User: &id, Todo: t, Msg: apperr.PublicMessage(err)})
			return
		}
		h.fail(w, "update todo", err)
		return
	}
	http.Redirect(w, r, "/todos/", http.StatusFound)
}

// Delete removes the caller's task; a foreign or missing task is a silent no-op.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	taskID, err := pathID(r)
	if err != nil {
		h.fail(w, "delete todo", err)
		return
	}
	deleted, err := h.svc.Delete(r.Context(), taskID, id.UserID)
	if err != nil {
		h.fail(w, "delete todo", err)
		return
	}
	if !deleted {
		h.logger.Debugw("delete skipped", "todo_id", taskID, "user_id", id.UserID)
	}
	http.Redirect(w, r, "/todos/", http.StatusFound)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	t, err := h.owned(r.Context(), r, id)
	if err == nil {
		_, err = h.svc.ToggleComplete(r.Context(), t.ID)
	}
	if err != nil {
		h.fail(w, "complete todo", err)
		return
	}
	http.Redirect(w, r, "/todos/", http.StatusFound)
}

// owned loads the {id} task and hides it from anyone but its owner or an admin.
func (h *Handler) owned(ctx context.Context, r *http.Request, id session.Identity) (*entity.Task, error) {
	taskID, err := pathID(r)
	if err != nil {
		return nil, err
	}
	t, err := h.svc.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != id.UserID && !id.IsAdmin() {
		return nil, ErrNotFound
	}
	return t, nil
}

func pathID(r *http.Request) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Validationf("todo id must be a positive integer")
	}
	return v, nil
}

func parseForm(r *http.Request) (title, description string, priority int, err error) {
	if err = r.ParseForm(); err != nil {
		return "", "", 0, apperr.Validationf("invalid form")
	}
	priority, err = ParsePriority(r.PostForm.Get("priority"))
	if err != nil {
		return "", "", 0, err
	}
	return r.PostForm.Get("title"), r.PostForm.Get("description"), priority, nil
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data web.PageData) {
	if err := h.views.Render(w, status, page, data); err != nil {
		h.logger.Errorw("render failed", "page", page, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Warnw(msg, "err", err)
	} else {
		h.logger.Debugw(msg, "err", err)
	}
	http.Error(w, apperr.PublicMessage(err), status)
}
