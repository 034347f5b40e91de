package user

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/web"
)

// Handler exposes the /auth and /user endpoints.
type Handler struct {
	svc      *UserService
	sessions *session.Service
	views    *web.Renderer
	logger   *zap.SugaredLogger

	// LoginTTL is the lifetime of tokens issued by the login flows.
	LoginTTL     time.Duration
	SecureCookie bool

	// AllowAdminSignup lets the public JSON signup create admin accounts.
	AllowAdminSignup bool
}

var ErrAdminSignup = apperr.New(apperr.ErrForbidden, "admin accounts cannot be self-registered")

func NewHandler(svc *UserService, sessions *session.Service, views *web.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, views: views, logger: logger, LoginTTL: 30 * time.Minute}
}

// AuthRoot serves POST /auth/: a JSON body registers a user, a form body logs in.
func (h *Handler) AuthRoot(w http.ResponseWriter, r *http.Request) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		h.Signup(w, r)
		return
	}
	h.Login(w, r)
}

// Signup registers a user from a JSON body.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid signup payload", "err", err)
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	if role, err := entity.ParseRole(req.Role); err == nil && role == entity.RoleAdmin && !h.AllowAdminSignup {
		h.logger.Warnw("admin self-registration refused", "username", req.Username, "remote", r.RemoteAddr)
		h.writeError(w, "signup failed", ErrAdminSignup)
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, "signup failed", err)
		return
	}
	h.logger.Infow("user registered", "user_id", u.ID, "username", u.Username, "role", u.Role)
	h.writeJSON(w, http.StatusCreated, map[string]any{"message": "User created successfully", "id": u.ID})
}

// Token verifies form credentials, sets the session cookie and answers true or false.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid form"})
		return
	}
	ok, err := h.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		h.writeError(w, "token failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ok)
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login", web.PageData{Title: "Login"})
}

// Login processes the login form and redirects to the todo list.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusUnprocessableEntity, "login", web.PageData{Title: "Login", Msg: "Unknown Error"})
		return
	}
	username := r.PostForm.Get("username")
	if username == "" {
		username = r.PostForm.Get("email")
	}
	ok, err := h.login(w, r, username, r.PostForm.Get("password"))
	if err != nil {
		h.logger.Warnw("login failed", "err", err)
		h.render(w, http.StatusInternalServerError, "login", web.PageData{Title: "Login", Msg: "Unknown Error"})
		return
	}
	if !ok {
		h.render(w, http.StatusOK, "login", web.PageData{Title: "Login", Msg: "Incorrect Username or Password"})
		return
	}
	http.Redirect(w, r, "/todos/", http.StatusFound)
}

// login authenticates and sets the cookie. Bad credentials are (false, nil).
func (h *Handler) login(w http.ResponseWriter, r *http.Request, username, password string) (bool, error) {
	u, err := h.svc.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			h.logger.Debugw("bad credentials", "username", username)
			return false, nil
		}
		return false, err
	}
	tok, exp, err := h.sessions.Issue(u, h.LoginTTL)
	if err != nil {
		return false, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return true, nil
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/auth/", http.StatusFound)
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "register", web.PageData{Title: "Register"})
}

// RegisterForm handles the HTML registration form.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusUnprocessableEntity, "register", web.PageData{Title: "Register", Msg: "Invalid registration request"})
		return
	}
	f := r.PostForm
	if f.Get("password") != f.Get("password2") {
		h.render(w, http.StatusUnprocessableEntity, "register", web.PageData{Title: "Register", Msg: "Passwords do not match"})
		return
	}
	_, err := h.svc.Register(r.Context(), RegisterInput{
		Username:    f.Get("username"),
		Email:       f.Get("email"),
		FirstName:   f.Get("firstname"),
		LastName:    f.Get("lastname"),
		Password:    f.Get("password"),
		PhoneNumber: f.Get("phone_number"),
	})
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Warnw("register failed", "err", err)
		}
		h.render(w, status, "register", web.PageData{Title: "Register", Msg: apperr.PublicMessage(err)})
		return
	}
	h.render(w, http.StatusOK, "login", web.PageData{Title: "Login", Msg: "User successfully created"})
}

// Profile returns the caller's user record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	u, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		h.writeError(w, "profile failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// ChangePasswordRequest body for PUT /user/change_password.
type ChangePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	id, _ := session.FromContext(r.Context())
	if err := h.svc.ChangePassword(r.Context(), id, req.Password, req.NewPassword); err != nil {
		h.writeError(w, "change password failed", err)
		return
	}
	h.logger.Infow("password changed", "user_id", id.UserID)
	h.writeJSON(w, http.StatusOK, map[string]string{"detail": "Password changed successfully"})
}

func (h *Handler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	id, _ := session.FromContext(r.Context())
	if err := h.svc.UpdatePhone(r.Context(), id, r.PathValue("phone")); err != nil {
		h.writeError(w, "update phone failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"detail": "Phone number updated successfully"})
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data web.PageData) {
	if err := h.views.Render(w, status, page, data); err != nil {
		h.logger.Errorw("render failed", "page", page, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
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
