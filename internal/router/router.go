package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/admin"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/task"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/web"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware tags each request with a KSUID, reusing an incoming X-Request-ID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if rid == "" || len(rid) > 64 {
				rid = utilities.NewKSUID()
				r.Header.Set("X-Request-ID", rid)
			}
			w.Header().Set("X-Request-ID", rid)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", r.Header.Get("X-Request-ID"),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// no camera, microphone or geolocation
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// same-origin unless an outer layer already set a policy
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				// 30 days
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionGuard resolves the caller's token and stores the identity in the
// request context. onFail answers requests without a valid session.
func sessionGuard(sessions *session.Service, onFail http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.Resolve(session.TokenFromRequest(r))
			if err != nil {
				onFail(w, r)
				return
			}
			next(w, r.WithContext(session.NewContext(r.Context(), id)))
		}
	}
}

func unauthorizedJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid authentication credentials"})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth/", http.StatusFound)
}

// RegisterRoutes builds the services and mounts every endpoint on a
// standard library http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, db *sqlx.DB, cfg config.Config) (http.Handler, error) {
	sessions, err := session.NewService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	sessions.TTL = cfg.TokenTTL
	views, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	userHandler := user.NewHandler(user.NewUserService(db, user.BcryptHasher{Cost: cfg.BcryptCost}), sessions, views, logger)
	if cfg.LoginTokenTTL > 0 {
		userHandler.LoginTTL = cfg.LoginTokenTTL
	}
	userHandler.SecureCookie = cfg.CookieSecure
	userHandler.AllowAdminSignup = cfg.AdminSignup
	taskHandler := task.NewHandler(task.NewService(db), views, logger)
	adminHandler := admin.NewHandler(admin.NewService(db), logger)

	api := sessionGuard(sessions, unauthorizedJSON)
	page := sessionGuard(sessions, redirectToLogin)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/todos/", http.StatusFound)
	})

	// auth
	mux.HandleFunc("GET /auth/{$}", userHandler.LoginPage)
	mux.HandleFunc("POST /auth/{$}", userHandler.AuthRoot)
	mux.HandleFunc("POST /auth/token", userHandler.Token)
	mux.HandleFunc("GET /auth/register", userHandler.RegisterPage)
	mux.HandleFunc("POST /auth/register", userHandler.RegisterForm)
	mux.HandleFunc("GET /auth/logout", userHandler.Logout)

	// todos (HTML)
	mux.HandleFunc("GET /todos", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/todos/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("GET /todos/{$}", page(taskHandler.List))
	mux.HandleFunc("GET /todos/add-todo", page(taskHandler.AddPage))
	mux.HandleFunc("POST /todos/add-todo", page(taskHandler.Add))
	mux.HandleFunc("GET /todos/edit-todo/{id}", page(taskHandler.EditPage))
	mux.HandleFunc("POST /todos/edit-todo/{id}", page(taskHandler.Edit))
	mux.HandleFunc("GET /todos/delete/{id}", page(taskHandler.Delete))
	mux.HandleFunc("GET /todos/complete/{id}", page(taskHandler.Complete))

	// admin
	mux.HandleFunc("GET /admin/todo", api(adminHandler.ListTodos))
	mux.HandleFunc("DELETE /admin/todo/{id}", api(adminHandler.DeleteTodo))

	// user
	mux.HandleFunc("GET /user/{$}", api(userHandler.Profile))
	mux.HandleFunc("PUT /user/change_password", api(userHandler.ChangePassword))
	mux.HandleFunc("PUT /user/phonenumber/{phone}", api(userHandler.UpdatePhone))

	// wrap with security headers, logging, then request id outermost
	handler := RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
	return handler, nil
}
