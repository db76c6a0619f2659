// Package httpapi exposes the authentication workflows over HTTP: login
// (magic-link request), verify, enroll, logout, and the payment-completed
// webhook. Responses keep the reference contract: message/type JSON bodies,
// redirects for every token rejection, and cookie handling delegated to the
// middleware package's helpers.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	coursegate "github.com/hakanda/coursegate"
	"github.com/hakanda/coursegate/middleware"
)

// Config carries the handler's route and cookie settings.
type Config struct {
	CookieName   string
	CookieSecure bool
	// LoginPath, CoursePath, and HomePath are redirect targets.
	LoginPath  string
	CoursePath string
	HomePath   string
	// WebhookSecret guards the payment webhook. Empty disables the route.
	WebhookSecret string
}

// Handler serves the authentication routes.
type Handler struct {
	engine *coursegate.Engine
	cfg    Config
	logger *slog.Logger
}

// New builds a Handler. Zero-value paths get the reference defaults.
func New(engine *coursegate.Engine, cfg Config, logger *slog.Logger) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = middleware.DefaultCookieName
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.CoursePath == "" {
		cfg.CoursePath = "/course"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, cfg: cfg, logger: logger}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("GET /verify", h.verify)
	mux.HandleFunc("POST /api/enroll", h.enroll)
	mux.HandleFunc("GET /logout", h.logout)
	mux.HandleFunc("GET /course", h.course)
	if h.cfg.WebhookSecret != "" {
		mux.HandleFunc("POST /api/payment/webhook", h.paymentWebhook)
	}
}

type authRequest struct {
	Email string `json:"email"`
	// Website is the honeypot field: humans never see it, bots fill it.
	Website string `json:"website"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Please enter a valid email address.", "error")
		return
	}
	if req.Website != "" {
		h.logger.WarnContext(r.Context(), "honeypot triggered on login", "email", req.Email)
		writeMessage(w, http.StatusBadRequest, "Bot detected. Access denied.", "error")
		return
	}

	err := h.engine.RequestMagicLink(r.Context(), req.Email)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Magic link sent to your email.", "success")
	case errors.Is(err, coursegate.ErrInvalidEmail):
		writeMessage(w, http.StatusBadRequest, "Please enter a valid email address.", "error")
	case errors.Is(err, coursegate.ErrIdentityNotFound):
		writeMessage(w, http.StatusNotFound, "Email not found. Please enroll first.", "error")
	case errors.Is(err, coursegate.ErrEnrollmentRequired):
		writeMessage(w, http.StatusForbidden, "You need to enroll before logging in.", "error")
	default:
		h.logger.ErrorContext(r.Context(), "magic link request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error generating magic link.", "error")
	}
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, h.cfg.LoginPath, http.StatusSeeOther)
		return
	}

	result, err := h.engine.VerifyMagicLink(r.Context(), token)
	if err != nil {
		// Not-found, expired, unpaid, and upstream failures all look the
		// same from outside; the audit stream keeps them apart.
		if errors.Is(err, coursegate.ErrStoreUnavailable) {
			h.logger.ErrorContext(r.Context(), "verification unavailable", "error", err)
		}
		http.Redirect(w, r, h.cfg.LoginPath, http.StatusSeeOther)
		return
	}

	http.SetCookie(w, middleware.SessionCookie(
		h.cfg.CookieName, result.Session, h.engine.Sessions().TTL(), h.cfg.CookieSecure))
	http.Redirect(w, r, h.cfg.CoursePath, http.StatusSeeOther)
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Please enter a valid email address.", "error")
		return
	}
	if req.Website != "" {
		h.logger.WarnContext(r.Context(), "honeypot triggered on enroll", "email", req.Email)
		writeMessage(w, http.StatusBadRequest, "Bot detected. Access denied.", "error")
		return
	}

	_, err := h.engine.Enroll(r.Context(), req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"message":           "You were successfully enrolled. Proceeding to payment.",
			"type":              "success",
			"redirectToPayment": true,
		})
	case errors.Is(err, coursegate.ErrInvalidEmail):
		writeMessage(w, http.StatusBadRequest, "Please enter a valid email address.", "error")
	case errors.Is(err, coursegate.ErrAlreadyEnrolled):
		writeJSON(w, http.StatusOK, map[string]any{
			"message":         "You are already enrolled. Please log in.",
			"type":            "error",
			"redirectToLogin": true,
		})
	default:
		h.logger.ErrorContext(r.Context(), "enrollment failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error updating user status", "error")
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	// Purely client-side: the credential stays cryptographically valid
	// until its natural expiry.
	http.SetCookie(w, middleware.ExpiredSessionCookie(h.cfg.CookieName, h.cfg.CookieSecure))
	http.Redirect(w, r, h.cfg.HomePath, http.StatusSeeOther)
}

type paymentEvent struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// paymentWebhook applies checkout-completed events. The payment provider is
// an external event source; this route only authenticates the shared secret
// and flips the payment flag.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.WebhookSecret)) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Webhook Error"})
		return
	}

	var event paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Webhook Error"})
		return
	}

	if event.Type == "checkout.session.completed" {
		if err := h.engine.CompletePayment(r.Context(), event.Email); err != nil {
			// Acknowledge anyway: the provider retries on non-2xx, and a
			// retried completion would re-issue and invalidate a link the
			// user may already hold.
			h.logger.ErrorContext(r.Context(), "payment completion failed",
				"email", event.Email, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

// course is the protected-content stub. The gate has already verified the
// session; the claims arrive through the request context.
func (h *Handler) course(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, h.cfg.LoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email": claims.Email,
	})
}

func writeMessage(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, map[string]any{
		"message": message,
		"type":    kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
