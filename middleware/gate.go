package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	coursegate "github.com/hakanda/coursegate"
	"github.com/hakanda/coursegate/ratelimit"
	"github.com/hakanda/coursegate/session"
)

// DefaultCookieName is the session cookie name the reference deployment uses.
const DefaultCookieName = "session"

type sessionContextKey struct{}

// SessionFromContext returns the verified session claims the gate stored for
// the request, if any.
func SessionFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(sessionContextKey{}).(*session.Claims)
	return claims, ok
}

// GateConfig wires the gate's collaborators and route policy.
type GateConfig struct {
	// Limiter admits or rejects requests on rate-limited routes. Optional;
	// nil disables admission control.
	Limiter *ratelimit.Limiter
	// Sessions verifies presented session cookies. Required.
	Sessions *session.Manager

	// RouteClasses maps exact request paths to rate-limit route classes.
	// Nil gets [DefaultRouteClasses].
	RouteClasses map[string]string
	// ProtectedPrefixes are path prefixes that require a valid session.
	// Nil gets ["/course"].
	ProtectedPrefixes []string
	// LoginPath is the redirect target for unauthenticated or invalid
	// sessions. Defaults to "/login".
	LoginPath string

	CookieName   string
	CookieSecure bool

	// Metrics receives admission-rejection counts. Optional.
	Metrics *coursegate.Metrics
	// Logger records gate events (rate-limit hits, discarded credentials,
	// limiter degradation). Optional.
	Logger *slog.Logger
}

// DefaultRouteClasses maps the reference paths to their route classes.
func DefaultRouteClasses() map[string]string {
	return map[string]string{
		"/api/login":  ratelimit.ClassLogin,
		"/verify":     ratelimit.ClassVerify,
		"/api/enroll": ratelimit.ClassEnroll,
	}
}

// Gate returns the request-gate middleware. Every request runs to one of
// four terminal outcomes: admitted, rate-limit rejected, redirected
// unauthenticated, or redirected with its invalid cookie expired.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.RouteClasses == nil {
		cfg.RouteClasses = DefaultRouteClasses()
	}
	if cfg.ProtectedPrefixes == nil {
		cfg.ProtectedPrefixes = []string{"/course"}
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientIP(r)
			ctx := coursegate.WithClientIP(r.Context(), clientID)

			if class, ok := cfg.RouteClasses[r.URL.Path]; ok && cfg.Limiter != nil {
				decision, err := cfg.Limiter.Admit(ctx, class, clientID)
				switch {
				case err != nil:
					// Counter store outage weakens limiting; it must not
					// take the site down. Fail open.
					cfg.Logger.WarnContext(ctx, "rate limiter degraded, admitting",
						"route_class", class, "error", err)
				case !decision.Allowed:
					if cfg.Metrics != nil {
						cfg.Metrics.Inc(coursegate.MetricRateLimited)
					}
					cfg.Logger.InfoContext(ctx, "rate limited",
						"route_class", class, "client", clientID,
						"retry_after", decision.RetryAfter)
					writeRateLimited(w, decision.RetryAfter)
					return
				}
			}

			cookie, err := r.Cookie(cfg.CookieName)
			hasCredential := err == nil && cookie.Value != ""

			if !hasCredential && isProtected(r.URL.Path, cfg.ProtectedPrefixes) {
				http.Redirect(w, r, cfg.LoginPath, http.StatusSeeOther)
				return
			}

			if hasCredential {
				claims, err := cfg.Sessions.Verify(cookie.Value)
				if err != nil {
					// Logged as an event, not an error: expired and tampered
					// credentials are routine.
					cfg.Logger.InfoContext(ctx, "session credential rejected", "client", clientID)
					http.SetCookie(w, ExpiredSessionCookie(cfg.CookieName, cfg.CookieSecure))
					http.Redirect(w, r, cfg.LoginPath, http.StatusSeeOther)
					return
				}
				ctx = context.WithValue(ctx, sessionContextKey{}, claims)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP resolves the client identifier: the first entry of the trusted
// forwarded-address header, else the transport peer address, else the
// shared "unknown" bucket.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// SessionCookie builds the session cookie with the contract attributes:
// http-only, lax same-site, path /, max-age matching the credential's
// validity horizon.
func SessionCookie(name, credential string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie builds the deletion form of the session cookie.
func ExpiredSessionCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func isProtected(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int64((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      "Too many requests",
		"retryAfter": seconds,
	})
}
