package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bookmarket/internal/app"
	"bookmarket/internal/otp"
	"bookmarket/internal/ratelimit"
	"bookmarket/internal/relay"
	"bookmarket/internal/util"
	"bookmarket/pkg/auth"
)

const sessionCookie = "token"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Sessions       *auth.Sessions
	Hub            *relay.Hub
	AuthLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
	SecureCookies  bool
}

// Server exposes the marketplace HTTP and websocket endpoints.
type Server struct {
	app            *app.App
	sessions       *auth.Sessions
	hub            *relay.Hub
	authLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
	secureCookies  bool
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("sessions are required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 8 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		sessions:       cfg.Sessions,
		hub:            cfg.Hub,
		authLimiter:    cfg.AuthLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		secureCookies:  cfg.SecureCookies,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("bookmarket", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/profile", s.authenticated(s.handleProfile))
	s.mux.HandleFunc("/api/auth/forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("/api/auth/reset-password", s.handleResetPassword)

	// catalog
	s.mux.HandleFunc("/api/books", s.handleBooks)
	s.mux.HandleFunc("/api/books/", s.handleBookByID)
	s.mux.HandleFunc("/api/books/search", s.handleSearchBooks)
	s.mux.HandleFunc("/api/books/genres", s.handleGenres)
	s.mux.Handle("/api/books/mine", s.authenticated(s.handleMyListings))

	// conversations and messages
	s.mux.Handle("/api/conversations", s.authenticated(s.handleConversations))
	s.mux.Handle("/api/conversations/", s.authenticated(s.handleConversationByID))

	// orders
	s.mux.Handle("/api/orders", s.authenticated(s.handleOrders))

	// wishlist
	s.mux.Handle("/api/wishlist", s.authenticated(s.handleWishlist))
	s.mux.Handle("/api/wishlist/", s.authenticated(s.handleWishlistByBook))

	// admin
	s.mux.Handle("/api/admin/books", s.adminOnly(s.handleAdminBooks))
	s.mux.Handle("/api/admin/books/", s.adminOnly(s.handleAdminBookByID))
	s.mux.Handle("/api/admin/orders", s.adminOnly(s.handleAdminOrders))
	s.mux.Handle("/api/admin/orders/", s.adminOnly(s.handleAdminOrderByID))
	s.mux.Handle("/api/admin/analytics", s.adminOnly(s.handleAdminAnalytics))

	// realtime
	s.mux.Handle("/ws", s.authenticated(s.handleWS))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionHandler func(http.ResponseWriter, *http.Request, auth.SessionClaims)

func (s *Server) authenticated(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.requestClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, claims)
	})
}

func (s *Server) adminOnly(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.requestClaims(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.Admin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r, claims)
	})
}

func (s *Server) requestClaims(r *http.Request) (auth.SessionClaims, bool) {
	token, ok := requestToken(r)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, err := s.sessions.Verify(token)
	if err != nil {
		return auth.SessionClaims{}, false
	}
	return claims, true
}

// requestToken pulls the session token from the Authorization header, the
// session cookie, or (for websocket upgrades) the token query parameter.
func requestToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, true
		}
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, true
	}
	return "", false
}

// allowAuthAttempt applies the per-IP limit on credential endpoints.
func (s *Server) allowAuthAttempt(r *http.Request, action string) bool {
	if s.authLimiter == nil {
		return true
	}
	ip := util.ClientIP(r, s.trustedProxies)
	return s.authLimiter.Allow(action + ":" + ip)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Message:   msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeAppError maps application sentinels onto HTTP statuses. Unknown
// errors become opaque 500s.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrConversationNotFound),
		errors.Is(err, app.ErrOrderNotFound),
		errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotParticipant),
		errors.Is(err, app.ErrNotBookOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrBookUnavailable),
		errors.Is(err, app.ErrBookAlreadySold),
		errors.Is(err, app.ErrWishlistDuplicate),
		errors.Is(err, app.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrOwnListingChat),
		errors.Is(err, app.ErrOwnBookOrder),
		errors.Is(err, app.ErrInvalidCondition),
		errors.Is(err, app.ErrInvalidBookInput),
		errors.Is(err, app.ErrInvalidBookPrice),
		errors.Is(err, app.ErrCoverImageTooBig),
		errors.Is(err, app.ErrCoverImageInvalid),
		errors.Is(err, app.ErrEmptyMessage),
		errors.Is(err, app.ErrMessageTooLong),
		errors.Is(err, app.ErrUsernameRequired),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, otp.ErrEmailRequired),
		errors.Is(err, otp.ErrEmailInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, otp.ErrSendRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, otp.ErrChallengeInvalid),
		errors.Is(err, otp.ErrCodeInvalid),
		errors.Is(err, otp.ErrCodeRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
