package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/logger"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/service"
	"github.com/sakif/foodtrack/internal/tracker"
)

const stateCookie = "oauth_state"

// AuthHandler serves registration, login, logout and the GitHub OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin → create or check an account, set the JWT cookie
//   - HandleLogout                 → clear the cookie and forget the tracker session
//   - HandleMe                     → the signed-in user's profile
//   - HandleGitHubLogin/Callback   → OAuth, only wired when GitHub is configured
type AuthHandler struct {
	auth         *service.AuthService
	sessions     *tracker.Registry
	github       auth.OAuthProvider // nil when GitHub login is disabled
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	authSvc *service.AuthService,
	sessions *tracker.Registry,
	github auth.OAuthProvider,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authSvc,
		sessions:     sessions,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// authResponse is returned by register and login. The token is included for
// API clients that send it as a Bearer header instead of using the cookie.
type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type loginRequest struct {
	Username string `json:"username"` // username or email
	Password string `json:"password"`
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username","email","password","confirmPassword"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.cookieSecure)
	writeJSON(w, http.StatusCreated, authResponse{User: result.User, Token: result.Token})
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"username": "alice", "password": "..."}; username may be an email.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.cookieSecure)
	writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

// HandleLogout clears the session cookie and drops the user's tracker state.
//
// HTTP: POST /auth/logout
//
// Logout works without a valid token too: the cookie is cleared either way.
// A JWT stays valid until it expires; without the cookie the browser simply
// stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if userID, err := h.auth.ValidateToken(token); err == nil {
			h.sessions.Drop(userID)
			h.logger.Info("user logged out", slog.String("userID", userID))
		}
	}

	auth.ClearSessionCookie(w, h.cookieSecure)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.NotFound("login provider", "github"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find or create the linked account
//  4. Set the JWT cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.NotFound("login provider", "github"))
		return
	}

	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: invalid state")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for a GitHub profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		logger.FromContext(r.Context(), h.logger).Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Find or create the account ---
	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		logger.FromContext(r.Context(), h.logger).Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// --- Step 4: Issue the session cookie ---
	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
