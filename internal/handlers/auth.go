package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/types"
)

// AuthHandler provides signup, signin, signout and identity endpoints.
type AuthHandler struct {
	authService  *services.AuthService
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler constructs an AuthHandler. secureCookie marks the session
// cookie Secure and should be false only in local development.
func NewAuthHandler(authService *services.AuthService, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, requireSession func(http.Handler) http.Handler) {
	r.Post("/signup", handler.SignUp)
	r.Post("/signin", handler.SignIn)
	r.Post("/signout", handler.SignOut)
	r.With(requireSession).Get("/me", handler.Me)
}

type SignUpRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type SignInRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type UserResponse struct {
	User types.UserSummary `json:"user"`
}

// SignUp creates an account and starts a session.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.authService.SignUp(r.Context(), services.SignUpInput{
		Name:     valueOr(req.Name),
		Email:    valueOr(req.Email),
		Password: valueOr(req.Password),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	setSessionCookie(w, session.Token, h.secureCookie)
	writeSuccess(w, http.StatusCreated, UserResponse{User: session.User}, "Account created")
}

// SignIn verifies credentials and starts a session.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.authService.SignIn(r.Context(), services.SignInInput{
		Email:    valueOr(req.Email),
		Password: valueOr(req.Password),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	setSessionCookie(w, session.Token, h.secureCookie)
	writeSuccess(w, http.StatusOK, UserResponse{User: session.User}, "Signed in")
}

// SignOut clears the session cookie. Tokens are stateless, so nothing is revoked.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, h.secureCookie)
	writeSuccess(w, http.StatusOK, nil, "Signed out")
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, UserResponse{User: user}, "")
}
