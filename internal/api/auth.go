package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/interviewprep/internal/auth"
	"github.com/go-chi/chi/v5"
)

// Sign-up and sign-in response messages.
const (
	msgUserExists   = "User already exists, please sign in"
	msgUserCreated  = "User created successfully"
	msgSignUpFailed = "Error, failed to create an account"
	msgUserNotFound = "User not found"
	msgBadPassword  = "Invalid email or password"
	msgSignInFailed = "Error signing in"
	msgSignedIn     = "Signed in successfully"
	msgSignedOut    = "Signed out"
	msgBadRequest   = "Invalid request body"
	msgUnauthorized = "Unauthorized"
)

// UserSockets closes a user's live call sockets.
type UserSockets interface {
	CloseUser(userID string)
}

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	svc     *auth.Service
	sockets UserSockets
}

// NewAuthHandler creates an auth handler. sockets may be nil.
func NewAuthHandler(svc *auth.Service, sockets UserSockets) *AuthHandler {
	return &AuthHandler{svc: svc, sockets: sockets}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-up", h.SignUp)
		r.Post("/sign-in", h.SignIn)
		r.Post("/sign-out", h.SignOut)
		r.Get("/me", h.Me)
	})
}

// SignUp registers a new account.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var params auth.SignUpParams
	if err := decodeJSON(w, r, &params); err != nil {
		Respond(w, http.StatusBadRequest, false, msgBadRequest)
		return
	}

	user, err := h.svc.SignUp(r.Context(), params)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			Respond(w, http.StatusBadRequest, false, verr.Error())
		case errors.Is(err, auth.ErrDuplicateAccount):
			Respond(w, http.StatusConflict, false, msgUserExists)
		default:
			slog.Error("Error creating a user", "error", err)
			Respond(w, http.StatusInternalServerError, false, msgSignUpFailed)
		}
		return
	}

	slog.Info("User signed up", "user_id", user.ID)
	Respond(w, http.StatusCreated, true, msgUserCreated)
}

// SignIn verifies credentials and sets the session cookie.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var params auth.SignInParams
	if err := decodeJSON(w, r, &params); err != nil {
		Respond(w, http.StatusBadRequest, false, msgBadRequest)
		return
	}

	issued, err := h.svc.SignIn(r.Context(), params)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			Respond(w, http.StatusBadRequest, false, verr.Error())
		case errors.Is(err, auth.ErrUserNotFound):
			Respond(w, http.StatusNotFound, false, msgUserNotFound)
		case errors.Is(err, auth.ErrInvalidCredentials):
			Respond(w, http.StatusUnauthorized, false, msgBadPassword)
		default:
			slog.Error("Error signing in", "error", err)
			Respond(w, http.StatusInternalServerError, false, msgSignInFailed)
		}
		return
	}

	h.svc.SetSessionCookie(w, issued)
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msgSignedIn,
		"user":    issued.User,
	})
}

// SignOut revokes the session, expires the cookie and closes the user's
// call sockets.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := h.svc.SignOut(r.Context(), token); err != nil {
			slog.Error("Failed to revoke session", "error", err)
		}
	}
	h.svc.ClearSessionCookie(w)

	if user := auth.UserFromContext(r.Context()); user != nil && h.sockets != nil {
		h.sockets.CloseUser(user.ID)
	}
	Respond(w, http.StatusOK, true, msgSignedOut)
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Respond(w, http.StatusUnauthorized, false, msgUnauthorized)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}
