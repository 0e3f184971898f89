package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/priyav/docshare/internal/auth"
	"github.com/priyav/docshare/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Authenticator issues session tokens for valid credentials. Satisfied
// by auth.Authenticator.
type Authenticator interface {
	Login(username, password string) (string, models.Role, time.Time, error)
}

// LoginHandler handles credential exchange for a session token.
type LoginHandler struct {
	authn Authenticator
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(authn Authenticator) *LoginHandler {
	return &LoginHandler{authn: authn}
}

// LoginResponse is the token payload returned on successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	Role        models.Role `json:"role"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// ServeHTTP handles POST /token with form fields username and password.
func (lh *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "login",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	token, role, expires, err := lh.authn.Login(username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// One message for unknown user and wrong password alike.
			http.Error(w, "incorrect username or password", http.StatusUnauthorized)
			return
		}
		span.RecordError(err)
		log.Printf("Login failed for %q: %v", username, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.String("username", username),
		attribute.String("role", string(role)),
	)
	log.Printf("User %s logged in (role %s)", username, role)

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        role,
		ExpiresAt:   expires,
	})
}

// MeHandler reports the identity behind a session token.
type MeHandler struct{}

// ServeHTTP handles GET /me for any authenticated user.
func (mh *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFrom(r.Context())
	if identity == nil {
		http.Error(w, "could not validate credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
