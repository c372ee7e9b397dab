package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/app/accounts"
	"github.com/greencredits/greencredits/internal/domain"
)

// ─── Sessions ───────────────────────────────────────────────────────────────
// A session is an HS256 JWT in an HttpOnly cookie. Citizens and admins use
// separate cookies so one browser can hold both, as the dashboard expects.

const (
	CitizenCookie = "gc_session"
	AdminCookie   = "gc_admin_session"
)

var errNoSession = errors.New("authentication required")

// UserLookup resolves a session subject to a user.
type UserLookup interface {
	Get(ctx context.Context, id string) (domain.User, error)
}

// SessionClaims is the JWT payload.
type SessionClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	users  UserLookup
}

// NewSessions creates a session manager signing with secret.
func NewSessions(secret []byte, ttl time.Duration, users UserLookup) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: secret, ttl: ttl, users: users}
}

// SetSecure marks cookies Secure (HTTPS only).
func (s *Sessions) SetSecure(secure bool) { s.secure = secure }

// Issue signs a token for u.
func (s *Sessions) Issue(u domain.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a token and returns its claims.
func (s *Sessions) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errNoSession
	}
	return claims, nil
}

func cookieName(role domain.Role) string {
	if role == domain.RoleAdmin {
		return AdminCookie
	}
	return CitizenCookie
}

func (s *Sessions) setCookie(w http.ResponseWriter, u domain.User) error {
	token, err := s.Issue(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(u.Role),
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Sessions) clearCookie(w http.ResponseWriter, role domain.Role) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// userFrom resolves the session user for role, or errNoSession.
func (s *Sessions) userFrom(r *http.Request, role domain.Role) (domain.User, error) {
	c, err := r.Cookie(cookieName(role))
	if err != nil || c.Value == "" {
		return domain.User{}, errNoSession
	}
	claims, err := s.Parse(c.Value)
	if err != nil || claims.Role != role {
		return domain.User{}, errNoSession
	}
	u, err := s.users.Get(r.Context(), claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, errNoSession
	}
	if err != nil {
		return domain.User{}, err
	}
	if u.Role != role {
		return domain.User{}, errNoSession
	}
	return u, nil
}

type userCtxKey struct{}

// UserFromContext returns the authenticated user set by RequireCitizen or
// RequireAdmin.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(domain.User)
	return u, ok
}

func (s *Sessions) require(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := s.userFrom(r, role)
			if errors.Is(err, errNoSession) {
				writeError(w, http.StatusUnauthorized, errNoSession.Error())
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u)))
		})
	}
}

// RequireCitizen rejects requests without a citizen session.
func (s *Sessions) RequireCitizen(next http.Handler) http.Handler {
	return s.require(domain.RoleCitizen)(next)
}

// RequireAdmin rejects requests without an admin session.
func (s *Sessions) RequireAdmin(next http.Handler) http.Handler {
	return s.require(domain.RoleAdmin)(next)
}

// ─── Auth API ───────────────────────────────────────────────────────────────
//
// POST /api/signup          register a citizen, start a session
// POST /api/login           citizen login
// POST /api/logout          end the citizen session
// GET  /api/me              current citizen or null
// POST /api/admin/signup    register an admin with an organization code
// POST /api/admin/login     admin login
// POST /api/admin/logout    end the admin session
// GET  /api/admin/me        current admin or null

// AuthAPI serves registration and sessions.
type AuthAPI struct {
	Accounts *accounts.Service
	Sessions *Sessions
	log      *zap.Logger
}

type credentialsRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationCode string `json:"organizationCode"`
}

// HandleSignup registers a citizen.
func (a *AuthAPI) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	u, err := a.Accounts.Signup(r.Context(), req.Name, req.Email, req.Password)
	a.startSession(w, u, err, "user")
}

// HandleAdminSignup registers an administrator.
func (a *AuthAPI) HandleAdminSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	u, err := a.Accounts.AdminSignup(r.Context(), req.Name, req.Email, req.Password, req.OrganizationCode)
	a.startSession(w, u, err, "admin")
}

// HandleLogin starts a citizen session.
func (a *AuthAPI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, domain.RoleCitizen, "user")
}

// HandleAdminLogin starts an admin session.
func (a *AuthAPI) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, domain.RoleAdmin, "admin")
}

// HandleLogout ends the citizen session.
func (a *AuthAPI) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.clearCookie(w, domain.RoleCitizen)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleAdminLogout ends the admin session.
func (a *AuthAPI) HandleAdminLogout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.clearCookie(w, domain.RoleAdmin)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleMe returns the current citizen, or null.
func (a *AuthAPI) HandleMe(w http.ResponseWriter, r *http.Request) {
	a.me(w, r, domain.RoleCitizen, "user")
}

// HandleAdminMe returns the current admin, or null.
func (a *AuthAPI) HandleAdminMe(w http.ResponseWriter, r *http.Request) {
	a.me(w, r, domain.RoleAdmin, "admin")
}

func (a *AuthAPI) login(w http.ResponseWriter, r *http.Request, role domain.Role, key string) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	u, err := a.Accounts.Login(r.Context(), req.Email, req.Password, role)
	a.startSession(w, u, err, key)
}

func (a *AuthAPI) startSession(w http.ResponseWriter, u domain.User, err error, key string) {
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	if err := a.Sessions.setCookie(w, u); err != nil {
		writeDomainError(w, a.log, fmt.Errorf("issue session: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		key:       u,
	})
}

func (a *AuthAPI) me(w http.ResponseWriter, r *http.Request, role domain.Role, key string) {
	u, err := a.Sessions.userFrom(r, role)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, key: nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, key: u})
}
