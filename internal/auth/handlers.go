package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
)

// Accounts is the slice of the policy layer the auth handlers need.
type Accounts interface {
	Signup(ctx context.Context, actor rbac.Actor, a store.Account) (store.Account, error)
	Credentials(ctx context.Context, email string) (store.Account, error)
}

type Service struct {
	tokens   *AuthService
	accounts Accounts
	limiter  *Limiter
	log      *zap.Logger
	cost     int
}

func NewService(tokens *AuthService, accounts Accounts, limiter *Limiter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLimiter(0, nil)
	}
	return &Service{tokens: tokens, accounts: accounts, limiter: limiter, log: log, cost: 12}
}

type tokenResponse struct {
	AccessToken string        `json:"access_token"`
	Account     store.Account `json:"account"`
}

// POST /auth/signup  { "email": "...", "password": "...", "name": "...", "role": "student|instructor" }
func (s *Service) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if n := len(req.Password); n < minPasswordLen || n > maxPasswordLen {
			http.Error(w, "password must be 8 to 72 bytes", http.StatusBadRequest)
			return
		}
		role := rbac.RoleStudent
		if strings.TrimSpace(req.Role) != "" {
			role = rbac.ParseRole(req.Role)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
		if err != nil {
			s.log.Error("hash password", zap.Error(err))
			http.Error(w, "hash password", http.StatusInternalServerError)
			return
		}

		actor := rbac.ActorFromContext(r.Context())
		acct, err := s.accounts.Signup(r.Context(), actor, store.Account{
			Email:        req.Email,
			Name:         req.Name,
			Role:         role,
			PasswordHash: string(hash),
		})
		if err != nil {
			if errors.Is(err, errs.ErrDuplicate) {
				http.Error(w, "email already registered", http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), errs.HTTPStatus(err))
			return
		}
		s.log.Info("account created", zap.String("account", acct.ID), zap.String("role", string(acct.Role)))
		s.respondToken(w, http.StatusCreated, acct)
	}
}

// POST /auth/login  { "email": "...", "password": "..." }
func (s *Service) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "too many login attempts", http.StatusTooManyRequests)
			return
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		acct, err := s.accounts.Credentials(r.Context(), req.Email)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		case err != nil:
			s.log.Error("load credentials", zap.Error(err))
			http.Error(w, "login unavailable", errs.HTTPStatus(err))
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		s.respondToken(w, http.StatusOK, acct)
	}
}

// Limiter exposes the login limiter so idle clients can be swept.
func (s *Service) Limiter() *Limiter { return s.limiter }

func (s *Service) respondToken(w http.ResponseWriter, status int, acct store.Account) {
	tok, err := s.tokens.IssueJWT(acct.ID, acct.Role)
	if err != nil {
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	respondJSON(w, status, tokenResponse{AccessToken: tok, Account: acct})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
