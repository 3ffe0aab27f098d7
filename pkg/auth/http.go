package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/roomcast/roomcast/pkg/logger"
)

type credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router exposes the credential API:
//
//	POST /api/auth/signup {username?, email, password}
//	POST /api/auth/signin {email, password}
//
// Both return {token, user} or {error}.
func (s *Service) Router(log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/auth/signup", func(w http.ResponseWriter, rq *http.Request) {
		var c credentials
		if err := json.NewDecoder(rq.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request")
			return
		}
		token, user, err := s.Signup(c.Username, c.Email, c.Password)
		if err != nil {
			log.Debug().Err(err).Str("email", c.Email).Msg("signup rejected")
			writeError(w, statusOf(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{Token: token, User: user})
	})

	r.Post("/api/auth/signin", func(w http.ResponseWriter, rq *http.Request) {
		var c credentials
		if err := json.NewDecoder(rq.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request")
			return
		}
		token, user, err := s.Signin(c.Email, c.Password)
		if err != nil {
			log.Debug().Err(err).Str("email", c.Email).Msg("signin rejected")
			writeError(w, statusOf(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
	})

	return r
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrNoEmail), errors.Is(err, ErrBadEmail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
