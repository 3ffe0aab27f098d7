// Package auth is the credential collaborator of the relay:
// it issues tokens for signup/signin and answers display-name
// lookups for chat attribution. Everything lives in memory.
package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrEmailTaken     = errors.New("email is already registered")
	ErrWeakPassword   = errors.New("password is too short")
	ErrNoEmail        = errors.New("email is required")
	ErrBadEmail       = errors.New("malformed email")
)

type User struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type account struct {
	User
	hash []byte
}

type session struct {
	userId  string
	expires time.Time
}

// Service keeps registered accounts and live sessions.
type Service struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by email
	sessions map[string]*session // keyed by token
	byId     map[string]*account

	minPasswordLen int
	tokenTTL       time.Duration
}

func New(minPasswordLen int, tokenTTL time.Duration) *Service {
	if minPasswordLen <= 0 {
		minPasswordLen = 6
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		accounts:       make(map[string]*account, 10),
		sessions:       make(map[string]*session, 10),
		byId:           make(map[string]*account, 10),
		minPasswordLen: minPasswordLen,
		tokenTTL:       tokenTTL,
	}
}

// Signup registers a new account and opens a session right away.
func (s *Service) Signup(username, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil, ErrNoEmail
	}
	at := strings.IndexByte(email, '@')
	if at < 1 || at == len(email)-1 {
		return "", nil, ErrBadEmail
	}
	if len(password) < s.minPasswordLen {
		return "", nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	if username == "" {
		username = email[:at]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[email]; taken {
		return "", nil, ErrEmailTaken
	}
	acc := &account{
		User: User{
			Id:       uuid.Must(uuid.NewV4()).String(),
			Username: username,
			Email:    email,
		},
		hash: hash,
	}
	s.accounts[email] = acc
	s.byId[acc.Id] = acc
	token := s.openSessionLocked(acc.Id)
	u := acc.User
	return token, &u, nil
}

// Signin verifies the credentials and opens a new session.
func (s *Service) Signin(email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	acc, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		// burn some cycles anyway to keep timing flat
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return "", nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return "", nil, ErrBadCredentials
	}

	s.mu.Lock()
	token := s.openSessionLocked(acc.Id)
	u := acc.User
	s.mu.Unlock()
	return token, &u, nil
}

// Verify resolves a session token to its user.
// Expired sessions are dropped on access.
func (s *Service) Verify(token string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	if time.Now().After(ses.expires) {
		delete(s.sessions, token)
		return nil, false
	}
	acc, ok := s.byId[ses.userId]
	if !ok {
		return nil, false
	}
	u := acc.User
	return &u, true
}

func (s *Service) openSessionLocked(userId string) string {
	token := uuid.Must(uuid.NewV4()).String()
	s.sessions[token] = &session{userId: userId, expires: time.Now().Add(s.tokenTTL)}
	return token
}
