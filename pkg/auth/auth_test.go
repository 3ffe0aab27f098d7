package auth

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/roomcast/roomcast/pkg/logger"
)

func TestSignupSignin(t *testing.T) {
	s := New(6, time.Hour)

	token, user, err := s.Signup("alice", "Alice@Example.com", "secret1")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email must be normalized, got %v", user.Email)
	}
	if got, ok := s.Verify(token); !ok || got.Username != "alice" {
		t.Errorf("the signup token must verify, got (%v, %v)", got, ok)
	}

	token2, _, err := s.Signin("alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("signin failed: %v", err)
	}
	if token2 == token {
		t.Error("every signin must open a fresh session")
	}

	if _, _, err = s.Signin("alice@example.com", "wrong-pass"); err != ErrBadCredentials {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
	if _, _, err = s.Signin("nobody@example.com", "secret1"); err != ErrBadCredentials {
		t.Errorf("expected ErrBadCredentials for an unknown email, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	s := New(6, time.Hour)
	if _, _, err := s.Signup("", "", "secret1"); err != ErrNoEmail {
		t.Errorf("expected ErrNoEmail, got %v", err)
	}
	for _, email := range []string{"no-at-sign", "@b.c", "a@"} {
		if _, _, err := s.Signup("", email, "secret1"); err != ErrBadEmail {
			t.Errorf("expected ErrBadEmail for %q, got %v", email, err)
		}
	}
	if _, _, err := s.Signup("", "a@b.c", "123"); err != ErrWeakPassword {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if _, _, err := s.Signup("", "a@b.c", "secret1"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, _, err := s.Signup("", "a@b.c", "secret2"); err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestDefaultUsername(t *testing.T) {
	s := New(6, time.Hour)
	_, user, err := s.Signup("", "bob@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Username != "bob" {
		t.Errorf("expected the email local part, got %v", user.Username)
	}
}

func TestTokenExpiry(t *testing.T) {
	s := New(6, time.Nanosecond)
	token, _, err := s.Signup("", "c@d.e", "secret1")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, ok := s.Verify(token); ok {
		t.Error("an expired token must not verify")
	}
	if _, ok := s.Verify("no-such-token"); ok {
		t.Error("an unknown token must not verify")
	}
}

func TestHTTPRoundTrip(t *testing.T) {
	s := New(6, time.Hour)
	srv := httptest.NewServer(s.Router(logger.Default()))
	defer srv.Close()

	body, _ := json.Marshal(credentials{Username: "alice", Email: "a@b.c", Password: "secret1"})
	resp, err := srv.Client().Post(srv.URL+"/api/auth/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %v", resp.StatusCode)
	}
	var ok tokenResponse
	if err = json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if ok.Token == "" || ok.User == nil || ok.User.Username != "alice" {
		t.Errorf("incomplete response: %+v", ok)
	}

	body, _ = json.Marshal(credentials{Email: "a@b.c", Password: "wrong-pass"})
	resp2, err := srv.Client().Post(srv.URL+"/api/auth/signin", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signin request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", resp2.StatusCode)
	}
	var bad errorResponse
	if err = json.NewDecoder(resp2.Body).Decode(&bad); err != nil {
		t.Fatalf("malformed error response: %v", err)
	}
	if bad.Error == "" {
		t.Error("the error response must carry a message")
	}
}
