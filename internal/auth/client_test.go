package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourusername/portal-edge/internal/session"
)

func TestRemoteClientAuthenticateSuccess(t *testing.T) {
	var received Credential
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"a.b.c","user_id":7,"username":"alice","role":"admin","organization":"Acme"}`))
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL+"/api/v1/", time.Second)
	resp, err := client.Authenticate(context.Background(), Credential{OrganizationCode: "acme", Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if resp.Token != "a.b.c" || resp.UserID != 7 || resp.Organization != "Acme" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if received.OrganizationCode != "acme" || received.Password != "pw" {
		t.Fatalf("unexpected credential sent: %#v", received)
	}
}

func TestRemoteClientRejected(t *testing.T) {
	cases := map[string]string{
		`{"message":"invalid password"}`: "invalid password",
		`{"error":"unknown organization"}`: "unknown organization",
		`not json`:                         "ログインに失敗しました",
	}
	for body, want := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(body))
		}))

		_, err := NewRemoteClient(server.URL, time.Second).Authenticate(context.Background(), Credential{})
		server.Close()

		var rejected *RejectedError
		if !errors.As(err, &rejected) {
			t.Fatalf("expected RejectedError, got %v", err)
		}
		if rejected.Message != want || rejected.Status != http.StatusUnauthorized {
			t.Fatalf("unexpected rejection: %#v", rejected)
		}
	}
}

func TestRemoteClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewRemoteClient(server.URL, time.Second).Authenticate(context.Background(), Credential{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestRemoteClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewRemoteClient(url, time.Second).Authenticate(context.Background(), Credential{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestRemoteClientMalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":123}`))
	}))
	defer server.Close()

	_, err := NewRemoteClient(server.URL, time.Second).Authenticate(context.Background(), Credential{})
	if !errors.Is(err, session.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRemoteClientUserIDPresence(t *testing.T) {
	cases := map[string]bool{
		`{"token":"a.b.c","user_id":0,"username":"root","role":"admin","organization":"Acme"}`: true,
		`{"token":"a.b.c","username":"root","role":"admin","organization":"Acme"}`:             false,
	}
	for body, ok := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		resp, err := NewRemoteClient(server.URL, time.Second).Authenticate(context.Background(), Credential{})
		server.Close()
		if ok {
			if err != nil || resp.UserID != 0 || resp.Username != "root" {
				t.Fatalf("%s: resp=%#v err=%v", body, resp, err)
			}
			continue
		}
		if !errors.Is(err, session.ErrMalformedResponse) {
			t.Fatalf("%s: expected ErrMalformedResponse, got %v", body, err)
		}
	}
}
