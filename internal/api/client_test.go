package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(n int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:  n,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
		RetryableOn: DefaultRetryableOn,
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", Retry: fastRetry(2)})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); !errors.Is(err, ErrMissingToken) {
		t.Errorf("NewClient() without token error = %v, want ErrMissingToken", err)
	}
	if _, err := NewClient(Config{Token: "t", BaseURL: "not a url"}); err == nil {
		t.Error("NewClient() accepted an invalid base URL")
	}

	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, "[]")
	}))
	defer srv.Close()

	c, err := NewClient(Config{Token: "t", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.GetUsers(context.Background()); err != nil {
		t.Fatalf("GetUsers() error = %v", err)
	}
	if path != "/get-users" {
		t.Errorf("request path = %q, trailing slash not trimmed", path)
	}
}

func TestClient_RegisterKey(t *testing.T) {
	t.Parallel()

	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/register-key" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	err := c.RegisterKey(context.Background(), RegisterKeyRequest{PublicKey: "pk"})
	if err != nil {
		t.Fatalf("RegisterKey() error = %v", err)
	}
	if got["publicKey"] != "pk" {
		t.Errorf("publicKey = %v", got["publicKey"])
	}
	if _, ok := got["encryptedPrivateKey"]; ok {
		t.Error("empty encryptedPrivateKey should be omitted")
	}
}

func TestClient_RegisterKey_RequiresPublicKey(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	if err := c.RegisterKey(context.Background(), RegisterKeyRequest{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("RegisterKey() error = %v, want ErrBadRequest", err)
	}
	if calls.Load() != 0 {
		t.Error("invalid request reached the server")
	}
}

func TestClient_GetUsers(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/get-users" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"user_id":"u1","email":"a@example.com","public_key":"pk1"},
			{"user_id":"u2","email":"b@example.com","public_key":null}
		]`)
	})

	users, err := c.GetUsers(context.Background())
	if err != nil {
		t.Fatalf("GetUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
	if users[0].UserID != "u1" || users[0].Email != "a@example.com" || users[0].PublicKey != "pk1" {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[1].PublicKey != "" {
		t.Errorf("users[1].PublicKey = %q, want empty", users[1].PublicKey)
	}
}

func TestClient_SendMessage(t *testing.T) {
	t.Parallel()

	var got SendMessageRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	req := SendMessageRequest{RecipientID: "u2", Ciphertext: "c", Nonce: "n", EphemeralPublicKey: "e"}
	if err := c.SendMessage(context.Background(), req); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got != req {
		t.Errorf("server received %+v, want %+v", got, req)
	}

	for _, bad := range []SendMessageRequest{
		{Ciphertext: "c", Nonce: "n", EphemeralPublicKey: "e"},
		{RecipientID: "u2", Nonce: "n", EphemeralPublicKey: "e"},
		{RecipientID: "u2", Ciphertext: "c", EphemeralPublicKey: "e"},
		{RecipientID: "u2", Ciphertext: "c", Nonce: "n"},
	} {
		if err := c.SendMessage(context.Background(), bad); !errors.Is(err, ErrBadRequest) {
			t.Errorf("SendMessage(%+v) error = %v, want ErrBadRequest", bad, err)
		}
	}
}

func TestClient_GetMessages(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("with") != "u2" {
			t.Errorf("with = %q", q.Get("with"))
		}
		if q.Get("since") != "2024-05-01T12:00:00Z" {
			t.Errorf("since = %q", q.Get("since"))
		}
		_, _ = io.WriteString(w, `[
			{"id":7,"sender_id":"u2","recipient_id":"u1","ciphertext":"c","nonce":"n",
			 "ephemeral_public_key":"e","created_at":"2024-05-01T12:00:01Z"},
			{"id":"a-b","sender_id":"u1","recipient_id":"u2","ciphertext":"c2","nonce":"n2",
			 "ephemeral_public_key":"e2","created_at":"2024-05-01T12:00:02.5Z"}
		]`)
	})

	rows, err := c.GetMessages(context.Background(), "u2", since)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].ID != "7" || rows[1].ID != "a-b" {
		t.Errorf("ids = %q, %q", rows[0].ID, rows[1].ID)
	}
	if rows[0].EphemeralPublicKey != "e" || !rows[1].CreatedAt.After(rows[0].CreatedAt) {
		t.Errorf("rows = %+v", rows)
	}

	if _, err := c.GetMessages(context.Background(), "", time.Time{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("GetMessages(\"\") error = %v, want ErrBadRequest", err)
	}
}

func TestClient_GetMessages_NoSince(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("since") {
			t.Error("since sent for zero time")
		}
		_, _ = io.WriteString(w, `[]`)
	})

	rows, err := c.GetMessages(context.Background(), "u2", time.Time{})
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"plain unauthorized", 401, "Unauthorized", ErrUnauthorized, "Unauthorized"},
		{"json bad request", 400, `{"error":"Missing fields"}`, ErrBadRequest, "Missing fields"},
		{"not found", 404, "", ErrNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.GetUsers(context.Background())
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v", err, tt.sentinel)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.message || apiErr.Endpoint != EndpointGetUsers {
				t.Errorf("APIError = %+v", apiErr)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, client errors must not be retried", calls.Load())
			}
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	if _, err := c.GetUsers(context.Background()); err != nil {
		t.Fatalf("GetUsers() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_RetriesResendBody(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"publicKey":"pk"`) {
			t.Errorf("attempt %d body = %q", calls.Load()+1, body)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	if err := c.RegisterKey(context.Background(), RegisterKeyRequest{PublicKey: "pk"}); err != nil {
		t.Fatalf("RegisterKey() error = %v", err)
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"db down"}`)
	})

	_, err := c.GetUsers(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 || apiErr.Message != "db down" {
		t.Fatalf("error = %v, want APIError 500", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_SendMessageNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := SendMessageRequest{RecipientID: "u2", Ciphertext: "c", Nonce: "n", EphemeralPublicKey: "e"}
	err := c.SendMessage(context.Background(), req)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("SendMessage() error = %v, want APIError 503", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	down, err := NewClient(Config{BaseURL: url, Token: "tok", Retry: fastRetry(2)})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	var netErr *NetworkError
	if err := down.SendMessage(context.Background(), req); !errors.As(err, &netErr) || netErr.Attempt != 1 {
		t.Errorf("SendMessage() error = %v, want NetworkError on attempt 1", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Token: "tok", Retry: fastRetry(1)})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = c.GetUsers(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if netErr.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", netErr.Attempt)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetUsers(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestClient_SetToken(t *testing.T) {
	t.Parallel()

	var auth atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})

	c.SetToken("fresh")
	if _, err := c.GetUsers(context.Background()); err != nil {
		t.Fatalf("GetUsers() error = %v", err)
	}
	if got := auth.Load(); got != "Bearer fresh" {
		t.Errorf("Authorization = %v, want Bearer fresh", got)
	}
}

func TestClient_RateLimit(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", Retry: NoRetry(), RateLimit: 20})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.GetUsers(context.Background()); err != nil {
			t.Fatalf("GetUsers() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 requests at 20/s took %v, want >= 80ms", elapsed)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetUsers(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ID
	}{
		{`42`, "42"},
		{`"42"`, "42"},
		{`"3f2a-11"`, "3f2a-11"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id ID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Errorf("Unmarshal(%s) error = %v", tt.in, err)
			continue
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, id, tt.want)
		}
	}

	var id ID
	if err := json.Unmarshal([]byte(`true`), &id); err == nil {
		t.Error("Unmarshal(true) should fail")
	}
}
