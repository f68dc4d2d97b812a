package e2eechat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer is an in-memory message server. The bearer token is taken as
// the caller's user id.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	users    []string
	keys     map[string]string
	backups  map[string]*string
	messages []map[string]interface{}
	clock    time.Time
	// ignoreSince makes get-messages return the whole conversation.
	ignoreSince bool
}

func newFakeServer(t *testing.T, users ...string) *fakeServer {
	t.Helper()
	s := &fakeServer{
		users:   users,
		keys:    make(map[string]string),
		backups: make(map[string]*string),
		clock:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if user == "" || user == r.Header.Get("Authorization") {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "Unauthorized")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Path {
	case "/register-key":
		var body struct {
			PublicKey           string `json:"publicKey"`
			EncryptedPrivateKey string `json:"encryptedPrivateKey"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.PublicKey == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "publicKey required"})
			return
		}
		s.keys[user] = body.PublicKey
		if body.EncryptedPrivateKey == "" {
			s.backups[user] = nil
		} else {
			enc := body.EncryptedPrivateKey
			s.backups[user] = &enc
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case "/get-users":
		ids := append([]string(nil), s.users...)
		sort.Strings(ids)
		out := make([]map[string]interface{}, 0, len(ids))
		for _, id := range ids {
			var pub interface{}
			if k, ok := s.keys[id]; ok {
				pub = k
			}
			out = append(out, map[string]interface{}{
				"user_id":    id,
				"email":      id + "@example.com",
				"public_key": pub,
			})
		}
		writeJSON(w, http.StatusOK, out)

	case "/send-message":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, f := range []string{"recipientId", "ciphertext", "nonce", "ephemeralPublicKey"} {
			if body[f] == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing fields"})
				return
			}
		}
		s.clock = s.clock.Add(time.Second)
		s.messages = append(s.messages, map[string]interface{}{
			"id":                   len(s.messages) + 1,
			"sender_id":            user,
			"recipient_id":         body["recipientId"],
			"ciphertext":           body["ciphertext"],
			"nonce":                body["nonce"],
			"ephemeral_public_key": body["ephemeralPublicKey"],
			"created_at":           s.clock.Format(time.RFC3339Nano),
		})
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case "/get-messages":
		with := r.URL.Query().Get("with")
		if with == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing with"})
			return
		}
		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			since, _ = time.Parse(time.RFC3339Nano, v)
		}
		out := []map[string]interface{}{}
		for _, m := range s.messages {
			from, to := m["sender_id"], m["recipient_id"]
			if !(from == user && to == with) && !(from == with && to == user) {
				continue
			}
			created, _ := time.Parse(time.RFC3339Nano, m["created_at"].(string))
			if !s.ignoreSince && created.Before(since) {
				continue
			}
			out = append(out, m)
		}
		writeJSON(w, http.StatusOK, out)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *fakeServer) backupOf(user string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backups[user]
}

func (s *fakeServer) keyOf(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[user]
}

// tamperLast flips a byte of the most recent message's ciphertext.
func (s *fakeServer) tamperLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.messages[len(s.messages)-1]
	ct := []byte(m["ciphertext"].(string))
	if ct[0] == 'A' {
		ct[0] = 'B'
	} else {
		ct[0] = 'A'
	}
	m["ciphertext"] = string(ct)
}
