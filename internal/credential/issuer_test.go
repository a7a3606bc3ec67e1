package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"Bondr/internal/address"
)

func TestLocalIssuesUniqueIDs(t *testing.T) {
	l := NewLocal()
	recipient := address.Key{7}

	a, err := l.Issue(context.Background(), recipient, "Verified")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, _ := l.Issue(context.Background(), recipient, "Professional")

	if a == b {
		t.Error("ids repeat")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("id is not a uuid: %v", err)
	}

	issued := l.Issued()
	if len(issued) != 2 || issued[1].Tier != "Professional" || issued[0].Recipient != recipient {
		t.Errorf("unexpected log: %+v", issued)
	}
}

func TestLocalHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLocal().Issue(ctx, address.Key{1}, "Verified"); err == nil {
		t.Error("cancelled context issued a credential")
	}
}

func TestHTTPIssuer(t *testing.T) {
	var got issueRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(issueResponse{ID: "cred-42"})
	}))
	defer srv.Close()

	recipient := address.Key{3}
	id, err := NewHTTP(srv.URL, time.Second).Issue(context.Background(), recipient, "Elite")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if id != "cred-42" || got.Tier != "Elite" || got.Recipient != recipient {
		t.Errorf("id=%s request=%+v", id, got)
	}
}

func TestHTTPIssuerFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(issueResponse{Error: "mint failed"})
		}},
		{"empty id", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(issueResponse{})
		}},
		{"bad body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			if _, err := NewHTTP(srv.URL, time.Second).Issue(context.Background(), address.Key{1}, "Verified"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
