package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"Bondr/internal/address"
	"Bondr/internal/logger"
)

const (
	// defaultTimeout bounds one issuance request.
	defaultTimeout = 10 * time.Second

	// maxResponseSize bounds the issuer's response body.
	maxResponseSize = 64 << 10
)

// Issued is one credential handed out by a Local issuer.
type Issued struct {
	ID        string      `json:"id"`
	Recipient address.Key `json:"recipient"`
	Tier      string      `json:"tier"`
	IssuedAt  time.Time   `json:"issued_at"`
}

// Local issues random UUID credentials and remembers them in memory.
type Local struct {
	mu     sync.Mutex
	issued []Issued
	now    func() time.Time
}

// NewLocal creates an in-process issuer.
func NewLocal() *Local {
	return &Local{now: time.Now}
}

// Issue returns a fresh credential id.
func (l *Local) Issue(ctx context.Context, recipient address.Key, tier string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	l.mu.Lock()
	l.issued = append(l.issued, Issued{ID: id, Recipient: recipient, Tier: tier, IssuedAt: l.now()})
	l.mu.Unlock()

	logger.Info("credential issued", "recipient", recipient.Short(), "tier", tier, "id", id)

	return id, nil
}

// Issued returns every credential handed out so far.
func (l *Local) Issued() []Issued {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Issued(nil), l.issued...)
}

// HTTP delegates issuance to a remote credential service.
// It POSTs {"recipient","tier"} and expects {"id"} back.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates a remote issuer for url.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTP{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type issueRequest struct {
	Recipient address.Key `json:"recipient"`
	Tier      string      `json:"tier"`
}

type issueResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Issue asks the remote service for a credential.
func (h *HTTP) Issue(ctx context.Context, recipient address.Key, tier string) (string, error) {
	body, err := json.Marshal(issueRequest{Recipient: recipient, Tier: tier})
	if err != nil {
		return "", fmt.Errorf("marshal request:\n%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request:\n%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s:\n%w", h.url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	var out issueResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode response:\n%w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("issuer returned status %d: %s", resp.StatusCode, out.Error)
	}

	if out.ID == "" {
		return "", fmt.Errorf("issuer returned an empty credential id")
	}

	return out.ID, nil
}
