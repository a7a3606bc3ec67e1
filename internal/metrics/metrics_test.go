package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"Bondr/internal/address"
	"Bondr/internal/ledger"
	"Bondr/internal/storage"
)

func TestLedgerOperationsAreCounted(t *testing.T) {
	m := New()
	l := ledger.New(storage.NewMemory(), ledger.WithObserver(m), ledger.WithSink(m))

	payer := address.Key{1}
	recipient := address.Key{2}

	if err := l.Airdrop(payer, 10_000_000); err != nil {
		t.Fatalf("airdrop: %v", err)
	}

	if _, err := l.CreateEscrow(payer, ledger.CreateEscrowInput{Recipient: recipient, Amount: 5, Nonce: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = l.CreateEscrow(payer, ledger.CreateEscrowInput{Recipient: payer, Amount: 5, Nonce: 2})

	if got := testutil.ToFloat64(m.ops.WithLabelValues(ledger.OpCreateEscrow, "ok")); got != 1 {
		t.Errorf("ok creates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ops.WithLabelValues(ledger.OpCreateEscrow, "SELF_TRANSFER")); got != 1 {
		t.Errorf("self transfer rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues(string(ledger.EventEscrowCreated))); got != 1 {
		t.Errorf("create events = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveOp(ledger.OpRelease, nil, time.Millisecond)
	m.Rejected("rate_limited")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"bondr_ops_total", "bondr_op_duration_seconds", "bondr_requests_rejected_total"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}
