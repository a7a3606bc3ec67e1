package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"Bondr/internal/address"
	"Bondr/internal/ledger"
)

func TestScenarioA_ZeroAmount(t *testing.T) {
	n := startNode(t, t.TempDir())
	payer := n.wallet()
	recipient := n.wallet()

	_, err := payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 0, Nonce: 1})
	if !errors.Is(err, ledger.ErrAmountZero) || !strings.Contains(err.Error(), "amount can't be 0") {
		t.Errorf("got %v", err)
	}
}

func TestScenarioB_SelfTransfer(t *testing.T) {
	n := startNode(t, t.TempDir())
	payer := n.wallet()

	_, err := payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: payer.Key(), Amount: 10, Nonce: 1})
	if !errors.Is(err, ledger.ErrSelfTransfer) || !strings.Contains(err.Error(), "can't send money to self") {
		t.Errorf("got %v", err)
	}
}

func TestScenarioC_ThresholdRelease(t *testing.T) {
	n := startNode(t, t.TempDir())
	payer := n.wallet()
	recipient := n.wallet()
	approvers := n.wallets(4)

	members := []address.Key{payer.Key()}
	for _, w := range approvers {
		members = append(members, w.Key())
	}

	g, err := payer.LinkGroup(n.Client, members, 3)
	must(t, "link", err)

	e, err := payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 500, Nonce: 1, Governed: true})
	must(t, "create", err)

	for i := 0; i < 3; i++ {
		got, err := n.Client.Escrow(e.Address)
		must(t, "escrow", err)
		if got.Released {
			t.Fatalf("released after %d approvals", i)
		}
		must(t, "approve", approvers[i].Approve(n.Client, g.Address, e.Address))
	}

	got, err := n.Client.Escrow(e.Address)
	must(t, "escrow", err)
	if !got.Released {
		t.Fatal("not released after the third approval")
	}

	must(t, "fourth approval", approvers[3].Approve(n.Client, g.Address, e.Address))

	after, err := n.Client.Escrow(e.Address)
	must(t, "escrow", err)
	if !after.Released || after.Version != got.Version {
		t.Errorf("fourth approval changed the escrow: %+v", after)
	}
}

func TestScenarioDE_Credentials(t *testing.T) {
	n := startNode(t, t.TempDir())
	w := n.wallet()
	ctx := context.Background()

	_, err := w.InitBadge(n.Client)
	must(t, "init", err)

	for i := 0; i < 2; i++ {
		_, err := w.UpdateBadge(n.Client, 100)
		must(t, "update", err)
	}

	_, err = w.IssueCredential(ctx, n.Client)
	if !errors.Is(err, ledger.ErrInsufficientCompletions) {
		t.Fatalf("issue at 2: %v", err)
	}

	_, err = w.UpdateBadge(n.Client, 100)
	must(t, "third update", err)

	cred, err := w.IssueCredential(ctx, n.Client)
	must(t, "issue at 3", err)
	if cred.Tier != ledger.TierVerified {
		t.Errorf("tier %s, want Verified", cred.Tier)
	}

	for i := 3; i < 10; i++ {
		_, err := w.UpdateBadge(n.Client, 100)
		must(t, "update", err)
	}

	cred, err = w.IssueCredential(ctx, n.Client)
	must(t, "issue at 10", err)
	if cred.Tier != ledger.TierProfessional {
		t.Errorf("tier %s, want Professional", cred.Tier)
	}

	if _, err := w.IssueCredential(ctx, n.Client); !errors.Is(err, ledger.ErrCredentialIssued) {
		t.Errorf("repeat issue: %v", err)
	}

	if got := len(n.issuer.Issued()); got != 2 {
		t.Errorf("issuer called %d times, want 2", got)
	}
}

func TestScenarioF_GroupResetsAfterClaim(t *testing.T) {
	n := startNode(t, t.TempDir())
	payer := n.wallet()
	recipient := n.wallet()
	approvers := n.wallets(2)

	members := []address.Key{payer.Key(), approvers[0].Key(), approvers[1].Key()}
	g, err := payer.LinkGroup(n.Client, members, 2)
	must(t, "link", err)

	e, err := payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 900, Nonce: 1, Governed: true})
	must(t, "create", err)

	_, err = payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 900, Nonce: 2, Governed: true})
	if !errors.Is(err, ledger.ErrGroupBusy) {
		t.Fatalf("second governed escrow: %v", err)
	}

	for _, a := range approvers {
		must(t, "approve", a.Approve(n.Client, g.Address, e.Address))
	}
	must(t, "claim", recipient.Claim(n.Client, e.Address))

	group, err := n.Client.Group(g.Address)
	must(t, "group", err)
	if group.Pending != nil || group.ApprovalCount() != 0 {
		t.Errorf("group not reset: %+v", group)
	}

	_, err = payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 900, Nonce: 2, Governed: true})
	must(t, "reuse group", err)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	n := startNode(t, dir)
	payer := n.wallet()
	recipient := n.wallet()

	e, err := payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 1234, Nonce: 9})
	must(t, "create", err)
	must(t, "release", payer.Release(n.Client, e.Address))

	n.Stop()

	restarted := startNode(t, dir)

	got, err := restarted.Client.Escrow(e.Address)
	must(t, "escrow after restart", err)
	if got.Amount != 1234 || !got.Released {
		t.Errorf("escrow after restart: %+v", got)
	}

	must(t, "claim after restart", recipient.Claim(restarted.Client, e.Address))

	stats, err := restarted.Client.Stats(recipient.Key())
	must(t, "stats", err)
	if stats.Count != 1 || stats.Total != 1234 {
		t.Errorf("stats %+v", stats)
	}
}

func TestMilestonesOverHTTP(t *testing.T) {
	n := startNode(t, t.TempDir())
	payer := n.wallet()
	recipient := n.wallet()

	for i := uint64(1); i <= 3; i++ {
		e, err := payer.CreateEscrow(n.Client, ledger.CreateEscrowInput{Recipient: recipient.Key(), Amount: 10, Nonce: i})
		must(t, "create", err)
		must(t, "release", payer.Release(n.Client, e.Address))
		must(t, "claim", recipient.Claim(n.Client, e.Address))
	}

	stats, err := n.Client.Stats(recipient.Key())
	must(t, "stats", err)
	if stats.Count != 3 {
		t.Errorf("count %d", stats.Count)
	}

	resp, err := http.Get(n.http.URL + "/metrics")
	must(t, "metrics", err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `bondr_events_total{kind="milestone_reached"} 1`) {
		t.Errorf("novice milestone not published once:\n%s", body)
	}
}
