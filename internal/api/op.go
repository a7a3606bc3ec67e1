package api

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"Bondr/internal/ledger"
	"Bondr/internal/logger"
	"Bondr/internal/tx"
)

// argsError marks an envelope whose arguments do not fit its op.
type argsError struct{ err error }

func (e argsError) Error() string { return e.err.Error() }

// handleOp handles POST /op requests.
// Order: decode, verify, expiry bound, rate limit, replay guard, apply.
func (s *Server) handleOp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, tx.MaxEnvelopeSize+1))
	if err != nil {
		s.reject(w, http.StatusBadRequest, "read", "failed to read body")
		return
	}

	if len(body) == 0 {
		s.reject(w, http.StatusBadRequest, "empty", "empty envelope")
		return
	}

	env, err := tx.Decode(body)
	if err != nil {
		s.reject(w, http.StatusBadRequest, "malformed", fmt.Sprintf("invalid envelope: %v", err))
		return
	}

	now := s.now()
	if err := s.checkEnvelope(env, now); err != nil {
		s.reject(w, http.StatusBadRequest, "invalid", fmt.Sprintf("invalid envelope: %v", err))
		return
	}

	if !s.limiter.Allow(env.Signer, now) {
		s.reject(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		return
	}

	hash := env.Hash()
	if !s.dedup.Check(hash, now) {
		s.reject(w, http.StatusConflict, "replay", "envelope already submitted")
		return
	}

	result, err := s.dispatch(r.Context(), env)
	if err != nil {
		// Nothing was applied, so the same envelope may be retried.
		s.dedup.Forget(hash)

		if ae, ok := err.(argsError); ok {
			s.reject(w, http.StatusBadRequest, "bad_args", ae.Error())
			return
		}

		logger.Warn("op rejected", "op", env.Op, "signer", env.Signer.Short(), "error", err)
		writeLedgerError(w, err)
		return
	}

	logger.Debug("op applied", "op", env.Op, "signer", env.Signer.Short(), "hash", hex.EncodeToString(hash[:8]))

	writeJSON(w, http.StatusOK, map[string]any{
		"op":     env.Op,
		"hash":   hex.EncodeToString(hash[:]),
		"result": result,
	})
}

// checkEnvelope verifies the signature and bounds the expiry by the replay window.
func (s *Server) checkEnvelope(env *tx.Envelope, now time.Time) error {
	if err := env.Verify(now); err != nil {
		return err
	}

	limit := now.Add(s.dedup.Window()).Unix()
	if env.Expires > limit {
		return fmt.Errorf("expiry %d beyond replay window (max %d)", env.Expires, limit)
	}

	return nil
}

// decodeArgs unmarshals envelope args, tagging failures as argument errors.
func decodeArgs[T any](env *tx.Envelope) (T, error) {
	var in T
	if err := env.DecodeArgs(&in); err != nil {
		return in, argsError{err}
	}
	return in, nil
}

// dispatch applies env on behalf of its signer.
func (s *Server) dispatch(ctx context.Context, env *tx.Envelope) (any, error) {
	caller := env.Signer

	switch env.Op {
	case ledger.OpCreateEscrow:
		in, err := decodeArgs[ledger.CreateEscrowInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.CreateEscrow(caller, in)

	case ledger.OpRelease:
		in, err := decodeArgs[ledger.ReleaseInput](env)
		if err != nil {
			return nil, err
		}
		return done(s.ledger.Release(caller, in))

	case ledger.OpApprove:
		in, err := decodeArgs[ledger.ApproveInput](env)
		if err != nil {
			return nil, err
		}
		return done(s.ledger.Approve(caller, in))

	case ledger.OpClaim:
		in, err := decodeArgs[ledger.ClaimInput](env)
		if err != nil {
			return nil, err
		}
		return done(s.ledger.Claim(caller, in))

	case ledger.OpLinkGroup:
		in, err := decodeArgs[ledger.LinkGroupInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.LinkGroup(caller, in)

	case ledger.OpInitBadge:
		return s.ledger.InitBadge(caller)

	case ledger.OpUpdateBadge:
		in, err := decodeArgs[ledger.UpdateBadgeInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.UpdateBadge(caller, in)

	case ledger.OpIssueCredential:
		in, err := decodeArgs[ledger.IssueCredentialInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.IssueCredential(ctx, caller, in)

	case ledger.OpRemit:
		in, err := decodeArgs[ledger.RemitInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.Remit(caller, in)

	case ledger.OpSettleRemittance:
		in, err := decodeArgs[ledger.SettleRemittanceInput](env)
		if err != nil {
			return nil, err
		}
		return done(s.ledger.SettleRemittance(caller, in))

	case ledger.OpCreateMint:
		in, err := decodeArgs[ledger.CreateMintInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.CreateMint(caller, in)

	case ledger.OpOpenTokenAccount:
		in, err := decodeArgs[ledger.OpenTokenAccountInput](env)
		if err != nil {
			return nil, err
		}
		return s.ledger.OpenTokenAccount(caller, in)

	case ledger.OpMintTo:
		in, err := decodeArgs[ledger.MintToInput](env)
		if err != nil {
			return nil, err
		}
		return done(s.ledger.MintTo(caller, in))
	}

	return nil, argsError{fmt.Errorf("unknown op %q", env.Op)}
}

// done turns an error-only ledger result into a dispatch result.
func done(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]string{"status": "ok"}, nil
}
