// Package signer holds the single wallet keypair allowed to produce
// signatures for this deployment and gates every signature behind the
// capital package's PolicyGate (§4.5, §6's "Signer" collaborator
// interface). Nothing upstream of Sign ever sees the private key.
package signer

import (
	"encoding/base64"

	"ares_api/internal/capital"
	"ares_api/internal/tradingerr"

	"github.com/gagliardetto/solana-go"
)

// Metadata is the policy-relevant context a caller attaches to a signing
// request; the gate checks against these fields, never the transaction
// bytes themselves.
type Metadata struct {
	AmountLamports          uint64
	EstimatedProfitLamports int64
}

// Result carries the signed transaction back out, base64-encoded for the
// same reason txbuilder.BuildResult is: callers pass it across process
// and log boundaries without a binary-safe channel.
type Result struct {
	SignedTransactionBase64 string
	Signature               string
}

// Signer holds at most one wallet keypair. A zero-value key (no
// SOLANA_WALLET_PRIVATE_KEY configured) makes IsConfigured false and the
// executor's step 3 skip the edge before ever reaching capital
// reservation.
type Signer struct {
	key         solana.PrivateKey
	configured  bool
	policyGate  *capital.PolicyGate
}

// New builds a Signer. privateKeyBase58 empty means "not configured" —
// every other method on the returned Signer is then inert.
func New(privateKeyBase58 string, gate *capital.PolicyGate) (*Signer, error) {
	if privateKeyBase58 == "" {
		return &Signer{policyGate: gate}, nil
	}

	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, tradingerr.Wrap("signer.New", tradingerr.Validation, "decode wallet private key", err)
	}
	return &Signer{key: key, configured: true, policyGate: gate}, nil
}

// IsConfigured mirrors §6's `is_configured()`.
func (s *Signer) IsConfigured() bool {
	return s.configured
}

// PublicKey returns the wallet's address. Only valid when IsConfigured.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign validates meta against the policy gate, signs transactionBase64
// with the wallet key on approval, and records the usage. A policy
// refusal returns a *tradingerr.Error with Kind == PolicyViolation and
// never touches the key.
func (s *Signer) Sign(transactionBase64 string, meta Metadata) (*Result, error) {
	if !s.configured {
		return nil, tradingerr.New("signer.Sign", tradingerr.Validation, "signer is not configured")
	}

	if err := s.policyGate.Check(meta.AmountLamports, meta.EstimatedProfitLamports); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(transactionBase64)
	if err != nil {
		return nil, tradingerr.Wrap("signer.Sign", tradingerr.Internal, "decode transaction payload", err)
	}

	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, tradingerr.Wrap("signer.Sign", tradingerr.Protocol, "decode transaction", err)
	}

	sigs, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, tradingerr.Wrap("signer.Sign", tradingerr.Internal, "sign transaction", err)
	}
	if len(sigs) == 0 {
		return nil, tradingerr.New("signer.Sign", tradingerr.Internal, "no signature produced")
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, tradingerr.Wrap("signer.Sign", tradingerr.Internal, "marshal signed transaction", err)
	}

	s.policyGate.Record(meta.AmountLamports)

	return &Result{
		SignedTransactionBase64: base64.StdEncoding.EncodeToString(signed),
		Signature:               sigs[0].String(),
	}, nil
}
