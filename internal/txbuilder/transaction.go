package txbuilder

import (
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"golang.org/x/crypto/blake2b"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

var cborNull = cbor.RawMessage{0xf6}

// Transaction is a finalized, unsigned transaction.
type Transaction struct {
	Inputs  []Input
	Outputs []Output
	Fee     uint64
	TTL     uint64
	raw     []byte
	body    []byte
}

func newTransaction(raw []byte, inputs []Input, outputs []Output, fee, ttl uint64) (*Transaction, error) {
	parts, err := splitTx(raw)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Inputs:  inputs,
		Outputs: outputs,
		Fee:     fee,
		TTL:     ttl,
		raw:     raw,
		body:    parts[0],
	}, nil
}

// splitTx decodes the outer transaction array without touching the body.
func splitTx(raw []byte) ([]cbor.RawMessage, error) {
	var parts []cbor.RawMessage
	if _, err := cbor.Decode(raw, &parts); err != nil {
		return nil, fmt.Errorf("%w: transaction: %v", apperr.ErrInvalidParameters, err)
	}
	if len(parts) < 2 || len(parts) > 4 {
		return nil, fmt.Errorf("%w: transaction has %d parts", apperr.ErrInvalidParameters, len(parts))
	}
	return parts, nil
}

// BodyBytes is the body encoding the transaction id is taken over.
func (t *Transaction) BodyBytes() []byte { return append([]byte(nil), t.body...) }

// Hash is the blake2b-256 of the body, hex encoded.
func (t *Transaction) Hash() string {
	sum := blake2b.Sum256(t.body)
	return hex.EncodeToString(sum[:])
}

// Bytes is the transaction with an empty witness set.
func (t *Transaction) Bytes() ([]byte, error) {
	return append([]byte(nil), t.raw...), nil
}

func (t *Transaction) Hex() (string, error) {
	b, err := t.Bytes()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// AssembleSigned merges a wallet's witness set into an unsigned transaction.
// The body bytes are kept verbatim so the transaction id does not change.
func AssembleSigned(unsignedTx, witnessSet []byte) ([]byte, error) {
	parts, err := splitTx(unsignedTx)
	if err != nil {
		return nil, err
	}

	merged, err := mergeWitnessSets(parts[1], witnessSet)
	if err != nil {
		return nil, err
	}

	valid, aux := cbor.RawMessage{0xf5}, cborNull
	switch len(parts) {
	case 4:
		valid, aux = parts[2], parts[3]
	case 3:
		aux = parts[2]
	}
	return cbor.Encode([]cbor.RawMessage{parts[0], merged, valid, aux})
}

func mergeWitnessSets(existing, incoming []byte) (cbor.RawMessage, error) {
	var a, b map[uint64]cbor.RawMessage
	if _, err := cbor.Decode(existing, &a); err != nil {
		return nil, fmt.Errorf("%w: witness set: %v", apperr.ErrInvalidParameters, err)
	}
	if _, err := cbor.Decode(incoming, &b); err != nil {
		return nil, fmt.Errorf("%w: wallet witness set: %v", apperr.ErrInvalidParameters, err)
	}
	if a == nil {
		a = map[uint64]cbor.RawMessage{}
	}

	for k, v := range b {
		cur, ok := a[k]
		if !ok || k != 0 {
			a[k] = v
			continue
		}
		// vkey witnesses from both sides are kept
		var left, right []cbor.RawMessage
		if _, err := cbor.Decode(cur, &left); err != nil {
			return nil, fmt.Errorf("%w: vkey witnesses: %v", apperr.ErrInvalidParameters, err)
		}
		if _, err := cbor.Decode(v, &right); err != nil {
			return nil, fmt.Errorf("%w: wallet vkey witnesses: %v", apperr.ErrInvalidParameters, err)
		}
		joined, err := cbor.Encode(append(left, right...))
		if err != nil {
			return nil, err
		}
		a[k] = joined
	}
	return cbor.Encode(a)
}
