package ledger

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Clause is a single call carried by a transaction. A transaction may carry
// several clauses; they execute atomically on the ledger.
type Clause struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Transaction is the ledger's wire transaction. The signature covers the RLP
// encoding of every field before it.
type Transaction struct {
	ChainTag     uint8
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	Nonce        uint64
	Signature    []byte
}

type txBody struct {
	ChainTag     uint8
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	Nonce        uint64
}

type signedTx struct {
	ChainTag     uint8
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []Clause
	GasPriceCoef uint8
	Gas          uint64
	Nonce        uint64
	Signature    []byte
}

func (t *Transaction) body() txBody {
	return txBody{
		ChainTag:     t.ChainTag,
		BlockRef:     t.BlockRef,
		Expiration:   t.Expiration,
		Clauses:      t.Clauses,
		GasPriceCoef: t.GasPriceCoef,
		Gas:          t.Gas,
		Nonce:        t.Nonce,
	}
}

// SigningHash returns the keccak-256 digest the distributor key signs.
func (t *Transaction) SigningHash() (common.Hash, error) {
	encoded, err := rlp.EncodeToBytes(t.body())
	if err != nil {
		return common.Hash{}, fmt.Errorf("ledger: encode transaction body: %w", err)
	}
	return common.BytesToHash(ethcrypto.Keccak256(encoded)), nil
}

// Sign attaches a recoverable secp256k1 signature over the signing hash.
func (t *Transaction) Sign(key *ecdsa.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("ledger: signing key required")
	}
	hash, err := t.SigningHash()
	if err != nil {
		return err
	}
	sig, err := ethcrypto.Sign(hash.Bytes(), key)
	if err != nil {
		return fmt.Errorf("ledger: sign transaction: %w", err)
	}
	t.Signature = sig
	return nil
}

// Origin recovers the signer address from the attached signature.
func (t *Transaction) Origin() (common.Address, error) {
	if len(t.Signature) == 0 {
		return common.Address{}, fmt.Errorf("ledger: transaction not signed")
	}
	hash, err := t.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := ethcrypto.SigToPub(hash.Bytes(), t.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("ledger: recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// ID is the transaction identifier: keccak-256 over the signing hash and the
// origin address. It is stable before submission, which lets callers persist
// it ahead of the network round trip.
func (t *Transaction) ID() (common.Hash, error) {
	hash, err := t.SigningHash()
	if err != nil {
		return common.Hash{}, err
	}
	origin, err := t.Origin()
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(ethcrypto.Keccak256(hash.Bytes(), origin.Bytes())), nil
}

// RawHex returns the hex-encoded signed transaction for submission.
func (t *Transaction) RawHex() (string, error) {
	if len(t.Signature) == 0 {
		return "", fmt.Errorf("ledger: transaction not signed")
	}
	encoded, err := rlp.EncodeToBytes(signedTx{
		ChainTag:     t.ChainTag,
		BlockRef:     t.BlockRef,
		Expiration:   t.Expiration,
		Clauses:      t.Clauses,
		GasPriceCoef: t.GasPriceCoef,
		Gas:          t.Gas,
		Nonce:        t.Nonce,
		Signature:    t.Signature,
	})
	if err != nil {
		return "", fmt.Errorf("ledger: encode signed transaction: %w", err)
	}
	return "0x" + hex.EncodeToString(encoded), nil
}

// DecodeRawHex parses a hex-encoded signed transaction. Used in tests and by
// tooling; the engine itself only produces raw transactions.
func DecodeRawHex(raw string) (*Transaction, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: decode raw transaction: %w", err)
	}
	var decoded signedTx
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		return nil, fmt.Errorf("ledger: decode raw transaction: %w", err)
	}
	return &Transaction{
		ChainTag:     decoded.ChainTag,
		BlockRef:     decoded.BlockRef,
		Expiration:   decoded.Expiration,
		Clauses:      decoded.Clauses,
		GasPriceCoef: decoded.GasPriceCoef,
		Gas:          decoded.Gas,
		Nonce:        decoded.Nonce,
		Signature:    decoded.Signature,
	}, nil
}

// BlockRefFromID derives the 8-byte block reference from a block id's leading
// hex digits.
func BlockRefFromID(id string) ([8]byte, error) {
	var ref [8]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(id), "0x")
	if len(trimmed) < 16 {
		return ref, fmt.Errorf("ledger: block id %q too short for a block reference", id)
	}
	decoded, err := hex.DecodeString(trimmed[:16])
	if err != nil {
		return ref, fmt.Errorf("ledger: block id %q: %w", id, err)
	}
	copy(ref[:], decoded)
	return ref, nil
}
