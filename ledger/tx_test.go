package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func testTransaction(t *testing.T) *Transaction {
	t.Helper()
	ref, err := BlockRefFromID("0x0142857abbf0827912ab12c0ffee000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("block ref: %v", err)
	}
	return &Transaction{
		ChainTag:   0x4a,
		BlockRef:   ref,
		Expiration: 32,
		Clauses: []Clause{{
			To:    common.HexToAddress("0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"),
			Value: big.NewInt(0),
			Data:  []byte{0x01, 0x02, 0x03},
		}},
		Gas:   200_000,
		Nonce: 12345,
	}
}

func Test_BlockRefFromID(t *testing.T) {
	ref, err := BlockRefFromID("0x0142857abbf08279ffffffffffffffff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [8]byte{0x01, 0x42, 0x85, 0x7a, 0xbb, 0xf0, 0x82, 0x79}
	if ref != want {
		t.Fatalf("unexpected ref: %x", ref)
	}
	if _, err := BlockRefFromID("0x1234"); err == nil {
		t.Fatalf("short ids must be rejected")
	}
	if _, err := BlockRefFromID("0xzz42857abbf08279"); err == nil {
		t.Fatalf("non-hex ids must be rejected")
	}
}

func Test_Transaction_SignAndRecover(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := testTransaction(t)
	if _, err := tx.Origin(); err == nil {
		t.Fatalf("unsigned transaction must not report an origin")
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	origin, err := tx.Origin()
	if err != nil {
		t.Fatalf("origin: %v", err)
	}
	if origin != ethcrypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recovered origin mismatch: %s", origin.Hex())
	}
}

func Test_Transaction_IDIsStable(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := testTransaction(t)
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	first, err := tx.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	second, err := tx.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	if first != second {
		t.Fatalf("transaction id must be deterministic")
	}

	// A different nonce must produce a different id.
	other := testTransaction(t)
	other.Nonce = tx.Nonce + 1
	if err := other.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	otherID, err := other.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	if otherID == first {
		t.Fatalf("distinct transactions must not share an id")
	}
}

func Test_Transaction_RawRoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := testTransaction(t)
	if _, err := tx.RawHex(); err == nil {
		t.Fatalf("unsigned transaction must not serialise")
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := tx.RawHex()
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	decoded, err := DecodeRawHex(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ChainTag != tx.ChainTag || decoded.Nonce != tx.Nonce || decoded.Expiration != tx.Expiration {
		t.Fatalf("decoded transaction mismatch: %+v", decoded)
	}
	if len(decoded.Clauses) != 1 || decoded.Clauses[0].To != tx.Clauses[0].To {
		t.Fatalf("decoded clause mismatch: %+v", decoded.Clauses)
	}
	decodedID, err := decoded.ID()
	if err != nil {
		t.Fatalf("decoded id: %v", err)
	}
	originalID, err := tx.ID()
	if err != nil {
		t.Fatalf("original id: %v", err)
	}
	if decodedID != originalID {
		t.Fatalf("round trip must preserve the transaction id")
	}
}
