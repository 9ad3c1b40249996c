package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func Test_Client_BestBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/best" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":        "0x0142857abbf0827912ab12c0ffee0000",
			"number":    21135738,
			"timestamp": 1724932800,
		})
	}))
	defer srv.Close()

	block, err := NewClient(srv.URL).BestBlock(context.Background())
	if err != nil {
		t.Fatalf("best block: %v", err)
	}
	if block.Number != 21135738 {
		t.Fatalf("unexpected block number %d", block.Number)
	}
	ref, err := block.Ref()
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	if ref != [8]byte{0x01, 0x42, 0x85, 0x7a, 0xbb, 0xf0, 0x82, 0x79} {
		t.Fatalf("unexpected block ref %x", ref)
	}
}

func Test_Client_ReadsRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "0x0142857abbf0827900000000000000000000000000000000"})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).BestBlock(context.Background()); err != nil {
		t.Fatalf("read should survive one transient failure: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly one retry, saw %d calls", calls.Load())
	}
}

func Test_Client_GasBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"balance": "0xde0b6b3a7640000",  // 1 token
			"energy":  "0x4563918244f40000", // 5 tokens
		})
	}))
	defer srv.Close()

	balance, err := NewClient(srv.URL).GasBalance(context.Background(), "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed")
	if err != nil {
		t.Fatalf("gas balance: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	if balance.Cmp(want) != 0 {
		t.Fatalf("unexpected balance %s", balance)
	}

	if _, err := NewClient(srv.URL).GasBalance(context.Background(), "not-an-address"); err == nil {
		t.Fatalf("invalid addresses must be rejected before any network call")
	}
}

func Test_Client_CallContract(t *testing.T) {
	contract := common.HexToAddress("0x5afc1dcd28fe4c9e3c5ba377e7ff4f89c3fe2cfd")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/"+contract.Hex() {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload struct {
			Clauses []struct {
				To   string `json:"to"`
				Data string `json:"data"`
			} `json:"clauses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Clauses) != 1 || payload.Clauses[0].Data != "0x0102" {
			t.Fatalf("unexpected clause payload %+v", payload)
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{{
			"data":     "0x00000000000000000000000000000000000000000000000000000000000000ff",
			"reverted": false,
		}})
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).CallContract(context.Background(), contract, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("call contract: %v", err)
	}
	if len(out) != 32 || out[31] != 0xff {
		t.Fatalf("unexpected return data %x", out)
	}
}

func Test_Client_CallContract_Reverted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{{"data": "0x", "reverted": true}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithReadRetries(0)).CallContract(context.Background(), common.Address{}, nil)
	if err == nil {
		t.Fatalf("reverted calls must surface an error")
	}
}

func Test_Client_SubmitTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["raw"] != "0xdeadbeef" {
			t.Fatalf("unexpected raw payload %q", payload["raw"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "0xabc123"})
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL).SubmitTransaction(context.Background(), "0xdeadbeef")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "0xabc123" {
		t.Fatalf("unexpected id %q", id)
	}
}

func Test_Client_SubmitRejectionSurfacesBody(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"insufficient energy for gas"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SubmitTransaction(context.Background(), "0xdeadbeef")
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected a NodeError, got %v", err)
	}
	if nodeErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", nodeErr.StatusCode)
	}
	if nodeErr.Body == "" || !json.Valid([]byte(nodeErr.Body)) {
		t.Fatalf("rejection body must be surfaced verbatim: %q", nodeErr.Body)
	}
	if calls.Load() != 1 {
		t.Fatalf("submission must never be retried, saw %d calls", calls.Load())
	}
}
