package rewardd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
node_url: http://localhost:8669
chain_tag: 74
treasury_contract: "0x0000000000000000000000000000000000747265"
app_id: "0x677265656e6d696c652d72657761726473000000000000000000000000000000"
operating_fund: "0x00000000000000000000000000000000004f5046"
request_timeout: 20s
platform_cards: ["4321"]
signer:
  key: "0x4646464646464646464646464646464646464646464646464646464646464646"
admin:
  bearer_token: secret
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":7090" {
		t.Fatalf("default listen = %q", cfg.ListenAddress)
	}
	if cfg.ExpirationBlocks != 32 || cfg.Gas != 300_000 {
		t.Fatalf("defaults not applied: expiration=%d gas=%d", cfg.ExpirationBlocks, cfg.Gas)
	}
	if cfg.RequestTimeout.Duration != 20*time.Second {
		t.Fatalf("request_timeout = %s", cfg.RequestTimeout.Duration)
	}
	if cfg.ChainTag != 74 {
		t.Fatalf("chain_tag = %d", cfg.ChainTag)
	}

	appID, err := cfg.AppIDBytes()
	if err != nil {
		t.Fatalf("app id: %v", err)
	}
	if string(appID[:17]) != "greenmile-rewards" {
		t.Fatalf("app id decode mismatch: %x", appID)
	}

	signer, err := cfg.Signer.ResolveSigner()
	if err != nil {
		t.Fatalf("resolve signer: %v", err)
	}
	if signer.Address() == (common.Address{}) {
		t.Fatal("signer derives zero address")
	}
}

func TestLoadConfigRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"node_url":          "chain_tag: 74\ntreasury_contract: \"0x0000000000000000000000000000000000747265\"\noperating_fund: \"0x00000000000000000000000000000000004f5046\"\napp_id: app\nadmin:\n  bearer_token: secret\n",
		"bearer_token":      "node_url: http://localhost:8669\nchain_tag: 74\ntreasury_contract: \"0x0000000000000000000000000000000000747265\"\noperating_fund: \"0x00000000000000000000000000000000004f5046\"\napp_id: app\n",
		"treasury_contract": "node_url: http://localhost:8669\nchain_tag: 74\ntreasury_contract: nonsense\noperating_fund: \"0x00000000000000000000000000000000004f5046\"\napp_id: app\nadmin:\n  bearer_token: secret\n",
	}
	for name, contents := range cases {
		if _, err := LoadConfig(writeConfig(t, contents)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSignerFromEnv(t *testing.T) {
	t.Setenv("REWARDD_TEST_KEY", "0x4646464646464646464646464646464646464646464646464646464646464646")
	cfg := SignerConfig{KeyEnv: "REWARDD_TEST_KEY"}
	if _, err := cfg.ResolveSigner(); err != nil {
		t.Fatalf("resolve from env: %v", err)
	}

	cfg = SignerConfig{KeyEnv: "REWARDD_TEST_KEY_MISSING"}
	if _, err := cfg.ResolveSigner(); err == nil {
		t.Fatal("empty env var must fail")
	}
}

func TestBearerTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	admin := AdminConfig{BearerTokenFile: path}
	if err := admin.normalise(); err != nil {
		t.Fatalf("normalise: %v", err)
	}
	if admin.BearerToken != "from-file" {
		t.Fatalf("token = %q", admin.BearerToken)
	}
}

func TestAppIDRejectsOversize(t *testing.T) {
	cfg := Config{AppID: "0x" + strings.Repeat("ff", 33)}
	if _, err := cfg.AppIDBytes(); err == nil {
		t.Fatal("oversize app id must be rejected")
	}
}
