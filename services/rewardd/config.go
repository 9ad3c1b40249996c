package rewardd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"greenmile/crypto"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for rewardd.
type Config struct {
	ListenAddress    string       `yaml:"listen"`
	NodeURL          string       `yaml:"node_url"`
	ChainTag         uint8        `yaml:"chain_tag"`
	TreasuryContract string       `yaml:"treasury_contract"`
	AppID            string       `yaml:"app_id"`
	OperatingFund    string       `yaml:"operating_fund"`
	DatabaseURL      string       `yaml:"database_url"`
	ExpirationBlocks uint32       `yaml:"expiration_blocks"`
	Gas              uint64       `yaml:"gas"`
	GasPriceCoef     uint8        `yaml:"gas_price_coef"`
	PauseOnStart     bool         `yaml:"pause"`
	RequestTimeout   Duration     `yaml:"request_timeout"`
	PlatformCards    []string     `yaml:"platform_cards"`
	Signer           SignerConfig `yaml:"signer"`
	Admin            AdminConfig  `yaml:"admin"`
}

// SignerConfig resolves the distributor's signing key from one of several
// sources. An inline key takes precedence, then the environment variable, the
// raw key file, and finally the encrypted keystore.
type SignerConfig struct {
	Key                string `yaml:"key"`
	KeyEnv             string `yaml:"key_env"`
	KeyFile            string `yaml:"key_file"`
	KeystorePath       string `yaml:"keystore"`
	KeystorePassphrase string `yaml:"keystore_passphrase"`
}

// AdminConfig captures security settings for the admin API.
type AdminConfig struct {
	BearerToken     string `yaml:"bearer_token"`
	BearerTokenFile string `yaml:"bearer_token_file"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Admin.normalise(); err != nil {
		return cfg, fmt.Errorf("admin security: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.ExpirationBlocks == 0 {
		cfg.ExpirationBlocks = 32
	}
	if cfg.Gas == 0 {
		cfg.Gas = 300_000
	}
	if cfg.RequestTimeout.Duration == 0 {
		cfg.RequestTimeout.Duration = 15 * time.Second
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.NodeURL) == "" {
		return fmt.Errorf("node_url must be configured")
	}
	if cfg.ChainTag == 0 {
		return fmt.Errorf("chain_tag must be configured")
	}
	if !common.IsHexAddress(cfg.TreasuryContract) {
		return fmt.Errorf("treasury_contract must be a valid address")
	}
	if !common.IsHexAddress(cfg.OperatingFund) {
		return fmt.Errorf("operating_fund must be a valid address")
	}
	if _, err := cfg.AppIDBytes(); err != nil {
		return err
	}
	if cfg.Admin.BearerToken == "" {
		return fmt.Errorf("admin bearer_token must be configured")
	}
	for _, lastFour := range cfg.PlatformCards {
		if len(lastFour) != 4 {
			return fmt.Errorf("platform card %q must be four digits", lastFour)
		}
	}
	return nil
}

// AppIDBytes decodes the configured application identifier into the fixed
// 32-byte form used in contract calls. Shorter values are left-aligned and
// zero padded, matching how the treasury contract registers identifiers.
func (c Config) AppIDBytes() ([32]byte, error) {
	var id [32]byte
	raw := strings.TrimPrefix(strings.TrimSpace(c.AppID), "0x")
	if raw == "" {
		return id, fmt.Errorf("app_id must be configured")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		// A plain string identifier is used verbatim.
		decoded = []byte(strings.TrimSpace(c.AppID))
	}
	if len(decoded) > 32 {
		return id, fmt.Errorf("app_id exceeds 32 bytes")
	}
	copy(id[:], decoded)
	return id, nil
}

// ResolveSigner loads the distributor key from the configured source.
func (c SignerConfig) ResolveSigner() (*crypto.PrivateKey, error) {
	switch {
	case strings.TrimSpace(c.Key) != "":
		return crypto.PrivateKeyFromHex(c.Key)
	case strings.TrimSpace(c.KeyEnv) != "":
		value := strings.TrimSpace(os.Getenv(c.KeyEnv))
		if value == "" {
			return nil, fmt.Errorf("signer key_env %s is empty", c.KeyEnv)
		}
		return crypto.PrivateKeyFromHex(value)
	case strings.TrimSpace(c.KeyFile) != "":
		contents, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signer key_file: %w", err)
		}
		return crypto.PrivateKeyFromHex(string(contents))
	case strings.TrimSpace(c.KeystorePath) != "":
		return crypto.LoadKeystore(c.KeystorePath, c.KeystorePassphrase)
	default:
		return nil, fmt.Errorf("signer key is required")
	}
}

func (a *AdminConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("admin configuration missing")
	}
	token := strings.TrimSpace(a.BearerToken)
	if path := strings.TrimSpace(a.BearerTokenFile); path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bearer_token_file: %w", err)
		}
		token = strings.TrimSpace(string(contents))
	}
	a.BearerToken = token
	return nil
}
