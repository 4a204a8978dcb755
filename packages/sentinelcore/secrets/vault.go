// Package secrets wraps HashiCorp Vault's KV v2 engine for reading
// operational secrets (the Postgres DSN, the rule-file path).
package secrets

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// Manager wraps a Vault API client for reading secrets.
type Manager struct {
	client *api.Client
}

// NewManager creates a Vault client pointed at address and authenticated
// with token.
func NewManager(address, token string) (*Manager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &Manager{client: client}, nil
}

// GetSecret reads a secret at path and returns the raw data map. For KV v2
// backends the caller must unwrap the nested "data" key — see GetKV2.
func (m *Manager) GetSecret(path string) (map[string]interface{}, error) {
	secret, err := m.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	return secret.Data, nil
}

// GetKV2 reads from a KV v2 backend and returns the inner "data" map,
// unwrapping the v2 envelope automatically.
func (m *Manager) GetKV2(path string) (map[string]interface{}, error) {
	raw, err := m.GetSecret(path)
	if err != nil {
		return nil, err
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// OperationalSecrets is the set of ingestd's runtime secrets sourced from
// a single KV v2 entry: the Postgres DSN, the NATS URL, and (optionally)
// an override for the rule file's path.
type OperationalSecrets struct {
	PostgresDSN string
	NatsURL     string
	RulesPath   string
}

// LoadOperationalSecrets reads path and extracts the PG_URL, NATS_URL,
// and RULES_PATH keys ingestd starts with. PG_URL is required — ingestd
// cannot run without a database — while a missing NATS_URL or RULES_PATH
// is left blank for the caller to fall back on its own default (no
// eventbus, the config file's rules_path).
func (m *Manager) LoadOperationalSecrets(path string) (OperationalSecrets, error) {
	data, err := m.GetKV2(path)
	if err != nil {
		return OperationalSecrets{}, err
	}

	pgURL, _ := data["PG_URL"].(string)
	if pgURL == "" {
		return OperationalSecrets{}, fmt.Errorf("secret at %s is missing PG_URL", path)
	}

	natsURL, _ := data["NATS_URL"].(string)
	rulesPath, _ := data["RULES_PATH"].(string)

	return OperationalSecrets{
		PostgresDSN: pgURL,
		NatsURL:     natsURL,
		RulesPath:   rulesPath,
	}, nil
}
