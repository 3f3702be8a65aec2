package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	apiTokenSecret = "api_token"
	apiTokenEnv    = "REELMATCH_API_TOKEN"
)

// fileSecrets keeps secrets in a 0600 JSON file beside the database.
type fileSecrets struct{}

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func (fileSecrets) Get(name string) (string, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	v, ok := m[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return v, nil
}

func (fileSecrets) Set(name, value string) error {
	p := secretsFilePath()

	m := make(map[string]string)
	if data, err := os.ReadFile(p); err == nil {
		_ = json.Unmarshal(data, &m)
	}
	m[name] = value

	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, out, 0o600)
}

// SetAPIToken stores the API token in the secrets file.
func SetAPIToken(token string) error {
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	return fileSecrets{}.Set(apiTokenSecret, token)
}
