package config

import (
	"fmt"

	"dario.cat/mergo"
)

// Error is a configuration fault. It is a distinct type so callers can tell
// operator misconfiguration apart from bad client input.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

func missingKey(key string) *Error {
	return &Error{Key: key, Reason: "required key missing"}
}

// ProviderConfig holds the workflow-engine connection and callback settings for
// one cloud provider.
type ProviderConfig struct {
	APIHost         string `koanf:"api_host"          yaml:"api_host"          validate:"required"`
	APIPort         int    `koanf:"api_port"          yaml:"api_port"`
	Token           string `koanf:"token"             yaml:"token"`
	Namespace       string `koanf:"namespace"         yaml:"namespace"`
	SSLVerify       *bool  `koanf:"ssl_verify"        yaml:"ssl_verify"`
	CallbackToken   string `koanf:"callback_token"    yaml:"callback_token"`
	CallbackURL     string `koanf:"callback_url"      yaml:"callback_url"`
	Zoneinfo        string `koanf:"zoneinfo"          yaml:"zoneinfo"`
	WorkflowBaseDir string `koanf:"workflow_base_dir" yaml:"workflow_base_dir"`
	DeployLogDir    string `koanf:"deploy_log_dir"    yaml:"deploy_log_dir"`
}

// TLSVerify reports whether certificate verification is enabled. Unset means on.
func (p *ProviderConfig) TLSVerify() bool {
	return p.SSLVerify == nil || *p.SSLVerify
}

// RequireCallbackToken returns the shared callback secret or a config error.
func (p *ProviderConfig) RequireCallbackToken() (string, error) {
	if p.CallbackToken == "" {
		return "", missingKey("callback_token")
	}
	return p.CallbackToken, nil
}

// RequireCallbackURL returns the callback URL or a config error.
func (p *ProviderConfig) RequireCallbackURL() (string, error) {
	if p.CallbackURL == "" {
		return "", missingKey("callback_url")
	}
	return p.CallbackURL, nil
}

// RequireZoneinfo returns the provider zoneinfo path or a config error.
func (p *ProviderConfig) RequireZoneinfo() (string, error) {
	if p.Zoneinfo == "" {
		return "", missingKey("zoneinfo")
	}
	return p.Zoneinfo, nil
}

// Config is the full configuration document: shared defaults plus per-provider
// overrides keyed by provider identifier.
type Config struct {
	Default   ProviderConfig            `koanf:"default"   yaml:"default"`
	Providers map[string]ProviderConfig `koanf:"providers" yaml:"providers"`
}

// Default returns the built-in configuration before any file or env overrides.
func Default() *Config {
	return &Config{
		Default: ProviderConfig{
			APIPort:   443,
			Namespace: "argo",
		},
		Providers: map[string]ProviderConfig{},
	}
}

// ForProvider resolves the effective configuration for one provider: the
// provider-specific section layered over the shared defaults.
func (c *Config) ForProvider(providerID string) (*ProviderConfig, error) {
	resolved := c.Default
	if override, ok := c.Providers[providerID]; ok {
		if err := mergo.Merge(&resolved, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to resolve provider %s config: %w", providerID, err)
		}
	}
	return &resolved, nil
}
