package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PROVISIO_"

// Load builds the configuration from, in order of precedence (lowest first):
// built-in defaults, the YAML file at path, and PROVISIO_* environment
// variables. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Reason: fmt.Sprintf("failed to read config file %s: %v", path, err)}
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &Error{Reason: fmt.Sprintf("failed to parse config file %s: %v", path, err)}
	}
	if err := k.Load(rawMap(filterNilValues(doc)), nil); err != nil {
		return fmt.Errorf("failed to apply config file: %w", err)
	}
	return nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(&cfg.Default); err != nil {
		return &Error{Reason: fmt.Sprintf("invalid configuration: %v", err)}
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: DEFAULT_CALLBACK_TOKEN -> default.callback_token
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

// rawMap is a koanf.Provider adapter for map[string]any data.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}

// filterNilValues recursively removes nil values from a map so file layers do
// not override defaults with nil.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for key, value := range m {
		if value == nil {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			filtered := filterNilValues(nested)
			if len(filtered) > 0 {
				result[key] = filtered
			}
			continue
		}
		result[key] = value
	}
	return result
}
