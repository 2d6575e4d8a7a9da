package air

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads configPath (JSON, TOML or YAML, auto-detected by
// extension) and decodes it onto a, using mapstructure against the same
// `mapstructure:"..."` tags air.go's Air struct carries. Unset fields in
// the file leave a's current value untouched.
func (a *Air) LoadConfigFile(configPath string) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("air: read config file: %w", err)
	}

	m, err := decodeConfigBytes(raw, filepath.Ext(configPath))
	if err != nil {
		return fmt.Errorf("air: parse config file %s: %w", configPath, err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           a,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}

// decodeConfigBytes parses raw into a generic map according to ext.
func decodeConfigBytes(raw []byte, ext string) (map[string]interface{}, error) {
	m := map[string]interface{}{}

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	case ".json", "":
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	return m, nil
}
