package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds CLI configuration options.
type Config struct {
	// Dir is the default queue directory used when a command is invoked
	// without one.
	Dir string `json:"dir,omitempty"`
}

// ConfigFileName is the project config file name, looked up in the working
// directory.
const ConfigFileName = ".bq.json"

// LoadConfig reads the optional project config. A missing file yields the
// zero config. The file is HuJSON: comments and trailing commas are fine.
func LoadConfig() (Config, error) {
	raw, err := os.ReadFile(ConfigFileName)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}

	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", ConfigFileName, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}

	return cfg, nil
}
