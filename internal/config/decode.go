package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

func decode(raw string, cfg *Config) error {
	meta, err := toml.Decode(raw, cfg)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config key: %s", undecoded[0].String())
	}
	return nil
}
