package config

import _ "embed"

//go:embed sample_config.toml
var sampleConfig string

// Sample returns an annotated starter drover.toml.
func Sample() string {
	return sampleConfig
}
