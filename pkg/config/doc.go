// Package config loads the optional YAML configuration file.
//
// Load starts from Default, decodes the file over it with gopkg.in/yaml.v3
// and validates the result; every invalid field is reported in one error.
// Durations use Go syntax ("5s", "720h"). Command-line flags are applied by
// the caller after Load and take precedence.
package config
