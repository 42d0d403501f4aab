// Package configs provides embedded configuration templates.
//
// The template is embedded at build time with go:embed so it ships with
// every distribution. Consumers write it out as a starting config; the
// loading hierarchy is defaults → config file → YTNAV_* env vars (see
// internal/config).
package configs

import _ "embed"

// ExampleConfig is the annotated default configuration template.
//
//go:embed config.example.yaml
var ExampleConfig string
