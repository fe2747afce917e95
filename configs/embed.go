// Package configs embeds the configuration template written by
// `reelvibe config init`.
package configs

import _ "embed"

// ConfigTemplate is a commented configuration with every default spelled
// out. It is valid both as a project and as a user config.
//
//go:embed reelvibe.example.yaml
var ConfigTemplate string
