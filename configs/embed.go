// Package configs embeds the bundled safety configurations.
package configs

import _ "embed"

// Robot is the reference robot configuration.
//
//go:embed robot.yaml
var Robot []byte
