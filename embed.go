package circlepress

import _ "embed"

// sampleConfig is the annotated config written by `circlepress config init`.
//
//go:embed sample_config.toml
var sampleConfig string
