// Package web holds the embedded chat widget assets.
package web

import _ "embed"

// IndexHTML is the single-page chat widget served at /.
//
//go:embed static/index.html
var IndexHTML []byte
