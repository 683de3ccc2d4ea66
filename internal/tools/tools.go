//go:build tools

// Package tools pins dev-tool module versions in go.mod/go.sum without
// making them part of the normal build, the standard Go idiom for tool
// dependencies.
package tools

import (
	_ "golang.org/x/tools/cmd/stringer"
)
