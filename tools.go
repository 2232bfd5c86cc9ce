//go:build tools
// +build tools

// Package gossip tracks the code generators used by go generate.
package gossip

import (
	_ "go.uber.org/mock/mockgen"
)
