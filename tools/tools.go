//go:build tools

package tools

// This file tracks tool dependencies for reproducible builds.
// Run `go mod tidy` after adding/removing tools here.

import (
	_ "github.com/pressly/goose/v3/cmd/goose"
	_ "go.uber.org/mock/mockgen"
)
