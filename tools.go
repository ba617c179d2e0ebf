//go:build tools

// Package tools tracks Go-based tools invoked via `go generate` (mockgen) as
// explicit module dependencies.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
