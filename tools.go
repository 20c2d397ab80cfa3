//go:build tools
// +build tools

// Package tools pins the code generators used by go generate (mockgen) as
// module dependencies so they resolve on a fresh checkout.
package chitchat

import (
	_ "go.uber.org/mock/mockgen"
)
