//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// These imports are not used at runtime. They keep mockgen, which the
// go:generate directives invoke, pinned in go.mod.
package chatroom

import (
	_ "go.uber.org/mock/mockgen"
)
