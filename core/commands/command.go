// Package commands routes "/command args" messages to registered handlers
// and replies to the sender with their output.
package commands

import (
	"context"

	"github.com/jdelaire/pollbot/core"
)

// Request is what a command receives for one message.
type Request struct {
	Update core.Update
	Name   string
	Args   string
}

// Command is an action triggered by a "/name" message.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req Request) (string, error)
}
