package commands

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// RegisterBuiltins adds help, status, echo and ack to reg.
func RegisterBuiltins(reg *Registry) error {
	for _, cmd := range []Command{
		&HelpCommand{Registry: reg},
		NewStatusCommand(),
		EchoCommand{},
		AckCommand{},
	} {
		if err := reg.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// HelpCommand lists all registered commands.
type HelpCommand struct {
	Registry *Registry
}

func (h *HelpCommand) Name() string        { return "help" }
func (h *HelpCommand) Description() string { return "List available commands" }

func (h *HelpCommand) Execute(_ context.Context, _ Request) (string, error) {
	all := h.Registry.List()
	if len(all) == 0 {
		return "No commands available.", nil
	}

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, cmd := range all {
		fmt.Fprintf(&b, "  /%s - %s\n", cmd.Name(), cmd.Description())
	}
	return b.String(), nil
}

// StatusCommand reports uptime, Go version and goroutine count.
type StatusCommand struct {
	started time.Time
}

func NewStatusCommand() *StatusCommand {
	return &StatusCommand{started: time.Now()}
}

func (s *StatusCommand) Name() string        { return "status" }
func (s *StatusCommand) Description() string { return "Show bot status" }

func (s *StatusCommand) Execute(_ context.Context, _ Request) (string, error) {
	uptime := time.Since(s.started).Truncate(time.Second)
	return fmt.Sprintf("Status: OK\nUptime: %s\nGo: %s\nGoroutines: %d",
		uptime, runtime.Version(), runtime.NumGoroutine()), nil
}

// EchoCommand replies with its arguments.
type EchoCommand struct{}

func (EchoCommand) Name() string        { return "echo" }
func (EchoCommand) Description() string { return "Repeat the given text" }

func (EchoCommand) Execute(_ context.Context, req Request) (string, error) {
	if req.Args == "" {
		return "", fmt.Errorf("nothing to echo")
	}
	return req.Args, nil
}

// AckCommand acknowledges a message by its id.
type AckCommand struct{}

func (AckCommand) Name() string        { return "ack" }
func (AckCommand) Description() string { return "Acknowledge the message" }

func (AckCommand) Execute(_ context.Context, req Request) (string, error) {
	return fmt.Sprintf("Respondido - %d", req.Update.MessageID()), nil
}
