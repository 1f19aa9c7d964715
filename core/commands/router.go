package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jdelaire/pollbot/core"
)

const defaultCommandTimeout = 30 * time.Second

var _ core.Handler = (*Router)(nil)

// Router is a core.Handler that runs the command named by each message and
// sends the result back as a threaded reply.
type Router struct {
	registry *Registry
	replier  core.Replier
	logger   *slog.Logger
	fallback Command
	timeout  time.Duration
}

// NewRouter creates a Router that replies through replier.
func NewRouter(registry *Registry, replier core.Replier, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		replier:  replier,
		logger:   logger,
		timeout:  defaultCommandTimeout,
	}
}

// WithFallback sets the command that handles messages that are not commands.
func (r *Router) WithFallback(cmd Command) *Router {
	r.fallback = cmd
	return r
}

// WithTimeout bounds each command execution.
func (r *Router) WithTimeout(d time.Duration) *Router {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// OnMessage routes one update. Updates without a sender are ignored.
func (r *Router) OnMessage(ctx context.Context, u core.Update) {
	chatID, ok := u.ChatID()
	if !ok {
		r.logger.Debug("update without sender ignored", "update_id", u.ID())
		return
	}

	name, args := parseCommand(u.Text())

	var cmd Command
	switch {
	case name != "":
		cmd = r.registry.Get(name)
		if cmd == nil {
			r.respond(ctx, u, fmt.Sprintf("Unknown command: /%s\nSend /help for available commands.", name))
			return
		}
	case r.fallback != nil:
		cmd = r.fallback
	default:
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := cmd.Execute(execCtx, Request{Update: u, Name: name, Args: args})
	if err != nil {
		r.logger.Error("command failed", "command", cmd.Name(), "chat_id", chatID, "error", err)
		r.respond(ctx, u, fmt.Sprintf("Error running /%s: %s", cmd.Name(), err))
		return
	}
	if result == "" {
		return
	}

	r.respond(ctx, u, result)
}

func (r *Router) respond(ctx context.Context, u core.Update, text string) {
	reply, ok := core.NewReply(u, text, true)
	if !ok {
		return
	}
	if !r.replier.SendReply(ctx, reply) {
		r.logger.Warn("reply not delivered", "chat_id", reply.ChatID, "update_id", u.ID())
	}
}

// parseCommand extracts the command name and arguments from a message.
// It handles "/command", "/command args", and "/command@botname args".
func parseCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	text = text[1:]
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}

	return strings.ToLower(cmd), args
}
