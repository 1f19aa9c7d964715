package sentryutil

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jdelaire/pollbot/core"
)

// Options configures error tracking. An empty DSN keeps the client
// disabled; capture calls become no-ops.
type Options struct {
	DSN         string
	Environment string
	Release     string
}

func Init(opts Options, logger *slog.Logger) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	if opts.DSN == "" {
		logger.Info("sentry disabled: no dsn configured")
	} else {
		logger.Info("sentry initialized", "environment", opts.Environment)
	}
	return nil
}

func Flush() { sentry.Flush(2 * time.Second) }

func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Recover wraps next so that a panic in one handler is logged and reported
// instead of taking down the poller. The update still counts as handled.
func Recover(next core.Handler, logger *slog.Logger) core.Handler {
	return core.HandlerFunc(func(ctx context.Context, u core.Update) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("handler panic", "update_id", u.ID(), "panic", rec, "stack", string(debug.Stack()))

			hub := sentry.GetHubFromContext(ctx)
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("update_id", strconv.FormatInt(u.ID(), 10))
				if chatID, ok := u.ChatID(); ok {
					scope.SetTag("chat_id", strconv.FormatInt(chatID, 10))
				}
				scope.SetLevel(sentry.LevelFatal)
				hub.RecoverWithContext(ctx, rec)
			})
		}()
		next.OnMessage(ctx, u)
	})
}
