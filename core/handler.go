package core

import "context"

// Handler reacts to a single update. Implementations decide what, if
// anything, to send back through a Replier.
//
// OnMessage is called concurrently for every update of a batch. The poller
// does not recover panics raised by a handler.
type Handler interface {
	OnMessage(ctx context.Context, u Update)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, u Update)

func (f HandlerFunc) OnMessage(ctx context.Context, u Update) { f(ctx, u) }
