package core

import "context"

// Replier sends replies to the messaging API.
type Replier interface {
	// SendReply reports whether the reply completed a round trip. It never
	// returns transport failures as errors.
	SendReply(ctx context.Context, r Reply) bool
}

// Transport is the network side of the poller.
type Transport interface {
	Replier

	// FetchUpdates retrieves pending updates after cursor (nil means no
	// cursor yet). ok is false when no data could be obtained; an empty
	// batch with ok true means the long poll expired without updates.
	FetchUpdates(ctx context.Context, cursor *int64, limit, timeout int) (updates []Update, ok bool)
}

// Receiver runs a retrieval loop until its context is cancelled.
type Receiver interface {
	Start(ctx context.Context) error
}
