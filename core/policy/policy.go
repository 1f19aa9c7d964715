package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdelaire/pollbot/core"
)

const (
	freshnessWindow = 5 * time.Minute
	maxSeenIDs      = 10000
	pruneCount      = 1000
)

// Policy filters inbound updates by chat allowlist, freshness window, and
// update_id deduplication.
type Policy struct {
	mu        sync.Mutex
	allowed   map[int64]bool
	seen      map[int64]bool
	seenOrder []int64
	now       func() time.Time
}

// New creates a Policy that authorizes only the given chat IDs. An empty
// list authorizes every chat.
func New(chatIDs []int64) *Policy {
	allowed := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = true
	}
	return &Policy{
		allowed: allowed,
		seen:    make(map[int64]bool),
		now:     time.Now,
	}
}

// Authorize checks whether an update should be processed. A zero timestamp
// skips the freshness check and a negative updateID skips deduplication.
func (p *Policy) Authorize(chatID int64, updateID int64, timestamp time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.allowed) > 0 && !p.allowed[chatID] {
		return fmt.Errorf("unauthorized chat: %d", chatID)
	}

	if !timestamp.IsZero() {
		if age := p.now().Sub(timestamp); age > freshnessWindow {
			return fmt.Errorf("stale message: %v old", age.Truncate(time.Second))
		}
	}

	if updateID < 0 {
		return nil
	}
	if p.seen[updateID] {
		return fmt.Errorf("duplicate update: %d", updateID)
	}

	if len(p.seen) >= maxSeenIDs {
		for _, id := range p.seenOrder[:pruneCount] {
			delete(p.seen, id)
		}
		p.seenOrder = p.seenOrder[pruneCount:]
	}

	p.seen[updateID] = true
	p.seenOrder = append(p.seenOrder, updateID)

	return nil
}

// Middleware drops updates the policy rejects before they reach next.
func Middleware(p *Policy, next core.Handler, logger *slog.Logger) core.Handler {
	return core.HandlerFunc(func(ctx context.Context, u core.Update) {
		chatID, ok := u.ChatID()
		if !ok {
			logger.Debug("update rejected by policy", "update_id", u.ID(), "error", "missing sender")
			return
		}
		if err := p.Authorize(chatID, u.ID(), u.Time()); err != nil {
			logger.Debug("update rejected by policy", "chat_id", chatID, "update_id", u.ID(), "error", err)
			return
		}
		next.OnMessage(ctx, u)
	})
}
