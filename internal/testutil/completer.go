package testutil

import (
	"context"
	"sync"

	"github.com/roach88/guildkeeper/internal/assistant"
)

// Completer is a scripted assistant.Completer. Without a script it echoes
// the prompt.
type Completer struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []assistant.Request
	limit    assistant.RateLimit
}

// NewCompleter returns a completer that answers with replies in order and
// then falls back to echoing.
func NewCompleter(replies ...string) *Completer {
	return &Completer{replies: replies}
}

// FailWith makes every later call return err.
func (c *Completer) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// WithRateLimit sets the rate-limit snapshot attached to completions.
func (c *Completer) WithRateLimit(rl assistant.RateLimit) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = rl
	return c
}

// Complete implements assistant.Completer.
func (c *Completer) Complete(ctx context.Context, req assistant.Request) (assistant.Completion, error) {
	if err := ctx.Err(); err != nil {
		return assistant.Completion{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.err != nil {
		return assistant.Completion{}, c.err
	}
	text := "echo: " + req.Prompt
	if len(c.replies) > 0 {
		text = c.replies[0]
		c.replies = c.replies[1:]
	}
	return assistant.Completion{Text: text, RateLimit: c.limit}, nil
}

// Requests returns a copy of every request received.
func (c *Completer) Requests() []assistant.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]assistant.Request(nil), c.requests...)
}
