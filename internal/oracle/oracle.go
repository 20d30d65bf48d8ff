// Package oracle implements C1, the Agent Oracle: a bounded-capacity text
// oracle in front of an external LLM, with sliding-window rate limiting,
// jittered exponential backoff, and a degradation signal the driver (C4)
// reads to cut prompt cost under pressure.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DegradeConsecutiveRateLimits is K in spec.md §4.1: shouldDegrade() trips
// once this many consecutive rate-limit failures have been observed.
const DegradeConsecutiveRateLimits = 3

// DegradeBudgetFraction is the per-minute budget pressure (request or token)
// at or above which shouldDegrade() trips.
const DegradeBudgetFraction = 0.90

// estimatedTokensPerChar is a crude admission-time token estimate; actual
// usage (when the backend reports it) reconciles the tracker afterward.
const estimatedTokensPerChar = 0.3

// Options configures one Ask call.
type Options struct {
	Temperature     float64
	MaxTokens       int
	System          string
	ConversationKey string // when non-empty, turns are remembered and replayed for this key
	Deadline        time.Duration
}

// Oracle is a single process-wide (but explicitly constructed, not a
// package-level singleton — see REDESIGN FLAGS item 2) rate-limited caller.
type Oracle struct {
	backend Backend
	tracker *slidingWindowTracker

	deadline time.Duration

	mu            sync.Mutex
	conversations map[string][]turn
}

type turn struct {
	prompt   string
	response string
}

// New builds an Oracle against backend, admitting up to rpm requests and tpm
// tokens per rolling minute.
func New(backend Backend, rpm, tpm int, deadline time.Duration) *Oracle {
	return &Oracle{
		backend:       backend,
		tracker:       newSlidingWindowTracker(rpm, tpm),
		deadline:      deadline,
		conversations: make(map[string][]turn),
	}
}

// Status is the external status() contract from spec.md §4.1.
type Status struct {
	RequestsThisMinute    int
	TokensThisMinute      int
	ConsecutiveRateLimits int
	MinutesUntilReset     float64
}

// Status reports the tracker's current counters.
func (o *Oracle) Status() Status {
	s := o.tracker.snapshot()
	return Status{
		RequestsThisMinute:    s.RequestsThisMinute,
		TokensThisMinute:      s.TokensThisMinute,
		ConsecutiveRateLimits: s.ConsecutiveRateLimits,
		MinutesUntilReset:     s.MinutesUntilReset,
	}
}

// ShouldDegrade reports whether the driver should fall back to shorter
// prompt variants: per-minute budget pressure >= 90% or K consecutive
// rate limits.
func (o *Oracle) ShouldDegrade() bool {
	s := o.tracker.snapshot()
	return s.ConsecutiveRateLimits >= DegradeConsecutiveRateLimits || o.tracker.budgetPressure() >= DegradeBudgetFraction
}

// Ask sends prompt (with optional conversation replay) to the backend. It
// never blocks forever: the context carries a deadline (the caller's, or
// Options.Deadline, or the Oracle's default) and is always respected.
func (o *Oracle) Ask(ctx context.Context, playerID, prompt string, opts Options) (string, error) {
	deadline := o.deadline
	if opts.Deadline > 0 {
		deadline = opts.Deadline
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fullPrompt := prompt
	if opts.ConversationKey != "" {
		fullPrompt = o.withHistory(opts.ConversationKey, prompt)
	}

	estimate := int(float64(len(fullPrompt)) * estimatedTokensPerChar)
	if opts.MaxTokens > 0 {
		estimate += opts.MaxTokens
	}

	admitted, retryAfter := o.tracker.admit(estimate)
	if !admitted {
		o.tracker.noteRateLimited()
		d := backoffDuration(o.tracker.snapshot().ConsecutiveRateLimits)
		if d < retryAfter {
			d = retryAfter
		}
		select {
		case <-time.After(d):
		case <-callCtx.Done():
			return "", fmt.Errorf("oracle ask for %s: %w", playerID, callCtx.Err())
		}
		// Single retry attempt after backoff; a second denial fails fast.
		admitted, _ = o.tracker.admit(estimate)
		if !admitted {
			return "", &Failure{Kind: RateLimited, Message: "budget exhausted after backoff"}
		}
	}

	text, used, err := o.backend.Complete(callCtx, Request{
		Prompt:      fullPrompt,
		System:      opts.System,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	o.tracker.recordUsage(estimate, used)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &Failure{Kind: Timeout, Message: err.Error()}
		}
		if f, ok := AsFailure(err); ok {
			if f.Kind == RateLimited {
				o.tracker.noteRateLimited()
			}
			return "", f
		}
		return "", &Failure{Kind: UpstreamError, Message: err.Error()}
	}

	o.tracker.noteSuccess()

	if opts.ConversationKey != "" {
		o.appendTurn(opts.ConversationKey, prompt, text)
	}

	return text, nil
}

func (o *Oracle) withHistory(key, prompt string) string {
	o.mu.Lock()
	history := append([]turn(nil), o.conversations[key]...)
	o.mu.Unlock()

	if len(history) == 0 {
		return prompt
	}

	var sb strings.Builder
	for _, t := range history {
		sb.WriteString("Previously you said: ")
		sb.WriteString(t.response)
		sb.WriteString("\n")
	}
	sb.WriteString("Now: ")
	sb.WriteString(prompt)
	return sb.String()
}

func (o *Oracle) appendTurn(key, prompt, response string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversations[key] = append(o.conversations[key], turn{prompt: prompt, response: response})
	// Cap history to bound memory/prompt growth for long-running agents.
	const maxTurns = 20
	if len(o.conversations[key]) > maxTurns {
		o.conversations[key] = o.conversations[key][len(o.conversations[key])-maxTurns:]
	}
}
