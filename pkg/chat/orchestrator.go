// HoshiBot - Discord music & companion chat bot
// License: MIT
//
// Copyright (c) 2026 HoshiBot contributors

package chat

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/dotsetgreg/hoshibot/pkg/config"
	"github.com/dotsetgreg/hoshibot/pkg/logger"
	"github.com/dotsetgreg/hoshibot/pkg/profile"
	"github.com/dotsetgreg/hoshibot/pkg/providers"
)

const (
	notReadyResponse = "Sorry, my brain isn't working right now. Try again later!"
	emptyResponse    = "Hmm, I'm having trouble thinking right now..."
)

// One of these is picked at random when the provider fails. The real
// cause goes to the operator log, never to the user.
var friendlyErrorResponses = []string{
	"Oops, my digital brain hiccuped!",
	"Sorry, I'm feeling a bit scattered right now...",
	"My thoughts got tangled up, give me a moment~",
	"Something short-circuited in here... try that again?",
}

// Orchestrator ties the rate limiter, prompt builder, completion
// provider, and conversation memory into one request/response cycle.
//
// Respond may be called from concurrent handler goroutines; all shared
// state lives behind the limiter's and memory's own synchronization,
// and neither lock is ever held across the provider call.
type Orchestrator struct {
	provider  providers.CompletionProvider
	limiter   *RateLimiter
	prompts   *PromptBuilder
	memory    *Memory
	directory *profile.Directory

	genOpts           providers.GenerationOptions
	maxResponseLength int

	pickError func(n int) int
}

type Stats struct {
	Initialized      bool
	TotalExchanges   int
	ActiveIdentities int
	KnownProfiles    int
}

// NewOrchestrator wires the chat pipeline. A nil provider produces an
// uninitialized orchestrator that answers every request with a static
// apology; the rest of the bot (music half) keeps working.
func NewOrchestrator(provider providers.CompletionProvider, limiter *RateLimiter, prompts *PromptBuilder, memory *Memory, directory *profile.Directory, cfg config.ChatConfig) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		limiter:   limiter,
		prompts:   prompts,
		memory:    memory,
		directory: directory,
		genOpts: providers.GenerationOptions{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxTokens,
		},
		maxResponseLength: cfg.MaxResponseLength,
		pickError:         rand.IntN,
	}
}

func (o *Orchestrator) Initialized() bool {
	return o.provider != nil
}

// Respond runs one full exchange. The boolean reports success; the text
// is always safe to show the user.
func (o *Orchestrator) Respond(ctx context.Context, message, identityID, displayName, username string) (string, bool) {
	if !o.Initialized() {
		return notReadyResponse, false
	}

	// Rate limiting happens before any external call. This is the only
	// backpressure in the system.
	if res := o.limiter.Check(identityID); !res.Allowed {
		seconds := int(res.RetryAfter.Seconds())
		logger.DebugCF("chat", "Rate limited", map[string]interface{}{
			"identity":    identityID,
			"retry_after": seconds,
		})
		return fmt.Sprintf("Whoa, slow down! Give me %d seconds to catch up~", seconds), false
	}

	prompt := o.prompts.Build(message, identityID, displayName, username)

	text, err := o.provider.Generate(ctx, prompt, o.genOpts)
	if err != nil {
		logger.ErrorCF("chat", "Completion call failed", map[string]interface{}{
			"identity": identityID,
			"error":    err.Error(),
		})
		return friendlyErrorResponses[o.pickError(len(friendlyErrorResponses))], false
	}

	if text == "" {
		return emptyResponse, false
	}

	text = truncateResponse(text, o.maxResponseLength)

	o.memory.Append(identityID, message, text)

	logger.DebugCF("chat", "Generated response", map[string]interface{}{
		"identity": identityID,
		"chars":    len(text),
	})
	return text, true
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Initialized:      o.Initialized(),
		TotalExchanges:   o.memory.TotalExchanges(),
		ActiveIdentities: o.memory.ActiveIdentities(),
		KnownProfiles:    o.directory.Len(),
	}
}

// truncateResponse caps text at limit characters, replacing the final
// three with an ellipsis marker when it had to cut.
func truncateResponse(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
