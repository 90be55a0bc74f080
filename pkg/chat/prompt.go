package chat

import (
	"fmt"
	"strings"

	"github.com/dotsetgreg/hoshibot/pkg/profile"
)

const recentExchangesInPrompt = 3

// PromptBuilder composes the full completion prompt: persona block,
// user context from the identity directory, recent conversation, the
// new message, and fixed response guidelines. Pure given its inputs
// plus the current memory and profile state.
type PromptBuilder struct {
	persona           string
	directory         *profile.Directory
	memory            *Memory
	maxResponseLength int
}

func NewPromptBuilder(persona string, directory *profile.Directory, memory *Memory, maxResponseLength int) *PromptBuilder {
	return &PromptBuilder{
		persona:           persona,
		directory:         directory,
		memory:            memory,
		maxResponseLength: maxResponseLength,
	}
}

func (pb *PromptBuilder) Build(message, identityID, displayName, username string) string {
	parts := []string{pb.persona}

	if key, _, ok := pb.directory.Resolve(displayName, username); ok {
		if summary := pb.directory.Summary(key); summary != "" {
			parts = append(parts, "\nCURRENT USER CONTEXT:\n"+summary)
		}
	} else {
		parts = append(parts, fmt.Sprintf("\nCURRENT USER: Unknown user (Display: %s, Username: %s)", displayName, username))
	}

	if conversation := pb.conversationContext(identityID); conversation != "" {
		parts = append(parts, "\nRECENT CONVERSATION:\n"+conversation)
	}

	parts = append(parts, "\nCURRENT MESSAGE TO RESPOND TO:\n"+message)

	parts = append(parts, fmt.Sprintf(`
RESPONSE GUIDELINES:
- Respond as Hoshi with your own personality
- Keep responses under %d characters
- Show genuine interest and emotion without overacting
- Reference user context naturally if you know them
- Use at most one emoji per reply

Respond now as Hoshi:`, pb.maxResponseLength))

	return strings.Join(parts, "\n")
}

func (pb *PromptBuilder) conversationContext(identityID string) string {
	recent := pb.memory.Recent(identityID, recentExchangesInPrompt)
	if len(recent) == 0 {
		return ""
	}

	lines := make([]string, 0, len(recent)*2)
	for _, exchange := range recent {
		lines = append(lines, "User: "+exchange.UserMessage)
		lines = append(lines, "Hoshi: "+exchange.BotResponse)
	}
	return strings.Join(lines, "\n")
}
