package chat

import (
	"strings"
	"testing"

	"github.com/dotsetgreg/hoshibot/pkg/profile"
)

func testPromptBuilder() (*PromptBuilder, *Memory) {
	directory := profile.NewDirectory(map[string]profile.Profile{
		"mei": {Names: []string{"Mei", "meimei"}, Age: 21, Personality: "quiet, dry humor"},
	})
	memory := NewMemory(10, nil)
	return NewPromptBuilder("PERSONA BLOCK", directory, memory, 1500), memory
}

func TestPromptBuilder_KnownUserContext(t *testing.T) {
	pb, _ := testPromptBuilder()

	prompt := pb.Build("hello!", "id-1", "MEIMEI", "whoever")

	if !strings.HasPrefix(prompt, "PERSONA BLOCK") {
		t.Error("prompt must start with the persona block")
	}
	if !strings.Contains(prompt, "This is Mei") {
		t.Errorf("prompt should include title-cased profile key:\n%s", prompt)
	}
	if strings.Contains(prompt, "Unknown user") {
		t.Error("known user must not get the unknown marker")
	}
}

func TestPromptBuilder_UnknownUserMarker(t *testing.T) {
	pb, _ := testPromptBuilder()

	prompt := pb.Build("hi", "id-2", "Str4nger", "str4nger_handle")

	if !strings.Contains(prompt, "CURRENT USER: Unknown user (Display: Str4nger, Username: str4nger_handle)") {
		t.Errorf("unknown-user marker must preserve names verbatim:\n%s", prompt)
	}
}

func TestPromptBuilder_RecentConversation(t *testing.T) {
	pb, memory := testPromptBuilder()

	for _, pair := range [][2]string{
		{"first", "r-first"},
		{"second", "r-second"},
		{"third", "r-third"},
		{"fourth", "r-fourth"},
	} {
		memory.Append("id-1", pair[0], pair[1])
	}

	prompt := pb.Build("now", "id-1", "mei", "mei")

	if strings.Contains(prompt, "User: first") {
		t.Error("only the 3 most recent exchanges belong in the prompt")
	}
	for _, want := range []string{"User: second", "Hoshi: r-second", "User: fourth", "Hoshi: r-fourth"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	// Chronological order within the context.
	if strings.Index(prompt, "User: second") > strings.Index(prompt, "User: fourth") {
		t.Error("exchanges must appear oldest first")
	}
}

func TestPromptBuilder_NoHistoryOmitsSection(t *testing.T) {
	pb, _ := testPromptBuilder()

	prompt := pb.Build("hi", "nobody", "x", "y")
	if strings.Contains(prompt, "RECENT CONVERSATION") {
		t.Error("empty history should omit the conversation section")
	}
}

func TestPromptBuilder_GuidelinesAndMessage(t *testing.T) {
	pb, _ := testPromptBuilder()

	prompt := pb.Build("play me something sad", "id", "x", "y")

	if !strings.Contains(prompt, "CURRENT MESSAGE TO RESPOND TO:\nplay me something sad") {
		t.Errorf("prompt missing current message:\n%s", prompt)
	}
	if !strings.Contains(prompt, "under 1500 characters") {
		t.Errorf("guidelines must carry the configured max length:\n%s", prompt)
	}
}
