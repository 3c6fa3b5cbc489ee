package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectAppendsToStringSystemPrompt(t *testing.T) {
	inj := &InstructionInjector{Default: "handle placeholders"}
	doc := map[string]any{"system": "be concise"}
	inj.Inject(doc, "claude-3")
	require.Equal(t, "be concise\n\nhandle placeholders", doc["system"])
}

func TestInjectSetsEmptyStringSystemPrompt(t *testing.T) {
	inj := &InstructionInjector{Default: "handle placeholders"}
	doc := map[string]any{"system": ""}
	inj.Inject(doc, "claude-3")
	require.Equal(t, "handle placeholders", doc["system"])
}

func TestInjectAppendsToContentBlockSystemPrompt(t *testing.T) {
	inj := &InstructionInjector{Default: "handle placeholders"}
	doc := map[string]any{"system": []any{map[string]any{"type": "text", "text": "be concise"}}}
	inj.Inject(doc, "claude-3")

	blocks, ok := doc["system"].([]any)
	require.True(t, ok)
	require.Len(t, blocks, 2)
}

func TestInjectAppendsToOpenAISystemMessage(t *testing.T) {
	inj := &InstructionInjector{Default: "handle placeholders"}
	doc := map[string]any{"messages": []any{
		map[string]any{"role": "system", "content": "be concise"},
		map[string]any{"role": "user", "content": "hi"},
	}}
	inj.Inject(doc, "gpt-4")

	messages := doc["messages"].([]any)
	first := messages[0].(map[string]any)
	require.Equal(t, "be concise\n\nhandle placeholders", first["content"])
}

func TestInjectPrependsSystemMessageWhenAbsent(t *testing.T) {
	inj := &InstructionInjector{Default: "handle placeholders"}
	doc := map[string]any{"messages": []any{
		map[string]any{"role": "user", "content": "hi"},
	}}
	inj.Inject(doc, "gpt-4")

	messages := doc["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	require.Equal(t, "system", first["role"])
	require.Equal(t, "handle placeholders", first["content"])
}

func TestResolveUsesLongestMatchingPrefix(t *testing.T) {
	inj := &InstructionInjector{
		ByModelPrefix: map[string]string{
			"claude":   "generic claude instruction",
			"claude-3": "claude-3 specific instruction",
		},
		Default: "fallback",
	}
	require.Equal(t, "claude-3 specific instruction", inj.resolve("claude-3-opus"))
	require.Equal(t, "generic claude instruction", inj.resolve("claude-2"))
	require.Equal(t, "fallback", inj.resolve("gpt-4"))
}

func TestInjectIsNoOpWithNoRecognizedShape(t *testing.T) {
	inj := &InstructionInjector{Default: "handle placeholders"}
	doc := map[string]any{"prompt": "raw completion prompt"}
	inj.Inject(doc, "text-davinci")
	require.Equal(t, "raw completion prompt", doc["prompt"])
	_, hasSystem := doc["system"]
	require.False(t, hasSystem)
}
